// Command sendmail runs a single campaign from the command line and prints
// the run summary. It exits non-zero only when the run aborts before
// dispatch; batch failures are reported through the summary counts.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/bulkmail/internal/attachment"
	"github.com/ignite/bulkmail/internal/campaign"
	"github.com/ignite/bulkmail/internal/config"
	"github.com/ignite/bulkmail/internal/mailapi"
	"github.com/ignite/bulkmail/internal/recipients"
	"github.com/ignite/bulkmail/internal/template"

	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
)

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "path to config file")
		templateID  = flag.String("template", "", "email template ID (required)")
		subject     = flag.String("subject", "", "subject override")
		senderName  = flag.String("sender", "", "sender display name (required)")
		replyTo     = flag.String("reply-to", "", "reply-to address, also receives the confirmation copy (required)")
		query       = flag.String("query", "", "SQL query producing the recipient records (required)")
		attachIDs   = flag.String("attachments", "", "comma-separated attachment IDs")
		deduplicate = flag.Bool("dedupe", false, "drop repeated addresses, keeping first occurrence")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	spec := campaign.Spec{
		TemplateID:      *templateID,
		SubjectOverride: *subject,
		SenderName:      *senderName,
		ReplyTo:         *replyTo,
		Query:           *query,
		Deduplicate:     *deduplicate,
	}
	if *attachIDs != "" {
		for _, id := range strings.Split(*attachIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				spec.AttachmentIDs = append(spec.AttachmentIDs, id)
			}
		}
	}
	if err := spec.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid campaign: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	templates := template.NewResolver(template.NewStore(db),
		cfg.Dispatch.FallbackSubject, cfg.Dispatch.FallbackBody)

	var attachments campaign.AttachmentResolver = attachment.NoopResolver{}
	if cfg.Blobs.Bucket != "" {
		store, err := attachment.NewS3Store(context.Background(),
			cfg.Blobs.Bucket, cfg.Blobs.Region, cfg.Blobs.AWSProfile, cfg.Blobs.KeyPrefix)
		if err != nil {
			log.Fatalf("Failed to initialize attachment store: %v", err)
		}
		attachments = attachment.NewResolver(store)
	}

	sender := mailapi.NewClient(cfg.MailAPI.Endpoint, cfg.MailAPI.Timeout())
	pipeline := campaign.NewPipeline(templates, attachments, sender, nil, cfg.Dispatch.BatchSize)

	// Ctrl-C stops cleanly between batches; already-sent batches stand.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := recipients.Open(ctx, db, spec.Query)
	if err != nil {
		log.Fatalf("Recipient query failed: %v", err)
	}

	summary, runErr := pipeline.Run(ctx, spec, source)

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", runErr)
		os.Exit(1)
	}
}
