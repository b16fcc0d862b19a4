package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/bulkmail/internal/api"
	"github.com/ignite/bulkmail/internal/attachment"
	"github.com/ignite/bulkmail/internal/campaign"
	"github.com/ignite/bulkmail/internal/config"
	"github.com/ignite/bulkmail/internal/mailapi"
	"github.com/ignite/bulkmail/internal/pkg/distlock"
	"github.com/ignite/bulkmail/internal/runstatus"
	"github.com/ignite/bulkmail/internal/template"

	// Both database/sql drivers the config can select.
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
)

func main() {
	log.Println("Starting bulkmail server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Printf("Connected to %s database", cfg.Database.Driver)

	// Redis is optional: without it runs still execute, but status polling
	// returns 404s and run locking falls back to PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unreachable, continuing without run status: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
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
		log.Printf("Attachment store ready (bucket %s)", cfg.Blobs.Bucket)
	} else {
		log.Println("No attachment bucket configured, attachments disabled")
	}

	sender := mailapi.NewClient(cfg.MailAPI.Endpoint, cfg.MailAPI.Timeout())

	var status *runstatus.Store
	if redisClient != nil {
		status = runstatus.NewStore(redisClient, cfg.Dispatch.StatusTTL())
	}

	pipeline := campaign.NewPipeline(templates, attachments, sender, statusSink(status), cfg.Dispatch.BatchSize)

	locks := func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, cfg.Dispatch.LockTTL())
	}

	var statusReader api.StatusReader
	if status != nil {
		statusReader = status
	}
	handlers := api.NewHandlers(db, pipeline, statusReader, locks, cfg.Dispatch.PreviewLimit)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := api.NewServer(addr, handlers)

	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// statusSink converts a possibly-nil store into the pipeline's sink type.
// A typed nil inside a non-nil interface would defeat the pipeline's nil
// check, so the conversion has to happen on the concrete value.
func statusSink(s *runstatus.Store) campaign.StatusSink {
	if s == nil {
		return nil
	}
	return s
}
