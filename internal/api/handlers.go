// Package api exposes the HTTP trigger surface for campaign runs: start a
// run, poll its status, preview a recipient query.
package api

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ignite/bulkmail/internal/campaign"
	"github.com/ignite/bulkmail/internal/pkg/distlock"
	"github.com/ignite/bulkmail/internal/pkg/httputil"
	"github.com/ignite/bulkmail/internal/pkg/logger"
	"github.com/ignite/bulkmail/internal/recipients"
	"github.com/ignite/bulkmail/internal/runstatus"
)

// Runner executes one campaign run. *campaign.Pipeline is the production
// implementation.
type Runner interface {
	RunWithID(ctx context.Context, runID uuid.UUID, spec campaign.Spec, source campaign.RecordSource) (*campaign.RunSummary, error)
}

// StatusReader answers run status polls.
type StatusReader interface {
	Get(ctx context.Context, runID string) (*campaign.RunSummary, error)
}

// LockFactory builds a distributed lock for a campaign fingerprint.
type LockFactory func(key string) distlock.DistLock

// Handlers holds the dependencies of the campaign endpoints.
type Handlers struct {
	db           *sql.DB
	runner       Runner
	status       StatusReader
	locks        LockFactory
	previewLimit int
}

// NewHandlers creates the handler set. status and locks may be nil (status
// polling returns 404s, runs go unlocked).
func NewHandlers(db *sql.DB, runner Runner, status StatusReader, locks LockFactory, previewLimit int) *Handlers {
	if previewLimit < 1 {
		previewLimit = 100
	}
	return &Handlers{db: db, runner: runner, status: status, locks: locks, previewLimit: previewLimit}
}

// Routes returns the chi router for all campaign endpoints.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.handleHealth)
	r.Post("/api/campaigns/send", h.handleSend)
	r.Get("/api/campaigns/preview", h.handlePreview)
	r.Get("/api/runs/{runID}", h.handleRunStatus)
	return r
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// handleSend validates the flat trigger parameters, opens the recipient
// stream, and launches the run in the background. The response carries the
// run ID for status polling.
func (h *Handlers) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "invalid form data")
		return
	}

	spec := campaign.Spec{
		TemplateID:      r.Form.Get("template_id"),
		SubjectOverride: r.Form.Get("subject_override"),
		SenderName:      r.Form.Get("sender_name"),
		ReplyTo:         r.Form.Get("reply_to"),
		AttachmentIDs:   splitIDList(r.Form.Get("attachments")),
		Query:           r.Form.Get("query"),
		Deduplicate:     r.Form.Get("deduplicate") == "true",
	}

	if err := spec.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var lock distlock.DistLock
	if h.locks != nil {
		lock = h.locks(campaignFingerprint(spec))
		ok, err := lock.Acquire(r.Context())
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		if !ok {
			httputil.Conflict(w, "an identical campaign is already running")
			return
		}
	}

	// The run outlives the request; it must not die with the client
	// connection, so the stream and the run use a detached context.
	runCtx := context.WithoutCancel(r.Context())

	source, err := recipients.Open(runCtx, h.db, spec.Query)
	if err != nil {
		if lock != nil {
			lock.Release(r.Context())
		}
		logger.Error("recipient query failed", "error", err)
		httputil.BadRequest(w, "recipient query failed: "+err.Error())
		return
	}

	runID := uuid.New()
	go func() {
		defer func() {
			if lock != nil {
				lock.Release(context.Background())
			}
		}()
		if _, err := h.runner.RunWithID(runCtx, runID, spec, source); err != nil {
			logger.Error("campaign run failed", "run_id", runID, "error", err)
		}
	}()

	httputil.Accepted(w, map[string]string{
		"run_id": runID.String(),
		"status": string(campaign.StateStarted),
	})
}

// handlePreview returns the first recipients a query would produce, capped,
// so an operator can sanity-check the audience before sending.
func (h *Handlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		httputil.BadRequest(w, "query parameter is required")
		return
	}

	source, err := recipients.Open(r.Context(), h.db, query)
	if err != nil {
		httputil.BadRequest(w, "recipient query failed: "+err.Error())
		return
	}
	defer source.Close()

	// capped reports whether the query had more recipients than the limit,
	// so the loop only stops once it sees one recipient past it.
	emails := make([]string, 0, h.previewLimit)
	capped := false
	for !capped {
		rec, err := source.Next(r.Context())
		if err != nil {
			break
		}
		for _, nr := range campaign.ExtractRecipients(rec) {
			if len(emails) == h.previewLimit {
				capped = true
				break
			}
			emails = append(emails, nr.Email)
		}
	}

	httputil.OK(w, map[string]any{
		"count":  len(emails),
		"emails": emails,
		"capped": capped,
	})
}

func (h *Handlers) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if h.status == nil {
		httputil.NotFound(w, "run status tracking is not enabled")
		return
	}

	summary, err := h.status.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runstatus.ErrRunNotFound) {
			httputil.NotFound(w, "unknown run: "+runID)
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// splitIDList parses the delimited attachment-id parameter. This is the
// only place the delimiter exists; internally attachment IDs are a list.
func splitIDList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, piece := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(piece); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// campaignFingerprint derives the lock key: two triggers with the same
// template and audience are the same campaign for locking purposes.
func campaignFingerprint(spec campaign.Spec) string {
	sum := sha256.Sum256([]byte(spec.TemplateID + "\x00" + spec.Query))
	return fmt.Sprintf("campaign:%x", sum[:8])
}

// NewServer wraps the handlers in an http.Server with sane timeouts. Write
// timeout stays generous: preview queries can take a while on big lists.
func NewServer(addr string, h *Handlers) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
