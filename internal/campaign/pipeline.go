package campaign

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// StatusSink receives summary updates as a run progresses. Publish must not
// block the pipeline; implementations are expected to swallow their own
// errors.
type StatusSink interface {
	Publish(ctx context.Context, summary *RunSummary)
}

// Pipeline wires the collector, batcher, and dispatcher into a single
// invocable run. One Pipeline is safe for concurrent runs; all per-run
// state lives in the RunSummary.
type Pipeline struct {
	templates   TemplateResolver
	attachments AttachmentResolver
	dispatcher  *Dispatcher
	status      StatusSink
	batchSize   int
}

// NewPipeline creates a pipeline. status may be nil; batchSize defaults to
// DefaultBatchSize when non-positive.
func NewPipeline(templates TemplateResolver, attachments AttachmentResolver, sender Sender, status StatusSink, batchSize int) *Pipeline {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		templates:   templates,
		attachments: attachments,
		dispatcher:  NewDispatcher(sender),
		status:      status,
		batchSize:   batchSize,
	}
}

// Run executes one campaign: validate, collect, batch, dispatch, confirm.
// The returned error is non-nil only for run-level failures that occur
// before any batch is sent (missing fields, unreadable recipient source);
// batch failures surface solely through the summary counts. Run always
// returns the summary, even on failure and even when every batch failed.
func (p *Pipeline) Run(ctx context.Context, spec Spec, source RecordSource) (*RunSummary, error) {
	return p.RunWithID(ctx, uuid.New(), spec, source)
}

// RunWithID is Run with a caller-chosen run ID, for callers that hand the
// ID out (e.g. a 202 response) before the run finishes.
func (p *Pipeline) RunWithID(ctx context.Context, runID uuid.UUID, spec Spec, source RecordSource) (*RunSummary, error) {
	summary := newRunSummary(runID)
	p.publish(ctx, summary)

	logger.Info("campaign run started", "run_id", summary.RunID,
		"template_id", spec.TemplateID, "sender_name", spec.SenderName,
		"attachment_count", len(spec.AttachmentIDs))

	if err := spec.Validate(); err != nil {
		// CollectRecipients never runs on this branch, so the stream has to
		// be released here.
		if source != nil {
			source.Close()
		}
		return p.fail(ctx, summary, err)
	}

	summary.State = StateCollectingRecipients
	p.publish(ctx, summary)

	recipients, err := CollectRecipients(ctx, source, spec.Deduplicate)
	if err != nil {
		return p.fail(ctx, summary, err)
	}
	summary.TotalRecipients = len(recipients)

	summary.State = StateBatching
	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = r.Email
	}
	batches := SplitBatches(emails, p.batchSize)
	summary.BatchCount = len(batches)
	p.publish(ctx, summary)

	logger.Info("batches created", "run_id", summary.RunID,
		"total_recipients", len(emails), "batch_count", len(batches), "max_per_batch", p.batchSize)

	// Content is resolved exactly once, before any batch goes out, and
	// shared identically across every batch and the confirmation copy.
	subject, body := p.templates.Resolve(ctx, spec.TemplateID, spec.SubjectOverride)
	content := &ResolvedContent{
		Subject:     subject,
		Body:        body,
		Attachments: p.attachments.Resolve(ctx, spec.AttachmentIDs),
	}

	p.dispatcher.Dispatch(ctx, batches, content, spec, summary)

	summary.State = StateCompleted
	summary.finish()
	p.publish(ctx, summary)

	logger.Info("campaign run completed", "run_id", summary.RunID,
		"success_count", summary.SuccessCount, "error_count", summary.ErrorCount,
		"total_recipients", summary.TotalRecipients, "confirmation_sent", summary.ConfirmationSent)

	return summary, nil
}

func (p *Pipeline) fail(ctx context.Context, summary *RunSummary, err error) (*RunSummary, error) {
	summary.State = StateFailed
	summary.Error = err.Error()
	summary.finish()
	p.publish(ctx, summary)

	logger.Error("campaign run aborted before dispatch", "run_id", summary.RunID, "error", err)
	return summary, err
}

func (p *Pipeline) publish(ctx context.Context, summary *RunSummary) {
	if p.status != nil {
		p.status.Publish(ctx, summary)
	}
}
