package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/bulkmail/internal/mailapi"
	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// Dispatcher sends prepared batches through the external mail API and
// records per-batch outcomes. A failed batch never aborts the run; every
// remaining batch is still attempted.
type Dispatcher struct {
	sender Sender
}

// NewDispatcher creates a dispatcher over the given sender.
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Dispatch sends every batch in order. If anything succeeded and a
// reply-to is set, it then sends exactly one confirmation copy to the
// reply-to address. Outcomes and counts accumulate into summary. Cancellation is
// honored between batches: already-sent batches stand, no new batch is
// started, and the summary keeps the counts collected so far.
func (d *Dispatcher) Dispatch(ctx context.Context, batches [][]string, content *ResolvedContent, spec Spec, summary *RunSummary) {
	summary.State = StateDispatching

	for i, batch := range batches {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, skipping remaining batches",
				"run_id", summary.RunID, "sent_batches", i, "total_batches", len(batches))
			break
		}

		outcome := d.sendBatch(ctx, i, batch, content, spec)
		summary.record(outcome)

		if outcome.Status == OutcomeSuccess {
			logger.Info("batch sent", "run_id", summary.RunID,
				"batch", i+1, "of", len(batches), "recipient_count", len(batch))
		} else {
			logger.Error("batch send failed", "run_id", summary.RunID,
				"batch", i+1, "of", len(batches), "status", string(outcome.Status), "detail", outcome.Detail)
		}
	}

	summary.State = StateSendingConfirmation
	if ctx.Err() == nil && summary.SuccessCount > 0 && spec.ReplyTo != "" {
		summary.ConfirmationSent = d.sendConfirmation(ctx, content, spec, summary)
	}
}

// sendBatch builds and issues one send, classifying the result. Any panic
// during request construction counts as a transport error for this batch
// only.
func (d *Dispatcher) sendBatch(ctx context.Context, index int, batch []string, content *ResolvedContent, spec Spec) (outcome DispatchOutcome) {
	outcome = DispatchOutcome{BatchIndex: index, RecipientCount: len(batch)}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = OutcomeTransportError
			outcome.Detail = fmt.Sprintf("panic building batch request: %v", r)
		}
	}()

	req := &mailapi.SendRequest{
		Subject:     content.Subject,
		Body:        content.Body,
		ReplyTo:     spec.ReplyTo,
		SenderName:  spec.SenderName,
		Recipients:  batch,
		Attachments: content.Attachments,
	}

	err := d.sender.Send(ctx, req)
	switch {
	case err == nil:
		outcome.Status = OutcomeSuccess
	case isAPIError(err):
		outcome.Status = OutcomeAPIError
		outcome.Detail = err.Error()
	default:
		outcome.Status = OutcomeTransportError
		outcome.Detail = err.Error()
	}
	return outcome
}

// sendConfirmation sends the single summary copy to the reply-to address.
// Best-effort: failure is logged but changes no counts.
func (d *Dispatcher) sendConfirmation(ctx context.Context, content *ResolvedContent, spec Spec, summary *RunSummary) bool {
	req := &mailapi.SendRequest{
		Subject:     content.Subject,
		Body:        content.Body,
		ReplyTo:     spec.ReplyTo,
		SenderName:  spec.SenderName,
		Recipients:  []string{spec.ReplyTo},
		Attachments: content.Attachments,
	}

	if err := d.sender.Send(ctx, req); err != nil {
		logger.Error("confirmation copy failed", "run_id", summary.RunID,
			"reply_to", spec.ReplyTo, "error", err)
		return false
	}

	logger.Info("confirmation copy sent", "run_id", summary.RunID, "reply_to", spec.ReplyTo)
	return true
}

func isAPIError(err error) bool {
	var apiErr *mailapi.APIError
	return errors.As(err, &apiErr)
}
