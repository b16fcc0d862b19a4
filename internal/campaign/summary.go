package campaign

import (
	"time"

	"github.com/google/uuid"
)

// RunState tracks the run through its lifecycle. Completed is the only
// terminal state; a run with zero successes still completes and is
// distinguishable only by its counts.
type RunState string

const (
	StateStarted              RunState = "started"
	StateCollectingRecipients RunState = "collecting_recipients"
	StateBatching             RunState = "batching"
	StateDispatching          RunState = "dispatching"
	StateSendingConfirmation  RunState = "sending_confirmation"
	StateCompleted            RunState = "completed"
	StateFailed               RunState = "failed" // pre-dispatch validation/resolution failures only
)

// OutcomeStatus classifies a single batch send attempt.
type OutcomeStatus string

const (
	OutcomeSuccess        OutcomeStatus = "success"
	OutcomeAPIError       OutcomeStatus = "api_error"
	OutcomeTransportError OutcomeStatus = "transport_error"
)

// DispatchOutcome records what happened to one batch.
type DispatchOutcome struct {
	BatchIndex     int           `json:"batch_index"`
	RecipientCount int           `json:"recipient_count"`
	Status         OutcomeStatus `json:"status"`
	Detail         string        `json:"detail,omitempty"`
}

// RunSummary aggregates the result of one campaign run. It is mutated by
// the dispatcher as batches complete and finalized when the run ends; it is
// held only for the run's transient status window, never durably.
type RunSummary struct {
	RunID            uuid.UUID         `json:"run_id"`
	State            RunState          `json:"state"`
	TotalRecipients  int               `json:"total_recipients"`
	BatchCount       int               `json:"batch_count"`
	SuccessCount     int               `json:"success_count"`
	ErrorCount       int               `json:"error_count"`
	ConfirmationSent bool              `json:"confirmation_sent"`
	Outcomes         []DispatchOutcome `json:"outcomes,omitempty"`
	Error            string            `json:"error,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// newRunSummary creates an empty summary in the started state.
func newRunSummary(runID uuid.UUID) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		State:     StateStarted,
		StartedAt: time.Now().UTC(),
	}
}

// finish stamps the completion time. A pointer keeps completed_at out of
// in-flight status payloads entirely; omitempty cannot elide a zero
// time.Time value.
func (s *RunSummary) finish() {
	now := time.Now().UTC()
	s.CompletedAt = &now
}

// record appends a batch outcome and bumps the matching counter.
func (s *RunSummary) record(o DispatchOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Status == OutcomeSuccess {
		s.SuccessCount++
	} else {
		s.ErrorCount++
	}
}
