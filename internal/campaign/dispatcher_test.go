package campaign

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/bulkmail/internal/mailapi"
)

// fakeSender records every send and fails selected calls.
type fakeSender struct {
	mu       sync.Mutex
	requests []*mailapi.SendRequest
	failCall map[int]error // 0-based call index → error to return
}

func newFakeSender() *fakeSender {
	return &fakeSender{failCall: map[int]error{}}
}

func (f *fakeSender) Send(ctx context.Context, req *mailapi.SendRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	return f.failCall[call]
}

// staticTemplates resolves to fixed content.
type staticTemplates struct{ subject, body string }

func (s staticTemplates) Resolve(ctx context.Context, templateID, subjectOverride string) (string, string) {
	if subjectOverride != "" {
		return subjectOverride, s.body
	}
	return s.subject, s.body
}

// staticAttachments resolves to fixed files.
type staticAttachments struct{ files []mailapi.Attachment }

func (s staticAttachments) Resolve(ctx context.Context, ids []string) []mailapi.Attachment {
	return s.files
}

func testSpec() Spec {
	return Spec{
		TemplateID: "tmpl-1",
		SenderName: "Ops",
		ReplyTo:    "owner@example.com",
		Query:      "SELECT * FROM customers",
	}
}

func newTestPipeline(sender Sender, batchSize int) *Pipeline {
	return NewPipeline(
		staticTemplates{subject: "Hello", body: "World"},
		staticAttachments{},
		sender,
		nil,
		batchSize,
	)
}

func sourceOf(n int) *sliceSource {
	records := make([]Record, n)
	for i := range records {
		records[i] = fakeRecord{id: "r", fields: map[string]string{"email": sequence(n)[i]}}
	}
	return newSliceSource(records...)
}

func TestRunHundredRecipientsThreeBatchesPlusConfirmation(t *testing.T) {
	sender := newFakeSender()
	p := newTestPipeline(sender, 45)

	summary, err := p.Run(context.Background(), testSpec(), sourceOf(100))
	require.NoError(t, err)

	// 45 + 45 + 10, then one confirmation to the reply-to only.
	require.Len(t, sender.requests, 4)
	assert.Len(t, sender.requests[0].Recipients, 45)
	assert.Len(t, sender.requests[1].Recipients, 45)
	assert.Len(t, sender.requests[2].Recipients, 10)
	assert.Equal(t, []string{"owner@example.com"}, sender.requests[3].Recipients)

	assert.Equal(t, 100, summary.TotalRecipients)
	assert.Equal(t, 3, summary.BatchCount)
	assert.Equal(t, 3, summary.SuccessCount)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.True(t, summary.ConfirmationSent)
	assert.Equal(t, StateCompleted, summary.State)
}

func TestRunMiddleBatchFailureIsIsolated(t *testing.T) {
	sender := newFakeSender()
	sender.failCall[1] = &mailapi.APIError{StatusCode: 200, Status: "error"}
	p := newTestPipeline(sender, 45)

	summary, err := p.Run(context.Background(), testSpec(), sourceOf(100))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.True(t, summary.ConfirmationSent, "confirmation still goes out when any batch succeeded")
	require.Len(t, sender.requests, 4, "all batches attempted despite the failure")

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, OutcomeSuccess, summary.Outcomes[0].Status)
	assert.Equal(t, OutcomeAPIError, summary.Outcomes[1].Status)
	assert.Equal(t, 1, summary.Outcomes[1].BatchIndex)
	assert.Equal(t, OutcomeSuccess, summary.Outcomes[2].Status)
}

func TestRunTransportErrorClassification(t *testing.T) {
	sender := newFakeSender()
	sender.failCall[0] = &mailapi.TransportError{Err: errors.New("connection refused")}
	p := newTestPipeline(sender, 45)

	summary, err := p.Run(context.Background(), testSpec(), sourceOf(10))
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, OutcomeTransportError, summary.Outcomes[0].Status)
	assert.Equal(t, 0, summary.SuccessCount)
	assert.False(t, summary.ConfirmationSent, "no confirmation when nothing succeeded")
	assert.Equal(t, StateCompleted, summary.State, "an all-failed run still completes")
}

func TestRunConfirmationFailureDoesNotChangeCounts(t *testing.T) {
	sender := newFakeSender()
	sender.failCall[1] = &mailapi.TransportError{Err: errors.New("timeout")} // the confirmation call
	p := newTestPipeline(sender, 45)

	summary, err := p.Run(context.Background(), testSpec(), sourceOf(10))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.False(t, summary.ConfirmationSent)
	assert.Equal(t, StateCompleted, summary.State)
}

func TestRunSharedContentAcrossBatches(t *testing.T) {
	sender := newFakeSender()
	p := NewPipeline(
		staticTemplates{subject: "Subj", body: "Body"},
		staticAttachments{files: []mailapi.Attachment{{Filename: "a.pdf", Content: "aGk="}}},
		sender,
		nil,
		45,
	)

	_, err := p.Run(context.Background(), testSpec(), sourceOf(100))
	require.NoError(t, err)

	for _, req := range sender.requests {
		assert.Equal(t, "Subj", req.Subject)
		assert.Equal(t, "Body", req.Body)
		assert.Equal(t, "Ops", req.SenderName)
		assert.Equal(t, "owner@example.com", req.ReplyTo)
		require.Len(t, req.Attachments, 1)
		assert.Equal(t, "a.pdf", req.Attachments[0].Filename)
	}
}

func TestRunMissingRequiredFieldAborts(t *testing.T) {
	sender := newFakeSender()
	p := newTestPipeline(sender, 45)

	spec := testSpec()
	spec.ReplyTo = ""

	src := sourceOf(10)
	summary, err := p.Run(context.Background(), spec, src)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Empty(t, sender.requests, "nothing may be sent when validation fails")
	assert.Equal(t, StateFailed, summary.State)
	assert.True(t, src.closed, "the recipient stream is released on a validation abort")
}

func TestRunEmptyRecipientList(t *testing.T) {
	sender := newFakeSender()
	p := newTestPipeline(sender, 45)

	summary, err := p.Run(context.Background(), testSpec(), sourceOf(0))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.BatchCount)
	assert.Empty(t, sender.requests, "zero batches and no confirmation for an empty list")
	assert.Equal(t, StateCompleted, summary.State)
}

func TestRunDeduplicateOption(t *testing.T) {
	sender := newFakeSender()
	p := newTestPipeline(sender, 45)

	src := newSliceSource(
		fakeRecord{id: "1", fields: map[string]string{"email": "dup@x.com"}},
		fakeRecord{id: "2", fields: map[string]string{"email": "dup@x.com"}},
		fakeRecord{id: "3", fields: map[string]string{"email": "solo@x.com"}},
	)

	spec := testSpec()
	spec.Deduplicate = true

	summary, err := p.Run(context.Background(), spec, src)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRecipients)
	assert.Equal(t, []string{"dup@x.com", "solo@x.com"}, sender.requests[0].Recipients)
}

// cancellingSender cancels the run after its first successful send.
type cancellingSender struct {
	inner  *fakeSender
	cancel context.CancelFunc
}

func (c *cancellingSender) Send(ctx context.Context, req *mailapi.SendRequest) error {
	err := c.inner.Send(ctx, req)
	c.cancel()
	return err
}

func TestRunCancellationStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := newFakeSender()
	p := newTestPipeline(&cancellingSender{inner: inner, cancel: cancel}, 45)

	summary, err := p.Run(ctx, testSpec(), sourceOf(100))
	require.NoError(t, err)

	// Batch 0 went out before cancellation; batches 1 and 2 were never
	// started. The summary still finalizes with the counts collected.
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.Equal(t, StateCompleted, summary.State)
	assert.False(t, summary.ConfirmationSent, "no confirmation on a cancelled run")
	assert.Len(t, inner.requests, 1)
}
