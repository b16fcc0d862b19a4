// Package campaign implements the bulk email dispatch pipeline: recipients
// are collected from a streamed query result, grouped into bounded BCC
// batches, and each batch is sent through the external mail API with
// per-batch failure isolation.
package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/bulkmail/internal/mailapi"
)

// DefaultBatchSize is the maximum number of BCC recipients per outbound send.
const DefaultBatchSize = 45

// ErrMissingField indicates a required campaign field was absent. It is the
// only error class that aborts a run before any batch is sent.
var ErrMissingField = errors.New("missing required campaign field")

// Record is one raw row from the recipient query source. Field returns ""
// for unknown or absent columns, never an error.
type Record interface {
	ID() string
	Type() string
	Field(name string) string
}

// RecordSource streams raw recipient records one at a time. Next returns
// io.EOF when the stream is exhausted. The stream is consumed exactly once;
// implementations need not support rewinding.
type RecordSource interface {
	Next(ctx context.Context) (Record, error)
	Close() error
}

// NormalizedRecipient is a single deliverable address extracted from a raw
// record. A record whose email field holds several delimited addresses
// expands into several recipients sharing the same SourceRecordID.
type NormalizedRecipient struct {
	Email          string
	DisplayName    string
	SourceRecordID string
}

// Spec is the immutable set of campaign parameters supplied by the caller.
type Spec struct {
	TemplateID      string   `json:"template_id"`
	SubjectOverride string   `json:"subject_override,omitempty"`
	SenderName      string   `json:"sender_name"`
	ReplyTo         string   `json:"reply_to"`
	AttachmentIDs   []string `json:"attachment_ids,omitempty"`
	Query           string   `json:"query"`
	Deduplicate     bool     `json:"deduplicate,omitempty"`
}

// Validate checks the fields that must be present before any send occurs.
func (s Spec) Validate() error {
	if s.TemplateID == "" {
		return fmt.Errorf("%w: template_id", ErrMissingField)
	}
	if s.SenderName == "" {
		return fmt.Errorf("%w: sender_name", ErrMissingField)
	}
	if s.ReplyTo == "" {
		return fmt.Errorf("%w: reply_to", ErrMissingField)
	}
	if s.Query == "" {
		return fmt.Errorf("%w: query", ErrMissingField)
	}
	return nil
}

// ResolvedContent is the subject/body/attachments computed once per run and
// shared read-only across every batch send and the confirmation copy.
type ResolvedContent struct {
	Subject     string
	Body        string
	Attachments []mailapi.Attachment
}

// Sender issues one outbound send per call. *mailapi.Client is the
// production implementation.
type Sender interface {
	Send(ctx context.Context, req *mailapi.SendRequest) error
}

// TemplateResolver turns a template ID plus optional subject override into
// final subject/body. Implementations degrade rather than fail: an
// unloadable template yields fallback content, never an error that stops
// the run.
type TemplateResolver interface {
	Resolve(ctx context.Context, templateID, subjectOverride string) (subject, body string)
}

// AttachmentResolver resolves attachment IDs into wire-ready files,
// omitting (and logging) any that cannot be loaded.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ids []string) []mailapi.Attachment
}
