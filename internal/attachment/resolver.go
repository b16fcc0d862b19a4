package attachment

import (
	"context"
	"encoding/base64"

	"github.com/ignite/bulkmail/internal/mailapi"
	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// Loader is the slice of S3Store the resolver needs.
type Loader interface {
	Load(ctx context.Context, id string) (*File, error)
}

// Resolver resolves attachment IDs into wire attachments. Each ID is
// resolved independently: one unresolvable attachment is logged and
// omitted, never aborting the rest or the run. Output order follows input
// order.
type Resolver struct {
	store Loader
}

// NewResolver creates an attachment resolver over the given store.
func NewResolver(store Loader) *Resolver {
	return &Resolver{store: store}
}

// NoopResolver resolves nothing. Used when no attachment store is
// configured; campaigns that name attachments simply send without them,
// mirroring the omit-on-failure rule.
type NoopResolver struct{}

// Resolve logs and drops every requested attachment.
func (NoopResolver) Resolve(ctx context.Context, ids []string) []mailapi.Attachment {
	if len(ids) > 0 {
		logger.Error("attachment store not configured, omitting", "attachment_count", len(ids))
	}
	return nil
}

// Resolve loads every attachment it can and base64-encodes the content for
// the wire.
func (r *Resolver) Resolve(ctx context.Context, ids []string) []mailapi.Attachment {
	if len(ids) == 0 {
		return nil
	}

	out := make([]mailapi.Attachment, 0, len(ids))
	for _, id := range ids {
		f, err := r.store.Load(ctx, id)
		if err != nil {
			logger.Error("attachment load failed, omitting", "attachment_id", id, "error", err)
			continue
		}
		out = append(out, mailapi.Attachment{
			Filename: f.Filename,
			Content:  base64.StdEncoding.EncodeToString(f.Content),
		})
		logger.Debug("attachment loaded", "attachment_id", id, "filename", f.Filename, "size", len(f.Content))
	}
	return out
}
