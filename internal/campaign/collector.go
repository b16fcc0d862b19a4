package campaign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// CollectRecipients drains the source in a single pass, extracting
// recipients from each record in source order. Extraction problems on one
// record never abort the collection. Duplicates are preserved by default: a
// recipient matched by two query rows is mailed twice, matching observed
// source behavior. When dedupe is true the first occurrence of each address
// (case-insensitive) wins.
func CollectRecipients(ctx context.Context, source RecordSource, dedupe bool) ([]NormalizedRecipient, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: recipient source", ErrMissingField)
	}
	defer source.Close()

	var (
		out  []NormalizedRecipient
		seen map[string]bool
	)
	if dedupe {
		seen = make(map[string]bool)
	}

	for {
		rec, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A broken stream is a run-level failure: it happens before any
			// batch send, and a partial recipient list must not go out.
			return nil, fmt.Errorf("reading recipient source: %w", err)
		}

		for _, r := range extractSafely(rec) {
			if dedupe {
				key := strings.ToLower(r.Email)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, r)
		}
	}

	logger.Info("recipients collected", "total", len(out), "dedupe", dedupe)
	return out, nil
}

// extractSafely shields the collection loop from a panicking Record
// implementation; one bad record is logged and skipped.
func extractSafely(rec Record) (recipients []NormalizedRecipient) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recipient extraction failed", "record_id", rec.ID(), "panic", fmt.Sprintf("%v", r))
			recipients = nil
		}
	}()
	return ExtractRecipients(rec)
}
