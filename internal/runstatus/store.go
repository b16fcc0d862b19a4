// Package runstatus parks live run summaries in Redis so the API can answer
// status polls while (and shortly after) a run executes. Entries expire on
// a TTL; this is transient operational state, not a durable send record.
package runstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/bulkmail/internal/campaign"
	"github.com/ignite/bulkmail/internal/pkg/logger"
)

// ErrRunNotFound is returned when no status exists for a run ID.
var ErrRunNotFound = errors.New("run not found")

// Store is a Redis-backed status store. It implements campaign.StatusSink.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a status store with the given retention.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func key(runID string) string {
	return "run:" + runID
}

// Publish stores the summary's current state. Errors are logged, never
// propagated: status is observability, and losing an update must not
// disturb the run itself.
func (s *Store) Publish(ctx context.Context, summary *campaign.RunSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		logger.Error("run status marshal failed", "run_id", summary.RunID, "error", err)
		return
	}
	if err := s.client.Set(ctx, key(summary.RunID.String()), data, s.ttl).Err(); err != nil {
		logger.Error("run status publish failed", "run_id", summary.RunID, "error", err)
	}
}

// Get fetches the last published summary for a run.
func (s *Store) Get(ctx context.Context, runID string) (*campaign.RunSummary, error) {
	data, err := s.client.Get(ctx, key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching run status: %w", err)
	}

	var summary campaign.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parsing run status: %w", err)
	}
	return &summary, nil
}
