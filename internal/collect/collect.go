// Package collect orchestrates the ingestion stage: fetch raw items
// from an external source, keep an audit copy, normalize, deduplicate
// by natural key, and close out the run ledger.
package collect

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/globaltime"
)

// Run status values recorded on the collection ledger. A run with zero
// errors succeeded; errors alongside new posts is a partial success;
// errors and nothing new means the run failed.
const (
	RunSucceeded      = "succeeded"
	RunPartialSuccess = "partial_success"
	RunFailed         = "failed"
)

// maxRunErrors bounds the error list stored on a run; past it only the
// count keeps growing.
const maxRunErrors = 50

// DeriveRunStatus is the single source of truth for a run's final
// status.
func DeriveRunStatus(newCount, errorCount int) string {
	switch {
	case errorCount == 0:
		return RunSucceeded
	case newCount > 0:
		return RunPartialSuccess
	default:
		return RunFailed
	}
}

// RunStore is the repository slice the orchestrators need.
type RunStore interface {
	InsertRun(ctx context.Context, params db.InsertRunParams) (int64, error)
	FinalizeRun(ctx context.Context, params db.FinalizeRunParams) error
	InsertRawItem(ctx context.Context, item *db.RawItem) (int64, error)
	FilterExistingPlatformIDs(ctx context.Context, platform string, ids []string) (map[string]struct{}, error)
	InsertPostIfNew(ctx context.Context, post *db.Post) (int64, bool, error)
}

// Result summarizes one finished collection run.
type Result struct {
	RunID          int64    `json:"run_id"`
	RunUUID        string   `json:"run_uuid"`
	Platform       string   `json:"platform"`
	Status         string   `json:"status"`
	FetchedCount   int      `json:"fetched_count"`
	NewCount       int      `json:"new_count"`
	DuplicateCount int      `json:"duplicate_count"`
	ErrorCount     int      `json:"error_count"`
	Errors         []string `json:"errors,omitempty"`
}

// tally accumulates per-item outcomes while a run is in flight.
type tally struct {
	fetched    int
	newCount   int
	duplicates int
	errorCount int
	errors     []string
}

func (t *tally) recordError(format string, args ...any) {
	t.errorCount++
	if len(t.errors) < maxRunErrors {
		t.errors = append(t.errors, fmt.Sprintf(format, args...))
	}
}

// persistCandidates runs the dedup gate and inserts what survives.
// The gate is one batched lookup plus an in-flight key set; the unique
// index underneath turns any race into a counted duplicate instead of
// an error.
func persistCandidates(ctx context.Context, store RunStore, platform string, candidates []*db.Post, t *tally) {
	if len(candidates) == 0 {
		return
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.PlatformItemID)
	}
	existing, err := store.FilterExistingPlatformIDs(ctx, platform, ids)
	if err != nil {
		// Fall back to insert-time conflict handling.
		existing = map[string]struct{}{}
		t.recordError("dedup lookup: %v", err)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := c.PlatformItemID
		if _, dup := existing[key]; dup {
			t.duplicates++
			continue
		}
		if _, dup := seen[key]; dup {
			t.duplicates++
			continue
		}
		seen[key] = struct{}{}

		_, inserted, err := store.InsertPostIfNew(ctx, c)
		if err != nil {
			t.recordError("insert post %s/%s: %v", platform, key, err)
			continue
		}
		if inserted {
			t.newCount++
		} else {
			t.duplicates++
		}
	}
}

// storeRawItem keeps the audit copy of one source payload and returns
// its row id for provenance on the normalized post.
func storeRawItem(ctx context.Context, store RunStore, runID int64, platform string, raw map[string]any, collectedAt time.Time) (*int64, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	hash := sha256.Sum256(payload)
	rawItemID, err := store.InsertRawItem(ctx, &db.RawItem{
		RunID:       runID,
		Platform:    platform,
		Payload:     payload,
		PayloadHash: hash[:],
		CollectedAt: collectedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("store raw item: %w", err)
	}
	return &rawItemID, nil
}

func finalize(ctx context.Context, store RunStore, runID int64, t *tally, result *Result) error {
	result.Status = DeriveRunStatus(t.newCount, t.errorCount)
	result.FetchedCount = t.fetched
	result.NewCount = t.newCount
	result.DuplicateCount = t.duplicates
	result.ErrorCount = t.errorCount
	result.Errors = t.errors

	return store.FinalizeRun(ctx, db.FinalizeRunParams{
		RunID:          runID,
		Status:         result.Status,
		NewCount:       t.newCount,
		DuplicateCount: t.duplicates,
		ErrorCount:     t.errorCount,
		Errors:         t.errors,
		FinishedAt:     globaltime.UTC(),
	})
}
