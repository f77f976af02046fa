package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const maxRunErrorLength = 4000

// InsertRunParams starts one collection run ledger entry.
type InsertRunParams struct {
	RunUUID       string
	TriggerSource string
	Platform      string
	KeywordBatch  json.RawMessage
	StartedAt     time.Time
}

func (p *Pool) InsertRun(ctx context.Context, params InsertRunParams) (int64, error) {
	const q = `
INSERT INTO pulse.collection_runs (
	run_uuid,
	trigger_source,
	platform,
	keyword_batch,
	started_at,
	status,
	new_count,
	duplicate_count,
	error_count,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4::jsonb, $5, 'running', 0, 0, 0, $5, $5)
RETURNING run_id
`

	var runID int64
	err := p.QueryRow(
		ctx,
		q,
		params.RunUUID,
		params.TriggerSource,
		params.Platform,
		nullableJSON(params.KeywordBatch),
		params.StartedAt,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert collection run: %w", err)
	}
	return runID, nil
}

// FinalizeRunParams closes out a run ledger entry.
type FinalizeRunParams struct {
	RunID          int64
	Status         string
	NewCount       int
	DuplicateCount int
	ErrorCount     int
	Errors         []string
	Metadata       json.RawMessage
	FinishedAt     time.Time
}

func (p *Pool) FinalizeRun(ctx context.Context, params FinalizeRunParams) error {
	errorsJSON, err := marshalRunErrors(params.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}

	const q = `
UPDATE pulse.collection_runs
SET
	status = $2,
	new_count = $3,
	duplicate_count = $4,
	error_count = $5,
	errors = $6::jsonb,
	metadata = COALESCE($7::jsonb, metadata),
	finished_at = $8,
	updated_at = $8
WHERE run_id = $1
`
	tag, err := p.Exec(
		ctx,
		q,
		params.RunID,
		params.Status,
		params.NewCount,
		params.DuplicateCount,
		params.ErrorCount,
		errorsJSON,
		nullableJSON(params.Metadata),
		params.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finalize collection run %d: %w", params.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection run %d not found", params.RunID)
	}
	return nil
}

// RunSummary is the dashboard-facing slice of a collection run.
type RunSummary struct {
	RunID          int64           `json:"run_id"`
	RunUUID        string          `json:"run_uuid"`
	TriggerSource  string          `json:"trigger_source"`
	Platform       string          `json:"platform"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	Status         string          `json:"status"`
	NewCount       int             `json:"new_count"`
	DuplicateCount int             `json:"duplicate_count"`
	ErrorCount     int             `json:"error_count"`
	Errors         json.RawMessage `json:"errors,omitempty"`
}

func (p *Pool) ListRecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
SELECT
	run_id,
	run_uuid,
	trigger_source,
	platform,
	started_at,
	finished_at,
	status,
	new_count,
	duplicate_count,
	error_count,
	errors
FROM pulse.collection_runs
ORDER BY started_at DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0, limit)
	for rows.Next() {
		var run RunSummary
		var errorsRaw *string
		if err := rows.Scan(
			&run.RunID,
			&run.RunUUID,
			&run.TriggerSource,
			&run.Platform,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.NewCount,
			&run.DuplicateCount,
			&run.ErrorCount,
			&errorsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		if errorsRaw != nil {
			run.Errors = json.RawMessage(*errorsRaw)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summaries: %w", err)
	}
	return runs, nil
}

// InsertRawItem appends one crawler payload audit row.
func (p *Pool) InsertRawItem(ctx context.Context, item *RawItem) (int64, error) {
	if item == nil {
		return 0, fmt.Errorf("raw item is nil")
	}

	const q = `
INSERT INTO pulse.raw_items (run_id, platform, payload, payload_hash, collected_at, created_at)
VALUES ($1, $2, $3::jsonb, $4, $5, $5)
RETURNING raw_item_id
`

	var rawItemID int64
	err := p.QueryRow(ctx, q, item.RunID, item.Platform, string(item.Payload), item.PayloadHash, item.CollectedAt).Scan(&rawItemID)
	if err != nil {
		return 0, fmt.Errorf("insert raw item: %w", err)
	}
	return rawItemID, nil
}

// PurgeRawItemsOlderThan soft-deletes raw payload rows past the
// retention window. Audit rows are never hard-deleted here.
func (p *Pool) PurgeRawItemsOlderThan(ctx context.Context, cutoff, now time.Time) (int64, error) {
	const q = `
UPDATE pulse.raw_items
SET deleted_at = $1
WHERE deleted_at IS NULL
  AND collected_at < $2
`
	tag, err := p.Exec(ctx, q, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge raw items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func marshalRunErrors(errs []string) (string, error) {
	truncated := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e)
		if len(msg) > maxRunErrorLength {
			msg = msg[:maxRunErrorLength]
		}
		truncated = append(truncated, msg)
	}
	out, err := json.Marshal(truncated)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
