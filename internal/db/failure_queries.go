package db

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxFailureErrorLength = 4000

// UpsertFailure records one enrichment failure. The first failure for a
// post creates the ledger row; subsequent failures bump the retry count
// and clear any earlier resolution.
func (p *Pool) UpsertFailure(ctx context.Context, postID int64, lastError string, at time.Time) error {
	msg := strings.TrimSpace(lastError)
	if msg == "" {
		msg = "unknown enrichment error"
	}
	msg = truncateOnRune(msg, maxFailureErrorLength)

	const q = `
INSERT INTO pulse.enrichment_failures (post_id, retry_count, last_error, last_attempt_at, created_at, updated_at)
VALUES ($1, 0, $2, $3, $3, $3)
ON CONFLICT (post_id) DO UPDATE
SET
	retry_count = pulse.enrichment_failures.retry_count + 1,
	last_error = EXCLUDED.last_error,
	last_attempt_at = EXCLUDED.last_attempt_at,
	resolved_at = NULL,
	updated_at = EXCLUDED.updated_at
`
	if _, err := p.Exec(ctx, q, postID, msg, at); err != nil {
		return fmt.Errorf("upsert enrichment failure for post %d: %w", postID, err)
	}
	return nil
}

// truncateOnRune cuts s to at most max bytes without splitting a
// multi-byte rune. Failure messages embed model output and response
// body snippets; a mid-rune cut would make the text parameter invalid
// UTF-8 and the insert itself would fail.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ResolveSettledFailures marks resolved every unresolved failure whose
// post has an enrichment result newer than the last failed attempt.
// Run by the reconcile command, not by the enrichment pass itself.
func (p *Pool) ResolveSettledFailures(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE pulse.enrichment_failures f
SET resolved_at = $1, updated_at = $1
WHERE f.resolved_at IS NULL
  AND EXISTS (
	SELECT 1
	FROM pulse.enrichment_results r
	WHERE r.post_id = f.post_id
	  AND r.processed_at > f.last_attempt_at
)
`
	tag, err := p.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("resolve settled failures: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Pool) CountUnresolvedFailures(ctx context.Context) (int64, error) {
	const q = `
SELECT COUNT(*)
FROM pulse.enrichment_failures
WHERE resolved_at IS NULL
`
	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unresolved failures: %w", err)
	}
	return count, nil
}

// InsertEnrichmentResult writes one enrichment result row. Duplicate
// (post, model, version) writes from a double-claimed post are dropped
// by the unique index; the bool reports whether a row was written.
func (p *Pool) InsertEnrichmentResult(ctx context.Context, result *EnrichmentResult) (bool, error) {
	if result == nil {
		return false, fmt.Errorf("enrichment result is nil")
	}

	const q = `
INSERT INTO pulse.enrichment_results (
	post_id,
	model_name,
	model_version,
	sentiment_label,
	sentiment_score,
	summary,
	reasoning,
	degraded,
	latency_ms,
	prompt_tokens,
	completion_tokens,
	processed_at,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (post_id, model_name, model_version) DO NOTHING
RETURNING result_id
`

	var resultID int64
	err := p.QueryRow(
		ctx,
		q,
		result.PostID,
		result.ModelName,
		result.ModelVersion,
		result.SentimentLabel,
		result.SentimentScore,
		result.Summary,
		result.Reasoning,
		result.Degraded,
		result.LatencyMS,
		result.PromptTokens,
		result.CompletionTokens,
		result.ProcessedAt,
	).Scan(&resultID)
	if err != nil {
		if IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert enrichment result for post %d: %w", result.PostID, err)
	}
	return true, nil
}
