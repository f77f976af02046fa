package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"horse.fit/pulse/internal/status"
)

const (
	// MinClaimBatchSize and MaxClaimBatchSize bound one enrichment claim.
	MinClaimBatchSize = 1
	MaxClaimBatchSize = 200
)

var ErrInvalidTransition = fmt.Errorf("status transition not allowed")

// clampClaimBatch bounds one claim request to
// [MinClaimBatchSize, MaxClaimBatchSize].
func clampClaimBatch(n int) int {
	if n < MinClaimBatchSize {
		return MinClaimBatchSize
	}
	if n > MaxClaimBatchSize {
		return MaxClaimBatchSize
	}
	return n
}

// FilterExistingPlatformIDs is the deduplication gate: given candidate
// natural-key ids for one platform, it returns the set already present.
// It is an optimization ahead of the unique index, not the sole
// correctness mechanism; inserts still use ON CONFLICT DO NOTHING.
func (p *Pool) FilterExistingPlatformIDs(ctx context.Context, platform string, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	const q = `
SELECT platform_item_id
FROM pulse.posts
WHERE platform = $1
  AND platform_item_id = ANY($2::text[])
`
	rows, err := p.Query(ctx, q, platform, pgTextArray(ids))
	if err != nil {
		return nil, fmt.Errorf("select existing platform ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan existing platform id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing platform ids: %w", err)
	}
	return existing, nil
}

// InsertPostIfNew persists one normalized post unless its natural key
// already exists. Returns the new post id and whether a row was written.
func (p *Pool) InsertPostIfNew(ctx context.Context, post *Post) (int64, bool, error) {
	if post == nil {
		return 0, false, fmt.Errorf("post is nil")
	}

	const q = `
INSERT INTO pulse.posts (
	platform,
	platform_item_id,
	feed_id,
	raw_item_id,
	run_id,
	title,
	content,
	url,
	author,
	language,
	posted_at,
	collected_at,
	likes,
	retweets,
	replies,
	views,
	keyword_snapshot,
	category,
	status,
	status_changed_at,
	enrich_attempts,
	model_context,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17::jsonb, $18, $19, $20, 0, $21::jsonb, $20, $20)
ON CONFLICT (platform, platform_item_id) DO NOTHING
RETURNING post_id
`

	var postID int64
	err := p.QueryRow(
		ctx,
		q,
		post.Platform,
		post.PlatformItemID,
		post.FeedID,
		post.RawItemID,
		post.RunID,
		post.Title,
		post.Content,
		post.URL,
		post.Author,
		post.Language,
		post.PostedAt,
		post.CollectedAt,
		post.Likes,
		post.Retweets,
		post.Replies,
		post.Views,
		nullableJSON(post.KeywordSnapshot),
		post.Category,
		post.Status,
		post.StatusChangedAt,
		nullableJSON(post.ModelContext),
	).Scan(&postID)
	if err != nil {
		if IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insert post: %w", err)
	}
	return postID, true, nil
}

// ClaimParams bounds one enrichment claim.
type ClaimParams struct {
	BatchSize   int
	MaxAttempts int
	Now         time.Time
}

// ClaimedPost is the slice of a post the enrichment processor needs.
type ClaimedPost struct {
	PostID         int64
	Platform       string
	PlatformItemID string
	Title          *string
	Content        string
	URL            *string
	PendingStatus  status.Status
	EnrichAttempts int
}

// ClaimPendingPosts atomically claims up to BatchSize pending posts,
// oldest collected first, flipping them to processing and incrementing
// their attempt counter. SKIP LOCKED keeps overlapping cron invocations
// from double-claiming the same rows.
func (p *Pool) ClaimPendingPosts(ctx context.Context, params ClaimParams) ([]ClaimedPost, error) {
	batch := clampClaimBatch(params.BatchSize)
	maxAttempts := params.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	const q = `
UPDATE pulse.posts
SET
	status = 'processing',
	status_changed_at = $1,
	enrich_attempts = enrich_attempts + 1,
	updated_at = $1
WHERE post_id IN (
	SELECT post_id
	FROM pulse.posts
	WHERE status IN ('pending_sentiment', 'pending_summary')
	  AND enrich_attempts < $2
	ORDER BY collected_at ASC
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
RETURNING post_id, platform, platform_item_id, title, content, url, enrich_attempts
`

	rows, err := p.Query(ctx, q, now, maxAttempts, batch)
	if err != nil {
		return nil, fmt.Errorf("claim pending posts: %w", err)
	}
	defer rows.Close()

	claimed := make([]ClaimedPost, 0, batch)
	for rows.Next() {
		var post ClaimedPost
		if err := rows.Scan(
			&post.PostID,
			&post.Platform,
			&post.PlatformItemID,
			&post.Title,
			&post.Content,
			&post.URL,
			&post.EnrichAttempts,
		); err != nil {
			return nil, fmt.Errorf("scan claimed post: %w", err)
		}
		pending, err := status.PendingForPlatform(post.Platform)
		if err != nil {
			return nil, fmt.Errorf("claimed post %d: %w", post.PostID, err)
		}
		post.PendingStatus = pending
		claimed = append(claimed, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed posts: %w", err)
	}
	return claimed, nil
}

// UpdatePostStatus applies one transition from the status table. The
// WHERE clause re-checks the from-state so a concurrent writer cannot
// be silently overwritten; zero affected rows is reported as an invalid
// transition.
func (p *Pool) UpdatePostStatus(ctx context.Context, postID int64, from, to status.Status, at time.Time) error {
	if !status.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	const q = `
UPDATE pulse.posts
SET status = $1, status_changed_at = $2, updated_at = $2
WHERE post_id = $3 AND status = $4
`
	tag, err := p.Exec(ctx, q, string(to), at, postID, string(from))
	if err != nil {
		return fmt.Errorf("update post %d status: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: post %d is no longer %s", ErrInvalidTransition, postID, from)
	}
	return nil
}

// ResetStuckProcessing revives posts stranded in processing past the
// staleness cutoff, returning them to their platform's pending state.
// The attempt counter is left untouched.
func (p *Pool) ResetStuckProcessing(ctx context.Context, olderThan, now time.Time) (int64, error) {
	const q = `
UPDATE pulse.posts
SET
	status = CASE platform WHEN 'twitter' THEN 'pending_sentiment' ELSE 'pending_summary' END,
	status_changed_at = $1,
	updated_at = $1
WHERE status = 'processing'
  AND status_changed_at < $2
`
	tag, err := p.Exec(ctx, q, now, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReplayFailed revives terminally failed posts back to pending so a
// later enrichment pass retries them. Without force, only posts with
// attempts below maxAttempts are revived; force also resets the
// attempt counter.
func (p *Pool) ReplayFailed(ctx context.Context, maxAttempts int, force bool, now time.Time) (int64, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var q string
	args := []any{now}
	if force {
		q = `
UPDATE pulse.posts
SET
	status = CASE platform WHEN 'twitter' THEN 'pending_sentiment' ELSE 'pending_summary' END,
	status_changed_at = $1,
	enrich_attempts = 0,
	updated_at = $1
WHERE status = 'failed'
`
	} else {
		q = `
UPDATE pulse.posts
SET
	status = CASE platform WHEN 'twitter' THEN 'pending_sentiment' ELSE 'pending_summary' END,
	status_changed_at = $1,
	updated_at = $1
WHERE status = 'failed'
  AND enrich_attempts < $2
`
		args = append(args, maxAttempts)
	}

	tag, err := p.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("replay failed posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

// pgTextArray renders a text[] literal for ANY($n) parameters. gorm's
// Raw path does not expand Go slices for postgres arrays.
func pgTextArray(values []string) string {
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += `"` + escapePGArrayElement(v) + `"`
	}
	return out + "}"
}

func escapePGArrayElement(v string) string {
	escaped := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '\\', '"':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, v[i])
	}
	return string(escaped)
}
