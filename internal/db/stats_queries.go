package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PipelineStats is the aggregate view served to the dashboard.
type PipelineStats struct {
	PostsByStatus      map[string]int64 `json:"posts_by_status"`
	PostsByPlatform    map[string]int64 `json:"posts_by_platform"`
	PostsByCategory    map[string]int64 `json:"posts_by_category"`
	UnresolvedFailures int64            `json:"unresolved_failures"`
	RunningRuns        int64            `json:"running_runs"`
	LastCollectedAt    *time.Time       `json:"last_collected_at,omitempty"`
}

func (p *Pool) PipelineStats(ctx context.Context) (*PipelineStats, error) {
	stats := &PipelineStats{
		PostsByStatus:   map[string]int64{},
		PostsByPlatform: map[string]int64{},
		PostsByCategory: map[string]int64{},
	}

	if err := p.countInto(ctx, `SELECT status, COUNT(*) FROM pulse.posts GROUP BY status`, stats.PostsByStatus); err != nil {
		return nil, fmt.Errorf("count posts by status: %w", err)
	}
	if err := p.countInto(ctx, `SELECT platform, COUNT(*) FROM pulse.posts GROUP BY platform`, stats.PostsByPlatform); err != nil {
		return nil, fmt.Errorf("count posts by platform: %w", err)
	}
	if err := p.countInto(ctx, `SELECT COALESCE(category, 'uncategorized'), COUNT(*) FROM pulse.posts WHERE platform = 'rss' GROUP BY 1`, stats.PostsByCategory); err != nil {
		return nil, fmt.Errorf("count posts by category: %w", err)
	}

	unresolved, err := p.CountUnresolvedFailures(ctx)
	if err != nil {
		return nil, err
	}
	stats.UnresolvedFailures = unresolved

	const runningQ = `SELECT COUNT(*) FROM pulse.collection_runs WHERE status = 'running'`
	if err := p.QueryRow(ctx, runningQ).Scan(&stats.RunningRuns); err != nil {
		return nil, fmt.Errorf("count running runs: %w", err)
	}

	const lastQ = `SELECT MAX(collected_at) FROM pulse.posts`
	if err := p.QueryRow(ctx, lastQ).Scan(&stats.LastCollectedAt); err != nil {
		return nil, fmt.Errorf("select last collected at: %w", err)
	}

	return stats, nil
}

func (p *Pool) countInto(ctx context.Context, query string, dest map[string]int64) error {
	rows, err := p.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}

// PostFilter narrows the dashboard post listing.
type PostFilter struct {
	Platform string
	Status   string
	Category string
	Page     int
	PageSize int
}

// PostSummary is the dashboard-facing slice of a post.
type PostSummary struct {
	PostID          int64      `json:"post_id"`
	Platform        string     `json:"platform"`
	PlatformItemID  string     `json:"platform_item_id"`
	Title           *string    `json:"title,omitempty"`
	Content         string     `json:"content"`
	URL             *string    `json:"url,omitempty"`
	Author          *string    `json:"author,omitempty"`
	Language        *string    `json:"language,omitempty"`
	Category        *string    `json:"category,omitempty"`
	Status          string     `json:"status"`
	PostedAt        time.Time  `json:"posted_at"`
	CollectedAt     time.Time  `json:"collected_at"`
	SentimentLabel  *string    `json:"sentiment_label,omitempty"`
	SentimentScore  *float64   `json:"sentiment_score,omitempty"`
	Summary         *string    `json:"summary,omitempty"`
	EnrichAttempts  int        `json:"enrich_attempts"`
	StatusChangedAt time.Time  `json:"status_changed_at"`
}

func (p *Pool) ListPosts(ctx context.Context, filter PostFilter) ([]PostSummary, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 25
	}
	if pageSize > 200 {
		pageSize = 200
	}

	conditions := []string{"1=1"}
	args := []any{}
	next := 1
	addCondition := func(column, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		conditions = append(conditions, fmt.Sprintf("p.%s = $%d", column, next))
		args = append(args, strings.TrimSpace(value))
		next++
	}
	addCondition("platform", filter.Platform)
	addCondition("status", filter.Status)
	addCondition("category", filter.Category)
	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM pulse.posts p WHERE %s`, where)
	var total int64
	if err := p.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	listQuery := fmt.Sprintf(`
SELECT
	p.post_id,
	p.platform,
	p.platform_item_id,
	p.title,
	p.content,
	p.url,
	p.author,
	p.language,
	p.category,
	p.status,
	p.posted_at,
	p.collected_at,
	p.enrich_attempts,
	p.status_changed_at,
	r.sentiment_label,
	r.sentiment_score,
	r.summary
FROM pulse.posts p
LEFT JOIN LATERAL (
	SELECT sentiment_label, sentiment_score, summary
	FROM pulse.enrichment_results
	WHERE post_id = p.post_id
	ORDER BY processed_at DESC
	LIMIT 1
) r ON TRUE
WHERE %s
ORDER BY p.posted_at DESC
LIMIT $%d OFFSET $%d
`, where, next, next+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := p.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	posts := make([]PostSummary, 0, pageSize)
	for rows.Next() {
		var post PostSummary
		if err := rows.Scan(
			&post.PostID,
			&post.Platform,
			&post.PlatformItemID,
			&post.Title,
			&post.Content,
			&post.URL,
			&post.Author,
			&post.Language,
			&post.Category,
			&post.Status,
			&post.PostedAt,
			&post.CollectedAt,
			&post.EnrichAttempts,
			&post.StatusChangedAt,
			&post.SentimentLabel,
			&post.SentimentScore,
			&post.Summary,
		); err != nil {
			return nil, 0, fmt.Errorf("scan post summary: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate post summaries: %w", err)
	}
	return posts, total, nil
}
