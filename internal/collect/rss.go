package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/pulse/internal/category"
	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/feeds"
	"horse.fit/pulse/internal/globaltime"
	"horse.fit/pulse/internal/keywords"
	"horse.fit/pulse/internal/normalize"
)

const platformRSS = "rss"

// FeedSource is the aggregator surface the orchestrator needs.
type FeedSource interface {
	ListEntries(ctx context.Context, params feeds.ListParams) (*feeds.ListResult, error)
}

type RSSCollector struct {
	store    RunStore
	source   FeedSource
	resolver *category.Resolver
	logger   zerolog.Logger
}

func NewRSSCollector(store RunStore, source FeedSource, resolver *category.Resolver, logger zerolog.Logger) *RSSCollector {
	if resolver == nil {
		resolver = category.NewResolver(category.DefaultConfig())
	}
	return &RSSCollector{store: store, source: source, resolver: resolver, logger: logger}
}

// Collect runs one feed collection pass. Entries are normalized,
// categorized, and deduplicated the same way tweets are; the category
// resolver is the only feed-specific step.
func (c *RSSCollector) Collect(ctx context.Context, batch *keywords.Batch, triggerSource string) (*Result, error) {
	if batch == nil {
		return nil, fmt.Errorf("keyword batch is required")
	}

	startedAt := globaltime.UTC()
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal keyword batch: %w", err)
	}

	result := &Result{RunUUID: uuid.NewString(), Platform: platformRSS}
	runID, err := c.store.InsertRun(ctx, db.InsertRunParams{
		RunUUID:       result.RunUUID,
		TriggerSource: triggerSource,
		Platform:      platformRSS,
		KeywordBatch:  batchJSON,
		StartedAt:     startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("open collection run: %w", err)
	}
	result.RunID = runID

	logger := c.logger.With().Int64("run_id", runID).Str("platform", platformRSS).Logger()
	var t tally

	listed, err := c.source.ListEntries(ctx, listParams(batch, startedAt))
	if err != nil {
		t.recordError("feeds: %v", err)
		logger.Error().Err(err).Msg("feed collection source failed")
		if ferr := finalize(ctx, c.store, runID, &t, result); ferr != nil {
			return nil, ferr
		}
		return result, nil
	}
	t.fetched = len(listed.Entries)

	candidates := make([]*db.Post, 0, len(listed.Entries))
	for i, raw := range listed.Entries {
		rawItemID, err := storeRawItem(ctx, c.store, runID, platformRSS, raw, startedAt)
		if err != nil {
			t.recordError("entry %d: %v", i, err)
			continue
		}

		post, meta, err := normalize.NormalizeRSSEntry(raw, normalize.Context{
			RunID:       runID,
			RawItemID:   rawItemID,
			CollectedAt: startedAt,
			Keywords:    batch.Keywords,
		})
		if err != nil {
			t.recordError("entry %d: %v", i, err)
			continue
		}

		cat := string(c.resolver.Resolve(categoryArticle(post, meta)))
		post.Category = &cat
		candidates = append(candidates, post)
	}

	persistCandidates(ctx, c.store, platformRSS, candidates, &t)

	if err := finalize(ctx, c.store, runID, &t, result); err != nil {
		return nil, err
	}
	logger.Info().
		Str("status", result.Status).
		Int("fetched", result.FetchedCount).
		Int("new", result.NewCount).
		Int("duplicates", result.DuplicateCount).
		Int("errors", result.ErrorCount).
		Msg("feed collection run finished")
	return result, nil
}

func listParams(batch *keywords.Batch, now time.Time) feeds.ListParams {
	params := feeds.ListParams{Limit: batch.MaxItems}
	if batch.PublishedAfterHours > 0 {
		after := now.Add(-time.Duration(batch.PublishedAfterHours) * time.Hour)
		params.PublishedAfter = &after
	}
	return params
}

func categoryArticle(post *db.Post, meta normalize.FeedMeta) category.Article {
	article := category.Article{
		Content:    post.Content,
		FeedTitle:  meta.FeedTitle,
		FolderName: meta.FolderName,
	}
	if post.Title != nil {
		article.Title = *post.Title
	}
	if post.URL != nil {
		article.URL = *post.URL
	}
	return article
}
