package collect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/pulse/internal/crawler"
	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/globaltime"
	"horse.fit/pulse/internal/keywords"
	"horse.fit/pulse/internal/normalize"
)

const platformTwitter = "twitter"

// TweetSource is the crawler surface the orchestrator needs.
type TweetSource interface {
	StartRun(ctx context.Context, params crawler.RunParams) (*crawler.RunHandle, error)
	FetchResults(ctx context.Context, resultLocation string) ([]map[string]any, error)
}

type TweetCollector struct {
	store  RunStore
	source TweetSource
	logger zerolog.Logger
}

func NewTweetCollector(store RunStore, source TweetSource, logger zerolog.Logger) *TweetCollector {
	return &TweetCollector{store: store, source: source, logger: logger}
}

// Collect runs one tweet collection pass for the given keyword batch.
// A source outage fails the run on the ledger; per-item problems are
// counted and the pass continues. The returned error is reserved for
// bookkeeping failures, where no trustworthy ledger entry exists.
func (c *TweetCollector) Collect(ctx context.Context, batch *keywords.Batch, triggerSource string) (*Result, error) {
	if batch == nil || len(batch.Keywords) == 0 {
		return nil, fmt.Errorf("keyword batch is empty")
	}

	startedAt := globaltime.UTC()
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal keyword batch: %w", err)
	}

	result := &Result{RunUUID: uuid.NewString(), Platform: platformTwitter}
	runID, err := c.store.InsertRun(ctx, db.InsertRunParams{
		RunUUID:       result.RunUUID,
		TriggerSource: triggerSource,
		Platform:      platformTwitter,
		KeywordBatch:  batchJSON,
		StartedAt:     startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("open collection run: %w", err)
	}
	result.RunID = runID

	logger := c.logger.With().Int64("run_id", runID).Str("platform", platformTwitter).Logger()
	var t tally

	items, err := c.fetch(ctx, batch)
	if err != nil {
		t.recordError("crawler: %v", err)
		logger.Error().Err(err).Msg("tweet collection source failed")
		if ferr := finalize(ctx, c.store, runID, &t, result); ferr != nil {
			return nil, ferr
		}
		return result, nil
	}
	t.fetched = len(items)

	candidates := make([]*db.Post, 0, len(items))
	for i, raw := range items {
		rawItemID, err := storeRawItem(ctx, c.store, runID, platformTwitter, raw, startedAt)
		if err != nil {
			t.recordError("item %d: %v", i, err)
			continue
		}

		post, err := normalize.NormalizeTweet(raw, normalize.Context{
			RunID:       runID,
			RawItemID:   rawItemID,
			CollectedAt: startedAt,
			Keywords:    batch.Keywords,
		})
		if err != nil {
			t.recordError("item %d: %v", i, err)
			continue
		}
		candidates = append(candidates, post)
	}

	persistCandidates(ctx, c.store, platformTwitter, candidates, &t)

	if err := finalize(ctx, c.store, runID, &t, result); err != nil {
		return nil, err
	}
	logger.Info().
		Str("status", result.Status).
		Int("fetched", result.FetchedCount).
		Int("new", result.NewCount).
		Int("duplicates", result.DuplicateCount).
		Int("errors", result.ErrorCount).
		Msg("tweet collection run finished")
	return result, nil
}

func (c *TweetCollector) fetch(ctx context.Context, batch *keywords.Batch) ([]map[string]any, error) {
	handle, err := c.source.StartRun(ctx, crawler.RunParams{
		Keywords: batch.Keywords,
		MaxItems: batch.MaxItems,
	})
	if err != nil {
		return nil, err
	}
	return c.source.FetchResults(ctx, handle.ResultLocation)
}
