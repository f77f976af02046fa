// Package enrich drives the second pipeline stage: claim a bounded
// batch of pending posts, call the model service per post, and finalize
// each post's status with failure bookkeeping.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/globaltime"
	"horse.fit/pulse/internal/llm"
	"horse.fit/pulse/internal/retry"
	"horse.fit/pulse/internal/status"
)

const (
	DefaultBatchSize   = 50
	DefaultWorkers     = 4
	MaxWorkers         = 8
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultCallTimeout = 25 * time.Second
)

// Store is the slice of the repository layer the processor needs.
type Store interface {
	ClaimPendingPosts(ctx context.Context, params db.ClaimParams) ([]db.ClaimedPost, error)
	InsertEnrichmentResult(ctx context.Context, result *db.EnrichmentResult) (bool, error)
	UpdatePostStatus(ctx context.Context, postID int64, from, to status.Status, at time.Time) error
	UpsertFailure(ctx context.Context, postID int64, lastError string, at time.Time) error
	ResetStuckProcessing(ctx context.Context, olderThan, now time.Time) (int64, error)
}

// Generator is the model service surface.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*llm.Generation, error)
	ModelName() string
	ModelVersion() string
}

type Options struct {
	BatchSize   int
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

func (o Options) normalized() Options {
	out := o
	if out.BatchSize < db.MinClaimBatchSize {
		out.BatchSize = DefaultBatchSize
	}
	if out.BatchSize > db.MaxClaimBatchSize {
		out.BatchSize = db.MaxClaimBatchSize
	}
	if out.Workers < 1 {
		out.Workers = DefaultWorkers
	}
	if out.Workers > MaxWorkers {
		out.Workers = MaxWorkers
	}
	if out.MaxAttempts < 1 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = DefaultBaseDelay
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = DefaultCallTimeout
	}
	return out
}

// BatchStats aggregates one enrichment pass for logging and alerting.
type BatchStats struct {
	Claimed          int   `json:"claimed"`
	Processed        int   `json:"processed"`
	Degraded         int   `json:"degraded"`
	Failed           int   `json:"failed"`
	Skipped          int   `json:"skipped"`
	TotalLatencyMS   int64 `json:"total_latency_ms"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type Processor struct {
	store     Store
	generator Generator
	logger    zerolog.Logger
	opts      Options
}

func NewProcessor(store Store, generator Generator, logger zerolog.Logger, opts Options) *Processor {
	return &Processor{
		store:     store,
		generator: generator,
		logger:    logger,
		opts:      opts.normalized(),
	}
}

// Run executes one enrichment pass: claim, process with a small worker
// pool, finalize. Per-post failures never abort the batch; only claim
// failures do.
func (p *Processor) Run(ctx context.Context) (BatchStats, error) {
	if p == nil || p.store == nil || p.generator == nil {
		return BatchStats{}, fmt.Errorf("enrichment processor is not initialized")
	}

	claimed, err := p.store.ClaimPendingPosts(ctx, db.ClaimParams{
		BatchSize:   p.opts.BatchSize,
		MaxAttempts: p.opts.MaxAttempts,
		Now:         globaltime.UTC(),
	})
	if err != nil {
		return BatchStats{}, fmt.Errorf("claim pending posts: %w", err)
	}

	stats := BatchStats{Claimed: len(claimed)}
	if len(claimed) == 0 {
		return stats, nil
	}

	workers := min(p.opts.Workers, len(claimed))
	jobs := make(chan db.ClaimedPost)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for post := range jobs {
				outcome := p.processOne(ctx, post)
				mu.Lock()
				stats.TotalLatencyMS += outcome.latencyMS
				stats.PromptTokens += outcome.promptTokens
				stats.CompletionTokens += outcome.completionTokens
				if outcome.skipped {
					stats.Skipped++
				} else if outcome.failed {
					stats.Failed++
				} else {
					stats.Processed++
					if outcome.degraded {
						stats.Degraded++
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, post := range claimed {
		jobs <- post
	}
	close(jobs)
	wg.Wait()

	p.logger.Info().
		Int("claimed", stats.Claimed).
		Int("processed", stats.Processed).
		Int("degraded", stats.Degraded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int64("total_latency_ms", stats.TotalLatencyMS).
		Msg("enrichment pass completed")
	return stats, nil
}

type postOutcome struct {
	failed           bool
	skipped          bool
	degraded         bool
	latencyMS        int64
	promptTokens     int64
	completionTokens int64
}

func (p *Processor) processOne(ctx context.Context, post db.ClaimedPost) postOutcome {
	prompt := BuildPrompt(post)

	var generation *llm.Generation
	policy := retry.Policy{
		MaxAttempts: p.opts.MaxAttempts,
		BaseDelay:   p.opts.BaseDelay,
		Multiplier:  2,
	}
	result := policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
		defer cancel()
		g, err := p.generator.Generate(callCtx, prompt)
		if err != nil {
			return err
		}
		generation = g
		return nil
	}, llm.IsRetryable)

	if result.Outcome != retry.Succeeded {
		if result.Outcome == retry.Aborted && ctx.Err() != nil {
			// The pass itself was cancelled, not the post. Leave it in
			// processing for the stuck reset to reclaim instead of
			// burning its attempt on a failed status.
			return postOutcome{skipped: true}
		}
		p.recordFailure(ctx, post, fmt.Sprintf("%s after %d attempt(s): %v", result.Outcome, result.Attempts, result.Err))
		return postOutcome{failed: true}
	}

	outcome := postOutcome{latencyMS: int64(generation.LatencyMS)}
	if generation.PromptTokens != nil {
		outcome.promptTokens = int64(*generation.PromptTokens)
	}
	if generation.CompletionTokens != nil {
		outcome.completionTokens = int64(*generation.CompletionTokens)
	}

	extraction, usable := llm.Extract(generation.Text)
	if !usable {
		p.recordFailure(ctx, post, "model response yielded no usable extraction")
		outcome.failed = true
		return outcome
	}
	outcome.degraded = extraction.Degraded

	now := globaltime.UTC()
	latency := generation.LatencyMS
	row := &db.EnrichmentResult{
		PostID:           post.PostID,
		ModelName:        p.generator.ModelName(),
		ModelVersion:     p.generator.ModelVersion(),
		SentimentLabel:   extraction.SentimentLabel,
		SentimentScore:   extraction.SentimentScore,
		Summary:          extraction.Summary,
		Reasoning:        extraction.Reasoning,
		Degraded:         extraction.Degraded,
		LatencyMS:        &latency,
		PromptTokens:     generation.PromptTokens,
		CompletionTokens: generation.CompletionTokens,
		ProcessedAt:      now,
	}

	// Result row first, status flip second: a crash between the two
	// leaves a claimable post with evidence, never an "enriched" post
	// without it.
	if _, err := p.store.InsertEnrichmentResult(ctx, row); err != nil {
		p.recordFailure(ctx, post, fmt.Sprintf("persist enrichment result: %v", err))
		outcome.failed = true
		return outcome
	}

	completion, err := status.CompletionFor(post.PendingStatus)
	if err != nil {
		p.recordFailure(ctx, post, err.Error())
		outcome.failed = true
		return outcome
	}
	if err := p.store.UpdatePostStatus(ctx, post.PostID, status.Processing, completion, now); err != nil {
		// The result row exists; a racing pass may already have flipped
		// the status. Log and count the post processed.
		p.logger.Warn().Err(err).Int64("post_id", post.PostID).Msg("status flip after result write failed")
	}
	return outcome
}

// recordFailure writes the failure ledger row and moves the post to
// failed. Ledger errors are logged, not propagated: the failure path
// must not fail the batch.
func (p *Processor) recordFailure(ctx context.Context, post db.ClaimedPost, message string) {
	now := globaltime.UTC()
	if err := p.store.UpsertFailure(ctx, post.PostID, message, now); err != nil {
		p.logger.Error().Err(err).Int64("post_id", post.PostID).Msg("failure ledger upsert failed")
	}
	if err := p.store.UpdatePostStatus(ctx, post.PostID, status.Processing, status.Failed, now); err != nil {
		p.logger.Error().Err(err).Int64("post_id", post.PostID).Msg("failed-status flip failed")
	}
	p.logger.Warn().
		Int64("post_id", post.PostID).
		Str("platform", post.Platform).
		Str("error", message).
		Msg("enrichment failed for post")
}

// ResetStuck revives posts stranded in processing longer than
// staleness, protecting against crashed or timed-out workers.
func (p *Processor) ResetStuck(ctx context.Context, staleness time.Duration) (int64, error) {
	if staleness <= 0 {
		return 0, fmt.Errorf("staleness must be positive")
	}
	now := globaltime.UTC()
	reset, err := p.store.ResetStuckProcessing(ctx, now.Add(-staleness), now)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		p.logger.Warn().Int64("reset", reset).Dur("staleness", staleness).Msg("reset stuck processing posts")
	}
	return reset, nil
}
