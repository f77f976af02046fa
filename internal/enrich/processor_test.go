package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/llm"
	"horse.fit/pulse/internal/status"
)

type stubStore struct {
	mu       sync.Mutex
	claimed  []db.ClaimedPost
	claimErr error

	insertErr error
	results   []*db.EnrichmentResult
	statuses  map[int64]status.Status
	failures  map[int64]string
	events    map[int64][]string

	resetCount int64
	resetErr   error
}

func newStubStore(claimed ...db.ClaimedPost) *stubStore {
	return &stubStore{
		claimed:  claimed,
		statuses: make(map[int64]status.Status),
		failures: make(map[int64]string),
		events:   make(map[int64][]string),
	}
}

func (s *stubStore) ClaimPendingPosts(_ context.Context, params db.ClaimParams) ([]db.ClaimedPost, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	if len(s.claimed) > params.BatchSize {
		return s.claimed[:params.BatchSize], nil
	}
	return s.claimed, nil
}

func (s *stubStore) InsertEnrichmentResult(_ context.Context, result *db.EnrichmentResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	s.results = append(s.results, result)
	s.events[result.PostID] = append(s.events[result.PostID], "result")
	return true, nil
}

func (s *stubStore) UpdatePostStatus(_ context.Context, postID int64, _, to status.Status, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[postID] = to
	s.events[postID] = append(s.events[postID], "status:"+string(to))
	return nil
}

func (s *stubStore) UpsertFailure(_ context.Context, postID int64, lastError string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[postID] = lastError
	s.events[postID] = append(s.events[postID], "failure")
	return nil
}

func (s *stubStore) ResetStuckProcessing(_ context.Context, _, _ time.Time) (int64, error) {
	return s.resetCount, s.resetErr
}

type stubGenerator struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (*llm.Generation, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	prompt := 12
	completion := 34
	return &llm.Generation{
		Text:             g.text,
		LatencyMS:        7,
		PromptTokens:     &prompt,
		CompletionTokens: &completion,
	}, nil
}

func (g *stubGenerator) ModelName() string    { return "gemini-2.5-flash" }
func (g *stubGenerator) ModelVersion() string { return "2025-06" }

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func testOptions() Options {
	return Options{
		BatchSize:   10,
		Workers:     2,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		CallTimeout: time.Second,
	}
}

func claimedTweet(id int64) db.ClaimedPost {
	return db.ClaimedPost{
		PostID:         id,
		Platform:       "twitter",
		PlatformItemID: fmt.Sprintf("%d", id),
		Content:        "Copilot saved me an hour today",
		PendingStatus:  status.PendingSentiment,
	}
}

func claimedArticle(id int64) db.ClaimedPost {
	title := "Agents in the IDE"
	return db.ClaimedPost{
		PostID:         id,
		Platform:       "rss",
		PlatformItemID: fmt.Sprintf("feed-1:%d", id),
		Title:          &title,
		Content:        "A long read on coding agents.",
		PendingStatus:  status.PendingSummary,
	}
}

func TestProcessorRunSuccess(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedTweet(1), claimedArticle(2))
	gen := &stubGenerator{text: `{"sentiment": "positive", "score": 0.8, "summary": "Upbeat take.", "reasoning": "Praises the tool."}`}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Claimed != 2 || stats.Processed != 2 || stats.Failed != 0 || stats.Degraded != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.TotalLatencyMS != 14 || stats.PromptTokens != 24 || stats.CompletionTokens != 68 {
		t.Fatalf("unexpected usage aggregation: %+v", stats)
	}
	if got := store.statuses[1]; got != status.Processed {
		t.Fatalf("tweet status = %s, want %s", got, status.Processed)
	}
	if got := store.statuses[2]; got != status.Summarized {
		t.Fatalf("article status = %s, want %s", got, status.Summarized)
	}
	if len(store.results) != 2 {
		t.Fatalf("results = %d, want 2", len(store.results))
	}
	for _, res := range store.results {
		if res.ModelName != "gemini-2.5-flash" || res.ModelVersion != "2025-06" {
			t.Fatalf("result model identity = %s/%s", res.ModelName, res.ModelVersion)
		}
		if res.SentimentLabel == nil || *res.SentimentLabel != "positive" {
			t.Fatalf("sentiment label = %v", res.SentimentLabel)
		}
	}
}

func TestProcessorWritesResultBeforeStatus(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedTweet(5))
	gen := &stubGenerator{text: `{"sentiment": "neutral", "score": 0, "summary": "Flat.", "reasoning": "No signal."}`}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	events := store.events[5]
	if len(events) != 2 || events[0] != "result" || events[1] != "status:"+string(status.Processed) {
		t.Fatalf("event order = %v", events)
	}
}

func TestProcessorRetryableErrorExhausts(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedTweet(3))
	gen := &stubGenerator{err: &llm.ServiceError{Kind: llm.FailureRetryable, StatusCode: 503, Message: "upstream unavailable"}}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.Processed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := gen.callCount(); got != 2 {
		t.Fatalf("generator calls = %d, want 2", got)
	}
	if got := store.statuses[3]; got != status.Failed {
		t.Fatalf("status = %s, want %s", got, status.Failed)
	}
	msg, ok := store.failures[3]
	if !ok {
		t.Fatal("failure ledger entry missing")
	}
	if !strings.Contains(msg, "exhausted") || !strings.Contains(msg, "upstream unavailable") {
		t.Fatalf("failure message = %q", msg)
	}
}

func TestProcessorTerminalErrorDoesNotRetry(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedTweet(4))
	gen := &stubGenerator{err: &llm.ServiceError{Kind: llm.FailureTerminal, StatusCode: 400, Message: "bad request"}}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := gen.callCount(); got != 1 {
		t.Fatalf("generator calls = %d, want 1", got)
	}
	if got := store.statuses[4]; got != status.Failed {
		t.Fatalf("status = %s, want %s", got, status.Failed)
	}
}

func TestProcessorDegradedExtraction(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedArticle(6))
	gen := &stubGenerator{text: "The model rambled in prose instead of JSON."}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 1 || stats.Degraded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.results) != 1 || !store.results[0].Degraded {
		t.Fatal("expected a degraded result row")
	}
	if got := store.statuses[6]; got != status.Summarized {
		t.Fatalf("status = %s, want %s", got, status.Summarized)
	}
}

func TestProcessorResultInsertFailure(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedTweet(7))
	store.insertErr = errors.New("database unavailable")
	gen := &stubGenerator{text: `{"sentiment": "positive", "score": 0.5, "summary": "Fine.", "reasoning": "Fine."}`}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.Processed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := store.statuses[7]; got != status.Failed {
		t.Fatalf("status = %s, want %s", got, status.Failed)
	}
	if _, ok := store.failures[7]; !ok {
		t.Fatal("failure ledger entry missing")
	}
}

func TestProcessorEmptyClaim(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	gen := &stubGenerator{text: "{}"}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats != (BatchStats{}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if gen.callCount() != 0 {
		t.Fatal("generator should not be called on an empty claim")
	}
}

func TestProcessorContextCancelLeavesPostsClaimable(t *testing.T) {
	t.Parallel()

	store := newStubStore(claimedTweet(8), claimedArticle(9))
	gen := &stubGenerator{text: "{}"}
	p := NewProcessor(store, gen, zerolog.Nop(), testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Skipped != 2 || stats.Failed != 0 || stats.Processed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.events[8]) != 0 || len(store.events[9]) != 0 {
		t.Fatalf("cancelled pass must not touch post state: %v %v", store.events[8], store.events[9])
	}
	if _, ok := store.failures[8]; ok {
		t.Fatal("cancelled pass must not write failure ledger rows")
	}
	if gen.callCount() != 0 {
		t.Fatal("generator should not be called after cancellation")
	}
}

func TestOptionsNormalized(t *testing.T) {
	t.Parallel()

	defaults := Options{}.normalized()
	if defaults.BatchSize != DefaultBatchSize || defaults.Workers != DefaultWorkers {
		t.Fatalf("zero options = %+v", defaults)
	}
	if defaults.MaxAttempts != DefaultMaxAttempts || defaults.BaseDelay != DefaultBaseDelay || defaults.CallTimeout != DefaultCallTimeout {
		t.Fatalf("zero options = %+v", defaults)
	}

	negative := Options{BatchSize: -1, Workers: -1, MaxAttempts: -1, BaseDelay: -time.Second, CallTimeout: -time.Second}.normalized()
	if negative.BatchSize != DefaultBatchSize || negative.Workers != DefaultWorkers || negative.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("negative options = %+v", negative)
	}

	oversized := Options{BatchSize: 9999, Workers: 99}.normalized()
	if oversized.BatchSize != db.MaxClaimBatchSize {
		t.Fatalf("batch size = %d, want %d", oversized.BatchSize, db.MaxClaimBatchSize)
	}
	if oversized.Workers != MaxWorkers {
		t.Fatalf("workers = %d, want %d", oversized.Workers, MaxWorkers)
	}

	within := Options{BatchSize: 25, Workers: 3, MaxAttempts: 5, BaseDelay: time.Second, CallTimeout: time.Minute}.normalized()
	if within != (Options{BatchSize: 25, Workers: 3, MaxAttempts: 5, BaseDelay: time.Second, CallTimeout: time.Minute}) {
		t.Fatalf("in-range options changed: %+v", within)
	}
}

func TestProcessorClaimFailureAborts(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.claimErr = errors.New("connection reset")
	p := NewProcessor(store, &stubGenerator{}, zerolog.Nop(), testOptions())

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error when claiming fails")
	}
}

func TestResetStuck(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.resetCount = 3
	p := NewProcessor(store, &stubGenerator{}, zerolog.Nop(), testOptions())

	reset, err := p.ResetStuck(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ResetStuck: %v", err)
	}
	if reset != 3 {
		t.Fatalf("reset = %d, want 3", reset)
	}
	if _, err := p.ResetStuck(context.Background(), 0); err == nil {
		t.Fatal("expected error for non-positive staleness")
	}
}

func TestBuildPromptPlatforms(t *testing.T) {
	t.Parallel()

	tweet := BuildPrompt(claimedTweet(1))
	if !strings.Contains(tweet, "sentiment of the following social media post") {
		t.Fatalf("tweet prompt = %q", tweet)
	}
	article := BuildPrompt(claimedArticle(2))
	if !strings.Contains(article, "Summarize the following article") {
		t.Fatalf("article prompt = %q", article)
	}
	if !strings.Contains(article, "Title: Agents in the IDE") {
		t.Fatal("article prompt missing title")
	}
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	post := claimedArticle(3)
	post.Content = strings.Repeat("a", promptContentMaxLen-1) + strings.Repeat("世", 5)
	prompt := BuildPrompt(post)
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains invalid UTF-8 after truncation")
	}
	if strings.Contains(prompt, "世") {
		t.Fatal("straddling rune should have been dropped, not kept")
	}
}
