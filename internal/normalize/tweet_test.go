package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var testCollectedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func tweetContext(keywords ...string) Context {
	return Context{
		RunID:       7,
		CollectedAt: testCollectedAt,
		Keywords:    keywords,
	}
}

func TestNormalizeTweetMinimalPayload(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":    "123",
		"full_text": "hello",
	}

	post, err := NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if post.PlatformItemID != "123" {
		t.Errorf("platform item id = %q, want 123", post.PlatformItemID)
	}
	if post.Content != "hello" {
		t.Errorf("content = %q, want hello", post.Content)
	}
	if post.URL != nil {
		t.Errorf("url = %v, want nil without author handle", *post.URL)
	}
	if post.Author != nil {
		t.Errorf("author = %v, want nil", *post.Author)
	}
	if post.Status != "pending_sentiment" {
		t.Errorf("status = %q, want pending_sentiment", post.Status)
	}
	if !post.PostedAt.Equal(testCollectedAt) {
		t.Errorf("posted at = %v, want fallback to collected at", post.PostedAt)
	}
}

func TestNormalizeTweetMissingID(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"full_text": "no identifier here"}
	_, err := NormalizeTweet(raw, tweetContext())
	if err == nil {
		t.Fatalf("expected error")
	}
	var missing *MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredFieldError, got %T", err)
	}
	if missing.Field != "platform_item_id" {
		t.Errorf("field = %q, want platform_item_id", missing.Field)
	}
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Errorf("expected wrap of ErrMissingRequiredField")
	}
}

func TestNormalizeTweetMissingText(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"id_str": "9"}
	_, err := NormalizeTweet(raw, tweetContext())
	var missing *MissingRequiredFieldError
	if !errors.As(err, &missing) || missing.Field != "content" {
		t.Fatalf("expected content MissingRequiredFieldError, got %v", err)
	}
}

func TestNormalizeTweetCoalescePriority(t *testing.T) {
	t.Parallel()

	// id_str outranks id even when both are present; numeric ids are
	// formatted without an exponent.
	raw := map[string]any{
		"id":        float64(456),
		"id_str":    "123",
		"text":      "from text",
		"full_text": "from full_text",
		"lang":      "en",
	}
	post, err := NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if post.PlatformItemID != "123" {
		t.Errorf("id priority broken: got %q", post.PlatformItemID)
	}
	if post.Content != "from full_text" {
		t.Errorf("text priority broken: got %q", post.Content)
	}

	delete(raw, "id_str")
	post, err = NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if post.PlatformItemID != "456" {
		t.Errorf("numeric id fallback broken: got %q", post.PlatformItemID)
	}
}

func TestNormalizeTweetSynthesizesURL(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":    "99",
		"full_text": "synth url",
		"user":      map[string]any{"screen_name": "gopher"},
		"lang":      "en",
	}
	post, err := NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if post.URL == nil || *post.URL != "https://twitter.com/gopher/status/99" {
		t.Fatalf("url = %v, want synthesized permalink", post.URL)
	}
	if post.Author == nil || *post.Author != "gopher" {
		t.Fatalf("author = %v, want gopher", post.Author)
	}
}

func TestNormalizeTweetParsesTwitterDate(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":     "5",
		"full_text":  "dated",
		"created_at": "Mon Jan 05 10:30:00 +0000 2026",
		"lang":       "en",
	}
	post, err := NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)
	if !post.PostedAt.Equal(want) {
		t.Errorf("posted at = %v, want %v", post.PostedAt, want)
	}
}

func TestNormalizeTweetUnparseableDateFallsBack(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":     "6",
		"full_text":  "bad date",
		"created_at": "not a date at all",
		"lang":       "en",
	}
	post, err := NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !post.PostedAt.Equal(testCollectedAt) {
		t.Errorf("posted at = %v, want collected-at fallback", post.PostedAt)
	}

	var modelCtx map[string]string
	if err := json.Unmarshal(post.ModelContext, &modelCtx); err != nil {
		t.Fatalf("unmarshal model context: %v", err)
	}
	if modelCtx["date_field"] != "fallback_collected_at" {
		t.Errorf("model context date_field = %q", modelCtx["date_field"])
	}
}

func TestNormalizeTweetEngagement(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":         "7",
		"full_text":      "metrics",
		"favorite_count": float64(12),
		"retweet_count":  "3",
		"view_count":     float64(4400),
		"lang":           "en",
	}
	post, err := NormalizeTweet(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if post.Likes == nil || *post.Likes != 12 {
		t.Errorf("likes = %v, want 12", post.Likes)
	}
	if post.Retweets == nil || *post.Retweets != 3 {
		t.Errorf("retweets = %v, want 3", post.Retweets)
	}
	if post.Replies != nil {
		t.Errorf("replies = %v, want nil", *post.Replies)
	}
	if post.Views == nil || *post.Views != 4400 {
		t.Errorf("views = %v, want 4400", post.Views)
	}
}

func TestNormalizeTweetKeywordSnapshot(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":          "8",
		"full_text":       "keywords",
		"matchedKeywords": []any{"Copilot", "cursor", "unrelated-term", "COPILOT"},
		"lang":            "en",
	}
	post, err := NormalizeTweet(raw, tweetContext("copilot", "cursor", "claude code"))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	var snapshot []string
	if err := json.Unmarshal(post.KeywordSnapshot, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("snapshot = %v, want exactly the two evidenced configured terms", snapshot)
	}
	if snapshot[0] != "copilot" || snapshot[1] != "cursor" {
		t.Errorf("snapshot = %v, want canonical configured casing", snapshot)
	}
}

func TestNormalizeTweetDeterministic(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id_str":     "42",
		"full_text":  "same in, same out",
		"created_at": "2026-02-01T08:00:00Z",
		"user":       map[string]any{"screen_name": "dev"},
		"lang":       "en",
	}
	first, err := NormalizeTweet(raw, tweetContext("copilot"))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	second, err := NormalizeTweet(raw, tweetContext("copilot"))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if first.PlatformItemID != second.PlatformItemID ||
		first.Content != second.Content ||
		!first.PostedAt.Equal(second.PostedAt) {
		t.Errorf("normalization is not deterministic: %+v vs %+v", first, second)
	}
}
