package normalize

import (
	"errors"
	"testing"
)

func TestNormalizeRSSEntry(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id":          "entry-1",
		"feedId":      "feed-9",
		"title":       "Model update shipped",
		"content":     "<p>The assistant now supports <b>faster</b> completions.</p><script>evil()</script>",
		"url":         "https://blog.example/post",
		"author":      "Jo Doe",
		"publishedAt": "2026-02-10T09:00:00Z",
		"language":    "en",
		"feedTitle":   "Example Blog",
		"folder":      "Product News",
	}

	post, meta, err := NormalizeRSSEntry(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if post.PlatformItemID != "feed-9:entry-1" {
		t.Errorf("natural key = %q, want feed-9:entry-1", post.PlatformItemID)
	}
	if post.FeedID == nil || *post.FeedID != "feed-9" {
		t.Errorf("feed id = %v", post.FeedID)
	}
	if post.Content != "The assistant now supports faster completions." {
		t.Errorf("content = %q, want stripped text", post.Content)
	}
	if post.Status != "pending_summary" {
		t.Errorf("status = %q, want pending_summary", post.Status)
	}
	if meta.FeedTitle != "Example Blog" || meta.FolderName != "Product News" {
		t.Errorf("feed meta = %+v", meta)
	}
}

func TestNormalizeRSSEntryTitleOnly(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id":       "entry-2",
		"feedId":   "feed-9",
		"title":    "Short link post",
		"language": "en",
	}
	post, _, err := NormalizeRSSEntry(raw, tweetContext())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if post.Content != "Short link post" {
		t.Errorf("content = %q, want title fallback", post.Content)
	}
}

func TestNormalizeRSSEntryMissingIdentifiers(t *testing.T) {
	t.Parallel()

	var missing *MissingRequiredFieldError

	_, _, err := NormalizeRSSEntry(map[string]any{"feedId": "f", "title": "x"}, tweetContext())
	if !errors.As(err, &missing) || missing.Field != "entry_id" {
		t.Fatalf("expected entry_id error, got %v", err)
	}

	_, _, err = NormalizeRSSEntry(map[string]any{"id": "e", "title": "x"}, tweetContext())
	if !errors.As(err, &missing) || missing.Field != "feed_id" {
		t.Fatalf("expected feed_id error, got %v", err)
	}

	_, _, err = NormalizeRSSEntry(map[string]any{"id": "e", "feedId": "f"}, tweetContext())
	if !errors.As(err, &missing) || missing.Field != "content" {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"plain  text\n\twith   spaces", "plain text with spaces"},
		{"<div><p>one</p><p>two</p></div>", "onetwo"},
		{"<style>p{}</style><p>kept</p>", "kept"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripHTML(tc.in); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
