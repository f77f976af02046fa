package status

import "testing"

func TestCanTransitionTable(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to Status }{
		{PendingSentiment, Processing},
		{PendingSummary, Processing},
		{Processing, Processed},
		{Processing, Summarized},
		{Processing, Failed},
		{Processing, PendingSentiment},
		{Processing, PendingSummary},
		{Failed, PendingSentiment},
		{Failed, PendingSummary},
	}
	for _, pair := range allowed {
		if !CanTransition(pair.from, pair.to) {
			t.Errorf("expected %s -> %s to be allowed", pair.from, pair.to)
		}
	}

	rejected := []struct{ from, to Status }{
		{PendingSentiment, Processed},
		{PendingSentiment, Failed},
		{Processed, Processing},
		{Processed, Failed},
		{Summarized, Processing},
		{Failed, Processed},
		{Failed, Processing},
		{Processing, Processing},
		{PendingSentiment, PendingSentiment},
	}
	for _, pair := range rejected {
		if CanTransition(pair.from, pair.to) {
			t.Errorf("expected %s -> %s to be rejected", pair.from, pair.to)
		}
	}
}

func TestPendingForPlatform(t *testing.T) {
	t.Parallel()

	s, err := PendingForPlatform("twitter")
	if err != nil || s != PendingSentiment {
		t.Fatalf("twitter: got %s, %v", s, err)
	}
	s, err = PendingForPlatform("rss")
	if err != nil || s != PendingSummary {
		t.Fatalf("rss: got %s, %v", s, err)
	}
	if _, err := PendingForPlatform("mastodon"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}

func TestCompletionFor(t *testing.T) {
	t.Parallel()

	s, err := CompletionFor(PendingSentiment)
	if err != nil || s != Processed {
		t.Fatalf("pending_sentiment: got %s, %v", s, err)
	}
	s, err = CompletionFor(PendingSummary)
	if err != nil || s != Summarized {
		t.Fatalf("pending_summary: got %s, %v", s, err)
	}
	if _, err := CompletionFor(Processing); err == nil {
		t.Fatalf("expected error for non-pending status")
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{PendingSentiment, PendingSummary, Processing, Processed, Summarized, Failed} {
		if !Valid(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Valid("enriched") {
		t.Errorf("expected unknown status to be invalid")
	}
}
