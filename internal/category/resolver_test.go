package category

import "testing"

func newTestResolver() *Resolver {
	return NewResolver(DefaultConfig())
}

func TestFolderMappingWinsOverKeywordScoring(t *testing.T) {
	t.Parallel()

	// Body text is dominated by perspective vocabulary, but the feed's
	// declared folder must win.
	article := Article{
		FolderName: "Research Papers",
		Title:      "An editorial opinion",
		Content:    "opinion editorial opinion editorial essay column opinion",
		FeedTitle:  "Some Blog",
	}
	if got := newTestResolver().Resolve(article); got != IndustryResearch {
		t.Fatalf("category = %s, want industry_research via folder mapping", got)
	}
}

func TestFolderMappingIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	article := Article{FolderName: "  PRODUCT UPDATES  "}
	if got := newTestResolver().Resolve(article); got != ProductUpdates {
		t.Fatalf("category = %s, want product_updates", got)
	}
}

func TestResearchHostAllowlist(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want Category
	}{
		{"https://arxiv.org/abs/2601.01234", IndustryResearch},
		{"https://www.arxiv.org/abs/2601.01234", IndustryResearch},
		{"https://paperswithcode.com/sota", IndustryResearch},
		{"https://notarxiv.org/abs/1", Uncategorized},
	}
	for _, tc := range cases {
		article := Article{URL: tc.url}
		if got := newTestResolver().Resolve(article); got != tc.want {
			t.Errorf("Resolve(url=%s) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestFeedTitleResearchSignal(t *testing.T) {
	t.Parallel()

	article := Article{FeedTitle: "Papers with Code — trending"}
	if got := newTestResolver().Resolve(article); got != IndustryResearch {
		t.Fatalf("category = %s, want industry_research via feed title", got)
	}
}

func TestKeywordScoringDecisive(t *testing.T) {
	t.Parallel()

	article := Article{
		Title:   "Assistant changelog",
		Content: "changelog rollout changelog",
	}
	if got := newTestResolver().Resolve(article); got != ProductUpdates {
		t.Fatalf("category = %s, want product_updates", got)
	}
}

func TestDominanceGuardOverridesPerspectives(t *testing.T) {
	t.Parallel()

	// Perspective vocabulary wins the naive count, but research is
	// within the dominance delta, so the higher-precision research
	// signal takes it.
	article := Article{
		Content: "editorial editorial editorial opinion benchmark benchmark",
	}
	if got := newTestResolver().Resolve(article); got != IndustryResearch {
		t.Fatalf("category = %s, want industry_research via dominance guard", got)
	}
}

func TestPerspectivesWinsWhenClearlyDominant(t *testing.T) {
	t.Parallel()

	article := Article{
		Content: "editorial editorial editorial editorial editorial editorial benchmark benchmark",
	}
	if got := newTestResolver().Resolve(article); got != Perspectives {
		t.Fatalf("category = %s, want perspectives", got)
	}
}

func TestLegacyFallbackOnLowScore(t *testing.T) {
	t.Parallel()

	// One product hit misses the decisive threshold but the legacy
	// argmax classifier still picks it up.
	article := Article{Content: "a quiet changelog note"}
	if got := newTestResolver().Resolve(article); got != ProductUpdates {
		t.Fatalf("category = %s, want product_updates via legacy fallback", got)
	}
}

func TestLegacyTieIsUncategorized(t *testing.T) {
	t.Parallel()

	article := Article{Content: "changelog benchmark"}
	if got := newTestResolver().Resolve(article); got != Uncategorized {
		t.Fatalf("category = %s, want uncategorized on tie", got)
	}
}

func TestNoSignalIsUncategorized(t *testing.T) {
	t.Parallel()

	article := Article{Title: "hello", Content: "plain words only"}
	if got := newTestResolver().Resolve(article); got != Uncategorized {
		t.Fatalf("category = %s, want uncategorized", got)
	}
}

func TestResolveDeterministic(t *testing.T) {
	t.Parallel()

	article := Article{
		URL:       "https://blog.example/post",
		Title:     "On benchmarks",
		Content:   "benchmark evaluation dataset editorial",
		FeedTitle: "Example Blog",
	}
	resolver := newTestResolver()
	first := resolver.Resolve(article)
	for i := 0; i < 10; i++ {
		if got := resolver.Resolve(article); got != first {
			t.Fatalf("resolution not deterministic: %s vs %s", first, got)
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	for _, c := range []Category{ProductUpdates, IndustryResearch, Perspectives, Uncategorized} {
		if !Valid(c) {
			t.Errorf("expected %s to be valid", c)
		}
	}
	if Valid("news") {
		t.Errorf("expected unknown category to be invalid")
	}
}
