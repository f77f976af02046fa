// Package category assigns RSS articles to a fixed set of content
// categories using layered heuristics: structural metadata first, text
// scoring last, uncategorized as the deliberate safe default.
package category

import (
	"net/url"
	"strings"
)

type Category string

const (
	ProductUpdates   Category = "product_updates"
	IndustryResearch Category = "industry_research"
	Perspectives     Category = "perspectives"
	Uncategorized    Category = "uncategorized"
)

// Config carries the scoring constants. The defaults are empirically
// tuned; changing them changes classification for live feeds and needs
// product sign-off.
type Config struct {
	// MinScore is the minimum hit count the top category must reach
	// before keyword scoring is decisive.
	MinScore int
	// MinMargin is the minimum lead over the runner-up.
	MinMargin int
	// DominanceRatio and DominanceDelta drive the research-over-
	// perspectives guard: perspective and research vocabulary overlap
	// heavily, and research terms are the higher-precision signal.
	DominanceRatio float64
	DominanceDelta int
}

func DefaultConfig() Config {
	return Config{
		MinScore:       2,
		MinMargin:      2,
		DominanceRatio: 1.2,
		DominanceDelta: 2,
	}
}

// Article is the input slice the resolver inspects.
type Article struct {
	URL        string
	Title      string
	Content    string
	FeedTitle  string
	FolderName string
}

// folderMappings maps declared feed folder names to categories.
// Exact match after trimming and lowercasing.
var folderMappings = map[string]Category{
	"product updates":   ProductUpdates,
	"product news":      ProductUpdates,
	"changelogs":        ProductUpdates,
	"releases":          ProductUpdates,
	"research":          IndustryResearch,
	"research papers":   IndustryResearch,
	"papers":            IndustryResearch,
	"industry research": IndustryResearch,
	"perspectives":      Perspectives,
	"opinion":           Perspectives,
	"editorials":        Perspectives,
	"blogs":             Perspectives,
}

// researchHosts is the curated registrable-host allowlist. Subdomains
// of a listed host also match.
var researchHosts = []string{
	"arxiv.org",
	"openreview.net",
	"paperswithcode.com",
	"semanticscholar.org",
	"research.google",
	"deepmind.google",
	"research.facebook.com",
	"alleninstitute.org",
}

var researchFeedTitleSignals = []string{"research", "arxiv", "papers with code"}

// Keyword lists for scoring. Hits are counted per occurrence over the
// lowercased title + content + feed title.
var (
	productKeywords = []string{
		"release", "released", "launch", "launched", "changelog", "update",
		"announcing", "now available", "general availability", "pricing",
		"new feature", "version", "beta", "rollout",
	}
	researchKeywords = []string{
		"paper", "study", "benchmark", "arxiv", "dataset", "evaluation",
		"experiment", "abstract", "preprint", "findings", "methodology",
		"state-of-the-art", "baseline",
	}
	perspectiveKeywords = []string{
		"opinion", "editorial", "perspective", "essay", "column", "hot take",
		"i think", "my experience", "reflections", "thoughts on", "why i",
		"lessons learned",
	}
)

type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultConfig().MinScore
	}
	if cfg.MinMargin <= 0 {
		cfg.MinMargin = DefaultConfig().MinMargin
	}
	if cfg.DominanceRatio <= 0 {
		cfg.DominanceRatio = DefaultConfig().DominanceRatio
	}
	if cfg.DominanceDelta <= 0 {
		cfg.DominanceDelta = DefaultConfig().DominanceDelta
	}
	return &Resolver{cfg: cfg}
}

// Resolve assigns exactly one category. Layer order: feed folder
// mapping, research-domain allowlist, feed-title heuristic, keyword
// scoring, legacy count fallback, uncategorized. The first decisive
// layer wins regardless of what later layers would say.
func (r *Resolver) Resolve(article Article) Category {
	if cat, ok := folderMappings[normalizeKey(article.FolderName)]; ok {
		return cat
	}

	if hostIsResearch(article.URL) {
		return IndustryResearch
	}

	feedTitle := strings.ToLower(article.FeedTitle)
	for _, signal := range researchFeedTitleSignals {
		if strings.Contains(feedTitle, signal) {
			return IndustryResearch
		}
	}

	text := strings.ToLower(article.Title + " " + article.Content + " " + article.FeedTitle)
	product := countHits(text, productKeywords)
	research := countHits(text, researchKeywords)
	perspective := countHits(text, perspectiveKeywords)

	if cat, ok := r.scoreDecisive(product, research, perspective); ok {
		return cat
	}
	return legacyCountClassifier(product, research, perspective)
}

// scoreDecisive applies the threshold, margin, and dominance rules.
func (r *Resolver) scoreDecisive(product, research, perspective int) (Category, bool) {
	top, topCat := product, ProductUpdates
	if research > top {
		top, topCat = research, IndustryResearch
	}
	if perspective > top {
		top, topCat = perspective, Perspectives
	}

	runnerUp := 0
	for _, score := range []int{product, research, perspective} {
		if score < top && score > runnerUp {
			runnerUp = score
		}
	}
	// Equal-top scores leave runnerUp == top via the margin check below.
	equalTops := 0
	for _, score := range []int{product, research, perspective} {
		if score == top {
			equalTops++
		}
	}
	if equalTops > 1 {
		runnerUp = top
	}

	if top < r.cfg.MinScore || top-runnerUp < r.cfg.MinMargin {
		return Uncategorized, false
	}

	if topCat == Perspectives && research > 0 {
		withinRatio := float64(perspective) <= float64(research)*r.cfg.DominanceRatio
		withinDelta := perspective-research <= r.cfg.DominanceDelta
		if withinRatio || withinDelta {
			return IndustryResearch, true
		}
	}
	return topCat, true
}

// legacyCountClassifier is the pre-scoring classifier kept as the last
// resort for ambiguous articles: plain argmax with no thresholds, ties
// resolve to uncategorized.
func legacyCountClassifier(product, research, perspective int) Category {
	top, topCat := product, ProductUpdates
	if research > top {
		top, topCat = research, IndustryResearch
	}
	if perspective > top {
		top, topCat = perspective, Perspectives
	}
	if top == 0 {
		return Uncategorized
	}

	equalTops := 0
	for _, score := range []int{product, research, perspective} {
		if score == top {
			equalTops++
		}
	}
	if equalTops > 1 {
		return Uncategorized
	}
	return topCat
}

func countHits(text string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += strings.Count(text, kw)
	}
	return total
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hostIsResearch(rawURL string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range researchHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func Valid(c Category) bool {
	switch c {
	case ProductUpdates, IndustryResearch, Perspectives, Uncategorized:
		return true
	}
	return false
}
