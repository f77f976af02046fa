package normalize

import (
	"encoding/json"
	"fmt"

	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/status"
)

const PlatformRSS = "rss"

// FeedMeta carries the feed-level signals the category resolver needs.
// It is derived during normalization but consumed by the orchestrator,
// which owns category assignment.
type FeedMeta struct {
	FeedID     string
	FeedTitle  string
	FolderName string
}

// NormalizeRSSEntry maps one aggregator entry into a canonical post.
// The natural key is feedID:entryID so the same article syndicated to
// two feeds stays two posts, matching the aggregator's own identity.
func NormalizeRSSEntry(raw map[string]any, nctx Context) (*db.Post, FeedMeta, error) {
	entryID, idField, ok := firstString(raw, rssEntryIDCandidates)
	if !ok {
		return nil, FeedMeta{}, &MissingRequiredFieldError{Field: "entry_id"}
	}

	feedID, _, ok := firstString(raw, rssFeedIDCandidates)
	if !ok {
		return nil, FeedMeta{}, &MissingRequiredFieldError{Field: "feed_id"}
	}

	rawContent, contentField, hasContent := firstString(raw, rssContentCandidates)
	title, _, hasTitle := firstString(raw, rssTitleCandidates)
	if !hasContent && !hasTitle {
		return nil, FeedMeta{}, &MissingRequiredFieldError{Field: "content"}
	}

	content := StripHTML(rawContent)
	if content == "" {
		// Title-only entries are common for link blogs; the title
		// stands in as the body.
		content = title
		contentField = "title"
	}

	publishedAt, dateField := parseTimestamp(raw, rssDateCandidates, nctx.CollectedAt)
	author, _, _ := firstString(raw, rssAuthorCandidates)
	url, _, _ := firstString(raw, rssURLCandidates)

	language, _, hasLang := firstString(raw, rssLangCandidates)
	if !hasLang {
		language = DetectLanguage(title + " " + content)
	}

	feedTitle, _, _ := firstString(raw, rssFeedTitleCandidates)
	folderName, _, _ := firstString(raw, rssFeedFolderCandidates)

	snapshot := keywordSnapshot(firstStringList(raw, rssMatchedTermCandidates), nctx.Keywords)

	pending, err := status.PendingForPlatform(PlatformRSS)
	if err != nil {
		return nil, FeedMeta{}, err
	}

	post := &db.Post{
		Platform:        PlatformRSS,
		PlatformItemID:  fmt.Sprintf("%s:%s", feedID, entryID),
		FeedID:          optional(feedID),
		RawItemID:       nctx.RawItemID,
		RunID:           nctx.RunID,
		Title:           optional(title),
		Content:         content,
		URL:             optional(url),
		Author:          optional(author),
		Language:        optional(language),
		PostedAt:        publishedAt,
		CollectedAt:     nctx.CollectedAt.UTC(),
		KeywordSnapshot: marshalSnapshot(snapshot),
		Status:          string(pending),
		StatusChangedAt: nctx.CollectedAt.UTC(),
		ModelContext:    rssModelContext(idField, contentField, dateField),
	}
	meta := FeedMeta{
		FeedID:     feedID,
		FeedTitle:  feedTitle,
		FolderName: folderName,
	}
	return post, meta, nil
}

func rssModelContext(idField, contentField, dateField string) json.RawMessage {
	ctx := map[string]string{
		"normalizer":    "rss/v1",
		"id_field":      idField,
		"content_field": contentField,
	}
	if dateField != "" {
		ctx["date_field"] = dateField
	} else {
		ctx["date_field"] = "fallback_collected_at"
	}
	out, err := json.Marshal(ctx)
	if err != nil {
		return nil
	}
	return out
}
