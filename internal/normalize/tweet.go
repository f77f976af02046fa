package normalize

import (
	"encoding/json"
	"fmt"

	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/status"
)

const PlatformTwitter = "twitter"

// NormalizeTweet maps one raw crawler tweet into a canonical post.
// Missing id or text is non-recoverable for the item; everything else
// degrades to nil.
func NormalizeTweet(raw map[string]any, nctx Context) (*db.Post, error) {
	id, idField, ok := firstString(raw, tweetIDCandidates)
	if !ok {
		return nil, &MissingRequiredFieldError{Field: "platform_item_id"}
	}

	text, textField, ok := firstString(raw, tweetTextCandidates)
	if !ok {
		return nil, &MissingRequiredFieldError{Field: "content"}
	}

	postedAt, dateField := parseTimestamp(raw, tweetDateCandidates, nctx.CollectedAt)

	author, _, _ := firstString(raw, tweetAuthorCandidates)

	url, _, hasURL := firstString(raw, tweetURLCandidates)
	if !hasURL && author != "" {
		// Synthesized permalink; when the handle is also absent the URL
		// stays nil rather than failing the item.
		url = fmt.Sprintf("https://twitter.com/%s/status/%s", author, id)
	}

	language, _, hasLang := firstString(raw, tweetLangCandidates)
	if !hasLang {
		language = DetectLanguage(text)
	}

	snapshot := keywordSnapshot(firstStringList(raw, tweetMatchedTermCandidates), nctx.Keywords)

	pending, err := status.PendingForPlatform(PlatformTwitter)
	if err != nil {
		return nil, err
	}

	post := &db.Post{
		Platform:        PlatformTwitter,
		PlatformItemID:  id,
		RawItemID:       nctx.RawItemID,
		RunID:           nctx.RunID,
		Content:         text,
		URL:             optional(url),
		Author:          optional(author),
		Language:        optional(language),
		PostedAt:        postedAt,
		CollectedAt:     nctx.CollectedAt.UTC(),
		Likes:           optionalInt64(firstInt64(raw, tweetLikeCandidates)),
		Retweets:        optionalInt64(firstInt64(raw, tweetRetweetCandidates)),
		Replies:         optionalInt64(firstInt64(raw, tweetReplyCandidates)),
		Views:           optionalInt64(firstInt64(raw, tweetViewCandidates)),
		KeywordSnapshot: marshalSnapshot(snapshot),
		Status:          string(pending),
		StatusChangedAt: nctx.CollectedAt.UTC(),
		ModelContext:    tweetModelContext(idField, textField, dateField),
	}
	return post, nil
}

// tweetModelContext records which candidate fields supplied the
// required values, for provenance when debugging crawler shape drift.
func tweetModelContext(idField, textField, dateField string) json.RawMessage {
	ctx := map[string]string{
		"normalizer": "tweet/v1",
		"id_field":   idField,
		"text_field": textField,
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
