package normalize

// Candidate tables for field coalescing. External crawlers rename
// fields between actor versions, so each logical field carries a fixed
// priority list; the first non-empty candidate wins. Order changes here
// change normalization output for every platform — keep the tables in
// sync with their tests.

// Tweet payloads.
var (
	tweetIDCandidates     = []string{"id_str", "rest_id", "tweetId", "tweet_id", "id"}
	tweetTextCandidates   = []string{"full_text", "text", "tweet_text", "content"}
	tweetDateCandidates   = []string{"created_at", "createdAt", "timestamp", "date", "time"}
	tweetURLCandidates    = []string{"url", "twitterUrl", "tweetUrl", "permalink"}
	tweetAuthorCandidates = []string{
		"user.screen_name",
		"user.username",
		"author.userName",
		"author.screen_name",
		"author.username",
		"username",
		"screen_name",
	}
	tweetLangCandidates = []string{"lang", "language"}

	tweetLikeCandidates    = []string{"favorite_count", "likeCount", "likes"}
	tweetRetweetCandidates = []string{"retweet_count", "retweetCount", "retweets"}
	tweetReplyCandidates   = []string{"reply_count", "replyCount", "replies"}
	tweetViewCandidates    = []string{"view_count", "viewCount", "views"}

	tweetMatchedTermCandidates = []string{"matchedKeywords", "matched_terms", "searchTerms", "query_terms"}
)

// RSS aggregator entries.
var (
	rssEntryIDCandidates = []string{"id", "entryId", "entry_id", "guid"}
	rssFeedIDCandidates  = []string{"feedId", "feed_id", "feed.id"}
	rssTitleCandidates   = []string{"title"}
	rssContentCandidates = []string{"content", "content_html", "summary", "description"}
	rssURLCandidates     = []string{"url", "link", "canonicalUrl", "canonical_url"}
	rssAuthorCandidates  = []string{"author", "author.name", "creator"}
	rssDateCandidates    = []string{"publishedAt", "published", "pubDate", "date_published", "updated"}
	rssLangCandidates    = []string{"language", "lang"}

	rssFeedTitleCandidates  = []string{"feedTitle", "feed.title", "feed_title"}
	rssFeedFolderCandidates = []string{"folder", "feedCategory", "feed.category", "feed.folder", "category_title"}

	rssMatchedTermCandidates = []string{"matchedKeywords", "matched_terms", "keywords", "tags"}
)
