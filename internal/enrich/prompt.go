package enrich

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"horse.fit/pulse/internal/db"
)

const promptContentMaxLen = 6000

// BuildPrompt renders the instruction for one post. Tweets get a
// sentiment-first prompt, feed articles a summary-first one; both ask
// for the same JSON shape so extraction stays uniform.
func BuildPrompt(post db.ClaimedPost) string {
	content := post.Content
	if len(content) > promptContentMaxLen {
		cut := promptContentMaxLen
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	var b strings.Builder
	switch post.Platform {
	case "twitter":
		b.WriteString("Analyze the sentiment of the following social media post about AI coding assistants.\n")
	default:
		b.WriteString("Summarize the following article about AI coding assistants and assess its overall sentiment.\n")
	}
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"sentiment": "positive|negative|neutral|mixed", "score": <number between -1 and 1>, "summary": "<two sentences at most>", "reasoning": "<one sentence>"}`)
	b.WriteString("\n\n")
	if post.Title != nil && *post.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", *post.Title)
	}
	if post.URL != nil && *post.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", *post.URL)
	}
	fmt.Fprintf(&b, "Content:\n%s\n", content)
	return b.String()
}
