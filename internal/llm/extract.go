package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const degradedSummaryMaxLen = 500

// Extraction is the structured payload the processor wants out of a
// model response.
type Extraction struct {
	SentimentLabel *string
	SentimentScore *float64
	Summary        *string
	Reasoning      *string
	// Degraded marks a fallback extraction: raw truncated text stood in
	// for the structured payload.
	Degraded bool
}

type extractionPayload struct {
	Sentiment *string  `json:"sentiment"`
	Label     *string  `json:"label"`
	Score     *float64 `json:"score"`
	Summary   *string  `json:"summary"`
	Reasoning *string  `json:"reasoning"`
}

// Extract pulls the structured result out of free-form model text.
// Models embed JSON in prose or fenced blocks; structured extraction is
// attempted first, then a degraded-but-valid fallback (truncated raw
// text as the summary, no sentiment). The bool is false only when both
// yield nothing usable — that is a terminal parse failure.
func Extract(text string) (Extraction, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Extraction{}, false
	}

	for _, candidate := range jsonCandidates(trimmed) {
		var payload extractionPayload
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
			continue
		}
		extraction := Extraction{
			SentimentScore: payload.Score,
			Summary:        cleanOptional(payload.Summary),
			Reasoning:      cleanOptional(payload.Reasoning),
		}
		if label := coalesceLabel(payload.Sentiment, payload.Label); label != nil {
			extraction.SentimentLabel = label
		}
		if extraction.SentimentLabel != nil || extraction.Summary != nil {
			return extraction, true
		}
	}

	// Degraded fallback: the model answered but not in a parseable
	// shape. Keep the text rather than failing the record.
	summary := truncateOnRune(trimmed, degradedSummaryMaxLen)
	return Extraction{Summary: &summary, Degraded: true}, true
}

// truncateOnRune cuts s to at most max bytes without splitting a
// multi-byte rune; a mid-rune cut would hand invalid UTF-8 to the
// database.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// jsonCandidates yields substrings worth attempting as JSON: fenced
// code blocks first, then the outermost brace span.
func jsonCandidates(text string) []string {
	var candidates []string

	remaining := text
	for {
		start := strings.Index(remaining, "```")
		if start < 0 {
			break
		}
		block := remaining[start+3:]
		if newline := strings.IndexByte(block, '\n'); newline >= 0 && newline < 16 {
			// Skip the language tag line ("json", "JSON", "").
			block = block[newline+1:]
		}
		end := strings.Index(block, "```")
		if end < 0 {
			break
		}
		candidates = append(candidates, strings.TrimSpace(block[:end]))
		remaining = block[end+3:]
	}

	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first >= 0 && last > first {
		candidates = append(candidates, text[first:last+1])
	}
	return candidates
}

var sentimentLabels = map[string]string{
	"positive": "positive",
	"negative": "negative",
	"neutral":  "neutral",
	"mixed":    "mixed",
}

func coalesceLabel(candidates ...*string) *string {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		normalized, ok := sentimentLabels[strings.ToLower(strings.TrimSpace(*candidate))]
		if ok {
			return &normalized
		}
	}
	return nil
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
