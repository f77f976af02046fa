// Package normalize maps loosely-typed crawler payloads into canonical
// posts. The transforms are pure: no I/O, deterministic for identical
// input plus context.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMissingRequiredField is wrapped by every MissingRequiredFieldError.
var ErrMissingRequiredField = errors.New("missing required field")

// MissingRequiredFieldError reports a raw item with no usable candidate
// for a required logical field. Non-recoverable for the item; the
// caller skips it and counts an error instead of aborting the batch.
type MissingRequiredFieldError struct {
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

func (e *MissingRequiredFieldError) Unwrap() error {
	return ErrMissingRequiredField
}

// Context carries the per-run inputs a normalization needs.
type Context struct {
	RunID       int64
	RawItemID   *int64
	CollectedAt time.Time
	// Keywords is the query-term set active for this run; the snapshot
	// stored on a post is the intersection of these with the terms the
	// crawler reports for the item.
	Keywords []string
}

// lookup resolves a dot-path against a decoded JSON object.
func lookup(raw map[string]any, path string) (any, bool) {
	if raw == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = raw
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// firstString returns the first candidate that resolves to a non-empty
// string. Numeric values are formatted, which matters for id fields the
// crawler sometimes emits as JSON numbers.
func firstString(raw map[string]any, candidates []string) (string, string, bool) {
	for _, key := range candidates {
		value, ok := lookup(raw, key)
		if !ok {
			continue
		}
		if s, ok := coerceString(value); ok {
			return s, key, true
		}
	}
	return "", "", false
}

func coerceString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

// firstInt64 returns the first candidate that resolves to an integer
// count. Engagement metrics arrive as numbers or numeric strings.
func firstInt64(raw map[string]any, candidates []string) (int64, bool) {
	for _, key := range candidates {
		value, ok := lookup(raw, key)
		if !ok {
			continue
		}
		if n, ok := coerceInt64(value); ok {
			return n, true
		}
	}
	return 0, false
}

func coerceInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// firstStringList collects the first candidate that resolves to a
// non-empty list of strings.
func firstStringList(raw map[string]any, candidates []string) []string {
	for _, key := range candidates {
		value, ok := lookup(raw, key)
		if !ok {
			continue
		}
		list, ok := value.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := coerceString(item); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// twitterDateLayout is the classic statuses timeline format.
const twitterDateLayout = "Mon Jan 02 15:04:05 -0700 2006"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	twitterDateLayout,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp tries the candidate date fields in priority order.
// When every candidate is absent or unparseable it falls back to
// fallback ("now" at collection time). Deliberate lossy default: a bad
// date mislabels recency instead of dropping the item. Flagged in
// DESIGN.md as needing product sign-off.
func parseTimestamp(raw map[string]any, candidates []string, fallback time.Time) (time.Time, string) {
	for _, key := range candidates {
		value, ok := lookup(raw, key)
		if !ok {
			continue
		}

		switch v := value.(type) {
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				continue
			}
			for _, layout := range dateLayouts {
				if ts, err := time.Parse(layout, trimmed); err == nil {
					return ts.UTC(), key
				}
			}
			if epoch, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				if ts, ok := epochToTime(epoch); ok {
					return ts, key
				}
			}
		case float64:
			if ts, ok := epochToTime(int64(v)); ok {
				return ts, key
			}
		case json.Number:
			if epoch, err := v.Int64(); err == nil {
				if ts, ok := epochToTime(epoch); ok {
					return ts, key
				}
			}
		}
	}
	return fallback.UTC(), ""
}

// epochToTime interprets a numeric timestamp as seconds or milliseconds
// depending on magnitude.
func epochToTime(epoch int64) (time.Time, bool) {
	if epoch <= 0 {
		return time.Time{}, false
	}
	if epoch > 1e12 {
		return time.UnixMilli(epoch).UTC(), true
	}
	return time.Unix(epoch, 0).UTC(), true
}

// keywordSnapshot intersects the item's self-reported matched terms
// with the run's configured keyword set, case-insensitively. Only
// evidenced terms make it into the snapshot; the run set alone proves
// nothing about this item.
func keywordSnapshot(reported, runKeywords []string) []string {
	if len(reported) == 0 || len(runKeywords) == 0 {
		return nil
	}

	configured := make(map[string]string, len(runKeywords))
	for _, kw := range runKeywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			continue
		}
		configured[strings.ToLower(trimmed)] = trimmed
	}

	seen := make(map[string]struct{}, len(reported))
	snapshot := make([]string, 0, len(reported))
	for _, term := range reported {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" {
			continue
		}
		canonical, ok := configured[key]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		snapshot = append(snapshot, canonical)
	}
	if len(snapshot) == 0 {
		return nil
	}
	return snapshot
}

func marshalSnapshot(snapshot []string) json.RawMessage {
	if len(snapshot) == 0 {
		return nil
	}
	out, err := json.Marshal(snapshot)
	if err != nil {
		return nil
	}
	return out
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalInt64(n int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return &n
}
