// Package status owns the enrichment lifecycle of a post. Every status
// write in the repository layer goes through CanTransition; writes
// outside the table are rejected rather than silently applied.
package status

import "fmt"

type Status string

const (
	// PendingSentiment marks a tweet waiting for sentiment scoring.
	PendingSentiment Status = "pending_sentiment"
	// PendingSummary marks an RSS entry waiting for AI summarization.
	PendingSummary Status = "pending_summary"
	// Processing marks a post claimed by an enrichment pass.
	Processing Status = "processing"
	// Processed is the completion state for sentiment enrichment.
	Processed Status = "processed"
	// Summarized is the completion state for summary enrichment.
	Summarized Status = "summarized"
	// Failed marks a post whose enrichment failed terminally for the
	// pass; replay may revive it to a pending state.
	Failed Status = "failed"
)

// transitions is the closed set of legal from→to pairs.
//
// pending → processing is the claim. processing → pending is the stuck
// reset. failed → pending is manual replay. Everything else is a
// completion write.
var transitions = map[Status][]Status{
	PendingSentiment: {Processing},
	PendingSummary:   {Processing},
	Processing:       {Processed, Summarized, Failed, PendingSentiment, PendingSummary},
	Failed:           {PendingSentiment, PendingSummary},
}

func Valid(s Status) bool {
	switch s {
	case PendingSentiment, PendingSummary, Processing, Processed, Summarized, Failed:
		return true
	}
	return false
}

func IsPending(s Status) bool {
	return s == PendingSentiment || s == PendingSummary
}

func IsTerminal(s Status) bool {
	return s == Processed || s == Summarized
}

// CanTransition reports whether the from→to pair is in the transition
// table. A no-op transition (from == to) is never legal; callers that
// want idempotent writes check the current status first.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PendingForPlatform returns the initial status a freshly normalized
// post receives: tweets are scored for sentiment, RSS entries are
// summarized.
func PendingForPlatform(platform string) (Status, error) {
	switch platform {
	case "twitter":
		return PendingSentiment, nil
	case "rss":
		return PendingSummary, nil
	}
	return "", fmt.Errorf("no pending status for platform %q", platform)
}

// CompletionFor maps a pending status to its completion state.
func CompletionFor(pending Status) (Status, error) {
	switch pending {
	case PendingSentiment:
		return Processed, nil
	case PendingSummary:
		return Summarized, nil
	}
	return "", fmt.Errorf("status %q has no completion state", pending)
}
