// Package suggestion implements the Suggestion Pipeline: a bounded
// priority queue, a FIFO history cache, and the receiver/feedback glue
// that routes server-pushed suggestions to a notifier.
package suggestion

import "time"

// Priority is totally ordered: Low < Medium < High < Critical.
type Priority int

const (
	Low Priority = iota
	Medium
	High
	Critical
)

// Type discriminates the kind of suggestion content.
type Type string

const (
	WorkGuidance         Type = "work_guidance"
	EmailDraft           Type = "email_draft"
	ProductivityTip      Type = "productivity_tip"
	WorkflowOptimization Type = "workflow_optimization"
	ContextBased         Type = "context_based"
)

// Suggestion is a single server-pushed recommendation.
type Suggestion struct {
	ID         string
	Type       Type
	Content    string
	Priority   Priority
	Confidence float64
	Relevance  float64
	Actionable bool
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// FeedbackType is the user's response to a delivered suggestion.
type FeedbackType string

const (
	Accepted FeedbackType = "accepted"
	Rejected FeedbackType = "rejected"
	Deferred FeedbackType = "deferred"
)
