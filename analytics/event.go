// Package analytics records bounded, locally-persisted behavioral
// telemetry and computes on-demand aggregate reports. It never calls out
// to a backend and never blocks a primary user action: persistence
// failures degrade the recorder to in-memory operation for the session.
package analytics

import "time"

// EventKind discriminates the analytics event union.
type EventKind string

const (
	EventView        EventKind = "view"
	EventSearch      EventKind = "search"
	EventGeneration  EventKind = "generation"
	EventPerformance EventKind = "performance"
)

// Event is a tagged union over the four event kinds. Exactly one of the
// payload pointers is non-nil, matching Kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`

	View        *ViewEvent        `json:"view,omitempty"`
	Search      *SearchEvent      `json:"search,omitempty"`
	Generation  *GenerationEvent  `json:"generation,omitempty"`
	Performance *PerformanceEvent `json:"performance,omitempty"`
}

// ViewEvent records a content view.
type ViewEvent struct {
	ContentID string `json:"contentId"`
	Title     string `json:"title"`
	Category  string `json:"category,omitempty"`
}

// SearchEvent records a search query and how many results it returned.
type SearchEvent struct {
	Query       string `json:"query"`
	ResultCount int    `json:"resultCount"`
}

// GenerationEvent records a content generation attempt.
type GenerationEvent struct {
	Topic     string `json:"topic"`
	WordCount int    `json:"wordCount"`
	Success   bool   `json:"success"`
}

// PerformanceEvent records a client-observed request timing.
type PerformanceEvent struct {
	Endpoint  string `json:"endpoint"`
	LatencyMs int64  `json:"latencyMs"`
	Failed    bool   `json:"failed"`
}
