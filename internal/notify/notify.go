// Package notify fans merge-suggestion events out to Slack and live admin clients.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/feedbackhq/feedback/internal/database"
)

// EventType names a suggestion lifecycle change
type EventType string

const (
	EventSuggestionCreated   EventType = "suggestion_created"
	EventSuggestionAccepted  EventType = "suggestion_accepted"
	EventSuggestionDismissed EventType = "suggestion_dismissed"
	EventSuggestionExpired   EventType = "suggestion_expired"
)

// Event is one lifecycle change. Suggestion is nil for bulk expiry, which sets Count instead.
type Event struct {
	Type        EventType                 `json:"type"`
	Suggestion  *database.MergeSuggestion `json:"suggestion,omitempty"`
	SourceTitle string                    `json:"source_title,omitempty"`
	TargetTitle string                    `json:"target_title,omitempty"`
	Count       int64                     `json:"count,omitempty"`
	At          time.Time                 `json:"at"`
}

// Notifier receives events. Implementations must not block for long and
// must not fail the caller; delivery errors are logged.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Multi delivers every event to each notifier in order
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// Nop discards events
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Recorder keeps events in memory; used by tests
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Notify(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
