package triage

import (
	"context"
	"time"
)

// Event kinds published on the event stream.
const (
	EventThreadFiled        = "thread_filed"
	EventLeaderboardUpdated = "leaderboard_updated"
)

// Event is a notification about something the engine did.
type Event struct {
	Kind        string
	ThreadID    string
	Title       string
	URL         string
	TagIDs      []string
	SubmitterID string
	Detail      string
	At          time.Time
}

// EventPublisher forwards events to downstream consumers. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Attribution is the structured record of who asked a filed question.
type Attribution struct {
	ThreadID        string
	SubmitterID     string
	SubmitterHandle string
	Question        string
	CreatedAt       time.Time
}

// AttributionStore keeps Attribution records keyed by thread.
type AttributionStore interface {
	RecordAttribution(ctx context.Context, a Attribution) error
	// LookupAttribution returns ok=false when the thread has no record.
	LookupAttribution(ctx context.Context, threadID string) (a Attribution, ok bool, err error)
}
