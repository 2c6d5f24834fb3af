package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/forum-triage/src/triage"
)

// StreamEvents is the Redis stream triage events are appended to.
const StreamEvents = "forumtriage.threads"

const streamMaxLen = 10000

// NewRedis parses a redis:// URL into a client.
func NewRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// EventStream publishes triage events to a Redis stream.
type EventStream struct {
	rdb    *redis.Client
	stream string
}

var _ triage.EventPublisher = (*EventStream)(nil)

// NewEventStream appends to StreamEvents on rdb.
func NewEventStream(rdb *redis.Client) *EventStream {
	return &EventStream{rdb: rdb, stream: StreamEvents}
}

func (s *EventStream) Publish(ctx context.Context, ev triage.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":         ev.Kind,
			"thread_id":    ev.ThreadID,
			"title":        ev.Title,
			"url":          ev.URL,
			"tags":         strings.Join(ev.TagIDs, ","),
			"submitter_id": ev.SubmitterID,
			"detail":       ev.Detail,
			"at":           at.UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Recent returns up to n events, newest first.
func (s *EventStream) Recent(ctx context.Context, n int64) ([]triage.Event, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read %s: %w", s.stream, err)
	}
	events := make([]triage.Event, 0, len(msgs))
	for _, msg := range msgs {
		events = append(events, decodeEvent(msg.Values))
	}
	return events, nil
}

func decodeEvent(values map[string]interface{}) triage.Event {
	str := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}
	ev := triage.Event{
		Kind:        str("kind"),
		ThreadID:    str("thread_id"),
		Title:       str("title"),
		URL:         str("url"),
		SubmitterID: str("submitter_id"),
		Detail:      str("detail"),
	}
	if tags := str("tags"); tags != "" {
		ev.TagIDs = strings.Split(tags, ",")
	}
	if at, err := time.Parse(time.RFC3339, str("at")); err == nil {
		ev.At = at
	}
	return ev
}
