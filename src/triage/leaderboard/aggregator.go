// Package leaderboard ranks filed questions by reactions and keeps a single
// leaderboard message up to date.
package leaderboard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stake-plus/forum-triage/src/triage"
)

const (
	// TitleMarker identifies the leaderboard message in channel history.
	TitleMarker = "🏆 Question Leaderboard"

	DefaultInterval  = 2 * time.Minute
	DefaultTopN      = 10
	DefaultScanDepth = 50
)

// Board is the channel the leaderboard is published to.
type Board interface {
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]triage.Message, error)
	SendMessage(ctx context.Context, channelID, content string) (*triage.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	// SelfID is the author ID of messages the engine sends.
	SelfID() string
}

// Config tunes the aggregator.
type Config struct {
	ChannelID string
	Interval  time.Duration
	Location  *time.Location
	TopN      int
	ScanDepth int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.ScanDepth <= 0 {
		c.ScanDepth = DefaultScanDepth
	}
	return c
}

// Entry is one ranked thread.
type Entry struct {
	Rank int
	triage.ThreadRecord
}

// Result describes one aggregation run.
type Result struct {
	Entries   []Entry
	Scope     string
	Content   string
	MessageID string
	Created   bool
	UpdatedAt time.Time
}

// Status reports the scheduler state.
type Status struct {
	Running   bool
	Tag       triage.TopicTag
	Interval  time.Duration
	Runs      int
	LastRun   time.Time
	LastError string
}

// Aggregator walks the forum, ranks threads by reactions and upserts the
// leaderboard message. Start and Stop control a periodic run.
type Aggregator struct {
	forum        triage.Forum
	board        Board
	attributions triage.AttributionStore
	events       triage.EventPublisher
	cfg          Config
	now          func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	tag     triage.TopicTag
	runs    int
	lastRun time.Time
	lastErr error
}

// New returns a stopped aggregator.
func New(forum triage.Forum, board Board, cfg Config) *Aggregator {
	return &Aggregator{
		forum: forum,
		board: board,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// WithAttributions makes the aggregator consult stored attributions before
// parsing message bodies.
func (a *Aggregator) WithAttributions(store triage.AttributionStore) *Aggregator {
	a.attributions = store
	return a
}

// WithEvents makes the aggregator publish a leaderboard_updated event per run.
func (a *Aggregator) WithEvents(pub triage.EventPublisher) *Aggregator {
	a.events = pub
	return a
}

// ResolveTag finds a forum tag by ID or case-insensitive name. An empty query
// resolves to the zero tag, meaning all threads.
func (a *Aggregator) ResolveTag(ctx context.Context, query string) (triage.TopicTag, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return triage.TopicTag{}, nil
	}
	tags, err := a.forum.AvailableTags(ctx)
	if err != nil {
		return triage.TopicTag{}, fmt.Errorf("%w: list tags: %v", triage.ErrConfiguration, err)
	}
	for _, tag := range tags {
		if tag.ID == query || strings.EqualFold(tag.Name, query) {
			return tag, nil
		}
	}
	return triage.TopicTag{}, fmt.Errorf("%w: unknown tag %q", triage.ErrConfiguration, query)
}

// Rank lists the forum's threads, optionally limited to tag, and orders them by
// reaction count. Ties keep the forum's listing order.
func (a *Aggregator) Rank(ctx context.Context, tag triage.TopicTag) ([]Entry, error) {
	threads, err := a.forum.ListThreads(ctx, tag.ID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: list threads: %w", err)
	}

	entries := make([]Entry, 0, len(threads))
	for _, thread := range threads {
		record := triage.ThreadRecord{
			Title:          thread.Name,
			ThreadRef:      thread.ID,
			URL:            a.forum.ThreadURL(thread.ID),
			OriginCitation: triage.UnknownAttribution,
		}

		msg, err := a.forum.FirstMessage(ctx, thread.ID)
		if err != nil {
			log.Printf("leaderboard: first message of thread %s: %v", thread.ID, err)
		} else {
			record.ReactionCount = msg.Reactions
			record.OriginCitation = a.attribution(ctx, thread.ID, msg)
		}
		entries = append(entries, Entry{ThreadRecord: record})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReactionCount > entries[j].ReactionCount
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (a *Aggregator) attribution(ctx context.Context, threadID string, msg *triage.Message) string {
	if a.attributions != nil {
		rec, ok, err := a.attributions.LookupAttribution(ctx, threadID)
		if err != nil {
			log.Printf("leaderboard: attribution lookup for thread %s: %v", threadID, err)
		} else if ok && strings.TrimSpace(rec.SubmitterHandle) != "" {
			return rec.SubmitterHandle
		}
	}

	if msg.AuthorID != a.board.SelfID() {
		if name := strings.TrimSpace(msg.AuthorName); name != "" {
			return name
		}
		return triage.UnknownAttribution
	}

	handle, err := triage.ParseAttribution(msg.Content)
	if err != nil {
		return triage.UnknownAttribution
	}
	return handle
}

// ScopeLabel names what a leaderboard covers.
func ScopeLabel(tag triage.TopicTag) string {
	if tag.ID == "" {
		return "of all time"
	}
	name := tag.Name
	if name == "" {
		name = tag.ID
	}
	return "for " + name
}

// Render formats the top entries of a leaderboard, bounded to the platform limit.
func Render(entries []Entry, scope string, updated time.Time, topN int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s %s**\n", TitleMarker, scope)

	if len(entries) == 0 {
		sb.WriteString("No questions have been filed yet.\n")
	}
	for i, e := range entries {
		if i >= topN {
			break
		}
		reactions := "reactions"
		if e.ReactionCount == 1 {
			reactions = "reaction"
		}
		fmt.Fprintf(&sb, "%d. [%s](%s) | %d %s | asked by %s\n",
			e.Rank, triage.EscapeLinkText(e.Title), e.URL, e.ReactionCount, reactions, e.OriginCitation)
	}

	fmt.Fprintf(&sb, "\n_Last updated: %s_", updated.Format("2006-01-02 15:04 MST"))
	return triage.Truncate(sb.String(), triage.MaxBodyLen)
}

// RunOnce ranks the forum and writes the leaderboard, editing the existing
// message when one is found in recent channel history.
func (a *Aggregator) RunOnce(ctx context.Context, tag triage.TopicTag) (*Result, error) {
	if a.cfg.ChannelID == "" {
		return nil, fmt.Errorf("%w: leaderboard channel not configured", triage.ErrConfiguration)
	}

	entries, err := a.Rank(ctx, tag)
	if err != nil {
		return nil, err
	}

	updated := a.now().In(a.cfg.Location)
	result := &Result{
		Entries:   entries,
		Scope:     ScopeLabel(tag),
		UpdatedAt: updated,
	}
	result.Content = Render(entries, result.Scope, updated, a.cfg.TopN)

	existing, err := a.findExisting(ctx)
	if err != nil {
		log.Printf("leaderboard: scan channel %s: %v", a.cfg.ChannelID, err)
	}

	if existing != "" {
		if err := a.board.EditMessage(ctx, a.cfg.ChannelID, existing, result.Content); err != nil {
			return nil, fmt.Errorf("leaderboard: edit message %s: %w", existing, err)
		}
		result.MessageID = existing
	} else {
		msg, err := a.board.SendMessage(ctx, a.cfg.ChannelID, result.Content)
		if err != nil {
			return nil, fmt.Errorf("leaderboard: send message: %w", err)
		}
		result.MessageID = msg.ID
		result.Created = true
	}

	if a.events != nil {
		err := a.events.Publish(ctx, triage.Event{
			Kind:   triage.EventLeaderboardUpdated,
			TagIDs: nonEmpty(tag.ID),
			Detail: fmt.Sprintf("%d threads ranked", len(entries)),
			At:     updated,
		})
		if err != nil {
			log.Printf("leaderboard: publish event: %v", err)
		}
	}
	return result, nil
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func (a *Aggregator) findExisting(ctx context.Context) (string, error) {
	msgs, err := a.board.RecentMessages(ctx, a.cfg.ChannelID, a.cfg.ScanDepth)
	if err != nil {
		return "", err
	}
	self := a.board.SelfID()
	for _, msg := range msgs {
		if msg.AuthorID == self && strings.Contains(msg.Content, TitleMarker) {
			return msg.ID, nil
		}
	}
	return "", nil
}

// Start begins periodic runs for tag. It reports false when already running.
func (a *Aggregator) Start(ctx context.Context, tag triage.TopicTag) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.tag = tag
	go a.loop(runCtx, tag, a.done)

	log.Printf("leaderboard: started (%s, every %s)", ScopeLabel(tag), a.cfg.Interval)
	return true
}

// Stop halts periodic runs and waits for an in-flight run to finish. It reports
// false when nothing was running.
func (a *Aggregator) Stop() bool {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	log.Printf("leaderboard: stopped")
	return true
}

// Status reports whether the scheduler runs and how the last run went.
func (a *Aggregator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		Running:  a.cancel != nil,
		Tag:      a.tag,
		Interval: a.cfg.Interval,
		Runs:     a.runs,
		LastRun:  a.lastRun,
	}
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
	}
	return st
}

func (a *Aggregator) loop(ctx context.Context, tag triage.TopicTag, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		_, err := a.RunOnce(ctx, tag)
		if err != nil && ctx.Err() == nil {
			log.Printf("leaderboard: run failed: %v", err)
		}
		a.mu.Lock()
		a.runs++
		a.lastRun = a.now()
		a.lastErr = err
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
