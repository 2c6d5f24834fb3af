// Package triagetest provides in-memory collaborators for exercising the triage engine.
package triagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stake-plus/forum-triage/src/triage"
)

// BotID is the author ID the fake forum uses for messages it creates itself.
const BotID = "bot"

// CreatedThread records a CreateThread call.
type CreatedThread struct {
	Title  string
	Body   string
	TagIDs []string
}

// Forum is an in-memory forum plus a single message channel for the leaderboard.
type Forum struct {
	mu sync.Mutex

	Tags      []triage.TopicTag
	TagsErr   error
	ListErr   error
	CreateErr error

	threads   []triage.Thread
	first     map[string]*triage.Message
	firstErrs map[string]error
	created   []CreatedThread
	nextID    int

	channel []*triage.Message
	sends   int
	edits   int
}

// NewForum returns a forum offering tags.
func NewForum(tags ...triage.TopicTag) *Forum {
	return &Forum{
		Tags:      tags,
		first:     make(map[string]*triage.Message),
		firstErrs: make(map[string]error),
	}
}

// AddThread seeds an existing thread and its first message.
func (f *Forum) AddThread(thread triage.Thread, first triage.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = append(f.threads, thread)
	msg := first
	if msg.ID == "" {
		msg.ID = thread.ID
	}
	f.first[thread.ID] = &msg
}

// FailFirstMessage makes FirstMessage fail for threadID.
func (f *Forum) FailFirstMessage(threadID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firstErrs[threadID] = err
}

// SetReactions overwrites the reaction total on a thread's first message.
func (f *Forum) SetReactions(threadID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.first[threadID]; ok {
		msg.Reactions = n
	}
}

// Created returns the CreateThread calls made so far.
func (f *Forum) Created() []CreatedThread {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreatedThread(nil), f.created...)
}

func (f *Forum) ListThreads(ctx context.Context, tagID string) ([]triage.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []triage.Thread
	for _, thread := range f.threads {
		if tagID == "" || thread.HasTag(tagID) {
			out = append(out, thread)
		}
	}
	return out, nil
}

func (f *Forum) FirstMessage(ctx context.Context, threadID string) (*triage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.firstErrs[threadID]; err != nil {
		return nil, err
	}
	msg, ok := f.first[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: no first message for %s", triage.ErrTransport, threadID)
	}
	copied := *msg
	return &copied, nil
}

func (f *Forum) CreateThread(ctx context.Context, title, body string, tagIDs []string) (*triage.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.nextID++
	thread := triage.Thread{
		ID:     fmt.Sprintf("thread-%d", f.nextID),
		Name:   title,
		TagIDs: append([]string(nil), tagIDs...),
	}
	f.threads = append(f.threads, thread)
	f.first[thread.ID] = &triage.Message{ID: thread.ID, Content: body, AuthorID: BotID, AuthorName: "triage-bot"}
	f.created = append(f.created, CreatedThread{Title: title, Body: body, TagIDs: thread.TagIDs})
	return &thread, nil
}

func (f *Forum) AvailableTags(ctx context.Context) ([]triage.TopicTag, error) {
	if f.TagsErr != nil {
		return nil, f.TagsErr
	}
	return append([]triage.TopicTag(nil), f.Tags...), nil
}

func (f *Forum) ThreadURL(threadID string) string {
	return "https://forum.test/threads/" + threadID
}

// PostChannelMessage seeds a message in the leaderboard channel.
func (f *Forum) PostChannelMessage(msg triage.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := msg
	f.channel = append(f.channel, &copied)
}

// ChannelMessages returns the leaderboard channel contents, oldest first.
func (f *Forum) ChannelMessages() []triage.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]triage.Message, 0, len(f.channel))
	for _, msg := range f.channel {
		out = append(out, *msg)
	}
	return out
}

// Sends and Edits report how often the leaderboard channel was written to.
func (f *Forum) Sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func (f *Forum) Edits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits
}

func (f *Forum) RecentMessages(ctx context.Context, channelID string, limit int) ([]triage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []triage.Message
	for i := len(f.channel) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.channel[i])
	}
	return out, nil
}

func (f *Forum) SendMessage(ctx context.Context, channelID, content string) (*triage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	msg := &triage.Message{ID: fmt.Sprintf("msg-%d", len(f.channel)+1), Content: content, AuthorID: BotID}
	f.channel = append(f.channel, msg)
	copied := *msg
	return &copied, nil
}

func (f *Forum) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.channel {
		if msg.ID == messageID {
			msg.Content = content
			f.edits++
			return nil
		}
	}
	return fmt.Errorf("%w: message %s not found", triage.ErrTransport, messageID)
}

func (f *Forum) SelfID() string { return BotID }

// Prompter answers prompts from a script and records everything it was shown.
type Prompter struct {
	mu      sync.Mutex
	Answer  func(triage.Prompt) (triage.Choice, error)
	prompts []triage.Prompt
	notes   []string
}

// NewPrompter returns a prompter answering with fn.
func NewPrompter(fn func(triage.Prompt) (triage.Choice, error)) *Prompter {
	return &Prompter{Answer: fn}
}

// TimeoutPrompter never answers.
func TimeoutPrompter() *Prompter {
	return NewPrompter(func(triage.Prompt) (triage.Choice, error) {
		return triage.Choice{}, triage.ErrTimeout
	})
}

func (p *Prompter) Ask(ctx context.Context, prompt triage.Prompt) (triage.Choice, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	answer := p.Answer
	p.mu.Unlock()
	return answer(prompt)
}

func (p *Prompter) Notify(ctx context.Context, sub triage.Submission, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, text)
	return nil
}

// Prompts returns every prompt shown so far.
func (p *Prompter) Prompts() []triage.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]triage.Prompt(nil), p.prompts...)
}

// Notes returns every notification sent so far.
func (p *Prompter) Notes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notes...)
}

// Oracle returns a fixed reply.
type Oracle struct {
	mu    sync.Mutex
	Reply string
	Err   error
	calls int
}

func (o *Oracle) Probe(ctx context.Context, question string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.Reply, o.Err
}

// Calls reports how many probes were made.
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}
