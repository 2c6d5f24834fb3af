// Package triage holds the domain types and collaborator contracts shared by the
// duplicate-detection index, the triage workflow and the leaderboard.
package triage

import (
	"context"
	"time"
)

// TopicTag is a forum tag used to scope duplicate search and leaderboard filtering.
type TopicTag struct {
	ID   string
	Name string
}

// Submission is a raw incoming question before triage.
type Submission struct {
	ID              string
	ChannelID       string
	SubmitterID     string
	SubmitterHandle string
	Text            string
	ReceivedAt      time.Time
}

// Question is an accepted submission with its chosen tags.
type Question struct {
	Text            string
	SubmitterID     string
	SubmitterHandle string
	OriginChannelID string
	Tags            []TopicTag
	CreatedAt       time.Time
}

// TagIDs returns the IDs of the question's tags in selection order.
func (q Question) TagIDs() []string {
	ids := make([]string, 0, len(q.Tags))
	for _, tag := range q.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// ThreadRecord describes one filed question.
type ThreadRecord struct {
	Title          string
	ThreadRef      string
	URL            string
	Tags           []TopicTag
	ReactionCount  int
	OriginCitation string
}

// Thread is a forum thread as reported by the forum collaborator.
type Thread struct {
	ID       string
	Name     string
	TagIDs   []string
	Archived bool
}

// HasTag reports whether the thread carries tagID.
func (t Thread) HasTag(tagID string) bool {
	for _, id := range t.TagIDs {
		if id == tagID {
			return true
		}
	}
	return false
}

// Message is the subset of a chat message the engine reads.
type Message struct {
	ID         string
	Content    string
	AuthorID   string
	AuthorName string
	Reactions  int
}

// Forum is the thread store the engine files questions into.
type Forum interface {
	// ListThreads returns active and archived threads, filtered to tagID when non-empty.
	ListThreads(ctx context.Context, tagID string) ([]Thread, error)
	FirstMessage(ctx context.Context, threadID string) (*Message, error)
	CreateThread(ctx context.Context, title, body string, tagIDs []string) (*Thread, error)
	AvailableTags(ctx context.Context) ([]TopicTag, error)
	ThreadURL(threadID string) string
}

// Oracle probes whether a question can be answered outright.
type Oracle interface {
	Probe(ctx context.Context, question string) (string, error)
}

// Option is one labeled action offered to a submitter.
type Option struct {
	Label string
	Value string
	Style OptionStyle
}

// OptionStyle hints how an option should be rendered.
type OptionStyle int

const (
	StylePrimary OptionStyle = iota
	StyleSuccess
	StyleDanger
	StyleSecondary
)

// Prompt is an interactive question put to the submitter.
type Prompt struct {
	ID         string
	Submission Submission
	Text       string
	Options    []Option
	// Tags, when set, are offered as a multi-select.
	Tags    []TopicTag
	Timeout time.Duration
}

// Choice is the submitter's answer to a Prompt. Values carries selected tag IDs.
type Choice struct {
	Action string
	Values []string
}

// Prompter presents prompts to submitters and waits for their choice.
type Prompter interface {
	// Ask blocks until the submitter chooses or the prompt times out (ErrTimeout).
	Ask(ctx context.Context, prompt Prompt) (Choice, error)
	Notify(ctx context.Context, sub Submission, text string) error
}

// TagNames returns display names for tags, in order.
func TagNames(tags []TopicTag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}
