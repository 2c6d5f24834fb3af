// Package workflow drives a submitted question through tag selection, duplicate
// detection, the answer probe and, finally, filing.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stake-plus/forum-triage/src/triage"
	"github.com/stake-plus/forum-triage/src/triage/oracle"
	"github.com/stake-plus/forum-triage/src/triage/similarity"
)

// Prompt actions.
const (
	ActionCancel   = "cancel"
	ActionSelect   = "select"
	ActionContinue = "continue"
	ActionPost     = "post"
	ActionDontPost = "dont_post"
)

const (
	DefaultMaxCandidates = 5
	DefaultPromptTimeout = 300 * time.Second
)

// Index is the duplicate index as seen by the engine.
type Index interface {
	Query(tagID, candidate string, threshold float64) []similarity.Match
}

// Config tunes the engine.
type Config struct {
	Threshold     float64
	MaxCandidates int
	PromptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = similarity.DefaultThreshold
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.PromptTimeout <= 0 {
		c.PromptTimeout = DefaultPromptTimeout
	}
	return c
}

// Engine runs triage sessions. It is safe for concurrent use; each Run owns its
// session.
type Engine struct {
	index    Index
	forum    triage.Forum
	prompter triage.Prompter
	oracle   triage.Oracle
	poster   *Poster
	cfg      Config
	active   atomic.Int64
}

// NewEngine wires an engine. oracle may be nil, in which case the answer probe is
// skipped.
func NewEngine(index Index, forum triage.Forum, prompter triage.Prompter, probe triage.Oracle, poster *Poster, cfg Config) *Engine {
	return &Engine{
		index:    index,
		forum:    forum,
		prompter: prompter,
		oracle:   probe,
		poster:   poster,
		cfg:      cfg.withDefaults(),
	}
}

// Active returns the number of sessions currently running.
func (e *Engine) Active() int {
	return int(e.active.Load())
}

type transition func(ctx context.Context, s *Session) State

func (e *Engine) transitions() map[State]transition {
	return map[State]transition{
		AwaitingTags:       e.awaitTags,
		CheckingDuplicates: e.checkDuplicates,
		DuplicatesFound:    e.confirmDuplicates,
		NoDuplicates:       func(context.Context, *Session) State { return ProbingAnswer },
		ProbingAnswer:      e.probeAnswer,
		AnswerFound:        e.confirmAnswer,
		NoAnswer:           func(context.Context, *Session) State { return Posting },
		Posting:            e.post,
	}
}

// Run drives a new session for sub to a terminal state and returns it.
func (e *Engine) Run(ctx context.Context, sub triage.Submission) *Session {
	e.active.Add(1)
	defer e.active.Add(-1)

	s := NewSession(sub)
	steps := e.transitions()

	for !s.State.Terminal() {
		if err := ctx.Err(); err != nil {
			s.enter(s.cancel(OutcomeAborted, err))
			break
		}
		step, ok := steps[s.State]
		if !ok {
			s.enter(s.cancel(OutcomeAborted, fmt.Errorf("workflow: no transition from %s", s.State)))
			break
		}
		s.enter(step(ctx, s))
	}

	log.Printf("workflow: session %s for %s ended %s (%s)", s.ID, sub.SubmitterHandle, s.State, s.Outcome)
	return s
}

func (e *Engine) ask(ctx context.Context, s *Session, text string, tags []triage.TopicTag, options ...triage.Option) (triage.Choice, error) {
	return e.prompter.Ask(ctx, triage.Prompt{
		ID:         uuid.NewString(),
		Submission: s.Submission,
		Text:       text,
		Options:    options,
		Tags:       tags,
		Timeout:    e.cfg.PromptTimeout,
	})
}

func (e *Engine) notify(ctx context.Context, s *Session, text string) {
	if err := e.prompter.Notify(ctx, s.Submission, text); err != nil {
		log.Printf("workflow: notify %s: %v", s.Submission.SubmitterHandle, err)
	}
}

// abandon ends a session after a failed or unanswered prompt.
func (e *Engine) abandon(s *Session, err error) State {
	if errors.Is(err, triage.ErrTimeout) {
		return s.cancel(OutcomeTimedOut, nil)
	}
	log.Printf("workflow: session %s prompt failed: %v", s.ID, err)
	return s.cancel(OutcomeAborted, err)
}

func (e *Engine) awaitTags(ctx context.Context, s *Session) State {
	tags, err := e.forum.AvailableTags(ctx)
	if err == nil && len(tags) == 0 {
		err = errors.New("forum offers no tags")
	}
	if err != nil {
		e.notify(ctx, s, "Error: Could not find forum channel")
		return s.cancel(OutcomeUnconfigured, fmt.Errorf("%w: %v", triage.ErrConfiguration, err))
	}
	s.available = tags

	choice, err := e.ask(ctx, s, "Please select the tags for your question:", tags,
		triage.Option{Label: "Cancel", Value: ActionCancel, Style: triage.StyleDanger})
	if err != nil {
		return e.abandon(s, err)
	}
	if choice.Action == ActionCancel {
		return s.cancel(OutcomeCancelled, nil)
	}

	s.SelectedTags = selectTags(tags, choice.Values)
	if len(s.SelectedTags) == 0 {
		return s.cancel(OutcomeNoTags, nil)
	}
	return CheckingDuplicates
}

// selectTags resolves chosen IDs against the offered tags, keeping choice order
// and dropping unknown or repeated IDs.
func selectTags(offered []triage.TopicTag, ids []string) []triage.TopicTag {
	byID := make(map[string]triage.TopicTag, len(offered))
	for _, tag := range offered {
		byID[tag.ID] = tag
	}
	var out []triage.TopicTag
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		tag, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, tag)
	}
	return out
}

func (e *Engine) checkDuplicates(ctx context.Context, s *Session) State {
	best := make(map[string]int)
	var candidates []Candidate
	for _, tag := range s.SelectedTags {
		for _, m := range e.index.Query(tag.ID, s.Submission.Text, e.cfg.Threshold) {
			if i, ok := best[m.ThreadRef]; ok {
				if m.Score > candidates[i].Score {
					candidates[i].Score = m.Score
				}
				continue
			}
			best[m.ThreadRef] = len(candidates)
			candidates = append(candidates, Candidate{
				Text:      m.Text,
				ThreadRef: m.ThreadRef,
				URL:       e.forum.ThreadURL(m.ThreadRef),
				Score:     m.Score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > e.cfg.MaxCandidates {
		candidates = candidates[:e.cfg.MaxCandidates]
	}
	s.Candidates = candidates

	if len(candidates) == 0 {
		return NoDuplicates
	}
	return DuplicatesFound
}

func (e *Engine) confirmDuplicates(ctx context.Context, s *Session) State {
	choice, err := e.ask(ctx, s, RenderCandidates(s.Candidates), nil,
		triage.Option{Label: "Continue", Value: ActionContinue, Style: triage.StyleSuccess},
		triage.Option{Label: "Cancel", Value: ActionCancel, Style: triage.StyleDanger})
	if err != nil {
		return e.abandon(s, err)
	}
	if choice.Action != ActionContinue {
		return s.cancel(OutcomeCancelled, nil)
	}
	return ProbingAnswer
}

// RenderCandidates formats possible duplicates as a numbered list of links.
func RenderCandidates(candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("Similar questions have already been asked:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. [%s](%s) (similarity %.2f)\n", i+1, triage.EscapeLinkText(triage.DeriveTitle(c.Text)), c.URL, c.Score)
	}
	sb.WriteString("Continue to post yours anyway, or cancel.")
	return sb.String()
}

func (e *Engine) probeAnswer(ctx context.Context, s *Session) State {
	if e.oracle == nil {
		return NoAnswer
	}
	reply, err := e.oracle.Probe(ctx, s.Submission.Text)
	if err != nil {
		log.Printf("workflow: session %s answer probe failed, posting without answer: %v", s.ID, err)
		return NoAnswer
	}
	verdict := oracle.Classify(reply)
	if !verdict.HasAnswer {
		return NoAnswer
	}
	s.Answer = verdict.Answer
	return AnswerFound
}

func (e *Engine) confirmAnswer(ctx context.Context, s *Session) State {
	text := fmt.Sprintf("I might be able to help with this:\n\n%s\n\nDo you still want to post your question?", s.Answer)
	choice, err := e.ask(ctx, s, triage.Truncate(text, triage.MaxBodyLen), nil,
		triage.Option{Label: "Post anyway", Value: ActionPost, Style: triage.StyleSuccess},
		triage.Option{Label: "Don't post", Value: ActionDontPost, Style: triage.StyleDanger})
	if err != nil {
		return e.abandon(s, err)
	}
	if choice.Action != ActionPost {
		return s.cancel(OutcomeAnswered, nil)
	}
	return Posting
}

func (e *Engine) post(ctx context.Context, s *Session) State {
	record, err := e.poster.Post(ctx, s.Question(), s.Answer)
	if err != nil {
		e.notify(ctx, s, "Sorry, your question could not be posted. Please try again later.")
		return s.cancel(OutcomePostingFailed, err)
	}
	s.Record = record
	s.Outcome = OutcomeFiled
	e.notify(ctx, s, "Question posted! "+record.URL)
	return Done
}
