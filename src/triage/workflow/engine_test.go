package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/forum-triage/src/triage"
	"github.com/stake-plus/forum-triage/src/triage/similarity"
	"github.com/stake-plus/forum-triage/src/triage/triagetest"
)

var (
	tagT1 = triage.TopicTag{ID: "t1", Name: "Keynote"}
	tagT2 = triage.TopicTag{ID: "t2", Name: "Workshops"}
)

// responder selects tagIDs at the tag prompt and, at every other prompt, the
// first of actions the prompt offers. Prompts offering none of them time out.
func responder(tagIDs []string, actions ...string) func(triage.Prompt) (triage.Choice, error) {
	return func(p triage.Prompt) (triage.Choice, error) {
		if len(p.Tags) > 0 {
			if len(tagIDs) == 0 {
				return triage.Choice{}, triage.ErrTimeout
			}
			return triage.Choice{Action: ActionSelect, Values: tagIDs}, nil
		}
		for _, action := range actions {
			for _, opt := range p.Options {
				if opt.Value == action {
					return triage.Choice{Action: action}, nil
				}
			}
		}
		return triage.Choice{}, triage.ErrTimeout
	}
}

type harness struct {
	forum    *triagetest.Forum
	index    *similarity.Index
	prompter *triagetest.Prompter
	oracle   *triagetest.Oracle
	engine   *Engine
}

func newHarness(answer func(triage.Prompt) (triage.Choice, error), reply string) *harness {
	h := &harness{
		forum:    triagetest.NewForum(tagT1, tagT2),
		index:    similarity.NewIndex(),
		prompter: triagetest.NewPrompter(answer),
		oracle:   &triagetest.Oracle{Reply: reply},
	}
	poster := NewPoster(h.forum, h.index)
	h.engine = NewEngine(h.index, h.forum, h.prompter, h.oracle, poster, Config{PromptTimeout: time.Minute})
	return h
}

func submission(text string) triage.Submission {
	return triage.Submission{
		ID:              "m1",
		ChannelID:       "c1",
		SubmitterID:     "u1",
		SubmitterHandle: "alice",
		Text:            text,
		ReceivedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResearchAreaIsPostedWithoutAnswer(t *testing.T) {
	h := newHarness(responder([]string{"t1"}), "No.")

	s := h.engine.Run(context.Background(), submission("What is your research area?"))

	require.Equal(t, Done, s.State)
	assert.Equal(t, OutcomeFiled, s.Outcome)
	assert.Equal(t, []State{AwaitingTags, CheckingDuplicates, NoDuplicates, ProbingAnswer, NoAnswer, Posting, Done}, s.History())
	assert.Empty(t, s.Candidates)
	assert.Empty(t, s.Answer)

	created := h.forum.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "What is your research area?", created[0].Title)
	assert.Equal(t, []string{"t1"}, created[0].TagIDs)
	assert.NotContains(t, created[0].Body, triage.AnswerHeading)
	assert.Equal(t, "**Asked by alice** (<@u1>) in <#c1>", created[0].Body)

	assert.Equal(t, []similarity.Entry{{Text: "What is your research area?", ThreadRef: "thread-1"}}, h.index.Entries("t1"))
	require.NotNil(t, s.Record)
	assert.Equal(t, "https://forum.test/threads/thread-1", s.Record.URL)
	assert.Equal(t, []string{"Question posted! https://forum.test/threads/thread-1"}, h.prompter.Notes())
	assert.Equal(t, 1, h.oracle.Calls())
	assert.Len(t, h.prompter.Prompts(), 1)
	assert.Equal(t, 0, h.engine.Active())
}

func TestDuplicateThenCancelLeavesNoTrace(t *testing.T) {
	h := newHarness(responder([]string{"t1"}, ActionCancel), "No")

	first := h.engine.Run(context.Background(), submission("How does the scheduler work?"))
	require.Equal(t, Done, first.State)
	require.Len(t, h.forum.Created(), 1)

	second := h.engine.Run(context.Background(), submission("how does the scheduler operate"))

	assert.Equal(t, Cancelled, second.State)
	assert.Equal(t, OutcomeCancelled, second.Outcome)
	assert.Equal(t, []State{AwaitingTags, CheckingDuplicates, DuplicatesFound, Cancelled}, second.History())
	require.Len(t, second.Candidates, 1)
	assert.Equal(t, "thread-1", second.Candidates[0].ThreadRef)
	assert.Greater(t, second.Candidates[0].Score, similarity.DefaultThreshold)

	assert.Len(t, h.forum.Created(), 1)
	assert.Equal(t, 1, h.index.Len("t1"))
	assert.Equal(t, 1, h.oracle.Calls(), "cancelled session never probes")

	prompts := h.prompter.Prompts()
	last := prompts[len(prompts)-1]
	assert.Contains(t, last.Text, "[How does the scheduler work?](https://forum.test/threads/thread-1)")
}

func TestDuplicateThenContinuePosts(t *testing.T) {
	h := newHarness(responder([]string{"t1"}, ActionContinue), "No")
	require.NoError(t, h.index.Register("t1", "How does the scheduler work?", "old-1"))

	s := h.engine.Run(context.Background(), submission("how does the scheduler operate"))

	assert.Equal(t, Done, s.State)
	assert.Equal(t, []State{AwaitingTags, CheckingDuplicates, DuplicatesFound, ProbingAnswer, NoAnswer, Posting, Done}, s.History())
	assert.Equal(t, 2, h.index.Len("t1"))
}

func TestTimeoutsAtEveryPromptHaveNoSideEffects(t *testing.T) {
	cases := []struct {
		name   string
		answer func(triage.Prompt) (triage.Choice, error)
		reply  string
		seed   bool
		last   State
	}{
		{name: "tag selection", answer: triagetest.TimeoutPrompter().Answer, last: AwaitingTags},
		{name: "duplicate confirmation", answer: responder([]string{"t1"}), seed: true, last: DuplicatesFound},
		{name: "answer confirmation", answer: responder([]string{"t1"}), reply: "It is distributed systems.", last: AnswerFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.answer, tc.reply)
			if tc.seed {
				require.NoError(t, h.index.Register("t1", "What is your research area?", "old-1"))
			}
			before := h.index.Stats()

			s := h.engine.Run(context.Background(), submission("What is your research area?"))

			assert.Equal(t, Cancelled, s.State)
			assert.Equal(t, OutcomeTimedOut, s.Outcome)
			assert.NoError(t, s.Err)
			history := s.History()
			assert.Equal(t, tc.last, history[len(history)-2])
			assert.Empty(t, h.forum.Created())
			assert.Equal(t, before, h.index.Stats())
			assert.Empty(t, h.prompter.Notes())
		})
	}
}

func TestTagPromptCancelAndEmptySelection(t *testing.T) {
	h := newHarness(func(p triage.Prompt) (triage.Choice, error) {
		return triage.Choice{Action: ActionCancel}, nil
	}, "")
	s := h.engine.Run(context.Background(), submission("q?"))
	assert.Equal(t, OutcomeCancelled, s.Outcome)

	h = newHarness(responder([]string{"unknown-tag"}), "")
	s = h.engine.Run(context.Background(), submission("q?"))
	assert.Equal(t, Cancelled, s.State)
	assert.Equal(t, OutcomeNoTags, s.Outcome)
	assert.Empty(t, h.forum.Created())
}

func TestMissingForumIsConfigurationError(t *testing.T) {
	h := newHarness(responder([]string{"t1"}), "")
	h.forum.TagsErr = errors.New("unknown channel")

	s := h.engine.Run(context.Background(), submission("What is your research area?"))

	assert.Equal(t, Cancelled, s.State)
	assert.Equal(t, OutcomeUnconfigured, s.Outcome)
	assert.ErrorIs(t, s.Err, triage.ErrConfiguration)
	assert.Equal(t, []string{"Error: Could not find forum channel"}, h.prompter.Notes())
	assert.Empty(t, h.prompter.Prompts())
}

func TestOracleFailureStillPosts(t *testing.T) {
	h := newHarness(responder([]string{"t1"}), "")
	h.oracle.Err = fmt.Errorf("%w: 503", triage.ErrTransport)

	s := h.engine.Run(context.Background(), submission("What is your research area?"))

	assert.Equal(t, Done, s.State)
	assert.Contains(t, s.History(), NoAnswer)
	require.Len(t, h.forum.Created(), 1)
	assert.NotContains(t, h.forum.Created()[0].Body, triage.AnswerHeading)
}

func TestNilOracleSkipsProbe(t *testing.T) {
	forum := triagetest.NewForum(tagT1)
	index := similarity.NewIndex()
	engine := NewEngine(index, forum, triagetest.NewPrompter(responder([]string{"t1"})), nil, NewPoster(forum, index), Config{})

	s := engine.Run(context.Background(), submission("What is your research area?"))
	assert.Equal(t, Done, s.State)
}

func TestAnswerFoundPostAnyway(t *testing.T) {
	h := newHarness(responder([]string{"t1", "t2"}, ActionPost), "  It is distributed systems.  ")

	s := h.engine.Run(context.Background(), submission("What is your research area?"))

	assert.Equal(t, Done, s.State)
	assert.Equal(t, "It is distributed systems.", s.Answer)
	created := h.forum.Created()
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Body, triage.AnswerHeading+"\nIt is distributed systems.")
	assert.Equal(t, []string{"t1", "t2"}, created[0].TagIDs)
	assert.Equal(t, 1, h.index.Len("t1"))
	assert.Equal(t, 1, h.index.Len("t2"))
}

func TestAnswerFoundDontPost(t *testing.T) {
	h := newHarness(responder([]string{"t1"}, ActionDontPost), "It is distributed systems.")

	s := h.engine.Run(context.Background(), submission("What is your research area?"))

	assert.Equal(t, Cancelled, s.State)
	assert.Equal(t, OutcomeAnswered, s.Outcome)
	assert.Empty(t, h.forum.Created())
	assert.Equal(t, 0, h.index.Len("t1"))
}

func TestPostingFailureInformsSubmitter(t *testing.T) {
	h := newHarness(responder([]string{"t1"}), "No")
	h.forum.CreateErr = errors.New("missing permissions")

	s := h.engine.Run(context.Background(), submission("What is your research area?"))

	assert.Equal(t, Cancelled, s.State)
	assert.Equal(t, OutcomePostingFailed, s.Outcome)
	var perr *PostingError
	require.ErrorAs(t, s.Err, &perr)
	assert.ErrorIs(t, s.Err, triage.ErrTransport)
	assert.Equal(t, "What is your research area?", perr.Title)
	assert.Equal(t, []string{"Sorry, your question could not be posted. Please try again later."}, h.prompter.Notes())
	assert.Equal(t, 0, h.index.Len("t1"))
}

func TestCandidatesMergeAcrossTagsAndCap(t *testing.T) {
	h := newHarness(responder([]string{"t1", "t2"}, ActionCancel), "")
	for i := 0; i < 4; i++ {
		require.NoError(t, h.index.Register("t1", "How does the scheduler work?", fmt.Sprintf("a-%d", i)))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, h.index.Register("t2", "How does the scheduler work?", fmt.Sprintf("b-%d", i)))
	}
	require.NoError(t, h.index.Register("t2", "How does the scheduler work?", "a-0"))

	s := h.engine.Run(context.Background(), submission("How does the scheduler work?"))

	require.Len(t, s.Candidates, DefaultMaxCandidates)
	refs := make([]string, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		refs = append(refs, c.ThreadRef)
		assert.InDelta(t, 1.0, c.Score, 1e-9)
	}
	assert.Equal(t, []string{"a-0", "a-1", "a-2", "a-3", "b-0"}, refs)
}

func TestCancelledContextAborts(t *testing.T) {
	h := newHarness(responder([]string{"t1"}), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := h.engine.Run(ctx, submission("What is your research area?"))

	assert.Equal(t, Cancelled, s.State)
	assert.Equal(t, OutcomeAborted, s.Outcome)
	assert.ErrorIs(t, s.Err, context.Canceled)
	assert.Empty(t, h.prompter.Prompts())
}

func TestRenderCandidatesEscapesLinkText(t *testing.T) {
	out := RenderCandidates([]Candidate{{Text: "What is [x]?", URL: "https://forum.test/threads/1", Score: 0.91}})
	assert.Contains(t, out, `1. [What is \[x\]?](https://forum.test/threads/1) (similarity 0.91)`)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "AWAITING_TAGS", AwaitingTags.String())
	assert.Equal(t, "CANCELLED", Cancelled.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
	assert.True(t, Done.Terminal())
	assert.False(t, Posting.Terminal())
}
