package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/stake-plus/forum-triage/src/triage"
	"github.com/stake-plus/forum-triage/src/triage/triagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEmptyCorpusReturnsNothing(t *testing.T) {
	ix := NewIndex()
	assert.Empty(t, ix.Query("t1", "anything at all", 0))
	assert.Empty(t, ix.Query("t1", "", -1))
}

func TestQueryIsTagScoped(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("t1", "How does the scheduler work?", "th-1"))

	assert.Empty(t, ix.Query("t2", "How does the scheduler work?", DefaultThreshold))
	assert.Len(t, ix.Query("t1", "How does the scheduler work?", DefaultThreshold), 1)
}

func TestRegisterRejectsEmptyText(t *testing.T) {
	ix := NewIndex()
	assert.ErrorIs(t, ix.Register("t1", "   ", "th-1"), ErrEmptyText)
	assert.Equal(t, 0, ix.Len("t1"))
}

func TestRegisterKeepsDuplicates(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("t1", "same question", "th-1"))
	require.NoError(t, ix.Register("t1", "same question", "th-2"))
	assert.Equal(t, 2, ix.Len("t1"))

	matches := ix.Query("t1", "same question", DefaultThreshold)
	require.Len(t, matches, 2)
	assert.Equal(t, "th-1", matches[0].ThreadRef, "ties keep insertion order")
	assert.Equal(t, "th-2", matches[1].ThreadRef)
	assert.Equal(t, matches[0].Score, matches[1].Score)
}

func TestSelfSimilarityIsMaximal(t *testing.T) {
	ix := NewIndex()
	corpus := []struct{ text, ref string }{
		{"What is your research area?", "th-1"},
		{"How does the scheduler work?", "th-2"},
		{"Where can I find the slides from the keynote?", "th-3"},
		{"Is the workshop recorded?", "th-4"},
	}
	for _, c := range corpus {
		require.NoError(t, ix.Register("t1", c.text, c.ref))
	}

	for _, c := range corpus {
		matches := ix.Query("t1", c.text, 0)
		require.NotEmpty(t, matches, c.text)
		assert.Equal(t, c.ref, matches[0].ThreadRef, c.text)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	}
}

func TestNearDuplicateScoresAboveDefaultThreshold(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("t1", "How does the scheduler work?", "th-1"))

	matches := ix.Query("t1", "how does the scheduler operate", DefaultThreshold)
	require.Len(t, matches, 1)
	assert.Equal(t, "th-1", matches[0].ThreadRef)
	assert.Greater(t, matches[0].Score, DefaultThreshold)
}

func TestQueryFiltersAndOrdersByScore(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Register("t1", "Completely unrelated topic about lunch", "th-1"))
	require.NoError(t, ix.Register("t1", "scheduler preemption fairness", "th-2"))
	require.NoError(t, ix.Register("t1", "scheduler preemption", "th-3"))

	matches := ix.Query("t1", "scheduler preemption", 0.1)
	require.Len(t, matches, 2)
	assert.Equal(t, "th-3", matches[0].ThreadRef)
	assert.Equal(t, "th-2", matches[1].ThreadRef)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"how", "does", "the", "scheduler", "work"}, tokenize("How does the scheduler work?"))
	assert.Equal(t, []string{"go", "is", "fun"}, tokenize("a Go is fun!"))
	assert.Empty(t, tokenize("? ! a"))
	assert.Equal(t, []string{"max_len", "is", "v2"}, tokenize("MAX_LEN is v2-x"))
}

func TestRebuildFromForum(t *testing.T) {
	forum := triagetest.NewForum()
	forum.AddThread(
		triage.Thread{ID: "th-1", Name: "How does the scheduler work?", TagIDs: []string{"t1", "t2"}},
		triage.Message{Content: "**Asked by alice**", AuthorID: triagetest.BotID},
	)
	forum.AddThread(
		triage.Thread{ID: "th-2", Name: "Broken thread", TagIDs: []string{"t1"}},
		triage.Message{Content: "**Asked by bob**"},
	)
	forum.FailFirstMessage("th-2", errors.New("missing access"))

	ix := NewIndex()
	require.NoError(t, ix.Register("stale", "old entry", "th-0"))

	stats, err := ix.Rebuild(context.Background(), forum)
	require.NoError(t, err)
	assert.Equal(t, RebuildStats{Threads: 2, Skipped: 1, Entries: 2}, stats)

	assert.Equal(t, 0, ix.Len("stale"))
	assert.Equal(t, []Entry{{Text: "How does the scheduler work?", ThreadRef: "th-1"}}, ix.Entries("t1"))
	assert.Equal(t, 1, ix.Len("t2"))
	assert.Equal(t, map[string]int{"t1": 1, "t2": 1}, ix.Stats())
}

func TestRebuildListFailureKeepsCorpus(t *testing.T) {
	forum := triagetest.NewForum()
	forum.ListErr = errors.New("forum unavailable")

	ix := NewIndex()
	require.NoError(t, ix.Register("t1", "kept", "th-1"))

	_, err := ix.Rebuild(context.Background(), forum)
	require.Error(t, err)
	assert.Equal(t, 1, ix.Len("t1"))
}

// registeringSource files questions while a rebuild is reading first messages.
type registeringSource struct {
	*triagetest.Forum
	onFirst func()
}

func (s registeringSource) FirstMessage(ctx context.Context, threadID string) (*triage.Message, error) {
	if s.onFirst != nil {
		s.onFirst()
	}
	return s.Forum.FirstMessage(ctx, threadID)
}

func TestRebuildKeepsQuestionsRegisteredMeanwhile(t *testing.T) {
	forum := triagetest.NewForum()
	forum.AddThread(
		triage.Thread{ID: "th-1", Name: "How does the scheduler work?", TagIDs: []string{"t1"}},
		triage.Message{Content: "**Asked by alice**", AuthorID: triagetest.BotID},
	)

	ix := NewIndex()
	registered := false
	src := registeringSource{Forum: forum, onFirst: func() {
		if !registered {
			registered = true
			require.NoError(t, ix.Register("t1", "Is the workshop recorded?", "th-2"))
			require.NoError(t, ix.Register("t1", "How does the scheduler work?", "th-1"))
		}
	}}

	stats, err := ix.Rebuild(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)

	assert.Equal(t, []Entry{
		{Text: "How does the scheduler work?", ThreadRef: "th-1"},
		{Text: "Is the workshop recorded?", ThreadRef: "th-2"},
	}, ix.Entries("t1"))
	matches := ix.Query("t1", "Is the workshop recorded?", DefaultThreshold)
	require.NotEmpty(t, matches)
	assert.Equal(t, "th-2", matches[0].ThreadRef)

	// The log is cleared once no rebuild is running.
	require.NoError(t, ix.Register("t1", "Where are the slides?", "th-3"))
	_, err = ix.Rebuild(context.Background(), forum)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len("t1"))
}

func TestRebuildFailureClearsRegistrationLog(t *testing.T) {
	forum := triagetest.NewForum()
	forum.ListErr = errors.New("forum unavailable")

	ix := NewIndex()
	_, err := ix.Rebuild(context.Background(), forum)
	require.Error(t, err)

	require.NoError(t, ix.Register("t1", "Is the workshop recorded?", "th-2"))
	forum.ListErr = nil
	_, err = ix.Rebuild(context.Background(), forum)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len("t1"))
}
