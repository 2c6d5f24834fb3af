package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/forum-triage/src/triage"
	"github.com/stake-plus/forum-triage/src/triage/triagetest"
)

var (
	tagT1 = triage.TopicTag{ID: "t1", Name: "Keynote"}
	tagT2 = triage.TopicTag{ID: "t2", Name: "Workshops"}
)

const channel = "lb-channel"

func fixedNow() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

func newAggregator(forum *triagetest.Forum, cfg Config) *Aggregator {
	if cfg.ChannelID == "" {
		cfg.ChannelID = channel
	}
	a := New(forum, forum, cfg)
	a.now = fixedNow
	return a
}

func addFiled(forum *triagetest.Forum, id, title, handle string, reactions int, tags ...string) {
	forum.AddThread(
		triage.Thread{ID: id, Name: title, TagIDs: tags},
		triage.Message{
			Content:   "**Asked by " + handle + "** (<@" + handle + "-id>) in <#c1>",
			AuthorID:  triagetest.BotID,
			Reactions: reactions,
		},
	)
}

func TestRankOrdersByReactions(t *testing.T) {
	forum := triagetest.NewForum(tagT1)
	addFiled(forum, "a", "Question A", "alice", 5, "t1")
	addFiled(forum, "b", "Question B", "bob", 9, "t1")
	addFiled(forum, "c", "Question C", "carol", 2, "t1")

	res, err := newAggregator(forum, Config{}).RunOnce(context.Background(), triage.TopicTag{})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	var got []string
	for _, e := range res.Entries {
		got = append(got, fmt.Sprintf("%d:%s:%d:%s", e.Rank, e.ThreadRef, e.ReactionCount, e.OriginCitation))
	}
	assert.Equal(t, []string{"1:b:9:bob", "2:a:5:alice", "3:c:2:carol"}, got)

	lines := strings.Split(res.Content, "\n")
	assert.Equal(t, "**🏆 Question Leaderboard of all time**", lines[0])
	assert.Equal(t, "1. [Question B](https://forum.test/threads/b) | 9 reactions | asked by bob", lines[1])
	assert.Equal(t, "2. [Question A](https://forum.test/threads/a) | 5 reactions | asked by alice", lines[2])
	assert.Equal(t, "3. [Question C](https://forum.test/threads/c) | 2 reactions | asked by carol", lines[3])
	assert.Equal(t, "_Last updated: 2024-05-01 12:30 UTC_", lines[len(lines)-1])
}

func TestRerunOverwritesSameMessage(t *testing.T) {
	forum := triagetest.NewForum(tagT1)
	addFiled(forum, "a", "Question A", "alice", 5, "t1")
	addFiled(forum, "b", "Question B", "bob", 9, "t1")
	addFiled(forum, "c", "Question C", "carol", 2, "t1")
	forum.PostChannelMessage(triage.Message{ID: "chatter", Content: "hello", AuthorID: "someone"})
	agg := newAggregator(forum, Config{})

	first, err := agg.RunOnce(context.Background(), triage.TopicTag{})
	require.NoError(t, err)
	assert.True(t, first.Created)

	forum.PostChannelMessage(triage.Message{ID: "later", Content: "more chatter", AuthorID: "someone"})
	second, err := agg.RunOnce(context.Background(), triage.TopicTag{})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.MessageID, second.MessageID)
	assert.Equal(t, 1, forum.Sends())
	assert.Equal(t, 1, forum.Edits())
	assert.Len(t, forum.ChannelMessages(), 3)
}

func TestMarkerFromOtherAuthorsIsIgnored(t *testing.T) {
	forum := triagetest.NewForum()
	forum.PostChannelMessage(triage.Message{ID: "quote", Content: "look at the " + TitleMarker, AuthorID: "someone"})

	res, err := newAggregator(forum, Config{}).RunOnce(context.Background(), triage.TopicTag{})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Contains(t, res.Content, "No questions have been filed yet.")
}

func TestTiesKeepListingOrder(t *testing.T) {
	forum := triagetest.NewForum()
	addFiled(forum, "a", "A", "alice", 3)
	addFiled(forum, "b", "B", "bob", 3)
	addFiled(forum, "c", "C", "carol", 4)

	entries, err := newAggregator(forum, Config{}).Rank(context.Background(), triage.TopicTag{})
	require.NoError(t, err)
	assert.Equal(t, "c", entries[0].ThreadRef)
	assert.Equal(t, "a", entries[1].ThreadRef)
	assert.Equal(t, "b", entries[2].ThreadRef)
}

func TestAttributionSources(t *testing.T) {
	forum := triagetest.NewForum()
	addFiled(forum, "filed", "Filed", "alice", 1)
	forum.AddThread(triage.Thread{ID: "manual", Name: "Manual"},
		triage.Message{Content: "I wrote this myself", AuthorID: "u9", AuthorName: "dave", Reactions: 1})
	forum.AddThread(triage.Thread{ID: "garbled", Name: "Garbled"},
		triage.Message{Content: "no marker here", AuthorID: triagetest.BotID, Reactions: 1})
	forum.AddThread(triage.Thread{ID: "legacy", Name: "Legacy"},
		triage.Message{Content: "**Original message from <@42> in <#7>:**\nold question", AuthorID: triagetest.BotID, Reactions: 1})
	forum.AddThread(triage.Thread{ID: "broken", Name: "Broken"}, triage.Message{Reactions: 7})
	forum.FailFirstMessage("broken", errors.New("missing access"))

	store := &stubAttributions{records: map[string]triage.Attribution{
		"filed": {ThreadID: "filed", SubmitterHandle: "alice-from-db"},
	}}
	entries, err := newAggregator(forum, Config{}).WithAttributions(store).Rank(context.Background(), triage.TopicTag{})
	require.NoError(t, err)

	got := map[string]string{}
	reactions := map[string]int{}
	for _, e := range entries {
		got[e.ThreadRef] = e.OriginCitation
		reactions[e.ThreadRef] = e.ReactionCount
	}
	assert.Equal(t, "alice-from-db", got["filed"])
	assert.Equal(t, "dave", got["manual"])
	assert.Equal(t, triage.UnknownAttribution, got["garbled"])
	assert.Equal(t, "<@42>", got["legacy"])
	assert.Equal(t, triage.UnknownAttribution, got["broken"])
	assert.Equal(t, 0, reactions["broken"], "unreadable threads count zero")
	assert.Equal(t, "broken", entries[len(entries)-1].ThreadRef)
}

type stubAttributions struct {
	records map[string]triage.Attribution
}

func (s *stubAttributions) RecordAttribution(ctx context.Context, a triage.Attribution) error {
	s.records[a.ThreadID] = a
	return nil
}

func (s *stubAttributions) LookupAttribution(ctx context.Context, threadID string) (triage.Attribution, bool, error) {
	a, ok := s.records[threadID]
	return a, ok, nil
}

func TestTagFilterAndScope(t *testing.T) {
	forum := triagetest.NewForum(tagT1, tagT2)
	addFiled(forum, "a", "A", "alice", 1, "t1")
	addFiled(forum, "b", "B", "bob", 2, "t2")

	agg := newAggregator(forum, Config{Location: time.FixedZone("CEST", 2*3600)})
	tag, err := agg.ResolveTag(context.Background(), "keynote")
	require.NoError(t, err)
	assert.Equal(t, tagT1, tag)

	res, err := agg.RunOnce(context.Background(), tag)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "a", res.Entries[0].ThreadRef)
	assert.Equal(t, "for Keynote", res.Scope)
	assert.True(t, strings.HasSuffix(res.Content, "_Last updated: 2024-05-01 14:30 CEST_"))

	_, err = agg.ResolveTag(context.Background(), "nope")
	assert.ErrorIs(t, err, triage.ErrConfiguration)
	all, err := agg.ResolveTag(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "of all time", ScopeLabel(all))
}

func TestRenderTruncatesToPlatformLimit(t *testing.T) {
	entries := make([]Entry, 0, 40)
	for i := 0; i < 40; i++ {
		entries = append(entries, Entry{Rank: i + 1, ThreadRecord: triage.ThreadRecord{
			Title:          strings.Repeat("x", 97) + "...",
			URL:            "https://forum.test/threads/" + fmt.Sprint(i),
			ReactionCount:  1,
			OriginCitation: "alice",
		}})
	}

	out := Render(entries, "of all time", fixedNow(), 40)
	assert.Len(t, []rune(out), triage.MaxBodyLen)
	assert.True(t, strings.HasSuffix(out, triage.Ellipsis))
	assert.Contains(t, out, "| 1 reaction |")

	short := Render(entries, "of all time", fixedNow(), DefaultTopN)
	assert.Contains(t, short, "\n10. ")
	assert.NotContains(t, short, "\n11. ")
}

func TestRenderEscapesLinkText(t *testing.T) {
	out := Render([]Entry{{Rank: 1, ThreadRecord: triage.ThreadRecord{
		Title:          "Is [slides](link) shared?",
		URL:            "https://forum.test/threads/a",
		ReactionCount:  2,
		OriginCitation: "alice",
	}}}, "of all time", fixedNow(), DefaultTopN)
	assert.Contains(t, out, `1. [Is \[slides\]\(link\) shared?](https://forum.test/threads/a) | 2 reactions`)
}

func TestRunOnceRequiresChannel(t *testing.T) {
	agg := New(triagetest.NewForum(), triagetest.NewForum(), Config{})
	_, err := agg.RunOnce(context.Background(), triage.TopicTag{})
	assert.ErrorIs(t, err, triage.ErrConfiguration)
}

func TestListFailureAbortsRun(t *testing.T) {
	forum := triagetest.NewForum()
	forum.ListErr = errors.New("forum unavailable")
	_, err := newAggregator(forum, Config{}).RunOnce(context.Background(), triage.TopicTag{})
	require.Error(t, err)
	assert.Equal(t, 0, forum.Sends())
}

func TestStartStopStatus(t *testing.T) {
	forum := triagetest.NewForum()
	addFiled(forum, "a", "A", "alice", 1)
	agg := newAggregator(forum, Config{Interval: time.Hour})

	assert.False(t, agg.Status().Running)
	assert.True(t, agg.Start(context.Background(), triage.TopicTag{}))
	assert.False(t, agg.Start(context.Background(), tagT1), "second start is a no-op")

	require.Eventually(t, func() bool { return agg.Status().Runs == 1 }, time.Second, 5*time.Millisecond)
	st := agg.Status()
	assert.True(t, st.Running)
	assert.Equal(t, triage.TopicTag{}, st.Tag)
	assert.Equal(t, time.Hour, st.Interval)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 1, forum.Sends())

	assert.True(t, agg.Stop())
	assert.False(t, agg.Stop())
	assert.False(t, agg.Status().Running)
}
