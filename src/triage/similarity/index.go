// Package similarity keeps the per-tag corpus of filed questions and answers
// "which prior questions look like this one".
package similarity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/stake-plus/forum-triage/src/triage"
)

// DefaultThreshold is the score a prior question must exceed to count as similar.
const DefaultThreshold = 0.6

// ErrEmptyText is returned when registering a blank question.
var ErrEmptyText = errors.New("similarity: question text is empty")

// Entry is one filed question in a tag's corpus.
type Entry struct {
	Text      string
	ThreadRef string
}

// Match is a corpus entry scored against a candidate.
type Match struct {
	Entry
	Score float64
}

// ThreadSource is the part of the forum a rebuild replays.
type ThreadSource interface {
	ListThreads(ctx context.Context, tagID string) ([]triage.Thread, error)
	FirstMessage(ctx context.Context, threadID string) (*triage.Message, error)
}

// RebuildStats summarises a rebuild.
type RebuildStats struct {
	Threads int
	Skipped int
	Entries int
}

type taggedEntry struct {
	tagID string
	Entry
}

// Index maps tag IDs to insertion-ordered corpora.
type Index struct {
	mu      sync.RWMutex
	corpora map[string][]Entry

	// Registrations made while a rebuild is in flight, replayed into the
	// rebuilt corpora before they are swapped in.
	rebuilding int
	pending    []taggedEntry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{corpora: make(map[string][]Entry)}
}

// Register appends a question to tagID's corpus. Duplicate texts are kept.
func (ix *Index) Register(tagID, text, threadRef string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	entry := Entry{Text: text, ThreadRef: threadRef}
	ix.corpora[tagID] = append(ix.corpora[tagID], entry)
	if ix.rebuilding > 0 {
		ix.pending = append(ix.pending, taggedEntry{tagID: tagID, Entry: entry})
	}
	return nil
}

// Query scores candidate against tagID's corpus and returns the entries scoring
// above threshold, best first. Equal scores keep insertion order.
func (ix *Index) Query(tagID, candidate string, threshold float64) []Match {
	ix.mu.RLock()
	corpus := append([]Entry(nil), ix.corpora[tagID]...)
	ix.mu.RUnlock()

	if len(corpus) == 0 {
		return nil
	}

	docs := make([][]string, 0, len(corpus)+1)
	for _, entry := range corpus {
		docs = append(docs, tokenize(entry.Text))
	}
	docs = append(docs, tokenize(candidate))

	vectors := vectorize(docs)
	probe := vectors[len(vectors)-1]

	var matches []Match
	for i, entry := range corpus {
		score := cosine(probe, vectors[i])
		if score > threshold {
			matches = append(matches, Match{Entry: entry, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Len returns the size of tagID's corpus.
func (ix *Index) Len(tagID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.corpora[tagID])
}

// Entries returns a copy of tagID's corpus in insertion order.
func (ix *Index) Entries(tagID string) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]Entry(nil), ix.corpora[tagID]...)
}

// Stats returns corpus sizes keyed by tag ID.
func (ix *Index) Stats() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]int, len(ix.corpora))
	for tagID, corpus := range ix.corpora {
		out[tagID] = len(corpus)
	}
	return out
}

// Rebuild replaces the index with the questions currently filed in the forum.
// Threads whose first message cannot be read are skipped. If the thread list
// itself cannot be fetched the existing corpus is left untouched. Questions
// registered while the rebuild runs are kept.
func (ix *Index) Rebuild(ctx context.Context, src ThreadSource) (RebuildStats, error) {
	var stats RebuildStats

	ix.mu.Lock()
	ix.rebuilding++
	ix.mu.Unlock()
	swapped := false
	defer func() {
		if !swapped {
			ix.mu.Lock()
			ix.finishRebuild()
			ix.mu.Unlock()
		}
	}()

	threads, err := src.ListThreads(ctx, "")
	if err != nil {
		return stats, fmt.Errorf("similarity: list threads: %w", err)
	}

	corpora := make(map[string][]Entry)
	for _, thread := range threads {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Threads++

		msg, err := src.FirstMessage(ctx, thread.ID)
		if err != nil {
			log.Printf("similarity: skipping thread %s: %v", thread.ID, err)
			stats.Skipped++
			continue
		}

		text := triage.RecoverQuestionText(thread.Name, msg.Content)
		if strings.TrimSpace(text) == "" {
			stats.Skipped++
			continue
		}

		for _, tagID := range thread.TagIDs {
			corpora[tagID] = append(corpora[tagID], Entry{Text: text, ThreadRef: thread.ID})
			stats.Entries++
		}
	}

	ix.mu.Lock()
	for _, p := range ix.pending {
		if !containsRef(corpora[p.tagID], p.ThreadRef) {
			corpora[p.tagID] = append(corpora[p.tagID], p.Entry)
			stats.Entries++
		}
	}
	ix.corpora = corpora
	ix.finishRebuild()
	swapped = true
	ix.mu.Unlock()

	log.Printf("similarity: rebuilt index from %d threads (%d entries, %d skipped)", stats.Threads, stats.Entries, stats.Skipped)
	return stats, nil
}

// finishRebuild must be called with mu held.
func (ix *Index) finishRebuild() {
	ix.rebuilding--
	if ix.rebuilding == 0 {
		ix.pending = nil
	}
}

func containsRef(corpus []Entry, threadRef string) bool {
	for _, entry := range corpus {
		if entry.ThreadRef == threadRef {
			return true
		}
	}
	return false
}
