package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stake-plus/forum-triage/src/triage"
)

// PostingError reports that a question could not be filed.
type PostingError struct {
	Title string
	Err   error
}

func (e *PostingError) Error() string {
	return fmt.Sprintf("posting %q: %v", e.Title, e.Err)
}

func (e *PostingError) Unwrap() error { return e.Err }

// Registrar records filed questions for duplicate detection.
type Registrar interface {
	Register(tagID, text, threadRef string) error
}

// Poster files accepted questions as forum threads.
type Poster struct {
	forum        triage.Forum
	index        Registrar
	attributions triage.AttributionStore
	events       triage.EventPublisher
	now          func() time.Time
}

// NewPoster returns a poster writing to forum and registering into index.
func NewPoster(forum triage.Forum, index Registrar) *Poster {
	return &Poster{forum: forum, index: index, now: time.Now}
}

// WithAttributions makes the poster record who asked each filed question.
func (p *Poster) WithAttributions(store triage.AttributionStore) *Poster {
	p.attributions = store
	return p
}

// WithEvents makes the poster publish a thread_filed event per thread.
func (p *Poster) WithEvents(pub triage.EventPublisher) *Poster {
	p.events = pub
	return p
}

// Post creates the thread for q and registers it under every tag of q. answer is
// included in the body unless it is empty or a bare negative.
func (p *Poster) Post(ctx context.Context, q triage.Question, answer string) (*triage.ThreadRecord, error) {
	title := triage.DeriveTitle(q.Text)
	if len(q.Tags) == 0 {
		return nil, &PostingError{Title: title, Err: fmt.Errorf("%w: question has no tags", triage.ErrConfiguration)}
	}

	body := triage.BuildBody(q, answer)
	thread, err := p.forum.CreateThread(ctx, title, body, q.TagIDs())
	if err != nil {
		if !errors.Is(err, triage.ErrTransport) {
			err = fmt.Errorf("%w: %v", triage.ErrTransport, err)
		}
		return nil, &PostingError{Title: title, Err: err}
	}

	for _, tag := range q.Tags {
		if err := p.index.Register(tag.ID, q.Text, thread.ID); err != nil {
			log.Printf("poster: register thread %s under tag %s: %v", thread.ID, tag.Name, err)
		}
	}

	record := &triage.ThreadRecord{
		Title:          title,
		ThreadRef:      thread.ID,
		URL:            p.forum.ThreadURL(thread.ID),
		Tags:           append([]triage.TopicTag(nil), q.Tags...),
		OriginCitation: triage.AttributionLine(q),
	}

	if p.attributions != nil {
		err := p.attributions.RecordAttribution(ctx, triage.Attribution{
			ThreadID:        thread.ID,
			SubmitterID:     q.SubmitterID,
			SubmitterHandle: q.SubmitterHandle,
			Question:        q.Text,
			CreatedAt:       p.now(),
		})
		if err != nil {
			log.Printf("poster: record attribution for thread %s: %v", thread.ID, err)
		}
	}

	if p.events != nil {
		err := p.events.Publish(ctx, triage.Event{
			Kind:        triage.EventThreadFiled,
			ThreadID:    thread.ID,
			Title:       title,
			URL:         record.URL,
			TagIDs:      q.TagIDs(),
			SubmitterID: q.SubmitterID,
			At:          p.now(),
		})
		if err != nil {
			log.Printf("poster: publish event for thread %s: %v", thread.ID, err)
		}
	}

	log.Printf("poster: filed thread %s %q under %v", thread.ID, title, triage.TagNames(q.Tags))
	return record, nil
}
