package workflow

import (
	"github.com/google/uuid"

	"github.com/stake-plus/forum-triage/src/triage"
)

// Candidate is a prior question shown to the submitter as a possible duplicate.
type Candidate struct {
	Text      string
	ThreadRef string
	URL       string
	Score     float64
}

// Session is one submission's walk through the triage states. Fields set by a
// transition are read by the ones after it.
type Session struct {
	ID           string
	Submission   triage.Submission
	SelectedTags []triage.TopicTag
	State        State
	Candidates   []Candidate
	Answer       string
	Record       *triage.ThreadRecord
	Outcome      Outcome
	Err          error

	available []triage.TopicTag
	history   []State
}

// NewSession starts a session for sub in AwaitingTags.
func NewSession(sub triage.Submission) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Submission: sub,
		State:      AwaitingTags,
		history:    []State{AwaitingTags},
	}
}

// History returns every state the session has been in, in order.
func (s *Session) History() []State {
	return append([]State(nil), s.history...)
}

func (s *Session) enter(next State) {
	s.State = next
	s.history = append(s.history, next)
}

func (s *Session) cancel(outcome Outcome, err error) State {
	s.Outcome = outcome
	if err != nil {
		s.Err = err
	}
	return Cancelled
}

// Question builds the immutable question for the selected tags.
func (s *Session) Question() triage.Question {
	return triage.Question{
		Text:            s.Submission.Text,
		SubmitterID:     s.Submission.SubmitterID,
		SubmitterHandle: s.Submission.SubmitterHandle,
		OriginChannelID: s.Submission.ChannelID,
		Tags:            append([]triage.TopicTag(nil), s.SelectedTags...),
		CreatedAt:       s.Submission.ReceivedAt,
	}
}
