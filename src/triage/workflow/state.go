package workflow

// State is a step of a triage session.
type State int

const (
	AwaitingTags State = iota
	CheckingDuplicates
	DuplicatesFound
	NoDuplicates
	ProbingAnswer
	AnswerFound
	NoAnswer
	Posting
	Done
	Cancelled
)

var stateNames = [...]string{
	AwaitingTags:       "AWAITING_TAGS",
	CheckingDuplicates: "CHECKING_DUPLICATES",
	DuplicatesFound:    "DUPLICATES_FOUND",
	NoDuplicates:       "NO_DUPLICATES",
	ProbingAnswer:      "PROBING_ANSWER",
	AnswerFound:        "ANSWER_FOUND",
	NoAnswer:           "NO_ANSWER",
	Posting:            "POSTING",
	Done:               "DONE",
	Cancelled:          "CANCELLED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions leave s.
func (s State) Terminal() bool {
	return s == Done || s == Cancelled
}

// Outcome explains how a session ended.
type Outcome string

const (
	OutcomePending       Outcome = ""
	OutcomeFiled         Outcome = "filed"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeTimedOut      Outcome = "timed_out"
	OutcomeNoTags        Outcome = "no_tags"
	OutcomeAnswered      Outcome = "answered"
	OutcomePostingFailed Outcome = "posting_failed"
	OutcomeUnconfigured  Outcome = "unconfigured"
	OutcomeAborted       Outcome = "aborted"
)
