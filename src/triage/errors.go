package triage

import "errors"

var (
	// ErrTransport marks a failed collaborator call (forum API, oracle).
	ErrTransport = errors.New("triage: transport failure")
	// ErrConfiguration marks a missing external resource such as the forum channel.
	ErrConfiguration = errors.New("triage: configuration error")
	// ErrTimeout is returned by a Prompter when the submitter does not answer in time.
	ErrTimeout = errors.New("triage: prompt timed out")
	// ErrParse marks an attribution line that could not be recovered.
	ErrParse = errors.New("triage: parse error")
)
