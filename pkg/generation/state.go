package generation

import "github.com/integrail/gsearch/pkg/extract"

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the generation lifecycle. Result, Text and Sources are set only when
// Succeeded, Error only when Failed. Result is Text with the sources block appended.
type State struct {
	Status  Status
	Result  string
	Text    string
	Sources []extract.Source
	Error   string
}

func (s State) IsLoading() bool {
	return s.Status == StatusLoading
}

func (s State) Response() string {
	return s.Result
}

func (s State) Err() string {
	return s.Error
}

// Terminal reports whether no further transition happens without a new submission.
func (s State) Terminal() bool {
	return s.Status != StatusLoading
}

func idle() State {
	return State{Status: StatusIdle}
}

func loading() State {
	return State{Status: StatusLoading}
}

func succeeded(result, text string, sources []extract.Source) State {
	return State{Status: StatusSucceeded, Result: result, Text: text, Sources: sources}
}

func failed(message string) State {
	return State{Status: StatusFailed, Error: message}
}
