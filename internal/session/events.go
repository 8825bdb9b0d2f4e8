package session

import "github.com/robalobadob/codesiege/internal/puzzle"

// ResultType classifies the message shown under the editor.
type ResultType string

const (
	ResultInfo    ResultType = "info"
	ResultSuccess ResultType = "success"
	ResultError   ResultType = "error"
)

// Result is the latest user-facing outcome message.
type Result struct {
	Type    ResultType `json:"type"`
	Message string     `json:"message"`
}

// Metrics describe how an attempt went.
type Metrics struct {
	Time   float64 `json:"time"`   // seconds since the session started
	Errors int     `json:"errors"` // failed submits, including ones later verified remotely
	Hints  int     `json:"hints"`  // hint tier reached
}

// Completion is emitted exactly once per session: on success (after the
// settle delay) or on timeout.
type Completion struct {
	Success bool            `json:"success"`
	Rewards *puzzle.Rewards `json:"rewards,omitempty"`
	Metrics *Metrics        `json:"metrics,omitempty"`
}

// EventType names what an Event carries.
type EventType string

const (
	EventLog      EventType = "log"
	EventResult   EventType = "result"
	EventConnect  EventType = "connect"
	EventWarning  EventType = "warning"
	EventComplete EventType = "complete"
)

// Event is pushed to the presentation layer.
type Event struct {
	Type       EventType     `json:"type"`
	Line       string        `json:"line,omitempty"`
	Result     *Result       `json:"result,omitempty"`
	Block      *puzzle.Block `json:"block,omitempty"`
	Neighbor   string        `json:"neighbor,omitempty"`
	Completion *Completion   `json:"completion,omitempty"`
}

// Listener receives events in the order they were produced. It runs
// outside the session lock but must not call back into the session.
type Listener func(Event)
