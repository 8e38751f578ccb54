package client

import "github.com/brandstaetter/brandybox/internal/client/sync"

// EventType discriminates daemon events.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventWarnings EventType = "warnings"
	EventError    EventType = "error"
)

// Event is one observable state change of the running daemon. Events from
// all engine workers are funneled through a single channel so consumers see
// a serialized stream without locking.
type Event struct {
	Type   EventType
	Status string

	// progress
	Phase     sync.Phase
	Completed int
	Total     int

	// complete
	Downloaded int
	Uploaded   int

	// warnings
	Skipped     int
	SamplePaths []string

	// error
	Err error
}
