package session

import (
	"time"

	"mspro-labs/tender-pricer/internal/models"
)

// EventKind tags what a run loop reports to its observer.
type EventKind string

const (
	EventLog        EventKind = "log"
	EventRowAdded   EventKind = "row_added"
	EventRowUpdated EventKind = "row_updated"
	EventAutoSave   EventKind = "auto_save"
	EventFinished   EventKind = "finished"
)

// Event is one message from the worker to the observer.
type Event struct {
	Kind    EventKind
	Item    models.ItemResult
	Message string
	OK      bool // auto_save: whether the snapshot was written
	Time    time.Time
}

// Drain polls events every interval and hands them to handle in order. It
// returns once the channel is closed and empty.
func Drain(events <-chan Event, interval time.Duration, handle func(Event)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if !drainPending(events, handle) {
			return
		}
	}
}

// drainPending handles everything queued right now. It returns false once
// the channel is closed.
func drainPending(events <-chan Event, handle func(Event)) bool {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			handle(ev)
		default:
			return true
		}
	}
}
