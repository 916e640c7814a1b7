// Package events publishes committed mutations to in-process subscribers.
package events

import "time"

// Type is the kind of mutation an Event reports.
type Type string

const (
	TypeCreated Type = "created"
	TypeUpdated Type = "updated"
	TypeDeleted Type = "deleted"
)

// Event describes one committed mutation. A delete carries the version it
// removed. Events for the same key may reach a subscriber out of order;
// Revision gives their true order, across deletes and recreates too.
type Event struct {
	Type      Type      `json:"type"`
	Key       int64     `json:"key"`
	Version   int64     `json:"version"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event stamped with the current time.
func New(t Type, key, version, revision int64) Event {
	return Event{
		Type:      t,
		Key:       key,
		Version:   version,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}
