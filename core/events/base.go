package events

import "time"

// Kind discriminates event types in logs and type switches. Values are
// namespaced strings; doc.go lists every kind this package emits.
type Kind string

// Event is implemented by every session event. Concrete events embed [Base]
// and add their payload fields.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and emission time shared by all events.
type Base struct {
	kind       Kind
	occurredAt time.Time
}

// NewBase stamps a new event base with the current time.
func NewBase(kind Kind) Base {
	return Base{kind: kind, occurredAt: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.occurredAt }
