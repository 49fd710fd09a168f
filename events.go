package veil

// Event is a notification emitted by a handler during Deliver. Events
// carry only public attributes; an amount or anything derived from a
// confidential value must never be placed in an event.
type Event struct {
	// Type names the notification, like "escrow/created".
	Type string
	// Attributes are key-value pairs with public metadata.
	Attributes []EventAttribute
}

// EventAttribute is a single key-value pair of an Event.
type EventAttribute struct {
	Key   string
	Value string
}

// NewEvent constructs an event from a type and a flat list of
// key-value string pairs. It panics on an odd number of pairs as that
// is always a programming error.
func NewEvent(typ string, pairs ...string) Event {
	if len(pairs)%2 != 0 {
		panic("event attributes must come in key-value pairs")
	}
	attrs := make([]EventAttribute, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		attrs = append(attrs, EventAttribute{Key: pairs[i], Value: pairs[i+1]})
	}
	return Event{Type: typ, Attributes: attrs}
}
