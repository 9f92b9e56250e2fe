package model

import "time"

// EventKind classifies what a display event means to the UI.
type EventKind string

const (
	// KindMessage is a decrypted chat line from a peer.
	KindMessage EventKind = "message"
	// KindSystem is a local or relayed status line (joins, refusals, ...).
	KindSystem EventKind = "system"
	// KindError is a non-fatal problem worth showing inline, e.g. one
	// undecryptable frame.
	KindError EventKind = "error"
	// KindDisconnect is terminal: the transport is gone.
	KindDisconnect EventKind = "disconnect"
)

type (
	// Event is one display event flowing from the session core to the UI and
	// the admin feed.
	Event struct {
		Kind   EventKind `json:"kind"`
		Sender string    `json:"sender,omitempty"`
		Text   string    `json:"text"`
		Time   time.Time `json:"time"`
	}
)

func NewMessage(sender, text string) Event {
	return Event{Kind: KindMessage, Sender: sender, Text: text, Time: time.Now()}
}

func NewSystem(text string) Event {
	return Event{Kind: KindSystem, Sender: "System", Text: text, Time: time.Now()}
}

func NewError(text string) Event {
	return Event{Kind: KindError, Sender: "System", Text: text, Time: time.Now()}
}

func NewDisconnect(text string) Event {
	return Event{Kind: KindDisconnect, Sender: "System", Text: text, Time: time.Now()}
}
