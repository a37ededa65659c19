// Package feed publishes note lifecycle and search events to Kafka. Publishing
// is fire-and-forget: a full buffer drops the event with a warning rather than
// blocking the request path.
package feed

import "time"

type EventType string

const (
	EventNoteSaved   EventType = "note_saved"
	EventNoteUpdated EventType = "note_updated"
	EventNoteDeleted EventType = "note_deleted"
	EventSearch      EventType = "search"
)

// Event is one entry in the note-event feed. Timestamp and Text are set for
// note events, OldTimestamp additionally for updates that moved the note;
// Query and Hits are set for search events.
type Event struct {
	Type         EventType `json:"type"`
	Timestamp    int64     `json:"timestamp,omitempty"`
	OldTimestamp int64     `json:"old_timestamp,omitempty"`
	Text         string    `json:"text,omitempty"`
	Query        string    `json:"query,omitempty"`
	Hits         int       `json:"hits,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	EmittedAt    time.Time `json:"emitted_at"`
}
