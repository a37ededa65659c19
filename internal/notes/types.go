// Package notes implements the note domain: timestamped free-text entries
// stored alongside an inverted index of their tokens. The repository owns the
// key layout and index maintenance; the service adds per-timestamp locking,
// cache invalidation and the event feed on top.
package notes

// Note is a timestamped free-text entry. The timestamp is the identity: Unix
// seconds, unique per note.
type Note struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}
