package models

// Turn represents one utterance in a conversation
type Turn struct {
	// Participant identifies the speaker. It is opaque to the pipeline but
	// must be stable across a document so the service can tell speakers apart.
	Participant string

	// Text is the utterance content. May be empty.
	Text string

	// Timestamp is the original source timestamp. Empty means the source had
	// none; it is rendered as null in output and never fabricated.
	Timestamp string
}

// Document is one normalized conversation produced by an input adapter.
// Turn order is preserved end-to-end and validated against the redacted
// result.
type Document struct {
	// ID is derived from the source file base name, with an ordinal suffix
	// for multi-document inputs (for example "calls_001").
	ID string

	// Source is the path of the input file the document was parsed from.
	Source string

	Turns []Turn
}

// TurnCount returns the number of turns in the document.
func (d *Document) TurnCount() int {
	return len(d.Turns)
}
