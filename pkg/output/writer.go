// Package output persists redacted documents. The presence of an artifact is
// the idempotency marker for the whole pipeline: a document with an artifact
// is never resubmitted, and artifacts only ever appear fully written.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
)

// artifact is the on-disk JSON shape of a redacted conversation.
type artifact struct {
	ID           string                 `json:"id"`
	Metadata     map[string]interface{} `json:"metadata"`
	Conversation []artifactTurn         `json:"conversation"`
}

type artifactTurn struct {
	// Timestamp is null when the source had none; it is never fabricated.
	Timestamp   *string `json:"timestamp"`
	Participant string  `json:"participant"`
	Text        string  `json:"text"`
}

// Writer writes one artifact per document into the output directory.
type Writer struct {
	dir    string
	logger logger.Logger
}

// NewWriter creates the output directory if needed and returns a writer for
// it.
func NewWriter(dir string, log logger.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: log}, nil
}

// ArtifactPath returns where the artifact for a document id lives.
func (w *Writer) ArtifactPath(docID string) string {
	return filepath.Join(w.dir, docID+".json")
}

// ShouldProcess reports whether a document still needs redaction. A document
// whose artifact already exists is skipped entirely, which makes batch runs
// safely re-runnable after partial failure.
func (w *Writer) ShouldProcess(docID string) bool {
	_, err := os.Stat(w.ArtifactPath(docID))
	return os.IsNotExist(err)
}

// Write persists a redacted document atomically: the content goes to a
// temporary file in the same directory and is renamed into place, so no
// reader or subsequent run ever observes a partial artifact.
func (w *Writer) Write(doc *models.Document) error {
	out := artifact{
		ID:           doc.ID,
		Metadata:     map[string]interface{}{},
		Conversation: make([]artifactTurn, 0, len(doc.Turns)),
	}
	for _, turn := range doc.Turns {
		t := artifactTurn{Participant: turn.Participant, Text: turn.Text}
		if turn.Timestamp != "" {
			ts := turn.Timestamp
			t.Timestamp = &ts
		}
		out.Conversation = append(out.Conversation, t)
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact for %s: %w", doc.ID, err)
	}

	tmp, err := os.CreateTemp(w.dir, doc.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", doc.ID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact for %s: %w", doc.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", doc.ID, err)
	}

	final := w.ArtifactPath(doc.ID)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move artifact for %s into place: %w", doc.ID, err)
	}

	w.logger.InfoWithStage(logger.Write, "Wrote redacted artifact %s", final)
	return nil
}
