package redaction

import (
	"fmt"

	"github.com/transcriptops/redactor/pkg/models"
)

// MergeResult reconciles the service's redacted turns with the source
// document. Every source turn must come back exactly once, in submission
// order, under the wire id it was submitted with; anything else is an
// IntegrityError and the document is failed rather than written short.
func MergeResult(doc *models.Document, turns []RedactedTurn) (*models.Document, error) {
	if len(turns) != len(doc.Turns) {
		return nil, &IntegrityError{
			DocumentID: doc.ID,
			Reason:     fmt.Sprintf("service returned %d turns for %d submitted", len(turns), len(doc.Turns)),
		}
	}

	redacted := &models.Document{
		ID:     doc.ID,
		Source: doc.Source,
		Turns:  make([]models.Turn, 0, len(doc.Turns)),
	}
	for i, turn := range doc.Turns {
		if want := turnID(i + 1); turns[i].ID != want {
			return nil, &IntegrityError{
				DocumentID: doc.ID,
				Reason:     fmt.Sprintf("turn %d came back as %q, expected %q", i+1, turns[i].ID, want),
			}
		}
		redacted.Turns = append(redacted.Turns, models.Turn{
			Participant: turn.Participant,
			Text:        turns[i].Text,
			Timestamp:   turn.Timestamp,
		})
	}
	return redacted, nil
}
