package adapters

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
)

// CSV column headers expected in transcript exports.
const (
	csvHeaderTimestamp   = "Timestamp"
	csvHeaderParticipant = "Participant"
	csvHeaderTranscript  = "Transcript"
)

// parseCSV reads one transcript CSV into a single document. The delimiter is
// configurable; spaces around fields and a UTF-8 BOM are tolerated, and rows
// with no content at all are skipped.
func (p *Parser) parseCSV(path string) (*models.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &AdapterError{Path: path, Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = p.csvDelimiter
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &AdapterError{Path: path, Err: fmt.Errorf("failed to read CSV header: %w", err)}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(stripBOM(name))] = i
	}
	for _, required := range []string{csvHeaderTimestamp, csvHeaderParticipant, csvHeaderTranscript} {
		if _, ok := columns[required]; !ok {
			return nil, &AdapterError{Path: path, Err: fmt.Errorf("missing required CSV column %q", required)}
		}
	}

	doc := &models.Document{ID: baseID(path), Source: path}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &AdapterError{Path: path, Err: fmt.Errorf("CSV read error: %w", err)}
		}

		timestamp := fieldAt(record, columns[csvHeaderTimestamp])
		participant := fieldAt(record, columns[csvHeaderParticipant])
		text := fieldAt(record, columns[csvHeaderTranscript])

		// Skip rows without any meaningful content
		if timestamp == "" && participant == "" && text == "" {
			continue
		}

		doc.Turns = append(doc.Turns, models.Turn{
			Participant: participant,
			Text:        text,
			Timestamp:   timestamp,
		})
	}

	p.logger.DebugWithStage(logger.Adapt, "Parsed %d turns from %s", len(doc.Turns), path)
	return doc, nil
}

func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// stripBOM removes a UTF-8 byte order mark, which transcript exports from
// Windows tooling often carry on the first header cell.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
