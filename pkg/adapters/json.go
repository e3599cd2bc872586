package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/transcriptops/redactor/pkg/logger"
	"github.com/transcriptops/redactor/pkg/models"
)

// fallbackConversationKeys are tried in order when no conversation path is
// configured and the document is an object.
var fallbackConversationKeys = []string{"phrases", "messages", "conversation", "items"}

// parseJSON reads one JSON file into one or more documents. In multi-document
// mode a top-level array yields one document per element, with ordinal ID
// suffixes _001, _002, ...
func (p *Parser) parseJSON(path string) ([]*models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &AdapterError{Path: path, Err: err}
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &AdapterError{Path: path, Err: fmt.Errorf("failed to decode JSON: %w", err)}
	}

	base := baseID(path)

	if list, ok := data.([]interface{}); ok && p.json.MultiDoc {
		docs := make([]*models.Document, 0, len(list))
		for i, element := range list {
			switch element.(type) {
			case map[string]interface{}, []interface{}:
			default:
				continue
			}
			id := fmt.Sprintf("%s_%03d", base, i+1)
			doc, err := p.buildDocument(element, id, path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		p.logger.DebugWithStage(logger.Adapt, "Split %s into %d documents", path, len(docs))
		return docs, nil
	}

	doc, err := p.buildDocument(data, base, path)
	if err != nil {
		return nil, err
	}
	return []*models.Document{doc}, nil
}

// buildDocument locates the conversation array inside a decoded JSON value
// and maps its items onto turns using the configured field names.
func (p *Parser) buildDocument(data interface{}, id, path string) (*models.Document, error) {
	var items []interface{}
	if list, ok := data.([]interface{}); ok {
		items = list
	} else {
		if resolved := ResolvePath(data, p.json.ConversationPath); resolved != nil {
			items, _ = resolved.([]interface{})
		}
		if items == nil {
			if obj, ok := data.(map[string]interface{}); ok {
				for _, key := range fallbackConversationKeys {
					if list, ok := obj[key].([]interface{}); ok {
						items = list
						break
					}
				}
			}
		}
	}

	if items == nil {
		return nil, &AdapterError{
			Path: path,
			Err:  fmt.Errorf("could not locate conversation array; set JSON_CONVERSATION_PATH (e.g. 'phrases')"),
		}
	}

	doc := &models.Document{ID: id, Source: path}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		participant := stringField(obj, p.json.ParticipantField)
		text := stringField(obj, p.json.TextField)
		timestamp := ""
		if p.json.TimestampField != "" {
			timestamp = stringField(obj, p.json.TimestampField)
		}

		if participant == "" && text == "" && timestamp == "" {
			continue
		}

		doc.Turns = append(doc.Turns, models.Turn{
			Participant: participant,
			Text:        text,
			Timestamp:   timestamp,
		})
	}

	return doc, nil
}

// stringField reads a field as trimmed text, rendering non-string scalars the
// way the source printed them.
func stringField(obj map[string]interface{}, field string) string {
	if field == "" {
		return ""
	}
	value, ok := obj[field]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
