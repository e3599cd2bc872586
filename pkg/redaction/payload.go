package redaction

import (
	"fmt"

	"github.com/transcriptops/redactor/pkg/models"
)

// Wire types for the conversation analysis API. Turn ids are generated as
// "conversationId_<n>" (1-based) so redacted items can be matched back to
// source turns by position.

type submitRequest struct {
	Kind          string        `json:"kind"`
	AnalysisInput analysisInput `json:"analysisInput"`
	Tasks         []submitTask  `json:"tasks"`
}

type analysisInput struct {
	Conversations []conversation `json:"conversations"`
}

type conversation struct {
	ID       string             `json:"id"`
	Language string             `json:"language"`
	Modality string             `json:"modality"`
	Items    []conversationItem `json:"conversationItems"`
}

type conversationItem struct {
	ParticipantID string `json:"participantId"`
	ID            string `json:"id"`
	Text          string `json:"text"`
}

type submitTask struct {
	Kind       string         `json:"kind"`
	Parameters taskParameters `json:"parameters"`
}

type taskParameters struct {
	ModelVersion      string          `json:"modelVersion"`
	PIICategories     []string        `json:"piiCategories"`
	RedactAudioTiming bool            `json:"redactAudioTiming"`
	RedactionPolicy   redactionPolicy `json:"redactionPolicy"`
	RedactionSource   string          `json:"redactionSource"`
}

type redactionPolicy struct {
	PolicyKind         string `json:"policyKind"`
	RedactionCharacter string `json:"redactionCharacter"`
}

type operationResponse struct {
	Status string          `json:"status"`
	Error  *operationError `json:"error,omitempty"`
	Tasks  struct {
		Items []struct {
			Results struct {
				Conversations []resultConversation `json:"conversations"`
			} `json:"results"`
		} `json:"items"`
	} `json:"tasks"`
}

type operationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type resultConversation struct {
	ID    string       `json:"id"`
	Items []resultItem `json:"conversationItems"`
}

type resultItem struct {
	ID              string `json:"id"`
	RedactedContent struct {
		Text string `json:"text"`
	} `json:"redactedContent"`
}

// turnID returns the wire id for the nth turn (1-based).
func turnID(n int) string {
	return fmt.Sprintf("conversationId_%d", n)
}

// buildSubmitRequest wraps a document in the analysis envelope the service
// expects.
func buildSubmitRequest(doc *models.Document) submitRequest {
	conv := conversation{
		ID:       doc.ID,
		Language: "en",
		Modality: "text",
		Items:    make([]conversationItem, 0, len(doc.Turns)),
	}
	for i, turn := range doc.Turns {
		conv.Items = append(conv.Items, conversationItem{
			ParticipantID: turn.Participant,
			ID:            turnID(i + 1),
			Text:          turn.Text,
		})
	}

	return submitRequest{
		Kind:          "Conversation",
		AnalysisInput: analysisInput{Conversations: []conversation{conv}},
		Tasks: []submitTask{{
			Kind: "ConversationalPIITask",
			Parameters: taskParameters{
				ModelVersion:      "latest",
				PIICategories:     []string{},
				RedactAudioTiming: false,
				RedactionPolicy: redactionPolicy{
					PolicyKind:         "CharacterMask",
					RedactionCharacter: "*",
				},
				RedactionSource: "lexical",
			},
		}},
	}
}
