package domain

import (
	"fmt"
	"strings"
)

// Assistant defaults.
const (
	DefaultAskTopN = 5

	// MaxQuestionLength bounds the question size in characters.
	MaxQuestionLength = 2000
)

// InsufficientInformationAnswer is returned when no source clears the threshold.
const InsufficientInformationAnswer = "I could not find relevant information in our knowledge base to answer this question."

// Answer statuses.
const (
	AnswerStatusSuccess   = "success"
	AnswerStatusNoSources = "no_sources"
)

// AskRequest is a question for the assistant.
type AskRequest struct {
	Question string `json:"question"`

	// Context carries optional caller context (page, cart, locale).
	// It is forwarded to the generator, never used for retrieval.
	Context map[string]string `json:"context,omitempty"`
}

// Validate rejects blank or oversized questions.
func (r AskRequest) Validate() error {
	q := strings.TrimSpace(r.Question)
	if q == "" {
		return fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	if len([]rune(q)) > MaxQuestionLength {
		return fmt.Errorf("%w: question exceeds %d characters", ErrValidation, MaxQuestionLength)
	}
	return nil
}

// Source is a citation attached to an answer.
type Source struct {
	ChunkID          string  `json:"chunk_id"`
	SourceDocumentID string  `json:"source_document_id"`
	Title            string  `json:"title"`
	Category         string  `json:"category"`
	Type             string  `json:"type"`
	Score            float64 `json:"score"`
	Excerpt          string  `json:"excerpt"`
}

// Answer is the assistant response.
type Answer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	TraceID    string   `json:"trace_id"`
	Status     string   `json:"status"`

	// Generator names the backend that produced the text.
	Generator string `json:"generator,omitempty"`
}
