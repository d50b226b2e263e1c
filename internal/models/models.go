// Package models defines the core data structures for TriageLine.
//
// It includes the triage decision types, session state, request payloads,
// and the API response envelope shared across modules.
package models

import (
	"errors"
	"strings"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a chat message
	MaxMessageLength = 2000
	// DefaultLanguage is used when a request omits or carries an unsupported language
	DefaultLanguage = "en"
)

// SupportedLanguages lists the languages the engine can reply in.
var SupportedLanguages = []string{"en", "hi", "mr", "ta", "te"}

// Error variables for better error handling and testability
var (
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrMessageTooLong    = errors.New("message exceeds maximum length")
	ErrInvalidAction     = errors.New("invalid action id")
	ErrMissingDoctorID   = errors.New("doctorId is required")
	ErrMissingSlotID     = errors.New("slotId is required")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSlotUnavailable   = errors.New("slot is no longer available")
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrInvalidPincode    = errors.New("invalid pincode")
	ErrLocationNotFound  = errors.New("location could not be resolved")
	ErrFacilityLookup    = errors.New("facility lookup failed")
	ErrRemoteUnavailable = errors.New("remote AI engine unavailable")
)

// NormalizeLanguage maps a requested language onto a supported one,
// falling back to English for anything unknown.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range SupportedLanguages {
		if lang == l {
			return l
		}
	}
	return DefaultLanguage
}

// ChatRequest is the payload for a conversational turn.
type ChatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
	Language  string `json:"language,omitempty"`
	Source    string `json:"source,omitempty"` // "text" or "voice"
}

// Validate checks a ChatRequest before it enters the pipeline.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ActionRequest is the payload for a card-button action.
type ActionRequest struct {
	SessionID string         `json:"sessionId,omitempty"`
	ActionID  ActionID       `json:"actionId"`
	Payload   map[string]any `json:"payload,omitempty"`
	Language  string         `json:"language,omitempty"`
}

// Validate checks an ActionRequest.
func (r *ActionRequest) Validate() error {
	if !IsValidActionID(r.ActionID) {
		return ErrInvalidAction
	}
	return nil
}

// TriageRequest is the payload for the stateless one-shot triage endpoint.
type TriageRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Validate checks a TriageRequest.
func (r *TriageRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyMessage
	}
	if len(r.Text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// SessionStartRequest is the payload for creating a new session.
type SessionStartRequest struct {
	Language string `json:"language,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
