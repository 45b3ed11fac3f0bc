package domain

import "fmt"

// Error types for consistent error handling across the portal backend.

// ErrExternalService indicates a transport failure talking to SGP
// (network error or non-2xx response).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates invalid subscriber credentials: either SGP
// resolved zero contracts for the cpfcnpj/senha pair, or a session token
// is invalid or expired.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrDomain indicates an application error reported by SGP itself in the
// response body (campo "erro"/"error").
type ErrDomain struct {
	Service string
	Message string
}

func (e *ErrDomain) Error() string {
	return fmt.Sprintf("sgp error [%s]: %s", e.Service, e.Message)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrConversationBusy indicates a send arrived while the conversation is
// still processing the previous message. One user message at a time.
type ErrConversationBusy struct {
	ConversationID string
}

func (e *ErrConversationBusy) Error() string {
	return fmt.Sprintf("conversation %s is still processing the previous message", e.ConversationID)
}
