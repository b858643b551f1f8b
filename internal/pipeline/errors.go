package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKind classifies a stage failure and fixes its HTTP status code.
type ErrKind int

const (
	// InvalidRequest covers missing or malformed identifiers and absent
	// upstream artifacts.
	InvalidRequest ErrKind = iota
	// NotFound means the post or the website settings do not exist.
	NotFound
	// Forbidden means the post belongs to a different website.
	Forbidden
	// MalformedModelOutput means the agent's output failed structural
	// validation.
	MalformedModelOutput
	// AgentFailure means the agent call errored or returned empty output.
	AgentFailure
	// PersistenceFailure means a store read or write failed.
	PersistenceFailure
)

func (k ErrKind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case MalformedModelOutput:
		return "malformed_model_output"
	case AgentFailure:
		return "agent_failure"
	case PersistenceFailure:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// StatusCode maps the kind to its HTTP status code.
func (k ErrKind) StatusCode() int {
	switch k {
	case InvalidRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// StageError is the typed error every stage failure propagates. Message is
// safe to return to callers; Detail carries raw diagnostics (for example the
// unparseable model text) and is logged but never echoed back.
type StageError struct {
	Kind    ErrKind
	Stage   string
	Message string
	Detail  string
	Err     error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("[%s][%s] %s", e.Stage, e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for the caller-facing response.
func (e *StageError) StatusCode() int {
	return e.Kind.StatusCode()
}

// Errorf builds a StageError with a formatted caller-facing message.
func Errorf(kind ErrKind, stage, format string, args ...any) *StageError {
	return &StageError{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap builds a StageError around an underlying cause.
func Wrap(err error, kind ErrKind, stage, message string) *StageError {
	return &StageError{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// AsStageError unwraps err into a *StageError, or wraps it as a generic
// internal error when it is not one.
func AsStageError(err error, stage string) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{
		Kind:    PersistenceFailure,
		Stage:   stage,
		Message: "An unexpected error occurred during stage processing.",
		Err:     err,
	}
}
