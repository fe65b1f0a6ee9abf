package core

import (
	"errors"
	"fmt"
)

// ErrMessageNotFound is returned by transports when a message id does not exist
var ErrMessageNotFound = errors.New("message not found")

// TransportError reports a failure of the mail transport (unreachable, bad credentials)
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AIBackendError reports a failed call to the AI backend (timeout, rate limit, auth, 5xx)
type AIBackendError struct {
	Backend string
	Err     error
}

func (e *AIBackendError) Error() string {
	return fmt.Sprintf("AI backend %s failed: %v", e.Backend, e.Err)
}

func (e *AIBackendError) Unwrap() error {
	return e.Err
}

// ParseError reports an AI response that could not be decoded into a finding
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse AI response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports findings that fail schema checks before scoring
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
