package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolSequence = errors.New("operation not allowed in current negotiation state")
	ErrNotFound         = errors.New("connection not found")
	ErrAlreadyExists    = errors.New("connection already exists")
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnectionError ties an error to the connection and operation it came from.
type ConnectionError struct {
	ID  ConnectionID
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CollaboratorError is a failure reported by the media engine.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("media engine %s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func NewSequenceError(id ConnectionID, op string, format string, args ...any) error {
	return &ConnectionError{
		ID:  id,
		Op:  op,
		Err: fmt.Errorf("%w: "+format, append([]any{ErrProtocolSequence}, args...)...),
	}
}
