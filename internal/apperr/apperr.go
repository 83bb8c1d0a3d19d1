// Package apperr defines the typed errors surfaced by the todo store, the peer
// registry and the sync coordinator.
package apperr

import (
	"errors"
	"fmt"
)

// StorageError reports a persistence-layer failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. It returns nil for a nil err and
// passes through errors that are already typed by this package.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NotFoundError reports a reference to an id that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotFound returns a NotFoundError for the given kind and id.
func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// TransportError reports a failed exchange with a remote counterpart.
type TransportError struct {
	Peer       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: status %d: %v", e.Peer, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NoIdentityError reports a sync attempted before a local peer id exists.
type NoIdentityError struct{}

func (e *NoIdentityError) Error() string {
	return "no local peer identity; connect first"
}

// ValidationError reports malformed input such as a bad import payload.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", msg, e.Err)
	}
	return "invalid " + msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid returns a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Stage names a step of a synchronization round.
type Stage string

const (
	StageIdentity Stage = "identity"
	StageSnapshot Stage = "snapshot"
	StageExchange Stage = "exchange"
	StageMerge    Stage = "merge"
)

// StageError wraps the failure of one sync stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sync failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failed stage recorded in err, or "".
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsStorage reports whether err (or any error in its chain) is a StorageError.
func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsTransport reports whether err (or any error in its chain) is a TransportError.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsNoIdentity reports whether err (or any error in its chain) is a NoIdentityError.
func IsNoIdentity(err error) bool {
	var e *NoIdentityError
	return errors.As(err, &e)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func isTyped(err error) bool {
	return IsStorage(err) || IsNotFound(err) || IsTransport(err) ||
		IsNoIdentity(err) || IsValidation(err)
}
