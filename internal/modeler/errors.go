package modeler

import (
	"errors"
	"fmt"
)

// ErrMissingID is wrapped by the ValidationError returned when a replace
// targets a document without an id
var ErrMissingID = errors.New("document has no id")

// ValidationError means the batch was rejected before any I/O. Nothing changed.
type ValidationError struct {
	RequestIndex int
	Reason       string
	// Err is the sentinel behind Reason, if any
	Err error
}

const KindMalformedRequest = "malformed-request"

func (e *ValidationError) Error() string {
	if e.RequestIndex < 0 {
		return fmt.Sprintf("%s: %s", KindMalformedRequest, e.Reason)
	}
	return fmt.Sprintf("%s: request %d: %s", KindMalformedRequest, e.RequestIndex, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Kind() string {
	return KindMalformedRequest
}

// ApplyKind classifies an ApplyError
type ApplyKind string

const (
	TargetNotFound ApplyKind = "target-not-found"
	InvalidEdit    ApplyKind = "invalid-edit"
)

// ApplyError aborts a batch part way through. Writes committed before it are
// not rolled back; callers should re-read the collection to reconcile.
type ApplyError struct {
	Kind         ApplyKind
	RequestIndex int
	ID           string
	// OpIndex is the failing edit for InvalidEdit, -1 otherwise
	OpIndex int
	Err     error
}

func (e *ApplyError) Error() string {
	switch e.Kind {
	case InvalidEdit:
		return fmt.Sprintf("%s: request %d, document %s, edit %d: %v", e.Kind, e.RequestIndex, e.ID, e.OpIndex, e.Err)
	default:
		return fmt.Sprintf("%s: request %d, document %s: %v", e.Kind, e.RequestIndex, e.ID, e.Err)
	}
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
