package document

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no document carries the requested id
var ErrNotFound = errors.New("document not found")

// StoreError wraps a driver fault (I/O, timeout, encoding) so callers never see
// driver specific error types.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Fault wraps err as a StoreError unless it is nil, already a StoreError or
// ErrNotFound.
func Fault(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Predicate selects documents for FindAll and DeleteMany
type Predicate func(Document) bool

// MatchAll selects every document
func MatchAll(Document) bool {
	return true
}

// IDIn selects documents whose id is one of ids
func IDIn(ids ...string) Predicate {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(d Document) bool {
		_, ok := set[d.ID()]
		return ok
	}
}

// Store is a keyed document collection service. Implementations assign ids on
// insert, enforce id uniqueness and nothing else: there are no multi-document
// transactions. Returned documents are copies owned by the caller.
type Store interface {
	// FindAll returns matching documents in store order
	FindAll(ctx context.Context, collection string, match Predicate) ([]Document, error)
	FindByID(ctx context.Context, collection, id string) (Document, error)
	// InsertOne stores doc, assigning an id when it has none, and returns the stored copy
	InsertOne(ctx context.Context, collection string, doc Document) (Document, error)
	// ReplaceOne overwrites the document with doc's id, or returns ErrNotFound
	ReplaceOne(ctx context.Context, collection string, doc Document) error
	DeleteByID(ctx context.Context, collection, id string) error
	// DeleteMany removes every matching document and reports how many were removed
	DeleteMany(ctx context.Context, collection string, match Predicate) (int, error)
	Close() error
}
