// Package repository binds a document store to a single collection.
package repository

import (
	"context"

	"gihan9a/positionmodeler/internal/document"
)

// PositionsCollection is the collection position documents live in
const PositionsCollection = "positions"

// Repository is a typed facade over one collection of a document.Store. It adds
// no behaviour of its own.
type Repository struct {
	store      document.Store
	collection string
}

// New binds store to collection
func New(store document.Store, collection string) *Repository {
	return &Repository{store: store, collection: collection}
}

// NewPositions binds store to the positions collection
func NewPositions(store document.Store) *Repository {
	return New(store, PositionsCollection)
}

func (r *Repository) Collection() string {
	return r.collection
}

func (r *Repository) FindAll(ctx context.Context, match document.Predicate) ([]document.Document, error) {
	return r.store.FindAll(ctx, r.collection, match)
}

func (r *Repository) FindByID(ctx context.Context, id string) (document.Document, error) {
	return r.store.FindByID(ctx, r.collection, id)
}

func (r *Repository) InsertOne(ctx context.Context, doc document.Document) (document.Document, error) {
	return r.store.InsertOne(ctx, r.collection, doc)
}

func (r *Repository) ReplaceOne(ctx context.Context, doc document.Document) error {
	return r.store.ReplaceOne(ctx, r.collection, doc)
}

func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	return r.store.DeleteByID(ctx, r.collection, id)
}

func (r *Repository) DeleteMany(ctx context.Context, match document.Predicate) (int, error) {
	return r.store.DeleteMany(ctx, r.collection, match)
}
