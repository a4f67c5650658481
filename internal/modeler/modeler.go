// Package modeler maintains the ordered collection of position documents and
// applies batches of field level patches to them.
//
// There is no cross-call isolation. Two concurrent calls touching the same
// document interleave at the granularity of single store operations and the
// last replace wins. NextPosition reads then computes without a lock, so two
// concurrent creates can stamp the same listPosition.
package modeler

import (
	"context"
	"errors"
	"sort"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/repository"

	"github.com/golang/glog"
)

// Service is the core of the position modeler. The repository's store is
// owned by the caller; Service never opens or closes it.
type Service struct {
	positions *repository.Repository
	feed      *Feed
}

func NewService(positions *repository.Repository) *Service {
	return &Service{positions: positions, feed: NewFeed()}
}

// Changes returns the service's change feed
func (s *Service) Changes() *Feed {
	return s.feed
}

// NotifyExternal publishes a change made to the store behind the service's back
func (s *Service) NotifyExternal(ids ...string) {
	s.feed.Publish(Change{Kind: External, IDs: ids})
}

// NextPosition returns 0 for an empty collection, else 1 + the largest listPosition
func (s *Service) NextPosition(ctx context.Context) (int, error) {
	docs, err := s.positions.FindAll(ctx, document.MatchAll)
	if err != nil {
		return 0, document.Fault("find", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	next := docs[0].ListPosition()
	for _, doc := range docs[1:] {
		next = max(next, doc.ListPosition())
	}
	return next + 1, nil
}

// ListAllOrdered returns every document sorted ascending by listPosition. Ties
// keep store order.
func (s *Service) ListAllOrdered(ctx context.Context) ([]document.Document, error) {
	return s.List(ctx, document.MatchAll)
}

// List is ListAllOrdered restricted to documents matching match
func (s *Service) List(ctx context.Context, match document.Predicate) ([]document.Document, error) {
	docs, err := s.positions.FindAll(ctx, match)
	if err != nil {
		return nil, document.Fault("find", err)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].ListPosition() < docs[j].ListPosition()
	})
	return docs, nil
}

func (s *Service) Get(ctx context.Context, id string) (document.Document, error) {
	doc, err := s.positions.FindByID(ctx, id)
	if err != nil {
		return nil, document.Fault("find", err)
	}
	return doc, nil
}

// Create appends doc to the ordering and stores it. Any id or listPosition
// already on doc is discarded; the store assigns the id.
func (s *Service) Create(ctx context.Context, doc document.Document) (document.Document, error) {
	position, err := s.NextPosition(ctx)
	if err != nil {
		return nil, err
	}

	value := doc.Clone()
	delete(value, document.IDField)
	value.SetListPosition(position)

	created, err := s.positions.InsertOne(ctx, value)
	if err != nil {
		return nil, document.Fault("insert", err)
	}

	glog.V(1).Infof("Created position %s at %d", created.ID(), position)
	s.feed.Publish(Change{Kind: Created, IDs: []string{created.ID()}})
	return created, nil
}

// Replace overwrites the stored document carrying doc's id
func (s *Service) Replace(ctx context.Context, doc document.Document) (document.Document, error) {
	if doc.ID() == "" {
		return nil, &ValidationError{RequestIndex: -1, Reason: ErrMissingID.Error(), Err: ErrMissingID}
	}
	value := doc.Clone()
	if err := s.positions.ReplaceOne(ctx, value); err != nil {
		return nil, document.Fault("replace", err)
	}

	glog.V(1).Infof("Replaced position %s", value.ID())
	s.feed.Publish(Change{Kind: Replaced, IDs: []string{value.ID()}})
	return value, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.positions.DeleteByID(ctx, id); err != nil {
		return document.Fault("delete", err)
	}

	glog.V(1).Infof("Deleted position %s", id)
	s.feed.Publish(Change{Kind: Deleted, IDs: []string{id}})
	return nil
}

// DeleteMany removes every document whose id is in ids. Unknown ids are ignored
// and left out of the published change.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (int, error) {
	wanted := document.IDIn(ids...)
	var matched []string
	n, err := s.deleteWhere(ctx, func(doc document.Document) bool {
		if !wanted(doc) {
			return false
		}
		matched = append(matched, doc.ID())
		return true
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.feed.Publish(Change{Kind: Deleted, IDs: matched})
	}
	return n, nil
}

// DeleteWhere removes every document matching match
func (s *Service) DeleteWhere(ctx context.Context, match document.Predicate) (int, error) {
	if match == nil {
		return 0, errors.New("delete requires a predicate")
	}
	n, err := s.deleteWhere(ctx, match)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.feed.Publish(Change{Kind: Deleted})
	}
	return n, nil
}

func (s *Service) deleteWhere(ctx context.Context, match document.Predicate) (int, error) {
	n, err := s.positions.DeleteMany(ctx, match)
	if err != nil {
		return 0, document.Fault("delete", err)
	}
	glog.V(1).Infof("Deleted %d positions", n)
	return n, nil
}
