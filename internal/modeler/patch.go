package modeler

import (
	"context"
	"errors"
	"time"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/editscript"

	"github.com/golang/glog"
)

// PatchRequest targets a group of documents with one edit script. A nil Edits
// is malformed; an empty, non-nil Edits is a valid no-op.
type PatchRequest struct {
	IDs   []string
	Edits editscript.Script
}

// ApplyOne is ApplyBatch for a single request
func (s *Service) ApplyOne(ctx context.Context, request *PatchRequest) ([]document.Document, error) {
	return s.ApplyBatch(ctx, []*PatchRequest{request})
}

// ApplyBatch validates every request, then applies each request's edits to each
// of its documents in submission order (request order, then id order), replacing
// every document as it goes. It returns the edited documents in that order.
//
// Validation failures touch nothing. Any later failure stops the batch and
// returns only the error; documents already replaced stay replaced.
func (s *Service) ApplyBatch(ctx context.Context, requests []*PatchRequest) ([]document.Document, error) {
	if err := validateBatch(requests); err != nil {
		return nil, err
	}

	start := time.Now()
	values := []document.Document{}
	var touched []string

	// Publish whatever was committed, even when the batch fails part way.
	defer func() {
		if len(touched) > 0 {
			s.feed.Publish(Change{Kind: Patched, IDs: touched})
		}
	}()

	// Requests run one after another so overlapping ids end in submission order.
	for i, request := range requests {
		for _, id := range request.IDs {
			value, err := s.applyRequest(ctx, i, id, request.Edits)
			if err != nil {
				glog.V(1).Infof("Patch batch stopped at request %d after %d documents: %v", i, len(touched), err)
				return nil, err
			}
			touched = append(touched, id)
			values = append(values, value)
		}
	}

	glog.V(1).Infof("Patched %d documents from %d requests in %s", len(values), len(requests), time.Since(start))
	return values, nil
}

func validateBatch(requests []*PatchRequest) error {
	for i, request := range requests {
		switch {
		case request == nil:
			return &ValidationError{RequestIndex: i, Reason: "request is missing"}
		case request.IDs == nil:
			return &ValidationError{RequestIndex: i, Reason: "ids are missing"}
		case len(request.IDs) == 0:
			return &ValidationError{RequestIndex: i, Reason: "ids are empty"}
		case request.Edits == nil:
			return &ValidationError{RequestIndex: i, Reason: "edit script is missing"}
		}
	}
	return nil
}

// applyRequest reads, edits and replaces one document
func (s *Service) applyRequest(ctx context.Context, index int, id string, edits editscript.Script) (document.Document, error) {
	doc, err := s.positions.FindByID(ctx, id)
	if errors.Is(err, document.ErrNotFound) {
		return nil, &ApplyError{Kind: TargetNotFound, RequestIndex: index, ID: id, OpIndex: -1, Err: err}
	}
	if err != nil {
		return nil, document.Fault("find", err)
	}

	value, err := editscript.Apply(doc, edits)
	if err != nil {
		opIndex := -1
		var editErr *editscript.EditError
		if errors.As(err, &editErr) {
			opIndex = editErr.Index
		}
		return nil, &ApplyError{Kind: InvalidEdit, RequestIndex: index, ID: id, OpIndex: opIndex, Err: err}
	}

	err = s.positions.ReplaceOne(ctx, value)
	if errors.Is(err, document.ErrNotFound) {
		// deleted between the read and the write
		return nil, &ApplyError{Kind: TargetNotFound, RequestIndex: index, ID: id, OpIndex: -1, Err: err}
	}
	if err != nil {
		return nil, document.Fault("replace", err)
	}

	glog.V(2).Infof("Patched position %s (request %d)", id, index)
	return value, nil
}
