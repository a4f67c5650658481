package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/editscript"
	"gihan9a/positionmodeler/internal/modeler"
	"gihan9a/positionmodeler/internal/query"
	"gihan9a/positionmodeler/internal/utils"
	"gihan9a/positionmodeler/pkg/modelerapi"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds every request body
const maxBodyBytes = 8 << 20

// listPositions returns the ordered collection, or subscribes to it when the
// request carries "Subscribe: true"
func (s *PositionServer) listPositions(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Subscribe"), "true") {
		s.subscribe(w, r)
		return
	}

	var match document.Predicate = document.MatchAll
	if source := r.URL.Query().Get("filter"); source != "" {
		filter, err := query.Compile(source)
		if err != nil {
			s.writeBadRequest(w, err)
			return
		}
		match = filter.Predicate()
	}

	docs, err := s.service.List(r.Context(), match)
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := json.Marshal(docs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Version", utils.CalculateHash(data))
	w.Write(data)
}

func (s *PositionServer) getPosition(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *PositionServer) createPosition(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	created, err := s.service.Create(r.Context(), doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, created)
}

func (s *PositionServer) replacePosition(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		s.writeBadRequest(w, err)
		return
	}
	replaced, err := s.service.Replace(r.Context(), doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, replaced)
}

// patchPositions applies a batch of patch requests
func (s *PositionServer) patchPositions(w http.ResponseWriter, r *http.Request) {
	var body []*modelerapi.PatchRequest
	if err := readJSON(r, &body); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if body == nil {
		s.writeBadRequest(w, errors.New("request body must be an array of patch requests"))
		return
	}

	requests := make([]*modeler.PatchRequest, len(body))
	for i, request := range body {
		requests[i] = toPatchRequest(request)
	}

	values, err := s.service.ApplyBatch(r.Context(), requests)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

// patchPosition applies a single patch request
func (s *PositionServer) patchPosition(w http.ResponseWriter, r *http.Request) {
	var body *modelerapi.PatchRequest
	if err := readJSON(r, &body); err != nil {
		s.writeBadRequest(w, err)
		return
	}

	values, err := s.service.ApplyOne(r.Context(), toPatchRequest(body))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

func (s *PositionServer) deletePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// deletePositions removes the positions named in the body, or those matching
// the filter query parameter
func (s *PositionServer) deletePositions(w http.ResponseWriter, r *http.Request) {
	var (
		n   int
		err error
	)
	if source := r.URL.Query().Get("filter"); source != "" {
		filter, compileErr := query.Compile(source)
		if compileErr != nil {
			s.writeBadRequest(w, compileErr)
			return
		}
		n, err = s.service.DeleteWhere(r.Context(), filter.Predicate())
	} else {
		var ids []string
		if err := readJSON(r, &ids); err != nil {
			s.writeBadRequest(w, err)
			return
		}
		n, err = s.service.DeleteMany(r.Context(), ids)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	glog.V(1).Infof("Bulk delete removed %d positions", n)
	w.WriteHeader(http.StatusOK)
}

// toPatchRequest converts the wire form, keeping absent fields absent so the
// pipeline can reject them
func toPatchRequest(request *modelerapi.PatchRequest) *modeler.PatchRequest {
	if request == nil {
		return nil
	}
	out := &modeler.PatchRequest{IDs: request.IDs}
	if request.PatchDocument != nil {
		out.Edits = make(editscript.Script, len(request.PatchDocument))
		for i, op := range request.PatchDocument {
			out.Edits[i] = editscript.Operation{
				Op:    editscript.Kind(op.Op),
				Path:  op.Path,
				From:  op.From,
				Value: op.Value,
			}
		}
	}
	return out
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading request body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return data, nil
}

func readJSON(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func readDocument(r *http.Request) (document.Document, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	return document.Unmarshal(data)
}

func (s *PositionServer) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *PositionServer) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, modelerapi.Error{Error: err.Error()})
}

// writeError maps core errors to status codes
func (s *PositionServer) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *modeler.ValidationError
		applyErr      *modeler.ApplyError
	)
	body := modelerapi.Error{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body.Kind = validationErr.Kind()
		if validationErr.RequestIndex >= 0 {
			body.RequestIndex = &validationErr.RequestIndex
		}
	case errors.As(err, &applyErr):
		status = http.StatusNotFound
		if applyErr.Kind == modeler.InvalidEdit {
			status = http.StatusUnprocessableEntity
		}
		body.Kind = string(applyErr.Kind)
		body.RequestIndex = &applyErr.RequestIndex
		body.ID = applyErr.ID
		if applyErr.OpIndex >= 0 {
			body.OpIndex = &applyErr.OpIndex
		}
	case errors.Is(err, document.ErrNotFound):
		status = http.StatusNotFound
	default:
		glog.Errorf("Request failed: %v", err)
	}

	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
