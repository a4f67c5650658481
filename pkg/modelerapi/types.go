// Package modelerapi holds the JSON wire types of the position modeler API.
package modelerapi

import (
	"github.com/goccy/go-json"
)

// Operation is one field level edit, in RFC 6902 shape
type Operation struct {
	Op    string          `json:"op"`              // Op is set (or add), remove, replace, move, copy or test
	Path  string          `json:"path"`            // Path is a JSON pointer or dotted path, e.g. "/legs/0/price"
	From  string          `json:"from,omitempty"`  // From is the source path for move and copy
	Value json.RawMessage `json:"value,omitempty"` // Value is the JSON value for set, replace and test
}

// PatchRequest applies one edit script to every listed document
type PatchRequest struct {
	IDs           []string    `json:"ids"`
	PatchDocument []Operation `json:"patchDocument"`
}

// Error is the body of every non-2xx response
type Error struct {
	Error        string `json:"error"`
	Kind         string `json:"kind,omitempty"`
	RequestIndex *int   `json:"requestIndex,omitempty"`
	ID           string `json:"id,omitempty"`
	OpIndex      *int   `json:"opIndex,omitempty"`
}

// Patch is one change to the collection in a subscription update
type Patch struct {
	Unit    string          `json:"unit"`    // Unit is the JSON Patch operation, e.g. "replace"
	Range   string          `json:"range"`   // Range is the path of the patch, e.g. "/0/label"
	Content json.RawMessage `json:"content"` // Content is the new value, if any
}

// Update is a subscription message: either patches against Parents or a full body
type Update struct {
	Version []string        `json:"version"`
	Parents []string        `json:"parents"`
	Patches []Patch         `json:"patches,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}
