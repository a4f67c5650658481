// Package editscript applies ordered field level edits to documents.
//
// The operation set is closed: set (alias add), remove, replace, move, copy
// and test. Each operation addresses a field with a JSON pointer ("/legs/0/price")
// or a dotted path ("legs.0.price"). Operations are applied one at a time as
// RFC 6902 patches so a failure can be pinned to its index.
package editscript

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gihan9a/positionmodeler/internal/document"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/goccy/go-json"
)

// Kind names an edit operation
type Kind string

const (
	Set     Kind = "set"
	Remove  Kind = "remove"
	Replace Kind = "replace"
	Move    Kind = "move"
	Copy    Kind = "copy"
	Test    Kind = "test"

	// add is accepted on input for RFC 6902 clients and treated as Set
	add Kind = "add"
)

var (
	ErrUnknownOp    = errors.New("unknown edit operation")
	ErrInvalidPath  = errors.New("invalid field path")
	ErrMissingValue = errors.New("operation requires a value")
	ErrImmutable    = errors.New("field is immutable")
	ErrMissingField = errors.New("field does not exist")
)

// Operation is one field level edit
type Operation struct {
	Op    Kind            `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Script is an ordered list of edits. An empty script is a valid no-op.
type Script []Operation

// EditError reports the operation that could not be applied
type EditError struct {
	Index int
	Op    Kind
	Path  string
	Err   error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit %d (%s %s): %v", e.Index, e.Op, e.Path, e.Err)
}

func (e *EditError) Unwrap() error {
	return e.Err
}

// SetOp builds a set operation, encoding value as JSON
func SetOp(path string, value any) Operation {
	return Operation{Op: Set, Path: path, Value: mustEncode(value)}
}

// ReplaceOp builds a replace operation, encoding value as JSON
func ReplaceOp(path string, value any) Operation {
	return Operation{Op: Replace, Path: path, Value: mustEncode(value)}
}

// RemoveOp builds a remove operation
func RemoveOp(path string) Operation {
	return Operation{Op: Remove, Path: path}
}

// MoveOp builds a move operation
func MoveOp(from, path string) Operation {
	return Operation{Op: Move, From: from, Path: path}
}

// CopyOp builds a copy operation
func CopyOp(from, path string) Operation {
	return Operation{Op: Copy, From: from, Path: path}
}

// TestOp builds a test operation, encoding value as JSON
func TestOp(path string, value any) Operation {
	return Operation{Op: Test, Path: path, Value: mustEncode(value)}
}

func mustEncode(value any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("editscript: encode value: %v", err))
	}
	return data
}

// Apply runs script against a copy of doc, operation by operation, and returns
// the edited copy. doc itself is never modified.
func Apply(doc document.Document, script Script) (document.Document, error) {
	data, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	for i, op := range script {
		patch, err := op.compile()
		if err != nil {
			return nil, &EditError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
		if err := requireTarget(data, patch[0]); err != nil {
			return nil, &EditError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
		data, err = patch.Apply(data)
		if err != nil {
			return nil, &EditError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
	}

	return document.Unmarshal(data)
}

// rfcOp is the RFC 6902 form of an Operation
type rfcOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (op Operation) compile() (jsonpatch.Patch, error) {
	kind := op.Op
	if kind == add {
		kind = Set
	}

	path, err := Pointer(op.Path)
	if err != nil {
		return nil, err
	}
	out := rfcOp{Op: string(kind), Path: path}

	switch kind {
	case Set, Replace, Test:
		if len(op.Value) == 0 {
			return nil, ErrMissingValue
		}
		if kind == Set {
			out.Op = string(add)
		}
		out.Value = op.Value
	case Remove:
	case Move, Copy:
		from, err := Pointer(op.From)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		if kind == Move && targetsID(from) {
			return nil, fmt.Errorf("%w: %s", ErrImmutable, document.IDField)
		}
		out.From = from
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOp, op.Op)
	}

	if kind != Test && targetsID(path) {
		return nil, fmt.Errorf("%w: %s", ErrImmutable, document.IDField)
	}

	raw, err := json.Marshal([]rfcOp{out})
	if err != nil {
		return nil, err
	}
	return jsonpatch.DecodePatch(raw)
}

// requireTarget fails a replace of a field that does not exist. jsonpatch
// turns a replace of a missing top level key into an add.
func requireTarget(data []byte, op jsonpatch.Operation) error {
	if op.Kind() != string(Replace) {
		return nil
	}
	path, err := op.Path()
	if err != nil {
		return err
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	if !exists(root, path) {
		return fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	return nil
}

// exists reports whether pointer resolves inside root
func exists(root any, pointer string) bool {
	if pointer == "" {
		return true
	}
	node := root
	for _, segment := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")

		switch container := node.(type) {
		case map[string]any:
			child, ok := container[segment]
			if !ok {
				return false
			}
			node = child
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(container) {
				return false
			}
			node = container[index]
		default:
			return false
		}
	}
	return true
}

// Pointer converts a field path to a JSON pointer. Paths starting with "/" are
// taken as pointers already; anything else is split on ".".
func Pointer(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	if strings.HasPrefix(path, "/") {
		return path, nil
	}

	segments := strings.Split(path, ".")
	var b strings.Builder
	for _, segment := range segments {
		if segment == "" {
			return "", fmt.Errorf("%w %q", ErrInvalidPath, path)
		}
		segment = strings.ReplaceAll(segment, "~", "~0")
		segment = strings.ReplaceAll(segment, "/", "~1")
		b.WriteString("/")
		b.WriteString(segment)
	}
	return b.String(), nil
}

func targetsID(pointer string) bool {
	first := strings.TrimPrefix(pointer, "/")
	if i := strings.Index(first, "/"); i >= 0 {
		first = first[:i]
	}
	return first == document.IDField
}
