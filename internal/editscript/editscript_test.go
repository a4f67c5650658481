package editscript

import (
	"testing"

	"gihan9a/positionmodeler/internal/document"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position() document.Document {
	doc, err := document.Unmarshal([]byte(`{
		"id": "a",
		"listPosition": 0,
		"label": "call spread",
		"legs": [{"strike": 100, "price": 1.25}, {"strike": 110, "price": 0.4}]
	}`))
	if err != nil {
		panic(err)
	}
	return doc
}

func TestApplyInOrder(t *testing.T) {
	doc := position()

	out, err := Apply(doc, Script{
		SetOp("/label", "x"),
		SetOp("notes", "first"),
		ReplaceOp("legs.0.price", 1.5),
		CopyOp("/label", "/title"),
		MoveOp("/notes", "/comment"),
		RemoveOp("/legs/1"),
		TestOp("/title", "x"),
	})
	require.NoError(t, err)

	assert.Equal(t, "x", out["label"])
	assert.Equal(t, "x", out["title"])
	assert.Equal(t, "first", out["comment"])
	assert.NotContains(t, out, "notes")
	assert.Len(t, out["legs"], 1)
	assert.Equal(t, json.Number("1.5"), out["legs"].([]any)[0].(map[string]any)["price"])
	assert.Equal(t, "a", out.ID())
	assert.Equal(t, 0, out.ListPosition())

	// the input is left alone
	assert.Equal(t, "call spread", doc["label"])
}

func TestApplyEmptyScriptIsNoop(t *testing.T) {
	doc := position()

	out, err := Apply(doc, Script{})
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestApplySetIsIdempotent(t *testing.T) {
	script := Script{SetOp("/label", "x"), SetOp("/listPosition", 4)}

	once, err := Apply(position(), script)
	require.NoError(t, err)
	twice, err := Apply(once, script)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, 4, twice.ListPosition())
}

func TestApplyAcceptsAdd(t *testing.T) {
	out, err := Apply(position(), Script{{Op: "add", Path: "/label", Value: json.RawMessage(`"y"`)}})
	require.NoError(t, err)
	assert.Equal(t, "y", out["label"])
}

func TestApplyReportsFailingIndex(t *testing.T) {
	tests := []struct {
		name   string
		script Script
		index  int
		is     error
	}{
		{
			name:   "unknown op",
			script: Script{SetOp("/label", "x"), {Op: "merge", Path: "/label"}},
			index:  1,
			is:     ErrUnknownOp,
		},
		{
			name:   "empty path",
			script: Script{SetOp("", "x")},
			index:  0,
			is:     ErrInvalidPath,
		},
		{
			name:   "bad dotted path",
			script: Script{SetOp("/label", "x"), SetOp("/label", "y"), SetOp("legs..price", 1)},
			index:  2,
			is:     ErrInvalidPath,
		},
		{
			name:   "missing value",
			script: Script{{Op: Replace, Path: "/label"}},
			index:  0,
			is:     ErrMissingValue,
		},
		{
			name:   "set id",
			script: Script{SetOp("/id", "b")},
			index:  0,
			is:     ErrImmutable,
		},
		{
			name:   "remove id",
			script: Script{RemoveOp("id")},
			index:  0,
			is:     ErrImmutable,
		},
		{
			name:   "move id away",
			script: Script{MoveOp("/id", "/oldId")},
			index:  0,
			is:     ErrImmutable,
		},
		{
			name:   "remove missing field",
			script: Script{RemoveOp("/label"), RemoveOp("/label")},
			index:  1,
		},
		{
			name:   "replace missing field",
			script: Script{SetOp("/label", "x"), ReplaceOp("/nosuch", "x")},
			index:  1,
			is:     ErrMissingField,
		},
		{
			name:   "replace missing element",
			script: Script{ReplaceOp("legs.2.price", 1)},
			index:  0,
			is:     ErrMissingField,
		},
		{
			name:   "missing parent",
			script: Script{SetOp("/greeks/delta", 0.5)},
			index:  0,
		},
		{
			name:   "failed test",
			script: Script{TestOp("/label", "nope")},
			index:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(position(), tt.script)
			require.Error(t, err)

			var editErr *EditError
			require.ErrorAs(t, err, &editErr)
			assert.Equal(t, tt.index, editErr.Index)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestReplaceDoesNotAddFields(t *testing.T) {
	doc := position()

	_, err := Apply(doc, Script{ReplaceOp("nosuch", "x")})
	require.ErrorIs(t, err, ErrMissingField)
	assert.NotContains(t, doc, "nosuch")

	out, err := Apply(doc, Script{ReplaceOp("/legs/1/strike", 120)})
	require.NoError(t, err)
	assert.Equal(t, json.Number("120"), out["legs"].([]any)[1].(map[string]any)["strike"])
}

func TestTestOpMayReadID(t *testing.T) {
	_, err := Apply(position(), Script{TestOp("/id", "a")})
	assert.NoError(t, err)
}

func TestPointer(t *testing.T) {
	tests := map[string]string{
		"/label":        "/label",
		"label":         "/label",
		"legs.0.price":  "/legs/0/price",
		"a~b.c/d":       "/a~0b/c~1d",
		"/legs/0/price": "/legs/0/price",
	}
	for in, want := range tests {
		got, err := Pointer(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
