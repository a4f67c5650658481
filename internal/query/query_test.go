package query

import (
	"testing"

	"gihan9a/positionmodeler/internal/document"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	doc := document.Document{
		"id":           "a",
		"listPosition": json.Number("3"),
		"label":        "x",
		"legs":         []any{map[string]any{"price": json.Number("1.5")}},
	}

	tests := []struct {
		source string
		want   bool
	}{
		{`listPosition >= 2`, true},
		{`listPosition < 2`, false},
		{`label == "x" && listPosition == 3`, true},
		{`id in ["a", "b"]`, true},
		{`legs[0].price > 1`, true},
		{`missing == nil`, true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			f, err := Compile(tt.source)
			require.NoError(t, err)

			got, err := f.Match(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, f.Predicate()(doc))
		})
	}
}

func TestCompileRejectsNonBoolean(t *testing.T) {
	_, err := Compile(`1 + 2`)
	assert.Error(t, err)

	_, err = Compile(`label ==`)
	assert.Error(t, err)
}

func TestPredicateSwallowsRuntimeErrors(t *testing.T) {
	f, err := Compile(`label > 1`)
	require.NoError(t, err)

	assert.False(t, f.Predicate()(document.Document{"label": "x"}))
}
