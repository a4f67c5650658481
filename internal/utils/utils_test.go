package utils

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHash(t *testing.T) {
	assert.Equal(t, `"00000000"`, CalculateHash(nil))
	assert.Equal(t, CalculateHash([]byte("[]")), CalculateHash([]byte("[]")))
	assert.NotEqual(t, CalculateHash([]byte(`[{"id":"a"}]`)), CalculateHash([]byte(`[{"id":"b"}]`)))
	assert.Len(t, CalculateHash([]byte("positions")), 10)
}

func TestNewIDSortsInCreationOrder(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewID()
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.NotEqual(t, ids[0], ids[1])
}
