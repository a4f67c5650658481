package modeler

import (
	"context"
	"testing"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/editscript"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setLabel(value string) editscript.Script {
	return editscript.Script{editscript.SetOp("/label", value)}
}

func TestApplyBatchScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	b := create(t, svc, document.Document{"label": "b"})

	values, err := svc.ApplyBatch(ctx, []*PatchRequest{
		{IDs: []string{a.ID()}, Edits: setLabel("x")},
		{IDs: []string{b.ID()}, Edits: setLabel("y")},
	})
	require.NoError(t, err)
	require.Len(t, values, 2)

	assert.Equal(t, a.ID(), values[0].ID())
	assert.Equal(t, "x", values[0]["label"])
	assert.Equal(t, 0, values[0].ListPosition())
	assert.Equal(t, b.ID(), values[1].ID())
	assert.Equal(t, "y", values[1]["label"])
	assert.Equal(t, 1, values[1].ListPosition())

	stored, err := svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, values[1], stored)
}

func TestApplyBatchResultOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	b := create(t, svc, document.Document{"label": "b"})
	c := create(t, svc, document.Document{"label": "c"})

	values, err := svc.ApplyBatch(ctx, []*PatchRequest{
		{IDs: []string{c.ID(), a.ID()}, Edits: editscript.Script{
			editscript.SetOp("/qty", 2),
			editscript.ReplaceOp("/qty", 3),
		}},
		{IDs: []string{b.ID()}, Edits: editscript.Script{editscript.RemoveOp("/label")}},
	})
	require.NoError(t, err)

	var ids []string
	for _, v := range values {
		ids = append(ids, v.ID())
	}
	assert.Equal(t, []string{c.ID(), a.ID(), b.ID()}, ids)
	assert.Equal(t, json.Number("3"), values[0]["qty"])
	assert.Equal(t, json.Number("3"), values[1]["qty"])
	assert.NotContains(t, values[2], "label")
}

func TestApplyBatchOverlappingIDsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})

	values, err := svc.ApplyBatch(ctx, []*PatchRequest{
		{IDs: []string{a.ID()}, Edits: setLabel("first")},
		{IDs: []string{a.ID()}, Edits: setLabel("second")},
	})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "first", values[0]["label"])
	assert.Equal(t, "second", values[1]["label"])

	stored, err := svc.Get(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "second", stored["label"])
}

func TestApplyBatchEmptyEditsIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	before := snapshot(t, repo)

	values, err := svc.ApplyOne(ctx, &PatchRequest{IDs: []string{a.ID()}, Edits: editscript.Script{}})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, before[0], values[0])
	assert.Empty(t, cmp.Diff(before, snapshot(t, repo)))
}

func TestApplyBatchSetTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	request := &PatchRequest{IDs: []string{a.ID()}, Edits: setLabel("x")}

	once, err := svc.ApplyOne(ctx, request)
	require.NoError(t, err)
	twice, err := svc.ApplyOne(ctx, request)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestApplyBatchValidationTouchesNothing(t *testing.T) {
	valid := func(id string) *PatchRequest {
		return &PatchRequest{IDs: []string{id}, Edits: setLabel("changed")}
	}

	tests := []struct {
		name  string
		batch func(id string) []*PatchRequest
		index int
	}{
		{"missing request", func(id string) []*PatchRequest { return []*PatchRequest{valid(id), nil} }, 1},
		{"missing ids", func(id string) []*PatchRequest { return []*PatchRequest{valid(id), {Edits: setLabel("x")}} }, 1},
		{"empty ids", func(id string) []*PatchRequest {
			return []*PatchRequest{{IDs: []string{}, Edits: setLabel("x")}}
		}, 0},
		{"missing edits", func(id string) []*PatchRequest {
			return []*PatchRequest{valid(id), valid(id), {IDs: []string{id}}}
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, repo := newTestService(t, nil)
			a := create(t, svc, document.Document{"label": "a"})
			create(t, svc, document.Document{"label": "b"})
			before := snapshot(t, repo)

			values, err := svc.ApplyBatch(ctx, tt.batch(a.ID()))
			assert.Nil(t, values)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.index, validationErr.RequestIndex)
			assert.Equal(t, KindMalformedRequest, validationErr.Kind())

			assert.Empty(t, cmp.Diff(before, snapshot(t, repo)))
		})
	}
}

func TestApplyBatchMissingTargetKeepsEarlierRequests(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	c := create(t, svc, document.Document{"label": "c"})

	values, err := svc.ApplyBatch(ctx, []*PatchRequest{
		{IDs: []string{a.ID()}, Edits: setLabel("x")},
		{IDs: []string{"missing"}, Edits: setLabel("y")},
		{IDs: []string{c.ID()}, Edits: setLabel("z")},
	})
	assert.Nil(t, values)

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, TargetNotFound, applyErr.Kind)
	assert.Equal(t, 1, applyErr.RequestIndex)
	assert.Equal(t, "missing", applyErr.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)

	stored, err := svc.Get(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "x", stored["label"])

	stored, err = svc.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, "c", stored["label"])
}

func TestApplyBatchMissingTargetKeepsEarlierIDsOfSameRequest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	b := create(t, svc, document.Document{"label": "b"})

	_, err := svc.ApplyOne(ctx, &PatchRequest{IDs: []string{a.ID(), "missing", b.ID()}, Edits: setLabel("x")})

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, 0, applyErr.RequestIndex)

	stored, err := svc.Get(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "x", stored["label"])

	stored, err = svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "b", stored["label"])
}

func TestApplyBatchInvalidEdit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	b := create(t, svc, document.Document{"label": "b"})

	_, err := svc.ApplyBatch(ctx, []*PatchRequest{
		{IDs: []string{a.ID()}, Edits: setLabel("x")},
		{IDs: []string{b.ID()}, Edits: editscript.Script{
			editscript.SetOp("/label", "y"),
			editscript.RemoveOp("/nope"),
		}},
	})

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, InvalidEdit, applyErr.Kind)
	assert.Equal(t, 1, applyErr.RequestIndex)
	assert.Equal(t, b.ID(), applyErr.ID)
	assert.Equal(t, 1, applyErr.OpIndex)

	stored, err := svc.Get(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "x", stored["label"])

	// the failing document is not half edited
	stored, err = svc.Get(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "b", stored["label"])
}

func TestApplyBatchReplaceMissingFieldFails(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})
	before := snapshot(t, repo)

	values, err := svc.ApplyBatch(ctx, []*PatchRequest{
		{IDs: []string{a.ID()}, Edits: editscript.Script{editscript.ReplaceOp("/nosuch", "x")}},
	})
	assert.Nil(t, values)

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, InvalidEdit, applyErr.Kind)
	assert.Equal(t, a.ID(), applyErr.ID)
	assert.Equal(t, 0, applyErr.OpIndex)
	assert.ErrorIs(t, err, editscript.ErrMissingField)

	assert.Empty(t, cmp.Diff(before, snapshot(t, repo)))
}

func TestApplyBatchEmpty(t *testing.T) {
	svc, _ := newTestService(t, nil)

	values, err := svc.ApplyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestApplyBatchCanceledContext(t *testing.T) {
	svc, _ := newTestService(t, nil)
	a := create(t, svc, document.Document{"label": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ApplyOne(ctx, &PatchRequest{IDs: []string{a.ID()}, Edits: setLabel("x")})
	var storeErr *document.StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, context.Canceled)
}
