package binding

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct{ size int }

func TestBindAndLookup(t *testing.T) {
	tbl := NewTable()
	id, err := tbl.Bind("draw-args", KindBuffer, &fakeBuffer{size: 20})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = tbl.Bind("depth", KindImage, []float32{0})
	require.NoError(t, err)

	buf, err := Lookup[*fakeBuffer](tbl, "draw-args")
	require.NoError(t, err)
	assert.Equal(t, 20, buf.size)

	_, err = Lookup[*fakeBuffer](tbl, "depth")
	assert.Error(t, err)

	_, err = Lookup[*fakeBuffer](tbl, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"depth", "draw-args"}, tbl.Names())
	assert.True(t, tbl.Has("depth"))
}

func TestBindRejectsDuplicates(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Bind("entries", KindBuffer, nil)
	require.NoError(t, err)
	_, err = tbl.Bind("entries", KindBuffer, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = tbl.Bind("", KindBuffer, nil)
	assert.Error(t, err)
}

func TestRebindKeepsID(t *testing.T) {
	tbl := NewTable()
	id, err := tbl.Bind("pyramid", KindImage, 1)
	require.NoError(t, err)
	require.NoError(t, tbl.Rebind("pyramid", 2))

	r, ok := tbl.Get("pyramid")
	require.True(t, ok)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, 2, r.Value)
	assert.ErrorIs(t, tbl.Rebind("nope", 0), ErrNotFound)
}
