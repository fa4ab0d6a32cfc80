package framesink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allocN(t *testing.T, tbl *slotTable, n int) []*MemoryFrame {
	t.Helper()
	frames := make([]*MemoryFrame, n)
	for i := range frames {
		frames[i] = testFrame(4, 4)
		_, err := tbl.allocate(frames[i], frames[i].buf, 4, 4)
		require.NoError(t, err)
	}
	return frames
}

func TestSlotTableChain(t *testing.T) {
	tbl := newSlotTable(20, 0)
	f := allocN(t, tbl, 3)

	require.Equal(t, 2, tbl.current)
	assert.Equal(t, []int{1, 0}, tbl.chain(2))
	assert.Equal(t, 3, tbl.inFlight)

	retired := tbl.detachChain(2, noSlot)
	assert.ElementsMatch(t, []Frame{f[1], f[0]}, retired)
	assert.Equal(t, 1, tbl.inFlight)
	assert.Equal(t, 2, tbl.current)
	assert.Equal(t, noSlot, tbl.entry(2).prev)
	assert.Same(t, f[2], tbl.entry(2).frame)
}

func TestSlotTableFirstFit(t *testing.T) {
	tbl := newSlotTable(4, 0)
	allocN(t, tbl, 3)
	tbl.detachChain(2, noSlot)

	idx, err := tbl.allocate(testFrame(4, 4), nil, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2, tbl.entry(0).prev)
}

func TestSlotTableCapacity(t *testing.T) {
	tbl := newSlotTable(3, 0)
	allocN(t, tbl, 3)

	_, err := tbl.allocate(testFrame(4, 4), nil, 4, 4)
	require.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 3, tbl.inFlight)
	assert.Equal(t, 3, tbl.occupied())
}

func TestSlotTableBackpressure(t *testing.T) {
	tbl := newSlotTable(20, 2)
	allocN(t, tbl, 3)

	_, err := tbl.allocate(testFrame(4, 4), nil, 4, 4)
	require.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 3, tbl.inFlight)
}

func TestSlotTableUnwind(t *testing.T) {
	tbl := newSlotTable(20, 0)
	f := allocN(t, tbl, 2)

	assert.Nil(t, tbl.unwind(0), "only the current slot can be unwound")

	got := tbl.unwind(1)
	assert.Same(t, f[1], got)
	assert.Equal(t, 0, tbl.current)
	assert.Equal(t, 1, tbl.inFlight)
	assert.Nil(t, tbl.entry(1))
}

func TestSlotTableDetachKeepsBound(t *testing.T) {
	tbl := newSlotTable(20, 0)
	f := allocN(t, tbl, 4)

	retired := tbl.detachChain(3, 1)
	assert.ElementsMatch(t, []Frame{f[2], f[0]}, retired)
	assert.Equal(t, 1, tbl.entry(3).prev)
	assert.Equal(t, noSlot, tbl.entry(1).prev)
	assert.Equal(t, 2, tbl.inFlight)

	retired = tbl.detachChain(3, 3)
	assert.Equal(t, []Frame{f[1]}, retired)
	assert.Equal(t, 1, tbl.inFlight)
}

func TestSlotTableDrain(t *testing.T) {
	tbl := newSlotTable(20, 0)
	f := allocN(t, tbl, 5)

	got := tbl.drain()
	assert.Len(t, got, len(f))
	assert.Equal(t, 0, tbl.inFlight)
	assert.Equal(t, noSlot, tbl.current)
	assert.Zero(t, tbl.occupied())
}
