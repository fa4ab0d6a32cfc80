package framesink

import "github.com/cockroachdb/errors"

const noSlot = -1

// slotEntry is an occupied slot. A nil *slotEntry in the table is an empty
// slot; entries are only created fully populated.
type slotEntry struct {
	frame  Frame
	buffer Buffer
	width  int
	height int
	prev   int // slot this one superseded, or noSlot
}

// slotTable is the fixed-capacity arena of in-flight frames. It does no
// locking of its own: every method runs under the sink's index lock.
type slotTable struct {
	slots        []*slotEntry
	current      int
	inFlight     int
	backpressure int
}

func newSlotTable(capacity, backpressure int) *slotTable {
	return &slotTable{
		slots:        make([]*slotEntry, capacity),
		current:      noSlot,
		backpressure: backpressure,
	}
}

// allocate stores frame in the first empty slot and makes it current,
// linking the previous current slot as its predecessor.
func (t *slotTable) allocate(frame Frame, buf Buffer, width, height int) (int, error) {
	if t.backpressure > 0 && t.inFlight > t.backpressure {
		return noSlot, errors.Wrapf(ErrFull, "%d frames not yet released (threshold %d)", t.inFlight, t.backpressure)
	}
	idx := noSlot
	for i, e := range t.slots {
		if e == nil {
			idx = i
			break
		}
	}
	if idx == noSlot {
		return noSlot, errors.Wrapf(ErrFull, "all %d slots in use", len(t.slots))
	}

	t.slots[idx] = &slotEntry{
		frame:  frame,
		buffer: buf,
		width:  width,
		height: height,
		prev:   t.current,
	}
	t.current = idx
	t.inFlight++
	return idx, nil
}

// unwind reverses the allocation of idx, which must still be current. The
// frame is returned for the caller to destroy.
func (t *slotTable) unwind(idx int) Frame {
	e := t.entry(idx)
	if e == nil || t.current != idx {
		return nil
	}
	t.current = e.prev
	t.slots[idx] = nil
	t.inFlight--
	return e.frame
}

func (t *slotTable) entry(idx int) *slotEntry {
	if idx < 0 || idx >= len(t.slots) {
		return nil
	}
	return t.slots[idx]
}

// take empties idx and hands its frame to the caller for destruction.
func (t *slotTable) take(idx int) Frame {
	e := t.entry(idx)
	if e == nil {
		return nil
	}
	t.slots[idx] = nil
	t.inFlight--
	if t.current == idx {
		t.current = noSlot
	}
	return e.frame
}

// chain lists the predecessors of from, newest first. from itself is not
// included.
func (t *slotTable) chain(from int) []int {
	var out []int
	e := t.entry(from)
	for e != nil && e.prev != noSlot {
		out = append(out, e.prev)
		e = t.entry(e.prev)
		if len(out) > len(t.slots) {
			break // a cycle would be a bug; never loop forever
		}
	}
	return out
}

// detachChain takes every predecessor of from except keep. If keep is on the
// chain it survives as from's only predecessor, so it is reclaimed on a later
// retirement instead of being lost.
func (t *slotTable) detachChain(from, keep int) []Frame {
	head := t.entry(from)
	if head == nil {
		return nil
	}
	var frames []Frame
	kept := false
	for _, idx := range t.chain(from) {
		if idx == keep {
			kept = true
			continue
		}
		if f := t.take(idx); f != nil {
			frames = append(frames, f)
		}
	}
	head.prev = noSlot
	if kept {
		head.prev = keep
		t.slots[keep].prev = noSlot
	}
	return frames
}

// drain empties every slot.
func (t *slotTable) drain() []Frame {
	var frames []Frame
	for i := range t.slots {
		if f := t.take(i); f != nil {
			frames = append(frames, f)
		}
	}
	t.current = noSlot
	return frames
}

func (t *slotTable) occupied() int {
	n := 0
	for _, e := range t.slots {
		if e != nil {
			n++
		}
	}
	return n
}
