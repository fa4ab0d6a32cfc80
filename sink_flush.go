package framesink

import (
	"context"
	"image"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
)

type flushState = int32

const (
	flushIdle flushState = iota
	flushRequested
	flushing
)

// FlushSnapshot is an owned copy of a frame's pixels that keeps the surface
// showing a still image after every live frame has been released.
type FlushSnapshot struct {
	img *image.RGBA
}

func newFlushSnapshot(buf Buffer) (*FlushSnapshot, error) {
	src, err := buf.Image()
	if err != nil {
		return nil, errors.Wrap(err, "failed to map buffer for snapshot")
	}
	if src == nil {
		return nil, errors.New("buffer has no image")
	}
	sr := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, sr.Dx(), sr.Dy()))
	draw.Copy(dst, image.Point{}, src, sr, draw.Src, nil)
	return &FlushSnapshot{img: dst}, nil
}

func (f *FlushSnapshot) Image() (image.Image, error) {
	return f.img, nil
}

func (f *FlushSnapshot) Size() (width, height int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot returns the current keep-screen snapshot, or nil.
func (s *Sink) Snapshot() *FlushSnapshot {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.snapshot
}

// RetrieveAll reclaims every in-flight frame. With keepScreen the current
// frame is copied first and the copy stays on screen; without it the surface
// is cleared. When ctx is a consumer context the flush runs before RetrieveAll
// returns, otherwise it runs on the consumer's next pass. A consumer call made
// while a presentation is in progress (from a surface callback fired inside
// Bind) is deferred the same way.
func (s *Sink) RetrieveAll(ctx context.Context, keepScreen bool) error {
	if s.closed.Load() {
		return errors.Wrap(ErrNotInitialized, "retrieve on closed sink")
	}

	s.idxMu.Lock()
	if keepScreen {
		if e := s.slots.entry(s.slots.current); e != nil {
			snap, err := newFlushSnapshot(e.buffer)
			if err != nil {
				s.log.Warnw("keep-screen snapshot failed", FieldSlot, s.slots.current, FieldReason, err)
			} else {
				s.snapshot = snap
			}
		}
	} else {
		s.snapshot = nil
	}
	s.flushKeep = keepScreen
	s.flushState.Store(flushRequested)
	inFlight := s.slots.inFlight
	s.idxMu.Unlock()

	s.log.Debugw("flush requested", FieldState, keepScreen, FieldInFlight, inFlight)

	if onConsumer(ctx) && s.presentMu.TryLock() {
		s.flushIfRequested()
		s.presentMu.Unlock()
		return nil
	}
	return s.notify(Message{Kind: MsgRefresh})
}

// FlushPending reports whether a retrieval is waiting for the consumer.
func (s *Sink) FlushPending() bool {
	return s.flushState.Load() != flushIdle
}

// flushIfRequested performs a pending flush. The caller holds presentMu and
// runs on the consumer. The visual half runs first so no slot is destroyed
// while the surface still references its buffer.
func (s *Sink) flushIfRequested() {
	if !s.flushState.CompareAndSwap(flushRequested, flushing) {
		return
	}
	// A request arriving mid-flush leaves flushRequested in place.
	defer s.flushState.CompareAndSwap(flushing, flushIdle)

	var surf Surface
	if ref := s.surface.Load(); ref != nil {
		surf = ref.Surface
	}

	s.idxMu.Lock()
	keep, snap, st := s.flushKeep, s.snapshot, s.settings
	s.idxMu.Unlock()

	var bound *FlushSnapshot
	if surf != nil {
		if keep && snap != nil && st.Visibility.Shown() {
			if err := s.bindSnapshot(surf, snap, st); err != nil {
				s.log.Warnw("keep-screen bind failed", FieldReason, err)
				surf.Unbind()
			} else {
				bound = snap
			}
		} else {
			surf.Unbind()
		}
		surf.MarkDirty()
	}

	s.idxMu.Lock()
	s.boundIdx = noSlot
	s.boundSnapshot = bound
	n := s.resetAllLocked()
	s.idxMu.Unlock()

	s.log.Debugw("flush complete", "reclaimed", n, FieldState, bound != nil)
}

func (s *Sink) bindSnapshot(surf Surface, snap *FlushSnapshot, st Settings) error {
	w, h := snap.Size()
	place, err := ComputeRect(st.Mode, w, h, surf.Bounds(), st.ROI)
	if err != nil {
		return err
	}
	params := TransformParams{
		Rotation:     st.Rotation,
		Flip:         st.Flip,
		UseRatio:     place.UseRatio,
		SourceWidth:  w,
		SourceHeight: h,
	}
	if place.UseRatio {
		params.Ratio = float64(w) / float64(h)
	}
	surf.Unbind()
	if err := surf.Bind(snap, params); err != nil {
		return &SinkError{Operation: "bind", Details: "keep-screen snapshot", Err: err}
	}
	surf.SetFill(place.Rect)
	return nil
}

// resetAllLocked destroys every populated slot. The caller holds idxMu.
func (s *Sink) resetAllLocked() int {
	frames := s.slots.drain()
	s.destroyLocked(frames...)
	if s.slots.inFlight != 0 {
		s.log.Errorw("in-flight count not zero after reset", FieldInFlight, s.slots.inFlight)
		s.slots.inFlight = 0
	}
	return len(frames)
}
