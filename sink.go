// sink.go - Frame hand-off engine: producer entry point, settings and teardown

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

/*
A Sink owns a fixed table of in-flight frames and hands the newest one to the
goroutine that owns the display surface.

  Submit (producer)                         consumer (surface owner)
  ─────────────────                         ────────────────────────
  allocate slot, link prev ──FrameReady──▶  bind current buffer
                                            retire predecessor chain

Frames are destroyed exactly once: by chain retirement after a newer frame is
bound, by a flush, by teardown, or immediately on rejection.

Lock order is idxMu (slot table, settings, binding bookkeeping) before
destroyMu (calls into Frame.Destroy). presentMu serialises consumer work and
teardown; it is never held while taking it from a surface callback.
*/

package framesink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings is the presentation configuration as last recorded by the sink.
type Settings struct {
	Visibility   Visibility
	Rotation     Rotation
	Flip         Flip
	Mode         GeometryMode
	ROI          Rect
	SourceWidth  int
	SourceHeight int
	Bounds       Rect
	NeedsRebind  bool
}

// Stats are monotonic counters plus the instantaneous in-flight count.
type Stats struct {
	Accepted        uint64
	Rejected        uint64
	Destroyed       uint64
	DestroyFailures uint64
	Presented       uint64
	Skipped         uint64
	InFlight        int
	Queued          int
}

type Sink struct {
	cfg Config
	log *zap.SugaredLogger

	idxMu     sync.Mutex
	destroyMu sync.Mutex
	presentMu sync.Mutex

	// Guarded by idxMu
	slots         *slotTable
	settings      Settings
	boundIdx      int
	boundSnapshot *FlushSnapshot
	snapshot      *FlushSnapshot
	flushKeep     bool
	rebindGen     uint64 // bumped each time NeedsRebind is raised

	// Consumer side, guarded by presentMu
	shownApplied *bool

	surface     atomic.Pointer[surfaceRef]
	unsubscribe func()
	disp        *Dispatcher
	flushState  atomic.Int32
	closed      atomic.Bool

	accepted        atomic.Uint64
	rejected        atomic.Uint64
	destroyed       atomic.Uint64
	destroyFailures atomic.Uint64
	presented       atomic.Uint64
	skipped         atomic.Uint64
}

// surfaceRef boxes the interface so it can live in an atomic.Pointer.
type surfaceRef struct {
	Surface
}

// New creates a sink presenting into surface and subscribes to its lifecycle
// callbacks.
func New(surface Surface, cfg Config) (*Sink, error) {
	if surface == nil {
		return nil, &SinkError{Operation: "new", Details: "nil surface", Err: ErrInvalidArgument}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &SinkError{Operation: "new", Details: "invalid config", Err: err}
	}

	s := &Sink{
		cfg:      cfg,
		log:      newSinkLogger(cfg.Logger),
		slots:    newSlotTable(cfg.Capacity, cfg.Backpressure),
		boundIdx: noSlot,
	}
	s.disp = NewDispatcher(cfg.QueueDepth, s.handle)
	s.surface.Store(&surfaceRef{surface})
	s.unsubscribe = surface.Subscribe(sinkCallbacks{s})

	s.log.Debugw("sink created",
		"capacity", cfg.Capacity,
		"backpressure", cfg.Backpressure,
		"queue_depth", cfg.QueueDepth)
	return s, nil
}

// Submit hands frame to the sink. The call never blocks. On any failure the
// frame has already been destroyed when Submit returns, so callers must not
// touch it afterwards; the error is informational.
func (s *Sink) Submit(frame Frame) error {
	if frame == nil {
		return invalidArgf("nil frame")
	}
	if s.closed.Load() {
		return s.reject(frame, errors.Wrap(ErrNotInitialized, "sink closed"))
	}
	if !frame.HasNativeBuffer() {
		return s.reject(frame, invalidArgf("frame has no native buffer"))
	}
	w, h, err := frame.VideoSize()
	if err != nil {
		return s.reject(frame, errors.Wrap(err, "failed to query video size"))
	}
	if w <= 0 || h <= 0 {
		return s.reject(frame, invalidArgf("video size %dx%d", w, h))
	}
	buf, err := frame.NativeBuffer()
	if err != nil {
		return s.reject(frame, errors.Wrap(err, "failed to get native buffer"))
	}
	if buf == nil {
		return s.reject(frame, invalidArgf("nil native buffer"))
	}

	s.idxMu.Lock()
	if s.closed.Load() {
		s.idxMu.Unlock()
		return s.reject(frame, errors.Wrap(ErrNotInitialized, "sink closed"))
	}
	prev := s.slots.current
	idx, err := s.slots.allocate(frame, buf, w, h)
	if err != nil {
		s.idxMu.Unlock()
		return s.reject(frame, err)
	}

	token := uuid.New()
	if err := s.disp.Send(Message{Kind: MsgFrameReady, Token: token}); err != nil {
		f := s.slots.unwind(idx)
		s.destroyLocked(f)
		s.idxMu.Unlock()
		s.rejected.Add(1)
		s.log.Warnw("frame rejected", FieldSlot, idx, FieldReason, err)
		return errors.Wrapf(err, "frame in slot %d unwound", idx)
	}
	inFlight := s.slots.inFlight
	s.idxMu.Unlock()

	s.accepted.Add(1)
	s.log.Debugw("frame accepted",
		FieldSlot, idx,
		FieldPrev, prev,
		FieldInFlight, inFlight,
		FieldToken, token)
	return nil
}

// reject destroys a frame that never made it into the table. Only the
// destroy lock is taken.
func (s *Sink) reject(frame Frame, reason error) error {
	s.destroyMu.Lock()
	s.destroyOne(frame)
	s.destroyMu.Unlock()
	s.rejected.Add(1)
	s.log.Warnw("frame rejected", FieldReason, reason)
	return reason
}

// destroyLocked destroys frames under the destroy lock. The caller holds idxMu.
func (s *Sink) destroyLocked(frames ...Frame) {
	s.destroyMu.Lock()
	defer s.destroyMu.Unlock()
	for _, f := range frames {
		s.destroyOne(f)
	}
}

func (s *Sink) destroyOne(f Frame) {
	if f == nil {
		return
	}
	s.destroyed.Add(1)
	if err := f.Destroy(); err != nil {
		s.destroyFailures.Add(1)
		s.log.Errorw("frame destroy failed", FieldReason, errors.Mark(err, ErrDestroyFailed))
	}
}

// updateSettings applies mutate under the index lock and asks the consumer to
// re-present when anything changed. rebind marks a change that needs the
// surface binding rebuilt rather than updated in place.
func (s *Sink) updateSettings(what string, rebind bool, mutate func(*Settings) bool) error {
	s.idxMu.Lock()
	if s.closed.Load() {
		s.idxMu.Unlock()
		return errors.Wrapf(ErrNotInitialized, "set %s on closed sink", what)
	}
	changed := mutate(&s.settings)
	if changed && rebind && s.disp.PendingFrames() == 0 {
		s.settings.NeedsRebind = true
		s.rebindGen++
	}
	s.idxMu.Unlock()

	if !changed {
		return nil
	}
	s.log.Debugw("settings changed", FieldKind, what, FieldState, rebind)
	return s.notify(Message{Kind: MsgRefresh})
}

// notify sends a payload-free wake-up. A full queue already guarantees a
// later consumer pass, so only a closed channel is reported.
func (s *Sink) notify(msg Message) error {
	err := s.disp.Send(msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQueueFull):
		s.log.Debugw("wake-up coalesced", FieldKind, msg.Kind)
		return nil
	default:
		return errors.Mark(err, ErrNotInitialized)
	}
}

func (s *Sink) SetVisible(visible bool) error {
	s.idxMu.Lock()
	if s.closed.Load() {
		s.idxMu.Unlock()
		return errors.Wrap(ErrNotInitialized, "set visible on closed sink")
	}
	if visible {
		s.settings.Visibility = VisibleTrue
	} else {
		s.settings.Visibility = VisibleFalse
	}
	s.idxMu.Unlock()
	return s.notify(Message{Kind: MsgVisibilityChanged, Visible: visible})
}

func (s *Sink) Visible() bool {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.settings.Visibility.Shown()
}

func (s *Sink) SetRotation(r Rotation) error {
	if !r.Valid() {
		return invalidArgf("rotation %d is not one of 0/90/180/270", int(r))
	}
	return s.updateSettings("rotation", true, func(st *Settings) bool {
		changed := st.Rotation != r
		st.Rotation = r
		return changed
	})
}

func (s *Sink) Rotation() Rotation {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.settings.Rotation
}

func (s *Sink) SetFlip(f Flip) error {
	if !f.Valid() {
		return invalidArgf("unsupported %s", f)
	}
	return s.updateSettings("flip", true, func(st *Settings) bool {
		changed := st.Flip != f
		st.Flip = f
		return changed
	})
}

func (s *Sink) Flip() Flip {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.settings.Flip
}

func (s *Sink) SetGeometryMode(m GeometryMode) error {
	if !m.Valid() {
		return invalidArgf("unsupported %s", m)
	}
	return s.updateSettings("mode", true, func(st *Settings) bool {
		changed := st.Mode != m
		st.Mode = m
		return changed
	})
}

func (s *Sink) GeometryMode() GeometryMode {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.settings.Mode
}

// SetROI records the destination region used by GeometryCustomRegion. It may
// be set in any mode; only a change while custom-region is active triggers a
// re-presentation.
func (s *Sink) SetROI(r Rect) error {
	if r.Empty() {
		return errors.WithHint(invalidArgf("region of interest %s", r), "width and height must be non-zero")
	}
	return s.updateSettings("roi", true, func(st *Settings) bool {
		changed := st.ROI != r
		st.ROI = r
		return changed && st.Mode == GeometryCustomRegion
	})
}

func (s *Sink) ROI() Rect {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.settings.ROI
}

// Settings returns a copy of the current configuration.
func (s *Sink) Settings() Settings {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return s.settings
}

// Refresh re-applies every presentation property to the surface on the next
// consumer pass, rebuilding the binding and re-asserting visibility.
func (s *Sink) Refresh() error {
	return s.updateSettings("refresh", true, func(*Settings) bool { return true })
}

func (s *Sink) Stats() Stats {
	s.idxMu.Lock()
	inFlight := s.slots.inFlight
	s.idxMu.Unlock()
	return Stats{
		Accepted:        s.accepted.Load(),
		Rejected:        s.rejected.Load(),
		Destroyed:       s.destroyed.Load(),
		DestroyFailures: s.destroyFailures.Load(),
		Presented:       s.presented.Load(),
		Skipped:         s.skipped.Load(),
		InFlight:        inFlight,
		Queued:          s.disp.Queued(),
	}
}

// Pump runs a pending flush and delivers queued messages on the calling
// goroutine, which must own the surface. It returns the number of messages
// delivered.
func (s *Sink) Pump(ctx context.Context) int {
	if s.closed.Load() {
		return 0
	}
	s.presentMu.Lock()
	s.flushIfRequested()
	s.presentMu.Unlock()
	return s.disp.Drain(ctx)
}

// Run makes the calling goroutine the consumer until ctx is done or the sink
// is closed.
func (s *Sink) Run(ctx context.Context) error {
	return s.disp.Run(ctx)
}

// Close tears the sink down: pending messages are dropped, the surface
// binding is cleared and every in-flight frame is destroyed. A second Close
// returns ErrNotInitialized.
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return errors.Wrap(ErrNotInitialized, "sink already closed")
	}
	s.disp.Close()

	s.presentMu.Lock()
	defer s.presentMu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if ref := s.surface.Swap(nil); ref != nil {
		ref.Unbind()
	}

	s.idxMu.Lock()
	s.boundIdx = noSlot
	s.boundSnapshot = nil
	s.snapshot = nil
	s.resetAllLocked()
	s.idxMu.Unlock()
	s.flushState.Store(flushIdle)

	st := s.Stats()
	s.log.Debugw("sink closed",
		"accepted", st.Accepted,
		"rejected", st.Rejected,
		"destroyed", st.Destroyed)
	return nil
}

// sinkCallbacks receives surface lifecycle signals on the surface goroutine.
type sinkCallbacks struct {
	s *Sink
}

func (c sinkCallbacks) SurfaceResized() {
	if c.s.closed.Load() {
		return
	}
	if err := c.s.disp.Send(Message{Kind: MsgSurfaceResized}); err != nil {
		c.s.log.Debugw("resize not queued", FieldReason, err)
	}
}

// SurfaceDestroyed detaches the surface. The bound slot is no longer
// referenced by anything and is reclaimed with the rest of the chain.
func (c sinkCallbacks) SurfaceDestroyed() {
	c.s.surface.Store(nil)
	c.s.idxMu.Lock()
	c.s.boundIdx = noSlot
	c.s.boundSnapshot = nil
	c.s.idxMu.Unlock()
	c.s.log.Debugw("surface destroyed")
}

// RenderPre is the toolkit's pre-present hook. When the toolkit fires it from
// inside a Bind call the presentation lock is already held and the hook is a
// no-op.
func (c sinkCallbacks) RenderPre() {
	s := c.s
	if s.closed.Load() || !s.presentMu.TryLock() {
		return
	}
	s.flushIfRequested()
	s.presentMu.Unlock()
	s.disp.Drain(context.Background())
}
