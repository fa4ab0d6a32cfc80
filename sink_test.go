package framesink

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/draw"
)

func testFrame(w, h int) *MemoryFrame {
	return NewMemoryFrame(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func solidFrame(w, h int, c color.RGBA) *MemoryFrame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return NewMemoryFrame(img)
}

func newTestSink(t *testing.T, cfg Config) (*Sink, *HeadlessSurface) {
	t.Helper()
	surf := NewHeadlessSurface(800, 600)
	cfg.Logger = zaptest.NewLogger(t)
	s, err := New(surf, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, surf
}

func consumerCtx() context.Context {
	return ConsumerContext(context.Background())
}

// hookedSurface runs onBind once, on the consumer, just before the next Bind.
type hookedSurface struct {
	*HeadlessSurface
	onBind func()
}

func (h *hookedSurface) Bind(buf Buffer, params TransformParams) error {
	if fn := h.onBind; fn != nil {
		h.onBind = nil
		fn()
	}
	return h.HeadlessSurface.Bind(buf, params)
}

func newHookedSink(t *testing.T) (*Sink, *hookedSurface) {
	t.Helper()
	surf := &hookedSurface{HeadlessSurface: NewHeadlessSurface(800, 600)}
	cfg := DefaultConfig()
	cfg.Logger = zaptest.NewLogger(t)
	s, err := New(surf, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, surf
}

func bufferOf(t *testing.T, f *MemoryFrame) Buffer {
	t.Helper()
	buf, err := f.NativeBuffer()
	require.NoError(t, err)
	return buf
}

func assertDestroyedOnce(t *testing.T, frames ...*MemoryFrame) {
	t.Helper()
	for i, f := range frames {
		assert.Equal(t, 1, f.DestroyCount(), "frame %d", i)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.ErrorIs(t, err, ErrInvalidArgument)

	cfg := DefaultConfig()
	cfg.Backpressure = cfg.Capacity
	_, err = New(NewHeadlessSurface(10, 10), cfg)
	require.ErrorIs(t, err, ErrInvalidArgument)
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "new", se.Operation)
}

func TestSubmitAndPresent(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f1 := testFrame(400, 300)
	require.NoError(t, s.Submit(f1))
	assert.Equal(t, 1, s.Pump(consumerCtx()))

	b := surf.Binding()
	require.NotNil(t, b)
	assert.Same(t, bufferOf(t, f1), b.Buffer)
	assert.True(t, b.Params.UseRatio)
	assert.InDelta(t, 400.0/300.0, b.Params.Ratio, 1e-9)
	assert.Equal(t, Rect{W: 800, H: 600}, surf.Fill())
	assert.Zero(t, f1.DestroyCount())

	f2 := testFrame(400, 300)
	require.NoError(t, s.Submit(f2))
	s.Pump(consumerCtx())

	assert.Same(t, bufferOf(t, f2), surf.Binding().Buffer)
	assertDestroyedOnce(t, f1)
	assert.Zero(t, f2.DestroyCount())

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Accepted)
	assert.Equal(t, uint64(2), st.Presented)
	assert.Equal(t, 1, st.InFlight)

	settings := s.Settings()
	assert.Equal(t, 400, settings.SourceWidth)
	assert.Equal(t, Rect{W: 800, H: 600}, settings.Bounds)
}

func TestChainRetiredOnPresent(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f1, f2, f3 := testFrame(8, 8), testFrame(8, 8), testFrame(8, 8)
	for _, f := range []*MemoryFrame{f1, f2, f3} {
		require.NoError(t, s.Submit(f))
	}
	assert.Equal(t, 3, s.Stats().InFlight)

	assert.Equal(t, 3, s.Pump(consumerCtx()))
	assert.Same(t, bufferOf(t, f3), surf.Binding().Buffer)
	assertDestroyedOnce(t, f1, f2)
	assert.Zero(t, f3.DestroyCount())
	assert.Equal(t, 1, s.Stats().InFlight)
}

func TestSubmitBoundedByCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 4
	cfg.Backpressure = 0
	s, _ := newTestSink(t, cfg)

	var frames []*MemoryFrame
	for i := 0; i < 4; i++ {
		f := testFrame(8, 8)
		frames = append(frames, f)
		require.NoError(t, s.Submit(f))
	}
	for i := 0; i < 2; i++ {
		f := testFrame(8, 8)
		err := s.Submit(f)
		require.ErrorIs(t, err, ErrFull)
		assertDestroyedOnce(t, f)
	}
	assert.Equal(t, 4, s.Stats().InFlight)
	assert.Equal(t, uint64(2), s.Stats().Rejected)

	for _, f := range frames {
		assert.Zero(t, f.DestroyCount())
	}
}

func TestSubmitBackpressure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backpressure = 3
	s, _ := newTestSink(t, cfg)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Submit(testFrame(8, 8)))
	}
	f := testFrame(8, 8)
	require.ErrorIs(t, s.Submit(f), ErrFull)
	assertDestroyedOnce(t, f)

	// Presenting retires the backlog and frees room.
	s.Pump(consumerCtx())
	require.NoError(t, s.Submit(testFrame(8, 8)))
}

func TestEveryFrameDestroyedOnce(t *testing.T) {
	s, _ := newTestSink(t, DefaultConfig())

	var frames []*MemoryFrame
	for i := 0; i < 100; i++ {
		f := testFrame(16, 16)
		frames = append(frames, f)
		_ = s.Submit(f)
		if i%3 == 0 {
			s.Pump(consumerCtx())
		}
		if i%40 == 39 {
			require.NoError(t, s.RetrieveAll(consumerCtx(), i%80 == 39))
		}
	}
	require.NoError(t, s.Close())

	assertDestroyedOnce(t, frames...)
	st := s.Stats()
	assert.Equal(t, st.Accepted+st.Rejected, st.Destroyed)
	assert.Zero(t, st.DestroyFailures)
}

func TestRetrieveAllClearsSurface(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	var frames []*MemoryFrame
	for i := 0; i < 5; i++ {
		f := testFrame(8, 8)
		frames = append(frames, f)
		require.NoError(t, s.Submit(f))
		if i == 1 {
			s.Pump(consumerCtx())
		}
	}

	require.NoError(t, s.RetrieveAll(consumerCtx(), false))
	assert.Zero(t, s.Stats().InFlight)
	assert.Nil(t, surf.Binding())
	assert.Nil(t, s.Snapshot())
	assert.False(t, s.FlushPending())
	assertDestroyedOnce(t, frames...)

	// Late notifications find nothing to present.
	s.Pump(consumerCtx())
	assert.Nil(t, surf.Binding())
}

func TestRetrieveAllKeepScreen(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f1 := solidFrame(8, 6, color.RGBA{R: 255, A: 255})
	f2 := solidFrame(8, 6, color.RGBA{G: 255, A: 255})
	require.NoError(t, s.Submit(f1))
	s.Pump(consumerCtx())
	require.NoError(t, s.Submit(f2))

	require.NoError(t, s.RetrieveAll(consumerCtx(), true))

	snap := s.Snapshot()
	require.NotNil(t, snap)
	w, h := snap.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	img, err := snap.Image()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, img.(*image.RGBA).RGBAAt(3, 3))

	b := surf.Binding()
	require.NotNil(t, b)
	assert.Same(t, snap, b.Buffer)
	assert.Zero(t, s.Stats().InFlight)
	assertDestroyedOnce(t, f1, f2)

	// A geometry change re-presents the frozen image.
	require.NoError(t, s.SetRotation(Rotate90))
	s.Pump(consumerCtx())
	b = surf.Binding()
	require.NotNil(t, b)
	assert.Same(t, snap, b.Buffer)
	assert.Equal(t, Rotate90, b.Params.Rotation)

	// A new frame replaces it.
	f3 := testFrame(8, 6)
	require.NoError(t, s.Submit(f3))
	s.Pump(consumerCtx())
	assert.Same(t, bufferOf(t, f3), surf.Binding().Buffer)
}

func TestRetrieveAllKeepScreenHidden(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	require.NoError(t, s.Submit(testFrame(8, 8)))
	require.NoError(t, s.SetVisible(false))
	s.Pump(consumerCtx())
	assert.False(t, surf.IsVisible())

	require.NoError(t, s.RetrieveAll(consumerCtx(), true))
	assert.NotNil(t, s.Snapshot())
	assert.Nil(t, surf.Binding())
}

func TestRetrieveAllKeepScreenGeometryUnavailable(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f := testFrame(8, 8)
	require.NoError(t, s.Submit(f))
	s.Pump(consumerCtx())
	surf.Resize(0, 0)

	require.NoError(t, s.RetrieveAll(consumerCtx(), true))
	assert.Nil(t, surf.Binding())
	assert.Zero(t, s.Stats().InFlight)
	assertDestroyedOnce(t, f)
}

func TestRetrieveAllDeferredToConsumer(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f := testFrame(8, 8)
	require.NoError(t, s.Submit(f))
	s.Pump(consumerCtx())

	require.NoError(t, s.RetrieveAll(context.Background(), false))
	assert.True(t, s.FlushPending())
	assert.Equal(t, 1, s.Stats().InFlight)
	assert.NotNil(t, surf.Binding())
	assert.Zero(t, f.DestroyCount())

	surf.RenderPre()
	assert.False(t, s.FlushPending())
	assert.Zero(t, s.Stats().InFlight)
	assert.Nil(t, surf.Binding())
	assertDestroyedOnce(t, f)
}

func TestRetrieveAllFromBindCallback(t *testing.T) {
	s, surf := newHookedSink(t)

	f1, f2 := testFrame(8, 8), testFrame(8, 8)
	require.NoError(t, s.Submit(f1))
	s.Pump(consumerCtx())

	require.NoError(t, s.Submit(f2))
	surf.onBind = func() {
		require.NoError(t, s.RetrieveAll(consumerCtx(), false))
	}
	s.Pump(consumerCtx())
	assert.True(t, s.FlushPending(), "flush requested mid-present waits for the next pass")
	assertDestroyedOnce(t, f1)

	s.Pump(consumerCtx())
	assert.False(t, s.FlushPending())
	assert.Zero(t, s.Stats().InFlight)
	assert.Nil(t, surf.Binding())
	assertDestroyedOnce(t, f1, f2)
}

func TestRejectionsLeaveSinkUsable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueDepth = 1
	s, surf := newTestSink(t, cfg)

	noBuf := NewMemoryFrame(nil)
	require.ErrorIs(t, s.Submit(noBuf), ErrInvalidArgument)
	assertDestroyedOnce(t, noBuf)

	empty := NewMemoryFrame(image.NewRGBA(image.Rect(0, 0, 0, 4)))
	require.ErrorIs(t, s.Submit(empty), ErrInvalidArgument)
	assertDestroyedOnce(t, empty)

	require.ErrorIs(t, s.Submit(nil), ErrInvalidArgument)

	f1 := testFrame(8, 8)
	require.NoError(t, s.Submit(f1))

	f2 := testFrame(8, 8)
	err := s.Submit(f2)
	require.ErrorIs(t, err, ErrDispatchFailed)
	assertDestroyedOnce(t, f2)
	assert.Equal(t, 1, s.Stats().InFlight)

	s.Pump(consumerCtx())
	assert.Same(t, bufferOf(t, f1), surf.Binding().Buffer)

	f3 := testFrame(8, 8)
	require.NoError(t, s.Submit(f3))
	s.Pump(consumerCtx())
	assert.Same(t, bufferOf(t, f3), surf.Binding().Buffer)
	assertDestroyedOnce(t, f1)
	assert.Equal(t, 1, s.Stats().InFlight)
	assert.Equal(t, uint64(3), s.Stats().Rejected)
}

func TestSettersValidate(t *testing.T) {
	s, _ := newTestSink(t, DefaultConfig())

	assert.ErrorIs(t, s.SetRotation(Rotation(45)), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetFlip(Flip(9)), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetGeometryMode(GeometryMode(42)), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetROI(Rect{X: 1, Y: 1, W: 0, H: 10}), ErrInvalidArgument)

	require.NoError(t, s.SetRotation(Rotate180))
	require.NoError(t, s.SetFlip(FlipBoth))
	require.NoError(t, s.SetGeometryMode(GeometryFullScreen))
	require.NoError(t, s.SetROI(Rect{X: 5, Y: 5, W: 50, H: 40}))
	require.NoError(t, s.SetVisible(false))

	assert.Equal(t, Rotate180, s.Rotation())
	assert.Equal(t, FlipBoth, s.Flip())
	assert.Equal(t, GeometryFullScreen, s.GeometryMode())
	assert.Equal(t, Rect{X: 5, Y: 5, W: 50, H: 40}, s.ROI())
	assert.False(t, s.Visible())
}

func TestNeedsRebind(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	require.NoError(t, s.Submit(testFrame(8, 8)))
	s.Pump(consumerCtx())
	_, unbinds := surf.BindCounts()

	require.NoError(t, s.SetRotation(Rotate90))
	assert.True(t, s.Settings().NeedsRebind)

	s.Pump(consumerCtx())
	assert.False(t, s.Settings().NeedsRebind)
	_, after := surf.BindCounts()
	assert.Equal(t, unbinds+1, after)
	assert.Equal(t, Rotate90, surf.Binding().Params.Rotation)

	// A pending frame will carry the change; no rebind needed.
	require.NoError(t, s.Submit(testFrame(8, 8)))
	require.NoError(t, s.SetFlip(FlipHorizontal))
	assert.False(t, s.Settings().NeedsRebind)
	s.Pump(consumerCtx())
	assert.Equal(t, FlipHorizontal, surf.Binding().Params.Flip)
}

func TestNeedsRebindRaisedDuringBind(t *testing.T) {
	s, surf := newHookedSink(t)

	require.NoError(t, s.Submit(testFrame(8, 8)))
	s.Pump(consumerCtx())

	require.NoError(t, s.SetRotation(Rotate90))
	surf.onBind = func() {
		require.NoError(t, s.SetFlip(FlipVertical))
	}
	s.Pump(consumerCtx())
	assert.True(t, s.Settings().NeedsRebind, "flip changed while binding still needs its own rebind")
	assert.Equal(t, Rotate90, surf.Binding().Params.Rotation)

	_, unbinds := surf.BindCounts()
	s.Pump(consumerCtx())
	_, after := surf.BindCounts()
	assert.Equal(t, unbinds+1, after)
	assert.Equal(t, FlipVertical, surf.Binding().Params.Flip)
	assert.False(t, s.Settings().NeedsRebind)
}

func TestCustomRegion(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())
	roi := Rect{X: 10, Y: 20, W: 320, H: 240}

	require.NoError(t, s.SetROI(roi))
	require.NoError(t, s.SetGeometryMode(GeometryCustomRegion))
	require.NoError(t, s.Submit(testFrame(64, 64)))
	s.Pump(consumerCtx())

	assert.Equal(t, roi, surf.Fill())
	assert.False(t, surf.Binding().Params.UseRatio)

	roi2 := Rect{X: 0, Y: 0, W: 100, H: 100}
	require.NoError(t, s.SetROI(roi2))
	s.Pump(consumerCtx())
	assert.Equal(t, roi2, surf.Fill())
}

func TestCustomRegionZeroBounds(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())
	roi := Rect{W: 100, H: 100}

	require.NoError(t, s.SetROI(roi))
	require.NoError(t, s.SetGeometryMode(GeometryCustomRegion))
	surf.Resize(0, 0)
	require.NoError(t, s.Submit(testFrame(64, 64)))
	s.Pump(consumerCtx())

	st := s.Stats()
	assert.Zero(t, st.Presented)
	assert.NotZero(t, st.Skipped)
	assert.Nil(t, surf.Binding())
	assert.Equal(t, 1, st.InFlight, "the skipped frame stays current")

	surf.Resize(800, 600)
	s.Pump(consumerCtx())
	assert.Equal(t, uint64(1), s.Stats().Presented)
	assert.Equal(t, roi, surf.Fill())
}

func TestVisibility(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	require.NoError(t, s.SetVisible(false))
	s.Pump(consumerCtx())
	assert.False(t, surf.IsVisible())

	require.NoError(t, s.SetVisible(true))
	s.Pump(consumerCtx())
	assert.True(t, surf.IsVisible())
	assert.Nil(t, surf.Binding(), "visibility never binds a frame")
}

func TestSurfaceResize(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f1 := testFrame(400, 300)
	require.NoError(t, s.Submit(f1))
	s.Pump(consumerCtx())

	surf.Resize(1600, 1200)
	assert.Equal(t, 1, s.Pump(consumerCtx()))
	assert.Equal(t, Rect{W: 1600, H: 1200}, surf.Fill())

	// Zero bounds skip presentation but keep the bound frame alive.
	surf.Resize(0, 0)
	s.Pump(consumerCtx())
	f2 := testFrame(400, 300)
	require.NoError(t, s.Submit(f2))
	s.Pump(consumerCtx())
	assert.Equal(t, uint64(2), s.Stats().Skipped)
	assert.Zero(t, f1.DestroyCount())
	assert.Same(t, bufferOf(t, f1), surf.Binding().Buffer)

	surf.Resize(800, 600)
	s.Pump(consumerCtx())
	assert.Same(t, bufferOf(t, f2), surf.Binding().Buffer)
	assertDestroyedOnce(t, f1)
}

func TestSurfaceDestroyed(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f1 := testFrame(8, 8)
	require.NoError(t, s.Submit(f1))
	s.Pump(consumerCtx())

	surf.Destroy()
	f2 := testFrame(8, 8)
	require.NoError(t, s.Submit(f2))
	s.Pump(consumerCtx())

	assertDestroyedOnce(t, f1)
	assert.Zero(t, f2.DestroyCount())
	assert.Equal(t, uint64(1), s.Stats().Skipped)

	require.NoError(t, s.Close())
	assertDestroyedOnce(t, f2)
}

func TestBindFailureSkips(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())
	surf.BindErr = errors.New("surface lost")

	f1, f2 := testFrame(8, 8), testFrame(8, 8)
	require.NoError(t, s.Submit(f1))
	require.NoError(t, s.Submit(f2))
	s.Pump(consumerCtx())

	assert.Equal(t, uint64(2), s.Stats().Skipped)
	assertDestroyedOnce(t, f1)
	assert.Zero(t, f2.DestroyCount())
}

func TestRefresh(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	require.NoError(t, s.Submit(testFrame(8, 8)))
	s.Pump(consumerCtx())
	surf.Hide()

	require.NoError(t, s.Refresh())
	assert.True(t, s.Settings().NeedsRebind)
	s.Pump(consumerCtx())
	assert.True(t, surf.IsVisible())
	assert.False(t, s.Settings().NeedsRebind)
}

func TestDestroyFailureStillClearsSlot(t *testing.T) {
	s, _ := newTestSink(t, DefaultConfig())

	f := testFrame(8, 8)
	f.DestroyErr = errors.New("release failed")
	require.NoError(t, s.Submit(f))
	require.NoError(t, s.RetrieveAll(consumerCtx(), false))

	st := s.Stats()
	assert.Zero(t, st.InFlight)
	assert.Equal(t, uint64(1), st.DestroyFailures)
	assert.Equal(t, 1, f.DestroyCount())
}

func TestSetterOnClosedDispatcher(t *testing.T) {
	s, _ := newTestSink(t, DefaultConfig())
	s.disp.Close()

	err := s.SetRotation(Rotate90)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, err, ErrChannelClosed)
	require.ErrorIs(t, err, ErrDispatchFailed)
}

func TestClose(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	f1, f2 := testFrame(8, 8), testFrame(8, 8)
	require.NoError(t, s.Submit(f1))
	s.Pump(consumerCtx())
	require.NoError(t, s.Submit(f2))

	require.NoError(t, s.Close())
	assertDestroyedOnce(t, f1, f2)
	assert.Nil(t, surf.Binding())
	assert.Zero(t, surf.Subscribers())
	assert.Zero(t, s.Stats().InFlight)

	f3 := testFrame(8, 8)
	require.ErrorIs(t, s.Submit(f3), ErrNotInitialized)
	assertDestroyedOnce(t, f3)

	assert.ErrorIs(t, s.SetRotation(Rotate90), ErrNotInitialized)
	assert.ErrorIs(t, s.SetVisible(true), ErrNotInitialized)
	assert.ErrorIs(t, s.RetrieveAll(consumerCtx(), false), ErrNotInitialized)
	assert.ErrorIs(t, s.Close(), ErrNotInitialized)
	assert.Zero(t, s.Pump(consumerCtx()))

	// Callbacks after teardown are no-ops.
	surf.RenderPre()
	surf.Resize(10, 10)
}

func TestRunConsumer(t *testing.T) {
	s, surf := newTestSink(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	f1, f2 := testFrame(8, 8), testFrame(8, 8)
	require.NoError(t, s.Submit(f1))
	require.NoError(t, s.Submit(f2))
	require.Eventually(t, func() bool {
		b := surf.Binding()
		return b != nil && b.Buffer == Buffer(f2.buf)
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.RetrieveAll(context.Background(), false))
	require.Eventually(t, func() bool {
		return s.Stats().InFlight == 0 && !s.FlushPending()
	}, 2*time.Second, 5*time.Millisecond)
	assertDestroyedOnce(t, f1, f2)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
