// surface_headless.go - Headless surface that records bindings instead of drawing

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

package framesink

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Binding is what a HeadlessSurface currently shows.
type Binding struct {
	Buffer Buffer
	Params TransformParams
}

// HeadlessSurface implements Surface without a display. Lifecycle signals are
// fired synchronously on the goroutine calling Resize, Destroy or RenderPre,
// which therefore acts as the surface owner.
type HeadlessSurface struct {
	mu        sync.Mutex
	bounds    Rect
	binding   *Binding
	fill      Rect
	visible   bool
	destroyed bool

	binds      int
	unbinds    int
	dirtyCount int

	nextID    int
	callbacks map[int]SurfaceCallbacks

	// BindErr, if set, is returned by Bind.
	BindErr error
}

func NewHeadlessSurface(width, height int) *HeadlessSurface {
	return &HeadlessSurface{
		bounds:    Rect{W: width, H: height},
		visible:   true,
		callbacks: make(map[int]SurfaceCallbacks),
	}
}

func (h *HeadlessSurface) Bounds() Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds
}

func (h *HeadlessSurface) Bind(buf Buffer, params TransformParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return &SinkError{Operation: "bind", Details: "headless surface destroyed", Err: ErrNotInitialized}
	}
	if h.BindErr != nil {
		return h.BindErr
	}
	if buf == nil {
		return errors.Wrap(ErrInvalidArgument, "nil buffer")
	}
	h.binding = &Binding{Buffer: buf, Params: params}
	h.binds++
	return nil
}

func (h *HeadlessSurface) Unbind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.binding = nil
	h.unbinds++
}

func (h *HeadlessSurface) SetFill(r Rect) {
	h.mu.Lock()
	h.fill = r
	h.mu.Unlock()
}

func (h *HeadlessSurface) MarkDirty() {
	h.mu.Lock()
	h.dirtyCount++
	h.mu.Unlock()
}

func (h *HeadlessSurface) Show() {
	h.mu.Lock()
	h.visible = true
	h.mu.Unlock()
}

func (h *HeadlessSurface) Hide() {
	h.mu.Lock()
	h.visible = false
	h.mu.Unlock()
}

func (h *HeadlessSurface) Subscribe(cb SurfaceCallbacks) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.callbacks[id] = cb
	return func() {
		h.mu.Lock()
		delete(h.callbacks, id)
		h.mu.Unlock()
	}
}

// Resize changes the bounds and fires SurfaceResized.
func (h *HeadlessSurface) Resize(width, height int) {
	h.mu.Lock()
	h.bounds = Rect{W: width, H: height}
	cbs := h.snapshotCallbacks()
	h.mu.Unlock()
	for _, cb := range cbs {
		cb.SurfaceResized()
	}
}

// Destroy drops the binding, refuses further binds and fires
// SurfaceDestroyed.
func (h *HeadlessSurface) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	h.binding = nil
	cbs := h.snapshotCallbacks()
	h.mu.Unlock()
	for _, cb := range cbs {
		cb.SurfaceDestroyed()
	}
}

// RenderPre fires the pre-present hook, standing in for a toolkit frame tick.
func (h *HeadlessSurface) RenderPre() {
	h.mu.Lock()
	cbs := h.snapshotCallbacks()
	h.mu.Unlock()
	for _, cb := range cbs {
		cb.RenderPre()
	}
}

// Callbacks must not run under h.mu; they call back into the surface.
func (h *HeadlessSurface) snapshotCallbacks() []SurfaceCallbacks {
	cbs := make([]SurfaceCallbacks, 0, len(h.callbacks))
	for _, cb := range h.callbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

// Binding returns a copy of the current binding, or nil when unbound.
func (h *HeadlessSurface) Binding() *Binding {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.binding == nil {
		return nil
	}
	b := *h.binding
	return &b
}

func (h *HeadlessSurface) Fill() Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fill
}

func (h *HeadlessSurface) IsVisible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

func (h *HeadlessSurface) DirtyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirtyCount
}

// BindCounts returns how many Bind and Unbind calls the surface has seen.
func (h *HeadlessSurface) BindCounts() (binds, unbinds int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.binds, h.unbinds
}

func (h *HeadlessSurface) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.callbacks)
}
