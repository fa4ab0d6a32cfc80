//go:build !headless

// surface.go - Ebiten window implementing the framesink surface

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

package ebitensurface

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/intuitionamiga/framesink"
	"golang.org/x/image/font/basicfont"
)

type binding struct {
	buf    framesink.Buffer
	params framesink.TransformParams
}

// Surface is an ebiten.Game. Update is the consumer context: it fires the
// sink's RenderPre hook, which runs pending flushes and delivers queued
// frames before Draw.
type Surface struct {
	mu        sync.RWMutex
	width     int
	height    int
	binding   *binding
	fill      framesink.Rect
	visible   bool
	dirty     bool
	showStats bool
	statsFn   func() []string
	keyFn     func(ebiten.Key)

	nextID    int
	callbacks map[int]framesink.SurfaceCallbacks

	// Draw-side state, only touched on the game goroutine
	texture     *ebiten.Image
	textureSrc  framesink.Buffer
	scratch     *image.RGBA
	destroyOnce sync.Once

	frameCount atomic.Uint64
	closing    atomic.Bool
	title      string
}

func New(title string, width, height int) *Surface {
	return &Surface{
		width:     width,
		height:    height,
		visible:   true,
		showStats: true,
		callbacks: make(map[int]framesink.SurfaceCallbacks),
		title:     title,
	}
}

// Run opens the window and blocks until it is closed. It must be called
// from the main goroutine.
func (s *Surface) Run() error {
	ebiten.SetWindowSize(s.width, s.height)
	ebiten.SetWindowTitle(s.title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)
	if err := ebiten.RunGame(s); err != nil {
		return &framesink.SinkError{Operation: "run", Details: "ebiten game loop", Err: err}
	}
	return nil
}

// Close ends the game loop on the next Update.
func (s *Surface) Close() {
	s.closing.Store(true)
}

func (s *Surface) Bounds() framesink.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return framesink.Rect{W: s.width, H: s.height}
}

func (s *Surface) Bind(buf framesink.Buffer, params framesink.TransformParams) error {
	if buf == nil {
		return errors.Wrap(framesink.ErrInvalidArgument, "ebiten surface: nil buffer")
	}
	s.mu.Lock()
	s.binding = &binding{buf: buf, params: params}
	s.mu.Unlock()
	return nil
}

func (s *Surface) Unbind() {
	s.mu.Lock()
	s.binding = nil
	s.mu.Unlock()
}

func (s *Surface) SetFill(r framesink.Rect) {
	s.mu.Lock()
	s.fill = r
	s.mu.Unlock()
}

func (s *Surface) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

func (s *Surface) Show() {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
}

func (s *Surface) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
}

func (s *Surface) Subscribe(cb framesink.SurfaceCallbacks) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.callbacks[id] = cb
	return func() {
		s.mu.Lock()
		delete(s.callbacks, id)
		s.mu.Unlock()
	}
}

// SetStatsFunc installs the overlay text source. F12 toggles the overlay.
func (s *Surface) SetStatsFunc(fn func() []string) {
	s.mu.Lock()
	s.statsFn = fn
	s.mu.Unlock()
}

// SetKeyHandler receives every key pressed this tick, on the game goroutine.
func (s *Surface) SetKeyHandler(fn func(ebiten.Key)) {
	s.mu.Lock()
	s.keyFn = fn
	s.mu.Unlock()
}

func (s *Surface) subscribers() []framesink.SurfaceCallbacks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cbs := make([]framesink.SurfaceCallbacks, 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

func (s *Surface) Update() error {
	if ebiten.IsWindowBeingClosed() || s.closing.Load() {
		s.destroyOnce.Do(func() {
			s.Unbind()
			for _, cb := range s.subscribers() {
				cb.SurfaceDestroyed()
			}
		})
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		s.mu.Lock()
		s.showStats = !s.showStats
		s.mu.Unlock()
	}

	s.mu.RLock()
	keyFn := s.keyFn
	s.mu.RUnlock()
	if keyFn != nil {
		for _, k := range inpututil.AppendJustPressedKeys(nil) {
			keyFn(k)
		}
	}

	for _, cb := range s.subscribers() {
		cb.RenderPre()
	}
	return nil
}

func (s *Surface) Layout(outsideWidth, outsideHeight int) (int, int) {
	s.mu.Lock()
	changed := outsideWidth != s.width || outsideHeight != s.height
	s.width, s.height = outsideWidth, outsideHeight
	s.mu.Unlock()

	if changed {
		for _, cb := range s.subscribers() {
			cb.SurfaceResized()
		}
	}
	return outsideWidth, outsideHeight
}

func (s *Surface) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	s.mu.Lock()
	b := s.binding
	fill := s.fill
	visible := s.visible
	showStats := s.showStats
	statsFn := s.statsFn
	s.dirty = false
	s.mu.Unlock()

	if b == nil {
		s.releaseTexture()
	} else if visible {
		s.drawBinding(screen, b, fill)
	}

	if showStats && statsFn != nil {
		drawStats(screen, statsFn())
	}
	s.frameCount.Add(1)
}

func (s *Surface) drawBinding(screen *ebiten.Image, b *binding, fill framesink.Rect) {
	if b.buf != s.textureSrc {
		img, err := b.buf.Image()
		if err != nil {
			ebitenutil.DebugPrint(screen, "buffer unavailable: "+err.Error())
			return
		}
		rgba := toRGBA(img, s.scratch)
		if rgba != img {
			s.scratch = rgba
		}
		w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
		if s.texture == nil || s.texture.Bounds().Dx() != w || s.texture.Bounds().Dy() != h {
			s.releaseTexture()
			s.texture = ebiten.NewImage(w, h)
		}
		s.texture.WritePixels(rgba.Pix)
		s.textureSrc = b.buf
	}

	m, ok := Matrix(b.params, fill)
	if !ok {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.SetElement(0, 0, m[0])
	op.GeoM.SetElement(0, 1, m[1])
	op.GeoM.SetElement(0, 2, m[2])
	op.GeoM.SetElement(1, 0, m[3])
	op.GeoM.SetElement(1, 1, m[4])
	op.GeoM.SetElement(1, 2, m[5])
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(s.texture, op)
}

func (s *Surface) releaseTexture() {
	if s.texture != nil {
		s.texture.Deallocate()
		s.texture = nil
	}
	s.textureSrc = nil
}

// FrameCount is the number of Draw calls so far.
func (s *Surface) FrameCount() uint64 {
	return s.frameCount.Load()
}

func drawStats(screen *ebiten.Image, lines []string) {
	face := basicfont.Face7x13
	labelColor := color.RGBA{190, 190, 190, 255}
	y := 16
	for _, line := range lines {
		text.Draw(screen, line, face, 8, y, labelColor)
		y += 15
	}
}
