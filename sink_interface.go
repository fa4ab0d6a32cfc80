// sink_interface.go - Collaborator interfaces and presentation types for framesink

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
	"fmt"
	"image"
	"strings"
)

// Rect is an integer rectangle in surface coordinates. X and Y may be
// negative when a placement overflows the surface (cropped modes).
type Rect struct {
	X, Y int
	W, H int
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// Buffer is a native graphics buffer shared between a frame and the surface
// it is bound to. Image maps it for CPU reads; implementations may return the
// same image on every call.
type Buffer interface {
	Image() (image.Image, error)
}

// Frame is a decoded frame handed over by the producer. The sink is one of
// possibly several holders; Destroy releases the sink's hold.
type Frame interface {
	HasNativeBuffer() bool
	VideoSize() (width, height int, err error)
	NativeBuffer() (Buffer, error)
	Destroy() error
}

// TransformParams travel with a buffer when it is bound to a surface.
type TransformParams struct {
	Rotation     Rotation
	Flip         Flip
	UseRatio     bool
	Ratio        float64 // source width / height, set only when UseRatio
	SourceWidth  int
	SourceHeight int
}

// SurfaceCallbacks are invoked by the toolkit on the goroutine that owns the
// surface.
type SurfaceCallbacks interface {
	SurfaceResized()
	SurfaceDestroyed()
	RenderPre()
}

// Surface is the toolkit-owned display object. All methods except Bounds and
// Subscribe are only called from the consumer context.
type Surface interface {
	Bounds() Rect
	Bind(buf Buffer, params TransformParams) error
	Unbind()
	SetFill(r Rect)
	MarkDirty()
	Show()
	Hide()
	Subscribe(cb SurfaceCallbacks) (cancel func())
}

// Visibility is tri-state; VisibleUnset behaves as visible.
type Visibility int

const (
	VisibleUnset Visibility = iota
	VisibleTrue
	VisibleFalse
)

func (v Visibility) Shown() bool {
	return v != VisibleFalse
}

type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

type Flip int

const (
	FlipNone Flip = iota
	FlipHorizontal
	FlipVertical
	FlipBoth
)

var flipNames = map[Flip]string{
	FlipNone:       "none",
	FlipHorizontal: "horizontal",
	FlipVertical:   "vertical",
	FlipBoth:       "both",
}

func (f Flip) Valid() bool {
	_, ok := flipNames[f]
	return ok
}

func (f Flip) String() string {
	if name, ok := flipNames[f]; ok {
		return name
	}
	return fmt.Sprintf("flip(%d)", int(f))
}

func ParseFlip(s string) (Flip, error) {
	for f, name := range flipNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return FlipNone, invalidArgf("unknown flip %q", s)
}

// GeometryMode selects how a source frame maps into the surface bounds.
type GeometryMode int

const (
	GeometryLetterbox GeometryMode = iota
	GeometryOriginSize
	GeometryFullScreen
	GeometryCroppedFullScreen
	GeometryOriginOrLetterbox
	GeometryCustomRegion
)

var geometryNames = map[GeometryMode]string{
	GeometryLetterbox:         "letterbox",
	GeometryOriginSize:        "origin-size",
	GeometryFullScreen:        "full-screen",
	GeometryCroppedFullScreen: "cropped-full-screen",
	GeometryOriginOrLetterbox: "origin-or-letterbox",
	GeometryCustomRegion:      "custom-region",
}

func (m GeometryMode) Valid() bool {
	_, ok := geometryNames[m]
	return ok
}

func (m GeometryMode) String() string {
	if name, ok := geometryNames[m]; ok {
		return name
	}
	return fmt.Sprintf("geometry(%d)", int(m))
}

func ParseGeometryMode(s string) (GeometryMode, error) {
	for m, name := range geometryNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return GeometryLetterbox, invalidArgf("unknown geometry mode %q", s)
}
