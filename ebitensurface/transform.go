package ebitensurface

import (
	"github.com/intuitionamiga/framesink"
	"golang.org/x/image/math/f64"
)

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// mul returns a∘b: b is applied first.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

func translate(x, y float64) f64.Aff3 { return f64.Aff3{1, 0, x, 0, 1, y} }
func scale(x, y float64) f64.Aff3     { return f64.Aff3{x, 0, 0, 0, y, 0} }

// rotate turns clockwise on a y-down screen in quarter turns.
func rotate(r framesink.Rotation) f64.Aff3 {
	switch r {
	case framesink.Rotate90:
		return f64.Aff3{0, -1, 0, 1, 0, 0}
	case framesink.Rotate180:
		return f64.Aff3{-1, 0, 0, 0, -1, 0}
	case framesink.Rotate270:
		return f64.Aff3{0, 1, 0, -1, 0, 0}
	}
	return identity
}

// Matrix maps source pixel space into fill. The source is flipped, rotated,
// then scaled to fill (uniformly when params.UseRatio) and centred. ok is
// false when there is nothing to draw.
func Matrix(params framesink.TransformParams, fill framesink.Rect) (m f64.Aff3, ok bool) {
	srcW, srcH := float64(params.SourceWidth), float64(params.SourceHeight)
	if srcW <= 0 || srcH <= 0 || fill.Empty() {
		return identity, false
	}

	m = translate(-srcW/2, -srcH/2)

	fx, fy := 1.0, 1.0
	switch params.Flip {
	case framesink.FlipHorizontal:
		fx = -1
	case framesink.FlipVertical:
		fy = -1
	case framesink.FlipBoth:
		fx, fy = -1, -1
	}
	m = mul(scale(fx, fy), m)
	m = mul(rotate(params.Rotation), m)

	rw, rh := srcW, srcH
	if params.Rotation == framesink.Rotate90 || params.Rotation == framesink.Rotate270 {
		rw, rh = rh, rw
	}
	sx, sy := float64(fill.W)/rw, float64(fill.H)/rh
	if params.UseRatio {
		k := min(sx, sy)
		sx, sy = k, k
	}
	m = mul(scale(sx, sy), m)

	m = mul(translate(float64(fill.X)+float64(fill.W)/2, float64(fill.Y)+float64(fill.H)/2), m)
	return m, true
}

// Apply maps a point through m.
func Apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}
