package framesink

import "github.com/cockroachdb/errors"

// Placement is where a frame lands inside the surface bounds. UseRatio asks
// the surface to preserve the source aspect ratio inside Rect on its own.
type Placement struct {
	Rect     Rect
	UseRatio bool
}

// ComputeRect maps a srcW x srcH frame into bounds according to mode. It is
// pure. Degenerate input (zero source, zero bounds, empty ROI) yields
// ErrGeometryUnavailable and the caller skips the presentation cycle. Zero
// bounds are unavailable in every mode, custom-region included.
func ComputeRect(mode GeometryMode, srcW, srcH int, bounds, roi Rect) (Placement, error) {
	if bounds.Empty() {
		return Placement{}, errors.Wrapf(ErrGeometryUnavailable, "surface bounds %s", bounds)
	}
	if mode == GeometryCustomRegion {
		if roi.Empty() {
			return Placement{}, errors.Wrapf(ErrGeometryUnavailable, "empty region of interest %s", roi)
		}
		return Placement{Rect: roi}, nil
	}
	if srcW <= 0 || srcH <= 0 {
		return Placement{}, errors.Wrapf(ErrGeometryUnavailable, "source size %dx%d", srcW, srcH)
	}

	var p Placement
	switch mode {
	case GeometryLetterbox:
		p = letterbox(bounds)
	case GeometryOriginSize:
		p = originSize(srcW, srcH, bounds)
	case GeometryFullScreen:
		p = Placement{Rect: Rect{W: bounds.W, H: bounds.H}}
	case GeometryCroppedFullScreen:
		p = croppedFullScreen(srcW, srcH, bounds)
	case GeometryOriginOrLetterbox:
		if bounds.W > srcW && bounds.H > srcH {
			p = originSize(srcW, srcH, bounds)
		} else {
			p = letterbox(bounds)
		}
	default:
		return Placement{}, invalidArgf("unsupported geometry mode %d", int(mode))
	}

	if p.Rect.Empty() {
		return Placement{}, errors.Wrapf(ErrGeometryUnavailable, "%s produced %s", mode, p.Rect)
	}
	return p, nil
}

func letterbox(bounds Rect) Placement {
	return Placement{Rect: Rect{W: bounds.W, H: bounds.H}, UseRatio: true}
}

func originSize(srcW, srcH int, bounds Rect) Placement {
	return Placement{Rect: Rect{
		X: (bounds.W - srcW) / 2,
		Y: (bounds.H - srcH) / 2,
		W: srcW,
		H: srcH,
	}}
}

// croppedFullScreen covers the bounds while keeping the source aspect ratio;
// the overflowing axis is centred with a negative offset. Ratios are compared
// by cross-multiplication so 16:9 against 4:3 is not truncated to 1 == 1.
func croppedFullScreen(srcW, srcH int, bounds Rect) Placement {
	var r Rect
	if bounds.W*srcH > srcW*bounds.H {
		r.W = bounds.W
		r.H = bounds.W * srcH / srcW
		r.Y = -(r.H - bounds.H) / 2
	} else {
		r.W = bounds.H * srcW / srcH
		r.H = bounds.H
		r.X = -(r.W - bounds.W) / 2
	}
	return Placement{Rect: r}
}
