package ebitensurface

import (
	"image"

	"golang.org/x/image/draw"
)

// toRGBA returns src as a tightly packed RGBA image with a zero origin,
// suitable for WritePixels. scratch is reused when it has the right size.
func toRGBA(src image.Image, scratch *image.RGBA) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := scratch
	if dst == nil || dst.Bounds().Dx() != b.Dx() || dst.Bounds().Dy() != b.Dy() {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
	return dst
}
