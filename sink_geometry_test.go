package framesink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRect(t *testing.T) {
	bounds := Rect{W: 800, H: 600}
	roi := Rect{X: 10, Y: 20, W: 100, H: 50}

	tests := []struct {
		name       string
		mode       GeometryMode
		srcW, srcH int
		bounds     Rect
		want       Placement
	}{
		{"letterbox fills bounds", GeometryLetterbox, 400, 300, bounds, Placement{Rect: Rect{W: 800, H: 600}, UseRatio: true}},
		{"origin size centred", GeometryOriginSize, 400, 300, bounds, Placement{Rect: Rect{X: 200, Y: 150, W: 400, H: 300}}},
		{"origin size larger than bounds", GeometryOriginSize, 1000, 800, bounds, Placement{Rect: Rect{X: -100, Y: -100, W: 1000, H: 800}}},
		{"full screen stretches", GeometryFullScreen, 400, 100, bounds, Placement{Rect: Rect{W: 800, H: 600}}},
		{"cropped wider bounds", GeometryCroppedFullScreen, 640, 480, Rect{W: 1920, H: 1080}, Placement{Rect: Rect{X: 0, Y: -180, W: 1920, H: 1440}}},
		{"cropped taller bounds", GeometryCroppedFullScreen, 640, 480, Rect{W: 1080, H: 1920}, Placement{Rect: Rect{X: -740, Y: 0, W: 2560, H: 1920}}},
		{"cropped equal aspect", GeometryCroppedFullScreen, 400, 300, bounds, Placement{Rect: Rect{W: 800, H: 600}}},
		{"origin or letterbox picks origin", GeometryOriginOrLetterbox, 400, 300, bounds, Placement{Rect: Rect{X: 200, Y: 150, W: 400, H: 300}}},
		{"origin or letterbox needs strict fit", GeometryOriginOrLetterbox, 800, 300, bounds, Placement{Rect: Rect{W: 800, H: 600}, UseRatio: true}},
		{"custom region verbatim", GeometryCustomRegion, 400, 300, bounds, Placement{Rect: roi}},
		{"custom region ignores source size", GeometryCustomRegion, 0, 0, bounds, Placement{Rect: roi}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeRect(tt.mode, tt.srcW, tt.srcH, tt.bounds, roi)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRectIsPure(t *testing.T) {
	bounds := Rect{W: 800, H: 600}
	for m := range geometryNames {
		a, err := ComputeRect(m, 400, 300, bounds, Rect{W: 10, H: 10})
		require.NoError(t, err)
		b, err := ComputeRect(m, 400, 300, bounds, Rect{W: 10, H: 10})
		require.NoError(t, err)
		assert.Equal(t, a, b, m.String())
	}
}

func TestComputeRectUnavailable(t *testing.T) {
	tests := []struct {
		name       string
		mode       GeometryMode
		srcW, srcH int
		bounds     Rect
		roi        Rect
	}{
		{"zero bounds during resize", GeometryLetterbox, 400, 300, Rect{}, Rect{}},
		{"zero height bounds", GeometryCroppedFullScreen, 400, 300, Rect{W: 800}, Rect{}},
		{"zero source", GeometryCroppedFullScreen, 0, 300, Rect{W: 800, H: 600}, Rect{}},
		{"zero source origin", GeometryOriginSize, 400, 0, Rect{W: 800, H: 600}, Rect{}},
		{"empty roi", GeometryCustomRegion, 400, 300, Rect{W: 800, H: 600}, Rect{W: 10}},
		{"custom region zero bounds", GeometryCustomRegion, 400, 300, Rect{}, Rect{W: 100, H: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeRect(tt.mode, tt.srcW, tt.srcH, tt.bounds, tt.roi)
			require.ErrorIs(t, err, ErrGeometryUnavailable)
		})
	}
}

func TestComputeRectUnknownMode(t *testing.T) {
	_, err := ComputeRect(GeometryMode(42), 400, 300, Rect{W: 800, H: 600}, Rect{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseNames(t *testing.T) {
	for m, name := range geometryNames {
		got, err := ParseGeometryMode(name)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	for f, name := range flipNames {
		got, err := ParseFlip(name)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseGeometryMode("stretch")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ParseFlip("diagonal")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.False(t, Rotation(45).Valid())
	assert.True(t, Rotate270.Valid())
	assert.True(t, VisibleUnset.Shown())
	assert.False(t, VisibleFalse.Shown())
}
