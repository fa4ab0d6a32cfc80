package framesink

import (
	"image"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// MemoryBuffer is a Buffer backed by an in-memory RGBA image.
type MemoryBuffer struct {
	img *image.RGBA
}

func NewMemoryBuffer(img *image.RGBA) *MemoryBuffer {
	return &MemoryBuffer{img: img}
}

func (b *MemoryBuffer) Image() (image.Image, error) {
	if b.img == nil {
		return nil, errors.Wrap(ErrNotInitialized, "memory buffer has no image")
	}
	return b.img, nil
}

// MemoryFrame is a Frame over a MemoryBuffer. Destroy succeeds once; later
// calls return ErrAlreadyDestroyed so double releases show up in counts and
// logs.
type MemoryFrame struct {
	buf       *MemoryBuffer
	width     int
	height    int
	destroyed atomic.Int32

	// OnDestroy, if set, runs on the first Destroy.
	OnDestroy func(*MemoryFrame)
	// DestroyErr, if set, is returned by the first Destroy.
	DestroyErr error
}

// NewMemoryFrame wraps img. A nil img yields a frame without a native buffer.
func NewMemoryFrame(img *image.RGBA) *MemoryFrame {
	f := &MemoryFrame{}
	if img != nil {
		f.buf = NewMemoryBuffer(img)
		b := img.Bounds()
		f.width, f.height = b.Dx(), b.Dy()
	}
	return f
}

func (f *MemoryFrame) HasNativeBuffer() bool {
	return f.buf != nil
}

func (f *MemoryFrame) VideoSize() (int, int, error) {
	if f.buf == nil {
		return 0, 0, errors.Wrap(ErrNotInitialized, "frame has no format")
	}
	return f.width, f.height, nil
}

func (f *MemoryFrame) NativeBuffer() (Buffer, error) {
	if f.buf == nil {
		return nil, errors.Wrap(ErrNotInitialized, "frame has no native buffer")
	}
	return f.buf, nil
}

func (f *MemoryFrame) Destroy() error {
	if f.destroyed.Add(1) > 1 {
		return ErrAlreadyDestroyed
	}
	if f.OnDestroy != nil {
		f.OnDestroy(f)
	}
	return f.DestroyErr
}

// DestroyCount is how many times Destroy has been called.
func (f *MemoryFrame) DestroyCount() int {
	return int(f.destroyed.Load())
}
