package main

import (
	"bytes"
	"context"
	"image/png"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/intuitionamiga/framesink"
	"golang.design/x/clipboard"
)

type action int

const (
	actRotate action = iota
	actFlip
	actMode
	actVisible
	actKeep
	actFlush
	actCopy
)

var keyActions = map[rune]action{
	'r': actRotate,
	'f': actFlip,
	'g': actMode,
	'v': actVisible,
	'k': actKeep,
	'x': actFlush,
	'c': actCopy,
}

var actionNames = map[action]string{
	actRotate:  "rotate",
	actFlip:    "flip",
	actMode:    "mode",
	actVisible: "visible",
	actKeep:    "flush-keep",
	actFlush:   "flush",
	actCopy:    "copy",
}

func (a action) String() string {
	return actionNames[a]
}

// perform runs a. Pass a consumer context when calling from the goroutine
// that owns the surface so flushes run immediately.
func perform(ctx context.Context, s *framesink.Sink, a action) error {
	switch a {
	case actRotate:
		return s.SetRotation(nextRotation(s.Rotation()))
	case actFlip:
		return s.SetFlip((s.Flip() + 1) % 4)
	case actMode:
		return s.SetGeometryMode(nextMode(s.GeometryMode(), s.ROI()))
	case actVisible:
		return s.SetVisible(!s.Visible())
	case actKeep:
		return s.RetrieveAll(ctx, true)
	case actFlush:
		return s.RetrieveAll(ctx, false)
	case actCopy:
		return copySnapshot(s)
	}
	return errors.Newf("unknown action %d", int(a))
}

func nextRotation(r framesink.Rotation) framesink.Rotation {
	return (r + 90) % 360
}

// nextMode cycles the geometry modes, skipping custom-region until a region
// of interest has been configured.
func nextMode(m framesink.GeometryMode, roi framesink.Rect) framesink.GeometryMode {
	next := (m + 1) % (framesink.GeometryCustomRegion + 1)
	if next == framesink.GeometryCustomRegion && roi.Empty() {
		next = framesink.GeometryLetterbox
	}
	return next
}

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// copySnapshot puts the keep-screen frame on the clipboard as PNG.
func copySnapshot(s *framesink.Sink) error {
	snap := s.Snapshot()
	if snap == nil {
		return errors.WithHint(errors.New("no frozen frame"), "press k to flush and keep the last frame first")
	}
	clipboardOnce.Do(func() {
		clipboardErr = clipboard.Init()
	})
	if clipboardErr != nil {
		return errors.Wrap(clipboardErr, "clipboard unavailable")
	}
	img, err := snap.Image()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}
	clipboard.Write(clipboard.FmtImage, buf.Bytes())
	return nil
}
