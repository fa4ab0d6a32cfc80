// sink_present.go - Consumer-side presentation of the current frame

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
	"context"
)

// handle is the dispatcher's consumer callback.
func (s *Sink) handle(ctx context.Context, msg Message) {
	if s.closed.Load() {
		return
	}
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
	if s.closed.Load() {
		return
	}

	s.flushIfRequested()

	switch msg.Kind {
	case MsgVisibilityChanged:
		if ref := s.surface.Load(); ref != nil {
			s.applyVisibility(ref.Surface, msg.Visible, true)
		}
	case MsgFrameReady, MsgRefresh, MsgSurfaceResized:
		s.present(msg)
	}
}

// present binds the current slot (or the bound keep-screen snapshot when no
// slot is live) and retires whatever the current slot superseded.
func (s *Sink) present(msg Message) {
	var surf Surface
	var bounds Rect
	ref := s.surface.Load()
	if ref != nil {
		surf = ref.Surface
		bounds = surf.Bounds()
	}

	s.idxMu.Lock()
	s.settings.Bounds = bounds
	st := s.settings
	gen := s.rebindGen
	idx := s.slots.current
	var buf Buffer
	var srcW, srcH int
	if e := s.slots.entry(idx); e != nil {
		buf, srcW, srcH = e.buffer, e.width, e.height
		s.settings.SourceWidth, s.settings.SourceHeight = srcW, srcH
	} else if s.boundSnapshot != nil {
		buf = s.boundSnapshot
		srcW, srcH = s.boundSnapshot.Size()
	}
	s.idxMu.Unlock()

	if buf == nil {
		return
	}
	if surf == nil {
		s.skip(idx, "surface not available")
		return
	}

	place, err := ComputeRect(st.Mode, srcW, srcH, bounds, st.ROI)
	if err != nil {
		s.skip(idx, err.Error())
		return
	}

	params := TransformParams{
		Rotation:     st.Rotation,
		Flip:         st.Flip,
		UseRatio:     place.UseRatio,
		SourceWidth:  srcW,
		SourceHeight: srcH,
	}
	if place.UseRatio {
		params.Ratio = float64(srcW) / float64(srcH)
	}

	if st.NeedsRebind {
		surf.Unbind()
	}
	if err := surf.Bind(buf, params); err != nil {
		if st.NeedsRebind {
			s.idxMu.Lock()
			s.boundIdx = noSlot
			s.boundSnapshot = nil
			s.idxMu.Unlock()
		}
		s.skip(idx, err.Error())
		return
	}
	surf.SetFill(place.Rect)
	surf.MarkDirty()
	s.applyVisibility(surf, st.Visibility.Shown(), msg.Kind == MsgRefresh)

	s.idxMu.Lock()
	if s.surface.Load() == ref {
		if idx != noSlot {
			s.boundIdx = idx
			s.boundSnapshot = nil
		}
	}
	// A setter that raised the flag again while Bind ran keeps it raised
	// for its own refresh.
	if st.NeedsRebind && s.rebindGen == gen {
		s.settings.NeedsRebind = false
	}
	var retired int
	if idx != noSlot {
		frames := s.slots.detachChain(idx, s.boundIdx)
		retired = len(frames)
		s.destroyLocked(frames...)
	}
	inFlight := s.slots.inFlight
	s.idxMu.Unlock()

	s.presented.Add(1)
	s.log.Debugw("frame presented",
		FieldSlot, idx,
		FieldKind, msg.Kind,
		FieldRect, place.Rect,
		"retired", retired,
		FieldInFlight, inFlight)
}

// skip abandons this presentation cycle but still reclaims the frames idx
// superseded. The slot bound to the surface is kept alive.
func (s *Sink) skip(idx int, reason string) {
	s.skipped.Add(1)
	s.idxMu.Lock()
	var frames []Frame
	if idx != noSlot {
		frames = s.slots.detachChain(idx, s.boundIdx)
		s.destroyLocked(frames...)
	}
	s.idxMu.Unlock()
	s.log.Debugw("presentation skipped", FieldSlot, idx, FieldReason, reason, "retired", len(frames))
}

// applyVisibility shows or hides surf when the state differs from what was
// last applied, or unconditionally when force is set.
func (s *Sink) applyVisibility(surf Surface, shown, force bool) {
	if !force && s.shownApplied != nil && *s.shownApplied == shown {
		return
	}
	if shown {
		surf.Show()
	} else {
		surf.Hide()
	}
	s.shownApplied = &shown
}
