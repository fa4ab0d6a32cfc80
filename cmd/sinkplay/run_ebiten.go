//go:build !headless

// run_ebiten.go - Windowed sinkplay on the ebiten surface

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

package main

import (
	"context"
	"fmt"
	"unicode"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/intuitionamiga/framesink"
	"github.com/intuitionamiga/framesink/ebitensurface"
	"golang.org/x/sync/errgroup"
)

func runWindow(ctx context.Context, app *player) error {
	surf := ebitensurface.New("sinkplay - framesink", app.width, app.height)
	s, err := framesink.New(surf, app.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := app.present.Apply(s); err != nil {
		return err
	}
	watchPresentation(ctx, app.v, s, app.log)

	surf.SetStatsFunc(func() []string {
		st, set := s.Stats(), s.Settings()
		return []string{
			fmt.Sprintf("accepted %d  rejected %d  presented %d", st.Accepted, st.Rejected, st.Presented),
			fmt.Sprintf("in-flight %d  queued %d  skipped %d", st.InFlight, st.Queued, st.Skipped),
			fmt.Sprintf("%s  rot %d  flip %s  fps %.1f", set.Mode, int(set.Rotation), set.Flip, ebiten.ActualFPS()),
		}
	})

	// Key presses arrive on the game goroutine, which owns the surface.
	consumer := framesink.ConsumerContext(ctx)
	surf.SetKeyHandler(func(k ebiten.Key) {
		name := k.String()
		if len(name) != 1 {
			return
		}
		a, ok := keyActions[unicode.ToLower(rune(name[0]))]
		if !ok {
			return
		}
		if err := perform(consumer, s, a); err != nil {
			app.log.Warnw("action failed", "action", a, "error", err)
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	prod := newPatternProducer(app.width, app.height, app.fps, app.frames, app.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prod.Run(gctx, s)
	})
	g.Go(func() error {
		<-gctx.Done()
		surf.Close()
		return nil
	})

	runErr := surf.Run()
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}

	st := s.Stats()
	app.log.Infow("finished",
		"submitted", prod.submitted.Load(),
		"accepted", st.Accepted,
		"presented", st.Presented,
		"frames_drawn", surf.FrameCount())
	return runErr
}
