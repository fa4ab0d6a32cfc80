package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/intuitionamiga/framesink"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func runHeadless(ctx context.Context, app *player) error {
	surf := framesink.NewHeadlessSurface(app.width, app.height)
	s, err := framesink.New(surf, app.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := app.present.Apply(s); err != nil {
		return err
	}
	watchPresentation(ctx, app.v, s, app.log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	prod := newPatternProducer(app.width, app.height, app.fps, app.frames, app.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return prod.Run(gctx, s)
	})

	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if stdoutTTY {
		g.Go(func() error {
			statusLoop(gctx, s, surf)
			return nil
		})
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		restore, keys, err := rawKeys()
		if err != nil {
			app.log.Warnw("interactive keys unavailable", "error", err)
		} else {
			defer restore()
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case r := <-keys:
						if r == 'q' || r == 3 {
							cancel()
							return nil
						}
						a, ok := keyActions[r]
						if !ok {
							continue
						}
						if err := perform(gctx, s, a); err != nil {
							app.log.Warnw("action failed", "action", a, "error", err)
						}
					}
				}
			})
		}
	}

	err = g.Wait()
	if stdoutTTY {
		fmt.Print("\r\n")
	}

	// The consumer has stopped; this goroutine now owns the surface.
	if ferr := s.RetrieveAll(framesink.ConsumerContext(context.Background()), false); ferr != nil {
		app.log.Warnw("final flush failed", "error", ferr)
	}
	st := s.Stats()
	app.log.Infow("finished",
		"submitted", prod.submitted.Load(),
		"accepted", st.Accepted,
		"rejected", st.Rejected,
		"presented", st.Presented,
		"skipped", st.Skipped,
		"destroyed", st.Destroyed,
		"in_flight", st.InFlight)
	return err
}

// rawKeys puts the terminal in raw mode and streams single key presses. The
// reader goroutine ends with the process.
func rawKeys() (restore func(), keys <-chan rune, err error) {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan rune, 8)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				ch <- rune(buf[0])
			}
		}
	}()
	return func() { _ = term.Restore(fd, old) }, ch, nil
}

func statusLoop(ctx context.Context, s *framesink.Sink, surf *framesink.HeadlessSurface) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		line := statusLine(s.Stats(), s.Settings(), surf.Binding() != nil)
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 1 && len(line) >= w {
			line = line[:w-1]
		}
		fmt.Printf("\r\x1b[K%s", line)
	}
}

func statusLine(st framesink.Stats, set framesink.Settings, bound bool) string {
	return fmt.Sprintf("accepted %d  rejected %d  presented %d  skipped %d  in-flight %d  queued %d  | %s rot %d flip %s bound %v",
		st.Accepted, st.Rejected, st.Presented, st.Skipped, st.InFlight, st.Queued,
		set.Mode, int(set.Rotation), set.Flip, bound)
}
