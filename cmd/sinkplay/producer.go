package main

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/intuitionamiga/framesink"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// patternProducer stands in for a decoder: it renders frames at a fixed rate
// and submits them without waiting on the consumer.
type patternProducer struct {
	width   int
	height  int
	limit   int
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	submitted atomic.Uint64
	rejected  atomic.Uint64
}

func newPatternProducer(width, height int, fps float64, limit int, log *zap.SugaredLogger) *patternProducer {
	return &patternProducer{
		width:   width,
		height:  height,
		limit:   limit,
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		log:     log,
	}
}

// Run submits frames until ctx is done or the frame limit is reached.
func (p *patternProducer) Run(ctx context.Context, s *framesink.Sink) error {
	for n := 0; p.limit == 0 || n < p.limit; n++ {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		f := framesink.NewMemoryFrame(renderPattern(p.width, p.height, n))
		p.submitted.Add(1)
		if err := s.Submit(f); err != nil {
			p.rejected.Add(1)
			p.log.Debugw("frame dropped", "frame", n, "error", err)
		}
	}
	return nil
}

var barColors = [8][3]byte{
	{255, 255, 255}, {255, 255, 0}, {0, 255, 255}, {0, 255, 0},
	{255, 0, 255}, {255, 0, 0}, {0, 0, 255}, {16, 16, 16},
}

// renderPattern draws colour bars scrolling left by n pixels, with a marker
// square in the top-left corner so rotation and flip are visible.
func renderPattern(width, height, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bar := max(width/len(barColors), 1)
	marker := max(min(width, height)/8, 1)
	for y := range height {
		row := img.Pix[y*img.Stride:]
		for x := range width {
			c := barColors[((x+n)/bar)%len(barColors)]
			if x < marker && y < marker {
				c = [3]byte{255, 128, 0}
			}
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = c[0], c[1], c[2], 255
		}
	}
	return img
}
