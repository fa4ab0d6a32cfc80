package main

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/intuitionamiga/framesink"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// watchPresentation re-applies present.* whenever the config file changes.
// Sink settings (capacity, queue depth) only take effect on restart.
func watchPresentation(ctx context.Context, v *viper.Viper, s *framesink.Sink, log *zap.SugaredLogger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		p, err := framesink.LoadPresentation(v)
		if err != nil {
			log.Warnw("config reload failed", "file", e.Name, "error", err)
			return
		}
		if err := p.Apply(s); err != nil {
			log.Warnw("presentation not applied", "file", e.Name, "error", err)
			return
		}
		log.Infow("presentation reloaded", "file", e.Name, "mode", p.Mode, "rotation", p.Rotation, "flip", p.Flip)
	})
	v.WatchConfig()
}
