// main.go - sinkplay: drive framesink with a synthetic test pattern

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
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/intuitionamiga/framesink"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath string
	headless   bool
	fps        float64
	sizeFlag   string
	frameLimit int
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "sinkplay",
	Short: "Play a synthetic test pattern through framesink",
	Long: `sinkplay feeds a moving test pattern into a framesink engine and presents it
in an ebiten window, or on a headless surface with a terminal status line.

Keys (window and interactive terminal):
  r  rotate 90 degrees       f  cycle flip
  g  cycle geometry mode     v  toggle visibility
  k  flush, keep last frame  x  flush and clear
  c  copy frozen frame to clipboard

Presentation settings in the config file are re-applied when the file changes.

Examples:
  sinkplay                          # window at 640x480, 30 fps
  sinkplay --headless --frames 300  # 10 seconds without a display
  sinkplay --config sinkplay.toml -v`,
	SilenceUsage: true,
	RunE:         runPlay,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML/YAML config file (sink.* and present.* keys)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "present to an in-memory surface instead of a window")
	rootCmd.Flags().Float64Var(&fps, "fps", 30, "producer frame rate")
	rootCmd.Flags().StringVar(&sizeFlag, "size", "640x480", "frame size WIDTHxHEIGHT")
	rootCmd.Flags().IntVar(&frameLimit, "frames", 0, "stop after this many frames (0 = run until interrupted)")
	rootCmd.Flags().BoolVar(&jsonLogs, "json", false, "JSON log output")
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// player carries everything a run mode needs.
type player struct {
	log     *zap.SugaredLogger
	cfg     framesink.Config
	present framesink.PresentationConfig
	v       *viper.Viper
	width   int
	height  int
	fps     float64
	frames  int
}

func runPlay(cmd *cobra.Command, _ []string) error {
	width, height, err := parseSize(sizeFlag)
	if err != nil {
		return err
	}
	if fps <= 0 {
		return errors.WithHint(errors.Newf("invalid --fps %v", fps), "use a positive frame rate")
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	zl, err := newLogger(jsonLogs, verbosity)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer func() { _ = zl.Sync() }()

	v, err := framesink.NewViper(configPath)
	if err != nil {
		return err
	}
	cfg, err := framesink.LoadConfig(v)
	if err != nil {
		return err
	}
	cfg.Logger = zl
	present, err := framesink.LoadPresentation(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &player{
		log:     zl.Named("sinkplay").Sugar(),
		cfg:     cfg,
		present: present,
		v:       v,
		width:   width,
		height:  height,
		fps:     fps,
		frames:  frameLimit,
	}
	app.log.Infow("starting",
		"size", sizeFlag,
		"fps", fps,
		"headless", headless,
		"config", v.ConfigFileUsed())

	if headless {
		return runHeadless(ctx, app)
	}
	return runWindow(ctx, app)
}

func newLogger(json bool, verbosity int) (*zap.Logger, error) {
	level := zap.InfoLevel
	if verbosity > 0 {
		level = zap.DebugLevel
	}
	if json {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		return config.Build()
	}
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.DisableStacktrace = true
	return config.Build()
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, errors.Newf("invalid --size %q, want WIDTHxHEIGHT", s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, errors.Newf("invalid --size %q, want WIDTHxHEIGHT", s)
	}
	return w, h, nil
}
