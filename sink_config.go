package framesink

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DEFAULT_SLOT_CAPACITY = 20
	DEFAULT_BACKPRESSURE  = 10
	DEFAULT_QUEUE_DEPTH   = 64
)

// Config tunes a Sink. Backpressure <= 0 disables the soft threshold and
// leaves only the hard slot capacity.
type Config struct {
	Capacity     int         `mapstructure:"capacity"`
	Backpressure int         `mapstructure:"backpressure"`
	QueueDepth   int         `mapstructure:"queue_depth"`
	Logger       *zap.Logger `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Capacity:     DEFAULT_SLOT_CAPACITY,
		Backpressure: DEFAULT_BACKPRESSURE,
		QueueDepth:   DEFAULT_QUEUE_DEPTH,
	}
}

func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return invalidArgf("capacity must be positive, got %d", c.Capacity)
	}
	if c.QueueDepth <= 0 {
		return invalidArgf("queue depth must be positive, got %d", c.QueueDepth)
	}
	if c.Backpressure >= c.Capacity {
		return errors.WithHint(
			invalidArgf("backpressure %d must be below capacity %d", c.Backpressure, c.Capacity),
			"set backpressure to 0 to rely on capacity alone")
	}
	return nil
}

// PresentationConfig is the initial (or hot-reloaded) presentation state, in
// the textual form used by config files.
type PresentationConfig struct {
	Visible  bool   `mapstructure:"visible"`
	Rotation int    `mapstructure:"rotation"`
	Flip     string `mapstructure:"flip"`
	Mode     string `mapstructure:"mode"`
	ROI      Rect   `mapstructure:"roi"`
}

// Apply pushes every setting to s. The ROI is applied before the mode so a
// switch to custom-region never sees a stale region.
func (p PresentationConfig) Apply(s *Sink) error {
	flip, err := ParseFlip(p.Flip)
	if err != nil {
		return err
	}
	mode, err := ParseGeometryMode(p.Mode)
	if err != nil {
		return err
	}
	if !p.ROI.Empty() {
		if err := s.SetROI(p.ROI); err != nil {
			return err
		}
	}
	if err := s.SetRotation(Rotation(p.Rotation)); err != nil {
		return err
	}
	if err := s.SetFlip(flip); err != nil {
		return err
	}
	if err := s.SetGeometryMode(mode); err != nil {
		return err
	}
	return s.SetVisible(p.Visible)
}

// SetDefaults configures default values for all sink configuration keys
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sink.capacity", DEFAULT_SLOT_CAPACITY)
	v.SetDefault("sink.backpressure", DEFAULT_BACKPRESSURE)
	v.SetDefault("sink.queue_depth", DEFAULT_QUEUE_DEPTH)

	v.SetDefault("present.visible", true)
	v.SetDefault("present.rotation", 0)
	v.SetDefault("present.flip", FlipNone.String())
	v.SetDefault("present.mode", GeometryLetterbox.String())
}

// NewViper returns a viper instance with defaults and FRAMESINK_* environment
// overrides. configPath may be empty.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("FRAMESINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	}
	return v, nil
}

// fileConfig mirrors the config file layout. Unmarshal goes through
// AllSettings so defaults, file values and environment merge per leaf key.
type fileConfig struct {
	Sink    Config             `mapstructure:"sink"`
	Present PresentationConfig `mapstructure:"present"`
}

func unmarshalFile(v *viper.Viper) (fileConfig, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return fileConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return fc, nil
}

// LoadConfig reads the sink.* keys.
func LoadConfig(v *viper.Viper) (Config, error) {
	fc, err := unmarshalFile(v)
	if err != nil {
		return Config{}, err
	}
	if err := fc.Sink.Validate(); err != nil {
		return Config{}, err
	}
	return fc.Sink, nil
}

// LoadPresentation reads the present.* keys.
func LoadPresentation(v *viper.Viper) (PresentationConfig, error) {
	fc, err := unmarshalFile(v)
	if err != nil {
		return PresentationConfig{}, err
	}
	return fc.Present, nil
}
