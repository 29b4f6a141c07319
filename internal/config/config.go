// Package config loads and validates the display encoder's runtime
// configuration: screen geometry, codec tuning, and the diagnostics
// endpoint, layered from defaults, an optional config file, and
// environment variables via viper.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/tenclass/sweet-encoder/internal/codec"
	"github.com/tenclass/sweet-encoder/internal/screen"
)

// ScreenConfig mirrors screen.Descriptor in a form viper can decode.
type ScreenConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
	Bpp    int `mapstructure:"bpp" yaml:"bpp"`
	Stride int `mapstructure:"stride" yaml:"stride"`
}

// CodecConfig mirrors codec.StreamConfig in a form viper can decode.
type CodecConfig struct {
	Preset       string `mapstructure:"preset" yaml:"preset"`
	Profile      string `mapstructure:"profile" yaml:"profile"`
	CRF          int    `mapstructure:"crf" yaml:"crf"`
	BitrateBps   int    `mapstructure:"bitrate_bps" yaml:"bitrate_bps"`
	FPS          int    `mapstructure:"fps" yaml:"fps"`
	Threads      int    `mapstructure:"threads" yaml:"threads"`
	FastDecode   bool   `mapstructure:"fast_decode" yaml:"fast_decode"`
	Cabac        bool   `mapstructure:"cabac" yaml:"cabac"`
	ExtendedRefs bool   `mapstructure:"extended_refs" yaml:"extended_refs"`
}

// StatusAPIConfig configures the diagnostics-only HTTP/WebSocket endpoint.
type StatusAPIConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Config is the full application configuration.
type Config struct {
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool            `mapstructure:"log_pretty" yaml:"log_pretty"`
	Screen    ScreenConfig    `mapstructure:"screen" yaml:"screen"`
	Codec     CodecConfig     `mapstructure:"codec" yaml:"codec"`
	StatusAPI StatusAPIConfig `mapstructure:"status_api" yaml:"status_api"`
	Replay    string          `mapstructure:"replay" yaml:"replay"`
	Record    string          `mapstructure:"record" yaml:"record"`
}

// ScreenDescriptor converts the configured screen geometry into the type
// the pipeline expects.
func (c Config) ScreenDescriptor() screen.Descriptor {
	return screen.Descriptor{
		Width:  c.Screen.Width,
		Height: c.Screen.Height,
		Bpp:    c.Screen.Bpp,
		Stride: c.Screen.Stride,
	}
}

// StreamConfig converts the configured codec tuning into the type the
// codec adapter expects.
func (c Config) StreamConfig() codec.StreamConfig {
	var flags codec.Flags
	if c.Codec.FastDecode {
		flags |= codec.FlagFastDecode
	}
	if c.Codec.Cabac {
		flags |= codec.FlagArithmeticEntropy
	}
	if c.Codec.ExtendedRefs {
		flags |= codec.FlagExtendedRefs
	}
	return codec.StreamConfig{
		Preset:     c.Codec.Preset,
		Profile:    c.Codec.Profile,
		CRF:        c.Codec.CRF,
		BitrateBps: c.Codec.BitrateBps,
		FPS:        c.Codec.FPS,
		Threads:    c.Codec.Threads,
		Flags:      flags,
	}
}

// Manager owns a viper instance and the decoded Config.
type Manager struct {
	v      *viper.Viper
	config Config
}

// NewManager builds a Manager layering, in increasing priority: built-in
// defaults, an optional config file, then SWEET_-prefixed environment
// variables. configFile may be empty to use defaults and env only.
func NewManager(configFile string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("sweet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: failed to read %s", configFile)
		}
	}

	m := &Manager{v: v}
	if err := v.Unmarshal(&m.config); err != nil {
		return nil, errors.Wrap(err, "config: failed to decode")
	}

	if err := m.config.ScreenDescriptor().Validate(); err != nil {
		return nil, errors.Wrap(err, "config: invalid screen geometry")
	}
	if err := m.config.StreamConfig().Validate(); err != nil {
		return nil, errors.Wrap(err, "config: invalid codec settings")
	}

	return m, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)

	v.SetDefault("screen.width", 1920)
	v.SetDefault("screen.height", 1080)
	v.SetDefault("screen.bpp", 32)
	v.SetDefault("screen.stride", 1920*4)

	v.SetDefault("codec.preset", "veryfast")
	v.SetDefault("codec.profile", "high")
	v.SetDefault("codec.crf", 23)
	v.SetDefault("codec.bitrate_bps", 4_000_000)
	v.SetDefault("codec.fps", 30)
	v.SetDefault("codec.threads", 4)
	v.SetDefault("codec.fast_decode", false)
	v.SetDefault("codec.cabac", true)
	v.SetDefault("codec.extended_refs", false)

	v.SetDefault("status_api.enabled", true)
	v.SetDefault("status_api.addr", ":8090")
}

// Get returns the decoded configuration.
func (m *Manager) Get() Config {
	return m.config
}

// Viper exposes the underlying instance. The Config returned by Get is
// decoded once in NewManager; values set on the instance afterwards do not
// change it.
func (m *Manager) Viper() *viper.Viper {
	return m.v
}
