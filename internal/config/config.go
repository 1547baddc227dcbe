// Package config loads plate-gate settings.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// YAML/JSON/TOML file, a .env file in the working directory, and PLATEGATE_*
// environment variables. Nested keys map to environment names by replacing
// dots with underscores, so tuning.min_win_count is PLATEGATE_TUNING_MIN_WIN_COUNT.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ironsheep/plate-gate/internal/gate"
	"github.com/ironsheep/plate-gate/internal/imaging"
	"github.com/ironsheep/plate-gate/internal/ocr"
	"github.com/ironsheep/plate-gate/internal/sampler"
	"github.com/ironsheep/plate-gate/internal/session"
	"github.com/ironsheep/plate-gate/internal/stabilize"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLATEGATE"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the application configuration.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	DefaultGateIn  int           `mapstructure:"default_gate_in"`
	DefaultGateOut int           `mapstructure:"default_gate_out"`
	AutoSubmit     bool          `mapstructure:"auto_submit"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`

	Log    Log    `mapstructure:"log"`
	Tuning Tuning `mapstructure:"tuning"`
}

// Log configures the root logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Tuning holds the recognition pipeline constants.
type Tuning struct {
	RecognizeInterval time.Duration  `mapstructure:"recognize_interval"`
	ForwardInterval   time.Duration  `mapstructure:"forward_interval"`
	BufferCapacity    int            `mapstructure:"buffer_capacity"`
	MinWinCount       int            `mapstructure:"min_win_count"`
	SubmitThrottle    time.Duration  `mapstructure:"submit_throttle"`
	Cooldown          time.Duration  `mapstructure:"cooldown"`
	ROI               imaging.Region `mapstructure:"roi"`
	MinTextHeight     float64        `mapstructure:"min_text_height"`
	MinEdgeDensity    float64        `mapstructure:"min_edge_density"`
	OCRLanguage       string         `mapstructure:"ocr_language"`
	OCRWhitelist      string         `mapstructure:"ocr_whitelist"`
	TessdataPrefix    string         `mapstructure:"tessdata_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://127.0.0.1:8080")
	v.SetDefault("default_gate_in", gate.DefaultGateIn)
	v.SetDefault("default_gate_out", gate.DefaultGateOut)
	v.SetDefault("auto_submit", true)
	v.SetDefault("http_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("tuning.recognize_interval", sampler.DefaultInterval.String())
	v.SetDefault("tuning.forward_interval", session.DefaultForwardInterval.String())
	v.SetDefault("tuning.buffer_capacity", stabilize.DefaultCapacity)
	v.SetDefault("tuning.min_win_count", gate.DefaultMinWinCount)
	v.SetDefault("tuning.submit_throttle", gate.DefaultThrottle.String())
	v.SetDefault("tuning.cooldown", session.DefaultCooldown.String())
	v.SetDefault("tuning.roi.x", imaging.DefaultPlateRegion.X)
	v.SetDefault("tuning.roi.y", imaging.DefaultPlateRegion.Y)
	v.SetDefault("tuning.roi.w", imaging.DefaultPlateRegion.W)
	v.SetDefault("tuning.roi.h", imaging.DefaultPlateRegion.H)
	v.SetDefault("tuning.min_text_height", ocr.DefaultMinTextHeight)
	v.SetDefault("tuning.min_edge_density", 0.0)
	v.SetDefault("tuning.ocr_language", ocr.DefaultLanguage)
	v.SetDefault("tuning.ocr_whitelist", ocr.DefaultWhitelist)
	v.SetDefault("tuning.tessdata_prefix", "")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads the configuration. path names an optional config file; an empty
// path skips it. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := load(v, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		bad("base_url %q must be an http(s) URL", c.BaseURL)
	}
	if c.DefaultGateIn <= 0 {
		bad("default_gate_in must be positive, got %d", c.DefaultGateIn)
	}
	if c.DefaultGateOut <= 0 {
		bad("default_gate_out must be positive, got %d", c.DefaultGateOut)
	}
	if c.HTTPTimeout <= 0 {
		bad("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		bad("log.level %q: %v", c.Log.Level, err)
	}

	t := c.Tuning
	if t.RecognizeInterval <= 0 || t.ForwardInterval <= 0 || t.SubmitThrottle <= 0 || t.Cooldown <= 0 {
		bad("tuning intervals must be positive")
	}
	if t.BufferCapacity <= 0 {
		bad("tuning.buffer_capacity must be positive, got %d", t.BufferCapacity)
	}
	if t.MinWinCount <= 0 || t.MinWinCount > t.BufferCapacity {
		bad("tuning.min_win_count must be in [1, %d], got %d", t.BufferCapacity, t.MinWinCount)
	}
	if err := t.ROI.Validate(); err != nil {
		bad("tuning.roi: %v", err)
	}
	if t.MinTextHeight < 0 || t.MinTextHeight >= 1 {
		bad("tuning.min_text_height must be in [0, 1), got %g", t.MinTextHeight)
	}
	if t.MinEdgeDensity < 0 || t.MinEdgeDensity > 1 {
		bad("tuning.min_edge_density must be in [0, 1], got %g", t.MinEdgeDensity)
	}
	if t.OCRLanguage == "" {
		bad("tuning.ocr_language is required")
	}

	return errors.Join(errs...)
}

// GateFor returns the configured default gate for mode.
func (c *Config) GateFor(mode gate.Mode) int {
	if mode == gate.ModeOut {
		return c.DefaultGateOut
	}
	return c.DefaultGateIn
}

// Session builds the per-session settings for mode.
func (c *Config) Session(mode gate.Mode) session.Config {
	return session.Config{
		Mode:              mode,
		GateID:            c.GateFor(mode),
		AutoSubmit:        c.AutoSubmit,
		RecognizeInterval: c.Tuning.RecognizeInterval,
		ForwardInterval:   c.Tuning.ForwardInterval,
		BufferCapacity:    c.Tuning.BufferCapacity,
		MinWinCount:       c.Tuning.MinWinCount,
		SubmitThrottle:    c.Tuning.SubmitThrottle,
		Cooldown:          c.Tuning.Cooldown,
	}
}

// Extractor builds the text extractor settings.
func (c *Config) Extractor() ocr.ExtractorOptions {
	opts := ocr.DefaultExtractorOptions()
	opts.Region = c.Tuning.ROI
	opts.MinTextHeight = c.Tuning.MinTextHeight
	opts.MinEdgeDensity = c.Tuning.MinEdgeDensity
	return opts
}

// Recognizer builds the Tesseract settings.
func (c *Config) Recognizer() ocr.Options {
	return ocr.Options{
		Language:       c.Tuning.OCRLanguage,
		Whitelist:      c.Tuning.OCRWhitelist,
		TessdataPrefix: c.Tuning.TessdataPrefix,
	}
}
