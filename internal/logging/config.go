package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "PARAMCTL_LOG_LEVEL"
	EnvLogTimestamp = "PARAMCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "PARAMCTL_LOG_NOCOLOR"
	EnvLogJSON      = "PARAMCTL_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	JSON      bool
	Out       io.Writer
}

// envOverrides mirrors Config for variables that were actually set.
type envOverrides struct {
	Level     string `env:"PARAMCTL_LOG_LEVEL"`
	Timestamp *bool  `env:"PARAMCTL_LOG_TIMESTAMP"`
	NoColor   *bool  `env:"PARAMCTL_LOG_NOCOLOR"`
	JSON      *bool  `env:"PARAMCTL_LOG_JSON"`
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global logger once per process.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		applyEnvOverrides(&cfg)
		Apply(cfg)
	})
}

func DefaultConfig(profile Profile) Config {
	cfg := Config{Out: os.Stderr}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
		cfg.NoColor = true
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

// Apply replaces the global zerolog logger with one built from cfg.
func Apply(cfg Config) zerolog.Logger {
	logger := New(cfg)
	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = logger
	return logger
}

// New builds a logger without touching global state.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Str("app", "paramctl").Logger()
}

// SetLevel parses raw and applies it globally; unknown levels are ignored.
func SetLevel(raw string) bool {
	lvl, ok := ParseLevel(raw)
	if !ok {
		return false
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
	return true
}

func applyEnvOverrides(cfg *Config) {
	var over envOverrides
	if err := env.Parse(&over); err != nil {
		return
	}
	if lvl, ok := ParseLevel(over.Level); ok {
		cfg.Level = lvl
	}
	if over.Timestamp != nil {
		cfg.Timestamp = *over.Timestamp
	}
	if over.NoColor != nil {
		cfg.NoColor = *over.NoColor
	}
	if over.JSON != nil {
		cfg.JSON = *over.JSON
	}
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
