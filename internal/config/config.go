package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is the resolved daemon configuration.
type Config struct {
	Structure string `validate:"required"`
	Settings  string
	Server    ServerConfig
	Plugins   PluginsConfig
	Badger    BadgerConfig
	Engine    EngineConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Host        string
	Port        int           `validate:"gte=0,lte=65535"`
	ReadTimeout time.Duration `validate:"gte=0"`
}

type PluginsConfig struct {
	Folder string
	Names  []string `validate:"dive,required"`
}

type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

type EngineConfig struct {
	TuningAllowed bool
	AutoSync      bool
}

// AdminConfig holds the HTTP admin endpoint address; empty disables it.
type AdminConfig struct {
	Addr string `validate:"omitempty,hostname_port"`
}

func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 5000, ReadTimeout: 5 * time.Minute},
		Plugins: PluginsConfig{Names: []string{"Memory"}},
		Badger:  BadgerConfig{Path: "paramctl.db", SyncWrites: true},
		Engine:  EngineConfig{TuningAllowed: true, AutoSync: true},
	}
}

type fileConfig struct {
	Structure string `toml:"structure"`
	Settings  string `toml:"settings"`
	Server    struct {
		Host        string `toml:"host"`
		Port        int    `toml:"port"`
		ReadTimeout string `toml:"read_timeout"`
	} `toml:"server"`
	Plugins struct {
		Folder string   `toml:"folder"`
		Names  []string `toml:"names"`
	} `toml:"plugins"`
	Badger struct {
		Path       string `toml:"path"`
		InMemory   bool   `toml:"in_memory"`
		SyncWrites bool   `toml:"sync_writes"`
	} `toml:"badger"`
	Engine struct {
		TuningAllowed bool `toml:"tuning_allowed"`
		AutoSync      bool `toml:"auto_sync"`
	} `toml:"engine"`
	Admin struct {
		Addr string `toml:"addr"`
	} `toml:"admin"`
}

// envOverrides are applied after the file; only variables that are set
// take effect.
type envOverrides struct {
	Structure  *string  `env:"PARAMCTL_STRUCTURE"`
	Settings   *string  `env:"PARAMCTL_SETTINGS"`
	Port       *int     `env:"PARAMCTL_SERVER_PORT"`
	Plugins    []string `env:"PARAMCTL_PLUGINS" envSeparator:","`
	BadgerPath *string  `env:"PARAMCTL_BADGER_PATH"`
	AdminAddr  *string  `env:"PARAMCTL_ADMIN_ADDR"`
}

var validate = validator.New()

// Load reads path over DefaultConfig, applies environment overrides and
// validates the result. Relative structure, settings and badger paths are
// resolved against the directory of path.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("structure") {
		cfg.Structure = strings.TrimSpace(raw.Structure)
	}
	if meta.IsDefined("settings") {
		cfg.Settings = strings.TrimSpace(raw.Settings)
	}
	if meta.IsDefined("server", "host") {
		cfg.Server.Host = strings.TrimSpace(raw.Server.Host)
	}
	if meta.IsDefined("server", "port") {
		cfg.Server.Port = raw.Server.Port
	}
	if meta.IsDefined("server", "read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Server.ReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse server.read_timeout: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}
	if meta.IsDefined("plugins", "folder") {
		cfg.Plugins.Folder = strings.TrimSpace(raw.Plugins.Folder)
	}
	if meta.IsDefined("plugins", "names") {
		cfg.Plugins.Names = normalizeNames(raw.Plugins.Names)
	}
	if meta.IsDefined("badger", "path") {
		cfg.Badger.Path = strings.TrimSpace(raw.Badger.Path)
	}
	if meta.IsDefined("badger", "in_memory") {
		cfg.Badger.InMemory = raw.Badger.InMemory
	}
	if meta.IsDefined("badger", "sync_writes") {
		cfg.Badger.SyncWrites = raw.Badger.SyncWrites
	}
	if meta.IsDefined("engine", "tuning_allowed") {
		cfg.Engine.TuningAllowed = raw.Engine.TuningAllowed
	}
	if meta.IsDefined("engine", "auto_sync") {
		cfg.Engine.AutoSync = raw.Engine.AutoSync
	}
	if meta.IsDefined("admin", "addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.Admin.Addr)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var over envOverrides
	if err := env.Parse(&over); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if over.Structure != nil {
		cfg.Structure = strings.TrimSpace(*over.Structure)
	}
	if over.Settings != nil {
		cfg.Settings = strings.TrimSpace(*over.Settings)
	}
	if over.Port != nil {
		cfg.Server.Port = *over.Port
	}
	if over.Plugins != nil {
		cfg.Plugins.Names = normalizeNames(over.Plugins)
	}
	if over.BadgerPath != nil {
		cfg.Badger.Path = strings.TrimSpace(*over.BadgerPath)
	}
	if over.AdminAddr != nil {
		cfg.Admin.Addr = strings.TrimSpace(*over.AdminAddr)
	}
	return nil
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Structure, &c.Settings, &c.Badger.Path, &c.Plugins.Folder} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate checks struct constraints plus the rules that span sections.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config invalid: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config invalid: %w", err)
	}
	if cfg.UsesBadger() && !cfg.Badger.InMemory && cfg.Badger.Path == "" {
		return fmt.Errorf("config invalid: badger.path required unless badger.in_memory")
	}
	return nil
}

// UsesBadger reports whether the Badger plugin is enabled.
func (c Config) UsesBadger() bool {
	for _, n := range c.Plugins.Names {
		if n == "Badger" {
			return true
		}
	}
	return false
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		v := strings.TrimSpace(n)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
