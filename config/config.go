// Package config loads the loader's own settings: logging, the activation
// gesture, the overlay plugin and extra offset tables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/practicetool/practiceloader/gate"
	"github.com/practicetool/practiceloader/overlay"
	"github.com/practicetool/practiceloader/proxy"
)

const (
	FileName = "practiceloader.yaml"

	EnvPath     = "PRACTICELOADER_CONFIG"
	EnvLogLevel = "PRACTICELOADER_LOG_LEVEL"
)

type Config struct {
	Log     Log     `yaml:"log"`
	Gate    Gate    `yaml:"gate"`
	Overlay Overlay `yaml:"overlay"`
	Offsets Offsets `yaml:"offsets"`
	Proxy   Proxy   `yaml:"proxy"`

	// Path is the file the config was read from, or would have been.
	Path string `yaml:"-"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Gate struct {
	Key      uint8         `yaml:"key"`
	Window   time.Duration `yaml:"window"`
	Hold     time.Duration `yaml:"hold"`
	Interval time.Duration `yaml:"interval"`
}

type Overlay struct {
	Library string `yaml:"library"`
	Export  string `yaml:"export"`
}

type Offsets struct {
	File string `yaml:"file"`
}

type Proxy struct {
	Library string `yaml:"library"`
	Export  string `yaml:"export"`
}

func Default() Config {
	return Config{
		Log: Log{Level: "info", File: "practiceloader.log"},
		Gate: Gate{
			Key:      gate.VKRShift,
			Window:   gate.DefaultWindow,
			Hold:     gate.DefaultHold,
			Interval: gate.DefaultInterval,
		},
		Overlay: Overlay{Library: overlay.DefaultLibrary, Export: overlay.DefaultExport},
		Proxy:   Proxy{Library: proxy.DefaultLibrary, Export: proxy.DefaultExport},
	}
}

// PathFor returns the config location for a module living in dir, honouring
// PRACTICELOADER_CONFIG.
func PathFor(dir string) string {
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return filepath.Join(dir, FileName)
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.Path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			def := Default()
			def.Path = path
			return def, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		cfg.Log.Level = env
	}
	if err := cfg.Validate(); err != nil {
		def := Default()
		def.Path = path
		return def, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	g := c.Gate
	switch {
	case g.Window <= 0 || g.Hold <= 0 || g.Interval <= 0:
		return errors.New("config: gate durations must be positive")
	case g.Hold > g.Window:
		return fmt.Errorf("config: gate hold %s exceeds window %s", g.Hold, g.Window)
	case g.Key == 0:
		return errors.New("config: gate key must be a virtual key code")
	case c.Proxy.Library == "" || c.Proxy.Export == "":
		return errors.New("config: proxy library and export are required")
	}
	return nil
}

// Resolve makes p absolute relative to the config file's directory.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), p)
}
