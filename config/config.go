// Package config loads murmur's TOML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"murmur/hotkey"
	"murmur/model"
)

const DefaultModelName = "ggml-base.en.bin"

// Duration decodes TOML strings such as "400ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Hotkey HotkeyConfig `toml:"hotkey"`
	Audio  AudioConfig  `toml:"audio"`
	Model  ModelConfig  `toml:"model"`
	Output OutputConfig `toml:"output"`
}

type HotkeyConfig struct {
	Binding      string   `toml:"binding"`       // e.g. "ctrl+shift+space"
	TapThreshold Duration `toml:"tap_threshold"` // presses shorter than this lock recording on
}

type AudioConfig struct {
	Device string  `toml:"device"` // substring of the capture device name; empty means system default
	MinDB  float64 `toml:"min_db"` // level meter floor
	MaxDB  float64 `toml:"max_db"` // level meter ceiling
}

type ModelConfig struct {
	Name     string `toml:"name"`
	URL      string `toml:"url"` // defaults to model.BaseURL + Name
	Dir      string `toml:"dir"` // defaults to the user cache dir
	Language string `toml:"language"`
	SHA256   string `toml:"sha256"` // optional checksum of the downloaded file
}

type OutputConfig struct {
	AutoPaste  bool     `toml:"autopaste"`
	PasteDelay Duration `toml:"paste_delay"`
	KeepAudio  bool     `toml:"keep_audio"`
	ArchiveDir string   `toml:"archive_dir"`
}

func Default() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Binding:      hotkey.DefaultBinding.String(),
			TapThreshold: Duration{400 * time.Millisecond},
		},
		Audio: AudioConfig{MinDB: -60, MaxDB: 0},
		Model: ModelConfig{
			Name:     DefaultModelName,
			Language: "en",
		},
		Output: OutputConfig{
			AutoPaste:  true,
			PasteDelay: Duration{200 * time.Millisecond},
		},
	}
}

// DefaultPath is <UserConfigDir>/murmur/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "murmur", "config.toml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.resolve()
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.resolve()
		}
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve fills values derived from other fields.
func (c *Config) resolve() error {
	if c.Model.URL == "" {
		c.Model.URL = model.BaseURL + c.Model.Name
	}
	if c.Model.Dir == "" {
		c.Model.Dir = model.DefaultDir()
	}
	if c.Output.ArchiveDir == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.Output.ArchiveDir = filepath.Join(dir, "murmur-recordings")
	}
	return nil
}

// ModelPath is where the model file lives once downloaded.
func (c *Config) ModelPath() string {
	return filepath.Join(c.Model.Dir, c.Model.Name)
}

// Binding parses the configured hotkey.
func (c *Config) Binding() (hotkey.Binding, error) {
	return hotkey.ParseBinding(c.Hotkey.Binding)
}

func (c *Config) Validate() error {
	if _, err := c.Binding(); err != nil {
		return fmt.Errorf("hotkey.binding: %w", err)
	}
	if c.Hotkey.TapThreshold.Duration <= 0 {
		return fmt.Errorf("hotkey.tap_threshold must be positive, got %s", c.Hotkey.TapThreshold)
	}
	if c.Audio.MaxDB <= c.Audio.MinDB {
		return fmt.Errorf("audio.max_db (%g) must be above audio.min_db (%g)", c.Audio.MaxDB, c.Audio.MinDB)
	}
	if c.Output.PasteDelay.Duration < 0 {
		return errors.New("output.paste_delay must not be negative")
	}
	if c.Model.Name == "" || strings.ContainsAny(c.Model.Name, `/\`) {
		return fmt.Errorf("model.name must be a bare file name, got %q", c.Model.Name)
	}
	return nil
}
