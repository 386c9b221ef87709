package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// AudioConfig describes the capture/playback format.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int `mapstructure:"channels" yaml:"channels"`
	BitDepth   int `mapstructure:"bit_depth" yaml:"bit_depth"`

	// ProgressTickMillis is the cadence of elapsed-time and playback-position
	// updates delivered to subscribers.
	ProgressTickMillis int `mapstructure:"progress_tick_millis" yaml:"progress_tick_millis"`
}

// StorageConfig describes where clips are persisted.
type StorageConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Extension string `mapstructure:"extension" yaml:"extension"` // without leading dot
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate:         44100,
		Channels:           2,
		BitDepth:           16,
		ProgressTickMillis: 100,
	},
	Storage: StorageConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Recordings"),
		Extension: "wav",
	},
}

// Default returns a copy of the built-in default configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// Load reads the configuration file at path. A missing file is not an error:
// the defaults are returned so the tool works out of the box.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("audio.sample_rate", defaultConfig.Audio.SampleRate)
	v.SetDefault("audio.channels", defaultConfig.Audio.Channels)
	v.SetDefault("audio.bit_depth", defaultConfig.Audio.BitDepth)
	v.SetDefault("audio.progress_tick_millis", defaultConfig.Audio.ProgressTickMillis)
	v.SetDefault("storage.directory", defaultConfig.Storage.Directory)
	v.SetDefault("storage.extension", defaultConfig.Storage.Extension)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Storage.Directory = expandPath(cfg.Storage.Directory)
	cfg.Storage.Extension = strings.TrimPrefix(cfg.Storage.Extension, ".")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the audio subsystem cannot use.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("invalid channel count: %d (must be 1 or 2)", c.Audio.Channels)
	}
	if c.Audio.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit PCM is supported)", c.Audio.BitDepth)
	}
	if c.Audio.ProgressTickMillis <= 0 {
		return fmt.Errorf("invalid progress tick interval: %dms", c.Audio.ProgressTickMillis)
	}
	if c.Storage.Directory == "" {
		return fmt.Errorf("storage directory is required")
	}
	if c.Storage.Extension == "" {
		return fmt.Errorf("clip extension is required")
	}
	return nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProgressTick returns the update cadence as a duration.
func (c *Config) ProgressTick() time.Duration {
	return time.Duration(c.Audio.ProgressTickMillis) * time.Millisecond
}

// expandPath expands a leading tilde to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
