// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	appName        = "speech-to-text"
	configFileName = "config.json"
)

// Audio holds the capture format. The defaults match what the Whisper
// server expects: 16kHz mono int16 PCM.
type Audio struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	ChunkSize  int `json:"chunk_size"`
}

// Config is the resolved application configuration. It is constructed once
// at startup and never mutated by the core afterwards.
type Config struct {
	Hotkey            string `json:"hotkey"`
	APIURL            string `json:"api_url"`
	Audio             Audio  `json:"audio"`
	Language          string `json:"language,omitempty"`
	CopyToClipboard   bool   `json:"copy_to_clipboard"`
	AutoPaste         bool   `json:"auto_paste"`
	ShowNotifications bool   `json:"show_notifications"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	HealthIntervalSec int    `json:"health_interval_sec"`
	MinCaptureBytes   int    `json:"min_capture_bytes"`
}

// RequestTimeout returns the transcription request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// HealthInterval returns the interval between health probes.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSec) * time.Second
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotkey: "ctrl+shift+space",
		APIURL: "http://localhost:5000",
		Audio: Audio{
			SampleRate: 16000,
			Channels:   1,
			ChunkSize:  1024,
		},
		CopyToClipboard:   true,
		AutoPaste:         false,
		ShowNotifications: true,
		RequestTimeoutSec: 60,
		HealthIntervalSec: 10,
		MinCaptureBytes:   1000,
	}
}

// fileConfig mirrors Config with optional fields so that a user file only
// overrides what it actually sets.
type fileConfig struct {
	Hotkey            *string `json:"hotkey"`
	APIURL            *string `json:"api_url"`
	Audio             *struct {
		SampleRate *int `json:"sample_rate"`
		Channels   *int `json:"channels"`
		ChunkSize  *int `json:"chunk_size"`
	} `json:"audio"`
	Language          *string `json:"language"`
	CopyToClipboard   *bool   `json:"copy_to_clipboard"`
	AutoPaste         *bool   `json:"auto_paste"`
	ShowNotifications *bool   `json:"show_notifications"`
	RequestTimeoutSec *int    `json:"request_timeout_sec"`
	HealthIntervalSec *int    `json:"health_interval_sec"`
	MinCaptureBytes   *int    `json:"min_capture_bytes"`
}

// Load loads configuration from the config file, merged over the defaults.
// Returns the defaults if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from an explicit path, merged over the
// defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := merge(Default(), &fc)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// merge overlays the user file onto the defaults, producing a new value.
// Neither input is mutated.
func merge(base *Config, fc *fileConfig) *Config {
	cfg := *base
	if fc.Hotkey != nil {
		cfg.Hotkey = *fc.Hotkey
	}
	if fc.APIURL != nil {
		cfg.APIURL = *fc.APIURL
	}
	if fc.Audio != nil {
		if fc.Audio.SampleRate != nil {
			cfg.Audio.SampleRate = *fc.Audio.SampleRate
		}
		if fc.Audio.Channels != nil {
			cfg.Audio.Channels = *fc.Audio.Channels
		}
		if fc.Audio.ChunkSize != nil {
			cfg.Audio.ChunkSize = *fc.Audio.ChunkSize
		}
	}
	if fc.Language != nil {
		cfg.Language = *fc.Language
	}
	if fc.CopyToClipboard != nil {
		cfg.CopyToClipboard = *fc.CopyToClipboard
	}
	if fc.AutoPaste != nil {
		cfg.AutoPaste = *fc.AutoPaste
	}
	if fc.ShowNotifications != nil {
		cfg.ShowNotifications = *fc.ShowNotifications
	}
	if fc.RequestTimeoutSec != nil {
		cfg.RequestTimeoutSec = *fc.RequestTimeoutSec
	}
	if fc.HealthIntervalSec != nil {
		cfg.HealthIntervalSec = *fc.HealthIntervalSec
	}
	if fc.MinCaptureBytes != nil {
		cfg.MinCaptureBytes = *fc.MinCaptureBytes
	}
	return &cfg
}

func (c *Config) validate() error {
	if c.Hotkey == "" {
		return fmt.Errorf("hotkey required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("api url required")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Audio.Channels)
	}
	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Audio.ChunkSize)
	}
	if c.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSec)
	}
	if c.HealthIntervalSec <= 0 {
		return fmt.Errorf("health interval must be positive, got %d", c.HealthIntervalSec)
	}
	return nil
}

// Save persists the configuration to the default config file.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveFile(path)
}

// SaveFile persists the configuration to an explicit path, creating the
// parent directory if needed.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}
