// Package config handles TOML-based configuration loading and validation,
// plus the per-action settings Dropzone hands over through the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Debug     bool     `toml:"debug"`
	Handshake bool     `toml:"handshake"`
	Timeout   Duration `toml:"timeout"`
	Proxy     string   `toml:"proxy"`
	UserAgent string   `toml:"user_agent"`

	Tinify     Tinify     `toml:"tinify"`
	ShortIO    ShortIO    `toml:"shortio"`
	YouTube    YouTube    `toml:"youtube"`
	WeTransfer WeTransfer `toml:"wetransfer"`
	Instagram  Instagram  `toml:"instagram"`
	Qiniu      Qiniu      `toml:"qiniu"`
	FTPES      FTPES      `toml:"ftpes"`
}

// Tinify configures the image compression action.
type Tinify struct {
	Endpoint     string   `toml:"endpoint"`
	ResizeMethod string   `toml:"resize_method"`
	ResizeWidth  int      `toml:"resize_width"`
	ResizeHeight int      `toml:"resize_height"`
	Preserve     []string `toml:"preserve"`
}

// ShortIO configures the URL shortener action.
type ShortIO struct {
	Endpoint string `toml:"endpoint"`
}

// YouTube configures the video downloader action.
type YouTube struct {
	Format        string `toml:"format"`
	ExtractorArgs string `toml:"extractor_args"`
	FFmpeg        string `toml:"ffmpeg"`
	AutoUpdate    bool   `toml:"auto_update"`
	AudioFormat   string `toml:"audio_format"`
}

// WeTransfer configures the WeTransfer upload action.
type WeTransfer struct {
	BaseURL   string `toml:"base_url"`
	ChunkSize int64  `toml:"chunk_size"`
	Message   string `toml:"message"`
}

// Instagram configures the Instagram downloader action.
type Instagram struct {
	BaseURL     string `toml:"base_url"`
	SessionFile string `toml:"session_file"`
}

// Qiniu configures the Qiniu upload action.
type Qiniu struct {
	CheckCollision bool   `toml:"check_collision"`
	Pngpaste       string `toml:"pngpaste"`
}

// FTPES configures the FTPES upload action.
type FTPES struct {
	Timeout            Duration `toml:"timeout"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Timeout: Duration{60 * time.Second},
		Tinify: Tinify{
			Endpoint: "https://api.tinify.com",
		},
		ShortIO: ShortIO{
			Endpoint: "https://api.short.io/links",
		},
		YouTube: YouTube{
			Format:        "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
			ExtractorArgs: "youtube:player_client=mediaconnect",
			FFmpeg:        "ffmpeg",
			AutoUpdate:    true,
			AudioFormat:   "mp3",
		},
		WeTransfer: WeTransfer{
			BaseURL:   "https://wetransfer.com",
			ChunkSize: 5 * 1024 * 1024,
			Message:   "Shared with Dropzone 4",
		},
		Instagram: Instagram{
			BaseURL: "https://www.instagram.com",
		},
		Qiniu: Qiniu{
			Pngpaste: "pngpaste",
		},
		FTPES: FTPES{
			Timeout: Duration{30 * time.Second},
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dzactions"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dzactions"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SessionPath is where the Instagram session cookies are kept: the
// configured session_file, or instagram.session next to the config file.
func (c *Config) SessionPath() (string, error) {
	if c.Instagram.SessionFile != "" {
		return c.Instagram.SessionFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "instagram.session"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}

	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return fmt.Errorf("malformed proxy %q: %w", c.Proxy, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return fmt.Errorf("unsupported proxy scheme %q (valid: http, https, socks5)", u.Scheme)
		}
	}

	validResize := map[string]bool{
		"": true, "scale": true, "fit": true, "cover": true, "thumb": true,
	}
	if !validResize[strings.ToLower(c.Tinify.ResizeMethod)] {
		return fmt.Errorf("unsupported resize method %q (valid: scale, fit, cover, thumb)", c.Tinify.ResizeMethod)
	}
	if c.Tinify.ResizeMethod != "" && c.Tinify.ResizeWidth <= 0 && c.Tinify.ResizeHeight <= 0 {
		return fmt.Errorf("resize method %q needs resize_width or resize_height", c.Tinify.ResizeMethod)
	}

	validPreserve := map[string]bool{
		"copyright": true, "creation": true, "location": true,
	}
	for _, p := range c.Tinify.Preserve {
		if !validPreserve[strings.ToLower(p)] {
			return fmt.Errorf("unsupported preserve option %q (valid: copyright, creation, location)", p)
		}
	}

	if c.WeTransfer.ChunkSize <= 0 {
		return fmt.Errorf("wetransfer chunk_size must be positive, got %d", c.WeTransfer.ChunkSize)
	}

	for name, endpoint := range map[string]string{
		"tinify.endpoint":     c.Tinify.Endpoint,
		"shortio.endpoint":    c.ShortIO.Endpoint,
		"wetransfer.base_url": c.WeTransfer.BaseURL,
		"instagram.base_url":  c.Instagram.BaseURL,
	} {
		if endpoint == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}

	if c.YouTube.Format == "" {
		return fmt.Errorf("youtube format cannot be empty")
	}

	return nil
}
