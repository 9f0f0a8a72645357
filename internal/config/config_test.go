package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Timeout.Duration != 60*time.Second {
		t.Errorf("default timeout = %s, want 1m0s", cfg.Timeout)
	}
	if cfg.ShortIO.Endpoint != "https://api.short.io/links" {
		t.Errorf("default shortio endpoint = %q", cfg.ShortIO.Endpoint)
	}
	if cfg.WeTransfer.ChunkSize != 5*1024*1024 {
		t.Errorf("default chunk size = %d, want 5 MiB", cfg.WeTransfer.ChunkSize)
	}
	if cfg.YouTube.ExtractorArgs != "youtube:player_client=mediaconnect" {
		t.Errorf("default extractor args = %q", cfg.YouTube.ExtractorArgs)
	}
	if cfg.Handshake {
		t.Error("handshake should be off by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"zero timeout", func(c *Config) { c.Timeout.Duration = 0 }, true},
		{"socks proxy", func(c *Config) { c.Proxy = "socks5://127.0.0.1:9050" }, false},
		{"http proxy", func(c *Config) { c.Proxy = "http://proxy:3128" }, false},
		{"ftp proxy", func(c *Config) { c.Proxy = "ftp://proxy:21" }, true},
		{"bad resize method", func(c *Config) { c.Tinify.ResizeMethod = "stretch" }, true},
		{"resize without size", func(c *Config) { c.Tinify.ResizeMethod = "fit" }, true},
		{"resize fit", func(c *Config) { c.Tinify.ResizeMethod = "fit"; c.Tinify.ResizeWidth = 150 }, false},
		{"preserve copyright", func(c *Config) { c.Tinify.Preserve = []string{"copyright"} }, false},
		{"preserve unknown", func(c *Config) { c.Tinify.Preserve = []string{"exif"} }, true},
		{"zero chunk", func(c *Config) { c.WeTransfer.ChunkSize = 0 }, true},
		{"empty endpoint", func(c *Config) { c.Tinify.Endpoint = "" }, true},
		{"empty format", func(c *Config) { c.YouTube.Format = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	appDir := filepath.Join(tmpDir, "dzactions")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatal(err)
	}

	content := `
debug = true
timeout = "15s"

[tinify]
resize_method = "scale"
resize_width = 800

[youtube]
auto_update = false

[ftpes]
timeout = "5s"
`
	if err := os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Timeout.Duration != 15*time.Second {
		t.Errorf("timeout = %s, want 15s", cfg.Timeout)
	}
	if cfg.Tinify.ResizeMethod != "scale" || cfg.Tinify.ResizeWidth != 800 {
		t.Errorf("tinify resize = %q/%d", cfg.Tinify.ResizeMethod, cfg.Tinify.ResizeWidth)
	}
	if cfg.YouTube.AutoUpdate {
		t.Error("auto_update should be false")
	}
	if cfg.FTPES.Timeout.Duration != 5*time.Second {
		t.Errorf("ftpes timeout = %s, want 5s", cfg.FTPES.Timeout)
	}
	// Untouched sections keep their defaults.
	if cfg.WeTransfer.BaseURL != "https://wetransfer.com" {
		t.Errorf("wetransfer base = %q", cfg.WeTransfer.BaseURL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	appDir := filepath.Join(tmpDir, "dzactions")
	os.MkdirAll(appDir, 0755)
	os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(`timeout = "soon"`), 0644)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a malformed duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.Tinify.Endpoint != "https://api.tinify.com" {
		t.Errorf("missing file should return defaults, got endpoint = %q", cfg.Tinify.Endpoint)
	}
}

func TestSessionPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	got, err := cfg.SessionPath()
	if err != nil {
		t.Fatalf("SessionPath() error: %v", err)
	}
	if want := filepath.Join(tmpDir, "dzactions", "instagram.session"); got != want {
		t.Errorf("SessionPath() = %q, want %q", got, want)
	}

	cfg.Instagram.SessionFile = "/custom/session"
	if got, _ := cfg.SessionPath(); got != "/custom/session" {
		t.Errorf("SessionPath() with session_file = %q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	vars := map[string]string{
		"username":      "ak",
		"password":      "sk",
		"server":        "bucket",
		"root_url":      "cdn.example.com",
		"EXTRA_PATH":    "/Users/me/Movies",
		"convert_h264":  "1",
		"apple_silicon": "",
		"sandboxed":     "0",
		"KEY_MODIFIERS": "Shift,Command",
	}
	env := LoadEnv(lookupIn(vars))

	if env.Username != "ak" || env.Password != "sk" || env.Server != "bucket" {
		t.Errorf("credentials = %q/%q/%q", env.Username, env.Password, env.Server)
	}
	if env.ExtraPath != "/Users/me/Movies" {
		t.Errorf("extra path = %q", env.ExtraPath)
	}
	if !env.ConvertH264 || !env.AppleSilicon || !env.Sandboxed || env.AudioOnly {
		t.Errorf("flags = %v/%v/%v", env.ConvertH264, env.AppleSilicon, env.Sandboxed)
	}
	if !env.HasModifier("shift") {
		t.Error("shift modifier should be detected")
	}
	if env.HasModifier("Option") {
		t.Error("option modifier should not be detected")
	}
}

func lookupIn(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoadEnvMarkersAbsent(t *testing.T) {
	env := LoadEnv(lookupIn(map[string]string{"convert_h264": "0"}))
	if env.ConvertH264 || env.AppleSilicon || env.Sandboxed {
		t.Errorf("flags = %v/%v/%v, want all unset", env.ConvertH264, env.AppleSilicon, env.Sandboxed)
	}
}

func TestTempFolder(t *testing.T) {
	env := &Env{SupportFolder: t.TempDir()}

	dir, err := env.TempFolder()
	if err != nil {
		t.Fatalf("TempFolder() error: %v", err)
	}
	if filepath.Base(dir) != "Temp" {
		t.Errorf("got %q, want .../Temp", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("temp folder not created: %v", err)
	}
}
