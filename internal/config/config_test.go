package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SourceDirectory = t.TempDir()
	cfg.OutputDirectory = filepath.Join(t.TempDir(), "out")
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Resize.MaxWidth != 1200 {
		t.Errorf("Expected default max width 1200, got %d", cfg.Resize.MaxWidth)
	}
	if cfg.Resize.MaxSizeKB != 400 {
		t.Errorf("Expected default max size 400 KB, got %d", cfg.Resize.MaxSizeKB)
	}
	if cfg.Quality.Start != 85 || cfg.Quality.Floor != 10 || cfg.Quality.Step != 5 {
		t.Errorf("Unexpected default quality search: %+v", cfg.Quality)
	}
	if cfg.Resize.AutoOrient {
		t.Error("Expected auto_orient to default to false")
	}
	if cfg.Web.BrowseRoot != "." {
		t.Errorf("Expected browse root '.', got %s", cfg.Web.BrowseRoot)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfigFile(t, tmpDir, `
source_directory: /photos/in
output_directory: /photos/out
resize:
  prefix: karumari2024-canon
  max_width: 800
  max_size_kb: 250
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.SourceDirectory != "/photos/in" || cfg.OutputDirectory != "/photos/out" {
		t.Errorf("Unexpected directories: %s, %s", cfg.SourceDirectory, cfg.OutputDirectory)
	}
	if cfg.Resize.Prefix != "karumari2024-canon" {
		t.Errorf("Expected prefix from file, got %s", cfg.Resize.Prefix)
	}
	if cfg.Resize.MaxWidth != 800 || cfg.Resize.MaxSizeKB != 250 {
		t.Errorf("Unexpected resize config: %+v", cfg.Resize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
	// Unset keys keep their defaults
	if cfg.Quality.Start != 85 {
		t.Errorf("Expected default start quality, got %d", cfg.Quality.Start)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfigFile(t, tmpDir, "resize:\n  max_width: 800\n")
	t.Setenv("PHOTO_RESIZER_RESIZE_MAX_WIDTH", "640")
	t.Setenv("PHOTO_RESIZER_RESIZE_PREFIX", "env-prefix")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Resize.MaxWidth != 640 {
		t.Errorf("Expected env max width 640, got %d", cfg.Resize.MaxWidth)
	}
	if cfg.Resize.Prefix != "env-prefix" {
		t.Errorf("Expected env prefix, got %s", cfg.Resize.Prefix)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfigFile(t, tmpDir, "resize: [unclosed")

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing source", func(c *Config) { c.SourceDirectory = "" }, "source_directory is required"},
		{"source not a dir", func(c *Config) { c.SourceDirectory = "/nonexistent/photos" }, "does not exist"},
		{"missing output", func(c *Config) { c.OutputDirectory = "" }, "output_directory is required"},
		{"empty prefix", func(c *Config) { c.Resize.Prefix = "" }, "prefix is required"},
		{"prefix with separator", func(c *Config) { c.Resize.Prefix = "a/b" }, "path separators"},
		{"zero width", func(c *Config) { c.Resize.MaxWidth = 0 }, "max_width"},
		{"negative size", func(c *Config) { c.Resize.MaxSizeKB = -1 }, "max_size_kb"},
		{"start above 100", func(c *Config) { c.Quality.Start = 101 }, "quality.start"},
		{"floor above start", func(c *Config) { c.Quality.Floor = 90 }, "quality.floor"},
		{"zero step", func(c *Config) { c.Quality.Step = 0 }, "quality.step"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		cfg := validConfig(t)
		tt.mutate(cfg)
		err := cfg.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: expected no error, got %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: expected error containing %q, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestConfig_ValidateResize_NormalizesExtensions(t *testing.T) {
	cfg := validConfig(t)
	cfg.Resize.SupportedExtensions = []string{"JPG", ".Jpeg", " heic ", ""}

	if err := cfg.ValidateResize(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	expected := []string{".jpg", ".jpeg", ".heic"}
	if !reflect.DeepEqual(cfg.Resize.SupportedExtensions, expected) {
		t.Errorf("Expected %v, got %v", expected, cfg.Resize.SupportedExtensions)
	}
}

func TestConfig_ValidateResize_EmptyExtensionsFallBack(t *testing.T) {
	cfg := validConfig(t)
	cfg.Resize.SupportedExtensions = nil

	if err := cfg.ValidateResize(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(cfg.Resize.SupportedExtensions) != 3 {
		t.Errorf("Expected default extensions, got %v", cfg.Resize.SupportedExtensions)
	}
}

func TestLoadConfig_AutoOrientFromEnv(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "resize:\n  max_width: 800\n")
	t.Setenv("PHOTO_RESIZER_RESIZE_AUTO_ORIENT", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !cfg.Resize.AutoOrient {
		t.Error("Expected auto_orient from environment")
	}
}

func TestLoadConfig_ExpandsDirectories(t *testing.T) {
	home := t.TempDir()
	photos := filepath.Join(home, "photos")
	if err := os.Mkdir(photos, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", home)
	t.Setenv("ALBUM_ROOT", photos)

	path := writeConfigFile(t, t.TempDir(), `
source_directory: $ALBUM_ROOT
output_directory: ~/resized
web:
  browse_root: ~/photos
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.SourceDirectory != photos {
		t.Errorf("Expected source %s, got %s", photos, cfg.SourceDirectory)
	}
	if want := filepath.Join(home, "resized"); cfg.OutputDirectory != want {
		t.Errorf("Expected output %s, got %s", want, cfg.OutputDirectory)
	}
	if cfg.Web.BrowseRoot != photos {
		t.Errorf("Expected browse root %s, got %s", photos, cfg.Web.BrowseRoot)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected expanded config to validate, got: %v", err)
	}
}

func TestConfig_Validate_ExpandsOverrides(t *testing.T) {
	home := t.TempDir()
	if err := os.Mkdir(filepath.Join(home, "in"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", home)

	cfg := validConfig(t)
	cfg.SourceDirectory = "~/in"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected ~ to resolve, got: %v", err)
	}
	if cfg.SourceDirectory != filepath.Join(home, "in") {
		t.Errorf("Expected expanded source, got %s", cfg.SourceDirectory)
	}
}
