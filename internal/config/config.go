package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photo-resizer-go/internal/resizer"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PHOTO_RESIZER"

// Config represents the main configuration structure
type Config struct {
	SourceDirectory string        `mapstructure:"source_directory"`
	OutputDirectory string        `mapstructure:"output_directory"`
	Resize          ResizeConfig  `mapstructure:"resize"`
	Quality         QualityConfig `mapstructure:"quality"`
	Logging         LoggingConfig `mapstructure:"logging"`
	Web             WebConfig     `mapstructure:"web"`
}

// ResizeConfig contains the per-batch output constraints
type ResizeConfig struct {
	Prefix              string   `mapstructure:"prefix"`
	MaxWidth            int      `mapstructure:"max_width"`
	MaxSizeKB           int      `mapstructure:"max_size_kb"`
	SupportedExtensions []string `mapstructure:"supported_extensions"`

	// AutoOrient applies the EXIF orientation before measuring and scaling.
	// Off by default: width checks use the stored pixel grid.
	AutoOrient bool `mapstructure:"auto_orient"`
}

// QualityConfig contains the JPEG quality search bounds
type QualityConfig struct {
	Start int `mapstructure:"start"`
	Floor int `mapstructure:"floor"`
	Step  int `mapstructure:"step"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// WebConfig contains settings for the HTTP API
type WebConfig struct {
	BrowseRoot string `mapstructure:"browse_root"` // directory listing is confined here
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Resize: ResizeConfig{
			Prefix:              "photo",
			MaxWidth:            1200,
			MaxSizeKB:           400,
			SupportedExtensions: append([]string(nil), resizer.DefaultExtensions...),
		},
		Quality: QualityConfig{
			Start: 85,
			Floor: 10,
			Step:  5,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "photo-resizer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
		Web: WebConfig{
			BrowseRoot: ".",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Directories are not validated here; call Validate once CLI overrides are applied.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.photo-resizer")
		v.AddConfigPath("/etc/photo-resizer")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.ExpandPaths(); err != nil {
		return nil, err
	}
	return config, nil
}

// bindEnvKeys makes env-only values visible to Unmarshal, which ignores
// AutomaticEnv for keys missing from the config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"source_directory",
		"output_directory",
		"resize.prefix",
		"resize.max_width",
		"resize.max_size_kb",
		"resize.auto_orient",
		"quality.start",
		"quality.floor",
		"quality.step",
		"logging.level",
		"logging.file_path",
		"web.browse_root",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.ExpandPaths(); err != nil {
		return err
	}
	if c.SourceDirectory == "" {
		return fmt.Errorf("source_directory is required")
	}
	if !isValidPath(c.SourceDirectory) {
		return fmt.Errorf("source_directory does not exist or is not accessible: %s", c.SourceDirectory)
	}
	if c.OutputDirectory == "" {
		return fmt.Errorf("output_directory is required")
	}

	if err := c.ValidateResize(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// ValidateResize validates and normalizes the resize and quality sections.
func (c *Config) ValidateResize() error {
	if c.Resize.Prefix == "" {
		return fmt.Errorf("resize.prefix is required")
	}
	if strings.ContainsAny(c.Resize.Prefix, `/\`) {
		return fmt.Errorf("resize.prefix must not contain path separators: %s", c.Resize.Prefix)
	}
	if c.Resize.MaxWidth <= 0 {
		return fmt.Errorf("resize.max_width must be positive, got %d", c.Resize.MaxWidth)
	}
	if c.Resize.MaxSizeKB <= 0 {
		return fmt.Errorf("resize.max_size_kb must be positive, got %d", c.Resize.MaxSizeKB)
	}

	c.Resize.SupportedExtensions = normalizeExtensions(c.Resize.SupportedExtensions)
	if len(c.Resize.SupportedExtensions) == 0 {
		c.Resize.SupportedExtensions = DefaultConfig().Resize.SupportedExtensions
	}

	if c.Quality.Start < 1 || c.Quality.Start > 100 {
		return fmt.Errorf("quality.start must be in [1,100], got %d", c.Quality.Start)
	}
	if c.Quality.Floor < 1 || c.Quality.Floor > c.Quality.Start {
		return fmt.Errorf("quality.floor must be in [1,%d], got %d", c.Quality.Start, c.Quality.Floor)
	}
	if c.Quality.Step <= 0 {
		return fmt.Errorf("quality.step must be positive, got %d", c.Quality.Step)
	}
	return nil
}

// ExpandPaths resolves a leading ~ and $VARS in every configured directory.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.SourceDirectory, &c.OutputDirectory, &c.Logging.FilePath, &c.Web.BrowseRoot} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Helper functions

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded := os.ExpandEnv(path)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot expand %s: %w", path, err)
		}
		expanded = filepath.Join(home, expanded[1:])
	}
	return expanded, nil
}

func isValidPath(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.IsDir()
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	return normalized
}
