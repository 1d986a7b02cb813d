// Package config loads the mapview application configuration from defaults,
// an optional file and LIBMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/eak1mov/go-libmap/fetch"
	"github.com/eak1mov/go-libmap/provider"
	"github.com/eak1mov/go-libmap/schema"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const EnvPrefix = "LIBMAP"

// Config is the complete application configuration.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Schema  SchemaConfig  `mapstructure:"schema"`
	Style   StyleConfig   `mapstructure:"style"`
	Fonts   FontsConfig   `mapstructure:"fonts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig selects where tiles come from.
type SourceConfig struct {
	Type      string            `mapstructure:"type"` // rest, xyz or mbtiles
	URL       string            `mapstructure:"url"`
	Path      string            `mapstructure:"path"`
	Format    string            `mapstructure:"format"` // mvt or raster
	Headers   map[string]string `mapstructure:"headers"`
	UserAgent string            `mapstructure:"user_agent"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

// CacheConfig configures the tile provider and its file cache. An empty
// Dir disables the file cache.
type CacheConfig struct {
	Dir            string        `mapstructure:"dir"`
	Pattern        string        `mapstructure:"pattern"`
	Capacity       int           `mapstructure:"capacity"`
	TTL            time.Duration `mapstructure:"ttl"`
	RetainFailures bool          `mapstructure:"retain_failures"`
	Workers        int           `mapstructure:"workers"`
}

type SchemaConfig struct {
	Preset   string `mapstructure:"preset"`
	TileSize uint32 `mapstructure:"tile_size"`
	Levels   int    `mapstructure:"levels"`
}

type StyleConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type FontsConfig struct {
	Paths []string `mapstructure:"paths"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type options struct {
	fs afero.Fs
}

type Option func(*options)

// WithFs reads the configuration file from fs.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// Load reads the configuration. path may be empty to use defaults and
// environment only.
func Load(path string, opts ...Option) (*Config, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetFs(o.fs)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.type", "rest")
	v.SetDefault("source.url", "")
	v.SetDefault("source.path", "")
	v.SetDefault("source.format", "mvt")
	v.SetDefault("source.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("source.timeout", 30*time.Second)

	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.pattern", "{style}/{z}/{x}/{y}.tile")
	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("cache.retain_failures", false)
	v.SetDefault("cache.workers", 8)

	v.SetDefault("schema.preset", "webmercator")
	v.SetDefault("schema.tile_size", 1024)
	v.SetDefault("schema.levels", 16)

	v.SetDefault("style.path", "")
	v.SetDefault("style.watch", false)

	v.SetDefault("fonts.paths", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case "rest":
		if c.Source.URL == "" {
			return errors.New("source.url is required for a rest source")
		}
	case "xyz", "mbtiles":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for a %s source", c.Source.Type)
		}
	default:
		return fmt.Errorf("source.type: unknown source %q", c.Source.Type)
	}
	if !slices.Contains([]string{"mvt", "raster"}, c.Source.Format) {
		return fmt.Errorf("source.format: unknown format %q", c.Source.Format)
	}
	if c.Source.Timeout < 0 {
		return errors.New("source.timeout must not be negative")
	}

	if c.Cache.Capacity < 0 {
		return errors.New("cache.capacity must not be negative")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	if c.Cache.Workers < 0 {
		return errors.New("cache.workers must not be negative")
	}
	if c.Cache.Dir != "" && c.Cache.Pattern == "" {
		return errors.New("cache.pattern is required with cache.dir")
	}

	if c.Schema.Preset != "webmercator" && c.Schema.Preset != "geographic" {
		return fmt.Errorf("schema.preset: unknown preset %q", c.Schema.Preset)
	}
	if c.Schema.TileSize == 0 {
		return errors.New("schema.tile_size must be positive")
	}
	if c.Schema.Levels < 1 || c.Schema.Levels > 30 {
		return errors.New("schema.levels must be between 1 and 30")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the logger described by the logging section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Logging.Level))
	handlerOpts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// NewSchema builds the configured tile schema.
func (c *Config) NewSchema() (*schema.Schema, error) {
	if c.Schema.Preset == "geographic" {
		return schema.Geographic(c.Schema.TileSize, c.Schema.Levels)
	}
	top := schema.StandardTopResolution * 256 / float64(c.Schema.TileSize)
	return schema.WebMercator(c.Schema.TileSize, c.Schema.Levels, top)
}

// Policy is the eviction policy of the in-memory tile cache.
func (c *Config) Policy() provider.Policy {
	return provider.Policy{Capacity: c.Cache.Capacity, TTL: c.Cache.TTL}
}
