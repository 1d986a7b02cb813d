package config_test

import (
	"testing"
	"time"

	"github.com/eak1mov/go-libmap/config"
	"github.com/eak1mov/go-libmap/geo"
	"github.com/eak1mov/go-libmap/provider"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const file = `
source:
  type: rest
  url: https://tiles.example.com/{z}/{x}/{y}.mvt
  headers:
    authorization: Bearer token
  timeout: 10s
cache:
  dir: /var/cache/mapview
  capacity: 64
  ttl: 1h
fonts:
  paths: [/fonts/a.ttf, /fonts/b.ttf]
logging:
  level: debug
  format: json
`

func writeFile(t *testing.T, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mapview.yaml", []byte(content), 0644))
	return fs
}

func TestLoad(t *testing.T) {
	c, err := config.Load("/etc/mapview.yaml", config.WithFs(writeFile(t, file)))
	require.NoError(t, err)

	want := config.Config{
		Source: config.SourceConfig{
			Type:      "rest",
			URL:       "https://tiles.example.com/{z}/{x}/{y}.mvt",
			Format:    "mvt",
			Headers:   map[string]string{"authorization": "Bearer token"},
			UserAgent: "go-libmap/1.0",
			Timeout:   10 * time.Second,
		},
		Cache: config.CacheConfig{
			Dir:      "/var/cache/mapview",
			Pattern:  "{style}/{z}/{x}/{y}.tile",
			Capacity: 64,
			TTL:      time.Hour,
			Workers:  8,
		},
		Schema:  config.SchemaConfig{Preset: "webmercator", TileSize: 1024, Levels: 16},
		Fonts:   config.FontsConfig{Paths: []string{"/fonts/a.ttf", "/fonts/b.ttf"}},
		Logging: config.LoggingConfig{Level: "debug", Format: "json"},
	}
	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, provider.Policy{Capacity: 64, TTL: time.Hour}, c.Policy())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LIBMAP_SOURCE_TYPE", "mbtiles")
	t.Setenv("LIBMAP_SOURCE_PATH", "/data/world.mbtiles")
	t.Setenv("LIBMAP_CACHE_WORKERS", "2")

	c, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "mbtiles", c.Source.Type)
	require.Equal(t, "/data/world.mbtiles", c.Source.Path)
	require.Equal(t, 2, c.Cache.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/etc/missing.yaml", config.WithFs(afero.NewMemMapFs()))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("LIBMAP_SOURCE_URL", "https://tiles.example.com/{z}/{x}/{y}.png")
	valid := func(t *testing.T) config.Config {
		c, err := config.Load("")
		require.NoError(t, err)
		return *c
	}

	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{name: "SourceType", modify: func(c *config.Config) { c.Source.Type = "ftp" }},
		{name: "RestWithoutURL", modify: func(c *config.Config) { c.Source.URL = "" }},
		{name: "FileWithoutPath", modify: func(c *config.Config) { c.Source.Type = "xyz" }},
		{name: "Format", modify: func(c *config.Config) { c.Source.Format = "svg" }},
		{name: "Capacity", modify: func(c *config.Config) { c.Cache.Capacity = -1 }},
		{name: "Workers", modify: func(c *config.Config) { c.Cache.Workers = -1 }},
		{name: "Pattern", modify: func(c *config.Config) { c.Cache.Dir, c.Cache.Pattern = "/tmp", "" }},
		{name: "Preset", modify: func(c *config.Config) { c.Schema.Preset = "utm" }},
		{name: "TileSize", modify: func(c *config.Config) { c.Schema.TileSize = 0 }},
		{name: "Levels", modify: func(c *config.Config) { c.Schema.Levels = 0 }},
		{name: "LogLevel", modify: func(c *config.Config) { c.Logging.Level = "verbose" }},
		{name: "LogFormat", modify: func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid(t)
			require.NoError(t, c.Validate())
			tt.modify(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestNewSchema(t *testing.T) {
	t.Setenv("LIBMAP_SOURCE_URL", "https://tiles.example.com/{z}/{x}/{y}.png")
	t.Setenv("LIBMAP_SCHEMA_TILE_SIZE", "256")
	c, err := config.Load("")
	require.NoError(t, err)

	s, err := c.NewSchema()
	require.NoError(t, err)
	require.Len(t, s.Lods(), 16)
	res, err := s.ResolutionFor(0)
	require.NoError(t, err)
	require.InDelta(t, 156543.03392800014, res, 1e-6)
}

func TestNewSchemaGeographic(t *testing.T) {
	t.Setenv("LIBMAP_SOURCE_URL", "https://tiles.example.com/{z}/{x}/{y}.png")
	t.Setenv("LIBMAP_SCHEMA_PRESET", "geographic")
	t.Setenv("LIBMAP_SCHEMA_TILE_SIZE", "256")
	t.Setenv("LIBMAP_SCHEMA_LEVELS", "4")
	c, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	s, err := c.NewSchema()
	require.NoError(t, err)
	require.Equal(t, geo.EPSG4326, s.Crs())
	require.Len(t, s.Lods(), 4)
	res, err := s.ResolutionFor(0)
	require.NoError(t, err)
	require.Equal(t, 0.703125, res)
}
