package xyz

import (
	"log/slog"
	"os"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/spf13/afero"
)

// Cache is a persistent tile cache keyed by tile index and style
// fingerprint. Paths come from a pattern such as
// ".tile_cache/{style}/{z}/{x}/{y}.pbf"; without a {style} placeholder the
// cache stores one payload per index regardless of style.
//
// Cache is safe for concurrent use: writes land through a rename, so a
// reader sees either the old file, the new file or no file.
type Cache struct {
	fs      afero.Fs
	pattern string
	logger  *slog.Logger
}

// NewCache creates a Cache for the given file pattern.
func NewCache(pattern string, opts ...Option) (*Cache, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}
	c := newConfig(opts)
	return &Cache{fs: c.fs, pattern: pattern, logger: c.logger}, nil
}

// Load returns the cached payload. The second result is false on a miss.
func (c *Cache) Load(index tile.Index, style string) ([]byte, bool, error) {
	data, err := afero.ReadFile(c.fs, formatPattern(c.pattern, index, style))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// Save stores a payload, replacing any previous one.
func (c *Cache) Save(index tile.Index, style string, data []byte) error {
	filePath := formatPattern(c.pattern, index, style)
	if err := writeAtomic(c.fs, filePath, data); err != nil {
		return err
	}
	c.logger.Debug("libmap: tile cached", "tile", index.String(), "path", filePath, "bytes", len(data))
	return nil
}

// Reader returns a Reader over the cached tiles of one style.
func (c *Cache) Reader(style string) *Reader {
	if style == "" {
		style = defaultStyle
	}
	return &Reader{
		fs:          c.fs,
		filePattern: c.pattern,
		rootDir:     rootDir(c.pattern, style),
		style:       style,
	}
}
