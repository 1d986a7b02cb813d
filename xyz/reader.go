package xyz

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/spf13/afero"
)

// Reader implements tile.Reader and tile.Visitor for tiles in XYZ format.
type Reader struct {
	fs          afero.Fs
	filePattern string
	rootDir     string
	style       string
}

type config struct {
	fs     afero.Fs
	style  string
	logger *slog.Logger
}

type Option func(*config)

// WithFs sets the file system tiles live on. Defaults to the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(c *config) { c.fs = fs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithStyle fixes the value substituted for the {style} placeholder.
func WithStyle(style string) Option {
	return func(c *config) { c.style = style }
}

func newConfig(opts []Option) config {
	c := config{
		fs:     afero.NewOsFs(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewReader creates a new Reader for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewReader(filePattern string, opts ...Option) (*Reader, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	c := newConfig(opts)
	return &Reader{
		fs:          c.fs,
		filePattern: filePattern,
		rootDir:     rootDir(filePattern, c.style),
		style:       c.style,
	}, nil
}

// rootDir returns the longest directory prefix shared by every tile path.
func rootDir(filePattern, style string) string {
	path0 := formatPattern(filePattern, tile.Index{X: 0, Y: 0, Z: 0}, style)
	path1 := formatPattern(filePattern, tile.Index{X: 1, Y: 1, Z: 1}, style+"~")
	for path0 != path1 {
		path0 = filepath.Dir(path0)
		path1 = filepath.Dir(path1)
	}
	return path0
}

func (r *Reader) ReadTile(index tile.Index) ([]byte, error) {
	filePath := formatPattern(r.filePattern, index, r.style)
	tileData, err := afero.ReadFile(r.fs, filePath)
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

func (r *Reader) VisitTiles(visitor func(tile.Index, []byte) error) error {
	pathRegexp, err := compilePattern(r.filePattern)
	if err != nil {
		return err
	}
	return afero.Walk(r.fs, r.rootDir, func(filePath string, info os.FileInfo, err error) error {
		if os.IsNotExist(err) && filePath == r.rootDir {
			return nil // nothing written yet
		}
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		index, style, ok := parsePath(pathRegexp, filePath)
		if !ok {
			return nil // foreign files are not tiles
		}
		if r.style != "" && style != r.style {
			return nil
		}

		tileData, err := afero.ReadFile(r.fs, filePath)
		if err != nil {
			return err
		}
		return visitor(index, tileData)
	})
}
