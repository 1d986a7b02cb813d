package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/eak1mov/go-libmap/config"
	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/decode/mvt"
	"github.com/eak1mov/go-libmap/decode/raster"
	"github.com/eak1mov/go-libmap/fetch"
	"github.com/eak1mov/go-libmap/geo"
	"github.com/eak1mov/go-libmap/layer"
	"github.com/eak1mov/go-libmap/mb"
	"github.com/eak1mov/go-libmap/provider"
	"github.com/eak1mov/go-libmap/schema"
	"github.com/eak1mov/go-libmap/style"
	"github.com/eak1mov/go-libmap/text"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/eak1mov/go-libmap/xyz"
	"github.com/paulmach/orb"
	"golang.org/x/image/font/gofont/goregular"
)

// app holds the components shared by the subcommands.
type app struct {
	config     *config.Config
	logger     *slog.Logger
	schema     *schema.Schema
	projection geo.Projection
	cache      *xyz.Cache
	provider   *provider.Provider
	decoder    decode.Decoder
	style      *style.Style
	fonts      *text.FontService
	closers    []io.Closer
}

func newApp(configPath string, logOutput io.Writer) (a *app, err error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a = &app{config: c, logger: c.NewLogger(logOutput)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.schema, err = c.NewSchema(); err != nil {
		return nil, err
	}
	if a.projection, err = projectionFor(a.schema); err != nil {
		return nil, err
	}

	fetcher, err := a.newFetcher()
	if err != nil {
		return nil, err
	}
	providerOpts := []provider.Option{
		provider.WithLogger(a.logger),
		provider.WithPolicy(c.Policy()),
		provider.WithWorkers(c.Cache.Workers),
		provider.WithFailureRetention(c.Cache.RetainFailures),
	}
	if c.Cache.Dir != "" {
		a.cache, err = xyz.NewCache(filepath.Join(c.Cache.Dir, c.Cache.Pattern), xyz.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, provider.WithStore(a.cache))
	}
	a.provider = provider.New(fetcher, providerOpts...)
	a.closers = append(a.closers, a.provider)

	if c.Source.Format == "raster" {
		a.decoder = raster.NewDecoder()
	} else {
		a.decoder = mvt.NewDecoder(mvt.WithLogger(a.logger))
	}

	a.style = style.Default()
	if c.Style.Path != "" {
		if a.style, err = style.Load(c.Style.Path, style.WithLogger(a.logger)); err != nil {
			return nil, err
		}
	}

	a.fonts = text.NewFontService(text.WithLogger(a.logger))
	a.closers = append(a.closers, a.fonts)
	for _, path := range c.Fonts.Paths {
		if err := a.fonts.LoadFontFile(path); err != nil {
			return nil, err
		}
	}
	if len(c.Fonts.Paths) == 0 {
		if err := a.fonts.LoadFont(goregular.TTF); err != nil {
			return nil, err
		}
	}
	if err := a.fonts.Initialize(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) newFetcher() (tile.Fetcher, error) {
	source := a.config.Source
	switch source.Type {
	case "rest":
		return fetch.NewREST(source.URL,
			fetch.WithHeaders(source.Headers),
			fetch.WithUserAgent(source.UserAgent),
			fetch.WithTimeout(source.Timeout),
			fetch.WithLogger(a.logger),
		)
	case "xyz":
		reader, err := xyz.NewReader(source.Path, xyz.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		return fetch.FromReader(reader), nil
	case "mbtiles":
		reader, err := mb.NewReader(source.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, reader)
		return reader, nil
	}
	return nil, fmt.Errorf("unknown source type %q", source.Type)
}

func (a *app) newLayer(opts ...layer.Option) *layer.TileLayer {
	opts = append([]layer.Option{layer.WithLogger(a.logger), layer.WithFonts(a.fonts)}, opts...)
	return layer.NewTileLayer(a.schema, a.provider, a.decoder, a.style, opts...)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// parseFloats parses n comma separated numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %q", n, s)
	}
	result := make([]float64, n)
	for i, part := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%g", &result[i]); err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", part, err)
		}
	}
	return result, nil
}

// projectionFor returns the projection from degrees into the schema CRS.
func projectionFor(s *schema.Schema) (geo.Projection, error) {
	proj, ok := geo.ProjectionFor(s.Crs())
	if !ok {
		return nil, fmt.Errorf("no projection for %s", s.Crs())
	}
	return proj, nil
}

// parseBound parses "minlon,minlat,maxlon,maxlat" into schema coordinates.
func parseBound(proj geo.Projection, s string) (orb.Bound, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return orb.Bound{}, err
	}
	lonLat := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	return geo.ProjectBound(proj, lonLat), nil
}

// parsePoint parses "lon,lat" into schema coordinates.
func parsePoint(proj geo.Projection, s string) (orb.Point, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return orb.Point{}, err
	}
	return proj.Project(orb.Point{v[0], v[1]}), nil
}

func parseSize(s string) (width, height int, err error) {
	if _, err := fmt.Sscanf(s, "%dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q", s)
	}
	return width, height, nil
}
