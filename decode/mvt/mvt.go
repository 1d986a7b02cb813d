// Package mvt decodes Mapbox Vector Tile payloads.
package mvt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/project"
	"go.uber.org/multierr"
)

var gzipMagic = []byte{0x1f, 0x8b}

const defaultExtent = 4096

// Decoder implements decode.Decoder for MVT payloads, plain or gzipped.
type Decoder struct {
	layers map[string]bool
	logger *slog.Logger
}

type config struct {
	Layers []string
	Logger *slog.Logger
}

type Option func(*config)

// WithLayers restricts decoding to the named source layers.
func WithLayers(names ...string) Option {
	return func(c *config) { c.Layers = names }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func NewDecoder(opts ...Option) *Decoder {
	config := config{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	d := &Decoder{logger: config.Logger}
	if len(config.Layers) > 0 {
		d.layers = make(map[string]bool, len(config.Layers))
		for _, name := range config.Layers {
			d.layers[name] = true
		}
	}
	return d
}

func (d *Decoder) Decode(ctx context.Context, index tile.Index, bounds orb.Bound, payload []byte) (*decode.Tile, error) {
	if len(payload) == 0 {
		return nil, &decode.Error{Index: index, Err: fmt.Errorf("%w: empty payload", decode.ErrMalformed)}
	}

	var layers mvt.Layers
	var err error
	if bytes.HasPrefix(payload, gzipMagic) {
		layers, err = mvt.UnmarshalGzipped(payload)
	} else {
		layers, err = mvt.Unmarshal(payload)
	}
	if err != nil {
		return nil, &decode.Error{Index: index, Err: fmt.Errorf("%w: %w", decode.ErrMalformed, err)}
	}

	result := &decode.Tile{Index: index, Bounds: bounds}
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.layers != nil && !d.layers[layer.Name] {
			continue
		}

		extent := float64(layer.Extent)
		if extent == 0 {
			extent = defaultExtent
		}
		dx, dy := bounds.Max[0]-bounds.Min[0], bounds.Max[1]-bounds.Min[1]
		toSchema := func(p orb.Point) orb.Point {
			// tile space has y pointing down
			return orb.Point{
				bounds.Min[0] + p[0]/extent*dx,
				bounds.Max[1] - p[1]/extent*dy,
			}
		}

		for i, feature := range layer.Features {
			if feature.Geometry == nil {
				result.Skipped = multierr.Append(result.Skipped, fmt.Errorf("%s[%d]: no geometry", layer.Name, i))
				continue
			}
			kind, ok := decode.KindOf(feature.Geometry)
			if !ok {
				result.Skipped = multierr.Append(result.Skipped,
					fmt.Errorf("%s[%d]: unsupported geometry %s", layer.Name, i, feature.Geometry.GeoJSONType()))
				continue
			}
			result.Features = append(result.Features, decode.Feature{
				ID:         feature.ID,
				Layer:      layer.Name,
				Kind:       kind,
				Geometry:   project.Geometry(orb.Clone(feature.Geometry), toSchema),
				Properties: feature.Properties,
			})
		}
	}

	if result.Skipped != nil {
		d.logger.Debug("libmap: features skipped", "tile", index.String(), "count", len(multierr.Errors(result.Skipped)))
	}
	return result, nil
}
