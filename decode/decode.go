// Package decode defines the tile payload decoder: raw bytes in, typed
// features (or an image) positioned in schema coordinates out.
package decode

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
)

var ErrMalformed = errors.New("libmap: malformed tile payload")

// Error reports a payload that could not be decoded.
type Error struct {
	Index tile.Index
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("libmap: decode %v: %v", e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Kind int

const (
	KindPoint Kind = iota
	KindLine
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf classifies a geometry; ok is false for collections and bounds.
func KindOf(g orb.Geometry) (kind Kind, ok bool) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindPoint, true
	case orb.LineString, orb.MultiLineString:
		return KindLine, true
	case orb.Ring, orb.Polygon, orb.MultiPolygon:
		return KindPolygon, true
	default:
		return 0, false
	}
}

// Feature is a single decoded feature. Geometry is in schema CRS units.
type Feature struct {
	ID         any
	Layer      string
	Kind       Kind
	Geometry   orb.Geometry
	Properties map[string]any
}

// Tile is a decoded payload: vector features, a raster image, or both.
type Tile struct {
	Index    tile.Index
	Bounds   orb.Bound
	Features []Feature
	Image    image.Image

	// Skipped aggregates features dropped during decoding. It is
	// informational; the tile is usable.
	Skipped error
}

type Decoder interface {
	// Decode turns payload of the tile at index into features located
	// inside bounds, the tile's extent in schema coordinates.
	Decode(ctx context.Context, index tile.Index, bounds orb.Bound, payload []byte) (*Tile, error)
}

type DecoderFunc func(ctx context.Context, index tile.Index, bounds orb.Bound, payload []byte) (*Tile, error)

func (f DecoderFunc) Decode(ctx context.Context, index tile.Index, bounds orb.Bound, payload []byte) (*Tile, error) {
	return f(ctx, index, bounds, payload)
}
