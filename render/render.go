// Package render defines the backend-neutral drawing model: a RenderBundle
// accumulates primitives, a Renderer packs it into backend state, and a
// packed bundle can be unpacked to restyle individual primitives.
//
// Bundles move through Bundle -> Packed -> Unpacked -> Packed. Each
// transition consumes its receiver: a consumed value reports ErrConsumed
// (or panics where a method has no error result).
package render

import (
	"errors"
	"image"
	"image/color"

	"github.com/eak1mov/go-libmap/text"
	"github.com/paulmach/orb"
)

var (
	ErrUnknownPrimitive = errors.New("libmap: unknown primitive")
	ErrConsumed         = errors.New("libmap: bundle already consumed")
)

// PrimitiveID identifies a primitive inside the bundle that issued it.
// Ids grow from 0 and stay valid through pack and unpack.
type PrimitiveID int

type RenderBundle interface {
	AddPoints(points []orb.Point, paint PointPaint) PrimitiveID
	// AddLine adds a polyline simplified for display at resolution (map
	// units per pixel).
	AddLine(line orb.LineString, paint LinePaint, resolution float64) PrimitiveID
	AddPolygon(polygon orb.Polygon, paint Paint, resolution float64) PrimitiveID
	// AddImage maps img onto quad, given as top-left, top-right,
	// bottom-right and bottom-left corners in map coordinates.
	AddImage(img image.Image, quad [4]orb.Point, paint ImagePaint) PrimitiveID
	AddLabel(at orb.Point, run text.Run, paint LabelPaint) PrimitiveID
	IsEmpty() bool
}

type PackedBundle interface {
	// Unpack consumes the packed bundle.
	Unpack() UnpackedBundle
}

// UnpackedBundle gives access to paint records of a packed bundle. It
// cannot be drawn; Pack it back first.
type UnpackedBundle interface {
	ModifyPoints(id PrimitiveID, paint PointPaint) error
	ModifyLine(id PrimitiveID, paint LinePaint) error
	ModifyPolygon(id PrimitiveID, paint Paint) error
	ModifyImage(id PrimitiveID, paint ImagePaint) error
	ModifyLabel(id PrimitiveID, paint LabelPaint) error
	// Pack consumes the unpacked bundle.
	Pack() PackedBundle
}

type Renderer interface {
	CreateBundle() RenderBundle
	// PackBundle consumes bundle.
	PackBundle(bundle RenderBundle) (PackedBundle, error)
}

// Canvas is a drawing surface of a graphics backend.
type Canvas interface {
	Renderer
	Size() (width, height int)
	Clear(c color.Color)
	DrawBundles(view View, bundles ...PackedBundle) error
}
