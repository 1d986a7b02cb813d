// Package tess turns render primitives into packed, backend-neutral
// buffers: one shared vertex buffer, contour ranges, a primitive table and
// a fixed-size paint record per primitive.
package tess

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/text"
	"github.com/paulmach/orb"
)

type Kind uint8

const (
	KindPoints Kind = iota + 1
	KindLine
	KindPolygon
	KindImage
	KindLabel
)

func (k Kind) String() string {
	switch k {
	case KindPoints:
		return "points"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	case KindImage:
		return "image"
	case KindLabel:
		return "label"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Contour is a half-open range of Buffers.Vertices.
type Contour struct {
	Start, End int32
}

// Primitive is an entry of the primitive table. Its id is its position.
type Primitive struct {
	Kind         Kind
	FirstContour int32
	NumContours  int32
	// Aux indexes Buffers.Images or Buffers.Labels.
	Aux int32
}

// PaintRecord is the style-derived state of one primitive. Fields unused
// by the primitive kind are zero.
type PaintRecord struct {
	Color        [4]uint8
	OutlineColor [4]uint8
	Width        float32
	Offset       float32
	Size         float32
	Cap          render.LineCap
	Opacity      uint8
	HAlign       text.HAlign
	VAlign       text.VAlign
}

type ImageQuad struct {
	Image image.Image
}

type Label struct {
	Run text.Run
}

// Buffers is the packed representation of a bundle.
type Buffers struct {
	Vertices   []orb.Point
	Contours   []Contour
	Primitives []Primitive
	Paints     []PaintRecord
	Images     []ImageQuad
	Labels     []Label
	Bound      orb.Bound
}

func (b *Buffers) Len() int {
	return len(b.Primitives)
}

// ContoursOf returns the vertex runs of primitive id.
func (b *Buffers) ContoursOf(id render.PrimitiveID) [][]orb.Point {
	p := b.Primitives[id]
	result := make([][]orb.Point, 0, p.NumContours)
	for _, c := range b.Contours[p.FirstContour : p.FirstContour+p.NumContours] {
		result = append(result, b.Vertices[c.Start:c.End])
	}
	return result
}

// Clone returns a deep copy of the vertex, contour and record tables.
// Images and shaped runs are shared.
func (b *Buffers) Clone() *Buffers {
	return &Buffers{
		Vertices:   slices.Clone(b.Vertices),
		Contours:   slices.Clone(b.Contours),
		Primitives: slices.Clone(b.Primitives),
		Paints:     slices.Clone(b.Paints),
		Images:     slices.Clone(b.Images),
		Labels:     slices.Clone(b.Labels),
		Bound:      b.Bound,
	}
}

func (b *Buffers) lookup(id render.PrimitiveID, kind Kind) error {
	if id < 0 || int(id) >= len(b.Primitives) {
		return fmt.Errorf("%w: id %d out of %d", render.ErrUnknownPrimitive, id, len(b.Primitives))
	}
	if got := b.Primitives[id].Kind; got != kind {
		return fmt.Errorf("%w: id %d is %v, not %v", render.ErrUnknownPrimitive, id, got, kind)
	}
	return nil
}

func rgba(c color.NRGBA) [4]uint8 {
	return [4]uint8{c.R, c.G, c.B, c.A}
}

func (r PaintRecord) color() color.NRGBA {
	return color.NRGBA{R: r.Color[0], G: r.Color[1], B: r.Color[2], A: r.Color[3]}
}

func pointsRecord(p render.PointPaint) PaintRecord {
	return PaintRecord{Color: rgba(p.Color), Size: float32(p.Size)}
}

func lineRecord(p render.LinePaint) PaintRecord {
	return PaintRecord{Color: rgba(p.Color), Width: float32(p.Width), Offset: float32(p.Offset), Cap: p.Cap}
}

func polygonRecord(p render.Paint) PaintRecord {
	return PaintRecord{Color: rgba(p.Color)}
}

func imageRecord(p render.ImagePaint) PaintRecord {
	return PaintRecord{Opacity: p.Opacity}
}

func labelRecord(p render.LabelPaint) PaintRecord {
	return PaintRecord{
		Color:        rgba(p.Color),
		OutlineColor: rgba(p.OutlineColor),
		Width:        float32(p.OutlineWidth),
		HAlign:       p.HAlign,
		VAlign:       p.VAlign,
	}
}

func (r PaintRecord) PointPaint() render.PointPaint {
	return render.PointPaint{Color: r.color(), Size: float64(r.Size)}
}

func (r PaintRecord) LinePaint() render.LinePaint {
	return render.LinePaint{Color: r.color(), Width: float64(r.Width), Offset: float64(r.Offset), Cap: r.Cap}
}

func (r PaintRecord) Paint() render.Paint {
	return render.Paint{Color: r.color()}
}

func (r PaintRecord) ImagePaint() render.ImagePaint {
	return render.ImagePaint{Opacity: r.Opacity}
}

func (r PaintRecord) LabelPaint() render.LabelPaint {
	o := r.OutlineColor
	return render.LabelPaint{
		Color:        r.color(),
		OutlineColor: color.NRGBA{R: o[0], G: o[1], B: o[2], A: o[3]},
		OutlineWidth: float64(r.Width),
		HAlign:       r.HAlign,
		VAlign:       r.VAlign,
	}
}
