package tess

import (
	"image"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/text"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Bundle accumulates primitives. It implements render.RenderBundle and is
// not safe for concurrent use.
type Bundle struct {
	buf *Buffers
}

var _ render.RenderBundle = (*Bundle)(nil)

func NewBundle() *Bundle {
	return &Bundle{buf: &Buffers{Bound: orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{-1, -1}}}}
}

func (b *Bundle) buffers() *Buffers {
	if b.buf == nil {
		panic(render.ErrConsumed)
	}
	return b.buf
}

func (b *Bundle) add(kind Kind, paint PaintRecord, aux int32, contours ...[]orb.Point) render.PrimitiveID {
	buf := b.buffers()
	id := render.PrimitiveID(len(buf.Primitives))
	buf.Primitives = append(buf.Primitives, Primitive{
		Kind:         kind,
		FirstContour: int32(len(buf.Contours)),
		NumContours:  int32(len(contours)),
		Aux:          aux,
	})
	for _, c := range contours {
		start := int32(len(buf.Vertices))
		buf.Vertices = append(buf.Vertices, c...)
		buf.Contours = append(buf.Contours, Contour{Start: start, End: int32(len(buf.Vertices))})
		for _, p := range c {
			if buf.Bound.Min[0] > buf.Bound.Max[0] {
				buf.Bound = p.Bound()
			} else {
				buf.Bound = buf.Bound.Extend(p)
			}
		}
	}
	buf.Paints = append(buf.Paints, paint)
	return id
}

func (b *Bundle) AddPoints(points []orb.Point, paint render.PointPaint) render.PrimitiveID {
	return b.add(KindPoints, pointsRecord(paint), -1, points)
}

func (b *Bundle) AddLine(line orb.LineString, paint render.LinePaint, resolution float64) render.PrimitiveID {
	return b.add(KindLine, lineRecord(paint), -1, simplifyLine(line, resolution))
}

func (b *Bundle) AddPolygon(polygon orb.Polygon, paint render.Paint, resolution float64) render.PrimitiveID {
	contours := make([][]orb.Point, 0, len(polygon))
	for i, ring := range polygon {
		simplified, ok := simplifyRing(ring, resolution)
		if !ok && i > 0 {
			continue // holes smaller than a pixel
		}
		contours = append(contours, simplified)
	}
	return b.add(KindPolygon, polygonRecord(paint), -1, contours...)
}

func (b *Bundle) AddImage(img image.Image, quad [4]orb.Point, paint render.ImagePaint) render.PrimitiveID {
	buf := b.buffers()
	aux := int32(len(buf.Images))
	buf.Images = append(buf.Images, ImageQuad{Image: img})
	return b.add(KindImage, imageRecord(paint), aux, quad[:])
}

func (b *Bundle) AddLabel(at orb.Point, run text.Run, paint render.LabelPaint) render.PrimitiveID {
	buf := b.buffers()
	aux := int32(len(buf.Labels))
	buf.Labels = append(buf.Labels, Label{Run: run})
	return b.add(KindLabel, labelRecord(paint), aux, []orb.Point{at})
}

func (b *Bundle) IsEmpty() bool {
	return len(b.buffers().Primitives) == 0
}

func (b *Bundle) Len() int {
	return len(b.buffers().Primitives)
}

// Pack consumes the bundle.
func (b *Bundle) Pack() (*Packed, error) {
	if b.buf == nil {
		return nil, render.ErrConsumed
	}
	p := &Packed{buf: b.buf}
	b.buf = nil
	return p, nil
}

func simplifyLine(line orb.LineString, resolution float64) []orb.Point {
	if resolution <= 0 || len(line) <= 2 {
		return line.Clone()
	}
	return simplify.DouglasPeucker(resolution).LineString(line.Clone())
}

// simplifyRing reports false when the ring collapses below a triangle, in
// which case the original ring is returned.
func simplifyRing(ring orb.Ring, resolution float64) ([]orb.Point, bool) {
	if resolution <= 0 || len(ring) <= 4 {
		return ring.Clone(), true
	}
	simplified := simplify.DouglasPeucker(resolution).Ring(ring.Clone())
	if len(simplified) < 4 {
		return ring.Clone(), false
	}
	return simplified, true
}
