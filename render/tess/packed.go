package tess

import (
	"github.com/eak1mov/go-libmap/render"
)

// Packed is the drawable state of a bundle.
type Packed struct {
	buf *Buffers
}

var _ render.PackedBundle = (*Packed)(nil)

// Buffers returns the packed data for drawing. The result must not be
// modified.
func (p *Packed) Buffers() (*Buffers, error) {
	if p.buf == nil {
		return nil, render.ErrConsumed
	}
	return p.buf, nil
}

func (p *Packed) Unpack() render.UnpackedBundle {
	if p.buf == nil {
		panic(render.ErrConsumed)
	}
	u := &Unpacked{buf: p.buf}
	p.buf = nil
	return u
}

// Unpacked allows rewriting paint records. Vertices and contours are never
// touched.
type Unpacked struct {
	buf *Buffers
}

var _ render.UnpackedBundle = (*Unpacked)(nil)

func (u *Unpacked) modify(id render.PrimitiveID, kind Kind, record PaintRecord) error {
	if u.buf == nil {
		return render.ErrConsumed
	}
	if err := u.buf.lookup(id, kind); err != nil {
		return err
	}
	u.buf.Paints[id] = record
	return nil
}

func (u *Unpacked) ModifyPoints(id render.PrimitiveID, paint render.PointPaint) error {
	return u.modify(id, KindPoints, pointsRecord(paint))
}

func (u *Unpacked) ModifyLine(id render.PrimitiveID, paint render.LinePaint) error {
	return u.modify(id, KindLine, lineRecord(paint))
}

func (u *Unpacked) ModifyPolygon(id render.PrimitiveID, paint render.Paint) error {
	return u.modify(id, KindPolygon, polygonRecord(paint))
}

func (u *Unpacked) ModifyImage(id render.PrimitiveID, paint render.ImagePaint) error {
	return u.modify(id, KindImage, imageRecord(paint))
}

func (u *Unpacked) ModifyLabel(id render.PrimitiveID, paint render.LabelPaint) error {
	return u.modify(id, KindLabel, labelRecord(paint))
}

// Kind returns the kind of primitive id.
func (u *Unpacked) Kind(id render.PrimitiveID) (Kind, bool) {
	if u.buf == nil || id < 0 || int(id) >= len(u.buf.Primitives) {
		return 0, false
	}
	return u.buf.Primitives[id].Kind, true
}

func (u *Unpacked) Pack() render.PackedBundle {
	if u.buf == nil {
		panic(render.ErrConsumed)
	}
	p := &Packed{buf: u.buf}
	u.buf = nil
	return p
}
