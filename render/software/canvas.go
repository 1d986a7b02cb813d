// Package software is a raster graphics backend drawing packed bundles into
// an *image.RGBA.
package software

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/render/tess"
	"github.com/eak1mov/go-libmap/text"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// clipMargin keeps strokes and caps crossing the canvas edge intact.
const clipMargin = 64

// Canvas implements render.Canvas over an in-memory image. It is not safe
// for concurrent use.
type Canvas struct {
	img    *image.RGBA
	fonts  *text.FontService
	logger *slog.Logger
	z      *vector.Rasterizer
}

var _ render.Canvas = (*Canvas)(nil)

type config struct {
	Fonts  *text.FontService
	Logger *slog.Logger
}

type Option func(*config)

// WithFonts enables label drawing.
func WithFonts(fonts *text.FontService) Option {
	return func(c *config) { c.Fonts = fonts }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func New(width, height int, opts ...Option) *Canvas {
	return NewFromImage(image.NewRGBA(image.Rect(0, 0, width, height)), opts...)
}

// NewFromImage creates a canvas drawing into img.
func NewFromImage(img *image.RGBA, opts ...Option) *Canvas {
	config := config{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	size := img.Bounds().Size()
	return &Canvas{
		img:    img,
		fonts:  config.Fonts,
		logger: config.Logger,
		z:      vector.NewRasterizer(size.X, size.Y),
	}
}

func (c *Canvas) Image() *image.RGBA {
	return c.img
}

func (c *Canvas) Size() (width, height int) {
	size := c.img.Bounds().Size()
	return size.X, size.Y
}

func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *Canvas) CreateBundle() render.RenderBundle {
	return tess.NewBundle()
}

func (c *Canvas) PackBundle(bundle render.RenderBundle) (render.PackedBundle, error) {
	b, ok := bundle.(*tess.Bundle)
	if !ok {
		return nil, fmt.Errorf("libmap: bundle %T was not created by a software canvas", bundle)
	}
	return b.Pack()
}

// DrawBundles draws bundles in order, primitives in the order they were added.
func (c *Canvas) DrawBundles(view render.View, bundles ...render.PackedBundle) error {
	if !view.Valid() {
		return fmt.Errorf("libmap: invalid view %+v", view)
	}
	w, h := c.Size()
	visible := view.Extent().Pad(clipMargin * view.Resolution)

	for _, bundle := range bundles {
		packed, ok := bundle.(*tess.Packed)
		if !ok {
			return fmt.Errorf("libmap: bundle %T was not packed by a software canvas", bundle)
		}
		buf, err := packed.Buffers()
		if err != nil {
			return err
		}
		if buf.Len() == 0 || !buf.Bound.Intersects(visible) {
			continue
		}

		d := drawer{c: c, view: view, buf: buf, clip: orb.Bound{
			Min: orb.Point{-clipMargin, -clipMargin},
			Max: orb.Point{float64(w + clipMargin), float64(h + clipMargin)},
		}}
		for id := range buf.Primitives {
			d.draw(render.PrimitiveID(id))
		}
	}
	return nil
}

type drawer struct {
	c    *Canvas
	view render.View
	buf  *tess.Buffers
	clip orb.Bound
}

func (d *drawer) toPixels(points []orb.Point) orb.LineString {
	result := make(orb.LineString, len(points))
	for i, p := range points {
		x, y := d.view.ToPixel(p)
		result[i] = orb.Point{x, y}
	}
	return result
}

func (d *drawer) draw(id render.PrimitiveID) {
	prim := d.buf.Primitives[id]
	paint := d.buf.Paints[id]
	contours := d.buf.ContoursOf(id)

	switch prim.Kind {
	case tess.KindPolygon:
		d.fillPolygon(contours, paint.Paint())
	case tess.KindLine:
		for _, c := range contours {
			d.strokeLine(d.toPixels(c), paint.LinePaint())
		}
	case tess.KindPoints:
		d.drawPoints(contours, paint.PointPaint())
	case tess.KindImage:
		d.drawImage(d.buf.Images[prim.Aux].Image, d.toPixels(contours[0]), paint.ImagePaint())
	case tess.KindLabel:
		d.drawLabel(d.buf.Labels[prim.Aux].Run, d.toPixels(contours[0])[0], paint.LabelPaint())
	}
}

func (d *drawer) begin() *vector.Rasterizer {
	w, h := d.c.Size()
	d.c.z.Reset(w, h)
	d.c.z.DrawOp = draw.Over
	return d.c.z
}

func (d *drawer) fill(z *vector.Rasterizer, col color.NRGBA) {
	if col.A == 0 {
		return
	}
	z.Draw(d.c.img, d.c.img.Bounds(), image.NewUniform(col), image.Point{})
}

func addPath(z *vector.Rasterizer, path []orb.Point) {
	if len(path) < 3 {
		return
	}
	z.MoveTo(float32(path[0][0]), float32(path[0][1]))
	for _, p := range path[1:] {
		z.LineTo(float32(p[0]), float32(p[1]))
	}
	z.ClosePath()
}

func (d *drawer) fillPolygon(contours [][]orb.Point, paint render.Paint) {
	z := d.begin()
	for _, c := range contours {
		ring := clip.Ring(d.clip, orb.Ring(d.toPixels(c)))
		addPath(z, ring)
	}
	d.fill(z, paint.Color)
}

// circle appends a counter-clockwise circle approximation.
func circle(center orb.Point, radius float64) []orb.Point {
	segments := max(8, min(64, int(radius*4)))
	result := make([]orb.Point, segments)
	for i := range segments {
		a := 2 * math.Pi * float64(i) / float64(segments)
		result[i] = orb.Point{center[0] + radius*math.Cos(a), center[1] - radius*math.Sin(a)}
	}
	return result
}

func (d *drawer) drawPoints(contours [][]orb.Point, paint render.PointPaint) {
	radius := paint.Size / 2
	if radius <= 0 {
		return
	}
	z := d.begin()
	for _, c := range contours {
		for _, p := range d.toPixels(c) {
			if !d.clip.Contains(p) {
				continue
			}
			addPath(z, circle(p, radius))
		}
	}
	d.fill(z, paint.Color)
}

// strokeLine outlines every segment as a quad; joins and round caps are
// circles. All shapes share one orientation so coverage accumulates.
func (d *drawer) strokeLine(line orb.LineString, paint render.LinePaint) {
	halfWidth := paint.Width / 2
	if halfWidth <= 0 || len(line) < 2 {
		return
	}

	if paint.Offset != 0 {
		line = offsetLine(line, paint.Offset)
	}

	z := d.begin()
	for _, part := range clip.LineString(d.clip, line) {
		for i := 1; i < len(part); i++ {
			p0, p1 := part[i-1], part[i]
			nx, ny, ok := normal(p0, p1)
			if !ok {
				continue
			}
			nx, ny = nx*halfWidth, ny*halfWidth
			addPath(z, []orb.Point{
				{p0[0] - nx, p0[1] - ny},
				{p1[0] - nx, p1[1] - ny},
				{p1[0] + nx, p1[1] + ny},
				{p0[0] + nx, p0[1] + ny},
			})
		}
		for i := 1; i < len(part)-1; i++ {
			addPath(z, circle(part[i], halfWidth))
		}
	}
	if paint.Cap == render.CapRound {
		for _, end := range []orb.Point{line[0], line[len(line)-1]} {
			if d.clip.Contains(end) {
				addPath(z, circle(end, halfWidth))
			}
		}
	}
	d.fill(z, paint.Color)
}

// normal returns the unit left normal of p0->p1 in pixel space.
func normal(p0, p1 orb.Point) (nx, ny float64, ok bool) {
	dx, dy := p1[0]-p0[0], p1[1]-p0[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return 0, 0, false
	}
	return dy / length, -dx / length, true
}

func offsetLine(line orb.LineString, offset float64) orb.LineString {
	result := make(orb.LineString, 0, len(line))
	for i, p := range line {
		var nx, ny float64
		var ok bool
		switch {
		case i+1 < len(line):
			nx, ny, ok = normal(p, line[i+1])
		default:
			nx, ny, ok = normal(line[i-1], p)
		}
		if !ok {
			result = append(result, p)
			continue
		}
		result = append(result, orb.Point{p[0] + nx*offset, p[1] + ny*offset})
	}
	return result
}

// drawImage maps img onto quad (top-left, top-right, bottom-right,
// bottom-left in pixels) with an affine transform.
func (d *drawer) drawImage(img image.Image, quad orb.LineString, paint render.ImagePaint) {
	if paint.Opacity == 0 || len(quad) != 4 {
		return
	}
	sr := img.Bounds()
	sw, sh := float64(sr.Dx()), float64(sr.Dy())
	if sw == 0 || sh == 0 {
		return
	}
	tl, tr, bl := quad[0], quad[1], quad[3]
	s2d := f64.Aff3{
		(tr[0] - tl[0]) / sw, (bl[0] - tl[0]) / sh, tl[0] - (tr[0]-tl[0])/sw*float64(sr.Min.X) - (bl[0]-tl[0])/sh*float64(sr.Min.Y),
		(tr[1] - tl[1]) / sw, (bl[1] - tl[1]) / sh, tl[1] - (tr[1]-tl[1])/sw*float64(sr.Min.X) - (bl[1]-tl[1])/sh*float64(sr.Min.Y),
	}

	var opts *draw.Options
	if paint.Opacity < 255 {
		opts = &draw.Options{DstMask: image.NewUniform(color.Alpha{A: paint.Opacity})}
	}
	draw.BiLinear.Transform(d.c.img, s2d, img, sr, draw.Over, opts)
}

func (d *drawer) drawLabel(run text.Run, anchor orb.Point, paint render.LabelPaint) {
	if d.c.fonts == nil || run.Text == "" || !d.clip.Contains(anchor) {
		return
	}
	face, err := d.c.fonts.Face(run.Style)
	if err != nil {
		d.c.logger.Debug("libmap: label skipped", "text", run.Text, "error", err)
		return
	}

	run.Style.HorizontalAlignment = paint.HAlign
	run.Style.VerticalAlignment = paint.VAlign
	dx, dy := run.Offset()
	x, y := anchor[0]+dx, anchor[1]+dy

	if paint.OutlineWidth > 0 && paint.OutlineColor.A > 0 {
		const steps = 8
		for i := range steps {
			a := 2 * math.Pi * float64(i) / steps
			drawString(d.c.img, face, paint.OutlineColor, run.Text,
				x+paint.OutlineWidth*math.Cos(a), y+paint.OutlineWidth*math.Sin(a))
		}
	}
	drawString(d.c.img, face, paint.Color, run.Text, x, y)
}

func drawString(dst draw.Image, face font.Face, col color.NRGBA, s string, x, y float64) {
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(x * 64)), Y: fixed.Int26_6(math.Round(y * 64))},
	}
	drawer.DrawString(s)
}
