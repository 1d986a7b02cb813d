package software_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/render/software"
	"github.com/eak1mov/go-libmap/render/tess"
	"github.com/eak1mov/go-libmap/text"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

// testView maps map coordinates 0..64 onto a 64x64 canvas, one unit per pixel.
var testView = render.View{Center: orb.Point{32, 32}, Resolution: 1, Width: 64, Height: 64}

func newCanvas(t *testing.T, opts ...software.Option) *software.Canvas {
	t.Helper()
	c := software.New(64, 64, opts...)
	c.Clear(white)
	return c
}

// at returns the pixel for map point (x, y).
func at(c *software.Canvas, x, y int) color.RGBA {
	return c.Image().RGBAAt(x, 64-y)
}

func packBundle(t *testing.T, c *software.Canvas, fill func(render.RenderBundle)) render.PackedBundle {
	t.Helper()
	b := c.CreateBundle()
	fill(b)
	packed, err := c.PackBundle(b)
	require.NoError(t, err)
	return packed
}

func TestDrawPolygon(t *testing.T) {
	c := newCanvas(t)
	packed := packBundle(t, c, func(b render.RenderBundle) {
		b.AddPolygon(orb.Polygon{
			{{8, 8}, {56, 8}, {56, 56}, {8, 56}, {8, 8}},
			{{24, 24}, {24, 40}, {40, 40}, {40, 24}, {24, 24}},
		}, render.Paint{Color: red}, 1)
	})
	require.NoError(t, c.DrawBundles(testView, packed))

	require.Equal(t, color.RGBA{R: 255, A: 255}, at(c, 16, 16))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, 32, 32), "hole must stay empty")
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, 2, 2))
}

func TestDrawLine(t *testing.T) {
	for _, tc := range []struct {
		name    string
		paint   render.LinePaint
		covered []image.Point
		empty   []image.Point
	}{
		{
			name:    "Round",
			paint:   render.LinePaint{Color: blue, Width: 6, Cap: render.CapRound},
			covered: []image.Point{{32, 32}, {32, 34}, {9, 32}},
			empty:   []image.Point{{32, 40}, {4, 32}},
		},
		{
			name:    "Butt",
			paint:   render.LinePaint{Color: blue, Width: 6, Cap: render.CapButt},
			covered: []image.Point{{32, 32}, {12, 32}},
			empty:   []image.Point{{8, 32}},
		},
		{
			name:    "Offset",
			paint:   render.LinePaint{Color: blue, Width: 2, Offset: 8},
			covered: []image.Point{{32, 40}},
			empty:   []image.Point{{32, 32}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newCanvas(t)
			packed := packBundle(t, c, func(b render.RenderBundle) {
				b.AddLine(orb.LineString{{10, 32}, {54, 32}}, tc.paint, 1)
			})
			require.NoError(t, c.DrawBundles(testView, packed))

			for _, p := range tc.covered {
				require.Equal(t, color.RGBA{B: 255, A: 255}, at(c, p.X, p.Y), "pixel %v", p)
			}
			for _, p := range tc.empty {
				require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, p.X, p.Y), "pixel %v", p)
			}
		})
	}
}

func TestDrawPoints(t *testing.T) {
	c := newCanvas(t)
	packed := packBundle(t, c, func(b render.RenderBundle) {
		b.AddPoints([]orb.Point{{16, 16}, {48, 48}}, render.PointPaint{Color: green, Size: 8})
	})
	require.NoError(t, c.DrawBundles(testView, packed))

	require.Equal(t, color.RGBA{G: 255, A: 255}, at(c, 16, 16))
	require.Equal(t, color.RGBA{G: 255, A: 255}, at(c, 48, 48))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, 32, 32))
}

func TestDrawImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			src.Set(x, y, red)
		}
	}
	quad := [4]orb.Point{{16, 48}, {48, 48}, {48, 16}, {16, 16}}

	c := newCanvas(t)
	opaque := packBundle(t, c, func(b render.RenderBundle) {
		b.AddImage(src, quad, render.ImagePaint{Opacity: 255})
	})
	require.NoError(t, c.DrawBundles(testView, opaque))
	require.Equal(t, color.RGBA{R: 255, A: 255}, at(c, 32, 32))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, 8, 8))

	c = newCanvas(t)
	transparent := packBundle(t, c, func(b render.RenderBundle) {
		b.AddImage(src, quad, render.ImagePaint{Opacity: 0})
	})
	require.NoError(t, c.DrawBundles(testView, transparent))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, 32, 32))
}

func TestDrawLabel(t *testing.T) {
	fonts := text.NewFontService()
	require.NoError(t, fonts.LoadFont(goregular.TTF))
	require.NoError(t, fonts.Initialize())

	style := text.DefaultTextStyle()
	style.FontSize = 24
	run, err := fonts.Shape("HH", style)
	require.NoError(t, err)

	c := newCanvas(t, software.WithFonts(fonts))
	packed := packBundle(t, c, func(b render.RenderBundle) {
		b.AddLabel(orb.Point{32, 32}, run, render.LabelPaint{Color: red})
	})
	require.NoError(t, c.DrawBundles(testView, packed))

	painted := 0
	for y := range 64 {
		for x := range 64 {
			if c.Image().RGBAAt(x, y).G < 128 {
				painted++
			}
		}
	}
	require.Greater(t, painted, 20)
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, at(c, 2, 2))

	// without a font service labels are skipped
	c = newCanvas(t)
	packed = packBundle(t, c, func(b render.RenderBundle) {
		b.AddLabel(orb.Point{32, 32}, run, render.LabelPaint{Color: red})
	})
	require.NoError(t, c.DrawBundles(testView, packed))
}

func TestRedrawAfterModify(t *testing.T) {
	c := newCanvas(t)
	var id render.PrimitiveID
	packed := packBundle(t, c, func(b render.RenderBundle) {
		id = b.AddPolygon(orb.Polygon{{{0, 0}, {64, 0}, {64, 64}, {0, 64}, {0, 0}}}, render.Paint{Color: red}, 1)
	})
	require.NoError(t, c.DrawBundles(testView, packed))
	require.Equal(t, color.RGBA{R: 255, A: 255}, at(c, 32, 32))

	unpacked := packed.Unpack()
	require.NoError(t, unpacked.ModifyPolygon(id, render.Paint{Color: green}))
	packed = unpacked.Pack()

	c.Clear(white)
	require.NoError(t, c.DrawBundles(testView, packed))
	require.Equal(t, color.RGBA{G: 255, A: 255}, at(c, 32, 32))
}

type foreignBundle struct{ render.RenderBundle }

func TestPackErrors(t *testing.T) {
	c := newCanvas(t)
	_, err := c.PackBundle(foreignBundle{tess.NewBundle()})
	require.Error(t, err)

	packed := packBundle(t, c, func(b render.RenderBundle) {
		b.AddPoints([]orb.Point{{1, 1}}, render.PointPaint{Color: red, Size: 2})
	})
	packed.Unpack()
	require.ErrorIs(t, c.DrawBundles(testView, packed), render.ErrConsumed)

	require.Error(t, c.DrawBundles(render.View{}, packBundle(t, c, func(render.RenderBundle) {})))
}
