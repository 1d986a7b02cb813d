package layer_test

import (
	"context"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/decode/mvt"
	"github.com/eak1mov/go-libmap/geo"
	"github.com/eak1mov/go-libmap/internal"
	"github.com/eak1mov/go-libmap/layer"
	"github.com/eak1mov/go-libmap/provider"
	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/render/software"
	"github.com/eak1mov/go-libmap/schema"
	"github.com/eak1mov/go-libmap/style"
	"github.com/eak1mov/go-libmap/text"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	red   = color.NRGBA{R: 0xff, A: 0xff}
	black = color.NRGBA{A: 0xff}
	root  = tile.Index{X: 0, Y: 0, Z: 0}
)

// testSchema covers [0,1024]² with one 256px tile at level 0 and four at
// level 1.
func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Params{
		Origin:     orb.Point{0, 1024},
		Bounds:     orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1024, 1024}},
		Lods:       []schema.Lod{{Level: 0, Resolution: 4}, {Level: 1, Resolution: 2}},
		TileWidth:  256,
		TileHeight: 256,
		YDirection: schema.TopToBottom,
		Crs:        geo.EPSG3857,
	})
	require.NoError(t, err)
	return s
}

// Level 0 view: the sample tile maps to pixels as tile space / 16, water
// covers pixels 64..192, the road runs along row 128 and the poi sits at
// (64, 64).
var (
	rootView  = render.View{Center: orb.Point{512, 512}, Resolution: 4, Width: 256, Height: 256}
	childView = render.View{Center: orb.Point{512, 512}, Resolution: 2, Width: 256, Height: 256}
	awayView  = render.View{Center: orb.Point{9000, 9000}, Resolution: 4, Width: 256, Height: 256}
)

func waterStyle(fill color.NRGBA) *style.Style {
	return &style.Style{
		Rules: []style.Rule{
			{Layer: "water", Symbol: style.Symbol{Polygon: &style.PolygonSymbol{FillColor: fill}}},
		},
		DefaultSymbol: style.Symbol{Line: &style.LineSymbol{Width: 2, StrokeColor: black}},
	}
}

type env struct {
	fetcher  *internal.Fetcher
	provider *provider.Provider
	decodes  atomic.Int32
	layer    *layer.TileLayer
	canvas   *software.Canvas
	m        *layer.Map
}

func newEnv(t *testing.T, tiles map[tile.Index][]byte, st *style.Style, opts ...layer.Option) *env {
	t.Helper()
	e := &env{fetcher: internal.NewFetcher(tiles)}
	e.provider = provider.New(e.fetcher)
	decoder := mvt.NewDecoder()
	counting := decode.DecoderFunc(func(ctx context.Context, index tile.Index, bounds orb.Bound, payload []byte) (*decode.Tile, error) {
		e.decodes.Add(1)
		return decoder.Decode(ctx, index, bounds, payload)
	})
	e.layer = layer.NewTileLayer(testSchema(t), e.provider, counting, st, opts...)
	e.canvas = software.New(256, 256)
	e.m = &layer.Map{Background: color.White, Layers: []layer.Layer{e.layer}}
	t.Cleanup(func() {
		e.layer.Close()
		e.provider.Close()
	})
	return e
}

func (e *env) frame(t *testing.T, view render.View) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.m.Prepare(ctx, view, e.canvas))
	require.NoError(t, e.m.Render(ctx, view, e.canvas))
}

func (e *env) at(x, y int) color.RGBA {
	return e.canvas.Image().RGBAAt(x, y)
}

func toRGBA(c color.NRGBA) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func TestRender(t *testing.T) {
	e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, waterStyle(blue))
	e.frame(t, rootView)

	require.Equal(t, toRGBA(blue), e.at(100, 100))
	require.Equal(t, toRGBA(black), e.at(30, 128))
	require.Equal(t, white, e.at(10, 10))
	require.Equal(t, 1, e.layer.Bundles())
	require.EqualValues(t, 1, e.decodes.Load())
	require.Equal(t, 1, e.fetcher.Calls(root))

	// packed tiles are drawn again without any work
	e.frame(t, rootView)
	require.EqualValues(t, 1, e.decodes.Load())
	require.Equal(t, 1, e.fetcher.TotalCalls())
}

func TestRenderInvalidView(t *testing.T) {
	e := newEnv(t, nil, nil)
	require.Error(t, e.m.Render(context.Background(), render.View{}, e.canvas))

	nanCenter := rootView
	nanCenter.Center = orb.Point{math.NaN(), 512}
	require.Error(t, e.m.Render(context.Background(), nanCenter, e.canvas))
	require.Error(t, e.layer.Prepare(context.Background(), nanCenter, e.canvas))
	require.Equal(t, 0, e.fetcher.TotalCalls())
}

func TestSetStyle(t *testing.T) {
	t.Run("Paint", func(t *testing.T) {
		e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, waterStyle(blue))
		e.frame(t, rootView)

		require.NoError(t, e.layer.SetStyle(waterStyle(red)))
		e.frame(t, rootView)
		require.Equal(t, toRGBA(red), e.at(100, 100))
		require.EqualValues(t, 1, e.decodes.Load())
		require.Equal(t, 1, e.fetcher.TotalCalls())
	})

	t.Run("SymbolRemoved", func(t *testing.T) {
		e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, waterStyle(blue))
		e.frame(t, rootView)

		hidden := waterStyle(blue)
		hidden.Rules = nil
		require.NoError(t, e.layer.SetStyle(hidden))
		e.frame(t, rootView)
		require.Equal(t, white, e.at(100, 100))
		require.Equal(t, toRGBA(black), e.at(30, 128))
		require.Equal(t, 1, e.layer.Bundles())
		require.EqualValues(t, 1, e.decodes.Load())
		require.Equal(t, 1, e.fetcher.TotalCalls())
	})

	t.Run("Updates", func(t *testing.T) {
		updates := make(chan *style.Style, 1)
		e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, waterStyle(blue), layer.WithStyleUpdates(updates))
		e.frame(t, rootView)

		next := waterStyle(red)
		updates <- next
		e.frame(t, rootView)
		require.Same(t, next, e.layer.Style())
		require.Equal(t, toRGBA(red), e.at(100, 100))
		require.EqualValues(t, 1, e.decodes.Load())
	})
}

func countColor(e *env, c color.RGBA) int {
	n := 0
	for y := 32; y < 96; y++ {
		for x := 32; x < 96; x++ {
			if e.at(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestLabels(t *testing.T) {
	fonts := text.NewFontService()
	require.NoError(t, fonts.LoadFont(goregular.TTF))
	require.NoError(t, fonts.Initialize())

	labelStyle := func(c color.NRGBA) *style.Style {
		ts := text.DefaultTextStyle()
		ts.FontSize = 32
		ts.FontColor = c
		return &style.Style{Rules: []style.Rule{{
			Layer:  "poi",
			Symbol: style.Symbol{Label: &style.LabelSymbol{Pattern: "{name}", TextStyle: ts}},
		}}}
	}

	e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, labelStyle(red), layer.WithFonts(fonts))
	e.canvas = software.New(256, 256, software.WithFonts(fonts))
	e.frame(t, rootView)
	require.Greater(t, countColor(e, toRGBA(red)), 10)

	require.NoError(t, e.layer.SetStyle(labelStyle(blue)))
	e.frame(t, rootView)
	require.Zero(t, countColor(e, toRGBA(red)))
	require.Greater(t, countColor(e, toRGBA(blue)), 10)
	require.EqualValues(t, 1, e.decodes.Load())
}

func TestFailedTileRetry(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	e := newEnv(t, nil, nil, layer.WithClock(clock), layer.WithRetryInterval(5*time.Second))
	e.frame(t, rootView)
	require.Equal(t, 1, e.fetcher.Calls(root))
	require.Zero(t, e.layer.Bundles())
	require.Equal(t, white, e.at(100, 100))

	e.frame(t, rootView)
	require.Equal(t, 1, e.fetcher.Calls(root))

	mu.Lock()
	now = now.Add(6 * time.Second)
	mu.Unlock()
	e.frame(t, rootView)
	require.Equal(t, 2, e.fetcher.Calls(root))
}

func TestCoveringLevels(t *testing.T) {
	e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, waterStyle(blue))
	e.frame(t, rootView)

	// level 1 tiles are missing; the packed level 0 tile covers them
	e.frame(t, childView)
	require.Equal(t, toRGBA(blue), e.at(100, 100))
	require.Equal(t, 1, e.layer.Bundles())
}

func TestBundleCache(t *testing.T) {
	e := newEnv(t, map[tile.Index][]byte{root: internal.SampleTile(t)}, waterStyle(blue), layer.WithBundleCache(0))
	e.frame(t, rootView)
	require.Equal(t, 1, e.layer.Bundles())

	e.frame(t, awayView)
	require.Zero(t, e.layer.Bundles())

	e.frame(t, rootView)
	require.Equal(t, 1, e.layer.Bundles())
	require.EqualValues(t, 2, e.decodes.Load())
	require.Equal(t, 1, e.fetcher.TotalCalls())
}
