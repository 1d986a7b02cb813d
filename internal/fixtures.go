// Package internal holds synthetic tiles and sources shared by tests.
package internal

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/eak1mov/go-libmap/fetch"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// Extent is the tile space extent of vector fixtures.
const Extent = 4096

// VectorTile encodes features given in tile space (0..Extent, y down) as an
// MVT payload.
func VectorTile(t testing.TB, layers map[string][]*geojson.Feature) []byte {
	t.Helper()
	collections := make(map[string]*geojson.FeatureCollection, len(layers))
	for name, features := range layers {
		fc := geojson.NewFeatureCollection()
		fc.Features = features
		collections[name] = fc
	}
	data, err := mvt.Marshal(mvt.NewLayers(collections))
	if err != nil {
		t.Fatalf("mvt.Marshal failed: %v", err)
	}
	return data
}

func feature(id uint64, g orb.Geometry, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.ID = id
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// SampleTile is a vector tile with one feature of every kind:
//   - "water": a square polygon covering the middle of the tile,
//   - "roads": a horizontal line through the middle,
//   - "poi": a point in the upper left quarter named "cafe".
func SampleTile(t testing.TB) []byte {
	t.Helper()
	return VectorTile(t, map[string][]*geojson.Feature{
		"water": {feature(1, orb.Polygon{{{1024, 1024}, {3072, 1024}, {3072, 3072}, {1024, 3072}, {1024, 1024}}},
			map[string]any{"kind": "lake"})},
		"roads": {feature(2, orb.LineString{{0, 2048}, {1024, 2050}, {2048, 2046}, {4096, 2048}},
			map[string]any{"class": "primary"})},
		"poi": {feature(3, orb.Point{1024, 1024}, map[string]any{"name": "cafe"})},
	})
}

// PNGTile encodes a size×size image filled with c.
func PNGTile(t testing.TB, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

// Fetcher serves tiles from memory and counts calls per index. Missing
// tiles are reported with fetch.ErrNotFound.
type Fetcher struct {
	mu    sync.Mutex
	tiles map[tile.Index][]byte
	calls map[tile.Index]int

	// Fallback, when set, serves every index not found in tiles.
	Fallback []byte
}

func NewFetcher(tiles map[tile.Index][]byte) *Fetcher {
	if tiles == nil {
		tiles = make(map[tile.Index][]byte)
	}
	return &Fetcher{tiles: tiles, calls: make(map[tile.Index]int)}
}

func (f *Fetcher) Fetch(ctx context.Context, index tile.Index) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[index]++
	if data, ok := f.tiles[index]; ok {
		return data, nil
	}
	if f.Fallback != nil {
		return f.Fallback, nil
	}
	return nil, fmt.Errorf("%w: %v", fetch.ErrNotFound, index)
}

func (f *Fetcher) Calls(index tile.Index) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[index]
}

func (f *Fetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
