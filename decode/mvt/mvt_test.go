package mvt_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"sort"
	"testing"

	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/decode/mvt"
	"github.com/eak1mov/go-libmap/internal"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

var (
	testIndex  = tile.Index{X: 1, Y: 2, Z: 3}
	testBounds = orb.Bound{Min: orb.Point{1000, 2000}, Max: orb.Point{1100, 2100}}
)

func TestDecode(t *testing.T) {
	result, err := mvt.NewDecoder().Decode(context.Background(), testIndex, testBounds, internal.SampleTile(t))
	require.NoError(t, err)
	require.NoError(t, result.Skipped)
	require.Equal(t, testIndex, result.Index)
	require.Len(t, result.Features, 3)

	byLayer := make(map[string]decode.Feature)
	for _, f := range result.Features {
		byLayer[f.Layer] = f
	}

	approx := cmpopts.EquateApprox(0, 1e-9)

	poi := byLayer["poi"]
	require.Equal(t, decode.KindPoint, poi.Kind)
	if diff := cmp.Diff(orb.Point{1025, 2075}, poi.Geometry, approx); diff != "" {
		t.Errorf("poi geometry mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "cafe", poi.Properties["name"])

	water := byLayer["water"]
	require.Equal(t, decode.KindPolygon, water.Kind)
	wantBound := orb.Bound{Min: orb.Point{1025, 2025}, Max: orb.Point{1075, 2075}}
	if diff := cmp.Diff(wantBound, water.Geometry.Bound(), approx); diff != "" {
		t.Errorf("water bound mismatch (-want +got):\n%s", diff)
	}

	road := byLayer["roads"]
	require.Equal(t, decode.KindLine, road.Kind)
	require.Equal(t, "primary", road.Properties["class"])
	line, ok := road.Geometry.(orb.LineString)
	require.True(t, ok, "roads geometry is %T", road.Geometry)
	require.Len(t, line, 4)
	if diff := cmp.Diff(orb.Point{1000, 2050}, line[0], approx); diff != "" {
		t.Errorf("road start mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeGzipped(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(internal.SampleTile(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	result, err := mvt.NewDecoder().Decode(context.Background(), testIndex, testBounds, buf.Bytes())
	require.NoError(t, err)
	require.Len(t, result.Features, 3)
}

func TestDecodeLayers(t *testing.T) {
	d := mvt.NewDecoder(mvt.WithLayers("roads", "poi"))
	result, err := d.Decode(context.Background(), testIndex, testBounds, internal.SampleTile(t))
	require.NoError(t, err)

	var layers []string
	for _, f := range result.Features {
		layers = append(layers, f.Layer)
	}
	sort.Strings(layers)
	require.Equal(t, []string{"poi", "roads"}, layers)
}

func TestDecodeMalformed(t *testing.T) {
	for name, payload := range map[string][]byte{
		"Empty":   nil,
		"Garbage": {0x1a, 0x10, 0x01},
		"BadGzip": {0x1f, 0x8b, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := mvt.NewDecoder().Decode(context.Background(), testIndex, testBounds, payload)
			require.ErrorIs(t, err, decode.ErrMalformed)

			var decodeErr *decode.Error
			require.ErrorAs(t, err, &decodeErr)
			require.Equal(t, testIndex, decodeErr.Index)
		})
	}
}
