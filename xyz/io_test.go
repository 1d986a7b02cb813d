package xyz_test

import (
	"maps"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/eak1mov/go-libmap/xyz"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	rootDir := t.TempDir()
	pattern := filepath.Join(rootDir, "{z}", "{x}", "{y}.png")

	tiles := map[tile.Index][]byte{
		{X: 0, Y: 0, Z: 0}: []byte("tile000"),
		{X: 1, Y: 1, Z: 1}: []byte("tile111"),
		{X: 0, Y: 0, Z: 6}: []byte("tile006"),
		{X: 6, Y: 6, Z: 6}: []byte("tile666"),
		{X: 7, Y: 3, Z: 4}: []byte("tile734"),
	}

	writer, err := xyz.NewWriter(pattern)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	for index, tileData := range tiles {
		if err := writer.WriteTile(index, tileData); err != nil {
			t.Errorf("WriteTile(%v) failed: %v", index, err)
		}
	}

	if err := writer.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	reader, err := xyz.NewReader(pattern)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	if diff := cmp.Diff(tiles, maps.Collect(tile.IterTiles(reader))); diff != "" {
		t.Errorf("VisitTiles mismatch (-want +got):\n%s", diff)
	}

	for index, tileData := range tiles {
		data, err := reader.ReadTile(index)
		if err != nil {
			t.Errorf("ReadTile(%v) failed: %v", index, err)
			continue
		}
		if !cmp.Equal(data, tileData) {
			t.Errorf("ReadTile data mismatch for %v", index)
		}
	}

	tileData, err := reader.ReadTile(tile.Index{X: 9, Y: 9, Z: 9})
	if err != nil {
		t.Errorf("ReadTile(missing tile) failed: %v", err)
	}
	if len(tileData) != 0 {
		t.Errorf("ReadTile(missing tile) expected empty tile, got: %v bytes", len(tileData))
	}
}

func TestReaderEmptyDir(t *testing.T) {
	reader, err := xyz.NewReader("/tiles/{z}/{x}/{y}.png", xyz.WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)

	indices, err := tile.Indices(reader)
	require.NoError(t, err)
	require.Empty(t, indices)
}

func TestInvalidPattern(t *testing.T) {
	for _, pattern := range []string{"", "{z}/{x}.png", "{x}/{y}.png", "tiles/{z}/{y}"} {
		_, err := xyz.NewReader(pattern)
		require.ErrorIs(t, err, xyz.ErrInvalidPattern, pattern)
		_, err = xyz.NewWriter(pattern)
		require.ErrorIs(t, err, xyz.ErrInvalidPattern, pattern)
		_, err = xyz.NewCache(pattern)
		require.ErrorIs(t, err, xyz.ErrInvalidPattern, pattern)
	}
}

func TestPatternWithMetaCharacters(t *testing.T) {
	fs := afero.NewMemMapFs()
	pattern := "/tiles (v1.0)/{z}/{x}/{y}+.png"

	writer, err := xyz.NewWriter(pattern, xyz.WithFs(fs))
	require.NoError(t, err)
	require.NoError(t, writer.WriteTile(tile.Index{X: 1, Y: 2, Z: 3}, []byte("data")))

	reader, err := xyz.NewReader(pattern, xyz.WithFs(fs))
	require.NoError(t, err)
	indices, err := tile.Indices(reader)
	require.NoError(t, err)
	require.Equal(t, []tile.Index{{X: 1, Y: 2, Z: 3}}, indices)
}
