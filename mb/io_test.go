package mb_test

import (
	"context"
	"maps"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-libmap/fetch"
	"github.com/eak1mov/go-libmap/mb"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
)

func TestWriterReader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "tiles.mbtiles")

	tiles := map[tile.Index][]byte{
		{X: 0, Y: 0, Z: 0}: []byte("tile000"),
		{X: 1, Y: 0, Z: 1}: []byte("tile101"),
		{X: 5, Y: 2, Z: 3}: []byte("tile523"),
	}
	writerMetadata := map[string]string{"format": "pbf", "name": "test"}

	writer, err := mb.NewWriter(filePath, mb.WithMetadata(writerMetadata))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for index, tileData := range tiles {
		if err := writer.WriteTile(index, tileData); err != nil {
			t.Fatalf("WriteTile(%v) failed: %v", index, err)
		}
	}
	if err := writer.WriteTile(tile.Index{X: 5, Y: 2, Z: 3}, []byte("tile523")); err != nil {
		t.Fatalf("WriteTile(duplicate) failed: %v", err)
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reader, err := mb.NewReader(filePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	readerMetadata, err := reader.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if diff := cmp.Diff(writerMetadata, readerMetadata); diff != "" {
		t.Errorf("ReadMetadata mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(tiles, maps.Collect(tile.IterTiles(reader))); diff != "" {
		t.Errorf("VisitTiles mismatch (-want +got):\n%s", diff)
	}

	for index, want := range tiles {
		got, err := reader.Fetch(context.Background(), index)
		if err != nil {
			t.Fatalf("Fetch(%v) failed: %v", index, err)
		}
		if !cmp.Equal(got, want) {
			t.Errorf("Fetch(%v) = %q, want = %q", index, got, want)
		}
	}

	if _, err := reader.Fetch(context.Background(), tile.Index{X: 9, Y: 9, Z: 9}); !fetch.IsNotFound(err) {
		t.Errorf("Fetch(missing tile) error = %v, want not found", err)
	}
	tileData, err := reader.ReadTile(tile.Index{X: 9, Y: 9, Z: 9})
	if err != nil || len(tileData) != 0 {
		t.Errorf("ReadTile(missing tile) = %v bytes, %v; want empty tile", len(tileData), err)
	}
}
