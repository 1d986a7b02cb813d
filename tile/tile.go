// Package tile provides common tile interfaces and types.
package tile

import (
	"context"
	"fmt"
)

// Index addresses one tile inside a tile schema: X and Y are column and row
// in the level grid, Z is the level of detail.
type Index struct {
	X int64
	Y int64
	Z uint32
}

func (i Index) String() string {
	return fmt.Sprintf("%d/%d/%d", i.Z, i.X, i.Y)
}

// Fetcher is the capability to retrieve raw tile payloads by index.
// Implementations may block on I/O and must honour ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, index Index) ([]byte, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, index Index) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, index Index) ([]byte, error) {
	return f(ctx, index)
}

// Writer defines an interface for writing tiles to a tileset.
type Writer interface {
	// WriteTile writes a single tile to the tileset.
	WriteTile(index Index, tileData []byte) error

	// Finalize completes the writing process: flushes buffers, writes indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadTile reads a single tile from the tileset.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(index Index) ([]byte, error)
}

type Visitor interface {
	// VisitTiles visits all tiles in the tileset, calling the visitor for each.
	// Order of tiles, upfront cpu and memory consumption are implementation-defined.
	VisitTiles(visitor func(Index, []byte) error) error
}
