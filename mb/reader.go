// Package mb provides API for reading and writing tiles in MBTiles format.
//
// MBTiles rows follow the TMS scheme; indices are flipped to and from the
// XYZ scheme used by tile.Index at the package boundary.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eak1mov/go-libmap/fetch"
	"github.com/eak1mov/go-libmap/tile"
)

// Reader implements tile.Reader, tile.Visitor and tile.Fetcher for MBTiles format.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader creates a new Reader for the given MBTiles file path.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metadata, nil
}

func flipRow(y int64, z uint32) int64 {
	return (int64(1) << z) - 1 - y
}

func (r *Reader) ReadTile(index tile.Index) ([]byte, error) {
	data, err := r.Fetch(context.Background(), index)
	if errors.Is(err, fetch.ErrNotFound) {
		return make([]byte, 0), nil
	}
	return data, err
}

// Fetch returns the tile payload or fetch.ErrNotFound when the file has no
// row for index.
func (r *Reader) Fetch(ctx context.Context, index tile.Index) ([]byte, error) {
	var tileData []byte
	err := r.stmt.QueryRowContext(ctx, index.Z, index.X, flipRow(index.Y, index.Z)).Scan(&tileData)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(tileData) == 0) {
		return nil, fmt.Errorf("%w: %v", fetch.ErrNotFound, index)
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

func (r *Reader) VisitTiles(visitor func(tile.Index, []byte) error) error {
	rows, err := r.db.Query("SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var x, y int64
		var z uint32
		var tileData []byte

		if err := rows.Scan(&z, &x, &y, &tileData); err != nil {
			return err
		}

		if err := visitor(tile.Index{X: x, Y: flipRow(y, z), Z: z}, tileData); err != nil {
			return err
		}
	}

	return rows.Err()
}
