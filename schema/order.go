package schema

import (
	"cmp"
	"math/bits"
	"slices"

	"github.com/eak1mov/go-libmap/tile"
	"github.com/google/hilbert"
)

// SortHilbert orders indices by level and then along a Hilbert curve laid
// over the level grid, so that consecutive tiles are spatially close.
// Indices of unknown levels sort last by row and column.
func (s *Schema) SortHilbert(indices []tile.Index) {
	type keyed struct {
		code  int64
		index tile.Index
	}
	curves := make(map[uint32]func(tile.Index) int64)
	keys := make([]keyed, len(indices))
	for i, index := range indices {
		curve, ok := curves[index.Z]
		if !ok {
			curve = s.hilbertCurve(index.Z)
			curves[index.Z] = curve
		}
		keys[i] = keyed{code: curve(index), index: index}
	}
	slices.SortStableFunc(keys, func(a, b keyed) int {
		return cmp.Or(
			cmp.Compare(a.index.Z, b.index.Z),
			cmp.Compare(a.code, b.code),
			cmp.Compare(a.index.Y, b.index.Y),
			cmp.Compare(a.index.X, b.index.X),
		)
	})
	for i := range keys {
		indices[i] = keys[i].index
	}
}

func (s *Schema) hilbertCurve(level uint32) func(tile.Index) int64 {
	fallback := func(tile.Index) int64 { return -1 }
	lod, err := s.Lod(level)
	if err != nil {
		return fallback
	}
	grid := s.TileRange(s.bounds, lod)
	if grid.Empty() {
		return fallback
	}
	side := max(grid.MaxX-grid.MinX+1, grid.MaxY-grid.MinY+1)
	n := 1 << bits.Len64(uint64(side-1))
	h, err := hilbert.NewHilbert(n)
	if err != nil {
		return fallback
	}
	return func(index tile.Index) int64 {
		code, err := h.MapInverse(int(index.X-grid.MinX), int(index.Y-grid.MinY))
		if err != nil {
			return -1
		}
		return int64(code)
	}
}
