// Package schema defines tile schemas: the pyramid of levels of detail and the
// mapping between tile indices and planar extents.
package schema

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/eak1mov/go-libmap/geo"
	"github.com/eak1mov/go-libmap/tile"
	"github.com/paulmach/orb"
)

var (
	ErrUnknownLevel  = errors.New("libmap: unknown level of detail")
	ErrInvalidSchema = errors.New("libmap: invalid tile schema")
)

// VerticalDirection tells which way tile rows grow from the schema origin.
type VerticalDirection int

const (
	TopToBottom VerticalDirection = iota
	BottomToTop
)

func (d VerticalDirection) String() string {
	if d == BottomToTop {
		return "bottom-to-top"
	}
	return "top-to-bottom"
}

// Lod is one level of the tile pyramid. Resolution is the number of map units
// covered by one pixel at that level.
type Lod struct {
	Level      uint32
	Resolution float64
}

// NewLod validates the resolution of a level.
func NewLod(level uint32, resolution float64) (Lod, error) {
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return Lod{}, fmt.Errorf("%w: level %d has resolution %v", ErrInvalidSchema, level, resolution)
	}
	return Lod{Level: level, Resolution: resolution}, nil
}

// Params are the caller-supplied parameters of a schema.
type Params struct {
	Origin     orb.Point
	Bounds     orb.Bound
	Lods       []Lod
	TileWidth  uint32
	TileHeight uint32
	YDirection VerticalDirection
	Crs        geo.Crs
}

// Schema is an immutable, validated tile schema. It is safe for concurrent use.
type Schema struct {
	origin     orb.Point
	bounds     orb.Bound
	lods       []Lod // ordered by level, lods[i].Level == i
	tileWidth  uint32
	tileHeight uint32
	yDirection VerticalDirection
	crs        geo.Crs
}

// New validates params and builds a schema. No partially valid schema is ever
// returned: any violation yields an error wrapping ErrInvalidSchema.
func New(params Params) (*Schema, error) {
	if geo.Degenerate(params.Bounds) {
		return nil, fmt.Errorf("%w: degenerate bounds %v", ErrInvalidSchema, params.Bounds)
	}
	if !onOrInside(params.Origin, params.Bounds) {
		return nil, fmt.Errorf("%w: origin %v is outside bounds", ErrInvalidSchema, params.Origin)
	}
	if params.TileWidth == 0 || params.TileHeight == 0 {
		return nil, fmt.Errorf("%w: zero tile size", ErrInvalidSchema)
	}
	if len(params.Lods) == 0 {
		return nil, fmt.Errorf("%w: no levels of detail", ErrInvalidSchema)
	}

	lods := make([]Lod, len(params.Lods))
	for i, lod := range params.Lods {
		if lod.Level != uint32(i) {
			return nil, fmt.Errorf("%w: levels must be contiguous from 0, got %d at position %d", ErrInvalidSchema, lod.Level, i)
		}
		if _, err := NewLod(lod.Level, lod.Resolution); err != nil {
			return nil, err
		}
		if i > 0 && lod.Resolution >= lods[i-1].Resolution {
			return nil, fmt.Errorf("%w: resolution of level %d does not decrease", ErrInvalidSchema, lod.Level)
		}
		lods[i] = lod
	}

	return &Schema{
		origin:     params.Origin,
		bounds:     params.Bounds,
		lods:       lods,
		tileWidth:  params.TileWidth,
		tileHeight: params.TileHeight,
		yDirection: params.YDirection,
		crs:        params.Crs,
	}, nil
}

func onOrInside(p orb.Point, b orb.Bound) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] && p[1] >= b.Min[1] && p[1] <= b.Max[1]
}

func (s *Schema) Origin() orb.Point             { return s.origin }
func (s *Schema) Bounds() orb.Bound             { return s.bounds }
func (s *Schema) TileSize() (uint32, uint32)    { return s.tileWidth, s.tileHeight }
func (s *Schema) YDirection() VerticalDirection { return s.yDirection }
func (s *Schema) Crs() geo.Crs                  { return s.crs }
func (s *Schema) Lods() []Lod                   { return append([]Lod(nil), s.lods...) }
func (s *Schema) MaxLevel() uint32              { return s.lods[len(s.lods)-1].Level }

// Lod returns the level of detail with the given level number.
func (s *Schema) Lod(level uint32) (Lod, error) {
	if int64(level) >= int64(len(s.lods)) {
		return Lod{}, fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	return s.lods[level], nil
}

// ResolutionFor returns the resolution of a level.
func (s *Schema) ResolutionFor(level uint32) (float64, error) {
	lod, err := s.Lod(level)
	if err != nil {
		return 0, err
	}
	return lod.Resolution, nil
}

// NearestLod selects the level whose resolution is closest to the requested
// one. Ties go to the coarser level; out-of-range requests clamp to the
// finest or coarsest level.
func (s *Schema) NearestLod(resolution float64) Lod {
	best := s.lods[0]
	bestDiff := math.Abs(best.Resolution - resolution)
	for _, lod := range s.lods[1:] {
		// Strict comparison keeps the coarser level on ties.
		if diff := math.Abs(lod.Resolution - resolution); diff < bestDiff {
			best, bestDiff = lod, diff
		}
	}
	return best
}

func (s *Schema) tileFootprint(lod Lod) (float64, float64) {
	return float64(s.tileWidth) * lod.Resolution, float64(s.tileHeight) * lod.Resolution
}

// rowOffset returns the distance from the origin along the row axis.
func (s *Schema) rowOffset(y float64) float64 {
	if s.yDirection == TopToBottom {
		return s.origin[1] - y
	}
	return y - s.origin[1]
}

// TileIndexFor returns the index of the tile of lod that contains point.
func (s *Schema) TileIndexFor(point orb.Point, lod Lod) tile.Index {
	tw, th := s.tileFootprint(lod)
	return tile.Index{
		X: int64(math.Floor((point[0] - s.origin[0]) / tw)),
		Y: int64(math.Floor(s.rowOffset(point[1]) / th)),
		Z: lod.Level,
	}
}

// TileBounds returns the planar extent covered by a tile.
func (s *Schema) TileBounds(index tile.Index) (orb.Bound, error) {
	lod, err := s.Lod(index.Z)
	if err != nil {
		return orb.Bound{}, err
	}
	tw, th := s.tileFootprint(lod)

	minX := s.origin[0] + float64(index.X)*tw
	maxX := s.origin[0] + float64(index.X+1)*tw
	var minY, maxY float64
	if s.yDirection == TopToBottom {
		maxY = s.origin[1] - float64(index.Y)*th
		minY = s.origin[1] - float64(index.Y+1)*th
	} else {
		minY = s.origin[1] + float64(index.Y)*th
		maxY = s.origin[1] + float64(index.Y+1)*th
	}
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, nil
}

// Range is an inclusive rectangle of tile columns and rows on one level.
type Range struct {
	MinX, MinY int64
	MaxX, MaxY int64
	Z          uint32
}

func (r Range) Empty() bool { return r.MinX > r.MaxX || r.MinY > r.MaxY }

func (r Range) Count() int64 {
	if r.Empty() {
		return 0
	}
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// TileRange returns the range of tiles of lod overlapping both extent and the
// schema bounds. Tiles that only touch the overlap along an edge are excluded.
func (s *Schema) TileRange(extent orb.Bound, lod Lod) Range {
	inter, ok := geo.Intersection(extent, s.bounds)
	if !ok {
		return Range{MinX: 0, MaxX: -1, MinY: 0, MaxY: -1, Z: lod.Level}
	}
	tw, th := s.tileFootprint(lod)

	r := Range{Z: lod.Level}
	r.MinX, r.MaxX = cellSpan(inter.Min[0]-s.origin[0], inter.Max[0]-s.origin[0], tw)
	lo, hi := s.rowOffset(inter.Min[1]), s.rowOffset(inter.Max[1])
	if lo > hi {
		lo, hi = hi, lo
	}
	r.MinY, r.MaxY = cellSpan(lo, hi, th)
	return r
}

// gridEpsilon is the fraction of a tile below which an overlap is treated as
// rounding noise, so that extents ending on a tile edge do not pick up the
// next column or row.
const gridEpsilon = 1e-9

// cellSpan returns the first and last cells of size step overlapping [lo, hi].
func cellSpan(lo, hi, step float64) (first, last int64) {
	first = int64(math.Floor(lo/step + gridEpsilon))
	last = int64(math.Ceil(hi/step-gridEpsilon)) - 1
	return first, last
}

// TilesInBounds lazily yields every tile of lod covering the intersection of
// extent and the schema bounds, row by row. A disjoint extent yields nothing.
func (s *Schema) TilesInBounds(extent orb.Bound, lod Lod) iter.Seq[tile.Index] {
	r := s.TileRange(extent, lod)
	return func(yield func(tile.Index) bool) {
		for y := r.MinY; y <= r.MaxY; y++ {
			for x := r.MinX; x <= r.MaxX; x++ {
				if !yield(tile.Index{X: x, Y: y, Z: r.Z}) {
					return
				}
			}
		}
	}
}
