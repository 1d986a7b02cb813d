package layer

import (
	"slices"

	"github.com/eak1mov/go-libmap/decode"
	"github.com/eak1mov/go-libmap/render"
	"github.com/eak1mov/go-libmap/style"
	"github.com/eak1mov/go-libmap/text"
	"github.com/paulmach/orb"
)

const noPrimitive render.PrimitiveID = -1

type role uint8

const (
	rolePolygon role = iota
	roleLine
	rolePoints
	roleLabel
)

// step is one primitive derived from a feature and its symbol.
type step struct {
	id       render.PrimitiveID
	role     role
	feature  int
	geometry orb.Geometry
	label    string
	symbol   style.Symbol
}

func (s *step) modify(u render.UnpackedBundle) error {
	switch s.role {
	case rolePolygon:
		return u.ModifyPolygon(s.id, s.symbol.PolygonPaint())
	case roleLine:
		return u.ModifyLine(s.id, s.symbol.LinePaint())
	case rolePoints:
		return u.ModifyPoints(s.id, s.symbol.PointPaint())
	default:
		if s.id == noPrimitive {
			return nil
		}
		return u.ModifyLabel(s.id, render.LabelPaintOf(s.symbol.Label.TextStyle))
	}
}

// plan lists the primitives of a decoded tile under the current style.
func (l *TileLayer) plan(t *decode.Tile) []step {
	labels := l.fonts != nil && l.fonts.Initialized()
	var steps []step
	for i, f := range t.Features {
		sym := l.style.Resolve(f.Layer, f.Properties)
		switch f.Kind {
		case decode.KindPolygon:
			if sym.Polygon == nil {
				continue
			}
			for _, p := range polygons(f.Geometry) {
				steps = append(steps, step{role: rolePolygon, feature: i, geometry: p, symbol: sym})
			}
		case decode.KindLine:
			if sym.Line == nil {
				continue
			}
			for _, ls := range lines(f.Geometry) {
				steps = append(steps, step{role: roleLine, feature: i, geometry: ls, symbol: sym})
			}
		case decode.KindPoint:
			points := points(f.Geometry)
			if sym.Point != nil {
				steps = append(steps, step{role: rolePoints, feature: i, geometry: points, symbol: sym})
			}
			if sym.Label == nil || !labels {
				continue
			}
			label := sym.Label.Text(f.Properties)
			if label == "" {
				continue
			}
			for _, p := range points {
				steps = append(steps, step{role: roleLabel, feature: i, geometry: p, label: label, symbol: sym})
			}
		}
	}
	return steps
}

// sameShape reports whether two plans produce the same primitives, so that
// one can be turned into the other by changing paints only.
func sameShape(a, b []step) bool {
	return slices.EqualFunc(a, b, func(x, y step) bool {
		if x.role != y.role || x.feature != y.feature {
			return false
		}
		if x.role != roleLabel {
			return true
		}
		return x.label == y.label && sameFont(x.symbol.Label.TextStyle, y.symbol.Label.TextStyle)
	})
}

func sameFont(a, b text.TextStyle) bool {
	return slices.Equal(a.FontFamily, b.FontFamily) &&
		a.FontSize == b.FontSize &&
		a.Weight == b.Weight &&
		a.Style == b.Style
}

func polygons(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Ring:
		return []orb.Polygon{{g}}
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	}
	return nil
}

func lines(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}
	case orb.MultiLineString:
		return g
	}
	return nil
}

func points(g orb.Geometry) orb.MultiPoint {
	switch g := g.(type) {
	case orb.Point:
		return orb.MultiPoint{g}
	case orb.MultiPoint:
		return g
	}
	return nil
}
