package render

import (
	"math"

	"github.com/paulmach/orb"
)

// View is the visible part of the map: a center in map coordinates, a
// resolution in map units per pixel and a size in pixels.
type View struct {
	Center     orb.Point
	Resolution float64
	Width      int
	Height     int
}

func (v View) Valid() bool {
	return finite(v.Center[0]) && finite(v.Center[1]) &&
		v.Resolution > 0 && !math.IsInf(v.Resolution, 0) && v.Width > 0 && v.Height > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Extent returns the map area covered by the view.
func (v View) Extent() orb.Bound {
	halfW := float64(v.Width) * v.Resolution / 2
	halfH := float64(v.Height) * v.Resolution / 2
	return orb.Bound{
		Min: orb.Point{v.Center[0] - halfW, v.Center[1] - halfH},
		Max: orb.Point{v.Center[0] + halfW, v.Center[1] + halfH},
	}
}

// ToPixel maps a map point to pixel coordinates, y pointing down.
func (v View) ToPixel(p orb.Point) (x, y float64) {
	x = (p[0]-v.Center[0])/v.Resolution + float64(v.Width)/2
	y = (v.Center[1]-p[1])/v.Resolution + float64(v.Height)/2
	return x, y
}

func (v View) FromPixel(x, y float64) orb.Point {
	return orb.Point{
		v.Center[0] + (x-float64(v.Width)/2)*v.Resolution,
		v.Center[1] - (y-float64(v.Height)/2)*v.Resolution,
	}
}

// Pan moves the view by dx, dy pixels.
func (v View) Pan(dx, dy float64) View {
	v.Center = orb.Point{v.Center[0] + dx*v.Resolution, v.Center[1] - dy*v.Resolution}
	return v
}

// Zoom multiplies the resolution by factor; factor < 1 zooms in.
func (v View) Zoom(factor float64) View {
	v.Resolution *= factor
	return v
}
