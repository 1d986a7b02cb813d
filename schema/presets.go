package schema

import (
	"github.com/eak1mov/go-libmap/geo"
	"github.com/paulmach/orb"
)

// MercatorHalfWidth is the half-width of the EPSG:3857 square used by the
// default schema.
const MercatorHalfWidth = 20037508.342787

// StandardTopResolution is the resolution of level 0 of the 256px Web
// Mercator pyramid.
const StandardTopResolution = 156543.03392800014

// WebMercator builds an EPSG:3857 schema with square tiles of tileSize pixels
// and levels halving resolution starting from topResolution.
func WebMercator(tileSize uint32, levels int, topResolution float64) (*Schema, error) {
	lods := make([]Lod, levels)
	resolution := topResolution
	for i := range lods {
		lods[i] = Lod{Level: uint32(i), Resolution: resolution}
		resolution /= 2
	}
	return New(Params{
		Origin: orb.Point{-MercatorHalfWidth, MercatorHalfWidth},
		Bounds: orb.Bound{
			Min: orb.Point{-MercatorHalfWidth, -MercatorHalfWidth},
			Max: orb.Point{MercatorHalfWidth, MercatorHalfWidth},
		},
		Lods:       lods,
		TileWidth:  tileSize,
		TileHeight: tileSize,
		YDirection: TopToBottom,
		Crs:        geo.EPSG3857,
	})
}

// DefaultWebMercator returns the 1024px, 16 level Web Mercator schema.
func DefaultWebMercator() *Schema {
	s, err := WebMercator(1024, 16, StandardTopResolution/4)
	if err != nil {
		panic(err)
	}
	return s
}

// Geographic builds an EPSG:4326 schema in degrees with square tiles of
// tileSize pixels. Level 0 holds two tiles side by side covering the world.
func Geographic(tileSize uint32, levels int) (*Schema, error) {
	lods := make([]Lod, levels)
	resolution := 180 / float64(tileSize)
	for i := range lods {
		lods[i] = Lod{Level: uint32(i), Resolution: resolution}
		resolution /= 2
	}
	return New(Params{
		Origin:     orb.Point{-180, 90},
		Bounds:     orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}},
		Lods:       lods,
		TileWidth:  tileSize,
		TileHeight: tileSize,
		YDirection: TopToBottom,
		Crs:        geo.EPSG4326,
	})
}
