// Package geo handles the vector side of the pipeline: lake geometries from
// the HydroLAKES export and the north-up grid a detection runs on.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/xgirouxb/open-ice/internal/raster"
)

// Grid is a north-up equirectangular grid. Origin is the top-left corner
// (min longitude, max latitude), Cell the pixel size in degrees.
type Grid struct {
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	Cell    float64 `json:"cell"`
	W       int     `json:"w"`
	H       int     `json:"h"`
}

// GridFromBound builds the smallest grid of the given cell size that covers
// bound plus a margin (in cells) on every side.
func GridFromBound(b orb.Bound, cell float64, margin int) (Grid, error) {
	if cell <= 0 {
		return Grid{}, fmt.Errorf("cell size must be positive, got %v", cell)
	}
	w := cellsFor(b.Max[0]-b.Min[0], cell) + 2*margin
	h := cellsFor(b.Max[1]-b.Min[1], cell) + 2*margin
	return Grid{
		OriginX: b.Min[0] - float64(margin)*cell,
		OriginY: b.Max[1] + float64(margin)*cell,
		Cell:    cell,
		W:       w,
		H:       h,
	}, nil
}

// cellsFor counts the cells needed to span a distance, tolerating float
// noise on exact multiples.
func cellsFor(span, cell float64) int {
	n := int(math.Ceil(span/cell - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// CellCenter returns the lon/lat of the center of cell (x, y).
func (g Grid) CellCenter(x, y int) orb.Point {
	return orb.Point{
		g.OriginX + (float64(x)+0.5)*g.Cell,
		g.OriginY - (float64(y)+0.5)*g.Cell,
	}
}

func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY - float64(g.H)*g.Cell},
		Max: orb.Point{g.OriginX + float64(g.W)*g.Cell, g.OriginY},
	}
}

// Rasterize burns a geometry into a 0/1 image on the grid using a cell-center
// point-in-polygon test. Every pixel is valid; pixels inside the geometry
// hold 1. Used with Image.UpdateMask this reproduces paint-then-mask.
func Rasterize(geom orb.Geometry, g Grid) *raster.Image {
	out := raster.NewConst(g.W, g.H, 0)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if contains(geom, g.CellCenter(x, y)) {
				out.Set(x, y, 1)
			}
		}
	}
	return out
}

func contains(geom orb.Geometry, pt orb.Point) bool {
	switch gm := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(gm, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(gm, pt)
	case orb.Ring:
		return planar.RingContains(gm, pt)
	default:
		return false
	}
}
