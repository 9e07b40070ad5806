package domain

import (
	"fmt"
	"math"
	"slices"
)

// Resolution is the edge length of the grid mesh in degrees.
const Resolution = 0.25

// SubOffsets are the offsets added to a whole-degree base to reach the
// quarter-degree sub-positions stored in one object.
var SubOffsets = [4]float64{0, 0.25, 0.5, 0.75}

// Position is a quarter-degree grid point.
type Position struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NewPosition snaps raw coordinates onto the grid and normalizes longitude.
func NewPosition(lon, lat float64) Position {
	return Position{Lon: Snap(FixLon(lon)), Lat: Snap(lat)}
}

func (p Position) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lon, p.Lat)
}

// Cell returns the whole-degree cell holding p.
func (p Position) Cell() Cell {
	return Cell{Lat: int(math.Floor(p.Lat)), Lon: int(math.Floor(p.Lon))}
}

// Snap rounds v to the nearest grid value.
func Snap(v float64) float64 {
	s := math.Round(v/Resolution) * Resolution
	if s == 0 {
		return 0 // drop negative zero
	}
	return s
}

// FixLon maps any longitude onto the equivalent angle in [-180, 180).
func FixLon(lon float64) float64 {
	r := math.Mod(lon+180, 360)
	if r < 0 {
		r += 360
	}
	return r - 180
}

// ComparePositions orders positions by longitude, then latitude.
func ComparePositions(a, b Position) int {
	switch {
	case a.Lon < b.Lon:
		return -1
	case a.Lon > b.Lon:
		return 1
	case a.Lat < b.Lat:
		return -1
	case a.Lat > b.Lat:
		return 1
	}
	return 0
}

// SortPositions sorts positions in index order.
func SortPositions(ps []Position) {
	slices.SortFunc(ps, ComparePositions)
}

// IndexEqual reports whether two table indexes hold the same positions in
// the same order.
func IndexEqual(a, b []Position) bool {
	return slices.Equal(a, b)
}

// Cell is a whole-degree grid cell identified by its lower corner.
type Cell struct {
	Lat int
	Lon int
}

// SubPositions returns the 16 quarter-degree positions of the cell.
func (c Cell) SubPositions() []Position {
	out := make([]Position, 0, len(SubOffsets)*len(SubOffsets))
	for _, dlon := range SubOffsets {
		for _, dlat := range SubOffsets {
			out = append(out, Position{Lon: float64(c.Lon) + dlon, Lat: float64(c.Lat) + dlat})
		}
	}
	return out
}

// Bounds is a lat/lon rectangle in degrees.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// WorldBounds covers the whole processed grid.
var WorldBounds = Bounds{MinLat: -70, MaxLat: 70, MinLon: -180, MaxLon: 180}

// Contains reports whether p lies in the closed rectangle.
func (b Bounds) Contains(p Position) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Validate checks the rectangle against the processed grid.
func (b Bounds) Validate() error {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("bounds: min exceeds max: %+v", b)
	}
	if b.MinLat < WorldBounds.MinLat || b.MaxLat > WorldBounds.MaxLat {
		return fmt.Errorf("bounds: latitude outside [%g, %g]: %+v", WorldBounds.MinLat, WorldBounds.MaxLat, b)
	}
	if b.MinLon < WorldBounds.MinLon || b.MaxLon > WorldBounds.MaxLon {
		return fmt.Errorf("bounds: longitude outside [%g, %g]: %+v", WorldBounds.MinLon, WorldBounds.MaxLon, b)
	}
	return nil
}

// Cells lists the whole-degree cells of the rectangle. Latitude cells run to
// MaxLat inclusive; longitude cells stop before MaxLon because 180 and -180
// are the same meridian.
func (b Bounds) Cells() []Cell {
	minLat, maxLat := int(math.Floor(b.MinLat)), int(math.Floor(b.MaxLat))
	minLon, maxLon := int(math.Floor(b.MinLon)), int(math.Ceil(b.MaxLon))
	out := make([]Cell, 0, (maxLat-minLat+1)*(maxLon-minLon))
	for lon := minLon; lon < maxLon; lon++ {
		for lat := minLat; lat <= maxLat; lat++ {
			out = append(out, Cell{Lat: lat, Lon: lon})
		}
	}
	return out
}
