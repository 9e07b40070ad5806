package query

import (
	"math"
	"slices"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// lastLon is the easternmost grid longitude; 180 is stored as -180.
const lastLon = 180 - domain.Resolution

// span is a closed longitude interval inside [-180, lastLon].
type span struct{ lo, hi float64 }

func (s span) contains(lon float64) bool { return lon >= s.lo && lon <= s.hi }

// selection is one cell to fetch and the sub-positions of it that fall
// inside the requested box.
type selection struct {
	cell      domain.Cell
	positions []domain.Position
}

// lonSpans splits the requested longitudes into at most two intervals, the
// second one starting at -180 when the box crosses the antimeridian.
func lonSpans(from, to float64) []span {
	if to-from >= 360 {
		return []span{{-180, lastLon}}
	}
	f, t := domain.FixLon(from), domain.FixLon(to)
	if f <= t {
		return []span{{f, t}}
	}
	return []span{{f, lastLon}, {-180, t}}
}

// selectCells lists the cells covering req in index order, each with the
// sub-positions that lie inside the box. Cells with no selected position
// are skipped.
func selectCells(req Request) []selection {
	spans := lonSpans(req.FromLon, req.ToLon)

	lonCells := map[int]bool{}
	for _, s := range spans {
		for lon := int(math.Floor(s.lo)); lon <= int(math.Floor(s.hi)); lon++ {
			lonCells[lon] = true
		}
	}
	lons := make([]int, 0, len(lonCells))
	for lon := range lonCells {
		lons = append(lons, lon)
	}
	slices.Sort(lons)

	var out []selection
	for _, lon := range lons {
		for lat := int(math.Floor(req.FromLat)); lat <= int(math.Floor(req.ToLat)); lat++ {
			cell := domain.Cell{Lat: lat, Lon: lon}
			var picked []domain.Position
			for _, p := range cell.SubPositions() {
				if p.Lat < req.FromLat || p.Lat > req.ToLat || p.Lat > domain.WorldBounds.MaxLat {
					continue
				}
				if slices.ContainsFunc(spans, func(s span) bool { return s.contains(p.Lon) }) {
					picked = append(picked, p)
				}
			}
			if len(picked) > 0 {
				out = append(out, selection{cell: cell, positions: picked})
			}
		}
	}
	return out
}
