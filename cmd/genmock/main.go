// Command genmock writes synthetic extracted tables so the aggregate,
// package and serve commands can be exercised without downloading raw
// reanalysis files. Values follow plausible physical ranges and are
// reproducible for a given seed.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -data-dir data \
//	  -years 2019-2020 \
//	  -months 1,7 \
//	  -bounds 40,45,-10,0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/columnar"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// samplesPerDay mirrors a six-hourly atmospheric feed.
const samplesPerDay = 4

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data", "directory the tables are written to")
	years := flag.String("years", "2019-2020", "year span, e.g. 2016-2020")
	months := flag.String("months", "1", "comma-separated months")
	boundsFlag := flag.String("bounds", "40,42,-5,-3", "minLat,maxLat,minLon,maxLon")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	first, last, err := parseSpan(*years)
	if err != nil {
		return fmt.Errorf("parse -years: %w", err)
	}
	monthList, err := parseMonths(*months)
	if err != nil {
		return fmt.Errorf("parse -months: %w", err)
	}
	bounds, err := parseBounds(*boundsFlag)
	if err != nil {
		return fmt.Errorf("parse -bounds: %w", err)
	}

	store, err := columnar.New(*dataDir)
	if err != nil {
		return err
	}

	index := gridIndex(bounds)
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	ctx := context.Background()

	var written int
	for year := first; year <= last; year++ {
		for _, month := range monthList {
			for _, v := range domain.AllVariables {
				t := synthesize(rng, v, year, month, index)
				if err := store.SaveWide(ctx, t); err != nil {
					return err
				}
				written++
			}
		}
	}

	fmt.Printf("Wrote %d tables to %s\n", written, store.Dir())
	fmt.Printf("  positions: %d\n", len(index))
	fmt.Printf("  years:     %d-%d\n", first, last)
	fmt.Printf("  months:    %v\n", monthList)
	return nil
}

// gridIndex lists the quarter-degree positions inside bounds in index order.
func gridIndex(b domain.Bounds) []domain.Position {
	var out []domain.Position
	for _, c := range b.Cells() {
		for _, p := range c.SubPositions() {
			if b.Contains(p) && p.Lon < b.MaxLon {
				out = append(out, p)
			}
		}
	}
	domain.SortPositions(out)
	return out
}

func synthesize(rng *rand.Rand, v domain.Variable, year, month int, index []domain.Position) *domain.WideTable {
	var columns []domain.ColumnKey
	if v == domain.CurrentU || v == domain.CurrentV {
		// monthly means from a single surface layer
		columns = []domain.ColumnKey{{Day: 1, Seq: 0}}
	} else {
		days := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		for day := 1; day <= days; day++ {
			for s := 0; s < samplesPerDay; s++ {
				columns = append(columns, domain.ColumnKey{Day: day, Seq: (day-1)*samplesPerDay + s})
			}
		}
	}

	values := make([][]float64, len(columns))
	for c := range columns {
		col := make([]float64, len(index))
		for r, p := range index {
			col[r] = sample(rng, v, p)
		}
		values[c] = col
	}
	return &domain.WideTable{Variable: v, Year: year, Month: month, Index: index, Columns: columns, Values: values}
}

func sample(rng *rand.Rand, v domain.Variable, p domain.Position) float64 {
	// warmer towards the equator
	climate := 300 - 0.5*math.Abs(p.Lat)
	switch v {
	case domain.WindU, domain.WindV:
		return rng.NormFloat64() * 6
	case domain.Temperature:
		return climate + rng.NormFloat64()*4
	case domain.SeaTemp:
		return climate + 1 + rng.NormFloat64()
	case domain.WaveHeight:
		return math.Abs(rng.NormFloat64() * 1.5)
	case domain.Precip:
		if rng.Float64() < 0.7 {
			return 0
		}
		return rng.ExpFloat64() * 0.0008
	case domain.CurrentU, domain.CurrentV:
		return rng.NormFloat64() * 0.3
	}
	return math.NaN()
}

func parseSpan(s string) (int, int, error) {
	lo, hi, span := strings.Cut(s, "-")
	first, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, err
	}
	if !span {
		return first, first, nil
	}
	last, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, err
	}
	if last < first {
		return 0, 0, fmt.Errorf("span %q is inverted", s)
	}
	return first, last, nil
}

func parseMonths(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("invalid month %q", part)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseBounds(s string) (domain.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, fmt.Errorf("want 4 values, got %d", len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, err
		}
		vals[i] = v
	}
	b := domain.Bounds{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}
	return b, b.Validate()
}
