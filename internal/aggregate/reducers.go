package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// vectorCounter builds the joint direction x velocity histogram of a vector
// group. Columns are "d|v" for every compass class and velocity class.
type vectorCounter struct {
	vel    domain.BinTable
	isWind bool
	dirs   []int
	vels   []int
	counts [][]int64 // [dir*len(vels)+vel][row]
}

func newVectorCounter(vel domain.BinTable, isWind bool) *vectorCounter {
	return &vectorCounter{vel: vel, isWind: isWind, dirs: domain.CompassIndexes(), vels: vel.Indexes()}
}

func (c *vectorCounter) init(rows int) {
	c.counts = zeroCounts(len(c.dirs)*len(c.vels), rows)
}

func (c *vectorCounter) add(tables []*domain.WideTable) error {
	u, v := tables[0], tables[1]
	for col := range u.Columns {
		for row := range u.Index {
			uu, vv := u.Values[col][row], v.Values[col][row]
			if math.IsNaN(uu) || math.IsNaN(vv) {
				continue
			}
			d := domain.BinDirection(domain.Direction(uu, vv, c.isWind))
			s := c.vel.BinValue(domain.Velocity(uu, vv))
			if d < 1 || s < 1 {
				return fmt.Errorf("%w: u=%g v=%g at %s", domain.ErrOutOfDomain, uu, vv, u.Index[row])
			}
			c.counts[(d-1)*len(c.vels)+(s-1)][row]++
		}
	}
	return nil
}

func (c *vectorCounter) columns() []string {
	out := make([]string, 0, len(c.dirs)*len(c.vels))
	for _, d := range c.dirs {
		for _, v := range c.vels {
			out = append(out, VectorColumn(d, v))
		}
	}
	return out
}

func (c *vectorCounter) fill(values [][]float64) { fillCounts(values, c.counts) }

// VectorColumn names the count column of a direction and velocity class.
func VectorColumn(dir, vel int) string {
	return strconv.Itoa(dir) + "|" + strconv.Itoa(vel)
}

// classCounter counts samples per class of a single-dimension table. Values
// below the first threshold fall in the implicit class 0, which is dropped.
type classCounter struct {
	table  domain.BinTable
	scale  float64
	counts [][]int64 // [class-1][row]
}

func newClassCounter(table domain.BinTable, scale float64) *classCounter {
	return &classCounter{table: table, scale: scale}
}

func (c *classCounter) init(rows int) {
	c.counts = zeroCounts(c.table.Len(), rows)
}

func (c *classCounter) add(tables []*domain.WideTable) error {
	t := tables[0]
	for col := range t.Columns {
		for row := range t.Index {
			b := c.table.BinValue(t.Values[col][row] * c.scale)
			if b < 1 {
				continue
			}
			c.counts[b-1][row]++
		}
	}
	return nil
}

func (c *classCounter) columns() []string {
	out := make([]string, 0, c.table.Len())
	for _, i := range c.table.Indexes() {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

func (c *classCounter) fill(values [][]float64) { fillCounts(values, c.counts) }

// extremumStats collects the daily maxima and minima of every year.
type extremumStats struct {
	highs [][]float64 // [row][sample]
	lows  [][]float64
}

func newExtremumStats() *extremumStats { return &extremumStats{} }

func (e *extremumStats) init(rows int) {
	e.highs = make([][]float64, rows)
	e.lows = make([][]float64, rows)
}

func (e *extremumStats) add(tables []*domain.WideTable) error {
	t := tables[0]
	for _, day := range t.DayGroups() {
		for row := range t.Index {
			hi, lo := math.Inf(-1), math.Inf(1)
			seen := false
			for _, col := range day {
				v := t.Values[col][row]
				if math.IsNaN(v) {
					continue
				}
				hi, lo = math.Max(hi, v), math.Min(lo, v)
				seen = true
			}
			if !seen {
				continue
			}
			e.highs[row] = append(e.highs[row], hi)
			e.lows[row] = append(e.lows[row], lo)
		}
	}
	return nil
}

func (e *extremumStats) columns() []string {
	return []string{"high_mean", "high_std", "low_mean", "low_std"}
}

func (e *extremumStats) fill(values [][]float64) {
	for row := range e.highs {
		values[0][row], values[1][row] = meanStd(e.highs[row])
		values[2][row], values[3][row] = meanStd(e.lows[row])
		values[0][row] -= KelvinOffset
		values[2][row] -= KelvinOffset
	}
}

// dailySums collects daily precipitation totals in millimetres. A day's sum
// is scaled by 24h / samples / accumulation, counting only the samples the
// position actually observed, so sub-sampled days estimate the full daily
// total.
type dailySums struct {
	accumulation time.Duration
	sums         [][]float64 // [row][day]
}

func newDailySums(accumulation time.Duration) *dailySums {
	return &dailySums{accumulation: accumulation}
}

func (d *dailySums) init(rows int) { d.sums = make([][]float64, rows) }

func (d *dailySums) add(tables []*domain.WideTable) error {
	t := tables[0]
	for _, day := range t.DayGroups() {
		for row := range t.Index {
			var sum float64
			var seen int
			for _, col := range day {
				v := t.Values[col][row]
				if math.IsNaN(v) {
					continue
				}
				sum += v * MetersToMillimeters
				seen++
			}
			if seen == 0 {
				continue
			}
			d.sums[row] = append(d.sums[row], sum*SamplingFactor(seen, d.accumulation))
		}
	}
	return nil
}

func (d *dailySums) columns() []string { return []string{"daily_mean", "daily_std"} }

func (d *dailySums) fill(values [][]float64) {
	for row := range d.sums {
		values[0][row], values[1][row] = meanStd(d.sums[row])
	}
}

// SamplingFactor is the multiplier turning the sum of samples taken in one
// day into a daily total: 24h / samples / accumulation period.
func SamplingFactor(samples int, accumulation time.Duration) float64 {
	if samples <= 0 || accumulation <= 0 {
		return 1
	}
	return float64(24*time.Hour) / float64(samples) / float64(accumulation)
}

// meanStd returns the mean and population standard deviation, NaN for an
// empty sample.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

func zeroCounts(cols, rows int) [][]int64 {
	out := make([][]int64, cols)
	for i := range out {
		out[i] = make([]int64, rows)
	}
	return out
}

// fillCounts converts integer counts into the summary's float columns. The
// columnar format stores float64 only; counts stay exact below 2^53.
func fillCounts(values [][]float64, counts [][]int64) {
	for c, col := range counts {
		for r, n := range col {
			values[c][r] = float64(n)
		}
	}
}
