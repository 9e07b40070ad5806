package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]*domain.WideTable

func (f fakeSource) put(t *domain.WideTable) {
	f[fmt.Sprintf("%s/%d/%d", t.Variable, t.Year, t.Month)] = t
}

func (f fakeSource) LoadWide(_ context.Context, v domain.Variable, year, month int) (*domain.WideTable, error) {
	t, ok := f[fmt.Sprintf("%s/%d/%d", v, year, month)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d-%d", domain.ErrMissingTable, v, year, month)
	}
	return t, nil
}

var (
	posA = domain.Position{Lon: 10, Lat: 10}
	posB = domain.Position{Lon: 10, Lat: 10.25}
	nan  = math.NaN()
)

// table builds a two-row table from per-column values [col][row].
func table(v domain.Variable, year int, keys []domain.ColumnKey, values ...[]float64) *domain.WideTable {
	return &domain.WideTable{
		Variable: v,
		Year:     year,
		Month:    7,
		Index:    []domain.Position{posA, posB},
		Columns:  keys,
		Values:   values,
	}
}

func twoColumns() []domain.ColumnKey {
	return []domain.ColumnKey{{Day: 1, Seq: 0}, {Day: 1, Seq: 1}}
}

func newAggregator(src TableSource, opts Options) *Aggregator {
	return New(src, opts, slog.New(slog.DiscardHandler))
}

func windSource() fakeSource {
	src := fakeSource{}
	// A blows from the west at 1 m/s, B from the north at 5 m/s.
	src.put(table(domain.WindU, 2019, twoColumns(), []float64{1, 0}, []float64{1, 0}))
	src.put(table(domain.WindV, 2019, twoColumns(), []float64{0, -5}, []float64{0, -5}))
	// In 2020 A turns to an easterly and B misses one sample.
	src.put(table(domain.WindU, 2020, twoColumns(), []float64{1, nan}, []float64{-1, 0}))
	src.put(table(domain.WindV, 2020, twoColumns(), []float64{0, nan}, []float64{0, -5}))
	return src
}

func TestAggregate_WindCounts(t *testing.T) {
	s, err := newAggregator(windSource(), Options{}).Aggregate(context.Background(), domain.GroupWind, domain.NewTimeRange(2019, 2020), 7)
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Len(t, s.Columns, 16*13)
	assert.Equal(t, "1|1", s.Columns[0])
	assert.Equal(t, "16|13", s.Columns[len(s.Columns)-1])
	assert.Equal(t, []domain.Position{posA, posB}, s.Index)

	a, b := s.Row(0), s.Row(1)
	assert.Equal(t, 3.0, a["13|2"])
	assert.Equal(t, 1.0, a["5|2"])
	assert.Equal(t, 4.0, s.RowSum(0))
	assert.Equal(t, 3.0, b["1|4"])
	assert.Equal(t, 3.0, s.RowSum(1))
}

func TestAggregate_CurrentCounts(t *testing.T) {
	src := fakeSource{}
	keys := []domain.ColumnKey{{Day: 1, Seq: 0}}
	// 1 m/s northward flow: heading North, 1.94 kn
	src.put(table(domain.CurrentU, 2020, keys, []float64{0, nan}))
	src.put(table(domain.CurrentV, 2020, keys, []float64{1, nan}))

	s, err := newAggregator(src, Options{}).Aggregate(context.Background(), domain.GroupCurrent, domain.NewTimeRange(2020, 2020), 7)
	require.NoError(t, err)
	assert.Len(t, s.Columns, 16*7)
	assert.Equal(t, 1.0, s.Row(0)["1|4"])
	assert.Equal(t, 0.0, s.RowSum(1))
}

func TestAggregate_IndexMismatch(t *testing.T) {
	src := windSource()
	shifted := *src["10m_u_component_of_wind/2020/7"]
	shifted.Index = []domain.Position{posA, {Lon: 10.25, Lat: 10}}
	src.put(&shifted)
	shiftedV := *src["10m_v_component_of_wind/2020/7"]
	shiftedV.Index = shifted.Index
	src.put(&shiftedV)

	s, err := newAggregator(src, Options{}).Aggregate(context.Background(), domain.GroupWind, domain.NewTimeRange(2019, 2020), 7)
	assert.ErrorIs(t, err, domain.ErrIndexMismatch)
	assert.Nil(t, s)
}

func TestAggregate_ComponentMismatch(t *testing.T) {
	src := windSource()
	v := *src["10m_v_component_of_wind/2019/7"]
	v.Columns = []domain.ColumnKey{{Day: 1, Seq: 0}, {Day: 2, Seq: 1}}
	src.put(&v)

	_, err := newAggregator(src, Options{}).Aggregate(context.Background(), domain.GroupWind, domain.NewTimeRange(2019, 2020), 7)
	assert.ErrorIs(t, err, domain.ErrIndexMismatch)
}

func TestAggregate_MissingYear(t *testing.T) {
	_, err := newAggregator(windSource(), Options{}).Aggregate(context.Background(), domain.GroupWind, domain.NewTimeRange(2018, 2020), 7)
	assert.ErrorIs(t, err, domain.ErrMissingTable)
}

func TestAggregate_Waves(t *testing.T) {
	src := fakeSource{}
	src.put(table(domain.WaveHeight, 2020, twoColumns(), []float64{0.2, nan}, []float64{3, nan}))

	s, err := newAggregator(src, Options{}).Aggregate(context.Background(), domain.GroupWave, domain.NewTimeRange(2020, 2020), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, s.Columns)
	assert.Equal(t, map[string]float64{
		"1": 0, "2": 0, "3": 1, "4": 0, "5": 0, "6": 1, "7": 0, "8": 0, "9": 0, "10": 0,
	}, s.Row(0))
	assert.Equal(t, 0.0, s.RowSum(1))
}

func TestAggregate_Temperature(t *testing.T) {
	src := fakeSource{}
	keys := []domain.ColumnKey{{Day: 1, Seq: 0}, {Day: 1, Seq: 1}, {Day: 2, Seq: 2}, {Day: 2, Seq: 3}}
	src.put(table(domain.Temperature, 2019, keys,
		[]float64{280, nan}, []float64{290, nan}, []float64{284, nan}, []float64{296, nan}))
	src.put(table(domain.Temperature, 2020, keys,
		[]float64{282, nan}, []float64{292, nan}, []float64{nan, nan}, []float64{nan, nan}))

	s, err := newAggregator(src, Options{}).Aggregate(context.Background(), domain.GroupTemp, domain.NewTimeRange(2019, 2020), 7)
	require.NoError(t, err)
	row := s.Row(0)

	// highs 290, 296, 292; lows 280, 284, 282; the all-NaN day is skipped
	assert.InDelta(t, 292.666666-KelvinOffset, row["high_mean"], 1e-5)
	assert.InDelta(t, math.Sqrt((2.666666*2.666666+3.333333*3.333333+0.666666*0.666666)/3), row["high_std"], 1e-5)
	assert.InDelta(t, 282-KelvinOffset, row["low_mean"], 1e-9)
	assert.InDelta(t, math.Sqrt(8.0/3), row["low_std"], 1e-9)
	assert.True(t, s.RowHasNaN(1))
}

func TestAggregate_RainDaily(t *testing.T) {
	src := fakeSource{}
	keys := []domain.ColumnKey{{Day: 1, Seq: 0}, {Day: 1, Seq: 1}, {Day: 2, Seq: 2}, {Day: 2, Seq: 3}}
	src.put(table(domain.Precip, 2020, keys,
		[]float64{0.001, nan}, []float64{0.001, nan}, []float64{0, nan}, []float64{0.002, nan}))

	agg := newAggregator(src, Options{RainScheme: RainDaily, PrecipAccumulation: time.Hour})
	s, err := agg.Aggregate(context.Background(), domain.GroupRain, domain.NewTimeRange(2020, 2020), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily_mean", "daily_std"}, s.Columns)

	// two hourly samples per day scale by 12: day sums 24 mm and 24 mm
	row := s.Row(0)
	assert.InDelta(t, 24, row["daily_mean"], 1e-9)
	assert.InDelta(t, 0, row["daily_std"], 1e-9)
	assert.True(t, math.IsNaN(s.Row(1)["daily_mean"]))
}

func TestAggregate_RainDailyScalesByObservedSamples(t *testing.T) {
	src := fakeSource{}
	keys := []domain.ColumnKey{{Day: 1, Seq: 0}, {Day: 1, Seq: 1}, {Day: 1, Seq: 2}, {Day: 1, Seq: 3}}
	src.put(table(domain.Precip, 2020, keys,
		[]float64{0.001, 0.001}, []float64{0.001, nan}, []float64{0.001, 0.001}, []float64{0.001, nan}))

	agg := newAggregator(src, Options{RainScheme: RainDaily, PrecipAccumulation: time.Hour})
	s, err := agg.Aggregate(context.Background(), domain.GroupRain, domain.NewTimeRange(2020, 2020), 7)
	require.NoError(t, err)

	// 1 mm/h from four samples and from the two the second position kept
	assert.InDelta(t, 24, s.Row(0)["daily_mean"], 1e-9)
	assert.InDelta(t, 24, s.Row(1)["daily_mean"], 1e-9, "missing samples are not dry hours")
}

func TestAggregate_RainBins(t *testing.T) {
	src := fakeSource{}
	src.put(table(domain.Precip, 2020, twoColumns(), []float64{0.00005, nan}, []float64{0.01, nan}))

	agg := newAggregator(src, Options{RainScheme: RainBins})
	s, err := agg.Aggregate(context.Background(), domain.GroupRain, domain.NewTimeRange(2020, 2020), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, s.Columns)
	row := s.Row(0)
	assert.Equal(t, 1.0, row["1"]) // 0.05 mm
	assert.Equal(t, 1.0, row["4"]) // 10 mm
}

func TestSamplingFactor(t *testing.T) {
	assert.Equal(t, 3.0, SamplingFactor(8, time.Hour))
	assert.Equal(t, 1.0, SamplingFactor(24, time.Hour))
	assert.Equal(t, 1.0, SamplingFactor(8, 3*time.Hour))
	assert.Equal(t, 1.0, SamplingFactor(0, time.Hour))
}

func TestParseRainScheme(t *testing.T) {
	s, err := ParseRainScheme("bins")
	require.NoError(t, err)
	assert.Equal(t, RainBins, s)
	_, err = ParseRainScheme("hourly")
	assert.Error(t, err)
}
