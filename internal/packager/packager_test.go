package packager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/memstore"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummaries map[domain.Group]*domain.Summary

func (f fakeSummaries) LoadSummary(_ context.Context, g domain.Group, label string, month int) (*domain.Summary, error) {
	s, ok := f[g]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s-%d", domain.ErrMissingCategory, g, label, month)
	}
	return s, nil
}

var (
	posA  = domain.Position{Lon: 10, Lat: 10}
	posB  = domain.Position{Lon: 10.25, Lat: 10.5}
	index = []domain.Position{posA, posB}
	keyA  = "v1/2019-2020/7/10/10/data"
	keyB  = "v1/2019-2020/7/10/11/data"
)

func summaries() fakeSummaries {
	wind := domain.NewSummary(domain.GroupWind, "2019-2020", 7, index, []string{"1|1", "13|2", "5|2"})
	wind.Values[1][0] = 3
	wind.Values[2][0] = 1

	current := domain.NewSummary(domain.GroupCurrent, "2019-2020", 7, index, []string{"1|1", "1|4"})
	current.Values[1][1] = 2

	wave := domain.NewSummary(domain.GroupWave, "2019-2020", 7, index, []string{"1", "2"})

	temp := domain.NewSummary(domain.GroupTemp, "2019-2020", 7, index, []string{"high_mean", "high_std", "low_mean", "low_std"})
	temp.Values[0][0], temp.Values[1][0] = 25.5, 1.5
	temp.Values[0][1] = math.NaN()

	seatemp := domain.NewSummary(domain.GroupSeaTemp, "2019-2020", 7, index, []string{"high_mean", "high_std", "low_mean", "low_std"})
	seatemp.Values[2][1] = math.NaN()

	rain := domain.NewSummary(domain.GroupRain, "2019-2020", 7, index, []string{"daily_mean", "daily_std"})
	rain.Values[0][0] = 4.2

	return fakeSummaries{
		domain.GroupWind:    wind,
		domain.GroupCurrent: current,
		domain.GroupWave:    wave,
		domain.GroupTemp:    temp,
		domain.GroupSeaTemp: seatemp,
		domain.GroupRain:    rain,
	}
}

func newPackager(gw Gateway, src SummarySource) *Packager {
	cfg := Config{Version: "v1", Bounds: domain.Bounds{MinLat: 10, MaxLat: 10, MinLon: 10, MaxLon: 12}, Workers: 4}
	return New(gw, src, cfg, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
}

func load(t *testing.T, gw *memstore.Store, key string) domain.Object {
	t.Helper()
	data, err := gw.Get(context.Background(), key)
	require.NoError(t, err)
	obj, err := domain.DecodeObject(data)
	require.NoError(t, err)
	return obj
}

func TestPackage_InclusionRules(t *testing.T) {
	gw := memstore.New()
	report, err := newPackager(gw, summaries()).Package(context.Background(), "2019-2020", 7, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Empty(t, report.Failed)

	obj := load(t, gw, keyA)
	assert.Len(t, obj, 16)

	a := obj[posA]
	assert.Equal(t, []domain.VectorCount{
		{Dir: 1, Vel: 1, Count: 0},
		{Dir: 13, Vel: 2, Count: 3},
		{Dir: 5, Vel: 2, Count: 1},
	}, a.Winds)
	assert.Nil(t, a.Waves, "all-zero waves are omitted")
	assert.Nil(t, a.Currents, "all-zero currents are omitted")
	assert.Equal(t, map[string]float64{"highMean": 25.5, "highStd": 1.5, "lowMean": 0, "lowStd": 0}, a.Temps)
	assert.Equal(t, map[string]float64{"dailyMean": 4.2, "dailyStd": 0}, a.Rains)
	assert.NotNil(t, a.SeaTemps)

	b := obj[posB]
	assert.Equal(t, []domain.VectorCount{{Dir: 1, Vel: 1, Count: 0}, {Dir: 1, Vel: 4, Count: 2}}, b.Currents)
	assert.Nil(t, b.SeaTemps, "sea temperature with a NaN field is omitted")
	assert.Equal(t, map[string]float64{"highStd": 0, "lowMean": 0, "lowStd": 0}, b.Temps, "NaN stats are dropped")

	// sub-positions without data hold empty records
	assert.True(t, obj[domain.Position{Lon: 10.75, Lat: 10.75}].Empty())
	assert.True(t, load(t, gw, keyB)[domain.Position{Lon: 11, Lat: 10}].Empty())
}

func TestPackage_Idempotent(t *testing.T) {
	ctx := context.Background()
	gw := memstore.New()
	p := newPackager(gw, summaries())

	_, err := p.Package(ctx, "2019-2020", 7, Options{})
	require.NoError(t, err)
	first, err := gw.Get(ctx, keyA)
	require.NoError(t, err)

	_, err = p.Package(ctx, "2019-2020", 7, Options{})
	require.NoError(t, err)
	second, err := gw.Get(ctx, keyA)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, gw.Len())
}

func TestPackage_MissingCategory(t *testing.T) {
	src := summaries()
	delete(src, domain.GroupSeaTemp)
	gw := memstore.New()

	_, err := newPackager(gw, src).Package(context.Background(), "2019-2020", 7, Options{})
	assert.ErrorIs(t, err, domain.ErrMissingCategory)
	assert.Equal(t, 0, gw.Len())
}

func TestPackage_OnlyKeys(t *testing.T) {
	gw := memstore.New()
	report, err := newPackager(gw, summaries()).Package(context.Background(), "2019-2020", 7, Options{OnlyKeys: []string{keyB}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	_, err = gw.Get(context.Background(), keyA)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestPackage_Merge(t *testing.T) {
	ctx := context.Background()
	gw := memstore.New()
	src := summaries()
	p := newPackager(gw, src)
	_, err := p.Package(ctx, "2019-2020", 7, Options{})
	require.NoError(t, err)

	wave := domain.NewSummary(domain.GroupWave, "2019-2020", 7, index, []string{"1", "2"})
	wave.Values[1][0] = 5
	src[domain.GroupWave] = wave

	_, err = p.Package(ctx, "2019-2020", 7, Options{Merge: true, Groups: []domain.Group{domain.GroupWave}})
	require.NoError(t, err)

	a := load(t, gw, keyA)[posA]
	assert.Equal(t, []domain.ClassCount{{Idx: 1, Count: 0}, {Idx: 2, Count: 5}}, a.Waves)
	assert.NotNil(t, a.Winds, "merge keeps categories already published")
	assert.NotNil(t, a.Temps)

	_, err = p.Package(ctx, "2019-2020", 7, Options{Groups: []domain.Group{domain.GroupWave}})
	assert.Error(t, err, "a category subset without merge would drop data")
}

func TestPackage_RecordsFailures(t *testing.T) {
	gw := memstore.New()
	gw.FailPuts(keyB, errors.New("throttled"))

	report, err := newPackager(gw, summaries()).Package(context.Background(), "2019-2020", 7, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, []string{keyB}, report.Failed)
}

func TestPackage_BadVectorColumn(t *testing.T) {
	src := summaries()
	src[domain.GroupWind] = domain.NewSummary(domain.GroupWind, "2019-2020", 7, index, []string{"13-2"})
	_, err := newPackager(memstore.New(), src).Package(context.Background(), "2019-2020", 7, Options{})
	assert.Error(t, err)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	gw := memstore.New()
	require.NoError(t, gw.Put(ctx, keyA, []byte("[]")))
	require.NoError(t, gw.Put(ctx, "v1/2019-2020/7/80/10/data", []byte("[]")))
	require.NoError(t, gw.Put(ctx, "v0/2019-2020/7/10/11/data", []byte("[]")))

	report, err := newPackager(gw, summaries()).Check(ctx, []string{"2019-2020"}, []int{7})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Expected)
	assert.Equal(t, 2, report.Found)
	assert.Equal(t, []string{keyB}, report.Missing)
	assert.Equal(t, []string{"v1/2019-2020/7/80/10/data"}, report.Unexpected)
}

func TestExpectedKeys(t *testing.T) {
	keys := ExpectedKeys("v1", []string{"2020", "2016-2020"}, []int{1, 2}, domain.Bounds{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1})
	assert.Len(t, keys, 2*2*2)
	assert.Contains(t, keys, domain.ObjectKey("v1", "2016-2020", 2, domain.Cell{Lat: 1, Lon: 0}))
}
