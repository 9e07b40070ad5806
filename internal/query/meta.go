package query

import "github.com/couchcryptid/reanalysis-climate-etl/internal/domain"

// Meta describes what the service can answer: the published time ranges and
// months plus the class tables needed to read a Response.
type Meta struct {
	Version           string         `json:"version"`
	TimeRanges        []string       `json:"timeRanges"`
	Months            []int          `json:"months"`
	Directions        []domain.Class `json:"directions"`
	WindVelocities    []domain.Class `json:"windVelocities"`
	CurrentVelocities []domain.Class `json:"currentVelocities"`
	WaveHeights       []domain.Class `json:"waveHeights"`
	RainClasses       []domain.Class `json:"rainClasses"`
}

// Meta returns the service description.
func (r *Resolver) Meta() Meta {
	months := make([]int, 12)
	for i := range months {
		months[i] = i + 1
	}
	return Meta{
		Version:           r.cfg.Version,
		TimeRanges:        append([]string(nil), r.cfg.TimeRanges...),
		Months:            months,
		Directions:        domain.DirectionTable.Classes()[:len(domain.CompassIndexes())],
		WindVelocities:    domain.WindSpeedTable.Classes(),
		CurrentVelocities: domain.CurrentSpeedTable.Classes(),
		WaveHeights:       domain.WaveTable.Classes(),
		RainClasses:       domain.RainTable.Classes(),
	}
}
