package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// VectorCount is the occurrence count of one (direction, velocity) class pair.
type VectorCount struct {
	Dir   int   `json:"dir"`
	Vel   int   `json:"vel"`
	Count int64 `json:"count"`
}

// ClassCount is the occurrence count of one single-dimension class.
type ClassCount struct {
	Idx   int   `json:"idx"`
	Count int64 `json:"count"`
}

// Record holds every category available at one sub-position. Absent
// categories mean "no data", never zero.
type Record struct {
	Rains    map[string]float64 `json:"rains,omitempty"`
	Temps    map[string]float64 `json:"temps,omitempty"`
	SeaTemps map[string]float64 `json:"seatemps,omitempty"`
	Winds    []VectorCount      `json:"winds,omitempty"`
	Waves    []ClassCount       `json:"waves,omitempty"`
	Currents []VectorCount      `json:"currents,omitempty"`
}

// Empty reports whether the record holds no category.
func (r Record) Empty() bool {
	return r.Rains == nil && r.Temps == nil && r.SeaTemps == nil &&
		r.Winds == nil && r.Waves == nil && r.Currents == nil
}

// Merge overlays the categories present in other onto r.
func (r Record) Merge(other Record) Record {
	if other.Rains != nil {
		r.Rains = other.Rains
	}
	if other.Temps != nil {
		r.Temps = other.Temps
	}
	if other.SeaTemps != nil {
		r.SeaTemps = other.SeaTemps
	}
	if other.Winds != nil {
		r.Winds = other.Winds
	}
	if other.Waves != nil {
		r.Waves = other.Waves
	}
	if other.Currents != nil {
		r.Currents = other.Currents
	}
	return r
}

// Object is the content of one storage object: a record per sub-position.
type Object map[Position]Record

type objectEntry struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	Data Record  `json:"data"`
}

// MarshalJSON encodes the object as a list sorted by position so equal
// objects always encode to equal bytes.
func (o Object) MarshalJSON() ([]byte, error) {
	positions := slices.SortedFunc(maps.Keys(o), ComparePositions)
	entries := make([]objectEntry, len(positions))
	for i, p := range positions {
		entries[i] = objectEntry{Lon: p.Lon, Lat: p.Lat, Data: o[p]}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the list form written by MarshalJSON.
func (o *Object) UnmarshalJSON(data []byte) error {
	var entries []objectEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(Object, len(entries))
	for _, e := range entries {
		p := Position{Lon: Snap(e.Lon), Lat: Snap(e.Lat)}
		if _, dup := out[p]; dup {
			return fmt.Errorf("object: duplicate position %s", p)
		}
		out[p] = e.Data
	}
	*o = out
	return nil
}

// EncodeObject serializes an object for storage.
func EncodeObject(o Object) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return data, nil
}

// DecodeObject parses a stored object.
func DecodeObject(data []byte) (Object, error) {
	var o Object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return o, nil
}
