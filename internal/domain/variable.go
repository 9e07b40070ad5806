package domain

import "fmt"

// Variable is a raw reanalysis variable as named by the data provider.
type Variable string

const (
	WindU       Variable = "10m_u_component_of_wind"
	WindV       Variable = "10m_v_component_of_wind"
	Temperature Variable = "2m_temperature"
	SeaTemp     Variable = "sea_surface_temperature"
	WaveHeight  Variable = "significant_height_of_combined_wind_waves_and_swell"
	Precip      Variable = "total_precipitation"
	CurrentU    Variable = "rotated_zonal_velocity"
	CurrentV    Variable = "rotated_meridional_velocity"
)

// AllVariables lists every supported variable.
var AllVariables = []Variable{WindU, WindV, Temperature, SeaTemp, WaveHeight, Precip, CurrentU, CurrentV}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	for _, v := range AllVariables {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variable %q", s)
}

// ShortName is the variable name inside ERA5 netCDF files.
func (v Variable) ShortName() string {
	switch v {
	case WindU:
		return "u10"
	case WindV:
		return "v10"
	case Temperature:
		return "t2m"
	case SeaTemp:
		return "sst"
	case WaveHeight:
		return "swh"
	case Precip:
		return "tp"
	default:
		return ""
	}
}

// IsOcean reports whether the variable comes from the ORAS5 ocean reanalysis.
func (v Variable) IsOcean() bool {
	return v == CurrentU || v == CurrentV
}

// Group is a summary category. Each group is built from one variable or one
// pair of vector components.
type Group string

const (
	GroupWind    Group = "wind"
	GroupCurrent Group = "current"
	GroupTemp    Group = "temp"
	GroupSeaTemp Group = "seatemp"
	GroupWave    Group = "wave"
	GroupRain    Group = "rain"
)

// AllGroups lists the categories in packaging order.
var AllGroups = []Group{GroupRain, GroupTemp, GroupWind, GroupWave, GroupSeaTemp, GroupCurrent}

// ParseGroup validates a group name.
func ParseGroup(s string) (Group, error) {
	for _, g := range AllGroups {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown group %q", s)
}

// Variables returns the raw variables a group is aggregated from. Vector
// groups return the u component first.
func (g Group) Variables() []Variable {
	switch g {
	case GroupWind:
		return []Variable{WindU, WindV}
	case GroupCurrent:
		return []Variable{CurrentU, CurrentV}
	case GroupTemp:
		return []Variable{Temperature}
	case GroupSeaTemp:
		return []Variable{SeaTemp}
	case GroupWave:
		return []Variable{WaveHeight}
	case GroupRain:
		return []Variable{Precip}
	default:
		return nil
	}
}

// Field is the category name used inside storage objects.
func (g Group) Field() string {
	return string(g) + "s"
}

// GroupsFor returns the groups that can be built from the given variables,
// requiring both components for vector groups.
func GroupsFor(vars []Variable) []Group {
	have := make(map[Variable]bool, len(vars))
	for _, v := range vars {
		have[v] = true
	}
	var out []Group
	for _, g := range AllGroups {
		ok := true
		for _, v := range g.Variables() {
			ok = ok && have[v]
		}
		if ok {
			out = append(out, g)
		}
	}
	return out
}
