package domain

import "math"

// KnotsPerMeterPerSecond converts m/s to knots.
const KnotsPerMeterPerSecond = 1.94384

// zeroU replaces a zero eastward component so v/u stays finite.
const zeroU = 1e-3

// Direction returns the compass bearing of the vector (u east, v north) in
// degrees within [0, 360). Winds are reported as the bearing they blow from,
// currents as the bearing they flow to.
func Direction(u, v float64, isWind bool) float64 {
	if u == 0 {
		u = zeroU
	}
	flip := u < 0
	if isWind {
		flip = u > 0
	}
	deg := 90 - math.Atan(v/u)*180/math.Pi
	if flip {
		deg += 180
	}
	return deg
}

// Velocity returns the vector magnitude converted from m/s to knots.
func Velocity(u, v float64) float64 {
	return math.Sqrt(u*u+v*v) * KnotsPerMeterPerSecond
}

// Directions applies Direction element-wise. NaN components yield NaN.
func Directions(u, v []float64, isWind bool) []float64 {
	out := make([]float64, len(u))
	for i := range u {
		out[i] = Direction(u[i], v[i], isWind)
	}
	return out
}

// Velocities applies Velocity element-wise. NaN components yield NaN.
func Velocities(u, v []float64) []float64 {
	out := make([]float64, len(u))
	for i := range u {
		out[i] = Velocity(u[i], v[i])
	}
	return out
}
