// Package domain models gridded reanalysis data and the climatological
// summaries derived from it.
//
// # Data Sources
//
// Atmospheric and wave fields come from the ECMWF ERA5 single-level
// reanalysis, sampled every third hour (00, 03, ..., 21 UTC). Ocean currents
// come from the ORAS5 ocean reanalysis, which publishes one monthly mean
// field per depth layer on a curvilinear grid.
//
// # Grid Conventions
//
// Every variable is indexed by a quarter-degree [Position]:
//
//	longitude  [-180, 180)   0.25° steps, 180°E is stored as -180
//	latitude   [-70, 70]     0.25° steps, polar rows are not processed
//
// Raw coordinates are snapped to the nearest quarter degree before they are
// used as keys. Quarter degrees are exact in binary floating point, so
// positions compare with == after snapping.
//
// # Units
//
//	Wind, current components   m/s, converted to knots (x 1.94384)
//	2 m and sea temperature    Kelvin, means reported in °C (- 273.15)
//	Total precipitation        metres per accumulation period, reported in mm
//	Significant wave height    metres
//
// Directions are compass bearings in degrees. Winds report where the air
// comes FROM, currents report where the water flows TO.
//
// # Storage Objects
//
// Summaries are published as one object per whole-degree cell:
//
//	{version}/{timeRange}/{month}/{latInt}/{lonInt}/data
//
// Each object holds the 16 sub-positions base + {0, 0.25, 0.5, 0.75} in both
// axes. For negative coordinates the base is still the lower corner, so the
// object for latitude -70 covers -70.0, -69.75, -69.5 and -69.25.
package domain
