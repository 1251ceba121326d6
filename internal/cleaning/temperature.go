// Package cleaning fills, repairs and trims the observation table before
// features are derived from it.
package cleaning

import (
	"load_forecaster/internal/model"
	"load_forecaster/internal/store"
)

// FillMissingTemperature replaces missing temperatures by linear
// interpolation weighted by elapsed time between the nearest known
// neighbours. Leading gaps stay missing; trailing gaps take the last known
// value. Returns the number of filled rows.
func FillMissingTemperature(s *store.Store) int {
	rows := s.Rows()
	filled := 0
	prev := -1

	for i := range rows {
		if model.IsMissing(rows[i].Temperature) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			t0, v0 := rows[prev].Timestamp, rows[prev].Temperature
			span := rows[i].Timestamp.Sub(t0)
			slope := rows[i].Temperature - v0
			for j := prev + 1; j < i; j++ {
				if span <= 0 {
					rows[j].Temperature = v0
				} else {
					w := float64(rows[j].Timestamp.Sub(t0)) / float64(span)
					rows[j].Temperature = v0 + w*slope
				}
				filled++
			}
		}
		prev = i
	}

	if prev >= 0 {
		for j := prev + 1; j < len(rows); j++ {
			rows[j].Temperature = rows[prev].Temperature
			filled++
		}
	}

	return filled
}
