// Package features derives the daily temperature extremes and the
// previous-day load features from a cleaned observation table.
package features

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"load_forecaster/internal/model"
)

// Hour bands (inclusive) used for the previous-day peak features.
var (
	MorningHours = HourBand{From: 7, To: 10}
	EveningHours = HourBand{From: 11, To: 18}
)

// Lag is how far back the previous-day load is read.
const Lag = 24 * time.Hour

// HourBand is an inclusive range of hours of day.
type HourBand struct {
	From int
	To   int
}

func (b HourBand) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= b.From && h <= b.To
}

// Build wraps each observation in a FeatureRow and runs both feature stages.
func Build(rows []model.Observation) []model.FeatureRow {
	out := make([]model.FeatureRow, len(rows))
	for i, o := range rows {
		out[i] = model.NewFeatureRow(o)
	}
	DailyTemperatureExtremes(out)
	LagDayFeatures(out)
	return out
}

// DailyTemperatureExtremes sets MinTempOfDay and MaxTempOfDay on every row
// from the extremes of its calendar date. Missing temperatures are skipped;
// a date without any temperature gets missing extremes.
func DailyTemperatureExtremes(rows []model.FeatureRow) {
	byDate := make(map[model.Date][]float64)
	for _, r := range rows {
		if model.IsMissing(r.Temperature) {
			continue
		}
		byDate[r.CalendarDate] = append(byDate[r.CalendarDate], r.Temperature)
	}

	type extremes struct{ min, max float64 }
	daily := make(map[model.Date]extremes, len(byDate))
	for d, temps := range byDate {
		daily[d] = extremes{min: floats.Min(temps), max: floats.Max(temps)}
	}

	for i := range rows {
		e, ok := daily[rows[i].CalendarDate]
		if !ok {
			rows[i].MinTempOfDay = model.Missing()
			rows[i].MaxTempOfDay = model.Missing()
			continue
		}
		rows[i].MinTempOfDay = e.min
		rows[i].MaxTempOfDay = e.max
	}
}

// LagDayFeatures sets LoadLag1Day to the load 24 hours earlier, then
// broadcasts per calendar date the maximum lag over the morning and evening
// hour bands. On a gap-free 15-minute index this equals a 96-row shift.
// Rows without a prior-day reading get a missing lag.
func LagDayFeatures(rows []model.FeatureRow) {
	loadAt := make(map[time.Time]float64, len(rows))
	for _, r := range rows {
		if prev, seen := loadAt[r.Timestamp]; seen && !model.IsMissing(prev) {
			continue
		}
		loadAt[r.Timestamp] = r.Load
	}

	for i := range rows {
		lag, ok := loadAt[rows[i].Timestamp.Add(-Lag)]
		if !ok {
			lag = model.Missing()
		}
		rows[i].LoadLag1Day = lag
	}

	morning := dailyBandMax(rows, MorningHours)
	evening := dailyBandMax(rows, EveningHours)

	for i := range rows {
		d := rows[i].CalendarDate
		rows[i].MorningPeakLag1Day = lookup(morning, d)
		rows[i].EveningPeakLag1Day = lookup(evening, d)
	}
}

func dailyBandMax(rows []model.FeatureRow, band HourBand) map[model.Date]float64 {
	byDate := make(map[model.Date][]float64)
	for _, r := range rows {
		if !band.Contains(r.Timestamp) || model.IsMissing(r.LoadLag1Day) {
			continue
		}
		byDate[r.CalendarDate] = append(byDate[r.CalendarDate], r.LoadLag1Day)
	}

	peaks := make(map[model.Date]float64, len(byDate))
	for d, values := range byDate {
		peaks[d] = floats.Max(values)
	}
	return peaks
}

func lookup(m map[model.Date]float64, d model.Date) float64 {
	if v, ok := m[d]; ok {
		return v
	}
	return model.Missing()
}
