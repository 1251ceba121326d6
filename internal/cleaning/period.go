package cleaning

import (
	"time"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/model"
	"load_forecaster/internal/store"
)

// DefaultValidPeriod is the canonical analysis window.
var DefaultValidPeriod = model.TimeRange{
	Start: time.Date(2012, 11, 2, 0, 30, 0, 0, time.UTC),
	End:   time.Date(2013, 11, 30, 23, 45, 0, 0, time.UTC),
}

// RestrictToValidPeriod drops rows outside period (inclusive) and returns
// how many were dropped.
func RestrictToValidPeriod(s *store.Store, period model.TimeRange) int {
	return s.Retain(func(o model.Observation) bool {
		return period.Contains(o.Timestamp)
	})
}

// WarmUp is the leading span whose rows cannot have a previous-day lag.
const WarmUp = 24 * time.Hour

// Finalize drops incomplete feature rows that are expected to be incomplete:
// extra entries at a duplicated timestamp and the warm-up span starting at
// the first row. Any other missing value is a DataIntegrity error naming the
// timestamp and column. Returns the kept rows and the number dropped.
func Finalize(rows []model.FeatureRow) ([]model.FeatureRow, int, error) {
	if len(rows) == 0 {
		return rows, 0, nil
	}
	seen := make(map[time.Time]int, len(rows))
	for _, r := range rows {
		seen[r.Timestamp]++
	}
	cutoff := rows[0].Timestamp.Add(WarmUp)

	kept := make([]model.FeatureRow, 0, len(rows))
	for _, r := range rows {
		col := r.MissingColumn()
		switch {
		case col == "":
			kept = append(kept, r)
		case seen[r.Timestamp] > 1, inWarmUp(r, cutoff):
		default:
			return nil, 0, dataerr.DataIntegrity("missing %s after cleaning", col).
				WithContext("timestamp", r.Timestamp.Format(time.RFC3339)).
				WithContext("column", col)
		}
	}
	return kept, len(rows) - len(kept), nil
}

// inWarmUp reports whether r falls before cutoff, or on the cutoff's date
// with only the daily lag peaks missing. Those peaks need the whole hour band
// of the previous day, which may start before the first row.
func inWarmUp(r model.FeatureRow, cutoff time.Time) bool {
	if r.Timestamp.Before(cutoff) {
		return true
	}
	if r.CalendarDate != model.DateOf(cutoff) {
		return false
	}
	for _, v := range []float64{r.Load, r.Temperature, r.MinTempOfDay, r.MaxTempOfDay, r.LoadLag1Day} {
		if model.IsMissing(v) {
			return false
		}
	}
	return true
}
