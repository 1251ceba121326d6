// Package crossval scores a regressor with rolling-origin cross-validation
// over the featurized series.
package crossval

import (
	"fmt"
	"time"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/metric"
	"load_forecaster/internal/model"
)

// Config controls fold layout and scoring.
type Config struct {
	Cadence    time.Duration // how often a new training window ends
	Horizon    time.Duration // length of every test window
	Step       time.Duration
	Metric     metric.Func
	MetricName string
	Workers    int // folds fitted concurrently
}

// DefaultConfig returns a three-week cadence, a one-day horizon and MAPE.
func DefaultConfig() Config {
	return Config{
		Cadence:    3 * 7 * 24 * time.Hour,
		Horizon:    24 * time.Hour,
		Step:       model.Step,
		Metric:     metric.MAPE,
		MetricName: "mape",
		Workers:    1,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Step <= 0:
		return fmt.Errorf("step must be positive")
	case c.Horizon < c.Step || c.Horizon%c.Step != 0:
		return fmt.Errorf("horizon %s must be a positive multiple of step %s", c.Horizon, c.Step)
	case c.Cadence < c.Horizon:
		return fmt.Errorf("cadence %s is shorter than horizon %s", c.Cadence, c.Horizon)
	case c.Metric == nil:
		return fmt.Errorf("metric is required")
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
}

// Partition lays out the folds for a series spanning series.
//
// Buckets of length Cadence start at the Monday of the first week. Every
// bucket's last tick ends a training window that starts at the series start.
// The last bucket's end moves back by one day so its test day exists, and
// any fold whose test window would still run past the series end is pulled
// back to fit. Folds that coincide after this are merged.
func Partition(series model.TimeRange, cfg Config) ([]model.Fold, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	latest := series.End.Add(-cfg.Horizon)
	if latest.Before(series.Start) {
		return nil, dataerr.DataIntegrity("series is shorter than one horizon").
			WithContext("series", series.String()).
			WithContext("horizon", cfg.Horizon)
	}

	var ends []time.Time
	for b := WeekStart(series.Start); !b.After(series.End); b = b.Add(cfg.Cadence) {
		end := b.Add(cfg.Cadence - cfg.Step)
		last := !end.Before(series.End)
		if last {
			end = series.End.Add(-24 * time.Hour)
		}
		if end.After(latest) {
			end = latest
		}
		if end.Before(series.Start) {
			continue
		}
		if n := len(ends); n > 0 && !end.After(ends[n-1]) {
			continue
		}
		ends = append(ends, end)
	}

	folds := make([]model.Fold, len(ends))
	for i, end := range ends {
		folds[i] = model.Fold{
			Index: i,
			Train: model.TimeRange{Start: series.Start, End: end},
			Test:  model.TimeRange{Start: end.Add(cfg.Step), End: end.Add(cfg.Horizon)},
		}
	}
	return folds, nil
}
