package cleaning

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"load_forecaster/internal/model"
	"load_forecaster/internal/store"
)

// RepairConfig controls anomalous-load detection and replacement.
type RepairConfig struct {
	// FaultValue is the sentinel load that marks a sensor or link failure.
	FaultValue float64
	// Tolerance widens each anomaly window on both ends.
	Tolerance time.Duration
	// Step is the spacing of the replacement ticks.
	Step time.Duration
	// SingleWindow spans one window from the first to the last fault instead
	// of one window per contiguous fault cluster.
	SingleWindow bool
}

func DefaultRepairConfig() RepairConfig {
	return RepairConfig{
		FaultValue: 0,
		Tolerance:  48 * time.Hour,
		Step:       model.Step,
	}
}

// RepairReport summarises one repair pass.
type RepairReport struct {
	Faults     int
	Windows    []model.TimeRange
	Replaced   int
	Unresolved []time.Time
}

// UnresolvedWithin returns the unresolved ticks that fall inside period.
func (r RepairReport) UnresolvedWithin(period model.TimeRange) []time.Time {
	var out []time.Time
	for _, t := range r.Unresolved {
		if period.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// groupKey identifies the rows a conditional mean is taken over.
type groupKey struct {
	dayOfWeek int
	month     int
	year      int
	interval  int
}

func keyOf(o model.Observation) groupKey {
	return groupKey{dayOfWeek: o.DayOfWeek, month: o.Month, year: o.Year, interval: o.IntervalOfDay}
}

// RepairAnomalousLoad overwrites the load of every tick inside each anomaly
// window with the mean load of rows sharing day of week, month, year and
// interval of day, taken over rows outside all windows. Ticks whose group is
// empty get a missing load and are listed in the report. A table without
// fault values is left untouched.
func RepairAnomalousLoad(s *store.Store, cfg RepairConfig) RepairReport {
	if cfg.Step <= 0 {
		cfg.Step = model.Step
	}

	rows := s.Rows()
	var faults []time.Time
	for _, r := range rows {
		if r.Load == cfg.FaultValue {
			faults = append(faults, r.Timestamp)
		}
	}

	report := RepairReport{Faults: len(faults)}
	if len(faults) == 0 {
		return report
	}

	report.Windows = AnomalyWindows(faults, cfg)
	means := conditionalMeans(rows, report.Windows)

	for _, w := range report.Windows {
		for _, tick := range w.Ticks(cfg.Step) {
			lo, hi := s.Bounds(model.TimeRange{Start: tick, End: tick})
			if lo == hi {
				continue
			}
			for i := lo; i < hi; i++ {
				// Extra rows at a duplicated timestamp keep their missing load
				// so Finalize drops them.
				if hi-lo > 1 && model.IsMissing(rows[i].Load) {
					continue
				}
				mean, ok := means[keyOf(rows[i])]
				if !ok {
					rows[i].Load = model.Missing()
					report.Unresolved = append(report.Unresolved, tick)
					continue
				}
				rows[i].Load = mean
				report.Replaced++
			}
		}
	}

	return report
}

// AnomalyWindows turns sorted fault timestamps into merged, tolerance-widened
// windows. Faults on consecutive ticks form one cluster.
func AnomalyWindows(faults []time.Time, cfg RepairConfig) []model.TimeRange {
	if len(faults) == 0 {
		return nil
	}
	if cfg.Step <= 0 {
		cfg.Step = model.Step
	}

	sorted := make([]time.Time, len(faults))
	copy(sorted, faults)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var clusters []model.TimeRange
	if cfg.SingleWindow {
		clusters = []model.TimeRange{{Start: sorted[0], End: sorted[len(sorted)-1]}}
	} else {
		cur := model.TimeRange{Start: sorted[0], End: sorted[0]}
		for _, t := range sorted[1:] {
			if t.Sub(cur.End) <= cfg.Step {
				cur.End = t
				continue
			}
			clusters = append(clusters, cur)
			cur = model.TimeRange{Start: t, End: t}
		}
		clusters = append(clusters, cur)
	}

	var windows []model.TimeRange
	for _, c := range clusters {
		w := model.TimeRange{Start: c.Start.Add(-cfg.Tolerance), End: c.End.Add(cfg.Tolerance)}
		if n := len(windows); n > 0 && windows[n-1].Overlaps(w) {
			if w.End.After(windows[n-1].End) {
				windows[n-1].End = w.End
			}
			continue
		}
		windows = append(windows, w)
	}
	return windows
}

// conditionalMeans builds the group-mean table once from rows outside every
// window, skipping missing loads.
func conditionalMeans(rows []model.Observation, windows []model.TimeRange) map[groupKey]float64 {
	groups := make(map[groupKey][]float64)
	for _, r := range rows {
		if model.IsMissing(r.Load) || inAnyWindow(windows, r.Timestamp) {
			continue
		}
		k := keyOf(r)
		groups[k] = append(groups[k], r.Load)
	}

	means := make(map[groupKey]float64, len(groups))
	for k, values := range groups {
		means[k] = stat.Mean(values, nil)
	}
	return means
}

// inAnyWindow reports whether t falls in one of the sorted, disjoint windows.
func inAnyWindow(windows []model.TimeRange, t time.Time) bool {
	idx := sort.Search(len(windows), func(i int) bool {
		return !windows[i].End.Before(t)
	})
	return idx < len(windows) && windows[idx].Contains(t)
}
