package model

// FeatureNames lists the columns of FeatureRow.Vector in order.
// Year and CalendarDate are helper columns and never reach a model.
var FeatureNames = []string{
	"temperature",
	"day_of_week",
	"month",
	"interval_of_day",
	"min_temp_of_day",
	"max_temp_of_day",
	"load_lag_1day",
	"morning_peak_lag_1day",
	"evening_peak_lag_1day",
}

// FeatureRow is an Observation enriched with the daily temperature extremes
// and the previous-day load features.
type FeatureRow struct {
	Observation

	MinTempOfDay       float64
	MaxTempOfDay       float64
	LoadLag1Day        float64
	MorningPeakLag1Day float64
	EveningPeakLag1Day float64
}

// NewFeatureRow wraps an observation with every feature missing.
func NewFeatureRow(o Observation) FeatureRow {
	return FeatureRow{
		Observation:        o,
		MinTempOfDay:       Missing(),
		MaxTempOfDay:       Missing(),
		LoadLag1Day:        Missing(),
		MorningPeakLag1Day: Missing(),
		EveningPeakLag1Day: Missing(),
	}
}

// Vector returns the model inputs in FeatureNames order.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		r.Temperature,
		float64(r.DayOfWeek),
		float64(r.Month),
		float64(r.IntervalOfDay),
		r.MinTempOfDay,
		r.MaxTempOfDay,
		r.LoadLag1Day,
		r.MorningPeakLag1Day,
		r.EveningPeakLag1Day,
	}
}

// MissingColumn returns the name of the first absent value among the target
// and the feature vector, or "" when the row is complete.
func (r FeatureRow) MissingColumn() string {
	if IsMissing(r.Load) {
		return "load"
	}
	for i, v := range r.Vector() {
		if IsMissing(v) {
			return FeatureNames[i]
		}
	}
	return ""
}

// Fold is one rolling-origin train/test partition.
type Fold struct {
	Index int
	Train TimeRange
	Test  TimeRange
}
