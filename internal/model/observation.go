package model

import (
	"math"
	"time"
)

const (
	// Step is the fixed spacing of the observation index.
	Step = 15 * time.Minute
	// IntervalsPerDay is the number of Step slots in one calendar day.
	IntervalsPerDay = 96
)

// Date is a calendar day without a time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// Missing returns the marker used for absent float readings.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v marks an absent reading.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Observation is one row of the indexed observation table.
// Load and Temperature are NaN when the reading is absent.
type Observation struct {
	Timestamp     time.Time
	Load          float64 // kWh
	Temperature   float64
	DayOfWeek     int // 0-6
	Month         int // 1-12
	Year          int
	IntervalOfDay int // 0-95
	CalendarDate  Date
}

// NewObservation builds a row and derives interval, year and calendar date
// from the timestamp.
func NewObservation(ts time.Time, load, temp float64, dayOfWeek, month int) Observation {
	return Observation{
		Timestamp:     ts,
		Load:          load,
		Temperature:   temp,
		DayOfWeek:     dayOfWeek,
		Month:         month,
		Year:          ts.Year(),
		IntervalOfDay: IntervalOf(ts),
		CalendarDate:  DateOf(ts),
	}
}

// IntervalOf returns the 15-minute slot (0-95) of t within its day.
func IntervalOf(t time.Time) int {
	return t.Hour()*4 + t.Minute()/15
}

// TimeRange is an inclusive pair of timestamps.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within [Start, End].
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// Overlaps reports whether the two inclusive ranges share any instant.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return !tr.End.Before(other.Start) && !other.End.Before(tr.Start)
}

// Ticks returns every Step-aligned timestamp in the range, inclusive.
func (tr TimeRange) Ticks(step time.Duration) []time.Time {
	if tr.End.Before(tr.Start) || step <= 0 {
		return nil
	}
	n := int(tr.End.Sub(tr.Start)/step) + 1
	ticks := make([]time.Time, 0, n)
	for t := tr.Start; !t.After(tr.End); t = t.Add(step) {
		ticks = append(ticks, t)
	}
	return ticks
}

func (tr TimeRange) String() string {
	const layout = "2006-01-02T15:04"
	return tr.Start.Format(layout) + ".." + tr.End.Format(layout)
}
