package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalOf(t *testing.T) {
	assert.Equal(t, 0, IntervalOf(time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, IntervalOf(time.Date(2013, 1, 1, 0, 30, 0, 0, time.UTC)))
	assert.Equal(t, 95, IntervalOf(time.Date(2013, 1, 1, 23, 45, 0, 0, time.UTC)))
}

func TestNewObservation_DerivesCalendarFields(t *testing.T) {
	ts := time.Date(2012, 11, 2, 17, 15, 0, 0, time.UTC)
	o := NewObservation(ts, 12.5, 8, 4, 11)

	assert.Equal(t, 2012, o.Year)
	assert.Equal(t, 69, o.IntervalOfDay)
	assert.Equal(t, Date{Year: 2012, Month: time.November, Day: 2}, o.CalendarDate)
	assert.Equal(t, "2012-11-02", o.CalendarDate.String())
}

func TestTimeRange(t *testing.T) {
	base := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := TimeRange{Start: base, End: base.Add(time.Hour)}

	assert.True(t, tr.Contains(base))
	assert.True(t, tr.Contains(base.Add(time.Hour)))
	assert.False(t, tr.Contains(base.Add(time.Hour+time.Second)))
	assert.Len(t, tr.Ticks(Step), 5)
	assert.Nil(t, TimeRange{Start: tr.End, End: tr.Start}.Ticks(Step))

	touching := TimeRange{Start: tr.End, End: tr.End.Add(time.Hour)}
	assert.True(t, tr.Overlaps(touching))
	apart := TimeRange{Start: tr.End.Add(Step), End: tr.End.Add(time.Hour)}
	assert.False(t, tr.Overlaps(apart))
	assert.Equal(t, "2013-01-01T00:00..2013-01-01T01:00", tr.String())
}

func TestFeatureRow_MissingColumn(t *testing.T) {
	o := NewObservation(time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC), 1, 2, 1, 1)
	r := NewFeatureRow(o)
	assert.Equal(t, "min_temp_of_day", r.MissingColumn())

	r.Load = Missing()
	assert.Equal(t, "load", r.MissingColumn())

	r = NewFeatureRow(o)
	r.MinTempOfDay, r.MaxTempOfDay = 1, 3
	r.LoadLag1Day, r.MorningPeakLag1Day, r.EveningPeakLag1Day = 4, 5, 6
	assert.Equal(t, "", r.MissingColumn())
	assert.Len(t, r.Vector(), len(FeatureNames))
}
