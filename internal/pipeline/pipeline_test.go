package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/model"
)

var rawStart = time.Date(2012, 11, 1, 0, 0, 0, 0, time.UTC)

type rawRow struct {
	at   time.Time
	load string
	temp string
}

// rawSeries returns 28 days of readings from 2012-11-01.
func rawSeries() []rawRow {
	var rows []rawRow
	for i := 0; i < 28*model.IntervalsPerDay; i++ {
		at := rawStart.Add(time.Duration(i) * model.Step)
		day := i / model.IntervalsPerDay
		load := 1 + float64(model.IntervalOf(at))*0.01 + float64(day)*0.1
		rows = append(rows, rawRow{
			at:   at,
			load: fmt.Sprintf("%.2f", load),
			temp: fmt.Sprintf("%.1f", 5+float64(at.Hour())*0.1),
		})
	}
	return rows
}

func csvOf(rows []rawRow) string {
	var b strings.Builder
	b.WriteString("full_date,kwh,temp,date,time,dow,month\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%d,%d\n",
			r.at.Format("2006-01-02 15:04:05"), r.load, r.temp,
			r.at.Format("2006-01-02"), r.at.Format("15:04:05"),
			(int(r.at.Weekday())+6)%7, int(r.at.Month()))
	}
	return b.String()
}

func set(rows []rawRow, at time.Time, mutate func(*rawRow)) {
	for i := range rows {
		if rows[i].at.Equal(at) {
			mutate(&rows[i])
			return
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ValidPeriod = model.TimeRange{
		Start: time.Date(2012, 11, 2, 0, 30, 0, 0, time.UTC),
		End:   time.Date(2012, 11, 28, 23, 45, 0, 0, time.UTC),
	}
	cfg.Repair.Tolerance = time.Hour
	return cfg
}

func TestPipeline_Run(t *testing.T) {
	rows := rawSeries()
	for m := 0; m <= 60; m += 15 {
		set(rows, time.Date(2012, 11, 15, 10, m, 0, 0, time.UTC), func(r *rawRow) { r.load = "0" })
	}
	set(rows, time.Date(2012, 11, 10, 12, 15, 0, 0, time.UTC), func(r *rawRow) { r.temp = "" })
	dup := rawRow{at: time.Date(2012, 11, 20, 5, 0, 0, 0, time.UTC), load: "", temp: "5.5"}
	rows = append(rows, dup)

	res, err := New(testConfig(), nil).Run(strings.NewReader(csvOf(rows)))
	require.NoError(t, err)

	rep := res.Report
	assert.Equal(t, 28*model.IntervalsPerDay+1, rep.RawRows)
	assert.Equal(t, 1, rep.TemperatureFilled)
	assert.Equal(t, 5, rep.Repair.Faults)
	assert.Equal(t, 13, rep.Repair.Replaced)
	assert.Equal(t, model.IntervalsPerDay+2, rep.OutsidePeriod)
	// Nov 2 and the first two ticks of Nov 3 have no lag, plus the duplicate.
	assert.Equal(t, 94+2+1, rep.Incomplete)
	assert.Equal(t, 26*model.IntervalsPerDay-2, rep.Rows)
	assert.Equal(t, time.Date(2012, 11, 3, 0, 30, 0, 0, time.UTC), rep.Range.Start)
	assert.Equal(t, time.Date(2012, 11, 28, 23, 45, 0, 0, time.UTC), rep.Range.End)

	require.Len(t, res.Rows, rep.Rows)
	for _, r := range res.Rows {
		require.Equal(t, "", r.MissingColumn(), r.Timestamp)
		require.NotEqual(t, 0.0, r.Load, r.Timestamp)
	}

	for _, r := range res.Rows {
		if r.Timestamp.Equal(time.Date(2012, 11, 10, 12, 15, 0, 0, time.UTC)) {
			assert.InDelta(t, 6.2, r.Temperature, 1e-9)
		}
	}
}

func TestPipeline_UnresolvedRepairIsIntegrityError(t *testing.T) {
	rows := rawSeries()
	for _, day := range []int{1, 8, 15, 22} { // every Thursday
		set(rows, time.Date(2012, 11, day, 6, 0, 0, 0, time.UTC), func(r *rawRow) { r.load = "0" })
	}
	cfg := testConfig()
	cfg.Repair.Tolerance = 0

	_, err := New(cfg, nil).Run(strings.NewReader(csvOf(rows)))
	require.ErrorIs(t, err, dataerr.ErrDataIntegrity)
	assert.Contains(t, err.Error(), "2012-11-08T06:00:00Z")
}

func TestPipeline_TrailingMissingLoadIsIntegrityError(t *testing.T) {
	rows := rawSeries()
	last := rows[len(rows)-1].at
	set(rows, last, func(r *rawRow) { r.load = "" })

	_, err := New(testConfig(), nil).Run(strings.NewReader(csvOf(rows)))
	require.ErrorIs(t, err, dataerr.ErrDataIntegrity)
	assert.Contains(t, err.Error(), "column=load")
	assert.Contains(t, err.Error(), last.Format(time.RFC3339))
}

func TestPipeline_LeadingMissingTemperature(t *testing.T) {
	blank := func(n int) []rawRow {
		rows := rawSeries()
		for i := 0; i < n; i++ {
			rows[i].temp = ""
		}
		return rows
	}

	// Unknown temperatures inside the warm-up day are dropped with it.
	res, err := New(testConfig(), nil).Run(strings.NewReader(csvOf(blank(120))))
	require.NoError(t, err)
	assert.Equal(t, 26*model.IntervalsPerDay-2, res.Report.Rows)
	assert.Equal(t, model.IntervalsPerDay, res.Report.Incomplete)

	// Past the warm-up day they are an error.
	_, err = New(testConfig(), nil).Run(strings.NewReader(csvOf(blank(200))))
	require.ErrorIs(t, err, dataerr.ErrDataIntegrity)
	assert.Contains(t, err.Error(), "column=temperature")
	assert.Contains(t, err.Error(), "2012-11-03T00:30:00Z")
}

func TestPipeline_GapIsIntegrityError(t *testing.T) {
	rows := rawSeries()
	gap := time.Date(2012, 11, 20, 12, 0, 0, 0, time.UTC)
	kept := rows[:0]
	for _, r := range rows {
		if !r.at.Equal(gap) {
			kept = append(kept, r)
		}
	}

	_, err := New(testConfig(), nil).Run(strings.NewReader(csvOf(kept)))
	require.ErrorIs(t, err, dataerr.ErrDataIntegrity)
	assert.Contains(t, err.Error(), "gap")
}

func TestPipeline_SchemaError(t *testing.T) {
	_, err := New(testConfig(), nil).Run(strings.NewReader("a,b\n1,2\n"))
	assert.ErrorIs(t, err, dataerr.ErrSchema)
}

func TestPipeline_PeriodWithoutData(t *testing.T) {
	cfg := testConfig()
	cfg.ValidPeriod = model.TimeRange{
		Start: time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2013, 1, 31, 23, 45, 0, 0, time.UTC),
	}

	_, err := New(cfg, nil).Run(strings.NewReader(csvOf(rawSeries())))
	assert.ErrorIs(t, err, dataerr.ErrDataIntegrity)
}
