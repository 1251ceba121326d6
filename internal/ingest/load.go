package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/model"
)

// RawColumns is the expected raw column layout, in order.
var RawColumns = []string{"full_date", "kwh", "temp", "date", "time", "dow", "month"}

const (
	colFullDate = iota
	colLoad
	colTemp
	colDate
	colTime
	colDOW
	colMonth
)

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// LoadParser parses the delimited electricity-load export.
//
// Expected format (header optional):
//
//	full_date,kwh,temp,date,time,dow,month
//	2012-11-02 00:30:00,1.25,8.4,2012-11-02,00:30:00,4,11
//
// The timestamp is built from the separate date and time fields; full_date
// is discarded. Empty or NaN readings become missing values.
type LoadParser struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

func NewLoadParser() *LoadParser {
	return &LoadParser{Comma: ','}
}

func (p *LoadParser) Parse(r io.Reader) ([]model.Observation, error) {
	cr := csv.NewReader(r)
	if p.Comma != 0 {
		cr.Comma = p.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []model.Observation
	lineNum := 0

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		if len(record) != len(RawColumns) {
			return nil, dataerr.Schema("expected %d columns, got %d", len(RawColumns), len(record)).
				WithContext("line", lineNum)
		}

		if lineNum == 1 && isHeader(record) {
			if err := validateHeader(record); err != nil {
				return nil, err
			}
			continue
		}

		obs, err := parseRecord(record, lineNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, obs)
	}

	if len(rows) == 0 {
		return nil, dataerr.Schema("no data rows")
	}

	return rows, nil
}

// isHeader treats the first record as a header when its load cell is neither
// empty nor numeric.
func isHeader(record []string) bool {
	_, err := parseReading(record[colLoad])
	return err != nil
}

// validateHeader accepts a header only when it names the raw columns in order.
func validateHeader(header []string) error {
	for i, col := range RawColumns {
		got := strings.ToLower(strings.TrimSpace(header[i]))
		if got != col {
			return dataerr.Schema("expected column %d to be %q, got %q", i, col, header[i])
		}
	}
	return nil
}

func parseRecord(record []string, lineNum int) (model.Observation, error) {
	load, err := parseReading(record[colLoad])
	if err != nil {
		return model.Observation{}, fieldError(err, lineNum, RawColumns[colLoad], record[colLoad])
	}

	temp, err := parseReading(record[colTemp])
	if err != nil {
		return model.Observation{}, fieldError(err, lineNum, RawColumns[colTemp], record[colTemp])
	}

	day, err := parseDate(strings.TrimSpace(record[colDate]))
	if err != nil {
		return model.Observation{}, fieldError(err, lineNum, RawColumns[colDate], record[colDate])
	}

	offset, err := parseTimeOfDay(strings.TrimSpace(record[colTime]))
	if err != nil {
		return model.Observation{}, fieldError(err, lineNum, RawColumns[colTime], record[colTime])
	}

	dow, err := parseBounded(record[colDOW], 0, 6)
	if err != nil {
		return model.Observation{}, fieldError(err, lineNum, RawColumns[colDOW], record[colDOW])
	}

	month, err := parseBounded(record[colMonth], 1, 12)
	if err != nil {
		return model.Observation{}, fieldError(err, lineNum, RawColumns[colMonth], record[colMonth])
	}

	return model.NewObservation(day.Add(offset), load, temp, dow, month), nil
}

func fieldError(err error, lineNum int, column, value string) error {
	return dataerr.SchemaCause(err, "unparseable %s %q", column, value).WithContext("line", lineNum)
}

// parseReading parses a float cell; empty and NaN-like cells are missing.
func parseReading(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return model.Missing(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching date layout")
}

// parseTimeOfDay parses H:MM or H:MM:SS into an offset from midnight.
func parseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected H:MM[:SS]")
	}

	limits := []int{24, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}

	var d time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, err
		}
		if n < 0 || n > limits[i] {
			return 0, fmt.Errorf("component %d out of range: %d", i, n)
		}
		d += time.Duration(n) * units[i]
	}
	if d > 24*time.Hour {
		return 0, fmt.Errorf("time of day past 24:00")
	}
	return d, nil
}

func parseBounded(s string, lo, hi int) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, err
		}
		n = int(f)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("value %d outside [%d, %d]", n, lo, hi)
	}
	return n, nil
}
