// Package export writes featurized rows as CSV files and Excel workbooks and
// reads the CSV form back.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/model"
)

// TimestampLayout formats the timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// Sheet names used by WriteWorkbook.
const (
	TrainSheet = "train"
	TestSheet  = "test"
)

// Columns is the exported header: timestamp, the target, then the features.
var Columns = append([]string{"timestamp", "load"}, model.FeatureNames...)

// Split returns the rows before test.Start as training rows and the rows
// inside test as held-out rows. Rows after test.End belong to neither.
func Split(rows []model.FeatureRow, test model.TimeRange) (train, held []model.FeatureRow) {
	for _, r := range rows {
		switch {
		case r.Timestamp.Before(test.Start):
			train = append(train, r)
		case test.Contains(r.Timestamp):
			held = append(held, r)
		}
	}
	return train, held
}

func record(r model.FeatureRow) []string {
	out := make([]string, 0, len(Columns))
	out = append(out, r.Timestamp.Format(TimestampLayout), formatFloat(r.Load))
	for _, v := range r.Vector() {
		out = append(out, formatFloat(v))
	}
	return out
}

func formatFloat(v float64) string {
	if model.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []model.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) ([]model.FeatureRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, dataerr.Schema("empty feature file")
	}
	if err != nil {
		return nil, dataerr.SchemaCause(err, "reading feature header")
	}
	for i, col := range Columns {
		if strings.TrimSpace(header[i]) != col {
			return nil, dataerr.Schema("expected column %d to be %q, got %q", i, col, header[i])
		}
	}

	var rows []model.FeatureRow
	lineNum := 1
	for {
		lineNum++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dataerr.SchemaCause(err, "reading feature row").WithContext("line", lineNum)
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, dataerr.SchemaCause(err, "parsing feature row").WithContext("line", lineNum)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string) (model.FeatureRow, error) {
	ts, err := time.Parse(TimestampLayout, rec[0])
	if err != nil {
		return model.FeatureRow{}, err
	}
	v := make([]float64, len(rec)-1)
	for i, s := range rec[1:] {
		if s == "" {
			v[i] = model.Missing()
			continue
		}
		if v[i], err = strconv.ParseFloat(s, 64); err != nil {
			return model.FeatureRow{}, fmt.Errorf("column %s: %w", Columns[i+1], err)
		}
	}

	// v[0] is the load; v[1:] follows model.FeatureNames.
	r := model.NewFeatureRow(model.NewObservation(ts, v[0], v[1], int(v[2]), int(v[3])))
	r.MinTempOfDay = v[5]
	r.MaxTempOfDay = v[6]
	r.LoadLag1Day = v[7]
	r.MorningPeakLag1Day = v[8]
	r.EveningPeakLag1Day = v[9]
	return r, nil
}

// Matrix returns the feature vectors and load targets of rows.
func Matrix(rows []model.FeatureRow) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Vector()
		y[i] = r.Load
	}
	return X, y
}

// WriteWorkbook writes the train and test rows as two sheets of one
// workbook at path.
func WriteWorkbook(path string, train, test []model.FeatureRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TrainSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(TestSheet); err != nil {
		return err
	}
	if err := writeSheet(f, TrainSheet, train); err != nil {
		return fmt.Errorf("sheet %s: %w", TrainSheet, err)
	}
	if err := writeSheet(f, TestSheet, test); err != nil {
		return fmt.Errorf("sheet %s: %w", TestSheet, err)
	}
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, rows []model.FeatureRow) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, 0, len(Columns))
		values = append(values, r.Timestamp.Format(TimestampLayout), r.Load)
		for _, v := range r.Vector() {
			values = append(values, v)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	return sw.Flush()
}
