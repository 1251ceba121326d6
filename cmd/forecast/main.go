// forecast replays a saved network model over a cleaned feature table and
// prints the predicted load next to the observed one.
//
// Usage:
//
//	forecast
//	forecast -day 2013-11-30
//	forecast -model model/load.json -input data/test_cleaned.csv -csv
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"load_forecaster/internal/export"
	"load_forecaster/internal/metric"
	"load_forecaster/internal/model"
	"load_forecaster/internal/predictor"
)

func main() {
	modelPath := flag.String("model", "model/load.json", "path to network model JSON")
	input := flag.String("input", "data/test_cleaned.csv", "cleaned feature table")
	day := flag.String("day", "", "only forecast this date (YYYY-MM-DD)")
	csvOut := flag.Bool("csv", false, "output as CSV")
	flag.Parse()

	data, err := os.ReadFile(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading model: %v\n", err)
		os.Exit(1)
	}
	reg, err := predictor.LoadNetworkRegressor(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening table: %v\n", err)
		os.Exit(1)
	}
	rows, err := export.ReadCSV(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading table: %v\n", err)
		os.Exit(1)
	}

	if *day != "" {
		d, err := time.Parse("2006-01-02", *day)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing day: %v\n", err)
			os.Exit(1)
		}
		rows = onDay(rows, model.DateOf(d))
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "No rows to forecast.")
		os.Exit(1)
	}

	X, y := export.Matrix(rows)
	pred, err := reg.Predict(X)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error predicting: %v\n", err)
		os.Exit(1)
	}

	writeForecast(os.Stdout, rows, pred, *csvOut)
	if *csvOut {
		return
	}
	if err := printMAPE(os.Stdout, y, pred); err != nil {
		fmt.Fprintf(os.Stderr, "Error scoring: %v\n", err)
		os.Exit(1)
	}
}

// printMAPE writes the MAPE of pred against y.
func printMAPE(w io.Writer, y, pred []float64) error {
	mape, err := metric.MAPE(y, pred)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nMAPE: %.2f%%\n", mape)
	return nil
}

func onDay(rows []model.FeatureRow, d model.Date) []model.FeatureRow {
	var out []model.FeatureRow
	for _, r := range rows {
		if model.DateOf(r.Timestamp) == d {
			out = append(out, r)
		}
	}
	return out
}

func writeForecast(w io.Writer, rows []model.FeatureRow, pred []float64, csv bool) {
	if csv {
		fmt.Fprintln(w, "timestamp,load,predicted")
		for i, r := range rows {
			fmt.Fprintf(w, "%s,%.4f,%.4f\n", r.Timestamp.Format(time.RFC3339), r.Load, pred[i])
		}
		return
	}

	fmt.Fprintf(w, "%-16s  %9s  %9s  %8s\n", "Time", "Load", "Forecast", "Error %")
	fmt.Fprintf(w, "%-16s  %9s  %9s  %8s\n", "----------------", "---------", "---------", "--------")
	for i, r := range rows {
		pct := "-"
		if r.Load != 0 {
			pct = fmt.Sprintf("%+.1f", (pred[i]-r.Load)/r.Load*100)
		}
		fmt.Fprintf(w, "%-16s  %9.3f  %9.3f  %8s\n", r.Timestamp.Format("2006-01-02 15:04"), r.Load, pred[i], pct)
	}
}
