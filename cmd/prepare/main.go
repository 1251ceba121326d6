package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"load_forecaster/internal/app"
	"load_forecaster/internal/export"
	"load_forecaster/internal/model"
)

const (
	trainFile    = "train_cleaned.csv"
	testFile     = "test_cleaned.csv"
	workbookFile = "cleaned.xlsx"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	input := flag.String("input", "", "raw observations CSV (overrides config)")
	outDir := flag.String("out-dir", "", "directory for the cleaned tables (overrides config)")
	workbook := flag.Bool("workbook", false, "also write an xlsx workbook with train and test sheets")
	flag.Parse()

	cfg, log, err := app.Setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if *input != "" {
		cfg.Input = *input
	}
	if *outDir != "" {
		cfg.Export.Dir = *outDir
	}

	res, err := app.LoadFeatures(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing data: %v\n", err)
		os.Exit(1)
	}

	rep := res.Report
	fmt.Printf("Raw rows:             %d\n", rep.RawRows)
	fmt.Printf("Temperatures filled:  %d\n", rep.TemperatureFilled)
	fmt.Printf("Load faults:          %d in %d windows\n", rep.Repair.Faults, len(rep.Repair.Windows))
	fmt.Printf("Loads replaced:       %d\n", rep.Repair.Replaced)
	fmt.Printf("Outside valid period: %d\n", rep.OutsidePeriod)
	fmt.Printf("Incomplete rows:      %d\n", rep.Incomplete)
	fmt.Printf("Featurized rows:      %d (%s)\n", rep.Rows, rep.Range)

	test := cfg.TestRange()
	train, held := export.Split(res.Rows, test)
	fmt.Printf("\nTrain rows: %d\nTest rows:  %d (%s)\n", len(train), len(held), test)

	paths, err := writeExports(cfg.Export.Dir, train, held, *workbook || cfg.Export.Workbook)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing exports: %v\n", err)
		os.Exit(1)
	}
	for _, p := range paths {
		fmt.Printf("Wrote %s\n", p)
	}
}

// writeExports writes the train and test tables into dir and returns the
// paths written.
func writeExports(dir string, train, test []model.FeatureRow, workbook bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var paths []string
	for _, out := range []struct {
		name string
		rows []model.FeatureRow
	}{{trainFile, train}, {testFile, test}} {
		path := filepath.Join(dir, out.name)
		if err := writeCSVFile(path, out.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if workbook {
		path := filepath.Join(dir, workbookFile)
		if err := export.WriteWorkbook(path, train, test); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSVFile(path string, rows []model.FeatureRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
