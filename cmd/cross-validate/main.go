package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"load_forecaster/internal/app"
	"load_forecaster/internal/config"
	"load_forecaster/internal/crossval"
	"load_forecaster/internal/predictor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	input := flag.String("input", "", "raw observations CSV (overrides config)")
	kind := flag.String("model", "", "regressor: network, ridge or persistence (overrides config)")
	cadence := flag.String("cadence", "", "fold cadence, e.g. 3w or 504h (overrides config)")
	metricName := flag.String("metric", "", "fold metric: mae, mape or rmse (overrides config)")
	workers := flag.Int("workers", 0, "folds evaluated concurrently (overrides config)")
	timeout := flag.Duration("timeout", 0, "abort the run after this long (0 = no limit)")
	flag.Parse()

	cfg, log, err := app.Setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if err := applyOverrides(&cfg, *input, *kind, *cadence, *metricName, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "Error in flags: %v\n", err)
		os.Exit(1)
	}

	cvCfg, err := cfg.CrossValConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in cross-validation settings: %v\n", err)
		os.Exit(1)
	}
	factory, err := predictor.NewFactory(cfg.PredictorOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building model: %v\n", err)
		os.Exit(1)
	}

	res, err := app.LoadFeatures(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing data: %v\n", err)
		os.Exit(1)
	}

	v, err := crossval.New(cvCfg, factory, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating validator: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := v.Run(ctx, res.Rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error cross-validating: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model: %s, cadence %s, horizon %s\n\n", cfg.Model.Kind, cvCfg.Cadence, cvCfg.Horizon)
	printReport(os.Stdout, result)
	fmt.Printf("\nElapsed: %s\n", time.Since(start).Round(time.Millisecond))
}

// applyOverrides copies non-empty flag values onto cfg and revalidates it.
func applyOverrides(cfg *config.Config, input, kind, cadence, metricName string, workers int) error {
	if input != "" {
		cfg.Input = input
	}
	if kind != "" {
		cfg.Model.Kind = kind
	}
	if cadence != "" {
		d, err := config.ParseDuration(cadence)
		if err != nil {
			return fmt.Errorf("cadence: %w", err)
		}
		cfg.CrossValidation.Cadence = config.Duration(d)
	}
	if metricName != "" {
		cfg.CrossValidation.Metric = metricName
	}
	if workers > 0 {
		cfg.CrossValidation.Workers = workers
	}
	return cfg.Validate()
}

// printReport writes one line per fold followed by the mean error.
func printReport(w io.Writer, res crossval.Result) {
	const layout = "2006-01-02 15:04"
	fmt.Fprintf(w, "%-5s %-16s  %-16s  %8s  %6s  %s\n", "fold", "train end", "test end", "rows", res.Metric, "elapsed")
	for _, f := range res.Folds {
		fmt.Fprintf(w, "%-5d %-16s  %-16s  %8d  %6.2f  %s\n",
			f.Fold.Index,
			f.Fold.Train.End.Format(layout),
			f.Fold.Test.End.Format(layout),
			f.TrainRows,
			f.Error,
			f.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "\nFolds: %d, mean %s: %.4f\n", len(res.Folds), res.Metric, res.Mean())
}
