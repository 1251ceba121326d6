package main

import (
	"flag"
	"fmt"
	"os"

	"load_forecaster/internal/app"
	"load_forecaster/internal/export"
	"load_forecaster/internal/metric"
	"load_forecaster/internal/model"
	"load_forecaster/internal/predictor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	trainPath := flag.String("train", "data/train_cleaned.csv", "cleaned training table")
	testPath := flag.String("test", "data/test_cleaned.csv", "cleaned test table")
	kind := flag.String("model", "", "regressor: network, ridge or persistence (overrides config)")
	output := flag.String("output", "", "path to write the network model JSON (network only)")
	epochs := flag.Int("epochs", 0, "training epochs (overrides config)")
	seed := flag.Uint64("seed", 0, "random seed (overrides config)")
	flag.Parse()

	cfg, log, err := app.Setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if *kind != "" {
		cfg.Model.Kind = *kind
	}
	if *epochs > 0 {
		cfg.Model.Epochs = *epochs
	}
	if *seed > 0 {
		cfg.Model.Seed = *seed
	}

	train, err := readTable(*trainPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading training table: %v\n", err)
		os.Exit(1)
	}
	test, err := readTable(*testPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading test table: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Training rows: %d, test rows: %d\n", len(train), len(test))

	opts := cfg.PredictorOptions()
	factory, err := predictor.NewFactory(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building model: %v\n", err)
		os.Exit(1)
	}
	if opts.Kind == predictor.KindNetwork {
		fmt.Printf("Training: hidden=%v epochs=%d lr=%.4f batch_size=%d seed=%d\n",
			opts.Hidden, opts.Train.Epochs, opts.Train.LearningRate, opts.Train.BatchSize, opts.Seed)
	}

	reg := factory()
	scores, err := evaluate(reg, train, test)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error evaluating %s: %v\n", opts.Kind, err)
		os.Exit(1)
	}

	if nn, ok := reg.(*predictor.NetworkRegressor); ok {
		losses := nn.Losses()
		if len(losses) > 0 {
			fmt.Printf("Initial val loss: %.6f\n", losses[0])
			fmt.Printf("Final val loss:   %.6f\n", losses[len(losses)-1])
		}
	}

	fmt.Printf("\nTest scores (%s):\n", opts.Kind)
	for _, s := range scores {
		fmt.Printf("  %-5s %.4f\n", s.name, s.value)
	}

	if *output == "" {
		return
	}
	nn, ok := reg.(*predictor.NetworkRegressor)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error saving model: only network models are saved, got %s\n", opts.Kind)
		os.Exit(1)
	}
	data, err := nn.Save()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error serializing model: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing model to %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("\nModel saved to %s (%d bytes)\n", *output, len(data))
}

func readTable(path string) ([]model.FeatureRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return export.ReadCSV(f)
}

type score struct {
	name  string
	value float64
}

// evaluate fits reg on train and scores its test predictions with every
// registered metric, in name order.
func evaluate(reg predictor.Regressor, train, test []model.FeatureRow) ([]score, error) {
	X, y := export.Matrix(train)
	if err := reg.Fit(X, y); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	testX, testY := export.Matrix(test)
	pred, err := reg.Predict(testX)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	var scores []score
	for _, name := range metric.Names() {
		f, _ := metric.ByName(name)
		v, err := f(testY, pred)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scores = append(scores, score{name: name, value: v})
	}
	return scores, nil
}
