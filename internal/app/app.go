// Package app holds the start-up steps shared by the binaries: config,
// logger and the featurized table.
package app

import (
	"fmt"
	"os"

	"load_forecaster/internal/config"
	"load_forecaster/internal/logger"
	"load_forecaster/internal/pipeline"
)

// Setup loads the config at path (defaults when path is empty) and builds
// the logger it describes.
func Setup(path string) (config.Config, *logger.Logger, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, nil, err
		}
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}

// LoadFeatures runs the pipeline over cfg.Input.
func LoadFeatures(cfg config.Config, log *logger.Logger) (*pipeline.Result, error) {
	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	log.Infow("Loading observations", "input", cfg.Input)
	res, err := pipeline.New(cfg.PipelineConfig(), log).Run(f)
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", cfg.Input, err)
	}
	return res, nil
}
