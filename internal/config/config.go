// Package config loads the YAML settings shared by the binaries.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"load_forecaster/internal/cleaning"
	"load_forecaster/internal/crossval"
	"load_forecaster/internal/metric"
	"load_forecaster/internal/model"
	"load_forecaster/internal/pipeline"
	"load_forecaster/internal/predictor"
)

// TimestampLayout is the format of every timestamp in the file.
const TimestampLayout = "2006-01-02T15:04"

type Config struct {
	Input           string          `yaml:"input"`
	ValidPeriod     Period          `yaml:"valid_period"`
	Repair          Repair          `yaml:"repair"`
	CrossValidation CrossValidation `yaml:"cross_validation"`
	Model           Model           `yaml:"model"`
	Export          Export          `yaml:"export"`
	Log             Log             `yaml:"log"`
	Server          Server          `yaml:"server"`
}

type Period struct {
	Start Timestamp `yaml:"start"`
	End   Timestamp `yaml:"end"`
}

// Range returns the inclusive time range.
func (p Period) Range() model.TimeRange {
	return model.TimeRange{Start: p.Start.Time, End: p.End.Time}
}

type Repair struct {
	FaultValue   float64  `yaml:"fault_value"`
	Tolerance    Duration `yaml:"tolerance"`
	SingleWindow bool     `yaml:"single_window"`
}

type CrossValidation struct {
	Cadence Duration `yaml:"cadence"`
	Horizon Duration `yaml:"horizon"`
	Workers int      `yaml:"workers"`
	Metric  string   `yaml:"metric"`
}

type Model struct {
	Kind         string  `yaml:"kind"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`
	Hidden       []int   `yaml:"hidden"`
	Seed         uint64  `yaml:"seed"`
	L2           float64 `yaml:"l2"`
}

type Export struct {
	Dir       string    `yaml:"dir"`
	TestStart Timestamp `yaml:"test_start"`
	TestEnd   Timestamp `yaml:"test_end"`
	Workbook  bool      `yaml:"workbook"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	train := predictor.DefaultTrainConfig()
	cv := crossval.DefaultConfig()
	return Config{
		Input: "data/load.csv",
		ValidPeriod: Period{
			Start: Timestamp{cleaning.DefaultValidPeriod.Start},
			End:   Timestamp{cleaning.DefaultValidPeriod.End},
		},
		Repair: Repair{
			FaultValue: 0,
			Tolerance:  Duration(cleaning.DefaultRepairConfig().Tolerance),
		},
		CrossValidation: CrossValidation{
			Cadence: Duration(cv.Cadence),
			Horizon: Duration(cv.Horizon),
			Workers: cv.Workers,
			Metric:  cv.MetricName,
		},
		Model: Model{
			Kind:         predictor.KindNetwork,
			Epochs:       train.Epochs,
			LearningRate: train.LearningRate,
			BatchSize:    train.BatchSize,
			Hidden:       predictor.DefaultNetworkConfig().Hidden,
			Seed:         predictor.DefaultNetworkConfig().Seed,
			L2:           1,
		},
		Export: Export{
			Dir:       "data",
			TestStart: mustTimestamp("2013-11-16T00:00"),
			TestEnd:   mustTimestamp("2013-11-30T23:45"),
		},
		Log:    Log{Level: "info"},
		Server: Server{Addr: ":8080"},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.ValidPeriod.End.Before(c.ValidPeriod.Start.Time) {
		errs = append(errs, fmt.Errorf("valid_period: end %s is before start %s", c.ValidPeriod.End, c.ValidPeriod.Start))
	}
	if c.Repair.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("repair.tolerance must not be negative"))
	}
	if time.Duration(c.CrossValidation.Horizon) != 24*time.Hour {
		errs = append(errs, fmt.Errorf("cross_validation.horizon is fixed at 24h, got %s", c.CrossValidation.Horizon))
	}
	if time.Duration(c.CrossValidation.Cadence) < 24*time.Hour {
		errs = append(errs, fmt.Errorf("cross_validation.cadence must be at least one day"))
	}
	if c.CrossValidation.Workers < 1 {
		errs = append(errs, fmt.Errorf("cross_validation.workers must be at least 1"))
	}
	if _, ok := metric.ByName(c.CrossValidation.Metric); !ok {
		errs = append(errs, fmt.Errorf("cross_validation.metric %q is not one of %s",
			c.CrossValidation.Metric, strings.Join(metric.Names(), ", ")))
	}
	switch c.Model.Kind {
	case predictor.KindNetwork:
		if c.Model.Epochs < 1 || c.Model.BatchSize < 1 || c.Model.LearningRate <= 0 {
			errs = append(errs, fmt.Errorf("model: epochs, batch_size and learning_rate must be positive"))
		}
		for _, h := range c.Model.Hidden {
			if h < 1 {
				errs = append(errs, fmt.Errorf("model.hidden: layer width %d", h))
			}
		}
	case predictor.KindRidge:
		if c.Model.L2 < 0 {
			errs = append(errs, fmt.Errorf("model.l2 must not be negative"))
		}
	case predictor.KindPersistence:
	default:
		errs = append(errs, fmt.Errorf("model.kind %q is not one of network, ridge, persistence", c.Model.Kind))
	}
	if c.Export.TestEnd.Before(c.Export.TestStart.Time) {
		errs = append(errs, fmt.Errorf("export: test_end is before test_start"))
	}
	return errors.Join(errs...)
}

// PipelineConfig returns the cleaning settings.
func (c Config) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ValidPeriod = c.ValidPeriod.Range()
	cfg.Repair.FaultValue = c.Repair.FaultValue
	cfg.Repair.Tolerance = time.Duration(c.Repair.Tolerance)
	cfg.Repair.SingleWindow = c.Repair.SingleWindow
	return cfg
}

// CrossValConfig returns the fold layout and metric.
func (c Config) CrossValConfig() (crossval.Config, error) {
	f, ok := metric.ByName(c.CrossValidation.Metric)
	if !ok {
		return crossval.Config{}, fmt.Errorf("unknown metric %q", c.CrossValidation.Metric)
	}
	cfg := crossval.DefaultConfig()
	cfg.Cadence = time.Duration(c.CrossValidation.Cadence)
	cfg.Horizon = time.Duration(c.CrossValidation.Horizon)
	cfg.Workers = c.CrossValidation.Workers
	cfg.Metric = f
	cfg.MetricName = c.CrossValidation.Metric
	return cfg, nil
}

// PredictorOptions returns the model settings.
func (c Config) PredictorOptions() predictor.Options {
	train := predictor.DefaultTrainConfig()
	train.Epochs = c.Model.Epochs
	train.LearningRate = c.Model.LearningRate
	train.BatchSize = c.Model.BatchSize
	return predictor.Options{
		Kind:   c.Model.Kind,
		Hidden: c.Model.Hidden,
		Train:  train,
		Seed:   c.Model.Seed,
		Lambda: c.Model.L2,
	}
}

// TestRange returns the held-out export window.
func (c Config) TestRange() model.TimeRange {
	return model.TimeRange{Start: c.Export.TestStart.Time, End: c.Export.TestEnd.Time}
}

// Duration accepts Go durations plus whole days ("2d") and weeks ("3w").
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// ParseDuration extends time.ParseDuration with "d" and "w" units.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	units := map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour}
	for suffix, unit := range units {
		if n, ok := strings.CutSuffix(s, suffix); ok {
			v, err := strconv.Atoi(n)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			return time.Duration(v) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Timestamp is a UTC time written as TimestampLayout.
type Timestamp struct {
	time.Time
}

func (t Timestamp) String() string {
	return t.Format(TimestampLayout)
}

func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: timestamp %q must look like %s", value.Line, s, TimestampLayout)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	return t.String(), nil
}

func mustTimestamp(s string) Timestamp {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		panic(err)
	}
	return Timestamp{t}
}
