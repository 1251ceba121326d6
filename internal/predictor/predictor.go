// Package predictor provides the regressors scored by cross-validation and
// fitted by the forecaster CLI. Every model maps feature vectors (in
// model.FeatureNames order) to a load in kWh.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"load_forecaster/internal/model"
)

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("model is not fitted")

// Regressor is the black-box model contract.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Factory returns a fresh, unfitted regressor. Cross-validation calls it
// once per fold.
type Factory func() Regressor

// Kinds accepted by NewFactory.
const (
	KindNetwork     = "network"
	KindRidge       = "ridge"
	KindPersistence = "persistence"
)

// Options configures NewFactory. Fields irrelevant to the chosen kind are
// ignored.
type Options struct {
	Kind    string
	Hidden  []int
	Train   TrainConfig
	Seed    uint64
	Lambda  float64
	Columns []string
}

// NewFactory returns a factory for the regressor kind in opts.
func NewFactory(opts Options) (Factory, error) {
	switch opts.Kind {
	case KindNetwork:
		cfg := NetworkConfig{Hidden: opts.Hidden, Train: opts.Train, Seed: opts.Seed}
		return func() Regressor { return NewNetworkRegressor(cfg) }, nil
	case KindRidge:
		return func() Regressor { return NewRidge(opts.Lambda) }, nil
	case KindPersistence:
		cols := opts.Columns
		if cols == nil {
			cols = model.FeatureNames
		}
		idx := slices.Index(cols, "load_lag_1day")
		if idx < 0 {
			return nil, fmt.Errorf("persistence needs a load_lag_1day column")
		}
		return func() Regressor { return NewPersistence(idx) }, nil
	}
	return nil, fmt.Errorf("unknown model kind %q", opts.Kind)
}

// Scaler holds per-column z-score parameters.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes column means and standard deviations of X.
// Constant columns get a unit deviation.
func FitScaler(X [][]float64) Scaler {
	cols := len(X[0])
	s := Scaler{Mean: make([]float64, cols), Std: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		s.Mean[j], s.Std[j] = meanStd(col)
	}
	return s
}

// Transform returns the scaled copy of x.
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformAll scales every row of X.
func (s Scaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = s.Transform(x)
	}
	return out
}

func meanStd(v []float64) (float64, float64) {
	mean, std := stat.MeanStdDev(v, nil)
	// Also catches the NaN deviation of a single sample.
	if !(std > 1e-10) {
		std = 1
	}
	return mean, std
}

func checkTraining(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("no training rows")
	}
	if len(X) != len(y) {
		return fmt.Errorf("%d feature rows but %d targets", len(X), len(y))
	}
	return checkRows(X, len(X[0]))
}

func checkRows(X [][]float64, width int) error {
	for i, x := range X {
		if len(x) != width {
			return fmt.Errorf("row %d: expected %d features, got %d", i, width, len(x))
		}
		for j, v := range x {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d column %d: non-finite value", i, j)
			}
		}
	}
	return nil
}
