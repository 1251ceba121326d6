// Package metric holds the forecast error functions used to score folds.
package metric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"load_forecaster/internal/dataerr"
)

// Func scores a prediction against the observed values.
type Func func(yTrue, yPred []float64) (float64, error)

var registry = map[string]Func{
	"mape": MAPE,
	"mae":  MAE,
	"rmse": RMSE,
}

// ByName returns the metric registered under name.
func ByName(name string) (Func, bool) {
	f, ok := registry[name]
	return f, ok
}

// Names lists the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MAPE returns the mean absolute percentage error, in percent.
// It is undefined when any observed value is zero.
func MAPE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("mape", yTrue, yPred); err != nil {
		return 0, err
	}
	ape := make([]float64, len(yTrue))
	for i, y := range yTrue {
		if y == 0 {
			return 0, dataerr.MetricDomain("mape is undefined for a zero observation").
				WithContext("index", i)
		}
		ape[i] = math.Abs((y - yPred[i]) / y)
	}
	return stat.Mean(ape, nil) * 100, nil
}

// MAE returns the mean absolute error.
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("mae", yTrue, yPred); err != nil {
		return 0, err
	}
	abs := make([]float64, len(yTrue))
	for i := range yTrue {
		abs[i] = math.Abs(yTrue[i] - yPred[i])
	}
	return stat.Mean(abs, nil), nil
}

// RMSE returns the root mean squared error.
func RMSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("rmse", yTrue, yPred); err != nil {
		return 0, err
	}
	sq := make([]float64, len(yTrue))
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sq[i] = d * d
	}
	return math.Sqrt(stat.Mean(sq, nil)), nil
}

func checkPair(name string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return dataerr.MetricDomain("%s needs at least one observation", name)
	}
	if len(yTrue) != len(yPred) {
		return dataerr.MetricDomain("%s length mismatch", name).
			WithContext("observed", len(yTrue)).
			WithContext("predicted", len(yPred))
	}
	return nil
}
