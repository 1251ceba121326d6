package predictor

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
)

// NetworkConfig configures a NetworkRegressor.
type NetworkConfig struct {
	Hidden []int // widths of the hidden layers
	Train  TrainConfig
	Seed   uint64
}

// DefaultNetworkConfig returns a two-hidden-layer setup.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Hidden: []int{32, 16},
		Train:  DefaultTrainConfig(),
		Seed:   42,
	}
}

// NetworkRegressor z-scores inputs and target and fits a Network on them.
type NetworkRegressor struct {
	cfg    NetworkConfig
	net    *Network
	x      Scaler
	yMean  float64
	yStd   float64
	losses []float64
}

// NewNetworkRegressor returns an unfitted regressor.
func NewNetworkRegressor(cfg NetworkConfig) *NetworkRegressor {
	if len(cfg.Hidden) == 0 {
		cfg.Hidden = DefaultNetworkConfig().Hidden
	}
	return &NetworkRegressor{cfg: cfg}
}

// Fit trains a fresh network. With ten or more rows a tenth of them is held
// out for the per-epoch validation loss.
func (r *NetworkRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}
	if r.cfg.Train.BatchSize <= 0 || r.cfg.Train.Epochs <= 0 {
		return fmt.Errorf("batch size and epochs must be positive")
	}
	rng := rand.New(rand.NewPCG(r.cfg.Seed, 0))

	r.x = FitScaler(X)
	r.yMean, r.yStd = meanStd(y)
	xs := r.x.TransformAll(X)
	ys := make([]float64, len(y))
	for i, v := range y {
		ys[i] = (v - r.yMean) / r.yStd
	}

	trainX, trainY, valX, valY := shuffleAndSplit(xs, ys, rng)
	sizes := append(append([]int{len(X[0])}, r.cfg.Hidden...), 1)
	r.net = NewNetwork(sizes, rng)
	r.losses = r.net.Train(trainX, trainY, valX, valY, r.cfg.Train, rng)
	return nil
}

// Predict returns loads in the target's original unit.
func (r *NetworkRegressor) Predict(X [][]float64) ([]float64, error) {
	if r.net == nil {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, r.net.Inputs()); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = r.net.Forward(r.x.Transform(x))*r.yStd + r.yMean
	}
	return out, nil
}

// Losses returns the validation MSE (scaled target) per epoch of the last Fit.
func (r *NetworkRegressor) Losses() []float64 {
	return slices.Clone(r.losses)
}

type savedNetwork struct {
	Network *Network `json:"network"`
	Inputs  Scaler   `json:"inputs"`
	YMean   float64  `json:"y_mean"`
	YStd    float64  `json:"y_std"`
}

// Save serializes the fitted model to JSON.
func (r *NetworkRegressor) Save() ([]byte, error) {
	if r.net == nil {
		return nil, ErrNotFitted
	}
	return json.MarshalIndent(savedNetwork{
		Network: r.net,
		Inputs:  r.x,
		YMean:   r.yMean,
		YStd:    r.yStd,
	}, "", "  ")
}

// LoadNetworkRegressor restores a model written by Save.
func LoadNetworkRegressor(data []byte) (*NetworkRegressor, error) {
	var m savedNetwork
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Network == nil {
		return nil, fmt.Errorf("model has no network")
	}
	if len(m.Inputs.Mean) != m.Network.Inputs() || len(m.Inputs.Std) != m.Network.Inputs() {
		return nil, fmt.Errorf("scaler width does not match network inputs")
	}
	return &NetworkRegressor{
		cfg:   DefaultNetworkConfig(),
		net:   m.Network,
		x:     m.Inputs,
		yMean: m.YMean,
		yStd:  m.YStd,
	}, nil
}

// shuffleAndSplit holds out a tenth of the rows for validation. Below ten
// rows the training set doubles as the validation set.
func shuffleAndSplit(X [][]float64, y []float64, rng *rand.Rand) (trainX [][]float64, trainY []float64, valX [][]float64, valY []float64) {
	n := len(X)
	if n < 10 {
		return X, y, X, y
	}
	nVal := n / 10
	nTrain := n - nVal

	idx := rng.Perm(n)
	trainX, trainY = make([][]float64, nTrain), make([]float64, nTrain)
	valX, valY = make([][]float64, nVal), make([]float64, nVal)
	for i, k := range idx {
		if i < nTrain {
			trainX[i], trainY[i] = X[k], y[k]
		} else {
			valX[i-nTrain], valY[i-nTrain] = X[k], y[k]
		}
	}
	return
}
