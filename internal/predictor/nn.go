package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// TrainConfig holds hyperparameters for mini-batch Adam training.
type TrainConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	BatchSize    int
	Epochs       int
}

// DefaultTrainConfig returns sensible defaults for training.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		BatchSize:    64,
		Epochs:       200,
	}
}

// layer is a fully-connected layer. Weights are [out x in].
type layer struct {
	w *mat.Dense
	b *mat.VecDense

	// Adam moments and accumulated gradients.
	mW, vW, gW *mat.Dense
	mB, vB, gB *mat.VecDense

	// Activations cached by forward for backward.
	in, out *mat.VecDense
}

func newLayer(w *mat.Dense, b *mat.VecDense) *layer {
	out, in := w.Dims()
	return &layer{
		w:  w,
		b:  b,
		mW: mat.NewDense(out, in, nil),
		vW: mat.NewDense(out, in, nil),
		gW: mat.NewDense(out, in, nil),
		mB: mat.NewVecDense(out, nil),
		vB: mat.NewVecDense(out, nil),
		gB: mat.NewVecDense(out, nil),
	}
}

// Network is a feedforward regressor with ReLU hidden layers and a single
// linear output.
type Network struct {
	layers []*layer
}

// NewNetwork creates a network with He initialization.
// sizes lists the width of every layer, e.g. [9, 32, 16, 1].
func NewNetwork(sizes []int, rng *rand.Rand) *Network {
	n := &Network{layers: make([]*layer, len(sizes)-1)}
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		stddev := math.Sqrt(2.0 / float64(in))
		data := make([]float64, out*in)
		for k := range data {
			data[k] = rng.NormFloat64() * stddev
		}
		n.layers[i] = newLayer(mat.NewDense(out, in, data), mat.NewVecDense(out, nil))
	}
	return n
}

// Inputs returns the width of the input layer.
func (n *Network) Inputs() int {
	_, in := n.layers[0].w.Dims()
	return in
}

// Forward returns the scalar output for x, caching activations for Backward.
func (n *Network) Forward(x []float64) float64 {
	a := mat.NewVecDense(len(x), append([]float64(nil), x...))
	last := len(n.layers) - 1
	for i, l := range n.layers {
		l.in = a
		out, _ := l.w.Dims()
		z := mat.NewVecDense(out, nil)
		z.MulVec(l.w, a)
		z.AddVec(z, l.b)
		if i < last {
			relu(z.RawVector().Data)
		}
		l.out = z
		a = z
	}
	return a.AtVec(0)
}

// Backward accumulates gradients given dLoss/dOutput. Must follow Forward.
func (n *Network) Backward(dOutput float64) {
	d := mat.NewVecDense(1, []float64{dOutput})
	last := len(n.layers) - 1
	for i := last; i >= 0; i-- {
		l := n.layers[i]
		if i < last {
			for j, v := range l.out.RawVector().Data {
				if v <= 0 {
					d.SetVec(j, 0)
				}
			}
		}
		l.gB.AddVec(l.gB, d)
		l.gW.RankOne(l.gW, 1, d, l.in)

		if i > 0 {
			next := mat.NewVecDense(l.in.Len(), nil)
			next.MulVec(l.w.T(), d)
			d = next
		}
	}
}

// ZeroGrad resets accumulated gradients.
func (n *Network) ZeroGrad() {
	for _, l := range n.layers {
		l.gW.Zero()
		l.gB.Zero()
	}
}

// UpdateAdam applies one Adam step. step is the 1-based global step count.
func (n *Network) UpdateAdam(cfg TrainConfig, step int) {
	for _, l := range n.layers {
		adam(l.w.RawMatrix().Data, l.mW.RawMatrix().Data, l.vW.RawMatrix().Data, l.gW.RawMatrix().Data, cfg, step)
		adam(l.b.RawVector().Data, l.mB.RawVector().Data, l.vB.RawVector().Data, l.gB.RawVector().Data, cfg, step)
	}
}

func adam(param, m, v, g []float64, cfg TrainConfig, step int) {
	c1 := 1 - math.Pow(cfg.Beta1, float64(step))
	c2 := 1 - math.Pow(cfg.Beta2, float64(step))
	for k := range param {
		m[k] = cfg.Beta1*m[k] + (1-cfg.Beta1)*g[k]
		v[k] = cfg.Beta2*v[k] + (1-cfg.Beta2)*g[k]*g[k]
		param[k] -= cfg.LearningRate * (m[k] / c1) / (math.Sqrt(v[k]/c2) + cfg.Epsilon)
	}
}

// Train runs mini-batch Adam on (X, y) and returns the validation MSE after
// every epoch.
func (n *Network) Train(X [][]float64, y []float64, valX [][]float64, valY []float64, cfg TrainConfig, rng *rand.Rand) []float64 {
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}

	step := 0
	losses := make([]float64, cfg.Epochs)
	for epoch := range losses {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for from := 0; from < len(order); from += cfg.BatchSize {
			to := min(from+cfg.BatchSize, len(order))
			size := float64(to - from)

			n.ZeroGrad()
			for _, idx := range order[from:to] {
				pred := n.Forward(X[idx])
				n.Backward(2 * (pred - y[idx]) / size)
			}
			step++
			n.UpdateAdam(cfg, step)
		}

		losses[epoch] = n.MSELoss(valX, valY)
	}
	return losses
}

// MSELoss computes the mean squared error over a dataset.
func (n *Network) MSELoss(X [][]float64, y []float64) float64 {
	if len(X) == 0 {
		return 0
	}
	var sum float64
	for i, x := range X {
		d := n.Forward(x) - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}

type layerJSON struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// MarshalJSON serializes weights and biases only.
func (n *Network) MarshalJSON() ([]byte, error) {
	layers := make([]layerJSON, len(n.layers))
	for i, l := range n.layers {
		out, _ := l.w.Dims()
		rows := make([][]float64, out)
		for j := range rows {
			rows[j] = mat.Row(nil, j, l.w)
		}
		layers[i] = layerJSON{
			Weights: rows,
			Biases:  append([]float64(nil), l.b.RawVector().Data...),
		}
	}
	return json.Marshal(struct {
		Layers []layerJSON `json:"layers"`
	}{Layers: layers})
}

// UnmarshalJSON restores weights and biases with fresh optimizer state.
func (n *Network) UnmarshalJSON(data []byte) error {
	var raw struct {
		Layers []layerJSON `json:"layers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Layers) == 0 {
		return fmt.Errorf("network has no layers")
	}
	n.layers = make([]*layer, len(raw.Layers))
	for i, l := range raw.Layers {
		out := len(l.Weights)
		if out == 0 || len(l.Biases) != out {
			return fmt.Errorf("layer %d: %d weight rows, %d biases", i, out, len(l.Biases))
		}
		in := len(l.Weights[0])
		flat := make([]float64, 0, out*in)
		for j, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d row %d: expected %d weights, got %d", i, j, in, len(row))
			}
			flat = append(flat, row...)
		}
		n.layers[i] = newLayer(mat.NewDense(out, in, flat), mat.NewVecDense(out, append([]float64(nil), l.Biases...)))
	}
	return nil
}

func relu(v []float64) {
	for j := range v {
		if v[j] < 0 {
			v[j] = 0
		}
	}
}
