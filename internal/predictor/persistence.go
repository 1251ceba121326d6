package predictor

import "fmt"

// Persistence forecasts each interval with the load observed 24 hours
// earlier. It has no parameters and serves as the baseline in reports.
type Persistence struct {
	lagColumn int
	fitted    bool
}

// NewPersistence reads the previous-day load from column lagColumn.
func NewPersistence(lagColumn int) *Persistence {
	return &Persistence{lagColumn: lagColumn}
}

func (p *Persistence) Fit(X [][]float64, y []float64) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}
	if p.lagColumn >= len(X[0]) {
		return fmt.Errorf("lag column %d out of range for %d features", p.lagColumn, len(X[0]))
	}
	p.fitted = true
	return nil
}

func (p *Persistence) Predict(X [][]float64) ([]float64, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, x := range X {
		if p.lagColumn >= len(x) {
			return nil, fmt.Errorf("row %d: expected at least %d features, got %d", i, p.lagColumn+1, len(x))
		}
		out[i] = x[p.lagColumn]
	}
	return out, nil
}
