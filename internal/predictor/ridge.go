package predictor

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is an L2-regularised linear model on standardized features with an
// unpenalised intercept.
type Ridge struct {
	Lambda float64

	x         Scaler
	intercept float64
	beta      *mat.VecDense
}

// NewRidge returns an unfitted ridge model. lambda 0 is ordinary least
// squares.
func NewRidge(lambda float64) *Ridge {
	return &Ridge{Lambda: lambda}
}

// Fit solves the normal equations by Cholesky, falling back to a thin SVD
// pseudo-inverse when the system is not positive definite.
func (r *Ridge) Fit(X [][]float64, y []float64) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}
	r.x = FitScaler(X)
	r.intercept = stat.Mean(y, nil)

	rows, cols := len(X), len(X[0])
	design := mat.NewDense(rows, cols, nil)
	for i, x := range X {
		design.SetRow(i, r.x.Transform(x))
	}
	target := mat.NewVecDense(rows, nil)
	for i, v := range y {
		target.SetVec(i, v-r.intercept)
	}

	r.beta = solveRidge(design, target, r.Lambda)
	return nil
}

// Predict applies the fitted coefficients.
func (r *Ridge) Predict(X [][]float64) ([]float64, error) {
	if r.beta == nil {
		return nil, ErrNotFitted
	}
	if err := checkRows(X, r.beta.Len()); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		v := mat.NewVecDense(len(x), r.x.Transform(x))
		out[i] = r.intercept + mat.Dot(v, r.beta)
	}
	return out, nil
}

// Coefficients returns the weights on the standardized features.
func (r *Ridge) Coefficients() []float64 {
	if r.beta == nil {
		return nil
	}
	return mat.Col(nil, 0, r.beta)
}

func solveRidge(X *mat.Dense, y *mat.VecDense, lambda float64) *mat.VecDense {
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	n, _ := xtx.Dims()

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += lambda
			}
			sym.SetSym(i, j, v)
		}
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, &xty); err == nil {
			return &beta
		}
	}

	var svd mat.SVD
	beta := mat.NewVecDense(n, nil)
	if !svd.Factorize(X, mat.SVDThin) {
		return beta
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	for i, sv := range s {
		// Ridge shrinkage on each singular direction.
		if sv > 1e-12 {
			uty.SetVec(i, uty.AtVec(i)*sv/(sv*sv+lambda))
		} else {
			uty.SetVec(i, 0)
		}
	}
	beta.MulVec(&v, &uty)
	return beta
}
