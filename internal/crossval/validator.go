package crossval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/logger"
	"load_forecaster/internal/model"
	"load_forecaster/internal/predictor"
)

// Phase is a step of a cross-validation run.
type Phase string

const (
	PhaseInit         Phase = "INIT"
	PhasePartitioning Phase = "PARTITIONING"
	PhaseTrain        Phase = "TRAIN"
	PhaseTest         Phase = "TEST"
	PhaseScore        Phase = "SCORE"
	PhaseDone         Phase = "DONE"
)

// RunFold is the fold index reported with run-level phases.
const RunFold = -1

// Observer receives progress. Calls are serialized by the validator.
type Observer interface {
	OnPhase(fold int, phase Phase)
	OnFold(result FoldResult)
}

// FoldResult is the score of one fold.
type FoldResult struct {
	Fold      model.Fold
	TrainRows int
	TestRows  int
	Error     float64
	Elapsed   time.Duration
}

// Result holds fold scores in fold order.
type Result struct {
	Metric string
	Folds  []FoldResult
}

// Errors returns the per-fold errors in fold order.
func (r Result) Errors() []float64 {
	out := make([]float64, len(r.Folds))
	for i, f := range r.Folds {
		out[i] = f.Error
	}
	return out
}

// Mean returns the average fold error, or NaN without folds.
func (r Result) Mean() float64 {
	if len(r.Folds) == 0 {
		return model.Missing()
	}
	return stat.Mean(r.Errors(), nil)
}

// Validator runs rolling-origin cross-validation with a fresh model per fold.
type Validator struct {
	cfg       Config
	factory   predictor.Factory
	log       *logger.Logger
	observers []Observer
	mu        sync.Mutex
}

// New returns a validator. A nil logger discards output.
func New(cfg Config, factory predictor.Factory, log *logger.Logger, observers ...Observer) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.New("model factory is required")
	}
	return &Validator{
		cfg:       cfg,
		factory:   factory,
		log:       logger.OrNop(log),
		observers: observers,
	}, nil
}

// Run scores every fold of rows, which must be sorted by timestamp and free
// of missing values. Any fold that sees a missing value or an incomplete
// test window fails the run with a data integrity error.
func (v *Validator) Run(ctx context.Context, rows []model.FeatureRow) (Result, error) {
	v.phase(RunFold, PhaseInit)
	if len(rows) == 0 {
		return Result{}, dataerr.DataIntegrity("no rows to cross-validate")
	}

	v.phase(RunFold, PhasePartitioning)
	series := model.TimeRange{Start: rows[0].Timestamp, End: rows[len(rows)-1].Timestamp}
	folds, err := Partition(series, v.cfg)
	if err != nil {
		return Result{}, err
	}
	v.log.Infow("Cross-validation partitioned",
		"series", series.String(), "folds", len(folds),
		"cadence", v.cfg.Cadence.String(), "workers", v.cfg.Workers)

	results := make([]FoldResult, len(folds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Workers)
	for i, fold := range folds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := v.runFold(rows, fold)
			if err != nil {
				return err
			}
			results[i] = res
			v.fold(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		v.log.WithError(err).Errorw("Cross-validation failed")
		return Result{}, err
	}

	v.phase(RunFold, PhaseDone)
	res := Result{Metric: v.cfg.MetricName, Folds: results}
	v.log.Infow("Cross-validation done", "metric", res.Metric, "mean", res.Mean())
	return res, nil
}

func (v *Validator) runFold(rows []model.FeatureRow, fold model.Fold) (FoldResult, error) {
	start := time.Now()
	train := slice(rows, fold.Train)
	test := slice(rows, fold.Test)
	if len(train) == 0 || len(test) == 0 {
		return FoldResult{}, dataerr.DataIntegrity("empty fold slice").
			WithContext("fold", fold.Index).
			WithContext("train_rows", len(train)).
			WithContext("test_rows", len(test))
	}
	if want := int(v.cfg.Horizon / v.cfg.Step); len(test) != want {
		return FoldResult{}, dataerr.DataIntegrity("incomplete test window").
			WithContext("fold", fold.Index).
			WithContext("test", fold.Test.String()).
			WithContext("rows", len(test)).
			WithContext("expected", want)
	}

	trainX, trainY, err := design(train, fold.Index)
	if err != nil {
		return FoldResult{}, err
	}
	testX, testY, err := design(test, fold.Index)
	if err != nil {
		return FoldResult{}, err
	}

	v.phase(fold.Index, PhaseTrain)
	m := v.factory()
	if err := m.Fit(trainX, trainY); err != nil {
		return FoldResult{}, fmt.Errorf("fold %d: fit: %w", fold.Index, err)
	}

	v.phase(fold.Index, PhaseTest)
	pred, err := m.Predict(testX)
	if err != nil {
		return FoldResult{}, fmt.Errorf("fold %d: predict: %w", fold.Index, err)
	}

	v.phase(fold.Index, PhaseScore)
	score, err := v.cfg.Metric(testY, pred)
	if err != nil {
		var de *dataerr.Error
		if errors.As(err, &de) {
			de.WithContext("fold", fold.Index)
		}
		return FoldResult{}, fmt.Errorf("fold %d: score: %w", fold.Index, err)
	}

	v.log.Debugw("Fold scored",
		"fold", fold.Index, "train_end", fold.Train.End, "error", score)
	return FoldResult{
		Fold:      fold,
		TrainRows: len(train),
		TestRows:  len(test),
		Error:     score,
		Elapsed:   time.Since(start),
	}, nil
}

func (v *Validator) phase(fold int, p Phase) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, o := range v.observers {
		o.OnPhase(fold, p)
	}
}

func (v *Validator) fold(r FoldResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, o := range v.observers {
		o.OnFold(r)
	}
}

// slice returns the rows within tr without copying.
func slice(rows []model.FeatureRow, tr model.TimeRange) []model.FeatureRow {
	lo := sort.Search(len(rows), func(i int) bool {
		return !rows[i].Timestamp.Before(tr.Start)
	})
	hi := sort.Search(len(rows), func(i int) bool {
		return rows[i].Timestamp.After(tr.End)
	})
	if hi <= lo {
		return nil
	}
	return rows[lo:hi]
}

// design splits rows into the feature matrix and the load target.
func design(rows []model.FeatureRow, fold int) ([][]float64, []float64, error) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		if col := r.MissingColumn(); col != "" {
			return nil, nil, dataerr.DataIntegrity("missing value in fold").
				WithContext("fold", fold).
				WithContext("timestamp", r.Timestamp.Format(time.RFC3339)).
				WithContext("column", col)
		}
		X[i] = r.Vector()
		y[i] = r.Load
	}
	return X, y, nil
}
