// Package telemetry exposes pipeline and cross-validation progress as
// Prometheus metrics.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"load_forecaster/internal/crossval"
	"load_forecaster/internal/pipeline"
)

// Collector records metrics. It implements crossval.Observer.
type Collector struct {
	Phases       *prometheus.CounterVec
	FoldsScored  prometheus.Counter
	FoldError    *prometheus.GaugeVec
	FoldDuration prometheus.Histogram
	Runs         *prometheus.CounterVec
	MeanError    *prometheus.GaugeVec

	PipelineRows      prometheus.Gauge
	RepairedLoads     prometheus.Gauge
	LoadFaults        prometheus.Gauge
	FilledTemps       prometheus.Gauge
	DroppedIncomplete prometheus.Gauge
}

// NewCollector registers every metric with reg under namespace.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Phases: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crossval_phases_total",
				Help:      "Cross-validation phase transitions by phase",
			},
			[]string{"phase"},
		),
		FoldsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossval_folds_scored_total",
			Help:      "Folds fitted, predicted and scored",
		}),
		FoldError: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "crossval_fold_error",
				Help:      "Error of the most recent run per fold index",
			},
			[]string{"fold"},
		),
		FoldDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crossval_fold_duration_seconds",
			Help:      "Wall time to fit, predict and score one fold",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crossval_runs_total",
				Help:      "Cross-validation runs by result (success/failure)",
			},
			[]string{"result"},
		),
		MeanError: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "crossval_mean_error",
				Help:      "Mean fold error of the last successful run by metric",
			},
			[]string{"metric"},
		),
		PipelineRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_rows",
			Help:      "Featurized rows produced by the last pipeline run",
		}),
		RepairedLoads: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_repaired_loads",
			Help:      "Load readings replaced by conditional means",
		}),
		LoadFaults: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_load_faults",
			Help:      "Readings equal to the fault value",
		}),
		FilledTemps: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_filled_temperatures",
			Help:      "Temperatures filled by interpolation",
		}),
		DroppedIncomplete: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_dropped_incomplete_rows",
			Help:      "Rows dropped for a missing value after feature engineering",
		}),
	}
}

func (c *Collector) OnPhase(_ int, phase crossval.Phase) {
	c.Phases.WithLabelValues(string(phase)).Inc()
}

func (c *Collector) OnFold(r crossval.FoldResult) {
	c.FoldsScored.Inc()
	c.FoldError.WithLabelValues(strconv.Itoa(r.Fold.Index)).Set(r.Error)
	c.FoldDuration.Observe(r.Elapsed.Seconds())
}

// RecordRun counts a finished run and keeps its mean error.
func (c *Collector) RecordRun(res crossval.Result, err error) {
	if err != nil {
		c.Runs.WithLabelValues("failure").Inc()
		return
	}
	c.Runs.WithLabelValues("success").Inc()
	c.MeanError.WithLabelValues(res.Metric).Set(res.Mean())
}

// RecordPipeline publishes the stage counts of a pipeline run.
func (c *Collector) RecordPipeline(rep pipeline.Report) {
	c.PipelineRows.Set(float64(rep.Rows))
	c.RepairedLoads.Set(float64(rep.Repair.Replaced))
	c.LoadFaults.Set(float64(rep.Repair.Faults))
	c.FilledTemps.Set(float64(rep.TemperatureFilled))
	c.DroppedIncomplete.Set(float64(rep.Incomplete))
}
