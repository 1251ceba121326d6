package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load_forecaster/internal/cleaning"
	"load_forecaster/internal/crossval"
	"load_forecaster/internal/model"
	"load_forecaster/internal/pipeline"
)

func TestCollector_Observer(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), "test")
	var _ crossval.Observer = c

	c.OnPhase(crossval.RunFold, crossval.PhaseInit)
	c.OnPhase(0, crossval.PhaseTrain)
	c.OnPhase(1, crossval.PhaseTrain)
	c.OnFold(crossval.FoldResult{Fold: model.Fold{Index: 1}, Error: 4.5, Elapsed: 20 * time.Millisecond})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Phases.WithLabelValues("INIT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Phases.WithLabelValues("TRAIN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FoldsScored))
	assert.Equal(t, 4.5, testutil.ToFloat64(c.FoldError.WithLabelValues("1")))
}

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), "test")

	c.RecordRun(crossval.Result{Metric: "mape", Folds: []crossval.FoldResult{{Error: 2}, {Error: 4}}}, nil)
	c.RecordRun(crossval.Result{}, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.MeanError.WithLabelValues("mape")))
}

func TestCollector_RecordPipeline(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), "test")

	c.RecordPipeline(pipeline.Report{
		Rows:              100,
		TemperatureFilled: 3,
		Incomplete:        96,
		Repair:            cleaning.RepairReport{Faults: 5, Replaced: 13},
	})

	assert.Equal(t, 100.0, testutil.ToFloat64(c.PipelineRows))
	assert.Equal(t, 13.0, testutil.ToFloat64(c.RepairedLoads))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.LoadFaults))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.FilledTemps))
	assert.Equal(t, 96.0, testutil.ToFloat64(c.DroppedIncomplete))
}

func TestNewCollector_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg, "test")

	require.Panics(t, func() { NewCollector(reg, "test") })
	assert.NotPanics(t, func() { NewCollector(reg, "other") })
}
