package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load_forecaster/internal/crossval"
	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/model"
)

var startTime = time.Date(2013, 1, 8, 0, 0, 0, 0, time.UTC)

func newTestBridge() (*Bridge, *Client) {
	hub := NewHub(nil)
	client := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.Register(client)
	return NewBridge(hub, "run-1"), client
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	msg := <-c.send
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestBridge_OnPhase(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnPhase(crossval.RunFold, crossval.PhasePartitioning)

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeCVPhase, env.Type)

	var p CVPhasePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, CVPhasePayload{RunID: "run-1", Fold: -1, Phase: "PARTITIONING"}, p)
}

func TestBridge_OnFold(t *testing.T) {
	bridge, client := newTestBridge()

	trainEnd := startTime.Add(20*24*time.Hour - model.Step)
	bridge.OnFold(crossval.FoldResult{
		Fold: model.Fold{
			Index: 0,
			Train: model.TimeRange{Start: startTime, End: trainEnd},
			Test:  model.TimeRange{Start: trainEnd.Add(model.Step), End: trainEnd.Add(24 * time.Hour)},
		},
		TrainRows: 20 * model.IntervalsPerDay,
		TestRows:  model.IntervalsPerDay,
		Error:     7.5,
		Elapsed:   1500 * time.Millisecond,
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeCVFold, env.Type)

	var p CVFoldPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, "2013-01-08T00:00:00Z", p.Train.Start)
	assert.Equal(t, "2013-01-27T23:45:00Z", p.Train.End)
	assert.Equal(t, "2013-01-28T00:00:00Z", p.Test.Start)
	assert.Equal(t, 1920, p.TrainRows)
	assert.Equal(t, Score(7.5), p.Error)
	assert.Equal(t, int64(1500), p.ElapsedMS)
}

func TestBridge_Done(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.Done(crossval.Result{Metric: "mape", Folds: []crossval.FoldResult{{Error: 4}, {Error: 6}}})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeCVDone, env.Type)

	var p CVDonePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, []Score{4, 6}, p.Errors)
	assert.Equal(t, Score(5), p.Mean)
	assert.Equal(t, "mape", p.Metric)
}

func TestBridge_NonFiniteScoresSentAsNull(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnFold(crossval.FoldResult{Fold: model.Fold{Index: 3}, Error: math.Inf(1)})
	bridge.Done(crossval.Result{Metric: "rmse", Folds: []crossval.FoldResult{{Error: math.NaN()}, {Error: 2}}})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeCVFold, env.Type)
	assert.Contains(t, string(env.Payload), `"error":null`)
	var fold CVFoldPayload
	require.NoError(t, json.Unmarshal(env.Payload, &fold))
	assert.Equal(t, 3, fold.Fold)
	assert.True(t, math.IsNaN(float64(fold.Error)))

	env = receiveEnvelope(t, client)
	assert.Equal(t, TypeCVDone, env.Type)
	assert.Contains(t, string(env.Payload), `"errors":[null,2]`)
	assert.Contains(t, string(env.Payload), `"mean":null`)
}

func TestBridge_Failed(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.Failed(fmt.Errorf("fold 2: %w", dataerr.DataIntegrity("missing value in fold")))
	bridge.Failed(errors.New("plain"))

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeCVError, env.Type)
	var p CVErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "data_integrity", p.Kind)
	assert.Contains(t, p.Message, "fold 2")

	env = receiveEnvelope(t, client)
	var plain CVErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &plain))
	assert.Equal(t, "", plain.Kind)
	assert.Equal(t, "plain", plain.Message)
}
