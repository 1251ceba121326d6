package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load_forecaster/internal/crossval"
	"load_forecaster/internal/features"
	"load_forecaster/internal/model"
	"load_forecaster/internal/pipeline"
	"load_forecaster/internal/predictor"
)

// testDataset returns six weeks of daily-periodic load, featurized, without
// the warm-up day.
func testDataset() Dataset {
	var obs []model.Observation
	start := startTime.Add(-24 * time.Hour)
	for i := 0; i < 42*model.IntervalsPerDay; i++ {
		at := start.Add(time.Duration(i) * model.Step)
		obs = append(obs, model.NewObservation(at, 10+float64(model.IntervalOf(at)), 5, (int(at.Weekday())+6)%7, int(at.Month())))
	}
	rows := features.Build(obs)[model.IntervalsPerDay:]
	return Dataset{
		Rows: rows,
		Report: pipeline.Report{
			Rows:  len(rows),
			Range: model.TimeRange{Start: rows[0].Timestamp, End: rows[len(rows)-1].Timestamp},
		},
	}
}

func testOptions() Options {
	return Options{
		CrossVal: crossval.DefaultConfig(),
		Model:    predictor.Options{Kind: predictor.KindPersistence},
	}
}

// dialHandler sets up a test server with the handler and returns a WS connection.
func dialHandler(t *testing.T, handler *Handler) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		handler.Close()
		server.Close()
	}
}

// readJSON reads the next JSON message from the connection.
func readJSON(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

// readUntil collects envelopes up to and including the first of msgType.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		env := readJSON(t, conn)
		out = append(out, env)
		if env.Type == msgType {
			return out
		}
	}
}

// sendJSON sends a JSON message on the connection.
func sendJSON(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := NewEnvelope(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestHandler_InitialMessage(t *testing.T) {
	data := testDataset()
	handler := NewHandler(NewHub(nil), data, testOptions(), nil)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()

	env := readJSON(t, conn)
	assert.Equal(t, TypeDataLoaded, env.Type)

	var dl DataLoadedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &dl))
	assert.Equal(t, len(data.Rows), dl.Rows)
	assert.Equal(t, model.FeatureNames, dl.Features)
	assert.Equal(t, "2013-01-08T00:00:00Z", dl.TimeRange.Start)
}

func TestHandler_CrossValidationRun(t *testing.T) {
	results := make(chan crossval.Result, 1)
	opts := testOptions()
	opts.OnResult = func(res crossval.Result, err error) {
		if err == nil {
			results <- res
		}
	}
	handler := NewHandler(NewHub(nil), testDataset(), opts, nil)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn) // data:loaded

	sendJSON(t, conn, TypeCVRun, CVRunPayload{Metric: "mae"})

	msgs := readUntil(t, conn, TypeCVDone)
	require.Equal(t, TypeCVStarted, msgs[0].Type)

	var started CVStartedPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &started))
	assert.NotEmpty(t, started.RunID)
	assert.Equal(t, "persistence", started.Model)
	assert.Equal(t, "mae", started.Metric)

	var phases []string
	folds := 0
	for _, env := range msgs[1:] {
		switch env.Type {
		case TypeCVPhase:
			var p CVPhasePayload
			require.NoError(t, json.Unmarshal(env.Payload, &p))
			assert.Equal(t, started.RunID, p.RunID)
			phases = append(phases, p.Phase)
		case TypeCVFold:
			folds++
		}
	}
	assert.Equal(t, 2, folds)
	assert.Equal(t, []string{"INIT", "PARTITIONING", "TRAIN", "TEST", "SCORE", "TRAIN", "TEST", "SCORE", "DONE"}, phases)

	var done CVDonePayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &done))
	assert.Equal(t, started.RunID, done.RunID)
	assert.Equal(t, []Score{0, 0}, done.Errors)

	select {
	case res := <-results:
		assert.Len(t, res.Folds, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("OnResult was not called")
	}
}

func TestHandler_RejectsUnknownModel(t *testing.T) {
	handler := NewHandler(NewHub(nil), testDataset(), testOptions(), nil)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn)

	sendJSON(t, conn, TypeCVRun, CVRunPayload{Model: "forest"})

	env := readJSON(t, conn)
	assert.Equal(t, TypeCVError, env.Type)
	var p CVErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Empty(t, p.RunID)
	assert.Contains(t, p.Message, "forest")
}

func TestHandler_RunFailureCarriesKind(t *testing.T) {
	data := testDataset()
	for i := range data.Rows {
		if data.Rows[i].Timestamp.Equal(time.Date(2013, 1, 28, 3, 0, 0, 0, time.UTC)) {
			data.Rows[i].Load = 0
		}
	}
	handler := NewHandler(NewHub(nil), data, testOptions(), nil)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn)

	sendJSON(t, conn, TypeCVRun, nil)

	msgs := readUntil(t, conn, TypeCVError)
	var p CVErrorPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &p))
	assert.NotEmpty(t, p.RunID)
	assert.Equal(t, "metric_domain", p.Kind)
}

func TestHandler_UnknownMessageIsIgnored(t *testing.T) {
	handler := NewHandler(NewHub(nil), testDataset(), testOptions(), nil)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn)

	sendJSON(t, conn, "sim:start", nil)
	sendJSON(t, conn, TypeCVRun, CVRunPayload{Cadence: "1w"})

	env := readJSON(t, conn)
	assert.Equal(t, TypeCVStarted, env.Type)
	var started CVStartedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &started))
	assert.Equal(t, (7 * 24 * time.Hour).String(), started.Cadence)
}

func TestHandler_StartCancelClose(t *testing.T) {
	handler := NewHandler(NewHub(nil), testDataset(), testOptions(), nil)

	_, err := handler.Start(CVRunPayload{Cadence: "soon"})
	assert.Error(t, err)

	runID, err := handler.Start(CVRunPayload{})
	require.NoError(t, err)
	handler.Cancel(runID)
	handler.Close()

	assert.False(t, handler.Cancel(runID), "finished runs are forgotten")
}
