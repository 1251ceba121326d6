package ws

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"load_forecaster/internal/crossval"
	"load_forecaster/internal/model"
	"load_forecaster/internal/pipeline"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeCVRun    = "cv:run"
	TypeCVCancel = "cv:cancel"

	// Server -> Client
	TypeDataLoaded = "data:loaded"
	TypeCVStarted  = "cv:started"
	TypeCVPhase    = "cv:phase"
	TypeCVFold     = "cv:fold"
	TypeCVDone     = "cv:done"
	TypeCVError    = "cv:error"
)

// Client -> Server messages

// CVRunPayload overrides the server defaults for one run. Zero values keep
// the defaults.
type CVRunPayload struct {
	Model   string `json:"model,omitempty"`
	Cadence string `json:"cadence,omitempty"`
	Metric  string `json:"metric,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

type CVCancelPayload struct {
	RunID string `json:"run_id"`
}

// Server -> Client messages

type TimeRangeInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DataLoadedPayload struct {
	Rows      int           `json:"rows"`
	Features  []string      `json:"features"`
	TimeRange TimeRangeInfo `json:"time_range"`
	Faults    int           `json:"faults"`
	Repaired  int           `json:"repaired"`
}

type CVStartedPayload struct {
	RunID   string `json:"run_id"`
	Model   string `json:"model"`
	Metric  string `json:"metric"`
	Cadence string `json:"cadence"`
	Workers int    `json:"workers"`
}

type CVPhasePayload struct {
	RunID string `json:"run_id"`
	Fold  int    `json:"fold"`
	Phase string `json:"phase"`
}

type CVFoldPayload struct {
	RunID     string        `json:"run_id"`
	Fold      int           `json:"fold"`
	Train     TimeRangeInfo `json:"train"`
	Test      TimeRangeInfo `json:"test"`
	TrainRows int           `json:"train_rows"`
	Error     Score         `json:"error"`
	ElapsedMS int64         `json:"elapsed_ms"`
}

// Score is a metric value that encodes NaN and infinities as null, which
// encoding/json cannot represent. null decodes back to NaN.
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	v := float64(s)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Score(v)
	return nil
}

// Scores converts metric values for a payload.
func Scores(values []float64) []Score {
	out := make([]Score, len(values))
	for i, v := range values {
		out[i] = Score(v)
	}
	return out
}

type CVDonePayload struct {
	RunID  string    `json:"run_id"`
	Metric string    `json:"metric"`
	Errors []Score `json:"errors"`
	Mean   Score   `json:"mean"`
}

type CVErrorPayload struct {
	RunID   string `json:"run_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func TimeRangeFromModel(tr model.TimeRange) TimeRangeInfo {
	return TimeRangeInfo{
		Start: tr.Start.Format(time.RFC3339),
		End:   tr.End.Format(time.RFC3339),
	}
}

func DataLoadedFromReport(rep pipeline.Report) DataLoadedPayload {
	return DataLoadedPayload{
		Rows:      rep.Rows,
		Features:  model.FeatureNames,
		TimeRange: TimeRangeFromModel(rep.Range),
		Faults:    rep.Repair.Faults,
		Repaired:  rep.Repair.Replaced,
	}
}

func FoldFromResult(runID string, r crossval.FoldResult) CVFoldPayload {
	return CVFoldPayload{
		RunID:     runID,
		Fold:      r.Fold.Index,
		Train:     TimeRangeFromModel(r.Fold.Train),
		Test:      TimeRangeFromModel(r.Fold.Test),
		TrainRows: r.TrainRows,
		Error:     Score(r.Error),
		ElapsedMS: r.Elapsed.Milliseconds(),
	}
}
