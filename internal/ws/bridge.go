package ws

import (
	"load_forecaster/internal/crossval"
	"load_forecaster/internal/dataerr"
)

// Bridge implements crossval.Observer and broadcasts the progress of one
// run to the WebSocket hub.
type Bridge struct {
	hub   *Hub
	runID string
}

func NewBridge(hub *Hub, runID string) *Bridge {
	return &Bridge{hub: hub, runID: runID}
}

func (b *Bridge) OnPhase(fold int, phase crossval.Phase) {
	b.hub.BroadcastEnvelope(TypeCVPhase, CVPhasePayload{
		RunID: b.runID,
		Fold:  fold,
		Phase: string(phase),
	})
}

func (b *Bridge) OnFold(r crossval.FoldResult) {
	b.hub.BroadcastEnvelope(TypeCVFold, FoldFromResult(b.runID, r))
}

// Done reports a finished run.
func (b *Bridge) Done(res crossval.Result) {
	b.hub.BroadcastEnvelope(TypeCVDone, CVDonePayload{
		RunID:  b.runID,
		Metric: res.Metric,
		Errors: Scores(res.Errors()),
		Mean:   Score(res.Mean()),
	})
}

// Failed reports a run that stopped with err.
func (b *Bridge) Failed(err error) {
	p := CVErrorPayload{RunID: b.runID, Message: err.Error()}
	if kind, ok := dataerr.KindOf(err); ok {
		p.Kind = string(kind)
	}
	b.hub.BroadcastEnvelope(TypeCVError, p)
}
