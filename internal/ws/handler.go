package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"load_forecaster/internal/config"
	"load_forecaster/internal/crossval"
	"load_forecaster/internal/logger"
	"load_forecaster/internal/metric"
	"load_forecaster/internal/model"
	"load_forecaster/internal/pipeline"
	"load_forecaster/internal/predictor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Dataset is the featurized table served to clients.
type Dataset struct {
	Rows   []model.FeatureRow
	Report pipeline.Report
}

// Options are the defaults for cv:run requests.
type Options struct {
	CrossVal crossval.Config
	Model    predictor.Options
	// Observers receive every run's progress next to the broadcasting bridge.
	Observers []crossval.Observer
	// OnResult is called when a run ends.
	OnResult func(crossval.Result, error)
}

// Handler manages WebSocket connections and runs cross-validation on request.
type Handler struct {
	hub  *Hub
	data Dataset
	opts Options
	log  *logger.Logger

	mu   sync.Mutex
	runs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

func NewHandler(hub *Hub, data Dataset, opts Options, log *logger.Logger) *Handler {
	return &Handler{
		hub:  hub,
		data: data,
		opts: opts,
		log:  logger.OrNop(log),
		runs: make(map[string]context.CancelFunc),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warnw("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 1024),
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendDataLoaded(client)

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warnw("WebSocket read failed")
			}
			return
		}

		h.handleMessage(msg)
	}
}

func (h *Handler) handleMessage(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.log.WithError(err).Warnw("Invalid message")
		return
	}

	switch env.Type {
	case TypeCVRun:
		var p CVRunPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				h.reject(fmt.Errorf("invalid cv:run payload: %w", err))
				return
			}
		}
		if _, err := h.Start(p); err != nil {
			h.reject(err)
		}

	case TypeCVCancel:
		var p CVCancelPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.reject(fmt.Errorf("invalid cv:cancel payload: %w", err))
			return
		}
		if !h.Cancel(p.RunID) {
			h.log.Infow("Cancel for unknown run", "run_id", p.RunID)
		}

	default:
		h.log.Warnw("Unknown message type", "type", env.Type)
	}
}

// Start launches a cross-validation run in the background and returns its id.
func (h *Handler) Start(req CVRunPayload) (string, error) {
	cfg := h.opts.CrossVal
	if req.Cadence != "" {
		d, err := config.ParseDuration(req.Cadence)
		if err != nil {
			return "", err
		}
		cfg.Cadence = d
	}
	if req.Metric != "" {
		f, ok := metric.ByName(req.Metric)
		if !ok {
			return "", fmt.Errorf("unknown metric %q", req.Metric)
		}
		cfg.Metric, cfg.MetricName = f, req.Metric
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}
	opts := h.opts.Model
	if req.Model != "" {
		opts.Kind = req.Model
	}
	factory, err := predictor.NewFactory(opts)
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	bridge := NewBridge(h.hub, runID)
	observers := append([]crossval.Observer{bridge}, h.opts.Observers...)
	v, err := crossval.New(cfg, factory, h.log.WithFields("run_id", runID), observers...)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.runs[runID] = cancel
	h.mu.Unlock()

	h.hub.BroadcastEnvelope(TypeCVStarted, CVStartedPayload{
		RunID:   runID,
		Model:   opts.Kind,
		Metric:  cfg.MetricName,
		Cadence: cfg.Cadence.String(),
		Workers: cfg.Workers,
	})

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.finish(runID)

		start := time.Now()
		res, err := v.Run(ctx, h.data.Rows)
		if h.opts.OnResult != nil {
			h.opts.OnResult(res, err)
		}
		if err != nil {
			h.log.WithError(err).Warnw("Cross-validation run failed", "run_id", runID)
			bridge.Failed(err)
			return
		}
		h.log.Infow("Cross-validation run done",
			"run_id", runID, "folds", len(res.Folds), "mean", res.Mean(),
			"elapsed", time.Since(start).String())
		bridge.Done(res)
	}()
	return runID, nil
}

// Cancel stops a running run. It reports whether the run was found.
func (h *Handler) Cancel(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cancel, ok := h.runs[runID]
	if ok {
		cancel()
	}
	return ok
}

// Close cancels every active run and waits for them to stop.
func (h *Handler) Close() {
	h.mu.Lock()
	for _, cancel := range h.runs {
		cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Handler) finish(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.runs[runID]; ok {
		cancel()
		delete(h.runs, runID)
	}
}

func (h *Handler) reject(err error) {
	h.log.WithError(err).Warnw("Rejected request")
	h.hub.BroadcastEnvelope(TypeCVError, CVErrorPayload{Message: err.Error()})
}

func (h *Handler) sendDataLoaded(c *Client) {
	msg, err := NewEnvelope(TypeDataLoaded, DataLoadedFromReport(h.data.Report))
	if err != nil {
		h.log.WithError(err).Errorw("Creating data:loaded message")
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}
