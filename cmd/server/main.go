package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"load_forecaster/internal/app"
	"load_forecaster/internal/crossval"
	"load_forecaster/internal/telemetry"
	"load_forecaster/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	input := flag.String("input", "", "raw observations CSV (overrides config)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, log, err := app.Setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if *input != "" {
		cfg.Input = *input
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	res, err := app.LoadFeatures(cfg, log)
	if err != nil {
		log.Fatalw("Failed to prepare data", "error", err)
	}
	cvCfg, err := cfg.CrossValConfig()
	if err != nil {
		log.Fatalw("Invalid cross-validation settings", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := telemetry.NewCollector(reg, "load_forecaster")
	collector.RecordPipeline(res.Report)

	hub := ws.NewHub(log)
	handler := ws.NewHandler(hub, ws.Dataset{Rows: res.Rows, Report: res.Report}, ws.Options{
		CrossVal:  cvCfg,
		Model:     cfg.PredictorOptions(),
		Observers: []crossval.Observer{collector},
		OnResult:  collector.RecordRun,
	}, log)
	defer handler.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(handler, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Shutdown failed", "error", err)
		}
	}()

	log.Infow("Starting server", "addr", cfg.Server.Addr, "rows", len(res.Rows))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalw("Server stopped", "error", err)
	}
	log.Info("Server stopped")
}

// newMux routes health, metrics and the WebSocket endpoint.
func newMux(wsHandler http.Handler, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/ws", wsHandler)
	return mux
}
