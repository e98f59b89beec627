package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parceldesk/parceldesk/config"
	"github.com/parceldesk/parceldesk/internal/services/reconciler"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	reconciler *reconciler.Reconciler
	cfg        *config.Config
}

// runWorkerHTTPServer exposes the worker's operational surface:
// liveness, stats, effective settings and a manual cycle trigger.
func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8081"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.reconciler == nil {
			_, _ = w.Write([]byte(`{"error":"reconciler not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.reconciler.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Operational settings only, never secrets.
		out := map[string]any{
			"reconcileIntervalSeconds": opts.cfg.ParcelDesk.WorkerReconcileIntervalSeconds,
			"interCallDelaySeconds":    opts.cfg.ParcelDesk.WorkerInterCallDelaySeconds,
			"retryBackoffSeconds":      opts.cfg.ParcelDesk.WorkerRetryBackoffSeconds,
			"rateLimitPerMinute":       opts.cfg.ParcelDesk.WorkerRateLimitPerMinute,
			"carrierProvider":          opts.cfg.ParcelDesk.CarrierProvider,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.reconciler == nil {
			_, _ = w.Write([]byte(`{"error":"reconciler not wired"}`))
			return
		}
		opts.reconciler.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
