// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpapi is the process's debug/operations HTTP surface: a health check, the
// Prometheus metrics endpoint, a wave-buffer introspection endpoint, and the websocket
// upgrade for the view channel. Built on gorilla/mux and gorilla/handlers the way the
// teacher builds its own API router, minus the GraphQL/REST business endpoints this
// process has no use for.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/ttsam-rt/ttsam-rt/internal/bus"
	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/internal/wavebuffer"
)

// Server hosts /healthz, /metrics, /debug/wavebuffer, and /ws.
type Server struct {
	httpServer *http.Server
}

// New builds the router and wraps it with gorilla/handlers' combined access-log and
// recovery middleware, the same pair the teacher applies to its own API router.
func New(addr string, wb *wavebuffer.WaveBuffer, hub *bus.Hub) *Server {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/debug/wavebuffer", waveBufferHandler(wb)).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS)
	}

	logged := handlers.CombinedLoggingHandler(cclogWriter{}, r)
	recovered := handlers.RecoveryHandler()(logged)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      recovered,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func waveBufferHandler(wb *wavebuffer.WaveBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wb.Snapshot())
	}
}

// Start begins serving in a background goroutine. Bind failures are logged, not fatal:
// the debug surface is a convenience, not a dependency of the forecast pipeline.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("httpapi: server error: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// cclogWriter adapts gorilla/handlers' io.Writer-based access logger onto the
// teacher's leveled logger instead of stdout.
type cclogWriter struct{}

func (cclogWriter) Write(p []byte) (int, error) {
	cclog.Infof("httpapi: %s", string(p))
	return len(p), nil
}
