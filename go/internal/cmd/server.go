package main

import (
	"fmt"
	"net/http"

	"github.com/carewell/activity-service/go/internal/outbox"
)

// setupHealthServer exposes the outbox health check and a Prometheus-format
// metrics endpoint.
func setupHealthServer(checker *outbox.DispatcherHealthChecker, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/health", checker)

	exporter := outbox.NewPrometheusExporter(checker)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, exporter.Export(r.Context()))
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
