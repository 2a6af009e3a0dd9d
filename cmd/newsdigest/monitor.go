package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/deusflow/digest/internal/metrics"
)

func startMonitoringServer(m *metrics.Metrics, log *slog.Logger) {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	log.Info("starting monitoring server", "port", port)
	if err := http.ListenAndServe(":"+port, monitoringMux(m)); err != nil {
		log.Error("monitoring server error", "error", err)
	}
}

func monitoringMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(m))
	mux.HandleFunc("/metrics", metricsHandler(m))
	return mux
}

func healthHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := m.GetStats()

		status := "ok"
		code := http.StatusOK
		if !m.Healthy() {
			status = "error"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     status,
			"last_run":   stats["last_run_time"],
			"last_error": stats["last_error"],
		})
	}
}

func metricsHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.GetStats())
	}
}
