package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/almadesk/recurring-alerts/internal/analysis"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// analysisRunner is the part of analysis.Service the ops endpoints use
type analysisRunner interface {
	RunAnalysis(ctx context.Context) ([]models.RecurringAlert, error)
	IsRunning() bool
	GetMetrics() string
}

func newRouter(runner analysisRunner, runTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/status", statusHandler(runner)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(runner, runTimeout)).Methods("POST")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func statusHandler(runner analysisRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(runner.GetMetrics()))
	}
}

// triggerHandler starts one analysis run in the background. The run is not tied
// to the request context, so it outlives the response.
func triggerHandler(runner analysisRunner, runTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if runner.IsRunning() {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"Analysis already in progress"}`))
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()

			_, err := runner.RunAnalysis(ctx)
			switch {
			case errors.Is(err, analysis.ErrAnalysisInProgress):
				logrus.Warn("Manual analysis trigger skipped, another run is in progress")
			case err != nil:
				logrus.Errorf("Manual analysis trigger failed: %v", err)
			}
		}()

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Analysis triggered successfully"}`))
	}
}
