package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	running bool
	calls   chan time.Time
}

func (f *fakeRunner) RunAnalysis(ctx context.Context) ([]models.RecurringAlert, error) {
	deadline, _ := ctx.Deadline()
	f.calls <- deadline
	return nil, nil
}

func (f *fakeRunner) IsRunning() bool {
	return f.running
}

func (f *fakeRunner) GetMetrics() string {
	return `{"total_runs": 3}`
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	runner := &fakeRunner{calls: make(chan time.Time, 1)}
	router := newRouter(runner, time.Minute)

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK, body: `"status":"healthy"`},
		{name: "status", method: http.MethodGet, path: "/status", status: http.StatusOK, body: `"total_runs": 3`},
		{name: "prometheus", method: http.MethodGet, path: "/metrics", status: http.StatusOK, body: "go_goroutines"},
		{name: "trigger requires POST", method: http.MethodGet, path: "/trigger", status: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/alerts", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.method, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestTriggerStartsRun(t *testing.T) {
	runner := &fakeRunner{calls: make(chan time.Time, 1)}
	router := newRouter(runner, 10*time.Minute)

	before := time.Now()
	rec := serve(router, http.MethodPost, "/trigger")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case deadline := <-runner.calls:
		assert.WithinDuration(t, before.Add(10*time.Minute), deadline, 5*time.Second)
	case <-time.After(2 * time.Second):
		require.Fail(t, "analysis run was not started")
	}
}

func TestTriggerRejectsWhileRunning(t *testing.T) {
	runner := &fakeRunner{running: true, calls: make(chan time.Time, 1)}
	router := newRouter(runner, time.Minute)

	rec := serve(router, http.MethodPost, "/trigger")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, runner.calls)
}
