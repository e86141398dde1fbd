package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/almadesk/recurring-alerts/internal/analysis"
	"github.com/almadesk/recurring-alerts/internal/config"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	calls    int
	deadline time.Time
	err      error
}

func (f *fakeAnalyzer) RunAnalysis(ctx context.Context) ([]models.RecurringAlert, error) {
	f.calls++
	f.deadline, _ = ctx.Deadline()
	return nil, f.err
}

func testConfig(schedule string) *config.Config {
	return &config.Config{
		AnalysisSchedule: schedule,
		TimeZone:         "UTC",
		AnalysisTimeout:  5 * time.Minute,
	}
}

func TestService_StartSchedules(t *testing.T) {
	tests := []struct {
		schedule string
		hour     int
		weekday  time.Weekday
	}{
		{schedule: "daily", hour: 2},
		{schedule: "weekly", hour: 2, weekday: time.Monday},
		{schedule: "0 30 6 * * SUN", hour: 6, weekday: time.Sunday},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			s, err := NewService(testConfig(tt.schedule), &fakeAnalyzer{})
			require.NoError(t, err)
			assert.True(t, s.NextRun().IsZero())

			require.NoError(t, s.Start())
			defer s.Stop()

			next := s.NextRun()
			require.False(t, next.IsZero())
			assert.Equal(t, tt.hour, next.Hour())
			if tt.schedule != "daily" {
				assert.Equal(t, tt.weekday, next.Weekday())
			}
		})
	}
}

func TestService_InvalidSchedule(t *testing.T) {
	s, err := NewService(testConfig("every tuesday"), &fakeAnalyzer{})
	require.NoError(t, err)
	assert.Error(t, s.Start())
}

func TestService_InvalidTimeZone(t *testing.T) {
	cfg := testConfig("daily")
	cfg.TimeZone = "Nowhere/Land"
	_, err := NewService(cfg, &fakeAnalyzer{})
	assert.Error(t, err)
}

func TestService_RunScheduledAppliesTimeout(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	s, err := NewService(testConfig("daily"), analyzer)
	require.NoError(t, err)

	before := time.Now()
	s.runScheduled()

	assert.Equal(t, 1, analyzer.calls)
	assert.WithinDuration(t, before.Add(5*time.Minute), analyzer.deadline, 5*time.Second)
}

func TestService_RunScheduledSwallowsErrors(t *testing.T) {
	for _, runErr := range []error{analysis.ErrAnalysisInProgress, errors.New("database unreachable")} {
		analyzer := &fakeAnalyzer{err: runErr}
		s, err := NewService(testConfig("daily"), analyzer)
		require.NoError(t, err)

		assert.NotPanics(t, s.runScheduled)
		assert.Equal(t, 1, analyzer.calls)
	}
}
