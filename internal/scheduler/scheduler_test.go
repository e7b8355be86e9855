package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func noop(ctx context.Context) error { return nil }

func TestScheduleRejectsBadExpression(t *testing.T) {
	s := New(testLogger())
	err := s.Schedule("bad", "not a cron expression", time.Minute, noop)
	assert.Error(t, err)
}

func TestScheduleRejectsDuplicateNames(t *testing.T) {
	s := New(testLogger())
	require.NoError(t, s.Schedule("settle", "@hourly", time.Minute, noop))
	assert.Error(t, s.Schedule("settle", "@hourly", time.Minute, noop))
}

func TestStartRequiresJobs(t *testing.T) {
	s := New(testLogger())
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestLifecycle(t *testing.T) {
	s := New(testLogger())
	require.NoError(t, s.Schedule("decide", "@hourly", time.Minute, noop))
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	assert.Error(t, s.Schedule("late", "@hourly", time.Minute, noop))
	assert.False(t, s.NextRun().IsZero())
	assert.Equal(t, []string{"decide"}, s.Jobs())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
