package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	calls []string
	err   error
}

func (f *fakeJobs) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, "reminders")
	return 0, f.err
}

func (f *fakeJobs) ProcessAutoPay(ctx context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, "autopay")
	return 0, f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New("not a cron", &fakeJobs{}, quietLogger())
	assert.Error(t, err)
}

func TestRunOnceRunsAutoPayBeforeReminders(t *testing.T) {
	jobs := &fakeJobs{}
	s, err := New("0 9 * * *", jobs, quietLogger())
	require.NoError(t, err)

	s.RunOnce(context.Background())
	assert.Equal(t, []string{"autopay", "reminders"}, jobs.calls)

	jobs.err = errors.New("store down")
	s.RunOnce(context.Background())
	assert.Len(t, jobs.calls, 4, "a failing job does not stop the next one")
}

func TestRunStopsWithContext(t *testing.T) {
	s, err := New("0 9 * * *", &fakeJobs{}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
