package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  int32
	err   error
}

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func TestRunNow_ExecutesImmediatelyOutsideSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "flatten"}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

func TestRunNow_PropagatesJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "flatten", err: errors.New("boom")}

	assert.Error(t, s.RunNow(job))
}

func TestAddJob_InvalidScheduleIsRejected(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "bad"}

	assert.Error(t, s.AddJob("not a valid cron expression", job))
}

func TestAddJob_RunsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "every-second"}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	defer s.Stop()

	time.Sleep(1200 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&job.runs), int32(1))
}
