package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaking/internal/jobs"
	"github.com/oggyb/muzz-matchmaking/internal/logger"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	_, err := jobs.NewScheduler("not a cron spec", &fakeSweeper{}, logger.Discard())
	assert.Error(t, err)

	// five fields are not enough once seconds are enabled
	_, err = jobs.NewScheduler("0 0 * * *", &fakeSweeper{}, logger.Discard())
	assert.Error(t, err)
}

func TestRunPremiumSweep(t *testing.T) {
	sw := &fakeSweeper{}
	s, err := jobs.NewScheduler("0 0 0 * * *", sw, logger.Discard())
	require.NoError(t, err)

	s.RunPremiumSweep(context.Background())
	assert.Equal(t, 1, sw.calls)

	sw.err = errors.New("db down")
	s.RunPremiumSweep(context.Background())
	assert.Equal(t, 2, sw.calls)
}

func TestStartStop(t *testing.T) {
	s, err := jobs.NewScheduler("@every 1h", &fakeSweeper{}, logger.Discard())
	require.NoError(t, err)

	s.Start()
	s.Stop(context.Background())
}
