package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/digest/internal/logger"
)

func TestNewDaily_InvalidTime(t *testing.T) {
	for _, at := range []string{"", "8", "25:00", "08:61", "eight"} {
		_, err := NewDaily(at, nil, logger.Discard())
		assert.True(t, errors.Is(err, ErrInvalidTime), at)
	}
}

func TestDaily_Next(t *testing.T) {
	d, err := NewDaily("08:00", time.UTC, logger.Discard())
	require.NoError(t, err)

	before := time.Date(2024, 5, 10, 7, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC), d.Next(before))

	exactly := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 11, 8, 0, 0, 0, time.UTC), d.Next(exactly))

	cph, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)
	local, err := NewDaily("08:00", cph, logger.Discard())
	require.NoError(t, err)
	// 08:00 UTC is 10:00 in Copenhagen during summer time.
	assert.Equal(t, time.Date(2024, 5, 11, 6, 0, 0, 0, time.UTC), local.Next(before.Add(time.Minute)).UTC())
}

func TestDaily_Run(t *testing.T) {
	d, err := NewDaily("08:00", time.UTC, logger.Discard())
	require.NoError(t, err)

	clock := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	var waits []time.Duration
	d.now = func() time.Time { return clock }
	d.after = func(wait time.Duration) <-chan time.Time {
		waits = append(waits, wait)
		clock = clock.Add(wait)
		ch := make(chan time.Time, 1)
		ch <- clock
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	err = d.Run(ctx, func(context.Context) error {
		runs++
		if runs == 1 {
			return errors.New("feeds down")
		}
		if runs == 3 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, runs)
	require.Len(t, waits, 3)
	assert.Equal(t, 2*time.Hour, waits[0])
	assert.Equal(t, 24*time.Hour, waits[1])
}
