package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearSucceedsOnThirdAttempt(t *testing.T) {
	base := 20 * time.Millisecond
	attempts := 0
	var gaps []time.Duration
	last := time.Now()

	err := Linear(context.Background(), 3, base, nil, func() error {
		now := time.Now()
		if attempts > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, gaps, 2)
	// Second wait is double the first: base*1 then base*2.
	assert.GreaterOrEqual(t, gaps[0], base)
	assert.GreaterOrEqual(t, gaps[1], 2*base)
	assert.Less(t, gaps[1], 4*base)
}

func TestLinearExhaustsAndSurfacesLastError(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0

	err := Linear(context.Background(), 3, time.Millisecond, nil, func() error {
		attempts++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestLinearHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Linear(ctx, 5, time.Second, nil, func() error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyDoStopsOnPermanent(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseInterval: time.Millisecond, MaxInterval: time.Millisecond}
	fatal := errors.New("fatal")
	attempts := 0

	err := p.Do(context.Background(), func() error {
		attempts++
		return Permanent(fatal)
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestPolicyDoRetriesTransientErrors(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	attempts := 0

	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}
