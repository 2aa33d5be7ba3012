package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abkommen-gpt/backend/pkg/circuitbreaker"
)

func TestExecute_PassesThroughWhenClosed(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{})

	err := cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
	})

	failing := errors.New("downstream failed")
	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return failing })
		assert.ErrorIs(t, err, failing)
	}

	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error {
		t.Fatal("must not be called while open")
		return nil
	})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestExecute_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 3,
	})

	failing := errors.New("downstream failed")
	cb.Execute(context.Background(), func() error { return failing })
	cb.Execute(context.Background(), func() error { return failing })
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	cb.Execute(context.Background(), func() error { return failing })
	cb.Execute(context.Background(), func() error { return failing })

	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	cb := circuitbreaker.New("test", circuitbreaker.Config{
		MaxRequests:      2,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	cb.Execute(context.Background(), func() error { return errors.New("boom") })
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))

	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}
