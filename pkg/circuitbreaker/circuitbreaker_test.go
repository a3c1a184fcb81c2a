package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	cb := New("test", WithFailureThreshold(2))

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	var transitions []string
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(time.Minute),
		WithClock(clock.now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	require.Error(t, cb.Execute(ctx, fail))
	assert.True(t, cb.IsOpen())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	clock.advance(31 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.now))

	require.Error(t, cb.Execute(ctx, fail))
	clock.advance(2 * time.Second)
	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ctx := context.Background()
	errClient := errors.New("bad request")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errClient) }),
	)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return errClient }), errClient)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 3, cb.Counts().TotalSuccesses)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	require.Error(t, cb.Execute(context.Background(), fail))
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestStoreBreaker(t *testing.T) {
	cb := StoreBreaker(nil, nil)
	assert.Equal(t, "student-store", cb.Name())
	assert.Equal(t, 3, cb.config.FailureThreshold)
}
