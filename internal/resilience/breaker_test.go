package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverloaded = NewTransientError(errors.New("overloaded"), 529)

// fakeClock drives a breaker's cooldown.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	b := NewBreaker(BreakerConfig{Threshold: threshold, Cooldown: cooldown})
	b.now = clock.now
	return b, clock
}

func fail(b *Breaker, err error) error {
	_, got := Guard(context.Background(), b, func(_ context.Context) (int, error) { return 0, err })
	return got
}

func succeed(b *Breaker) error {
	_, err := Guard(context.Background(), b, func(_ context.Context) (int, error) { return 1, nil })
	return err
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	assert.Equal(t, 5, b.cfg.Threshold)
	assert.Equal(t, 60*time.Second, b.cfg.Cooldown)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterConsecutiveTransientFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		assert.Equal(t, errOverloaded, fail(b, errOverloaded))
		assert.Equal(t, StateClosed, b.State())
	}
	fail(b, errOverloaded)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 3, b.Failures())

	called := false
	_, err := Guard(context.Background(), b, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.False(t, called)
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	for i := 0; i < 5; i++ {
		fail(b, errors.New("invalid_request_error: image too large"))
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Failures())
}

func TestBreaker_SuccessResetsRun(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	fail(b, errOverloaded)
	fail(b, errOverloaded)
	require.NoError(t, succeed(b))
	assert.Zero(t, b.Failures())

	fail(b, errOverloaded)
	fail(b, errOverloaded)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancelledCallsIgnored(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Guard(ctx, b, func(ctx context.Context) (int, error) { return 0, NewTransientError(ctx.Err(), 0) })
	require.Error(t, err)

	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Failures())
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	fail(b, errOverloaded)
	require.Equal(t, StateOpen, b.State())

	clock.advance(59 * time.Second)
	assert.ErrorIs(t, succeed(b), ErrBackendUnavailable)

	clock.advance(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	fail(b, errOverloaded)
	clock.advance(time.Minute)

	fail(b, errOverloaded)
	assert.Equal(t, StateOpen, b.State())

	// The cooldown restarts from the failed probe.
	clock.advance(30 * time.Second)
	assert.ErrorIs(t, succeed(b), ErrBackendUnavailable)
	clock.advance(30 * time.Second)
	assert.NoError(t, succeed(b))
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	fail(b, errOverloaded)
	clock.advance(time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Guard(context.Background(), b, func(_ context.Context) (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
		done <- err
	}()

	<-entered
	assert.ErrorIs(t, succeed(b), ErrBackendUnavailable)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	clock := &fakeClock{t: time.Now()}
	b := NewBreaker(BreakerConfig{
		Threshold: 1,
		Cooldown:  time.Second,
		OnStateChange: func(from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = clock.now

	fail(b, errOverloaded)
	clock.advance(time.Second)
	require.NoError(t, succeed(b))

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	b, _ := newTestBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				fail(b, errOverloaded)
			} else {
				_ = succeed(b)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
