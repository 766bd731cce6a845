package scheduler

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Clock abstracts the wall clock so tests can fire timers by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// RealClock is backed by package time.
var RealClock Clock = realClock{}

// Delayer runs one-shot continuations after a uniformly random delay in
// [min, max). Scheduled work is never cancelled; Wait lets shutdown drain it.
type Delayer struct {
	min, max time.Duration
	clock    Clock
	jitter   func(n int64) int64

	wg sync.WaitGroup
}

type DelayerOption func(*Delayer)

func WithClock(c Clock) DelayerOption {
	return func(d *Delayer) { d.clock = c }
}

// WithJitter replaces the random source; f(n) must return a value in [0, n).
func WithJitter(f func(n int64) int64) DelayerOption {
	return func(d *Delayer) { d.jitter = f }
}

// NewDelayer falls back to [1s, 3s) when the bounds are unusable.
func NewDelayer(min, max time.Duration, opts ...DelayerOption) *Delayer {
	if min <= 0 || max <= min {
		min, max = time.Second, 3*time.Second
	}
	d := &Delayer{min: min, max: max, clock: RealClock, jitter: rand.Int64N}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Next draws a delay without scheduling anything.
func (d *Delayer) Next() time.Duration {
	return d.min + time.Duration(d.jitter(int64(d.max-d.min)))
}

// Schedule arranges for fn to run once after a random delay and returns it.
func (d *Delayer) Schedule(fn func()) time.Duration {
	delay := d.Next()
	d.wg.Add(1)
	d.clock.AfterFunc(delay, func() {
		defer d.wg.Done()
		fn()
	})
	return delay
}

// Wait blocks until every scheduled continuation has run or ctx is done.
func (d *Delayer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
