package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/vault-server/pkg/retry/backoff"
)

// Strategy decides whether another attempt should be made after a failed one.
// A strategy may block, for example to back off.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of targets.
func RetriableErrors(targets ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Deadline stops retrying once deadline has passed.
func Deadline(deadline time.Time) Strategy {
	return func(_ uint, _ error) bool {
		return clock.Now().Before(deadline)
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(_ uint, _ error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps for the delay computed by strategy, capped at maxDelay, and
// always allows the next attempt.
func Backoff(strategy backoff.Strategy, maxDelay time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxDelay, 0)
}

// BackoffWithJitter is Backoff with the capped delay randomly moved by up to
// jitter of itself in either direction. A jitter of 0.1 turns 100ms into
// anything between 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxDelay time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := min(strategy(attempts), maxDelay)
		if jitter > 0 {
			delay = time.Duration(float64(delay) * (1 + jitter*(2*rand.Float64()-1)))
		}
		clock.Sleep(delay)
		return true
	}
}

type sleepClock interface {
	Now() time.Time
	Sleep(time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

var clock sleepClock = realClock{}
