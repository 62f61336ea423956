// Package retry wraps outbound calls in a bounded, fixed-delay retry loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts = 2
	DefaultTimeout  = 60 * time.Second
	DefaultDelay    = 2 * time.Second
)

// Warning describes one failed attempt. It is delivered to the sink installed
// with WithNotify so the session surface can show it to the user.
type Warning struct {
	Op      string
	Attempt int
	Timeout bool
	Err     error
}

func (w Warning) Message() string {
	if w.Timeout {
		return "Request timed out. Retrying…"
	}
	return "API error: " + w.Err.Error()
}

type notifyKey struct{}

// WithNotify attaches a warning sink to ctx. Every failed attempt made by Do
// under the returned context is reported to fn.
func WithNotify(ctx context.Context, fn func(Warning)) context.Context {
	return context.WithValue(ctx, notifyKey{}, fn)
}

func notify(ctx context.Context, w Warning) {
	if fn, ok := ctx.Value(notifyKey{}).(func(Warning)); ok && fn != nil {
		fn(w)
	}
}

// Policy is the attempt budget, per-attempt timeout and the constant wait between attempts.
type Policy struct {
	Attempts int
	Timeout  time.Duration
	Delay    time.Duration
}

func Default() Policy {
	return Policy{Attempts: DefaultAttempts, Timeout: DefaultTimeout, Delay: DefaultDelay}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
	timeout  bool
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Timeout reports whether the final attempt ended on its deadline.
func (e *ExhaustedError) Timeout() bool { return e.timeout }

// Do runs op until it succeeds or the attempt budget is spent. Each attempt
// gets its own context bounded by p.Timeout. A cancelled parent context stops
// the loop and its error is returned as is.
func Do[T any](ctx context.Context, op string, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		attempt     int
		last        error
		lastTimeout bool
	)
	run := func() (T, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		v, err := fn(actx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return v, backoff.Permanent(ctx.Err())
		}
		last = err
		lastTimeout = isTimeout(actx, err)
		w := Warning{Op: op, Attempt: attempt, Timeout: lastTimeout, Err: err}
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("attempts", p.Attempts).
			Bool("timeout", lastTimeout).
			Err(err).
			Msg("retry: attempt failed")
		notify(ctx, w)
		return v, err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.Attempts-1)),
		ctx,
	)
	v, err := backoff.RetryNotifyWithData(run, b, func(err error, wait time.Duration) {
		log.Debug().Str("op", op).Dur("wait", wait).Msg("retry: waiting before next attempt")
	})
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, ctx.Err()
	}
	return v, &ExhaustedError{Op: op, Attempts: attempt, Last: last, timeout: lastTimeout}
}

func isTimeout(actx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
