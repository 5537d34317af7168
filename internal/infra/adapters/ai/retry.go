package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/logging"
	"coursesync/internal/infra/metrics"
)

// RetryPolicy bounds the attempts made for one completion.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // wait before retry n is BaseDelay * 2^(n-1)
	MaxJitter   time.Duration // uniform jitter in [0, MaxJitter) added to every wait
}

// DefaultRetryPolicy is 5 attempts, 1s base delay, up to 500ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxJitter: 500 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	return p
}

// Backoff returns the exponential part of the wait before the retry that follows attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt-1))
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attemptResult is what one try against the provider produced.
type attemptResult struct {
	text       string
	retryAfter time.Duration // parsed Retry-After; 0 when absent
	hasAfter   bool
	err        error
}

// retrier runs attempts under a RetryPolicy. It holds no mutable state.
type retrier struct {
	provider string
	policy   RetryPolicy
	sleep    Sleeper
	jitter   func(limit time.Duration) time.Duration
	log      *zerolog.Logger
}

func newRetrier(provider string, policy RetryPolicy, log *zerolog.Logger) retrier {
	if log == nil {
		log = logging.Nop()
	}
	return retrier{
		provider: provider,
		policy:   policy.normalized(),
		sleep:    sleepCtx,
		jitter:   uniformJitter,
		log:      log,
	}
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	// math/rand/v2 top-level functions are safe for concurrent use
	return rand.N(limit)
}

// do calls try until it succeeds, fails terminally, or attempts run out.
// 429, 5xx and transport failures are retried; any other error is returned at once.
func (r retrier) do(ctx context.Context, try func(ctx context.Context, attempt int) attemptResult) (string, error) {
	l := logging.With(ctx, r.log)
	maxAttempts := r.policy.MaxAttempts

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res := try(ctx, attempt)
		if res.err == nil {
			return res.text, nil
		}
		if err := ctx.Err(); err != nil {
			if last != nil {
				return "", r.exhausted(err, last)
			}
			return "", err
		}

		var (
			reason  string
			status  int
			wait    = r.policy.Backoff(attempt)
			statErr *adapter.StatusError
			netErr  *adapter.NetworkError
		)
		switch {
		case errors.As(res.err, &netErr):
			if attempt == maxAttempts {
				l.Error().Err(res.err).Str("provider", r.provider).Int("attempt", attempt).Msg("llm request failed")
				return "", res.err
			}
			reason = "network"
		case errors.As(res.err, &statErr) && statErr.Code == http.StatusTooManyRequests:
			reason, status = "throttled", statErr.Code
			if res.hasAfter {
				wait = res.retryAfter
			}
		case errors.As(res.err, &statErr) && statErr.Retryable():
			reason, status = "server", statErr.Code
		default:
			return "", res.err
		}

		last = res.err
		if attempt == maxAttempts {
			break
		}
		wait += r.jitter(r.policy.MaxJitter)
		l.Warn().
			Str("provider", r.provider).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("wait", wait).
			Str("reason", reason).
			Int("status", status).
			Err(res.err).
			Msg("llm call retry")
		metrics.IncLLMRetry(r.provider, reason)

		// a wait past the deadline fails now
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
			l.Warn().Str("provider", r.provider).Dur("wait", wait).Time("deadline", dl).Msg("llm retry wait exceeds deadline")
			return "", r.exhausted(context.DeadlineExceeded, last)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return "", r.exhausted(err, last)
		}
	}
	return "", fmt.Errorf("%s: %w after %d attempts: %w", r.provider, domain.ErrServiceUnavailable, maxAttempts, last)
}

// exhausted reports a call cut short by its context after a retryable
// failure. It matches both ErrServiceUnavailable and the context error.
func (r retrier) exhausted(ctxErr, last error) error {
	return fmt.Errorf("%s: %w: %w: %w", r.provider, domain.ErrServiceUnavailable, ctxErr, last)
}

// parseRetryAfter accepts a non-negative number of seconds. HTTP-date values are ignored.
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 || secs != secs || secs > 24*3600 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
