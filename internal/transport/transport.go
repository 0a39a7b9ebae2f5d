// Package transport wraps a single outbound HTTP call with per-attempt
// timeouts, bounded exponential-backoff retries, and rate-limit handling.
// It is venue-agnostic and operates on already-authenticated requests.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tradewire/execgate/errs"
)

const (
	// DefaultMaxRetries bounds the number of attempts per call.
	DefaultMaxRetries = 3
	// DefaultAttemptTimeout is the hard per-attempt deadline.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultInitialBackoff seeds the doubling backoff schedule.
	DefaultInitialBackoff = time.Second

	maxBodyBytes = 1 << 20
)

// Response is the outcome of a completed exchange round trip.
type Response struct {
	StatusCode int
	Body       []byte
	Attempts   int

	retryAfter time.Duration
}

// RequestBuilder constructs a fresh request for each attempt so retried
// attempts never reuse a consumed body reader.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Client issues requests with the retry policy applied.
type Client struct {
	Venue          string
	HTTP           *http.Client
	MaxRetries     int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultMaxRetries
}

func (c *Client) attemptTimeout() time.Duration {
	if c.AttemptTimeout > 0 {
		return c.AttemptTimeout
	}
	return DefaultAttemptTimeout
}

func (c *Client) initialBackoff() time.Duration {
	if c.InitialBackoff > 0 {
		return c.InitialBackoff
	}
	return DefaultInitialBackoff
}

// Do runs the request with up to MaxRetries attempts. Timeouts, transport
// errors, HTTP 429 and 5xx responses are retried on the backoff schedule; a
// Retry-After hint on 429 overrides the current backoff delay. Any other
// response, including non-429 4xx, is returned immediately: business-level
// classification belongs to the adapter's response mapper. Typed non-retriable
// errors from the builder, such as signing failures, bypass the retry loop.
func (c *Client) Do(ctx context.Context, build RequestBuilder) (Response, error) {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = c.initialBackoff()
	backoffCfg.RandomizationFactor = 0
	backoffCfg.Multiplier = 2

	var lastErr error
	rateLimited := false

	maxAttempts := c.maxRetries()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, build)
		retryAfter := time.Duration(0)
		if err == nil {
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < http.StatusInternalServerError {
				resp.Attempts = attempt
				return resp, nil
			}
			rateLimited = resp.StatusCode == http.StatusTooManyRequests
			retryAfter = resp.retryAfter
			lastErr = errs.New(c.Venue, errs.CodeNetwork,
				errs.WithHTTP(resp.StatusCode),
				errs.WithRawMessage(string(resp.Body)))
		} else {
			if ctx.Err() != nil {
				return Response{}, c.cancelled(ctx)
			}
			// Builder failures (signing, request construction) and other typed
			// non-retriable errors are final: retrying cannot change them.
			var envelope *errs.E
			if errors.As(err, &envelope) && !errs.Retriable(err) {
				return Response{}, err
			}
			rateLimited = false
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}
		delay := backoffCfg.NextBackOff()
		if delay == backoff.Stop {
			delay = backoffCfg.MaxInterval
		}
		if rateLimited && retryAfter > 0 {
			delay = retryAfter
		}
		select {
		case <-ctx.Done():
			return Response{}, c.cancelled(ctx)
		case <-time.After(delay):
		}
	}

	code := errs.CodeNetwork
	if rateLimited {
		code = errs.CodeRateLimited
	}
	return Response{}, errs.New(c.Venue, code,
		errs.WithAttempts(maxAttempts),
		errs.WithMessage("retries exhausted"),
		errs.WithCause(lastErr))
}

// cancelled wraps a caller cancellation so the surfaced error still carries
// the venue; errors.Is(err, context.Canceled) keeps working through the cause.
func (c *Client) cancelled(ctx context.Context) error {
	return errs.New(c.Venue, errs.CodeNetwork,
		errs.WithMessage("request cancelled"),
		errs.WithCause(ctx.Err()))
}

func (c *Client) attempt(ctx context.Context, build RequestBuilder) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout())
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return Response{}, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, err
	}
	out := Response{StatusCode: resp.StatusCode, Body: body}
	if resp.StatusCode == http.StatusTooManyRequests {
		out.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return out, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
