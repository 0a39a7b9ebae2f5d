// Package shared bundles the infrastructure every venue adapter composes:
// rate-limited resilient transport, venue endpoints, and injected clock and
// nonce sources.
package shared

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/internal/ratelimit"
	"github.com/tradewire/execgate/internal/transport"
)

// Env is the per-venue adapter environment.
type Env struct {
	Venue   string
	BaseURL string
	Client  *transport.Client
	Limiter *ratelimit.Limiter
	// TakerFee overrides the adapter's built-in taker fee rate when positive.
	// Only adapters that synthesize estimated fills consult it.
	TakerFee decimal.Decimal
	// Clock and Nonce are injected so tests can pin timestamps and nonces for
	// reproducible signatures.
	Clock func() time.Time
	Nonce func() string
}

// Fee returns the configured taker fee, falling back to the adapter's default.
func (e *Env) Fee(fallback decimal.Decimal) decimal.Decimal {
	if e.TakerFee.IsPositive() {
		return e.TakerFee
	}
	return fallback
}

// Now returns the current time from the injected clock.
func (e *Env) Now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// NextNonce returns the next nonce from the injected source.
func (e *Env) NextNonce() string {
	if e.Nonce != nil {
		return e.Nonce()
	}
	return defaultNonce()
}

// URL joins the venue base URL, path and encoded query.
func (e *Env) URL(path string, query url.Values) string {
	base := strings.TrimRight(e.BaseURL, "/")
	full := base + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

// Do acquires the venue's rate-limit slot and runs the request through the
// resilient transport. The limiter is consumed once per call, not per retry:
// retry pacing is the transport's backoff schedule.
func (e *Env) Do(ctx context.Context, build transport.RequestBuilder) (transport.Response, error) {
	if e.Limiter != nil {
		if err := e.Limiter.Acquire(ctx, e.Venue); err != nil {
			return transport.Response{}, err
		}
	}
	return e.Client.Do(ctx, build)
}

var nonceCounter atomic.Int64

// defaultNonce yields strictly increasing millisecond-scale nonces even when
// two calls land in the same millisecond.
func defaultNonce() string {
	now := time.Now().UnixMilli()
	for {
		prev := nonceCounter.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if nonceCounter.CompareAndSwap(prev, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}
