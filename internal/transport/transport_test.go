package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tradewire/execgate/errs"
)

func newClient(venue, baseURL string) (*Client, RequestBuilder) {
	client := &Client{
		Venue:          venue,
		MaxRetries:     3,
		AttemptTimeout: 2 * time.Second,
		InitialBackoff: 10 * time.Millisecond,
	}
	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	}
	return client, build
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, build := newClient("binance", srv.URL)
	resp, err := client.Do(context.Background(), build)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", resp.Attempts)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body %s", resp.Body)
	}
}

func TestDoRetriesTransientFailureThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	client, build := newClient("okx", srv.URL)
	resp, err := client.Do(context.Background(), build)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.Attempts != 2 {
		t.Fatalf("expected success on attempt 2, got %d", resp.Attempts)
	}
}

func TestDoReturnsClientErrorsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	client, build := newClient("binance", srv.URL)
	resp, err := client.Do(context.Background(), build)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("4xx must not consume retry budget, saw %d calls", got)
	}
}

func TestDoSurfacesRateLimitAfterExhaustion(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, build := newClient("kraken", srv.URL)
	_, err := client.Do(context.Background(), build)
	if !errs.HasCode(err, errs.CodeRateLimited) {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, saw %d", got)
	}
	var envelope *errs.E
	if !errors.As(err, &envelope) || envelope.Attempts != 3 {
		t.Fatalf("expected attempts=3 in envelope, got %v", err)
	}
}

func TestDoSurfacesNetworkErrorAfterExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, build := newClient("kucoin", srv.URL)
	start := time.Now()
	_, err := client.Do(context.Background(), build)
	if !errs.HasCode(err, errs.CodeNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	// Two waits on the 10ms doubling schedule: 10ms + 20ms, generously bounded.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("backoff exceeded configured schedule: %v", elapsed)
	}
}

func TestDoReturnsBuilderErrorsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := &Client{
		Venue:          "kraken",
		MaxRetries:     3,
		AttemptTimeout: time.Second,
		InitialBackoff: time.Minute,
	}
	signErr := errs.New("kraken", errs.CodeValidation, errs.WithMessage("api credentials missing"))
	build := func(context.Context) (*http.Request, error) {
		return nil, signErr
	}
	start := time.Now()
	_, err := client.Do(context.Background(), build)
	if !errs.HasCode(err, errs.CodeValidation) {
		t.Fatalf("builder error must surface unwrapped, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("builder error must not reach the network, saw %d hits", hits.Load())
	}
	// No backoff sleeps on the one-minute schedule.
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("builder error must not consume retry budget, took %v", elapsed)
	}
}

func TestDoAbortsBackoffOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := &Client{
		Venue:          "okx",
		MaxRetries:     3,
		AttemptTimeout: time.Second,
		InitialBackoff: time.Minute,
	}
	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := client.Do(ctx, build)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation must abort an in-progress backoff wait, took %v", elapsed)
	}
	var envelope *errs.E
	if !errors.As(err, &envelope) || envelope.Exchange != "okx" {
		t.Fatalf("cancellation must carry the venue, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation cause must be preserved, got %v", err)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Fatalf("expected 0 for malformed header, got %v", got)
	}
}
