package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/confirm"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/transport"
)

func testEnv(t *testing.T, srv *httptest.Server) *shared.Env {
	t.Helper()
	return &shared.Env{
		Venue:   "binance",
		BaseURL: srv.URL,
		Client: &transport.Client{
			Venue:          "binance",
			HTTP:           srv.Client(),
			MaxRetries:     1,
			AttemptTimeout: 2 * time.Second,
			InitialBackoff: time.Millisecond,
		},
		Clock: func() time.Time { return time.UnixMilli(1700000000000).UTC() },
	}
}

func testAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	return New(testEnv(t, srv), Options{Venue: "binance", Policy: confirm.Synchronous()})
}

func creds() schema.Credentials {
	return schema.Credentials{APIKey: "api-key", APISecret: "api-secret"}
}

func TestPlaceMarketBuyUsesSynchronousFills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/order" {
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "XRPUSDT" || q.Get("side") != "BUY" || q.Get("type") != "MARKET" {
			t.Fatalf("unexpected order params: %v", q)
		}
		if q.Get("quoteOrderQty") != "100" {
			t.Fatalf("quoteOrderQty = %q", q.Get("quoteOrderQty"))
		}
		if r.Header.Get("X-MBX-APIKEY") != "api-key" {
			t.Fatalf("missing api key header")
		}

		raw := r.URL.RawQuery
		idx := strings.Index(raw, "&signature=")
		if idx < 0 {
			t.Fatalf("signature must be the final query parameter: %s", raw)
		}
		mac := hmac.New(sha256.New, []byte("api-secret"))
		mac.Write([]byte(raw[:idx]))
		if want := hex.EncodeToString(mac.Sum(nil)); q.Get("signature") != want {
			t.Fatalf("signature = %q, want %q", q.Get("signature"), want)
		}

		_, _ = w.Write([]byte(`{
			"symbol":"XRPUSDT","orderId":12345,"status":"FILLED",
			"executedQty":"200","cummulativeQuoteQty":"100",
			"fills":[
				{"price":"0.5","qty":"150","commission":"0.075","commissionAsset":"USDT"},
				{"price":"0.5","qty":"50","commission":"0.025","commissionAsset":"USDT"}
			]
		}`))
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv)
	result, err := adapter.PlaceMarketBuy(context.Background(), schema.OrderRequest{
		Exchange:    "binance",
		Pair:        "XRP-USDT",
		Side:        schema.SideBuy,
		Sizing:      schema.QuoteNotional(decimal.NewFromInt(100)),
		Credentials: creds(),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if result.OrderID != "12345" {
		t.Fatalf("order id = %q", result.OrderID)
	}
	if result.Status != schema.StatusFilled {
		t.Fatalf("status = %q", result.Status)
	}
	if !result.ExecutedPrice.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("price = %s", result.ExecutedPrice)
	}
	if !result.ExecutedQuantity.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("quantity = %s", result.ExecutedQuantity)
	}
	if !result.ExecutedValue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("value = %s", result.ExecutedValue)
	}
	if !result.Fee.Equal(decimal.RequireFromString("0.1")) || result.FeeCurrency != "USDT" {
		t.Fatalf("fee = %s %s", result.Fee, result.FeeCurrency)
	}
	if result.Estimated {
		t.Fatal("synchronous fills are not estimates")
	}
}

func TestPlaceMarketSellMapsVenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv)
	_, err := adapter.PlaceMarketSell(context.Background(), schema.OrderRequest{
		Exchange:    "binance",
		Pair:        "BTC-USDT",
		Side:        schema.SideSell,
		Sizing:      schema.BaseQuantity(decimal.NewFromInt(1)),
		Credentials: creds(),
	})
	if !errs.HasCode(err, errs.CodeExchangeRejected) {
		t.Fatalf("expected exchange_rejected, got %v", err)
	}
	var envelope *errs.E
	if !errors.As(err, &envelope) {
		t.Fatalf("expected error envelope, got %T", err)
	}
	if envelope.RawCode != "-2010" {
		t.Fatalf("raw code = %q", envelope.RawCode)
	}
	if envelope.Side != errs.SideSell || envelope.Pair != "BTC-USDT" {
		t.Fatalf("envelope not decorated: %+v", envelope)
	}
}

func TestPlaceMarketBuyFallsBackToLimitWhenMarketClosed(t *testing.T) {
	var orderCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/order":
			orderCalls++
			if orderCalls == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":-1013,"msg":"Market orders are not supported for this symbol."}`))
				return
			}
			q := r.URL.Query()
			if q.Get("type") != "LIMIT" || q.Get("timeInForce") != "IOC" {
				t.Fatalf("fallback params: %v", q)
			}
			if q.Get("quoteOrderQty") != "" {
				t.Fatal("fallback must not carry quoteOrderQty")
			}
			if q.Get("price") != "1.01" || q.Get("quantity") != "99.00990099" {
				t.Fatalf("fallback price/quantity: %v", q)
			}
			_, _ = w.Write([]byte(`{"orderId":77,"status":"FILLED","executedQty":"99.00990099","cummulativeQuoteQty":"99.9999"}`))
		case "/api/v3/ticker/price":
			_, _ = w.Write([]byte(`{"symbol":"XRPUSDT","price":"1"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv)
	result, err := adapter.PlaceMarketBuy(context.Background(), schema.OrderRequest{
		Exchange:    "binance",
		Pair:        "XRP-USDT",
		Side:        schema.SideBuy,
		Sizing:      schema.QuoteNotional(decimal.NewFromInt(100)),
		Credentials: creds(),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if result.OrderID != "77" || result.Status != schema.StatusFilled {
		t.Fatalf("unexpected result %+v", result)
	}
	if orderCalls != 2 {
		t.Fatalf("expected 2 order calls, got %d", orderCalls)
	}
}

func TestLimitFallbackPollsOnPollingDeployments(t *testing.T) {
	var submits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v3/order":
			submits++
			if submits == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":-1013,"msg":"Market orders are not supported for this symbol."}`))
				return
			}
			if q := r.URL.Query(); q.Get("type") != "LIMIT" {
				t.Fatalf("expected limit fallback, got %v", q)
			}
			// MEXC submission responses carry no fills.
			_, _ = w.Write([]byte(`{"orderId":88,"status":"NEW","executedQty":"0","cummulativeQuoteQty":"0"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v3/order":
			_, _ = w.Write([]byte(`{"orderId":88,"status":"FILLED","executedQty":"99","cummulativeQuoteQty":"99.99"}`))
		case r.URL.Path == "/api/v3/ticker/price":
			_, _ = w.Write([]byte(`{"symbol":"XRPUSDT","price":"1"}`))
		default:
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	adapter := New(testEnv(t, srv), Options{
		Venue:     "mexc",
		KeyHeader: "X-MEXC-APIKEY",
		Policy:    confirm.PollEvery(5, time.Millisecond),
	})
	result, err := adapter.PlaceMarketBuy(context.Background(), schema.OrderRequest{
		Exchange:    "mexc",
		Pair:        "XRP-USDT",
		Side:        schema.SideBuy,
		Sizing:      schema.QuoteNotional(decimal.NewFromInt(100)),
		Credentials: creds(),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if result.OrderID != "88" || result.Status != schema.StatusFilled {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.ExecutedQuantity.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("fallback must report the polled fill, got quantity %s", result.ExecutedQuantity)
	}
	if !result.ExecutedValue.Equal(decimal.RequireFromString("99.99")) {
		t.Fatalf("value = %s", result.ExecutedValue)
	}
}

func TestGetBalancesSkipsZeroEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/account" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"balances":[
			{"asset":"BTC","free":"0.5","locked":"0.1"},
			{"asset":"DUST","free":"0","locked":"0"}
		]}`))
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv)
	balances, err := adapter.GetBalances(context.Background(), creds())
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}
	b := balances[0]
	if b.Currency != "BTC" || !b.Available.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("balance = %+v", b)
	}
	if !b.Total.Equal(decimal.RequireFromString("0.6")) {
		t.Fatalf("total = %s", b.Total)
	}
}

func TestGetOrderStatusMapsRawStatuses(t *testing.T) {
	cases := map[string]schema.OrderStatus{
		"NEW":              schema.StatusSubmitted,
		"PARTIALLY_FILLED": schema.StatusPartiallyFilled,
		"FILLED":           schema.StatusFilled,
		"CANCELED":         schema.StatusCancelled,
		"EXPIRED":          schema.StatusFailed,
		"WEIRD":            schema.StatusUnknown,
	}
	for raw, want := range cases {
		if got := mapStatus(raw); got != want {
			t.Fatalf("mapStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
