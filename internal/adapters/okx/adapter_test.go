package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/transport"
)

var fixedTime = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

func testAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	env := &shared.Env{
		Venue:   "okx",
		BaseURL: srv.URL,
		Client: &transport.Client{
			Venue:          "okx",
			HTTP:           srv.Client(),
			MaxRetries:     1,
			AttemptTimeout: 2 * time.Second,
			InitialBackoff: time.Millisecond,
		},
		Clock: func() time.Time { return fixedTime },
	}
	return New(env)
}

func creds() schema.Credentials {
	return schema.Credentials{APIKey: "api-key", APISecret: "api-secret", Passphrase: "phrase"}
}

func TestPlaceMarketBuySignsWithISOTimestamp(t *testing.T) {
	timestamp := "2023-11-14T22:13:20.000Z"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v5/trade/order":
			body, _ := io.ReadAll(r.Body)
			var payload map[string]string
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload["instId"] != "XRP-USDT" || payload["tdMode"] != "cash" || payload["ordType"] != "market" {
				t.Fatalf("payload = %v", payload)
			}
			if payload["sz"] != "100" || payload["tgtCcy"] != "quote_ccy" {
				t.Fatalf("buy sizing = %v", payload)
			}
			if r.Header.Get("OK-ACCESS-TIMESTAMP") != timestamp {
				t.Fatalf("timestamp = %q", r.Header.Get("OK-ACCESS-TIMESTAMP"))
			}
			if r.Header.Get("OK-ACCESS-PASSPHRASE") != "phrase" {
				t.Fatalf("passphrase must be sent in clear, got %q", r.Header.Get("OK-ACCESS-PASSPHRASE"))
			}
			mac := hmac.New(sha256.New, []byte("api-secret"))
			mac.Write([]byte(timestamp + http.MethodPost + "/api/v5/trade/order" + string(body)))
			if want := base64.StdEncoding.EncodeToString(mac.Sum(nil)); r.Header.Get("OK-ACCESS-SIGN") != want {
				t.Fatalf("signature = %q, want %q", r.Header.Get("OK-ACCESS-SIGN"), want)
			}
			_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"ordId":"312269865356374016","sCode":"0","sMsg":""}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v5/trade/order":
			_, _ = w.Write([]byte(`{"code":"0","data":[{
				"ordId":"312269865356374016","state":"filled",
				"avgPx":"0.5","accFillSz":"200","fee":"-0.1","feeCcy":"USDT"
			}]}`))
		default:
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv)
	result, err := adapter.PlaceMarketBuy(context.Background(), schema.OrderRequest{
		Exchange:    "okx",
		Pair:        "XRP-USDT",
		Side:        schema.SideBuy,
		Sizing:      schema.QuoteNotional(decimal.NewFromInt(100)),
		Credentials: creds(),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if result.OrderID != "312269865356374016" || result.Status != schema.StatusFilled {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.ExecutedValue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("value = %s", result.ExecutedValue)
	}
	if !result.Fee.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("fee must be reported as a positive charge, got %s", result.Fee)
	}
}

func TestSubmitPerOrderRejectionSurfacesSCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","data":[{"ordId":"","sCode":"51008","sMsg":"Order amount exceeds balance"}]}`))
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv)
	_, err := adapter.PlaceMarketSell(context.Background(), schema.OrderRequest{
		Exchange:    "okx",
		Pair:        "BTC-USDT",
		Side:        schema.SideSell,
		Sizing:      schema.BaseQuantity(decimal.NewFromInt(1)),
		Credentials: creds(),
	})
	if !errs.HasCode(err, errs.CodeExchangeRejected) {
		t.Fatalf("expected exchange_rejected, got %v", err)
	}
}

func TestGetBalancesFlattensAccountDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"0","data":[{"details":[
			{"ccy":"btc","availBal":"1.0","frozenBal":"0.5"},
			{"ccy":"OLD","availBal":"0","frozenBal":"0"}
		]}]}`))
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
	if b.Currency != "BTC" || !b.Total.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("balance = %+v", b)
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]schema.OrderStatus{
		"live":             schema.StatusSubmitted,
		"partially_filled": schema.StatusPartiallyFilled,
		"filled":           schema.StatusFilled,
		"canceled":         schema.StatusCancelled,
		"other":            schema.StatusUnknown,
	}
	for raw, want := range cases {
		if got := mapStatus(raw); got != want {
			t.Fatalf("mapStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
