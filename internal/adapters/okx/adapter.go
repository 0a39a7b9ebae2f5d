// Package okx adapts OKX spot trading: ISO-8601 timestamp signatures with a
// plaintext passphrase header, cash-mode market orders whose buy size is a
// quote-currency notional, and a polling confirmation.
package okx

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/confirm"
	"github.com/tradewire/execgate/internal/pairs"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/sign"
	"github.com/tradewire/execgate/internal/transport"
)

const venue = "okx"

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Adapter implements the OKX venue adapter.
type Adapter struct {
	env    *shared.Env
	policy confirm.Policy
	signer sign.TimestampConcat
}

// New constructs the adapter.
func New(env *shared.Env) *Adapter {
	return &Adapter{
		env:    env,
		policy: confirm.PollEvery(10, time.Second),
		signer: sign.TimestampConcat{
			Venue:            venue,
			Alg:              sign.SHA256,
			Enc:              sign.Base64,
			KeyHeader:        "OK-ACCESS-KEY",
			SignHeader:       "OK-ACCESS-SIGN",
			TimestampHeader:  "OK-ACCESS-TIMESTAMP",
			PassphraseHeader: "OK-ACCESS-PASSPHRASE",
		},
	}
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string { return venue }

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	return pairs.Normalize(venue, pair)
}

// PlaceMarketBuy implements adapters.Adapter. Market buys in cash mode size
// by quote currency, which matches the notional sizing contract directly.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	payload := orderPayload{
		InstID:  a.NormalizePair(req.Pair),
		TdMode:  "cash",
		ClOrdID: clientOrderID(req),
		Side:    "buy",
		OrdType: "market",
		Size:    req.Sizing.Amount.String(),
		TgtCcy:  "quote_ccy",
	}
	return a.submit(ctx, req, payload)
}

// PlaceMarketSell implements adapters.Adapter.
func (a *Adapter) PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	payload := orderPayload{
		InstID:  a.NormalizePair(req.Pair),
		TdMode:  "cash",
		ClOrdID: clientOrderID(req),
		Side:    "sell",
		OrdType: "market",
		Size:    req.Sizing.Amount.String(),
	}
	return a.submit(ctx, req, payload)
}

func (a *Adapter) submit(ctx context.Context, req schema.OrderRequest, payload orderPayload) (schema.OrderResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return schema.OrderResult{}, err
	}
	resp, err := a.signedCall(ctx, http.MethodPost, "/api/v5/trade/order", nil, body, req.Credentials)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	var envelope submitEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	if len(envelope.Data) == 0 {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("submission response carried no order entries")), req.Side, req.Pair)
	}
	entry := envelope.Data[0]
	// The outer code can be "0" while the per-order sCode reports a rejection.
	if entry.SCode != "" && entry.SCode != "0" {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeExchangeRejected,
			errs.WithRawCode(entry.SCode),
			errs.WithRawMessage(entry.SMsg)), req.Side, req.Pair)
	}
	orderID := strings.TrimSpace(entry.OrdID)
	if orderID == "" {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "ordId"),
			errs.WithMessage("submission response missing order identifier")), req.Side, req.Pair)
	}

	detail, err := confirm.Poll(ctx, venue, orderID, a.policy, func(ctx context.Context) (schema.OrderStatusDetail, error) {
		return a.GetOrderStatus(ctx, req.Pair, orderID, req.Credentials)
	})
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	return shared.ResultFromDetail(req, detail, a.env.Now()), nil
}

// GetOrderStatus implements adapters.Adapter.
func (a *Adapter) GetOrderStatus(ctx context.Context, pair, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	query := url.Values{}
	query.Set("instId", a.NormalizePair(pair))
	query.Set("ordId", orderID)
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/v5/trade/order", query, nil, creds)
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}
	var envelope orderDetailEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return schema.OrderStatusDetail{}, err
	}
	if len(envelope.Data) == 0 {
		return schema.OrderStatusDetail{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("order lookup returned no entries"))
	}
	data := envelope.Data[0]
	price := shared.ParseDecimalOrZero(data.AvgPx)
	qty := shared.ParseDecimalOrZero(data.AccFillSz)
	detail := schema.OrderStatusDetail{
		OrderID:          shared.FirstNonEmpty(data.OrdID, orderID),
		Status:           mapStatus(data.State),
		RawStatus:        data.State,
		ExecutedPrice:    price,
		ExecutedQuantity: qty,
		ExecutedValue:    price.Mul(qty),
		// OKX reports fees as negative charges.
		Fee: shared.ParseDecimalOrZero(data.Fee).Abs(),
	}
	return detail, nil
}

// GetBalances implements adapters.Adapter from the unified trading account.
func (a *Adapter) GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/v5/account/balance", nil, nil, creds)
	if err != nil {
		return nil, err
	}
	var envelope balanceEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return nil, err
	}
	var out []schema.BalanceSnapshot
	for _, account := range envelope.Data {
		for _, entry := range account.Details {
			available := shared.ParseDecimalOrZero(entry.AvailBal)
			frozen := shared.ParseDecimalOrZero(entry.FrozenBal)
			if available.IsZero() && frozen.IsZero() {
				continue
			}
			out = append(out, schema.NewBalanceSnapshot(strings.ToUpper(entry.Ccy), available, frozen, decimal.Decimal{}))
		}
	}
	return out, nil
}

// FetchPrice implements adapters.Adapter using the public ticker.
func (a *Adapter) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("instId", a.NormalizePair(pair))
	endpoint := a.env.URL("/api/v5/market/ticker", query)
	resp, err := a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	var envelope tickerEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return decimal.Decimal{}, err
	}
	if len(envelope.Data) == 0 {
		return decimal.Decimal{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("ticker returned no entries"))
	}
	return shared.ParseDecimal(venue, "last", envelope.Data[0].Last)
}

func (a *Adapter) signedCall(ctx context.Context, method, path string, query url.Values, body []byte, creds schema.Credentials) (transport.Response, error) {
	return a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		timestamp := a.env.Now().UTC().Format(timestampLayout)
		encoded := ""
		if len(query) > 0 {
			encoded = query.Encode()
		}
		material, err := a.signer.Sign(sign.Request{
			Method:    method,
			Path:      path,
			Query:     encoded,
			Body:      string(body),
			Timestamp: timestamp,
		}, creds)
		if err != nil {
			return nil, err
		}
		endpoint := strings.TrimRight(a.env.BaseURL, "/") + path
		if encoded != "" {
			endpoint += "?" + encoded
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range material.Headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (a *Adapter) mapEnvelope(resp transport.Response, v interface{ envelope() (string, string) }) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	if err := shared.DecodeJSON(venue, resp.Body, v); err != nil {
		return err
	}
	code, msg := v.envelope()
	if code != "0" {
		opts := []errs.Option{
			errs.WithRawCode(code),
			errs.WithRawMessage(msg),
		}
		if resp.StatusCode >= http.StatusBadRequest {
			opts = append(opts, errs.WithHTTP(resp.StatusCode))
		}
		return errs.New(venue, errs.CodeExchangeRejected, opts...)
	}
	return nil
}

func mapStatus(state string) schema.OrderStatus {
	switch state {
	case "live":
		return schema.StatusSubmitted
	case "partially_filled":
		return schema.StatusPartiallyFilled
	case "filled":
		return schema.StatusFilled
	case "canceled", "mmp_canceled":
		return schema.StatusCancelled
	default:
		return schema.StatusUnknown
	}
}

func clientOrderID(req schema.OrderRequest) string {
	if req.ClientOrderID != "" {
		return req.ClientOrderID
	}
	// OKX client order identifiers are alphanumeric only.
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
