// Package kucoin adapts KuCoin spot trading: HMAC-SHA256/base64 signatures
// with an additionally signed passphrase (API key version 2), hyphenated
// symbols, and a polling confirmation because market submissions return only
// an order identifier.
package kucoin

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
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

const venue = "kucoin"

const successCode = "200000"

// Adapter implements the KuCoin venue adapter.
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
			KeyHeader:        "KC-API-KEY",
			SignHeader:       "KC-API-SIGN",
			TimestampHeader:  "KC-API-TIMESTAMP",
			PassphraseHeader: "KC-API-PASSPHRASE",
			SignPassphrase:   true,
			ExtraHeaders:     map[string]string{"KC-API-KEY-VERSION": "2"},
		},
	}
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string { return venue }

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	return pairs.Normalize(venue, pair)
}

// PlaceMarketBuy implements adapters.Adapter.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	payload := orderPayload{
		ClientOid: clientOid(req),
		Side:      "buy",
		Symbol:    a.NormalizePair(req.Pair),
		Type:      "market",
		Funds:     req.Sizing.Amount.String(),
	}
	return a.submit(ctx, req, payload)
}

// PlaceMarketSell implements adapters.Adapter.
func (a *Adapter) PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	payload := orderPayload{
		ClientOid: clientOid(req),
		Side:      "sell",
		Symbol:    a.NormalizePair(req.Pair),
		Type:      "market",
		Size:      req.Sizing.Amount.String(),
	}
	return a.submit(ctx, req, payload)
}

func (a *Adapter) submit(ctx context.Context, req schema.OrderRequest, payload orderPayload) (schema.OrderResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return schema.OrderResult{}, err
	}
	resp, err := a.signedCall(ctx, http.MethodPost, "/api/v1/orders", nil, body, req.Credentials)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	var envelope submitEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	orderID := strings.TrimSpace(envelope.Data.OrderID)
	if orderID == "" {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "orderId"),
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

// GetOrderStatus implements adapters.Adapter. KuCoin has no status string:
// the state is derived from the isActive/cancelExist flags and the dealt
// size, which is also how partial fills are detected.
func (a *Adapter) GetOrderStatus(ctx context.Context, _ string, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, nil, creds)
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}
	var envelope orderDetailEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return schema.OrderStatusDetail{}, err
	}
	data := envelope.Data
	dealSize := shared.ParseDecimalOrZero(data.DealSize)
	dealFunds := shared.ParseDecimalOrZero(data.DealFunds)

	status := schema.StatusSubmitted
	switch {
	case data.IsActive && dealSize.IsPositive():
		status = schema.StatusPartiallyFilled
	case data.IsActive:
		status = schema.StatusSubmitted
	case data.CancelExist && !dealSize.IsPositive():
		status = schema.StatusCancelled
	default:
		status = schema.StatusFilled
	}

	detail := schema.OrderStatusDetail{
		OrderID:          shared.FirstNonEmpty(data.ID, orderID),
		Status:           status,
		RawStatus:        rawStatus(data),
		ExecutedQuantity: dealSize,
		ExecutedValue:    dealFunds,
		Fee:              shared.ParseDecimalOrZero(data.Fee),
	}
	if dealSize.IsPositive() {
		detail.ExecutedPrice = dealFunds.Div(dealSize)
	}
	return detail, nil
}

// GetBalances implements adapters.Adapter, reading the trade accounts.
func (a *Adapter) GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	query := url.Values{}
	query.Set("type", "trade")
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/v1/accounts", query, nil, creds)
	if err != nil {
		return nil, err
	}
	var envelope accountsEnvelope
	if err := a.mapEnvelope(resp, &envelope); err != nil {
		return nil, err
	}
	out := make([]schema.BalanceSnapshot, 0, len(envelope.Data))
	for _, entry := range envelope.Data {
		available := shared.ParseDecimalOrZero(entry.Available)
		holds := shared.ParseDecimalOrZero(entry.Holds)
		if available.IsZero() && holds.IsZero() {
			continue
		}
		out = append(out, schema.NewBalanceSnapshot(strings.ToUpper(entry.Currency), available, holds, shared.ParseDecimalOrZero(entry.Balance)))
	}
	return out, nil
}

// FetchPrice implements adapters.Adapter using the public level-1 ticker.
func (a *Adapter) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("symbol", a.NormalizePair(pair))
	endpoint := a.env.URL("/api/v1/market/orderbook/level1", query)
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
	return shared.ParseDecimal(venue, "price", envelope.Data.Price)
}

func (a *Adapter) signedCall(ctx context.Context, method, path string, query url.Values, body []byte, creds schema.Credentials) (transport.Response, error) {
	return a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		timestamp := strconv.FormatInt(a.env.Now().UTC().UnixMilli(), 10)
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
		var reader *bytes.Reader
		if len(body) > 0 {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
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

// mapEnvelope decodes a KuCoin response and converts non-success codes into
// taxonomy errors.
func (a *Adapter) mapEnvelope(resp transport.Response, v interface{ envelope() (string, string) }) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	if err := shared.DecodeJSON(venue, resp.Body, v); err != nil {
		return err
	}
	code, msg := v.envelope()
	if code != successCode {
		if resp.StatusCode >= http.StatusBadRequest {
			return errs.New(venue, errs.CodeExchangeRejected,
				errs.WithHTTP(resp.StatusCode),
				errs.WithRawCode(code),
				errs.WithRawMessage(msg))
		}
		return errs.New(venue, errs.CodeExchangeRejected,
			errs.WithRawCode(code),
			errs.WithRawMessage(msg))
	}
	return nil
}

func clientOid(req schema.OrderRequest) string {
	if req.ClientOrderID != "" {
		return req.ClientOrderID
	}
	return uuid.NewString()
}

func rawStatus(data orderDetail) string {
	switch {
	case data.IsActive:
		return "active"
	case data.CancelExist:
		return "cancelled"
	default:
		return "done"
	}
}
