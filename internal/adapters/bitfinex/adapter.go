// Package bitfinex adapts Bitfinex spot trading. The v2 API signs
// "/api" ++ path ++ nonce ++ body with HMAC-SHA384 hex, speaks positional
// JSON arrays instead of objects, and sizes market orders by signed base
// amount. Submissions are trusted instantly and reported as estimated fills.
package bitfinex

import (
	"bytes"
	"context"
	"net/http"
	"strings"

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

const venue = "bitfinex"

// takerFee is the standard taker rate used for estimated fills.
const takerFee = "0.002"

const amountPrecision = 8

// Adapter implements the Bitfinex venue adapter.
type Adapter struct {
	env    *shared.Env
	policy confirm.Policy
	signer sign.TimestampConcat
}

// New constructs the adapter.
func New(env *shared.Env) *Adapter {
	fallback, _ := decimal.NewFromString(takerFee)
	return &Adapter{
		env:    env,
		policy: confirm.TrustInstant(env.Fee(fallback)),
		signer: sign.TimestampConcat{
			Venue:      venue,
			Alg:        sign.SHA384,
			Enc:        sign.Hex,
			KeyHeader:  "bfx-apikey",
			SignHeader: "bfx-signature",
			// The nonce rides in the timestamp slot.
			TimestampHeader: "bfx-nonce",
			Payload: func(req sign.Request) string {
				return "/api" + req.Path + req.Nonce + req.Body
			},
			TimestampValue: func(req sign.Request) string { return req.Nonce },
		},
	}
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string { return venue }

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	return pairs.Normalize(venue, pair)
}

// PlaceMarketBuy implements adapters.Adapter. The order amount is a base
// quantity, so the quote notional is converted at the live ticker price; the
// same price seeds the estimated fill.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	price, err := a.FetchPrice(ctx, req.Pair)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	if !price.IsPositive() {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("ticker price is not positive")), req.Side, req.Pair)
	}
	amount := req.Sizing.Amount.Div(price).Truncate(amountPrecision)
	return a.submit(ctx, req, amount, price)
}

// PlaceMarketSell implements adapters.Adapter. Sells are negative amounts.
func (a *Adapter) PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	price, err := a.FetchPrice(ctx, req.Pair)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	return a.submit(ctx, req, req.Sizing.Amount.Neg(), price)
}

func (a *Adapter) submit(ctx context.Context, req schema.OrderRequest, amount, price decimal.Decimal) (schema.OrderResult, error) {
	payload := map[string]any{
		"type":   "EXCHANGE MARKET",
		"symbol": a.NormalizePair(req.Pair),
		"amount": amount.String(),
		"cid":    clientID(req),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return schema.OrderResult{}, err
	}
	resp, err := a.signedCall(ctx, "/v2/auth/w/order/submit", body, req.Credentials)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	var notification []json.RawMessage
	if err := a.decode(resp, &notification); err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	orderID, err := submittedOrderID(notification)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}

	_, quote, _ := pairs.Split(req.Pair)
	result := confirm.EstimateFill(confirm.EstimateInput{
		OrderID:   orderID,
		Side:      req.Side,
		Pair:      req.Pair,
		Sizing:    req.Sizing,
		Price:     price,
		TakerFee:  a.policy.TakerFee,
		Quote:     quote,
		Timestamp: a.env.Now(),
	})
	return result, nil
}

// GetOrderStatus implements adapters.Adapter. Active orders are checked
// first, then the order history.
func (a *Adapter) GetOrderStatus(ctx context.Context, _ string, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	id, err := orderIDNumber(orderID)
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}
	body, err := json.Marshal(map[string]any{"id": []int64{id}})
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}

	for _, path := range []string{"/v2/auth/r/orders", "/v2/auth/r/orders/hist"} {
		resp, err := a.signedCall(ctx, path, body, creds)
		if err != nil {
			return schema.OrderStatusDetail{}, err
		}
		var orders [][]json.RawMessage
		if err := a.decode(resp, &orders); err != nil {
			return schema.OrderStatusDetail{}, err
		}
		if len(orders) > 0 {
			return orderDetail(orderID, orders[0])
		}
	}
	return schema.OrderStatusDetail{}, errs.New(venue, errs.CodeUnknownResponse,
		errs.WithDetail("order_id", orderID),
		errs.WithMessage("order not found in active or historical orders"))
}

// GetBalances implements adapters.Adapter from the exchange wallets.
func (a *Adapter) GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	resp, err := a.signedCall(ctx, "/v2/auth/r/wallets", []byte("{}"), creds)
	if err != nil {
		return nil, err
	}
	var wallets [][]json.RawMessage
	if err := a.decode(resp, &wallets); err != nil {
		return nil, err
	}
	var out []schema.BalanceSnapshot
	for _, wallet := range wallets {
		if len(wallet) < 5 {
			continue
		}
		if asString(wallet[0]) != "exchange" {
			continue
		}
		total := asDecimal(wallet[2])
		available := asDecimal(wallet[4])
		if total.IsZero() && available.IsZero() {
			continue
		}
		if !available.IsPositive() {
			available = total
		}
		currency := canonicalCurrency(asString(wallet[1]))
		out = append(out, schema.NewBalanceSnapshot(currency, available, total.Sub(available), total))
	}
	return out, nil
}

// FetchPrice implements adapters.Adapter. The public ticker is a positional
// array with the last price at index 6.
func (a *Adapter) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	endpoint := a.env.URL("/v2/ticker/"+a.NormalizePair(pair), nil)
	resp, err := a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	var ticker []json.RawMessage
	if err := a.decode(resp, &ticker); err != nil {
		return decimal.Decimal{}, err
	}
	if len(ticker) < 7 {
		return decimal.Decimal{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("ticker array shorter than expected"))
	}
	last := asDecimal(ticker[6])
	if last.IsZero() {
		return decimal.Decimal{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "last_price"),
			errs.WithMessage("ticker carried no last price"))
	}
	return last, nil
}

func (a *Adapter) signedCall(ctx context.Context, path string, body []byte, creds schema.Credentials) (transport.Response, error) {
	return a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		nonce := a.env.NextNonce()
		material, err := a.signer.Sign(sign.Request{
			Method: http.MethodPost,
			Path:   path,
			Body:   string(body),
			Nonce:  nonce,
		}, creds)
		if err != nil {
			return nil, err
		}
		endpoint := strings.TrimRight(a.env.BaseURL, "/") + path
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
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

// decode handles Bitfinex's ["error", code, "message"] failure shape before
// decoding the expected payload.
func (a *Adapter) decode(resp transport.Response, v any) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(resp.Body, &arr); err == nil && len(arr) >= 3 && asString(arr[0]) == "error" {
		return errs.New(venue, errs.CodeExchangeRejected,
			errs.WithHTTP(resp.StatusCode),
			errs.WithRawCode(asString(arr[1])),
			errs.WithRawMessage(asString(arr[2])))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	return shared.DecodeJSON(venue, resp.Body, v)
}

// submittedOrderID digs the new order's identifier out of the submit
// notification: [mts, type, msgId, null, [[id, ...]], code, status, text].
func submittedOrderID(notification []json.RawMessage) (string, error) {
	if len(notification) >= 7 {
		status := asString(notification[6])
		if status != "" && !strings.EqualFold(status, "SUCCESS") {
			text := ""
			if len(notification) >= 8 {
				text = asString(notification[7])
			}
			return "", errs.New(venue, errs.CodeExchangeRejected,
				errs.WithRawCode(status),
				errs.WithRawMessage(text))
		}
	}
	if len(notification) >= 5 {
		var orders [][]json.RawMessage
		if err := json.Unmarshal(notification[4], &orders); err == nil && len(orders) > 0 && len(orders[0]) > 0 {
			if id := asString(orders[0][0]); id != "" {
				return id, nil
			}
		}
	}
	return "", errs.New(venue, errs.CodeUnknownResponse,
		errs.WithMessage("submit notification missing order identifier"))
}

// orderDetail maps a positional order array. Index 13 is the status string,
// index 16 the average price, and index 7-6 give original and remaining
// amounts.
func orderDetail(orderID string, order []json.RawMessage) (schema.OrderStatusDetail, error) {
	if len(order) < 17 {
		return schema.OrderStatusDetail{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("order array shorter than expected"))
	}
	raw := asString(order[13])
	original := asDecimal(order[7]).Abs()
	remaining := asDecimal(order[6]).Abs()
	executed := original.Sub(remaining)
	price := asDecimal(order[16])

	detail := schema.OrderStatusDetail{
		OrderID:          orderID,
		Status:           mapStatus(raw, executed),
		RawStatus:        raw,
		ExecutedPrice:    price,
		ExecutedQuantity: executed,
		ExecutedValue:    price.Mul(executed),
	}
	return detail, nil
}

func mapStatus(raw string, executed decimal.Decimal) schema.OrderStatus {
	upper := strings.ToUpper(raw)
	switch {
	case strings.HasPrefix(upper, "EXECUTED"):
		return schema.StatusFilled
	case strings.HasPrefix(upper, "PARTIALLY FILLED"):
		return schema.StatusPartiallyFilled
	case strings.HasPrefix(upper, "CANCELED"):
		return schema.StatusCancelled
	case strings.HasPrefix(upper, "ACTIVE"):
		if executed.IsPositive() {
			return schema.StatusPartiallyFilled
		}
		return schema.StatusSubmitted
	default:
		return schema.StatusUnknown
	}
}

func asString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

func asDecimal(raw json.RawMessage) decimal.Decimal {
	return shared.ParseDecimalOrZero(asString(raw))
}

// canonicalCurrency undoes Bitfinex wallet spellings so balances use the
// same codes the rest of the gateway does.
func canonicalCurrency(currency string) string {
	upper := strings.ToUpper(currency)
	if upper == "UST" {
		return "USDT"
	}
	return upper
}

func orderIDNumber(orderID string) (int64, error) {
	var id int64
	if err := json.Unmarshal([]byte(orderID), &id); err != nil {
		return 0, errs.New(venue, errs.CodeValidation,
			errs.WithDetail("order_id", orderID),
			errs.WithMessage("order identifier must be numeric"))
	}
	return id, nil
}

func clientID(req schema.OrderRequest) int64 {
	if req.ClientOrderID != "" {
		var id int64
		if err := json.Unmarshal([]byte(req.ClientOrderID), &id); err == nil {
			return id
		}
	}
	return int64(uuid.New().ID())
}
