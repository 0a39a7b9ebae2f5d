// Package luno adapts Luno spot trading: HTTP basic auth, concatenated
// upper-case pairs with the XBT spelling for Bitcoin, and form-encoded
// market orders sized by counter (buy) or base (sell) volume. Submissions
// are trusted instantly and reported as estimated fills.
package luno

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/confirm"
	"github.com/tradewire/execgate/internal/pairs"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/sign"
	"github.com/tradewire/execgate/internal/transport"
)

const venue = "luno"

// takerFee is the highest tier taker rate, used for estimated fills.
const takerFee = "0.001"

// Adapter implements the Luno venue adapter.
type Adapter struct {
	env    *shared.Env
	policy confirm.Policy
	signer sign.Basic
}

// New constructs the adapter.
func New(env *shared.Env) *Adapter {
	fallback, _ := decimal.NewFromString(takerFee)
	return &Adapter{
		env:    env,
		policy: confirm.TrustInstant(env.Fee(fallback)),
		signer: sign.Basic{Venue: venue},
	}
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string { return venue }

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	return pairs.Normalize(venue, pair)
}

// PlaceMarketBuy implements adapters.Adapter. Buys are sized by counter
// (quote) volume, matching the notional sizing contract.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	form := url.Values{}
	form.Set("pair", a.NormalizePair(req.Pair))
	form.Set("type", "BUY")
	form.Set("counter_volume", req.Sizing.Amount.String())
	return a.submit(ctx, req, form)
}

// PlaceMarketSell implements adapters.Adapter. Sells are sized by base volume.
func (a *Adapter) PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	form := url.Values{}
	form.Set("pair", a.NormalizePair(req.Pair))
	form.Set("type", "SELL")
	form.Set("base_volume", req.Sizing.Amount.String())
	return a.submit(ctx, req, form)
}

func (a *Adapter) submit(ctx context.Context, req schema.OrderRequest, form url.Values) (schema.OrderResult, error) {
	if req.ClientOrderID != "" {
		form.Set("client_order_id", req.ClientOrderID)
	}
	resp, err := a.signedCall(ctx, http.MethodPost, "/api/1/marketorder", nil, form, req.Credentials)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	var submitted marketOrderResponse
	if err := a.decode(resp, &submitted); err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	if strings.TrimSpace(submitted.OrderID) == "" {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "order_id"),
			errs.WithMessage("submission response missing order identifier")), req.Side, req.Pair)
	}

	price, err := a.FetchPrice(ctx, req.Pair)
	if err != nil {
		// The order is already placed; an estimate without a price beats a
		// failure that loses the order identifier.
		price = decimal.Decimal{}
	}
	_, quote, _ := pairs.Split(req.Pair)
	result := confirm.EstimateFill(confirm.EstimateInput{
		OrderID:   submitted.OrderID,
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

// GetOrderStatus implements adapters.Adapter.
func (a *Adapter) GetOrderStatus(ctx context.Context, _ string, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/1/orders/"+url.PathEscape(orderID), nil, nil, creds)
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}
	var order orderResponse
	if err := a.decode(resp, &order); err != nil {
		return schema.OrderStatusDetail{}, err
	}

	qty := shared.ParseDecimalOrZero(order.Base)
	value := shared.ParseDecimalOrZero(order.Counter)
	detail := schema.OrderStatusDetail{
		OrderID:          shared.FirstNonEmpty(order.OrderID, orderID),
		Status:           mapState(order.State, qty),
		RawStatus:        order.State,
		ExecutedQuantity: qty,
		ExecutedValue:    value,
		Fee:              shared.ParseDecimalOrZero(order.FeeCounter),
	}
	if qty.IsPositive() {
		detail.ExecutedPrice = value.Div(qty)
	}
	return detail, nil
}

// GetBalances implements adapters.Adapter.
func (a *Adapter) GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/1/balance", nil, nil, creds)
	if err != nil {
		return nil, err
	}
	var balances balanceResponse
	if err := a.decode(resp, &balances); err != nil {
		return nil, err
	}
	out := make([]schema.BalanceSnapshot, 0, len(balances.Balance))
	for _, entry := range balances.Balance {
		total := shared.ParseDecimalOrZero(entry.Balance)
		reserved := shared.ParseDecimalOrZero(entry.Reserved)
		if total.IsZero() && reserved.IsZero() {
			continue
		}
		out = append(out, schema.NewBalanceSnapshot(canonicalAsset(entry.Asset), total.Sub(reserved), reserved, total))
	}
	return out, nil
}

// FetchPrice implements adapters.Adapter using the public ticker.
func (a *Adapter) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("pair", a.NormalizePair(pair))
	endpoint := a.env.URL("/api/1/ticker", query)
	resp, err := a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	var ticker tickerResponse
	if err := a.decode(resp, &ticker); err != nil {
		return decimal.Decimal{}, err
	}
	return shared.ParseDecimal(venue, "last_trade", ticker.LastTrade)
}

func (a *Adapter) signedCall(ctx context.Context, method, path string, query url.Values, form url.Values, creds schema.Credentials) (transport.Response, error) {
	return a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		material, err := a.signer.Sign(sign.Request{Method: method, Path: path}, creds)
		if err != nil {
			return nil, err
		}
		endpoint := a.env.URL(path, query)
		var body *strings.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		} else {
			body = strings.NewReader("")
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}
		for k, v := range material.Headers {
			req.Header.Set(k, v)
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		return req, nil
	})
}

func (a *Adapter) decode(resp transport.Response, v any) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if err := shared.DecodeJSON(venue, resp.Body, &apiErr); err == nil && apiErr.ErrorCode != "" {
			return errs.New(venue, errs.CodeExchangeRejected,
				errs.WithHTTP(resp.StatusCode),
				errs.WithRawCode(apiErr.ErrorCode),
				errs.WithRawMessage(apiErr.Error))
		}
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	return shared.DecodeJSON(venue, resp.Body, v)
}

func mapState(state string, executed decimal.Decimal) schema.OrderStatus {
	switch strings.ToUpper(state) {
	case "PENDING":
		if executed.IsPositive() {
			return schema.StatusPartiallyFilled
		}
		return schema.StatusSubmitted
	case "COMPLETE":
		return schema.StatusFilled
	default:
		return schema.StatusUnknown
	}
}

func canonicalAsset(asset string) string {
	upper := strings.ToUpper(asset)
	if upper == "XBT" {
		return "BTC"
	}
	return upper
}
