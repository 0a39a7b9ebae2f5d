// Package binance implements the Binance-family spot adapter. The signing
// scheme and payload shape are shared verbatim by several venues; MEXC reuses
// this implementation with its own options.
package binance

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

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

// Options selects the venue identity and confirmation behaviour for one
// Binance-compatible deployment.
type Options struct {
	Venue     string
	KeyHeader string
	Policy    confirm.Policy
}

// Adapter is a Binance-compatible venue adapter.
type Adapter struct {
	env    *shared.Env
	opts   Options
	signer sign.QueryString
}

// New constructs the adapter.
func New(env *shared.Env, opts Options) *Adapter {
	if opts.KeyHeader == "" {
		opts.KeyHeader = "X-MBX-APIKEY"
	}
	return &Adapter{
		env:    env,
		opts:   opts,
		signer: sign.QueryString{Venue: opts.Venue, KeyHeader: opts.KeyHeader},
	}
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string { return a.opts.Venue }

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	return pairs.Normalize(a.opts.Venue, pair)
}

// PlaceMarketBuy submits a market buy sized by quote notional.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", a.NormalizePair(req.Pair))
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quoteOrderQty", req.Sizing.Amount.String())
	return a.submit(ctx, req, params)
}

// PlaceMarketSell submits a market sell sized by base quantity.
func (a *Adapter) PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", a.NormalizePair(req.Pair))
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", req.Sizing.Amount.String())
	return a.submit(ctx, req, params)
}

func (a *Adapter) submit(ctx context.Context, req schema.OrderRequest, params url.Values) (schema.OrderResult, error) {
	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	params.Set("newClientOrderId", clientOrderID)
	params.Set("newOrderRespType", "FULL")

	resp, err := a.signedCall(ctx, http.MethodPost, "/api/v3/order", params, req.Credentials)
	if err != nil {
		return schema.OrderResult{}, decorate(err, req)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		venueErr := a.classifyError(resp.StatusCode, resp.Body)
		if marketUnavailable(venueErr) {
			return a.limitFallback(ctx, req, params)
		}
		return schema.OrderResult{}, decorate(venueErr, req)
	}

	var order orderResponse
	if err := shared.DecodeJSON(a.opts.Venue, resp.Body, &order); err != nil {
		return schema.OrderResult{}, decorate(err, req)
	}
	orderID := shared.FirstNonEmpty(order.OrderID.String(), order.ClientOrderID)
	if orderID == "" {
		return schema.OrderResult{}, decorate(errs.New(a.opts.Venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "orderId"),
			errs.WithMessage("submission response missing order identifier")), req)
	}

	return a.confirmOrder(ctx, req, orderID, order)
}

// confirmOrder applies the venue's confirmation policy to an accepted order.
// Synchronous deployments read the fills off the submission response; polling
// deployments wait for a terminal status.
func (a *Adapter) confirmOrder(ctx context.Context, req schema.OrderRequest, orderID string, order orderResponse) (schema.OrderResult, error) {
	if a.opts.Policy.Mode == confirm.ModePoll {
		detail, err := confirm.Poll(ctx, a.opts.Venue, orderID, a.opts.Policy, func(ctx context.Context) (schema.OrderStatusDetail, error) {
			return a.GetOrderStatus(ctx, req.Pair, orderID, req.Credentials)
		})
		if err != nil {
			return schema.OrderResult{}, decorate(err, req)
		}
		return shared.ResultFromDetail(req, detail, a.env.Now()), nil
	}
	return a.resultFromOrder(req, orderID, order)
}

// limitFallback retries a temporarily unavailable market once as a marketable
// IOC limit order priced off the current ticker.
func (a *Adapter) limitFallback(ctx context.Context, req schema.OrderRequest, params url.Values) (schema.OrderResult, error) {
	price, err := a.FetchPrice(ctx, req.Pair)
	if err != nil {
		return schema.OrderResult{}, decorate(err, req)
	}
	var limitPrice, quantity decimal.Decimal
	if req.Side == schema.SideBuy {
		limitPrice = price.Mul(decimal.RequireFromString("1.01"))
		quantity = req.Sizing.Amount.Div(limitPrice).Truncate(8)
	} else {
		limitPrice = price.Mul(decimal.RequireFromString("0.99"))
		quantity = req.Sizing.Amount
	}
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "IOC")
	params.Set("price", limitPrice.Truncate(8).String())
	params.Set("quantity", quantity.String())
	params.Del("quoteOrderQty")

	resp, err := a.signedCall(ctx, http.MethodPost, "/api/v3/order", params, req.Credentials)
	if err != nil {
		return schema.OrderResult{}, decorate(err, req)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return schema.OrderResult{}, decorate(a.classifyError(resp.StatusCode, resp.Body), req)
	}
	var order orderResponse
	if err := shared.DecodeJSON(a.opts.Venue, resp.Body, &order); err != nil {
		return schema.OrderResult{}, decorate(err, req)
	}
	orderID := shared.FirstNonEmpty(order.OrderID.String(), order.ClientOrderID)
	if orderID == "" {
		return schema.OrderResult{}, decorate(errs.New(a.opts.Venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "orderId"),
			errs.WithMessage("submission response missing order identifier")), req)
	}
	return a.confirmOrder(ctx, req, orderID, order)
}

// GetOrderStatus implements adapters.Adapter.
func (a *Adapter) GetOrderStatus(ctx context.Context, pair, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	params := url.Values{}
	params.Set("symbol", a.NormalizePair(pair))
	params.Set("orderId", orderID)
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/v3/order", params, creds)
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return schema.OrderStatusDetail{}, a.classifyError(resp.StatusCode, resp.Body)
	}
	var order orderResponse
	if err := shared.DecodeJSON(a.opts.Venue, resp.Body, &order); err != nil {
		return schema.OrderStatusDetail{}, err
	}
	executedQty := shared.ParseDecimalOrZero(order.ExecutedQty)
	executedValue := shared.ParseDecimalOrZero(shared.FirstNonEmpty(order.CummulativeQuoteQty, order.CumQuote))
	detail := schema.OrderStatusDetail{
		OrderID:          shared.FirstNonEmpty(order.OrderID.String(), orderID),
		Status:           mapStatus(order.Status),
		RawStatus:        order.Status,
		ExecutedQuantity: executedQty,
		ExecutedValue:    executedValue,
	}
	if executedQty.IsPositive() {
		detail.ExecutedPrice = executedValue.Div(executedQty)
	}
	return detail, nil
}

// GetBalances implements adapters.Adapter.
func (a *Adapter) GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	resp, err := a.signedCall(ctx, http.MethodGet, "/api/v3/account", url.Values{}, creds)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, a.classifyError(resp.StatusCode, resp.Body)
	}
	var account accountResponse
	if err := shared.DecodeJSON(a.opts.Venue, resp.Body, &account); err != nil {
		return nil, err
	}
	out := make([]schema.BalanceSnapshot, 0, len(account.Balances))
	for _, b := range account.Balances {
		free := shared.ParseDecimalOrZero(b.Free)
		locked := shared.ParseDecimalOrZero(b.Locked)
		if free.IsZero() && locked.IsZero() {
			continue
		}
		out = append(out, schema.NewBalanceSnapshot(strings.ToUpper(b.Asset), free, locked, decimal.Zero))
	}
	return out, nil
}

// FetchPrice implements adapters.Adapter.
func (a *Adapter) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", a.NormalizePair(pair))
	endpoint := a.env.URL("/api/v3/ticker/price", params)
	resp, err := a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decimal.Decimal{}, a.classifyError(resp.StatusCode, resp.Body)
	}
	var ticker tickerResponse
	if err := shared.DecodeJSON(a.opts.Venue, resp.Body, &ticker); err != nil {
		return decimal.Decimal{}, err
	}
	return shared.ParseDecimal(a.opts.Venue, "price", ticker.Price)
}

// signedCall signs and issues one authenticated request. The timestamp and
// signature are recomputed for every retry attempt so a backoff wait cannot
// push the request outside the venue's recv window.
func (a *Adapter) signedCall(ctx context.Context, method, path string, params url.Values, creds schema.Credentials) (transport.Response, error) {
	return a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		attempt := url.Values{}
		for k, vs := range params {
			attempt[k] = vs
		}
		attempt.Set("timestamp", strconv.FormatInt(a.env.Now().UTC().UnixMilli(), 10))
		encoded := attempt.Encode()
		material, err := a.signer.Sign(sign.Request{Method: method, Path: path, Query: encoded}, creds)
		if err != nil {
			return nil, err
		}
		for k := range material.Query {
			encoded += "&" + k + "=" + url.QueryEscape(material.Query.Get(k))
		}
		endpoint := strings.TrimRight(a.env.BaseURL, "/") + path + "?" + encoded
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range material.Headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

func (a *Adapter) classifyError(status int, body []byte) error {
	var apiErr apiError
	if err := shared.DecodeJSON(a.opts.Venue, body, &apiErr); err == nil && apiErr.Msg != "" {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return errs.New(a.opts.Venue, errs.CodeAuth,
				errs.WithHTTP(status),
				errs.WithRawCode(strconv.Itoa(apiErr.Code)),
				errs.WithRawMessage(apiErr.Msg))
		}
		return errs.New(a.opts.Venue, errs.CodeExchangeRejected,
			errs.WithHTTP(status),
			errs.WithRawCode(strconv.Itoa(apiErr.Code)),
			errs.WithRawMessage(apiErr.Msg))
	}
	return shared.ClassifyHTTP(a.opts.Venue, status, body)
}

func (a *Adapter) resultFromOrder(req schema.OrderRequest, orderID string, order orderResponse) (schema.OrderResult, error) {
	executedQty := shared.ParseDecimalOrZero(order.ExecutedQty)
	executedValue := shared.ParseDecimalOrZero(shared.FirstNonEmpty(order.CummulativeQuoteQty, order.CumQuote))

	var price decimal.Decimal
	if executedQty.IsPositive() && executedValue.IsPositive() {
		price = executedValue.Div(executedQty)
	} else if len(order.Fills) > 0 {
		price = shared.ParseDecimalOrZero(order.Fills[0].Price)
	}

	fee := decimal.Zero
	feeCurrency := ""
	for _, fill := range order.Fills {
		fee = fee.Add(shared.ParseDecimalOrZero(fill.Commission))
		if feeCurrency == "" {
			feeCurrency = fill.CommissionAsset
		}
	}

	return schema.OrderResult{
		OrderID:          orderID,
		Side:             req.Side,
		Pair:             req.Pair,
		ExecutedPrice:    price,
		ExecutedQuantity: executedQty,
		ExecutedValue:    executedValue,
		Fee:              fee,
		FeeCurrency:      feeCurrency,
		Status:           mapStatus(order.Status),
		Timestamp:        a.env.Now().UTC(),
	}, nil
}

func mapStatus(raw string) schema.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "NEW", "PENDING_NEW", "ACCEPTED":
		return schema.StatusSubmitted
	case "PARTIALLY_FILLED":
		return schema.StatusPartiallyFilled
	case "FILLED":
		return schema.StatusFilled
	case "CANCELED", "PENDING_CANCEL":
		return schema.StatusCancelled
	case "REJECTED", "EXPIRED", "EXPIRED_IN_MATCH":
		return schema.StatusFailed
	default:
		return schema.StatusUnknown
	}
}

func marketUnavailable(err error) bool {
	var envelope *errs.E
	if !errors.As(err, &envelope) {
		return false
	}
	msg := strings.ToLower(envelope.RawMsg)
	return strings.Contains(msg, "market is closed") ||
		strings.Contains(msg, "trading is not available") ||
		strings.Contains(msg, "market orders are not supported")
}

func decorate(err error, req schema.OrderRequest) error {
	return shared.Decorate(err, req.Side, req.Pair)
}
