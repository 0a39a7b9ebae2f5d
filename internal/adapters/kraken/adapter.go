// Package kraken adapts Kraken spot trading: nonce-digest signatures over
// form-encoded private calls, asset renames (XBT, XDG), and volume-only
// market orders, so buys first convert the quote notional into a base volume
// at the current ticker price.
package kraken

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/confirm"
	"github.com/tradewire/execgate/internal/pairs"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/sign"
	"github.com/tradewire/execgate/internal/transport"
)

const venue = "kraken"

// volumePrecision bounds the base volume computed for notional buys.
const volumePrecision = 8

// Adapter implements the Kraken venue adapter.
type Adapter struct {
	env    *shared.Env
	policy confirm.Policy
	signer sign.NonceDigest
}

// New constructs the adapter.
func New(env *shared.Env) *Adapter {
	return &Adapter{
		env:    env,
		policy: confirm.PollEvery(10, time.Second),
		signer: sign.NonceDigest{
			Venue:      venue,
			KeyHeader:  "API-Key",
			SignHeader: "API-Sign",
		},
	}
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string { return venue }

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	return pairs.Normalize(venue, pair)
}

// PlaceMarketBuy implements adapters.Adapter. AddOrder only accepts a base
// volume, so the quote notional is converted at the live ticker price first.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	price, err := a.FetchPrice(ctx, req.Pair)
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	if !price.IsPositive() {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithMessage("ticker price is not positive")), req.Side, req.Pair)
	}
	volume := req.Sizing.Amount.Div(price).Truncate(volumePrecision)
	return a.submit(ctx, req, "buy", volume)
}

// PlaceMarketSell implements adapters.Adapter.
func (a *Adapter) PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	return a.submit(ctx, req, "sell", req.Sizing.Amount)
}

func (a *Adapter) submit(ctx context.Context, req schema.OrderRequest, side string, volume decimal.Decimal) (schema.OrderResult, error) {
	form := url.Values{}
	form.Set("pair", a.NormalizePair(req.Pair))
	form.Set("type", side)
	form.Set("ordertype", "market")
	form.Set("volume", volume.String())
	if req.ClientOrderID != "" {
		form.Set("cl_ord_id", req.ClientOrderID)
	}

	var result addOrderResult
	if err := a.privateCall(ctx, "/0/private/AddOrder", form, req.Credentials, &result); err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	if len(result.TxID) == 0 || strings.TrimSpace(result.TxID[0]) == "" {
		return schema.OrderResult{}, shared.Decorate(errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", "txid"),
			errs.WithMessage("submission response missing transaction identifier")), req.Side, req.Pair)
	}
	orderID := result.TxID[0]

	detail, err := confirm.Poll(ctx, venue, orderID, a.policy, func(ctx context.Context) (schema.OrderStatusDetail, error) {
		return a.GetOrderStatus(ctx, req.Pair, orderID, req.Credentials)
	})
	if err != nil {
		return schema.OrderResult{}, shared.Decorate(err, req.Side, req.Pair)
	}
	return shared.ResultFromDetail(req, detail, a.env.Now()), nil
}

// GetOrderStatus implements adapters.Adapter via QueryOrders.
func (a *Adapter) GetOrderStatus(ctx context.Context, _ string, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	form := url.Values{}
	form.Set("txid", orderID)

	var result map[string]orderInfo
	if err := a.privateCall(ctx, "/0/private/QueryOrders", form, creds, &result); err != nil {
		return schema.OrderStatusDetail{}, err
	}
	info, ok := result[orderID]
	if !ok {
		return schema.OrderStatusDetail{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("order_id", orderID),
			errs.WithMessage("order lookup response missing the queried order"))
	}

	qty := shared.ParseDecimalOrZero(info.VolExec)
	cost := shared.ParseDecimalOrZero(info.Cost)
	detail := schema.OrderStatusDetail{
		OrderID:          orderID,
		Status:           mapStatus(info.Status, qty),
		RawStatus:        info.Status,
		ExecutedPrice:    shared.ParseDecimalOrZero(info.Price),
		ExecutedQuantity: qty,
		ExecutedValue:    cost,
		Fee:              shared.ParseDecimalOrZero(info.Fee),
		Reason:           info.Reason,
	}
	if detail.ExecutedPrice.IsZero() && qty.IsPositive() {
		detail.ExecutedPrice = cost.Div(qty)
	}
	return detail, nil
}

// GetBalances implements adapters.Adapter. The Balance endpoint reports only
// totals, so the whole amount is treated as available.
func (a *Adapter) GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	var result map[string]string
	if err := a.privateCall(ctx, "/0/private/Balance", url.Values{}, creds, &result); err != nil {
		return nil, err
	}
	out := make([]schema.BalanceSnapshot, 0, len(result))
	for asset, amount := range result {
		total := shared.ParseDecimalOrZero(amount)
		if total.IsZero() {
			continue
		}
		out = append(out, schema.NewBalanceSnapshot(canonicalAsset(asset), total, decimal.Decimal{}, total))
	}
	return out, nil
}

// FetchPrice implements adapters.Adapter using the public ticker. Kraken keys
// the result by its own pair spelling, so the single entry is taken by
// iteration rather than by name.
func (a *Adapter) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("pair", a.NormalizePair(pair))
	endpoint := a.env.URL("/0/public/Ticker", query)
	resp, err := a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	var result map[string]tickerEntry
	envelope := apiEnvelope{Result: &result}
	if err := a.decode(resp, &envelope); err != nil {
		return decimal.Decimal{}, err
	}
	for _, entry := range result {
		if len(entry.Close) == 0 {
			break
		}
		return shared.ParseDecimal(venue, "c[0]", entry.Close[0])
	}
	return decimal.Decimal{}, errs.New(venue, errs.CodeUnknownResponse,
		errs.WithMessage("ticker returned no close price"))
}

// privateCall runs a signed POST against a private endpoint. The nonce is
// regenerated inside the builder so every retry attempt signs fresh material.
func (a *Adapter) privateCall(ctx context.Context, path string, form url.Values, creds schema.Credentials, result any) error {
	resp, err := a.env.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		nonce := a.env.NextNonce()
		form.Set("nonce", nonce)
		body := form.Encode()
		material, err := a.signer.Sign(sign.Request{
			Method: http.MethodPost,
			Path:   path,
			Body:   body,
			Nonce:  nonce,
		}, creds)
		if err != nil {
			return nil, err
		}
		endpoint := strings.TrimRight(a.env.BaseURL, "/") + path
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range material.Headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return err
	}
	envelope := apiEnvelope{Result: result}
	return a.decode(resp, &envelope)
}

// decode unwraps Kraken's error-array envelope.
func (a *Adapter) decode(resp transport.Response, envelope *apiEnvelope) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return shared.ClassifyHTTP(venue, resp.StatusCode, resp.Body)
	}
	if err := shared.DecodeJSON(venue, resp.Body, envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		raw := envelope.Errors[0]
		code := errs.CodeExchangeRejected
		switch {
		case strings.Contains(raw, "Rate limit"):
			code = errs.CodeRateLimited
		case strings.HasPrefix(raw, "EAPI:"), strings.HasPrefix(raw, "EAuth:"):
			code = errs.CodeAuth
		case strings.Contains(raw, "Insufficient funds"):
			code = errs.CodeInsufficientBalance
		}
		return errs.New(venue, code,
			errs.WithRawCode(raw),
			errs.WithRawMessage(strings.Join(envelope.Errors, "; ")))
	}
	return nil
}

func mapStatus(status string, executed decimal.Decimal) schema.OrderStatus {
	switch status {
	case "pending", "open":
		if executed.IsPositive() {
			return schema.StatusPartiallyFilled
		}
		return schema.StatusSubmitted
	case "closed":
		return schema.StatusFilled
	case "canceled":
		return schema.StatusCancelled
	case "expired":
		return schema.StatusFailed
	default:
		return schema.StatusUnknown
	}
}

// canonicalAsset undoes Kraken's X/Z asset prefixes and renames so balances
// come back under the same currency codes the rest of the gateway uses.
func canonicalAsset(asset string) string {
	upper := strings.ToUpper(asset)
	if len(upper) == 4 && (upper[0] == 'X' || upper[0] == 'Z') {
		trimmed := upper[1:]
		switch trimmed {
		case "XBT":
			return "BTC"
		case "XDG":
			return "DOGE"
		}
		return trimmed
	}
	switch upper {
	case "XBT":
		return "BTC"
	case "XDG":
		return "DOGE"
	}
	return upper
}
