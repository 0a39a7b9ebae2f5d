// Package fake provides a scripted in-memory adapter for exercising the
// gateway facade without network access.
package fake

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/internal/pairs"
	"github.com/tradewire/execgate/internal/schema"
)

// Adapter is a configurable stand-in venue. Responses are fixed via the
// public fields; every call is recorded for assertions.
type Adapter struct {
	mu sync.Mutex

	Venue    string
	Price    decimal.Decimal
	Balances []schema.BalanceSnapshot
	Result   schema.OrderResult
	Detail   schema.OrderStatusDetail

	// Err, when set, is returned by every operation.
	Err error

	BuyCalls    []schema.OrderRequest
	SellCalls   []schema.OrderRequest
	StatusCalls []string
	BalanceHits int
}

// Name implements adapters.Adapter.
func (a *Adapter) Name() string {
	if a.Venue == "" {
		return "fake"
	}
	return a.Venue
}

// NormalizePair implements adapters.Adapter.
func (a *Adapter) NormalizePair(pair string) string {
	if normalized := pairs.Normalize(a.Name(), pair); normalized != pair {
		return normalized
	}
	return strings.ReplaceAll(strings.ToUpper(pair), "-", "")
}

// PlaceMarketBuy implements adapters.Adapter.
func (a *Adapter) PlaceMarketBuy(_ context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.BuyCalls = append(a.BuyCalls, req)
	if a.Err != nil {
		return schema.OrderResult{}, a.Err
	}
	return a.Result, nil
}

// PlaceMarketSell implements adapters.Adapter.
func (a *Adapter) PlaceMarketSell(_ context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SellCalls = append(a.SellCalls, req)
	if a.Err != nil {
		return schema.OrderResult{}, a.Err
	}
	return a.Result, nil
}

// GetOrderStatus implements adapters.Adapter.
func (a *Adapter) GetOrderStatus(_ context.Context, _, orderID string, _ schema.Credentials) (schema.OrderStatusDetail, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.StatusCalls = append(a.StatusCalls, orderID)
	if a.Err != nil {
		return schema.OrderStatusDetail{}, a.Err
	}
	return a.Detail, nil
}

// GetBalances implements adapters.Adapter.
func (a *Adapter) GetBalances(context.Context, schema.Credentials) ([]schema.BalanceSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.BalanceHits++
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Balances, nil
}

// FetchPrice implements adapters.Adapter.
func (a *Adapter) FetchPrice(context.Context, string) (decimal.Decimal, error) {
	if a.Err != nil {
		return decimal.Decimal{}, a.Err
	}
	return a.Price, nil
}
