// Package adapters declares the capability set every venue adapter exposes to
// the gateway facade.
package adapters

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/internal/schema"
)

// Adapter is the uniform per-venue capability set. Implementations compose the
// signer, rate limiter, resilient transport and confirmation policy for one
// venue behind these operations.
type Adapter interface {
	// Name returns the canonical venue identifier.
	Name() string
	// NormalizePair renders a canonical pair in the venue's native format.
	NormalizePair(pair string) string
	// PlaceMarketBuy submits a market buy sized by quote notional.
	PlaceMarketBuy(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error)
	// PlaceMarketSell submits a market sell sized by base quantity. The
	// quantity has already been clamped by the balance guard.
	PlaceMarketSell(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error)
	// GetOrderStatus maps the venue's view of an order onto the canonical enum.
	GetOrderStatus(ctx context.Context, pair, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error)
	// GetBalances returns normalized balance snapshots.
	GetBalances(ctx context.Context, creds schema.Credentials) ([]schema.BalanceSnapshot, error)
	// FetchPrice returns the venue's current price for the pair, used to
	// pre-compute base quantities and to synthesize estimated fills.
	FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}
