// Package guard clamps sell quantities to the balance actually available on a
// venue, so drifted position data produces a slightly smaller order instead of
// a venue rejection.
package guard

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/pairs"
	"github.com/tradewire/execgate/internal/schema"
)

// SafetyFactor is the haircut applied when the available balance is short of
// the requested size. The 0.1% buffer absorbs fees deducted in the same asset
// between position open and close.
var SafetyFactor = decimal.RequireFromString("0.999")

// DefaultPrecision is the conventional asset precision used when a venue has
// no override.
const DefaultPrecision int32 = 8

// BalanceFetcher returns the venue's current balances. The guard calls it
// immediately before submission so the checked-then-used window stays as short
// as one network round trip.
type BalanceFetcher func(ctx context.Context) ([]schema.BalanceSnapshot, error)

// Guard holds the per-venue minimum-lot table and precision overrides.
type Guard struct {
	minLots   map[string]map[string]decimal.Decimal
	precision map[string]int32
}

// New builds a guard. minLots maps venue -> asset -> minimum order size;
// precision maps venue -> decimal places, defaulting to DefaultPrecision.
func New(minLots map[string]map[string]decimal.Decimal, precision map[string]int32) *Guard {
	lots := make(map[string]map[string]decimal.Decimal, len(minLots))
	for venue, assets := range minLots {
		table := make(map[string]decimal.Decimal, len(assets))
		for asset, lot := range assets {
			table[strings.ToUpper(strings.TrimSpace(asset))] = lot
		}
		lots[strings.ToLower(strings.TrimSpace(venue))] = table
	}
	prec := make(map[string]int32, len(precision))
	for venue, p := range precision {
		prec[strings.ToLower(strings.TrimSpace(venue))] = p
	}
	return &Guard{minLots: lots, precision: prec}
}

// AdjustSellQuantity fetches a fresh balance snapshot, clamps the requested
// sell size to what is available (minus the safety buffer when short), rounds
// to the venue precision and enforces the minimum lot. The adjusted quantity
// never exceeds the requested one.
func (g *Guard) AdjustSellQuantity(ctx context.Context, venue, pair string, requested decimal.Decimal, fetch BalanceFetcher) (schema.AdjustedQuantity, error) {
	base, _, ok := pairs.Split(pair)
	if !ok {
		return schema.AdjustedQuantity{}, errs.New(venue, errs.CodeValidation,
			errs.WithSide(errs.SideSell),
			errs.WithPair(pair),
			errs.WithMessage("cannot derive base asset from pair"))
	}
	balances, err := fetch(ctx)
	if err != nil {
		return schema.AdjustedQuantity{}, err
	}
	// Adapters canonicalize balance currencies (XXBT -> BTC), so snapshots are
	// matched on the canonical base. The venue's native spelling only keys the
	// minimum-lot table.
	available := decimal.Zero
	found := false
	for _, b := range balances {
		if strings.EqualFold(strings.TrimSpace(b.Currency), base) {
			available = b.Available
			found = true
			break
		}
	}
	if !found || available.LessThanOrEqual(decimal.Zero) {
		return schema.AdjustedQuantity{}, errs.New(venue, errs.CodeInsufficientBalance,
			errs.WithSide(errs.SideSell),
			errs.WithPair(pair),
			errs.WithDetail("asset", base),
			errs.WithDetail("available", available.String()),
			errs.WithDetail("requested", requested.String()),
			errs.WithMessage("no sellable balance for base asset"))
	}

	adjusted := requested
	wasAdjusted := false
	if available.LessThan(requested) {
		adjusted = available.Mul(SafetyFactor)
		wasAdjusted = true
	}
	adjusted = adjusted.Truncate(g.precisionFor(venue))

	minLot := g.minLotFor(venue, pairs.NativeAsset(venue, base))
	if adjusted.LessThan(minLot) {
		// Deliberately not auto-recovered: a post-adjustment shortfall under the
		// minimum lot usually means the asset moved outside the system.
		shortfall := minLot.Sub(adjusted)
		return schema.AdjustedQuantity{}, errs.New(venue, errs.CodeBelowMinOrderSize,
			errs.WithSide(errs.SideSell),
			errs.WithPair(pair),
			errs.WithDetail("asset", base),
			errs.WithDetail("available", available.String()),
			errs.WithDetail("requested", requested.String()),
			errs.WithDetail("adjusted", adjusted.String()),
			errs.WithDetail("minimum_lot", minLot.String()),
			errs.WithDetail("shortfall", shortfall.String()),
			errs.WithMessage("adjusted quantity below venue minimum order size"))
	}

	return schema.AdjustedQuantity{
		Requested:   requested,
		Adjusted:    adjusted,
		WasAdjusted: wasAdjusted,
		MinimumLot:  minLot,
	}, nil
}

func (g *Guard) precisionFor(venue string) int32 {
	if p, ok := g.precision[strings.ToLower(strings.TrimSpace(venue))]; ok {
		return p
	}
	return DefaultPrecision
}

func (g *Guard) minLotFor(venue, asset string) decimal.Decimal {
	if assets, ok := g.minLots[strings.ToLower(strings.TrimSpace(venue))]; ok {
		if lot, ok := assets[strings.ToUpper(strings.TrimSpace(asset))]; ok {
			return lot
		}
	}
	return decimal.Zero
}
