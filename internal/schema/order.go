// Package schema defines the canonical domain types exchanged between the
// gateway facade and the venue adapters.
package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side names the direction of an order.
type Side string

const (
	// SideBuy spends quote currency to acquire base currency.
	SideBuy Side = "buy"
	// SideSell disposes of base currency for quote currency.
	SideSell Side = "sell"
)

// OrderStatus is the canonical status every venue status string maps onto.
type OrderStatus string

const (
	// StatusSubmitted means the venue accepted the order but has not confirmed a fill.
	StatusSubmitted OrderStatus = "submitted"
	// StatusFilled means the order fully executed.
	StatusFilled OrderStatus = "filled"
	// StatusPartiallyFilled means part of the order executed and the rest is open.
	StatusPartiallyFilled OrderStatus = "partially_filled"
	// StatusFailed means the venue reported the order as failed.
	StatusFailed OrderStatus = "failed"
	// StatusCancelled means the order was cancelled before completing.
	StatusCancelled OrderStatus = "cancelled"
	// StatusUnknown means the venue response did not map onto a known state.
	StatusUnknown OrderStatus = "unknown"
)

// Terminal reports whether the status ends the confirmation loop.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// SizingKind discriminates the two market-order sizing modes.
type SizingKind string

const (
	// SizingQuoteNotional sizes the order by quote currency spend (buy path).
	SizingQuoteNotional SizingKind = "quote_notional"
	// SizingBaseQuantity sizes the order by base currency quantity (sell path).
	SizingBaseQuantity SizingKind = "base_quantity"
)

// Sizing is the tagged union carrying either a quote notional or a base quantity.
type Sizing struct {
	Kind   SizingKind
	Amount decimal.Decimal
}

// QuoteNotional builds a quote-currency sizing.
func QuoteNotional(amount decimal.Decimal) Sizing {
	return Sizing{Kind: SizingQuoteNotional, Amount: amount}
}

// BaseQuantity builds a base-currency sizing.
func BaseQuantity(amount decimal.Decimal) Sizing {
	return Sizing{Kind: SizingBaseQuantity, Amount: amount}
}

// Credentials carries the per-call API credentials. The gateway never persists
// or logs these.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
	Memo       string
}

// Present reports whether the mandatory key material is supplied.
func (c Credentials) Present() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// OrderRequest is the immutable order instruction handed to the gateway.
// Buys are always sized by quote notional, sells by base quantity, matching
// each venue's native market-order semantics.
type OrderRequest struct {
	Exchange      string
	Pair          string
	Side          Side
	Sizing        Sizing
	ClientOrderID string
	Credentials   Credentials
}

// OrderResult is the normalized outcome of one submission attempt.
// Estimated flags results synthesized by the trusted-instant-fill path rather
// than confirmed by the venue; callers must treat those as provisional.
type OrderResult struct {
	OrderID          string
	Side             Side
	Pair             string
	ExecutedPrice    decimal.Decimal
	ExecutedQuantity decimal.Decimal
	ExecutedValue    decimal.Decimal
	Fee              decimal.Decimal
	FeeCurrency      string
	Status           OrderStatus
	Timestamp        time.Time
	Estimated        bool
}

// OrderStatusDetail reports the venue's view of a previously submitted order.
type OrderStatusDetail struct {
	OrderID          string
	Status           OrderStatus
	RawStatus        string
	ExecutedPrice    decimal.Decimal
	ExecutedQuantity decimal.Decimal
	ExecutedValue    decimal.Decimal
	Fee              decimal.Decimal
	Reason           string
}

// AdjustedQuantity is the balance guard's verdict for one sell attempt.
type AdjustedQuantity struct {
	Requested   decimal.Decimal
	Adjusted    decimal.Decimal
	WasAdjusted bool
	MinimumLot  decimal.Decimal
}
