// Package confirm reconciles "order accepted" with "order actually filled".
//
// Each venue carries a static confirmation policy: either poll the status
// endpoint until a terminal state appears, or trust that market orders execute
// atomically and synthesize an estimated fill. The choice is declared once per
// venue, not inferred at runtime, because it encodes known venue behaviour.
package confirm

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/schema"
)

// Mode discriminates the confirmation strategies.
type Mode string

const (
	// ModePoll polls the venue status endpoint until a terminal state.
	ModePoll Mode = "poll"
	// ModeTrustInstant skips polling and synthesizes an estimated fill. Used
	// for venues whose status endpoint reports a false failure immediately
	// after an atomic market execution, because the balance already moved.
	ModeTrustInstant Mode = "trust_instant"
	// ModeSynchronous means the submission response itself carries the fill;
	// the adapter builds the result directly and never enters this package.
	ModeSynchronous Mode = "synchronous"
)

// Policy is the declarative per-venue confirmation behaviour.
type Policy struct {
	Mode        Mode
	MaxAttempts int
	Interval    time.Duration
	TakerFee    decimal.Decimal
}

// PollEvery declares a polling policy.
func PollEvery(maxAttempts int, interval time.Duration) Policy {
	return Policy{Mode: ModePoll, MaxAttempts: maxAttempts, Interval: interval}
}

// TrustInstant declares a trusted-instant-fill policy with the venue's taker fee.
func TrustInstant(takerFee decimal.Decimal) Policy {
	return Policy{Mode: ModeTrustInstant, TakerFee: takerFee}
}

// Synchronous declares that submission responses are self-confirming.
func Synchronous() Policy {
	return Policy{Mode: ModeSynchronous}
}

// StatusFetcher retrieves the venue's current view of the order.
type StatusFetcher func(ctx context.Context) (schema.OrderStatusDetail, error)

// Poll drives the polling loop: at most policy.MaxAttempts status fetches,
// policy.Interval apart, aborted immediately when ctx is cancelled. A filled
// status returns the detail; failed or cancelled statuses return an
// exchange_rejected error preserving the venue's stated reason; exhaustion
// returns confirmation_timeout, after which the order may still be live.
func Poll(ctx context.Context, venue, orderID string, policy Policy, fetch StatusFetcher) (schema.OrderStatusDetail, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}
	interval := policy.Interval
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		detail, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return schema.OrderStatusDetail{}, ctx.Err()
			}
			// Status endpoints are routinely flaky right after execution;
			// a failed lookup consumes the attempt and the loop continues.
			lastErr = err
		} else {
			switch detail.Status {
			case schema.StatusFilled:
				return detail, nil
			case schema.StatusFailed, schema.StatusCancelled:
				return schema.OrderStatusDetail{}, errs.New(venue, errs.CodeExchangeRejected,
					errs.WithDetail("order_id", orderID),
					errs.WithRawCode(detail.RawStatus),
					errs.WithRawMessage(detail.Reason),
					errs.WithMessage("venue reported terminal failure"))
			}
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return schema.OrderStatusDetail{}, ctx.Err()
		case <-time.After(interval):
		}
	}
	return schema.OrderStatusDetail{}, errs.New(venue, errs.CodeConfirmationTimeout,
		errs.WithAttempts(attempts),
		errs.WithDetail("order_id", orderID),
		errs.WithMessage("no terminal order status within polling budget"),
		errs.WithCause(lastErr))
}

// EstimateInput carries what the trusted-instant-fill path needs to synthesize
// a result.
type EstimateInput struct {
	OrderID   string
	Side      schema.Side
	Pair      string
	Sizing    schema.Sizing
	Price     decimal.Decimal
	TakerFee  decimal.Decimal
	Quote     string
	Timestamp time.Time
}

// EstimateFill synthesizes an OrderResult from one price observation and the
// venue's fixed taker-fee estimate. The result is flagged Estimated: fewer
// false failures at the cost of imprecise fee and price reporting.
func EstimateFill(in EstimateInput) schema.OrderResult {
	var quantity, value decimal.Decimal
	if in.Sizing.Kind == schema.SizingQuoteNotional {
		value = in.Sizing.Amount
		if in.Price.IsPositive() {
			quantity = in.Sizing.Amount.Div(in.Price)
		}
	} else {
		quantity = in.Sizing.Amount
		value = in.Sizing.Amount.Mul(in.Price)
	}
	fee := value.Mul(in.TakerFee)
	return schema.OrderResult{
		OrderID:          in.OrderID,
		Side:             in.Side,
		Pair:             in.Pair,
		ExecutedPrice:    in.Price,
		ExecutedQuantity: quantity,
		ExecutedValue:    value,
		Fee:              fee,
		FeeCurrency:      in.Quote,
		Status:           schema.StatusFilled,
		Timestamp:        in.Timestamp,
		Estimated:        true,
	}
}
