package shared

import (
	"errors"
	"time"

	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/schema"
)

// ResultFromDetail converts a terminal status payload into the normalized
// order result for the originating request.
func ResultFromDetail(req schema.OrderRequest, detail schema.OrderStatusDetail, now time.Time) schema.OrderResult {
	return schema.OrderResult{
		OrderID:          detail.OrderID,
		Side:             req.Side,
		Pair:             req.Pair,
		ExecutedPrice:    detail.ExecutedPrice,
		ExecutedQuantity: detail.ExecutedQuantity,
		ExecutedValue:    detail.ExecutedValue,
		Fee:              detail.Fee,
		Status:           detail.Status,
		Timestamp:        now.UTC(),
	}
}

// Decorate stamps the originating side and pair onto an error envelope so
// every surfaced failure can be correlated by the caller.
func Decorate(err error, side schema.Side, pair string) error {
	var envelope *errs.E
	if errors.As(err, &envelope) {
		if envelope.Side == "" {
			envelope.Side = errs.Side(side)
		}
		if envelope.Pair == "" {
			envelope.Pair = pair
		}
	}
	return err
}
