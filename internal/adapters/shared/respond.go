package shared

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/errs"
)

// DecodeJSON unmarshals a venue response body, reporting a malformed payload
// as unknown_response rather than a silently-defaulted zero value.
func DecodeJSON(venue string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errs.New(venue, errs.CodeUnknownResponse,
			errs.WithRawMessage(string(body)),
			errs.WithMessage("malformed venue response"),
			errs.WithCause(err))
	}
	return nil
}

// ClassifyHTTP maps a non-2xx venue response onto the error taxonomy:
// credential rejections become auth errors, everything else a structured
// venue rejection carrying the raw payload.
func ClassifyHTTP(venue string, status int, body []byte) error {
	raw := strings.TrimSpace(string(body))
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return errs.New(venue, errs.CodeAuth,
			errs.WithHTTP(status),
			errs.WithRawMessage(raw),
			errs.WithMessage("venue rejected credentials"))
	}
	return errs.New(venue, errs.CodeExchangeRejected,
		errs.WithHTTP(status),
		errs.WithRawMessage(raw))
}

// ParseDecimal converts a venue-reported numeric string, reporting a missing
// or malformed required field as unknown_response.
func ParseDecimal(venue, field, value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Decimal{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", field),
			errs.WithMessage("required response field absent"))
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, errs.New(venue, errs.CodeUnknownResponse,
			errs.WithDetail("field", field),
			errs.WithRawMessage(trimmed),
			errs.WithCause(err))
	}
	return d, nil
}

// ParseDecimalOrZero converts an optional venue-reported numeric string,
// treating absence as zero.
func ParseDecimalOrZero(value string) decimal.Decimal {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FirstNonEmpty returns the first non-blank value, supporting the fallback
// field chains several venues need across API response variants.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
