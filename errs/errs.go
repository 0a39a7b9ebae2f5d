// Package errs provides structured error envelopes for the execution gateway.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code classifies a gateway failure.
type Code string

const (
	// CodeValidation indicates a malformed request rejected before any I/O.
	CodeValidation Code = "validation"
	// CodeUnsupportedExchange indicates an exchange identifier that resolves to no adapter.
	CodeUnsupportedExchange Code = "unsupported_exchange"
	// CodeAuth indicates the venue rejected the supplied credentials.
	CodeAuth Code = "auth"
	// CodeInsufficientBalance indicates no sellable balance for the base asset.
	CodeInsufficientBalance Code = "insufficient_balance"
	// CodeBelowMinOrderSize indicates the adjusted quantity fell under the venue minimum lot.
	CodeBelowMinOrderSize Code = "below_min_order_size"
	// CodeNetwork indicates a transport failure after the retry budget was exhausted.
	CodeNetwork Code = "network"
	// CodeRateLimited indicates the venue was still rate limiting when retries ran out.
	CodeRateLimited Code = "rate_limited"
	// CodeExchangeRejected indicates a structured business rejection from the venue.
	CodeExchangeRejected Code = "exchange_rejected"
	// CodeConfirmationTimeout indicates no terminal order status within the polling budget.
	// The order may still be live on the venue.
	CodeConfirmationTimeout Code = "confirmation_timeout"
	// CodeUnknownResponse indicates a success response missing a field the mapper requires.
	CodeUnknownResponse Code = "unknown_response"
)

// Side names the order direction an error relates to.
type Side string

const (
	// SideBuy marks errors raised on the buy path.
	SideBuy Side = "buy"
	// SideSell marks errors raised on the sell path.
	SideSell Side = "sell"
)

// E is the structured error envelope produced across the gateway.
type E struct {
	Exchange string
	Code     Code
	Side     Side
	Pair     string
	HTTP     int
	Attempts int
	RawCode  string
	RawMsg   string
	Message  string
	Details  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the exchange and failure code.
func New(exchange string, code Code, opts ...Option) *E {
	e := &E{
		Exchange: strings.TrimSpace(exchange),
		Code:     code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) { e.Message = trimmed }
}

// WithSide records the order direction the failure relates to.
func WithSide(side Side) Option {
	return func(e *E) { e.Side = side }
}

// WithPair records the canonical trading pair the failure relates to.
func WithPair(pair string) Option {
	trimmed := strings.TrimSpace(pair)
	return func(e *E) { e.Pair = trimmed }
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) { e.HTTP = status }
}

// WithAttempts records how many transport attempts were consumed.
func WithAttempts(attempts int) Option {
	return func(e *E) { e.Attempts = attempts }
}

// WithRawCode captures the raw venue error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) { e.RawCode = trimmed }
}

// WithRawMessage captures the raw venue error message.
func WithRawMessage(msg string) Option {
	return func(e *E) { e.RawMsg = msg }
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) { e.cause = err }
}

// WithDetail appends a single contextual key/value pair, e.g. available vs requested
// quantities on balance failures.
func WithDetail(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Details == nil {
			e.Details = make(map[string]string, 1)
		}
		e.Details[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	exchange := strings.TrimSpace(e.Exchange)
	if exchange == "" {
		exchange = "unknown"
	}
	parts = append(parts, "exchange="+exchange)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Side != "" {
		parts = append(parts, "side="+string(e.Side))
	}
	if e.Pair != "" {
		parts = append(parts, "pair="+e.Pair)
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Attempts > 0 {
		parts = append(parts, "attempts="+strconv.Itoa(e.Attempts))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Details[k]))
		}
		parts = append(parts, "details="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the gateway failure code from err, unwrapping as needed.
// Errors outside the gateway taxonomy report CodeNetwork when they wrap a
// transport failure and an empty code otherwise.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given failure code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retriable reports whether the failure class is safe to retry without external
// intervention. Balance-derived failures are deliberately excluded: they indicate
// stale position data, not a transient fault.
func Retriable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeRateLimited:
		return true
	default:
		return false
	}
}
