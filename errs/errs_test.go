package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorStringIncludesContext(t *testing.T) {
	cause := errors.New("connection reset")
	err := New("kraken", CodeNetwork,
		WithSide(SideSell),
		WithPair("XRPUSDT"),
		WithHTTP(502),
		WithAttempts(3),
		WithMessage("request failed"),
		WithCause(cause),
	)
	got := err.Error()
	for _, want := range []string{
		"exchange=kraken",
		"code=network",
		"side=sell",
		"pair=XRPUSDT",
		"http=502",
		"attempts=3",
		`cause="connection reset"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("error string missing %q: %s", want, got)
		}
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("binance", CodeExchangeRejected, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match the cause")
	}
}

func TestCodeOfUnwrapsNestedEnvelopes(t *testing.T) {
	inner := New("okx", CodeRateLimited)
	wrapped := fmt.Errorf("placing order: %w", inner)
	if CodeOf(wrapped) != CodeRateLimited {
		t.Fatalf("expected rate_limited, got %q", CodeOf(wrapped))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty code for foreign error")
	}
}

func TestRetriableClassification(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{CodeNetwork, true},
		{CodeRateLimited, true},
		{CodeInsufficientBalance, false},
		{CodeBelowMinOrderSize, false},
		{CodeValidation, false},
		{CodeConfirmationTimeout, false},
	}
	for _, tc := range cases {
		if got := Retriable(New("x", tc.code)); got != tc.want {
			t.Fatalf("Retriable(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestDetailsAreSortedAndQuoted(t *testing.T) {
	err := New("kucoin", CodeBelowMinOrderSize,
		WithDetail("requested", "2"),
		WithDetail("available", "1"),
		WithDetail("minimum_lot", "1.5"),
	)
	got := err.Error()
	want := `details=available="1",minimum_lot="1.5",requested="2"`
	if !strings.Contains(got, want) {
		t.Fatalf("expected %q in %q", want, got)
	}
}
