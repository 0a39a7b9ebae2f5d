// Package mexc adapts MEXC spot trading. The REST surface is
// Binance-compatible, so the adapter is the shared Binance-family
// implementation under MEXC's venue identity: its own API-key header, and a
// polling confirmation policy because MEXC submission responses do not carry
// fills.
package mexc

import (
	"time"

	"github.com/tradewire/execgate/internal/adapters/binance"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/confirm"
)

// New constructs the MEXC adapter.
func New(env *shared.Env) *binance.Adapter {
	return binance.New(env, binance.Options{
		Venue:     "mexc",
		KeyHeader: "X-MEXC-APIKEY",
		Policy:    confirm.PollEvery(10, time.Second),
	})
}
