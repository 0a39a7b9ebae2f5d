package gateway

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/config"
	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters"
	"github.com/tradewire/execgate/internal/adapters/binance"
	"github.com/tradewire/execgate/internal/adapters/bitfinex"
	"github.com/tradewire/execgate/internal/adapters/kraken"
	"github.com/tradewire/execgate/internal/adapters/kucoin"
	"github.com/tradewire/execgate/internal/adapters/luno"
	"github.com/tradewire/execgate/internal/adapters/mexc"
	"github.com/tradewire/execgate/internal/adapters/okx"
	"github.com/tradewire/execgate/internal/adapters/shared"
	"github.com/tradewire/execgate/internal/confirm"
	"github.com/tradewire/execgate/internal/ratelimit"
	"github.com/tradewire/execgate/internal/transport"
)

// aliases maps legacy venue spellings onto canonical identifiers.
var aliases = map[string]string{
	"okex": "okx",
	"bitx": "luno",
}

// constructors binds canonical venue names to adapter factories.
var constructors = map[string]func(env *shared.Env) adapters.Adapter{
	"binance": func(env *shared.Env) adapters.Adapter {
		return binance.New(env, binance.Options{Venue: "binance", Policy: confirm.Synchronous()})
	},
	"mexc":     func(env *shared.Env) adapters.Adapter { return mexc.New(env) },
	"kucoin":   func(env *shared.Env) adapters.Adapter { return kucoin.New(env) },
	"okx":      func(env *shared.Env) adapters.Adapter { return okx.New(env) },
	"kraken":   func(env *shared.Env) adapters.Adapter { return kraken.New(env) },
	"bitfinex": func(env *shared.Env) adapters.Adapter { return bitfinex.New(env) },
	"luno":     func(env *shared.Env) adapters.Adapter { return luno.New(env) },
}

// Registry resolves exchange names to constructed adapters.
type Registry struct {
	adapters map[string]adapters.Adapter
}

// NewRegistry builds one adapter per configured venue. All venues share the
// rate limiter so per-venue pacing survives adapter lookups.
func NewRegistry(cfg config.Settings) *Registry {
	overrides := make(map[string]time.Duration, len(cfg.Venues))
	for name, venue := range cfg.Venues {
		if venue.MinRequestInterval > 0 {
			overrides[name] = venue.MinRequestInterval
		}
	}
	limiter := ratelimit.New(ratelimit.DefaultInterval, overrides)

	built := make(map[string]adapters.Adapter, len(constructors))
	for name, construct := range constructors {
		venue, ok := cfg.Venue(name)
		if !ok {
			continue
		}
		fee, _ := decimal.NewFromString(venue.TakerFee)
		env := &shared.Env{
			Venue:   name,
			BaseURL: venue.BaseURL,
			Client: &transport.Client{
				Venue:          name,
				HTTP:           &http.Client{},
				AttemptTimeout: venue.HTTPTimeout,
			},
			Limiter:  limiter,
			TakerFee: fee,
		}
		built[name] = construct(env)
	}
	return &Registry{adapters: built}
}

// Resolve returns the adapter for an exchange name, accepting canonical names
// and legacy aliases case-insensitively.
func (r *Registry) Resolve(exchange string) (adapters.Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(exchange))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, errs.New(name, errs.CodeUnsupportedExchange,
			errs.WithDetail("supported", strings.Join(r.Names(), ",")),
			errs.WithMessage("exchange is not supported"))
	}
	return adapter, nil
}

// Names lists the canonical venue names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
