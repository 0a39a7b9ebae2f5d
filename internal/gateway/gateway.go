// Package gateway is the facade over the venue adapters: it resolves
// exchanges, validates requests synchronously, runs the pre-trade balance
// guard on sells, and fans balance queries out across venues.
package gateway

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/tradewire/execgate/config"
	"github.com/tradewire/execgate/errs"
	"github.com/tradewire/execgate/internal/adapters"
	"github.com/tradewire/execgate/internal/guard"
	"github.com/tradewire/execgate/internal/observability"
	"github.com/tradewire/execgate/internal/pairs"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/telemetry"
)

// Gateway executes orders and balance queries against any supported venue.
type Gateway struct {
	registry *Registry
	guard    *guard.Guard
	metrics  *telemetry.Metrics
	clock    func() time.Time
}

// Option customises Gateway construction.
type Option func(*Gateway)

// WithMetrics installs the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock overrides the clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) { g.clock = clock }
}

// WithRegistry overrides the venue registry, for tests.
func WithRegistry(r *Registry) Option {
	return func(g *Gateway) { g.registry = r }
}

// New assembles the gateway from configuration.
func New(cfg config.Settings, opts ...Option) *Gateway {
	minLots := make(map[string]map[string]decimal.Decimal, len(cfg.Venues))
	precision := make(map[string]int32)
	for name, venue := range cfg.Venues {
		table := make(map[string]decimal.Decimal, len(venue.MinLots))
		for asset, lot := range venue.MinLots {
			if parsed, err := decimal.NewFromString(lot); err == nil {
				table[asset] = parsed
			}
		}
		minLots[name] = table
		if venue.QuantityPrecision != nil {
			precision[name] = *venue.QuantityPrecision
		}
	}

	g := &Gateway{
		registry: NewRegistry(cfg),
		guard:    guard.New(minLots, precision),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ExecuteBuyOrder submits a market buy sized by quote notional.
func (g *Gateway) ExecuteBuyOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	req.Side = schema.SideBuy
	req.Sizing.Kind = schema.SizingQuoteNotional
	adapter, err := g.validate(req)
	if err != nil {
		return schema.OrderResult{}, err
	}

	started := g.clock()
	result, err := adapter.PlaceMarketBuy(ctx, req)
	g.record(ctx, adapter.Name(), req, result, started, err)
	return result, err
}

// ExecuteSellOrder submits a market sell sized by base quantity. The balance
// guard clamps the quantity to what the venue actually holds immediately
// before submission.
func (g *Gateway) ExecuteSellOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderResult, error) {
	req.Side = schema.SideSell
	req.Sizing.Kind = schema.SizingBaseQuantity
	adapter, err := g.validate(req)
	if err != nil {
		return schema.OrderResult{}, err
	}

	started := g.clock()
	adjusted, err := g.guard.AdjustSellQuantity(ctx, adapter.Name(), req.Pair, req.Sizing.Amount, func(ctx context.Context) ([]schema.BalanceSnapshot, error) {
		return adapter.GetBalances(ctx, req.Credentials)
	})
	if err != nil {
		g.record(ctx, adapter.Name(), req, schema.OrderResult{}, started, err)
		return schema.OrderResult{}, err
	}
	if adjusted.WasAdjusted {
		observability.Log().Warn("sell quantity clamped to available balance",
			observability.F("venue", adapter.Name()),
			observability.F("pair", req.Pair),
			observability.F("requested", adjusted.Requested.String()),
			observability.F("adjusted", adjusted.Adjusted.String()))
	}
	req.Sizing.Amount = adjusted.Adjusted

	result, err := adapter.PlaceMarketSell(ctx, req)
	g.record(ctx, adapter.Name(), req, result, started, err)
	return result, err
}

// GetOrderStatus returns the canonical status of a previously submitted order.
func (g *Gateway) GetOrderStatus(ctx context.Context, exchange, pair, orderID string, creds schema.Credentials) (schema.OrderStatusDetail, error) {
	adapter, err := g.registry.Resolve(exchange)
	if err != nil {
		return schema.OrderStatusDetail{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		return schema.OrderStatusDetail{}, errs.New(adapter.Name(), errs.CodeValidation,
			errs.WithPair(pair),
			errs.WithMessage("order identifier is required"))
	}
	if !creds.Present() {
		return schema.OrderStatusDetail{}, errs.New(adapter.Name(), errs.CodeValidation,
			errs.WithMessage("credentials are required"))
	}
	return adapter.GetOrderStatus(ctx, pair, orderID, creds)
}

// GetBalances returns the balances held on one venue.
func (g *Gateway) GetBalances(ctx context.Context, exchange string, creds schema.Credentials) ([]schema.BalanceSnapshot, error) {
	adapter, err := g.registry.Resolve(exchange)
	if err != nil {
		return nil, err
	}
	if !creds.Present() {
		return nil, errs.New(adapter.Name(), errs.CodeValidation,
			errs.WithMessage("credentials are required"))
	}
	balances, err := adapter.GetBalances(ctx, creds)
	g.metrics.RecordBalanceQuery(ctx, adapter.Name(), err == nil)
	return balances, err
}

// VenueBalances is one venue's slice of a fan-out balance query. Err is set
// when that venue failed; other venues still report.
type VenueBalances struct {
	Venue    string
	Balances []schema.BalanceSnapshot
	Err      error
}

// GetAllBalances queries every venue with supplied credentials concurrently.
// Venues without credentials are skipped.
func (g *Gateway) GetAllBalances(ctx context.Context, creds map[string]schema.Credentials) []VenueBalances {
	p := pool.NewWithResults[VenueBalances]()
	for _, name := range g.registry.Names() {
		c, ok := creds[name]
		if !ok || !c.Present() {
			continue
		}
		p.Go(func() VenueBalances {
			balances, err := g.GetBalances(ctx, name, c)
			return VenueBalances{Venue: name, Balances: balances, Err: err}
		})
	}
	results := p.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Venue < results[j].Venue })
	return results
}

// SupportedExchanges lists the canonical venue names.
func (g *Gateway) SupportedExchanges() []string {
	return g.registry.Names()
}

// validate performs the synchronous pre-flight checks shared by both order
// paths. Validation failures are final: nothing has reached the network.
func (g *Gateway) validate(req schema.OrderRequest) (adapters.Adapter, error) {
	adapter, err := g.registry.Resolve(req.Exchange)
	if err != nil {
		return nil, err
	}
	if _, _, ok := pairs.Split(req.Pair); !ok {
		return nil, errs.New(adapter.Name(), errs.CodeValidation,
			errs.WithSide(errs.Side(req.Side)),
			errs.WithPair(req.Pair),
			errs.WithMessage("pair must combine a base asset with a known quote currency"))
	}
	if !req.Sizing.Amount.IsPositive() {
		return nil, errs.New(adapter.Name(), errs.CodeValidation,
			errs.WithSide(errs.Side(req.Side)),
			errs.WithPair(req.Pair),
			errs.WithDetail("amount", req.Sizing.Amount.String()),
			errs.WithMessage("order amount must be positive"))
	}
	if !req.Credentials.Present() {
		return nil, errs.New(adapter.Name(), errs.CodeValidation,
			errs.WithSide(errs.Side(req.Side)),
			errs.WithPair(req.Pair),
			errs.WithMessage("credentials are required"))
	}
	return adapter, nil
}

func (g *Gateway) record(ctx context.Context, venue string, req schema.OrderRequest, result schema.OrderResult, started time.Time, err error) {
	elapsed := g.clock().Sub(started)
	if err != nil {
		g.metrics.RecordOrderFailure(ctx, venue, string(req.Side), string(errs.CodeOf(err)))
		observability.Log().Error("order failed",
			observability.F("venue", venue),
			observability.F("side", req.Side),
			observability.F("pair", req.Pair),
			observability.F("code", errs.CodeOf(err)),
			observability.F("elapsed", elapsed))
		return
	}
	g.metrics.RecordOrder(ctx, venue, string(req.Side), result.Estimated, elapsed)
	observability.Log().Info("order executed",
		observability.F("venue", venue),
		observability.F("side", req.Side),
		observability.F("pair", req.Pair),
		observability.F("order_id", result.OrderID),
		observability.F("status", result.Status),
		observability.F("estimated", result.Estimated),
		observability.F("elapsed", elapsed))
}
