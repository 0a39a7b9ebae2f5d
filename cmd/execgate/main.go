// Command execgate runs one order-execution or balance operation against a
// configured venue and prints the normalized result as JSON.
//
// Credentials are read from the environment per venue: <VENUE>_API_KEY,
// <VENUE>_API_SECRET and, where the venue requires one, <VENUE>_API_PASSPHRASE.
// They are never echoed or persisted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tradewire/execgate/config"
	"github.com/tradewire/execgate/internal/gateway"
	"github.com/tradewire/execgate/internal/observability"
	"github.com/tradewire/execgate/internal/schema"
	"github.com/tradewire/execgate/internal/telemetry"
	libtelemetry "github.com/tradewire/execgate/lib/telemetry"
)

const (
	defaultConfigPath        = "config/execgate.yaml"
	loggerPrefix             = "execgate "
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	flags := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := log.New(os.Stderr, loggerPrefix, log.LstdFlags|log.Lmicroseconds)
	observability.SetLogger(observability.NewStdLogger(flags.verbose))

	cfg, loadedFromFile, err := config.Load(resolveConfigPath(flags.configPath))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Print("configuration file not found, using defaults")
	}

	_, telemetryShutdown, err := libtelemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		logger.Fatalf("register metrics: %v", err)
	}

	gw := gateway.New(cfg, gateway.WithMetrics(metrics))

	if err := run(ctx, gw, flags, flag.Args()); err != nil {
		logger.Fatalf("%v", err)
	}
}

type cliFlags struct {
	configPath string
	exchange   string
	pair       string
	amount     string
	orderID    string
	verbose    bool
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", fmt.Sprintf("Path to configuration file (default: %s)", defaultConfigPath))
	flag.StringVar(&flags.exchange, "exchange", "", "Venue name, e.g. binance or kraken")
	flag.StringVar(&flags.pair, "pair", "", "Canonical pair, e.g. BTC-USDT")
	flag.StringVar(&flags.amount, "amount", "", "Quote notional for buys, base quantity for sells")
	flag.StringVar(&flags.orderID, "order-id", "", "Venue order identifier for status queries")
	flag.BoolVar(&flags.verbose, "v", false, "Enable debug logging")
	flag.Parse()
	return flags
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func run(ctx context.Context, gw *gateway.Gateway, flags cliFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: execgate [flags] buy|sell|status|balances|all-balances|venues")
	}

	switch args[0] {
	case "buy", "sell":
		amount, err := decimal.NewFromString(strings.TrimSpace(flags.amount))
		if err != nil {
			return fmt.Errorf("parse -amount: %w", err)
		}
		req := schema.OrderRequest{
			Exchange:    flags.exchange,
			Pair:        flags.pair,
			Credentials: credentialsFromEnv(flags.exchange),
		}
		var result schema.OrderResult
		if args[0] == "buy" {
			req.Sizing = schema.QuoteNotional(amount)
			result, err = gw.ExecuteBuyOrder(ctx, req)
		} else {
			req.Sizing = schema.BaseQuantity(amount)
			result, err = gw.ExecuteSellOrder(ctx, req)
		}
		if err != nil {
			return err
		}
		return printJSON(result)

	case "status":
		detail, err := gw.GetOrderStatus(ctx, flags.exchange, flags.pair, flags.orderID, credentialsFromEnv(flags.exchange))
		if err != nil {
			return err
		}
		return printJSON(detail)

	case "balances":
		balances, err := gw.GetBalances(ctx, flags.exchange, credentialsFromEnv(flags.exchange))
		if err != nil {
			return err
		}
		return printJSON(balances)

	case "all-balances":
		creds := make(map[string]schema.Credentials)
		for _, venue := range gw.SupportedExchanges() {
			creds[venue] = credentialsFromEnv(venue)
		}
		return printJSON(gw.GetAllBalances(ctx, creds))

	case "venues":
		return printJSON(gw.SupportedExchanges())

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func credentialsFromEnv(venue string) schema.Credentials {
	prefix := strings.ToUpper(strings.TrimSpace(venue))
	return schema.Credentials{
		APIKey:     strings.TrimSpace(os.Getenv(prefix + "_API_KEY")),
		APISecret:  strings.TrimSpace(os.Getenv(prefix + "_API_SECRET")),
		Passphrase: strings.TrimSpace(os.Getenv(prefix + "_API_PASSPHRASE")),
	}
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}
