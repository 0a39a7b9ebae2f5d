// Package config centralises runtime configuration for the execution gateway.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// VenueSettings aggregates transport configuration for one venue.
type VenueSettings struct {
	BaseURL            string
	HTTPTimeout        time.Duration
	MinRequestInterval time.Duration
	// TakerFee is the venue's taker fee rate as a decimal string, used by the
	// trusted-instant-fill estimator.
	TakerFee string
	// MinLots maps base assets to the venue's minimum order sizes, as decimal
	// strings.
	MinLots map[string]string
	// QuantityPrecision overrides the conventional 8-decimal rounding.
	QuantityPrecision *int32
}

// TelemetrySettings configures the OpenTelemetry exporter.
type TelemetrySettings struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// Settings is the configuration tree assembled from defaults, an optional YAML
// file, and environment overrides.
type Settings struct {
	Environment Environment
	Venues      map[string]VenueSettings
	Telemetry   TelemetrySettings
}

// Default returns the compiled-in configuration for every supported venue.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Venues: map[string]VenueSettings{
			"binance": {
				BaseURL:            "https://api.binance.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 200 * time.Millisecond,
				TakerFee:           "0.001",
				MinLots:            map[string]string{"BTC": "0.00001", "ETH": "0.0001", "XRP": "1"},
			},
			"mexc": {
				BaseURL:            "https://api.mexc.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 200 * time.Millisecond,
				TakerFee:           "0.001",
				MinLots:            map[string]string{"BTC": "0.000001", "XRP": "1"},
			},
			"kucoin": {
				BaseURL:            "https://api.kucoin.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 200 * time.Millisecond,
				TakerFee:           "0.001",
				MinLots:            map[string]string{"BTC": "0.00001", "XRP": "0.1"},
			},
			"okx": {
				BaseURL:            "https://www.okx.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 200 * time.Millisecond,
				TakerFee:           "0.001",
				MinLots:            map[string]string{"BTC": "0.00001", "XRP": "1"},
			},
			"kraken": {
				BaseURL:            "https://api.kraken.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 500 * time.Millisecond,
				TakerFee:           "0.0026",
				MinLots:            map[string]string{"XBT": "0.0001", "XRP": "2.5"},
			},
			"bitfinex": {
				BaseURL:            "https://api.bitfinex.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 250 * time.Millisecond,
				TakerFee:           "0.002",
				MinLots:            map[string]string{"BTC": "0.00004", "XRP": "2"},
			},
			"luno": {
				BaseURL:            "https://api.luno.com",
				HTTPTimeout:        30 * time.Second,
				MinRequestInterval: 500 * time.Millisecond,
				TakerFee:           "0.001",
				MinLots:            map[string]string{"XBT": "0.0002", "XRP": "1"},
			},
		},
		Telemetry: TelemetrySettings{ServiceName: "execgate"},
	}
}

// FromEnv loads configuration overrides from environment variables.
// Recognised variables: EXECGATE_ENV, EXECGATE_OTLP_ENDPOINT, and per venue
// <VENUE>_BASE_URL and <VENUE>_HTTP_TIMEOUT.
func FromEnv() Settings {
	cfg := Default()
	if env := strings.TrimSpace(os.Getenv("EXECGATE_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	if v := strings.TrimSpace(os.Getenv("EXECGATE_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	for name, venue := range cfg.Venues {
		prefix := strings.ToUpper(name)
		if v := strings.TrimSpace(os.Getenv(prefix + "_BASE_URL")); v != "" {
			venue.BaseURL = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_HTTP_TIMEOUT")); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				venue.HTTPTimeout = dur
			}
		}
		cfg.Venues[name] = venue
	}
	return cfg
}

// Load reads a YAML file and merges it over the environment-derived settings.
// A missing file is not an error; the defaults apply.
func Load(path string) (Settings, bool, error) {
	cfg := FromEnv()
	if strings.TrimSpace(path) == "" {
		return cfg, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return Settings{}, false, fmt.Errorf("read config %s: %w", path, err)
	}
	var file settingsYAML
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Settings{}, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(file.toSettings())
	return cfg, true, nil
}

// settingsYAML mirrors Settings with string durations, parsed on merge.
type settingsYAML struct {
	Environment string                       `yaml:"environment"`
	Venues      map[string]venueSettingsYAML `yaml:"venues"`
	Telemetry   TelemetrySettings            `yaml:"telemetry"`
}

type venueSettingsYAML struct {
	BaseURL            string            `yaml:"baseUrl"`
	HTTPTimeout        string            `yaml:"httpTimeout"`
	MinRequestInterval string            `yaml:"minRequestInterval"`
	TakerFee           string            `yaml:"takerFee"`
	MinLots            map[string]string `yaml:"minLots"`
	QuantityPrecision  *int32            `yaml:"quantityPrecision"`
}

func (f settingsYAML) toSettings() Settings {
	out := Settings{
		Environment: Environment(strings.ToLower(strings.TrimSpace(f.Environment))),
		Venues:      make(map[string]VenueSettings, len(f.Venues)),
		Telemetry:   f.Telemetry,
	}
	for name, v := range f.Venues {
		venue := VenueSettings{
			BaseURL:           v.BaseURL,
			TakerFee:          v.TakerFee,
			MinLots:           v.MinLots,
			QuantityPrecision: v.QuantityPrecision,
		}
		if dur, err := time.ParseDuration(strings.TrimSpace(v.HTTPTimeout)); err == nil {
			venue.HTTPTimeout = dur
		}
		if dur, err := time.ParseDuration(strings.TrimSpace(v.MinRequestInterval)); err == nil {
			venue.MinRequestInterval = dur
		}
		out.Venues[name] = venue
	}
	return out
}

func (s *Settings) merge(overlay Settings) {
	if overlay.Environment != "" {
		s.Environment = overlay.Environment
	}
	if overlay.Telemetry.OTLPEndpoint != "" {
		s.Telemetry.OTLPEndpoint = overlay.Telemetry.OTLPEndpoint
	}
	if overlay.Telemetry.ServiceName != "" {
		s.Telemetry.ServiceName = overlay.Telemetry.ServiceName
	}
	for name, venue := range overlay.Venues {
		key := strings.ToLower(strings.TrimSpace(name))
		base, ok := s.Venues[key]
		if !ok {
			s.Venues[key] = venue
			continue
		}
		if venue.BaseURL != "" {
			base.BaseURL = venue.BaseURL
		}
		if venue.HTTPTimeout > 0 {
			base.HTTPTimeout = venue.HTTPTimeout
		}
		if venue.MinRequestInterval > 0 {
			base.MinRequestInterval = venue.MinRequestInterval
		}
		if venue.TakerFee != "" {
			base.TakerFee = venue.TakerFee
		}
		if len(venue.MinLots) > 0 {
			if base.MinLots == nil {
				base.MinLots = make(map[string]string, len(venue.MinLots))
			}
			for asset, lot := range venue.MinLots {
				base.MinLots[strings.ToUpper(asset)] = lot
			}
		}
		if venue.QuantityPrecision != nil {
			base.QuantityPrecision = venue.QuantityPrecision
		}
		s.Venues[key] = base
	}
}

// Venue returns the settings for a venue name, case-insensitively.
func (s Settings) Venue(name string) (VenueSettings, bool) {
	venue, ok := s.Venues[strings.ToLower(strings.TrimSpace(name))]
	return venue, ok
}
