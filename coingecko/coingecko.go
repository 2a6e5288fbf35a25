// Package coingecko is an exchange-rate plugin backed by the CoinGecko
// simple price API.
package coingecko

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/client"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

const (
	exchangeName = "coingecko"
	fiatPrefix   = "iso:"
)

// coinIDs maps currency codes to CoinGecko coin ids.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"USDC": "usd-coin",
	"USDT": "tether",
}

// Config contains the plugin's parameters.
type Config struct {
	APIURL string `envconfig:"COINGECKO_API_URL" default:"https://api.coingecko.com/api/v3"`
	// Fiats are quoted when the hints name no fiat currency.
	Fiats []string `envconfig:"COINGECKO_FIATS" default:"iso:USD"`
}

// LoadConfig reads Config from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	for _, fiat := range cfg.Fiats {
		if !strings.HasPrefix(fiat, fiatPrefix) {
			return nil, fmt.Errorf("COINGECKO_FIATS entry %q must start with %q", fiat, fiatPrefix)
		}
	}
	return cfg, nil
}

// Plugin implements plugin.ExchangePlugin.
type Plugin struct {
	cfg    Config
	client *client.CoinGeckoClient
	log    *zap.Logger
}

var _ plugin.ExchangePlugin = (*Plugin)(nil)

// NewFactory returns a factory that builds the plugin on the context's fetch.
func NewFactory(cfg Config) plugin.ExchangePluginFactory {
	return func(ctx context.Context, io platform.IO) (plugin.ExchangePlugin, error) {
		return New(cfg, io), nil
	}
}

// New builds the plugin directly.
func New(cfg Config, io platform.IO) *Plugin {
	if len(cfg.Fiats) == 0 {
		cfg.Fiats = []string{fiatPrefix + "USD"}
	}
	return &Plugin{
		cfg:    cfg,
		client: client.NewCoinGeckoClient(cfg.APIURL, io.Fetch),
		log:    io.Log.Named(exchangeName),
	}
}

func (p *Plugin) ExchangeInfo() plugin.ExchangeInfo {
	return plugin.ExchangeInfo{ExchangeName: exchangeName}
}

// FetchExchangeRates quotes every known crypto currency in the hints
// against every fiat in the hints. Without crypto hints all known coins are
// quoted; without fiat hints the configured fiats are.
func (p *Plugin) FetchExchangeRates(ctx context.Context, hints []abc.ExchangePairHint) ([]abc.ExchangePair, error) {
	cryptos := make(map[string]bool)
	fiats := make(map[string]bool)
	for _, h := range hints {
		for _, code := range []string{h.FromCurrency, h.ToCurrency} {
			if strings.HasPrefix(code, fiatPrefix) {
				fiats[code] = true
			} else if _, ok := coinIDs[code]; ok {
				cryptos[code] = true
			}
		}
	}
	if len(cryptos) == 0 {
		for code := range coinIDs {
			cryptos[code] = true
		}
	}
	if len(fiats) == 0 {
		for _, fiat := range p.cfg.Fiats {
			fiats[fiat] = true
		}
	}

	codes := slices.Sorted(maps.Keys(cryptos))
	quotes := slices.Sorted(maps.Keys(fiats))
	ids := make([]string, len(codes))
	for i, code := range codes {
		ids[i] = coinIDs[code]
	}
	vs := make([]string, len(quotes))
	for i, fiat := range quotes {
		vs[i] = strings.ToLower(strings.TrimPrefix(fiat, fiatPrefix))
	}

	prices, err := p.client.SimplePrice(ctx, ids, vs)
	if err != nil {
		return nil, fmt.Errorf("failed to get rates: %w", err)
	}

	var pairs []abc.ExchangePair
	for i, code := range codes {
		for j, fiat := range quotes {
			rate, ok := prices[ids[i]][vs[j]]
			if !ok || rate <= 0 {
				continue
			}
			pairs = append(pairs, abc.ExchangePair{FromCurrency: code, ToCurrency: fiat, Rate: rate})
		}
	}
	p.log.Debug("rates fetched", zap.Int("pairs", len(pairs)))
	return pairs, nil
}
