// Package dispatch loads currency plugins, runs one engine per active wallet
// and forwards engine events to the account's callbacks.
package dispatch

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

// PluginSet is the set of plugins built for one context. Plugins load in
// the background; lookups either wait for loading or report it unfinished.
type PluginSet struct {
	done chan struct{}
	log  *zap.Logger

	// Written once before done is closed.
	currency  []plugin.CurrencyPlugin
	byType    map[string]plugin.CurrencyPlugin
	exchanges []plugin.ExchangePlugin
}

// LoadPlugins starts building every factory concurrently. A factory that
// fails, or a plugin whose currency info does not match the schema, is
// reported to onError and left out.
func LoadPlugins(
	ctx context.Context,
	io platform.IO,
	currency map[string]plugin.CurrencyPluginFactory,
	exchange map[string]plugin.ExchangePluginFactory,
	onError func(error),
) *PluginSet {
	if onError == nil {
		onError = func(error) {}
	}
	s := &PluginSet{
		done:   make(chan struct{}),
		log:    io.Log.Named("plugins"),
		byType: make(map[string]plugin.CurrencyPlugin),
	}
	go s.load(ctx, io, currency, exchange, onError)
	return s
}

func (s *PluginSet) load(
	ctx context.Context,
	io platform.IO,
	currency map[string]plugin.CurrencyPluginFactory,
	exchange map[string]plugin.ExchangePluginFactory,
	onError func(error),
) {
	defer close(s.done)

	currencyNames := slices.Sorted(maps.Keys(currency))
	exchangeNames := slices.Sorted(maps.Keys(exchange))
	currencyOut := make([]plugin.CurrencyPlugin, len(currencyNames))
	exchangeOut := make([]plugin.ExchangePlugin, len(exchangeNames))

	var (
		g        errgroup.Group
		errMu    sync.Mutex
		failures []error
	)
	fail := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		failures = append(failures, err)
	}

	for i, name := range currencyNames {
		g.Go(func() error {
			p, err := currency[name](ctx, io)
			if err != nil {
				fail(fmt.Errorf("failed to load currency plugin %s: %w", name, err))
				return nil
			}
			if err := plugin.ValidateCurrencyInfo(p.CurrencyInfo()); err != nil {
				fail(&abc.ValidationError{Message: "currency plugin " + name, Err: err})
				return nil
			}
			currencyOut[i] = p
			return nil
		})
	}
	for i, name := range exchangeNames {
		g.Go(func() error {
			p, err := exchange[name](ctx, io)
			if err != nil {
				fail(fmt.Errorf("failed to load exchange plugin %s: %w", name, err))
				return nil
			}
			exchangeOut[i] = p
			return nil
		})
	}
	g.Wait()

	for i, p := range currencyOut {
		if p == nil {
			continue
		}
		s.currency = append(s.currency, p)
		for _, walletType := range p.CurrencyInfo().WalletTypes {
			if prev, ok := s.byType[walletType]; ok {
				s.log.Warn("wallet type claimed twice",
					zap.String("wallet_type", walletType),
					zap.String("kept", prev.PluginName()),
					zap.String("ignored", currencyNames[i]))
				continue
			}
			s.byType[walletType] = p
		}
	}
	for _, p := range exchangeOut {
		if p != nil {
			s.exchanges = append(s.exchanges, p)
		}
	}

	for _, err := range failures {
		s.log.Warn("plugin rejected", zap.Error(err))
		onError(err)
	}
	s.log.Info("plugins loaded",
		zap.Int("currency", len(s.currency)),
		zap.Int("exchange", len(s.exchanges)))
}

// Done is closed once loading has finished.
func (s *PluginSet) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until loading has finished.
func (s *PluginSet) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrencyPlugins returns the loaded currency plugins sorted by name.
func (s *PluginSet) CurrencyPlugins(ctx context.Context) ([]plugin.CurrencyPlugin, error) {
	if err := s.Wait(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.currency), nil
}

// ExchangePlugins returns the loaded exchange plugins sorted by name.
func (s *PluginSet) ExchangePlugins(ctx context.Context) ([]plugin.ExchangePlugin, error) {
	if err := s.Wait(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.exchanges), nil
}

// ForType waits for loading and returns the plugin serving walletType.
func (s *PluginSet) ForType(ctx context.Context, walletType string) (plugin.CurrencyPlugin, error) {
	if err := s.Wait(ctx); err != nil {
		return nil, err
	}
	p, ok := s.byType[walletType]
	if !ok {
		return nil, &abc.NotFoundError{Kind: "currency plugin", ID: walletType}
	}
	return p, nil
}

// lookup returns the plugin for walletType without waiting. ok is false
// while loading or when no plugin serves the type.
func (s *PluginSet) lookup(walletType string) (p plugin.CurrencyPlugin, ok bool) {
	select {
	case <-s.done:
		p, ok = s.byType[walletType]
		return p, ok
	default:
		return nil, false
	}
}
