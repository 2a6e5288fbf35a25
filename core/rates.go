package core

import (
	"context"
	"errors"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
)

// GetExchangeSwapRate returns how many units of to one unit of from buys.
// It uses a direct or inverse pair from any exchange plugin, or one hop
// through a shared currency.
func (c *Context) GetExchangeSwapRate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	exchanges, err := c.plugins.ExchangePlugins(ctx)
	if err != nil {
		return 0, err
	}

	hints := []abc.ExchangePairHint{{FromCurrency: from, ToCurrency: to}}
	rates := make(map[string]map[string]float64)
	add := func(a, b string, rate float64) {
		if rates[a] == nil {
			rates[a] = make(map[string]float64)
		}
		if _, ok := rates[a][b]; !ok {
			rates[a][b] = rate
		}
	}

	var errs []error
	for _, ex := range exchanges {
		pairs, err := ex.FetchExchangeRates(ctx, hints)
		if err != nil {
			c.log.Warn("exchange rates failed", zap.String("exchange", ex.ExchangeInfo().ExchangeName), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		for _, p := range pairs {
			if p.Rate <= 0 {
				continue
			}
			add(p.FromCurrency, p.ToCurrency, p.Rate)
			add(p.ToCurrency, p.FromCurrency, 1/p.Rate)
		}
	}

	if rate, ok := rates[from][to]; ok {
		return rate, nil
	}
	for _, mid := range slices.Sorted(maps.Keys(rates[from])) {
		if second, ok := rates[mid][to]; ok {
			return rates[from][mid] * second, nil
		}
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return 0, &abc.NotFoundError{Kind: "exchange rate", ID: from + "/" + to}
}
