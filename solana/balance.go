package solana

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AlexZinkM/abc-core/abc"
)

func (e *Engine) syncHeight(ctx context.Context) error {
	slot, err := e.chain.Slot(ctx)
	if err != nil {
		return fmt.Errorf("failed to get slot: %w", err)
	}

	e.mu.Lock()
	changed := slot != e.height
	e.height = slot
	e.mu.Unlock()
	if changed {
		e.callbacks.OnBlockHeightChanged(slot)
	}
	return nil
}

// syncBalances gets SOL (lamports) and enabled token balances (smallest
// unit) and reports the ones that moved.
func (e *Engine) syncBalances(ctx context.Context) error {
	fresh := make(map[string]uint64)

	lamports, err := e.chain.Balance(ctx, e.owner)
	if err != nil {
		return fmt.Errorf("failed to get SOL balance: %w", err)
	}
	fresh[currencyCode] = lamports

	for _, t := range e.enabledTokens() {
		amount, err := e.chain.TokenBalance(ctx, e.owner, t.Mint)
		if err != nil {
			return fmt.Errorf("failed to get %s balance: %w", t.Code, err)
		}
		fresh[t.Code] = amount
	}

	var changed []string
	e.mu.Lock()
	for code, amount := range fresh {
		if old, ok := e.balances[code]; !ok || old != amount {
			e.balances[code] = amount
			changed = append(changed, code)
		}
	}
	e.mu.Unlock()

	slices.Sort(changed)
	for _, code := range changed {
		e.callbacks.OnBalanceChanged(code, strconv.FormatUint(fresh[code], 10))
	}
	return nil
}

// GetBalance returns the last synced balance in the smallest unit.
func (e *Engine) GetBalance(opts abc.CurrencyCodeOptions) (string, error) {
	code := strings.ToUpper(opts.CurrencyCode)
	if code == "" {
		code = currencyCode
	}
	if _, err := e.plugin.decimals(code); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return strconv.FormatUint(e.balances[code], 10), nil
}
