package solana

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/client"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

// Engine syncs one Solana wallet by polling the RPC node.
type Engine struct {
	plugin    *Plugin
	chain     Chain
	info      abc.WalletInfo
	owner     solana.PublicKey
	private   solana.PrivateKey
	callbacks plugin.EngineCallbacks
	folder    platform.Folder
	log       *zap.Logger

	// syncMu serializes sync passes from the poll loop and ResyncBlockchain.
	syncMu sync.Mutex

	mu       sync.Mutex
	settings map[string]any
	enabled  map[string]bool
	height   uint64
	balances map[string]uint64
	txs      map[string]abc.Transaction
	// signatures that do not move this wallet's funds
	ignored map[string]bool
	checked bool

	cancel context.CancelFunc
	done   chan struct{}
}

var _ plugin.CurrencyEngine = (*Engine)(nil)

func newEngine(p *Plugin, info abc.WalletInfo, owner solana.PublicKey, private solana.PrivateKey, opts plugin.MakeEngineOptions) *Engine {
	folder := opts.WalletLocalFolder
	if folder == nil {
		folder = platform.NewMemoryFolder()
	}
	callbacks := opts.Callbacks
	if callbacks == nil {
		callbacks = noCallbacks{}
	}
	e := &Engine{
		plugin:    p,
		chain:     p.chain,
		info:      info,
		owner:     owner,
		private:   private,
		callbacks: callbacks,
		folder:    folder,
		log:       p.log.With(zap.String("wallet_id", info.ID)),
		settings:  maps.Clone(p.info.DefaultSettings),
		enabled:   make(map[string]bool),
		balances:  make(map[string]uint64),
		txs:       make(map[string]abc.Transaction),
		ignored:   make(map[string]bool),
	}
	e.UpdateSettings(opts.OptionalSettings)
	return e
}

// UpdateSettings merges settings into the engine's. "enabledTokens"
// replaces the set of tracked tokens.
func (e *Engine) UpdateSettings(settings map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range settings {
		e.settings[k] = v
	}
	if codes, ok := settings["enabledTokens"]; ok {
		clear(e.enabled)
		for _, code := range toStrings(codes) {
			if _, known := e.plugin.tokens[code]; known {
				e.enabled[code] = true
			}
		}
	}
}

// StartEngine starts the poll loop. Starting a running engine is a no-op.
func (e *Engine) StartEngine(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(loopCtx, e.done)
	e.log.Info("engine started", zap.String("address", e.owner.String()))
	return nil
}

// KillEngine stops the poll loop and waits for the running pass to end.
// Killing a stopped engine is a no-op.
func (e *Engine) KillEngine(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		e.log.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop engine: %w", ctx.Err())
	}
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.plugin.cfg.PollInterval)
	defer ticker.Stop()
	for {
		e.sync(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sync runs one pass. Failures are logged and retried on the next tick.
func (e *Engine) sync(ctx context.Context) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	if err := e.syncHeight(ctx); err != nil {
		e.logSyncError(ctx, "block height", err)
		return
	}
	if err := e.syncBalances(ctx); err != nil {
		e.logSyncError(ctx, "balances", err)
		return
	}
	if err := e.syncTransactions(ctx); err != nil {
		e.logSyncError(ctx, "transactions", err)
		return
	}

	e.mu.Lock()
	first := !e.checked
	e.checked = true
	e.mu.Unlock()
	if first {
		e.callbacks.OnAddressesChecked(1)
	}
}

func (e *Engine) logSyncError(ctx context.Context, what string, err error) {
	if ctx.Err() != nil {
		return
	}
	e.log.Warn("sync failed", zap.String("stage", what), zap.Error(err))
}

// ResyncBlockchain forgets everything synced so far and syncs again.
func (e *Engine) ResyncBlockchain(ctx context.Context) error {
	e.syncMu.Lock()
	e.mu.Lock()
	e.height = 0
	clear(e.balances)
	clear(e.txs)
	clear(e.ignored)
	e.checked = false
	e.mu.Unlock()
	err := e.folder.File(txFile).Delete(ctx)
	e.syncMu.Unlock()
	if err != nil && !platform.IsNotExist(err) {
		return &abc.StorageError{Op: "delete transactions", Err: err}
	}

	e.sync(ctx)
	return nil
}

func (e *Engine) GetBlockHeight() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

// EnableTokens starts tracking the given SPL tokens.
func (e *Engine) EnableTokens(ctx context.Context, tokens []string) error {
	return e.setTokens(tokens, true)
}

// DisableTokens stops tracking the given SPL tokens.
func (e *Engine) DisableTokens(ctx context.Context, tokens []string) error {
	return e.setTokens(tokens, false)
}

func (e *Engine) setTokens(codes []string, on bool) error {
	for _, code := range codes {
		if _, ok := e.plugin.tokens[code]; !ok {
			return &abc.ValidationError{Message: fmt.Sprintf("unsupported token %q", code)}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, code := range codes {
		if on {
			e.enabled[code] = true
		} else {
			delete(e.enabled, code)
		}
	}
	e.settings["enabledTokens"] = slices.Sorted(maps.Keys(e.enabled))
	return nil
}

func (e *Engine) GetTokenStatus(code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled[code]
}

// enabledTokens lists tracked tokens in code order.
func (e *Engine) enabledTokens() []client.SolanaToken {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]client.SolanaToken, 0, len(e.enabled))
	for _, code := range slices.Sorted(maps.Keys(e.enabled)) {
		t := e.plugin.tokens[code]
		out = append(out, client.SolanaToken{Code: t.code, Mint: t.mint})
	}
	return out
}

// GetFreshAddress returns the wallet's only address.
func (e *Engine) GetFreshAddress(opts abc.CurrencyCodeOptions) (abc.FreshAddress, error) {
	if _, err := e.plugin.decimals(opts.CurrencyCode); err != nil {
		return abc.FreshAddress{}, err
	}
	return abc.FreshAddress{PublicAddress: e.owner.String()}, nil
}

// AddGapLimitAddresses is a no-op: a Solana wallet has one address.
func (e *Engine) AddGapLimitAddresses(addresses []string) error {
	return nil
}

// IsAddressUsed reports whether the wallet's address has any history.
func (e *Engine) IsAddressUsed(address string) (bool, error) {
	if !isValidSolanaAddress(address) {
		return false, &abc.ValidationError{Message: fmt.Sprintf("invalid Solana address %q", address)}
	}
	if address != e.owner.String() {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.txs) > 0, nil
}

func (e *Engine) DumpData() abc.DataDump {
	e.mu.Lock()
	defer e.mu.Unlock()
	balances := make(map[string]string, len(e.balances))
	for code, v := range e.balances {
		balances[code] = fmt.Sprint(v)
	}
	return abc.DataDump{
		WalletID:   e.info.ID,
		WalletType: e.info.Type,
		PluginType: pluginName,
		Data: map[string]any{
			"address":       e.owner.String(),
			"blockHeight":   e.height,
			"balances":      balances,
			"txCount":       len(e.txs),
			"enabledTokens": slices.Sorted(maps.Keys(e.enabled)),
			"settings":      maps.Clone(e.settings),
			"watchOnly":     e.private == nil,
		},
	}
}

// toStrings reads a string list from decoded settings.
func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type noCallbacks struct{}

func (noCallbacks) OnAddressesChecked(float64)              {}
func (noCallbacks) OnBalanceChanged(string, string)         {}
func (noCallbacks) OnBlockHeightChanged(uint64)             {}
func (noCallbacks) OnTransactionsChanged([]abc.Transaction) {}
func (noCallbacks) OnTxidsChanged([]string)                 {}
