// Package plugin defines the contract between the core and currency or
// exchange-rate plugins.
package plugin

import (
	"context"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/platform"
)

// CurrencyPlugin serves one currency. Everything except MakeEngine is pure.
type CurrencyPlugin interface {
	PluginName() string
	CurrencyInfo() abc.CurrencyInfo

	// CreatePrivateKey makes fresh key material for a new wallet of walletType.
	CreatePrivateKey(walletType string) (map[string]any, error)
	// DerivePublicKey returns the public keys for a wallet's private keys.
	DerivePublicKey(info abc.WalletInfo) (map[string]any, error)

	ParseURI(uri string) (abc.ParsedURI, error)
	EncodeURI(obj abc.EncodeURI) (string, error)

	MakeEngine(ctx context.Context, info abc.WalletInfo, opts MakeEngineOptions) (CurrencyEngine, error)
}

// CurrencyEngine syncs and spends from one wallet.
//
// StartEngine and KillEngine must be idempotent: starting a running engine
// or killing a stopped one is a no-op.
type CurrencyEngine interface {
	UpdateSettings(settings map[string]any)
	StartEngine(ctx context.Context) error
	KillEngine(ctx context.Context) error
	ResyncBlockchain(ctx context.Context) error

	GetBlockHeight() uint64
	EnableTokens(ctx context.Context, tokens []string) error
	DisableTokens(ctx context.Context, tokens []string) error
	GetTokenStatus(token string) bool
	GetBalance(opts abc.CurrencyCodeOptions) (string, error)
	GetNumTransactions(opts abc.CurrencyCodeOptions) (int, error)
	GetTransactions(ctx context.Context, opts abc.TransactionsOptions) ([]abc.Transaction, error)
	GetFreshAddress(opts abc.CurrencyCodeOptions) (abc.FreshAddress, error)
	AddGapLimitAddresses(addresses []string) error
	IsAddressUsed(address string) (bool, error)

	MakeSpend(ctx context.Context, spend abc.SpendInfo) (*abc.Transaction, error)
	SignTx(ctx context.Context, tx *abc.Transaction) (*abc.Transaction, error)
	BroadcastTx(ctx context.Context, tx *abc.Transaction) (*abc.Transaction, error)
	SaveTx(ctx context.Context, tx *abc.Transaction) error

	DumpData() abc.DataDump
}

// EngineCallbacks receives events from one engine. The dispatcher binds a
// separate set to every wallet, so no wallet id is passed.
type EngineCallbacks interface {
	OnAddressesChecked(progress float64)
	OnBalanceChanged(currencyCode, nativeBalance string)
	OnBlockHeightChanged(height uint64)
	OnTransactionsChanged(txs []abc.Transaction)
	OnTxidsChanged(txids []string)
}

// MakeEngineOptions are handed to MakeEngine.
type MakeEngineOptions struct {
	// WalletLocalFolder is storage private to this wallet on this device.
	WalletLocalFolder platform.Folder
	Callbacks         EngineCallbacks
	OptionalSettings  map[string]any
}

// CurrencyPluginFactory builds a plugin from the context's IO.
type CurrencyPluginFactory func(ctx context.Context, io platform.IO) (CurrencyPlugin, error)

// ExchangeInfo names an exchange-rate source.
type ExchangeInfo struct {
	ExchangeName string `json:"exchangeName"`
}

// ExchangePlugin reports exchange rates.
type ExchangePlugin interface {
	ExchangeInfo() ExchangeInfo
	// FetchExchangeRates returns whatever rates the source has. The hints
	// say which pairs the caller wants; sources may ignore them.
	FetchExchangeRates(ctx context.Context, hints []abc.ExchangePairHint) ([]abc.ExchangePair, error)
}

// ExchangePluginFactory builds an exchange plugin from the context's IO.
type ExchangePluginFactory func(ctx context.Context, io platform.IO) (ExchangePlugin, error)
