// Package solana is a currency plugin for SOL and SPL tokens.
package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/client"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

const (
	pluginName   = "solana"
	walletType   = "wallet:solana"
	currencyCode = "SOL"
	solDecimals  = 9

	usdcMintAddressMainnet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" // USDC mint address on Solana mainnet (does not work on devnet/testnet)
	usdcDecimals           = 6                                              // USDC always has 6 decimals
)

// Chain is the RPC surface the engine syncs and spends through.
// *client.SolanaClient implements it.
type Chain interface {
	Slot(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	Signatures(ctx context.Context, owner solana.PublicKey, tokens []client.SolanaToken, limit int) ([]solana.Signature, error)
	Transaction(ctx context.Context, sig solana.Signature, owner solana.PublicKey, tokens []client.SolanaToken) (*abc.Transaction, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

var _ Chain = (*client.SolanaClient)(nil)

// splToken is an SPL token the plugin knows about.
type splToken struct {
	code     string
	mint     solana.PublicKey
	decimals int
}

// Plugin implements plugin.CurrencyPlugin for Solana.
type Plugin struct {
	cfg    Config
	chain  Chain
	random platform.RandomFunc
	log    *zap.Logger
	info   abc.CurrencyInfo
	tokens map[string]splToken
}

var _ plugin.CurrencyPlugin = (*Plugin)(nil)

// NewFactory returns a factory for the plugin. A nil chain talks to
// cfg.RPCURL.
func NewFactory(cfg Config, chain Chain) plugin.CurrencyPluginFactory {
	return func(ctx context.Context, io platform.IO) (plugin.CurrencyPlugin, error) {
		return New(cfg, chain, io)
	}
}

// New builds the plugin directly.
func New(cfg Config, chain Chain, io platform.IO) (*Plugin, error) {
	if cfg.PollInterval <= 0 || cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("solana: poll interval and history limit must be positive")
	}
	if chain == nil {
		chain = client.NewSolanaClient(cfg.RPCURL)
	}
	usdcMint, err := solana.PublicKeyFromBase58(usdcMintAddressMainnet)
	if err != nil {
		return nil, fmt.Errorf("invalid USDC mint address: %w", err)
	}

	p := &Plugin{
		cfg:    cfg,
		chain:  chain,
		random: io.Random,
		log:    io.Log.Named(pluginName),
		tokens: map[string]splToken{
			"USDC": {code: "USDC", mint: usdcMint, decimals: usdcDecimals},
		},
	}
	p.info = abc.CurrencyInfo{
		WalletTypes:         []string{walletType},
		CurrencyName:        "Solana",
		CurrencyCode:        currencyCode,
		AddressExplorer:     "https://explorer.solana.com/address/%s",
		TransactionExplorer: "https://explorer.solana.com/tx/%s",
		DefaultSettings: map[string]any{
			"rpcUrl":        cfg.RPCURL,
			"enabledTokens": []string{},
		},
		Denominations: []abc.Denomination{
			{Name: "SOL", Multiplier: "1000000000", Symbol: "◎"},
			{Name: "lamports", Multiplier: "1"},
		},
		SymbolImage: "https://assets.coingecko.com/coins/images/4128/small/solana.png",
		MetaTokens: []abc.MetaToken{{
			CurrencyCode:    "USDC",
			CurrencyName:    "USD Coin",
			Denominations:   []abc.Denomination{{Name: "USDC", Multiplier: "1000000", Symbol: "$"}},
			ContractAddress: usdcMintAddressMainnet,
			SymbolImage:     "https://assets.coingecko.com/coins/images/6319/small/usdc.png",
		}},
	}
	return p, nil
}

func (p *Plugin) PluginName() string { return pluginName }

func (p *Plugin) CurrencyInfo() abc.CurrencyInfo { return p.info }

// decimals returns the precision of a currency code the plugin serves.
func (p *Plugin) decimals(code string) (int, error) {
	if code == "" || code == currencyCode {
		return solDecimals, nil
	}
	if t, ok := p.tokens[code]; ok {
		return t.decimals, nil
	}
	return 0, &abc.ValidationError{Message: fmt.Sprintf("unsupported currency code %q", code)}
}

// tokenByMint finds a known token by its mint address.
func (p *Plugin) tokenByMint(mint string) (splToken, bool) {
	for _, t := range p.tokens {
		if t.mint.String() == mint {
			return t, true
		}
	}
	return splToken{}, false
}

// MakeEngine creates an engine for one wallet. The engine does no network
// work until StartEngine.
func (p *Plugin) MakeEngine(ctx context.Context, info abc.WalletInfo, opts plugin.MakeEngineOptions) (plugin.CurrencyEngine, error) {
	if info.Type != walletType {
		return nil, &abc.ValidationError{Message: fmt.Sprintf("solana cannot run wallet type %q", info.Type)}
	}
	owner, private, err := walletKeys(info)
	if err != nil {
		return nil, err
	}
	e := newEngine(p, info, owner, private, opts)
	if err := e.loadTransactions(ctx); err != nil {
		p.log.Warn("failed to load saved transactions", zap.String("wallet_id", info.ID), zap.Error(err))
	}
	return e, nil
}
