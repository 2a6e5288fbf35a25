package dispatch_test

import (
	"context"
	"errors"
	"sync"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

type fakePlugin struct {
	name       string
	walletType string
	badInfo    bool

	// With gate set, the first MakeEngine call sends its wallet id to
	// entered and waits for gate to close.
	gate    chan struct{}
	entered chan string

	mu        sync.Mutex
	engines   map[string]*fakeEngine
	failStart int
}

func newFakePlugin(name, walletType string) *fakePlugin {
	return &fakePlugin{name: name, walletType: walletType, engines: make(map[string]*fakeEngine)}
}

func (p *fakePlugin) factory() plugin.CurrencyPluginFactory {
	return func(context.Context, platform.IO) (plugin.CurrencyPlugin, error) { return p, nil }
}

func (p *fakePlugin) PluginName() string { return p.name }

func (p *fakePlugin) CurrencyInfo() abc.CurrencyInfo {
	info := abc.CurrencyInfo{
		WalletTypes:         []string{p.walletType},
		CurrencyCode:        "FAKE",
		CurrencyName:        "Fake",
		AddressExplorer:     "",
		TransactionExplorer: "",
		DefaultSettings:     map[string]any{},
		Denominations:       []abc.Denomination{{Name: "FAKE", Multiplier: "100"}},
		SymbolImage:         "",
	}
	if p.badInfo {
		info.Denominations = nil
	}
	return info
}

func (p *fakePlugin) CreatePrivateKey(string) (map[string]any, error) {
	return map[string]any{"key": "private"}, nil
}

func (p *fakePlugin) DerivePublicKey(abc.WalletInfo) (map[string]any, error) {
	return map[string]any{"key": "public"}, nil
}

func (p *fakePlugin) ParseURI(string) (abc.ParsedURI, error) { return abc.ParsedURI{}, nil }

func (p *fakePlugin) EncodeURI(abc.EncodeURI) (string, error) { return "", nil }

func (p *fakePlugin) MakeEngine(_ context.Context, info abc.WalletInfo, opts plugin.MakeEngineOptions) (plugin.CurrencyEngine, error) {
	if p.gate != nil {
		select {
		case p.entered <- info.ID:
			<-p.gate
		default:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e := &fakeEngine{walletID: info.ID, callbacks: opts.Callbacks, folder: opts.WalletLocalFolder}
	if p.failStart > 0 {
		p.failStart--
		e.startErr = errors.New("node unreachable")
	}
	p.engines[info.ID] = e
	return e, nil
}

func (p *fakePlugin) engine(walletID string) *fakeEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engines[walletID]
}

type fakeEngine struct {
	walletID  string
	callbacks plugin.EngineCallbacks
	folder    platform.Folder
	startErr  error

	mu     sync.Mutex
	starts int
	kills  int
}

func (e *fakeEngine) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts, e.kills
}

func (e *fakeEngine) UpdateSettings(map[string]any) {}

func (e *fakeEngine) StartEngine(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	return e.startErr
}

func (e *fakeEngine) KillEngine(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kills++
	return nil
}

func (e *fakeEngine) ResyncBlockchain(context.Context) error                  { return nil }
func (e *fakeEngine) GetBlockHeight() uint64                                  { return 0 }
func (e *fakeEngine) EnableTokens(context.Context, []string) error            { return nil }
func (e *fakeEngine) DisableTokens(context.Context, []string) error           { return nil }
func (e *fakeEngine) GetTokenStatus(string) bool                              { return false }
func (e *fakeEngine) GetBalance(abc.CurrencyCodeOptions) (string, error)      { return "0", nil }
func (e *fakeEngine) GetNumTransactions(abc.CurrencyCodeOptions) (int, error) { return 0, nil }
func (e *fakeEngine) GetTransactions(context.Context, abc.TransactionsOptions) ([]abc.Transaction, error) {
	return nil, nil
}
func (e *fakeEngine) GetFreshAddress(abc.CurrencyCodeOptions) (abc.FreshAddress, error) {
	return abc.FreshAddress{}, nil
}
func (e *fakeEngine) AddGapLimitAddresses([]string) error { return nil }
func (e *fakeEngine) IsAddressUsed(string) (bool, error)  { return false, nil }
func (e *fakeEngine) MakeSpend(context.Context, abc.SpendInfo) (*abc.Transaction, error) {
	return nil, nil
}
func (e *fakeEngine) SignTx(_ context.Context, tx *abc.Transaction) (*abc.Transaction, error) {
	return tx, nil
}
func (e *fakeEngine) BroadcastTx(_ context.Context, tx *abc.Transaction) (*abc.Transaction, error) {
	return tx, nil
}
func (e *fakeEngine) SaveTx(context.Context, *abc.Transaction) error { return nil }
func (e *fakeEngine) DumpData() abc.DataDump                         { return abc.DataDump{WalletID: e.walletID} }

// recorder collects account events as strings.
type recorder struct {
	abc.NoopCallbacks

	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) OnBalanceChanged(walletID, currencyCode, balance string) {
	r.add("balance " + walletID + " " + currencyCode + " " + balance)
}

func (r *recorder) OnBlockHeightChanged(walletID string, height uint64) {
	r.add("height " + walletID)
}

func (r *recorder) OnNewTransactions(walletID string, txs []abc.Transaction) {
	for _, tx := range txs {
		r.add("new " + walletID + " " + tx.TxID)
	}
}

func (r *recorder) OnTransactionsChanged(walletID string, txs []abc.Transaction) {
	for _, tx := range txs {
		r.add("changed " + walletID + " " + tx.TxID)
	}
}

func (r *recorder) OnTxidsChanged(walletID string, txids []string) {
	r.add("txids " + walletID)
}

func (r *recorder) OnAddressesChecked(walletID string, progress float64) {
	r.add("checked " + walletID)
}
