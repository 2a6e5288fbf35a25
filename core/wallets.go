package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/login"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/registry"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

const walletBoxFile = "walletBox.json"

// walletStore keeps the wallet list encrypted with the login key, on the
// server and in the account folder.
type walletStore struct {
	logins  *login.Manager
	session *login.Session
	random  platform.RandomFunc
	folder  platform.Folder
}

var _ registry.Store = (*walletStore)(nil)

// Load prefers the list received at login and falls back to the local
// copy. A list that does not open with the login key is an error.
func (s *walletStore) Load(ctx context.Context) ([]abc.WalletInfoFull, error) {
	loginKey := s.session.LoginKey()
	if loginKey == nil {
		return nil, abc.ErrLoggedOut
	}
	defer clear(loginKey)

	box := s.session.WalletBox()
	if box == nil {
		raw, err := s.folder.File(walletBoxFile).GetData(ctx)
		if err != nil {
			if platform.IsNotExist(err) {
				return nil, nil
			}
			return nil, &abc.StorageError{Op: "read wallet list", Err: err}
		}
		box = &model.EncryptedBox{}
		if err := json.Unmarshal(raw, box); err != nil {
			return nil, &abc.StorageError{Op: "decode wallet list", Err: err}
		}
	}

	var wallets []abc.WalletInfoFull
	if err := crypto.DecryptJSON(box, loginKey, &wallets); err != nil {
		return nil, &abc.StorageError{Op: "open wallet list", Err: err}
	}
	return wallets, nil
}

func (s *walletStore) Save(ctx context.Context, wallets []abc.WalletInfoFull) error {
	loginKey := s.session.LoginKey()
	if loginKey == nil {
		return abc.ErrLoggedOut
	}
	defer clear(loginKey)

	box, err := crypto.EncryptJSON(s.random, wallets, loginKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt wallet list: %w", err)
	}
	if err := s.logins.SaveWallets(ctx, s.session, box); err != nil {
		return err
	}

	raw, err := json.Marshal(box)
	if err != nil {
		return fmt.Errorf("failed to encode wallet list: %w", err)
	}
	return s.folder.File(walletBoxFile).SetData(ctx, raw)
}

// CurrencyWallet is an active wallet and its engine.
type CurrencyWallet struct {
	account *Account
	info    abc.WalletInfo
}

func (w *CurrencyWallet) ID() string   { return w.info.ID }
func (w *CurrencyWallet) Type() string { return w.info.Type }

// Keys returns the wallet's key material.
func (w *CurrencyWallet) Keys() map[string]any { return w.info.Keys }

// engine returns the running engine. Wallets whose engine is starting,
// waiting for a plugin, or failed to start have none.
func (w *CurrencyWallet) engine() (plugin.CurrencyEngine, error) {
	if err := w.account.checkLoggedIn(); err != nil {
		return nil, err
	}
	e, ok := w.account.engines.Engine(w.info.ID)
	if !ok {
		return nil, &abc.NotFoundError{Kind: "running engine", ID: w.info.ID}
	}
	return e, nil
}

func (w *CurrencyWallet) currencyPlugin(ctx context.Context) (plugin.CurrencyPlugin, error) {
	return w.account.ctx.plugins.ForType(ctx, w.info.Type)
}

// CurrencyInfo describes the wallet's currency.
func (w *CurrencyWallet) CurrencyInfo(ctx context.Context) (abc.CurrencyInfo, error) {
	p, err := w.currencyPlugin(ctx)
	if err != nil {
		return abc.CurrencyInfo{}, err
	}
	return p.CurrencyInfo(), nil
}

func (w *CurrencyWallet) ParseURI(ctx context.Context, uri string) (abc.ParsedURI, error) {
	p, err := w.currencyPlugin(ctx)
	if err != nil {
		return abc.ParsedURI{}, err
	}
	return p.ParseURI(uri)
}

func (w *CurrencyWallet) EncodeURI(ctx context.Context, obj abc.EncodeURI) (string, error) {
	p, err := w.currencyPlugin(ctx)
	if err != nil {
		return "", err
	}
	return p.EncodeURI(obj)
}

func (w *CurrencyWallet) GetBlockHeight() (uint64, error) {
	e, err := w.engine()
	if err != nil {
		return 0, err
	}
	return e.GetBlockHeight(), nil
}

func (w *CurrencyWallet) GetBalance(opts abc.CurrencyCodeOptions) (string, error) {
	e, err := w.engine()
	if err != nil {
		return "", err
	}
	return e.GetBalance(opts)
}

func (w *CurrencyWallet) GetNumTransactions(opts abc.CurrencyCodeOptions) (int, error) {
	e, err := w.engine()
	if err != nil {
		return 0, err
	}
	return e.GetNumTransactions(opts)
}

func (w *CurrencyWallet) GetTransactions(ctx context.Context, opts abc.TransactionsOptions) ([]abc.Transaction, error) {
	e, err := w.engine()
	if err != nil {
		return nil, err
	}
	return e.GetTransactions(ctx, opts)
}

// GetReceiveAddress returns an address to receive funds on.
func (w *CurrencyWallet) GetReceiveAddress(opts abc.CurrencyCodeOptions) (abc.FreshAddress, error) {
	e, err := w.engine()
	if err != nil {
		return abc.FreshAddress{}, err
	}
	return e.GetFreshAddress(opts)
}

func (w *CurrencyWallet) EnableTokens(ctx context.Context, tokens []string) error {
	e, err := w.engine()
	if err != nil {
		return err
	}
	return e.EnableTokens(ctx, tokens)
}

func (w *CurrencyWallet) DisableTokens(ctx context.Context, tokens []string) error {
	e, err := w.engine()
	if err != nil {
		return err
	}
	return e.DisableTokens(ctx, tokens)
}

func (w *CurrencyWallet) MakeSpend(ctx context.Context, spend abc.SpendInfo) (*abc.Transaction, error) {
	e, err := w.engine()
	if err != nil {
		return nil, err
	}
	return e.MakeSpend(ctx, spend)
}

func (w *CurrencyWallet) SignTx(ctx context.Context, tx *abc.Transaction) (*abc.Transaction, error) {
	e, err := w.engine()
	if err != nil {
		return nil, err
	}
	return e.SignTx(ctx, tx)
}

func (w *CurrencyWallet) BroadcastTx(ctx context.Context, tx *abc.Transaction) (*abc.Transaction, error) {
	e, err := w.engine()
	if err != nil {
		return nil, err
	}
	return e.BroadcastTx(ctx, tx)
}

func (w *CurrencyWallet) SaveTx(ctx context.Context, tx *abc.Transaction) error {
	e, err := w.engine()
	if err != nil {
		return err
	}
	return e.SaveTx(ctx, tx)
}

func (w *CurrencyWallet) ResyncBlockchain(ctx context.Context) error {
	e, err := w.engine()
	if err != nil {
		return err
	}
	return e.ResyncBlockchain(ctx)
}

func (w *CurrencyWallet) DumpData() (abc.DataDump, error) {
	e, err := w.engine()
	if err != nil {
		return abc.DataDump{}, err
	}
	return e.DumpData(), nil
}
