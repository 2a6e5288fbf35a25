package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/dispatch"
	"github.com/AlexZinkM/abc-core/internal/edgelogin"
	"github.com/AlexZinkM/abc-core/internal/login"
	"github.com/AlexZinkM/abc-core/internal/registry"
	"github.com/AlexZinkM/abc-core/platform"
)

// Lobby and LoginRequest are what an approving account sees of an edge
// login request.
type (
	Lobby        = edgelogin.Lobby
	LoginRequest = edgelogin.LoginRequest
)

// Account is a logged-in user. After Logout every method that needs the
// login returns abc.ErrLoggedOut.
type Account struct {
	ctx       *Context
	session   *login.Session
	callbacks abc.AccountCallbacks
	log       *zap.Logger
	folder    platform.Folder
	wallets   *registry.Registry
	engines   *dispatch.Dispatcher

	mu        sync.Mutex
	loggedOut bool
	// startErrs holds the last start failure of wallets activated by a
	// registry change, until CreateCurrencyWallet collects it.
	startErrs map[string]error
	logout    chan struct{}
}

func newAccount(ctx context.Context, c *Context, s *login.Session, callbacks abc.AccountCallbacks) (*Account, error) {
	if callbacks == nil {
		callbacks = abc.NoopCallbacks{}
	}
	a := &Account{
		ctx:       c,
		session:   s,
		callbacks: callbacks,
		log:       c.log.With(zap.String("username", s.Username)),
		folder:    c.accountFolder(s.UserID),
		startErrs: make(map[string]error),
		logout:    make(chan struct{}),
	}
	a.engines = dispatch.New(dispatch.Options{
		Plugins:     c.plugins,
		Callbacks:   callbacks,
		Folder:      a.folder.Folder("wallets"),
		KillTimeout: c.cfg.EngineKillTimeout,
		Log:         c.io.Log,
	})

	wallets, err := registry.New(ctx, registry.Options{
		AppID:    s.AppID,
		Store:    &walletStore{logins: c.logins, session: s, random: c.io.Random, folder: a.folder},
		Log:      c.io.Log.Named("registry"),
		OnChange: a.walletsChanged,
	})
	if err != nil {
		// The dispatcher has started nothing yet.
		_ = a.engines.KillAll(ctx)
		return nil, err
	}
	a.wallets = wallets

	if err := a.engines.Sync(ctx, wallets.ActiveWallets()); err != nil {
		a.log.Warn("some engines failed to start", zap.Error(err))
	}
	return a, nil
}

// walletsChanged runs after every committed wallet list change.
func (a *Account) walletsChanged(ev registry.Event) {
	if a.checkLoggedIn() != nil {
		return
	}
	ctx := context.Background()
	for _, id := range ev.Deactivated {
		if err := a.engines.Kill(ctx, id); err != nil {
			a.log.Warn("failed to stop engine", zap.String("wallet_id", id), zap.Error(err))
		}
	}
	for _, info := range ev.Activated {
		err := a.engines.Start(ctx, info)
		a.mu.Lock()
		if err != nil && !errors.Is(err, dispatch.ErrClosed) {
			a.startErrs[info.ID] = err
		} else {
			delete(a.startErrs, info.ID)
		}
		a.mu.Unlock()
	}
	for _, id := range ev.Changed {
		a.callbacks.OnWalletDataChanged(id)
	}
	if len(ev.Changed) > 0 {
		a.callbacks.OnKeyListChanged()
	}
}

func (a *Account) checkLoggedIn() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loggedOut {
		return abc.ErrLoggedOut
	}
	return nil
}

func (a *Account) AppID() string    { return a.session.AppID }
func (a *Account) Username() string { return a.session.Username }

// LoginKey returns the text form of the login key, for LoginWithKey.
func (a *Account) LoginKey() (string, error) {
	key := a.session.LoginKey()
	if key == nil {
		return "", abc.ErrLoggedOut
	}
	defer clear(key)
	return login.EncodeLoginKey(key), nil
}

// Method reports how the account logged in.
func (a *Account) Method() abc.LoginMethod { return a.session.Method }

func (a *Account) PasswordLogin() bool { return a.session.PasswordLogin() }
func (a *Account) PinLogin() bool      { return a.session.PinLogin() }
func (a *Account) KeyLogin() bool      { return a.session.KeyLogin() }
func (a *Account) RecoveryLogin() bool { return a.session.RecoveryLogin() }
func (a *Account) EdgeLogin() bool     { return a.session.EdgeLogin() }
func (a *Account) NewAccount() bool    { return a.session.NewAccount() }

func (a *Account) IsLoggedIn() bool {
	return a.checkLoggedIn() == nil
}

// Logout refuses new operations, stops every engine, wipes the login key
// and then fires OnLoggedOut. Calls after the first return once the first
// has finished.
func (a *Account) Logout(ctx context.Context) error {
	a.mu.Lock()
	if a.loggedOut {
		a.mu.Unlock()
		select {
		case <-a.logout:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.loggedOut = true
	a.mu.Unlock()
	defer close(a.logout)

	err := a.engines.KillAll(ctx)
	if err != nil {
		a.log.Warn("engines did not stop cleanly", zap.Error(err))
	}
	a.session.Zero()
	a.ctx.forget(a)
	a.callbacks.OnLoggedOut()
	a.log.Info("logged out")
	return err
}

// CheckPassword reports whether password is the account's password.
func (a *Account) CheckPassword(ctx context.Context, password string) (bool, error) {
	if err := a.checkLoggedIn(); err != nil {
		return false, err
	}
	return a.ctx.logins.CheckPassword(ctx, a.session, password)
}

func (a *Account) ChangePassword(ctx context.Context, password string) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.ctx.logins.ChangePassword(ctx, a.session, password)
}

// ChangePIN sets the PIN and enables PIN login on this device.
func (a *Account) ChangePIN(ctx context.Context, pin string) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.ctx.logins.ChangePIN(ctx, a.session, pin)
}

// DisablePINLogin turns PIN login off for this device.
func (a *Account) DisablePINLogin(ctx context.Context) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.ctx.logins.DisablePIN(ctx, a.session)
}

// SetupRecovery2Questions stores recovery questions and returns the
// recovery key the user must keep.
func (a *Account) SetupRecovery2Questions(ctx context.Context, questions, answers []string) (string, error) {
	if err := a.checkLoggedIn(); err != nil {
		return "", err
	}
	return a.ctx.logins.SetupRecovery2(ctx, a.session, questions, answers)
}

// EnableOTP turns OTP on. timeout is the reset window; zero uses the
// server's.
func (a *Account) EnableOTP(ctx context.Context, timeout time.Duration) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.ctx.logins.EnableOTP(ctx, a.session, timeout)
}

func (a *Account) DisableOTP(ctx context.Context) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.ctx.logins.DisableOTP(ctx, a.session)
}

func (a *Account) CancelOTPReset(ctx context.Context) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.ctx.logins.CancelOTPReset(ctx, a.session)
}

// OtpKey is the OTP secret, empty when OTP is off.
func (a *Account) OtpKey() string {
	if a.checkLoggedIn() != nil {
		return ""
	}
	return a.session.OtpKey()
}

// OtpResetDate is set while an OTP reset is pending.
func (a *Account) OtpResetDate() *time.Time {
	if a.checkLoggedIn() != nil {
		return nil
	}
	return a.session.OtpResetDate()
}

// SyncLogin fetches the login from the server and applies changes made
// by other devices. A password change fires OnRemotePasswordChange, new OTP
// settings or a new wallet list fire OnDataChanged, and an OTP check this
// device cannot answer fires OnOTPRequired.
func (a *Account) SyncLogin(ctx context.Context) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	result, err := a.ctx.logins.Sync(ctx, a.session)
	if err != nil {
		if abc.IsOtpRequiredError(err) {
			a.callbacks.OnOTPRequired()
		}
		return err
	}

	if result.WalletsChanged {
		if err := a.wallets.Reload(ctx); err != nil {
			return err
		}
	}
	if result.PasswordChanged {
		a.callbacks.OnRemotePasswordChange()
	}
	if result.OtpChanged || result.WalletsChanged {
		a.callbacks.OnDataChanged()
	}
	return nil
}

// FetchLobby reads an edge login request so this account can approve it.
func (a *Account) FetchLobby(ctx context.Context, lobbyID string) (*Lobby, error) {
	if err := a.checkLoggedIn(); err != nil {
		return nil, err
	}
	return a.ctx.broker.FetchLobby(ctx, lobbyID, a.session)
}

// CreateWallet adds a wallet with the given keys and starts its engine.
// Creating the same wallet again returns its id.
func (a *Account) CreateWallet(ctx context.Context, walletType string, keys map[string]any) (string, error) {
	if err := a.checkLoggedIn(); err != nil {
		return "", err
	}
	return a.wallets.CreateWallet(ctx, walletType, keys)
}

// CreateCurrencyWalletOptions configures CreateCurrencyWallet.
type CreateCurrencyWalletOptions struct {
	// Keys imports existing private keys instead of creating new ones.
	Keys map[string]any
}

// CreateCurrencyWallet creates keys with the plugin for walletType, adds
// the wallet and returns it with its engine running.
func (a *Account) CreateCurrencyWallet(ctx context.Context, walletType string, opts CreateCurrencyWalletOptions) (*CurrencyWallet, error) {
	if err := a.checkLoggedIn(); err != nil {
		return nil, err
	}
	p, err := a.ctx.plugins.ForType(ctx, walletType)
	if err != nil {
		return nil, err
	}

	keys := maps.Clone(opts.Keys)
	if keys == nil {
		keys, err = p.CreatePrivateKey(walletType)
		if err != nil {
			return nil, fmt.Errorf("failed to create private key: %w", err)
		}
	}
	public, err := p.DerivePublicKey(abc.WalletInfo{Type: walletType, Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	maps.Copy(keys, public)

	id, err := a.wallets.CreateWallet(ctx, walletType, keys)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	startErr := a.startErrs[id]
	delete(a.startErrs, id)
	a.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}
	return a.currencyWallet(id)
}

// ChangeWalletStates patches archived, deleted and sort order. Wallets
// that become active get an engine; wallets that stop being active lose it.
func (a *Account) ChangeWalletStates(ctx context.Context, states abc.WalletStates) error {
	if err := a.checkLoggedIn(); err != nil {
		return err
	}
	return a.wallets.ChangeWalletStates(ctx, states)
}

// ChangeKeyStates is ChangeWalletStates under its older name.
func (a *Account) ChangeKeyStates(ctx context.Context, states abc.WalletStates) error {
	return a.ChangeWalletStates(ctx, states)
}

// AllKeys lists every wallet visible to the app, deleted ones included.
// The wallet views are empty once logged out.
func (a *Account) AllKeys() []abc.WalletInfoFull {
	if a.checkLoggedIn() != nil {
		return nil
	}
	return a.wallets.AllKeys()
}

func (a *Account) ListWalletIDs() []string {
	if a.checkLoggedIn() != nil {
		return nil
	}
	return a.wallets.ListWalletIDs()
}

func (a *Account) ActiveWalletIDs() []string {
	if a.checkLoggedIn() != nil {
		return nil
	}
	return a.wallets.ActiveWalletIDs()
}

func (a *Account) ArchivedWalletIDs() []string {
	if a.checkLoggedIn() != nil {
		return nil
	}
	return a.wallets.ArchivedWalletIDs()
}

func (a *Account) GetWalletInfo(id string) (abc.WalletInfo, error) {
	if err := a.checkLoggedIn(); err != nil {
		return abc.WalletInfo{}, err
	}
	return a.wallets.GetWalletInfo(id)
}

func (a *Account) GetFirstWalletInfo(walletType string) (abc.WalletInfo, bool) {
	if a.checkLoggedIn() != nil {
		return abc.WalletInfo{}, false
	}
	return a.wallets.GetFirstWalletInfo(walletType)
}

// CurrencyWallets returns the active wallets keyed by id. Engines that are
// still starting or waiting for their plugin are included.
func (a *Account) CurrencyWallets() map[string]*CurrencyWallet {
	out := make(map[string]*CurrencyWallet)
	if a.checkLoggedIn() != nil {
		return out
	}
	for _, info := range a.wallets.ActiveWallets() {
		out[info.ID] = &CurrencyWallet{account: a, info: info}
	}
	return out
}

func (a *Account) currencyWallet(id string) (*CurrencyWallet, error) {
	info, err := a.wallets.GetWalletInfo(id)
	if err != nil {
		return nil, err
	}
	return &CurrencyWallet{account: a, info: info}, nil
}
