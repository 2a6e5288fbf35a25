package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/core"
	"github.com/AlexZinkM/abc-core/internal/authtest"
	"github.com/AlexZinkM/abc-core/internal/otp"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

const fakeType = "wallet:fakecoin"

type fakePlugin struct {
	mu        sync.Mutex
	next      int
	failStart bool
	engines   map[string]*fakeEngine
}

func (p *fakePlugin) PluginName() string { return "fakecoin" }

func (p *fakePlugin) CurrencyInfo() abc.CurrencyInfo {
	return abc.CurrencyInfo{
		WalletTypes:     []string{fakeType},
		CurrencyCode:    "FAKE",
		CurrencyName:    "Fake",
		DefaultSettings: map[string]any{},
		Denominations:   []abc.Denomination{{Name: "FAKE", Multiplier: "100"}},
	}
}

func (p *fakePlugin) CreatePrivateKey(string) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return map[string]any{"fakeKey": fmt.Sprintf("private-%d", p.next)}, nil
}

func (p *fakePlugin) DerivePublicKey(info abc.WalletInfo) (map[string]any, error) {
	return map[string]any{"publicKey": fmt.Sprintf("public-of-%v", info.Keys["fakeKey"])}, nil
}

func (p *fakePlugin) ParseURI(uri string) (abc.ParsedURI, error) {
	return abc.ParsedURI{PublicAddress: uri}, nil
}

func (p *fakePlugin) EncodeURI(obj abc.EncodeURI) (string, error) { return obj.PublicAddress, nil }

func (p *fakePlugin) MakeEngine(_ context.Context, info abc.WalletInfo, opts plugin.MakeEngineOptions) (plugin.CurrencyEngine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failStart {
		return nil, errors.New("node unreachable")
	}
	e := &fakeEngine{info: info, callbacks: opts.Callbacks}
	if p.engines == nil {
		p.engines = make(map[string]*fakeEngine)
	}
	p.engines[info.ID] = e
	return e, nil
}

func (p *fakePlugin) engine(id string) *fakeEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engines[id]
}

type fakeEngine struct {
	info      abc.WalletInfo
	callbacks plugin.EngineCallbacks

	mu      sync.Mutex
	running bool
	kills   int
}

func (e *fakeEngine) state() (bool, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running, e.kills
}

func (e *fakeEngine) UpdateSettings(map[string]any) {}

func (e *fakeEngine) StartEngine(context.Context) error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	e.callbacks.OnBalanceChanged("FAKE", "100")
	return nil
}

func (e *fakeEngine) KillEngine(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.kills++
	}
	e.running = false
	return nil
}

func (e *fakeEngine) ResyncBlockchain(context.Context) error                  { return nil }
func (e *fakeEngine) GetBlockHeight() uint64                                  { return 7 }
func (e *fakeEngine) EnableTokens(context.Context, []string) error            { return nil }
func (e *fakeEngine) DisableTokens(context.Context, []string) error           { return nil }
func (e *fakeEngine) GetTokenStatus(string) bool                              { return false }
func (e *fakeEngine) GetBalance(abc.CurrencyCodeOptions) (string, error)      { return "100", nil }
func (e *fakeEngine) GetNumTransactions(abc.CurrencyCodeOptions) (int, error) { return 0, nil }
func (e *fakeEngine) GetTransactions(context.Context, abc.TransactionsOptions) ([]abc.Transaction, error) {
	return nil, nil
}
func (e *fakeEngine) GetFreshAddress(abc.CurrencyCodeOptions) (abc.FreshAddress, error) {
	return abc.FreshAddress{PublicAddress: fmt.Sprint(e.info.Keys["publicKey"])}, nil
}
func (e *fakeEngine) AddGapLimitAddresses([]string) error { return nil }
func (e *fakeEngine) IsAddressUsed(string) (bool, error)  { return false, nil }
func (e *fakeEngine) MakeSpend(context.Context, abc.SpendInfo) (*abc.Transaction, error) {
	return &abc.Transaction{}, nil
}
func (e *fakeEngine) SignTx(_ context.Context, tx *abc.Transaction) (*abc.Transaction, error) {
	return tx, nil
}
func (e *fakeEngine) BroadcastTx(_ context.Context, tx *abc.Transaction) (*abc.Transaction, error) {
	return tx, nil
}
func (e *fakeEngine) SaveTx(context.Context, *abc.Transaction) error { return nil }
func (e *fakeEngine) DumpData() abc.DataDump                         { return abc.DataDump{WalletID: e.info.ID} }

type fakeExchange struct {
	pairs []abc.ExchangePair
	err   error
}

func (x *fakeExchange) ExchangeInfo() plugin.ExchangeInfo {
	return plugin.ExchangeInfo{ExchangeName: "fake"}
}

func (x *fakeExchange) FetchExchangeRates(context.Context, []abc.ExchangePairHint) ([]abc.ExchangePair, error) {
	return x.pairs, x.err
}

// recorder captures account callbacks.
type recorder struct {
	abc.NoopCallbacks

	mu              sync.Mutex
	loggedOut       int
	skews           []int
	errs            []error
	keyLists        int
	balances        map[string]string
	walletData      []string
	dataChanges     int
	otpRequired     int
	passwordChanges int
}

func (r *recorder) OnLoggedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggedOut++
}

func (r *recorder) OnOTPSkew(drift int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skews = append(r.skews, drift)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) OnKeyListChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyLists++
}

func (r *recorder) OnWalletDataChanged(walletID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.walletData = append(r.walletData, walletID)
}

func (r *recorder) OnDataChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataChanges++
}

func (r *recorder) OnOTPRequired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otpRequired++
}

func (r *recorder) OnRemotePasswordChange() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwordChanges++
}

func (r *recorder) OnBalanceChanged(walletID, code, balance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances == nil {
		r.balances = make(map[string]string)
	}
	r.balances[walletID] = balance + " " + code
}

func (r *recorder) balance(walletID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[walletID]
}

type device struct {
	ctx      *core.Context
	plugin   *fakePlugin
	exchange *fakeExchange
}

func newDevice(t *testing.T, srv *authtest.Server, mutate ...func(*core.Config)) *device {
	t.Helper()
	cfg := &core.Config{
		AppID:             "",
		AuthServer:        srv.URL,
		LobbyTimeout:      time.Minute,
		LobbyPollInterval: 10 * time.Millisecond,
		OtpResetWindow:    7 * 24 * time.Hour,
		OtpDriftSteps:     1,
		EngineKillTimeout: 5 * time.Second,
		ScryptN:           1024,
		ScryptR:           1,
		ScryptP:           1,
	}
	for _, m := range mutate {
		m(cfg)
	}

	d := &device{plugin: &fakePlugin{}, exchange: &fakeExchange{}}
	c, err := core.MakeContext(context.Background(), core.ContextOptions{
		Config: cfg,
		IO: platform.RawIO{
			Fetch:  srv.Fetch(),
			Random: platform.CryptoRandom,
		},
		CurrencyPlugins: map[string]plugin.CurrencyPluginFactory{
			"fakecoin": func(context.Context, platform.IO) (plugin.CurrencyPlugin, error) { return d.plugin, nil },
		},
		ExchangePlugins: map[string]plugin.ExchangePluginFactory{
			"fake": func(context.Context, platform.IO) (plugin.ExchangePlugin, error) { return d.exchange, nil },
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	d.ctx = c
	return d
}

func TestLogin(t *testing.T) {
	t.Run("Password login sets only the password flag", testPasswordLogin)
	t.Run("Bad credentials look the same", testBadCredentials)
	t.Run("Login keys log in again", testLoginKey)
	t.Run("PIN login needs a PIN on this device", testPinLogin)
	t.Run("Recovery questions log in", testRecovery)
	t.Run("OTP skew is reported", testOtpSkew)
	t.Run("One session per user when configured", testSingleSession)
	t.Run("Edge login produces an account", testEdgeLogin)
	t.Run("Login sync reports changes from other devices", testSyncLogin)
}

func testPasswordLogin(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	created, err := d.ctx.CreateAccount(ctx, "Alice", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)
	assert.True(t, created.NewAccount())
	assert.Equal(t, "alice", created.Username())

	account, err := d.ctx.LoginWithPassword(ctx, "alice", "Password123", abc.AccountOptions{})
	require.NoError(t, err)
	assert.True(t, account.PasswordLogin())
	assert.False(t, account.PinLogin())
	assert.False(t, account.KeyLogin())
	assert.False(t, account.RecoveryLogin())
	assert.False(t, account.EdgeLogin())
	assert.False(t, account.NewAccount())
	assert.Equal(t, abc.LoginMethodPassword, account.Method())

	ok, err := account.CheckPassword(ctx, "Password123")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = account.CheckPassword(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	usernames, err := d.ctx.ListUsernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, usernames)

	available, err := d.ctx.UsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, available)

	rules := d.ctx.CheckPasswordRules("")
	assert.True(t, rules.TooShort)
	assert.False(t, rules.Passed)
}

func testBadCredentials(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	_, err := d.ctx.CreateAccount(ctx, "bob", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)

	_, wrongPassword := d.ctx.LoginWithPassword(ctx, "bob", "Wrong1234", abc.AccountOptions{})
	_, unknownUser := d.ctx.LoginWithPassword(ctx, "nobody", "Password123", abc.AccountOptions{})
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.True(t, abc.IsAuthError(wrongPassword))
	assert.True(t, abc.IsAuthError(unknownUser))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func testLoginKey(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	account, err := d.ctx.CreateAccount(ctx, "carol", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)
	key, err := account.LoginKey()
	require.NoError(t, err)

	again, err := d.ctx.LoginWithKey(ctx, "carol", key, abc.AccountOptions{})
	require.NoError(t, err)
	assert.True(t, again.KeyLogin())

	_, err = d.ctx.LoginWithKey(ctx, "carol", "not-a-key", abc.AccountOptions{})
	assert.True(t, abc.IsAuthError(err))
}

func testPinLogin(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	account, err := d.ctx.CreateAccount(ctx, "dave", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)

	enabled, err := d.ctx.PinLoginEnabled(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, enabled)
	_, err = d.ctx.LoginWithPIN(ctx, "dave", "1234", abc.AccountOptions{})
	assert.ErrorIs(t, err, abc.ErrPinLoginDisabled)

	require.NoError(t, account.ChangePIN(ctx, "1234"))
	enabled, err = d.ctx.PinLoginEnabled(ctx, "dave")
	require.NoError(t, err)
	assert.True(t, enabled)

	pinned, err := d.ctx.LoginWithPIN(ctx, "dave", "1234", abc.AccountOptions{})
	require.NoError(t, err)
	assert.True(t, pinned.PinLogin())

	_, err = d.ctx.LoginWithPIN(ctx, "dave", "9999", abc.AccountOptions{})
	assert.True(t, abc.IsAuthError(err))
}

func testRecovery(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	account, err := d.ctx.CreateAccount(ctx, "erin", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)
	choices, err := d.ctx.ListRecoveryQuestionChoices(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(choices), 2)
	questions := choices[:2]
	recoveryKey, err := account.SetupRecovery2Questions(ctx, questions, []string{"rex", "springfield"})
	require.NoError(t, err)

	stored, err := d.ctx.GetRecovery2Key(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, recoveryKey, stored)

	got, err := d.ctx.FetchRecovery2Questions(ctx, recoveryKey, "erin")
	require.NoError(t, err)
	assert.Equal(t, questions, got)

	recovered, err := d.ctx.LoginWithRecovery2(ctx, recoveryKey, "erin", []string{"rex", "springfield"}, abc.AccountOptions{})
	require.NoError(t, err)
	assert.True(t, recovered.RecoveryLogin())

	_, err = d.ctx.LoginWithRecovery2(ctx, recoveryKey, "erin", []string{"rex", "shelbyville"}, abc.AccountOptions{})
	assert.True(t, abc.IsAuthError(err))
}

func testOtpSkew(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	account, err := d.ctx.CreateAccount(ctx, "frank", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)
	require.NoError(t, account.EnableOTP(ctx, 0))
	key := account.OtpKey()
	require.NotEmpty(t, key)

	other := newDevice(t, srv)
	_, err = other.ctx.LoginWithPassword(ctx, "frank", "Password123", abc.AccountOptions{})
	var required *abc.OtpRequiredError
	require.ErrorAs(t, err, &required)

	ahead, err := otp.NewEngine(1).Generate(key, srv.Clock.Now().Add(30*time.Second))
	require.NoError(t, err)
	var rec recorder
	_, err = other.ctx.LoginWithPassword(ctx, "frank", "Password123", abc.AccountOptions{OTP: ahead, Callbacks: &rec})
	require.NoError(t, err)
	rec.mu.Lock()
	assert.Equal(t, []int{1}, rec.skews)
	rec.mu.Unlock()

	date, err := other.ctx.RequestOTPReset(ctx, "frank", required.ResetToken)
	require.NoError(t, err)
	assert.Equal(t, srv.Clock.Now().Add(7*24*time.Hour), date)

	require.NoError(t, account.CancelOTPReset(ctx))
	assert.Nil(t, account.OtpResetDate())
	require.NoError(t, account.DisableOTP(ctx))
	assert.Empty(t, account.OtpKey())
}

func testSingleSession(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv, func(c *core.Config) { c.SingleSessionPerDevice = true })
	ctx := context.Background()

	var first recorder
	account, err := d.ctx.CreateAccount(ctx, "grace", "Password123", "", abc.AccountOptions{Callbacks: &first})
	require.NoError(t, err)

	second, err := d.ctx.LoginWithPassword(ctx, "grace", "Password123", abc.AccountOptions{})
	require.NoError(t, err)
	assert.False(t, account.IsLoggedIn())
	assert.True(t, second.IsLoggedIn())
	first.mu.Lock()
	assert.Equal(t, 1, first.loggedOut)
	first.mu.Unlock()
}

func testEdgeLogin(t *testing.T) {
	srv := authtest.NewServer(t)
	approver := newDevice(t, srv)
	requester := newDevice(t, srv, func(c *core.Config) { c.AppID = "com.example.requester" })
	ctx := context.Background()

	account, err := approver.ctx.CreateAccount(ctx, "heidi", "Password123", "", abc.AccountOptions{})
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		processed string
		got       *core.Account
		gotErr    error
	)
	req, err := requester.ctx.RequestEdgeLogin(ctx, core.EdgeLoginOptions{
		DisplayName: "Requester",
		OnProcessLogin: func(username string) {
			mu.Lock()
			defer mu.Unlock()
			processed = username
		},
		OnLogin: func(err error, a *core.Account) {
			mu.Lock()
			defer mu.Unlock()
			gotErr, got = err, a
		},
	})
	require.NoError(t, err)
	png, err := req.QRCode(128)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	lobby, err := account.FetchLobby(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "com.example.requester", lobby.LoginRequest.AppID)
	assert.Equal(t, "Requester", lobby.LoginRequest.DisplayName)
	require.NoError(t, lobby.LoginRequest.Approve(ctx))

	select {
	case <-req.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("edge login did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, gotErr)
	require.NotNil(t, got)
	assert.Equal(t, "heidi", processed)
	assert.True(t, got.EdgeLogin())
	assert.Equal(t, "heidi", got.Username())
	assert.Equal(t, "com.example.requester", got.AppID())
}

func testSyncLogin(t *testing.T) {
	srv := authtest.NewServer(t)
	phone := newDevice(t, srv)
	laptop := newDevice(t, srv)
	ctx := context.Background()

	var rec recorder
	onPhone, err := phone.ctx.CreateAccount(ctx, "ken", "Password123", "", abc.AccountOptions{Callbacks: &rec})
	require.NoError(t, err)
	onLaptop, err := laptop.ctx.LoginWithPassword(ctx, "ken", "Password123", abc.AccountOptions{})
	require.NoError(t, err)

	require.NoError(t, onPhone.SyncLogin(ctx))
	rec.mu.Lock()
	assert.Zero(t, rec.dataChanges)
	assert.Zero(t, rec.passwordChanges)
	rec.mu.Unlock()

	require.NoError(t, onLaptop.ChangePassword(ctx, "NewPassword456"))
	wallet, err := onLaptop.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.NoError(t, err)

	require.NoError(t, onPhone.SyncLogin(ctx))
	rec.mu.Lock()
	assert.Equal(t, 1, rec.passwordChanges)
	assert.Equal(t, 1, rec.dataChanges)
	assert.Equal(t, []string{wallet.ID()}, rec.walletData)
	rec.mu.Unlock()
	assert.Equal(t, []string{wallet.ID()}, onPhone.ActiveWalletIDs())
	assert.Eventually(t, func() bool { return phone.plugin.engine(wallet.ID()) != nil }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, onLaptop.EnableOTP(ctx, 0))
	err = onPhone.SyncLogin(ctx)
	assert.True(t, abc.IsOtpRequiredError(err))
	rec.mu.Lock()
	assert.Equal(t, 1, rec.otpRequired)
	rec.mu.Unlock()

	require.NoError(t, onPhone.Logout(ctx))
	assert.ErrorIs(t, onPhone.SyncLogin(ctx), abc.ErrLoggedOut)
}

func TestWallets(t *testing.T) {
	t.Run("Currency wallets start engines and route events", testCurrencyWallet)
	t.Run("Wallet states drive engines and views", testWalletStates)
	t.Run("The wallet list survives logout", testWalletPersistence)
	t.Run("Failed engine starts surface on create", testEngineStartFailure)
	t.Run("Creating a removed wallet again restores it", testRecreateWallet)
}

func testCurrencyWallet(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	var rec recorder
	account, err := d.ctx.CreateAccount(ctx, "ivan", "Password123", "", abc.AccountOptions{Callbacks: &rec})
	require.NoError(t, err)

	wallet, err := account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.NoError(t, err)
	assert.Equal(t, fakeType, wallet.Type())
	assert.Equal(t, "private-1", wallet.Keys()["fakeKey"])
	assert.Equal(t, "public-of-private-1", wallet.Keys()["publicKey"])

	assert.Eventually(t, func() bool { return rec.balance(wallet.ID()) == "100 FAKE" }, 5*time.Second, 10*time.Millisecond)

	balance, err := wallet.GetBalance(abc.CurrencyCodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "100", balance)
	height, err := wallet.GetBlockHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), height)
	address, err := wallet.GetReceiveAddress(abc.CurrencyCodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "public-of-private-1", address.PublicAddress)
	info, err := wallet.CurrencyInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FAKE", info.CurrencyCode)

	plugins, err := d.ctx.GetCurrencyPlugins(ctx)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "fakecoin", plugins[0].PluginName())

	assert.Contains(t, account.CurrencyWallets(), wallet.ID())
	first, ok := account.GetFirstWalletInfo(fakeType)
	require.True(t, ok)
	assert.Equal(t, wallet.ID(), first.ID)

	_, err = account.CreateCurrencyWallet(ctx, "wallet:unknown", core.CreateCurrencyWalletOptions{})
	assert.True(t, abc.IsNotFoundError(err))
}

func testWalletStates(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	var rec recorder
	account, err := d.ctx.CreateAccount(ctx, "judy", "Password123", "", abc.AccountOptions{Callbacks: &rec})
	require.NoError(t, err)

	a, err := account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.NoError(t, err)
	b, err := account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID(), b.ID()}, account.ActiveWalletIDs())

	require.NoError(t, account.ChangeWalletStates(ctx, abc.WalletStates{a.ID(): {Archived: abc.Bool(true)}}))
	assert.Equal(t, []string{b.ID()}, account.ActiveWalletIDs())
	assert.Equal(t, []string{a.ID()}, account.ArchivedWalletIDs())
	assert.Len(t, account.AllKeys(), 2)
	running, kills := d.plugin.engine(a.ID()).state()
	assert.False(t, running)
	assert.Equal(t, 1, kills)
	_, err = a.GetBalance(abc.CurrencyCodeOptions{})
	assert.True(t, abc.IsNotFoundError(err))

	require.NoError(t, account.ChangeKeyStates(ctx, abc.WalletStates{a.ID(): {Deleted: abc.Bool(true)}}))
	assert.Empty(t, account.ArchivedWalletIDs())
	assert.Equal(t, []string{b.ID()}, account.ListWalletIDs())
	assert.Len(t, account.AllKeys(), 2)
	_, err = account.GetWalletInfo(a.ID())
	assert.True(t, abc.IsNotFoundError(err))

	require.NoError(t, account.ChangeWalletStates(ctx, abc.WalletStates{a.ID(): {Deleted: abc.Bool(false), Archived: abc.Bool(false), SortIndex: abc.Int(-1)}}))
	assert.Equal(t, []string{a.ID(), b.ID()}, account.ActiveWalletIDs())
	assert.Eventually(t, func() bool {
		running, _ := d.plugin.engine(a.ID()).state()
		return running
	}, 5*time.Second, 10*time.Millisecond)

	err = account.ChangeWalletStates(ctx, abc.WalletStates{"missing": {Archived: abc.Bool(true)}})
	assert.True(t, abc.IsNotFoundError(err))

	rec.mu.Lock()
	assert.Positive(t, rec.keyLists)
	rec.mu.Unlock()
}

func testWalletPersistence(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	var rec recorder
	account, err := d.ctx.CreateAccount(ctx, "mallory", "Password123", "", abc.AccountOptions{Callbacks: &rec})
	require.NoError(t, err)
	wallet, err := account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.NoError(t, err)
	engine := d.plugin.engine(wallet.ID())

	require.NoError(t, account.Logout(ctx))
	require.NoError(t, account.Logout(ctx))
	rec.mu.Lock()
	assert.Equal(t, 1, rec.loggedOut)
	rec.mu.Unlock()
	assert.False(t, account.IsLoggedIn())
	running, _ := engine.state()
	assert.False(t, running)
	_, err = account.LoginKey()
	assert.ErrorIs(t, err, abc.ErrLoggedOut)
	_, err = account.CreateWallet(ctx, fakeType, map[string]any{"fakeKey": "x"})
	assert.ErrorIs(t, err, abc.ErrLoggedOut)
	_, err = wallet.GetBalance(abc.CurrencyCodeOptions{})
	assert.ErrorIs(t, err, abc.ErrLoggedOut)

	assert.Empty(t, account.AllKeys())
	assert.Empty(t, account.ListWalletIDs())
	assert.Empty(t, account.ActiveWalletIDs())
	assert.Empty(t, account.ArchivedWalletIDs())
	assert.Empty(t, account.CurrencyWallets())
	_, err = account.GetWalletInfo(wallet.ID())
	assert.ErrorIs(t, err, abc.ErrLoggedOut)
	_, ok := account.GetFirstWalletInfo(fakeType)
	assert.False(t, ok)

	other := newDevice(t, srv)
	again, err := other.ctx.LoginWithPassword(ctx, "mallory", "Password123", abc.AccountOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{wallet.ID()}, again.ActiveWalletIDs())
	assert.Eventually(t, func() bool { return other.plugin.engine(wallet.ID()) != nil }, 5*time.Second, 10*time.Millisecond)
}

func testEngineStartFailure(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	var rec recorder
	account, err := d.ctx.CreateAccount(ctx, "niaj", "Password123", "", abc.AccountOptions{Callbacks: &rec})
	require.NoError(t, err)

	d.plugin.mu.Lock()
	d.plugin.failStart = true
	d.plugin.mu.Unlock()

	_, err = account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.Error(t, err)
	assert.True(t, abc.IsEngineError(err))
	rec.mu.Lock()
	require.Len(t, rec.errs, 1)
	assert.True(t, abc.IsEngineError(rec.errs[0]))
	rec.mu.Unlock()

	d.plugin.mu.Lock()
	d.plugin.failStart = false
	d.plugin.mu.Unlock()

	id := account.ActiveWalletIDs()[0]
	require.NoError(t, account.ChangeWalletStates(ctx, abc.WalletStates{id: {Archived: abc.Bool(true)}}))
	require.NoError(t, account.ChangeWalletStates(ctx, abc.WalletStates{id: {Archived: abc.Bool(false)}}))
	assert.NotNil(t, d.plugin.engine(id))
}

func testRecreateWallet(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()

	var rec recorder
	account, err := d.ctx.CreateAccount(ctx, "olivia", "Password123", "", abc.AccountOptions{Callbacks: &rec})
	require.NoError(t, err)
	wallet, err := account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{})
	require.NoError(t, err)
	keys := map[string]any{"fakeKey": wallet.Keys()["fakeKey"]}

	for _, state := range []abc.WalletState{{Deleted: abc.Bool(true)}, {Archived: abc.Bool(true)}} {
		require.NoError(t, account.ChangeWalletStates(ctx, abc.WalletStates{wallet.ID(): state}))
		assert.Empty(t, account.ActiveWalletIDs())
		running, _ := d.plugin.engine(wallet.ID()).state()
		require.False(t, running)

		rec.mu.Lock()
		rec.walletData = nil
		rec.mu.Unlock()

		again, err := account.CreateCurrencyWallet(ctx, fakeType, core.CreateCurrencyWalletOptions{Keys: keys})
		require.NoError(t, err)
		assert.Equal(t, wallet.ID(), again.ID())
		assert.Equal(t, []string{wallet.ID()}, account.ActiveWalletIDs())
		assert.Empty(t, account.ArchivedWalletIDs())
		running, _ = d.plugin.engine(wallet.ID()).state()
		assert.True(t, running)

		rec.mu.Lock()
		assert.Equal(t, []string{wallet.ID()}, rec.walletData)
		rec.mu.Unlock()
	}
}

func TestGetExchangeSwapRate(t *testing.T) {
	srv := authtest.NewServer(t)
	d := newDevice(t, srv)
	ctx := context.Background()
	d.exchange.pairs = []abc.ExchangePair{
		{FromCurrency: "SOL", ToCurrency: "iso:USD", Rate: 150},
		{FromCurrency: "USDC", ToCurrency: "iso:USD", Rate: 1},
	}

	t.Run("Direct pairs are used as is", func(t *testing.T) {
		rate, err := d.ctx.GetExchangeSwapRate(ctx, "SOL", "iso:USD")
		require.NoError(t, err)
		assert.InDelta(t, 150, rate, 1e-9)
	})

	t.Run("Inverse pairs are inverted", func(t *testing.T) {
		rate, err := d.ctx.GetExchangeSwapRate(ctx, "iso:USD", "SOL")
		require.NoError(t, err)
		assert.InDelta(t, 1.0/150, rate, 1e-12)
	})

	t.Run("One hop through a shared currency", func(t *testing.T) {
		rate, err := d.ctx.GetExchangeSwapRate(ctx, "SOL", "USDC")
		require.NoError(t, err)
		assert.InDelta(t, 150, rate, 1e-9)
	})

	t.Run("Unknown pairs are not found", func(t *testing.T) {
		_, err := d.ctx.GetExchangeSwapRate(ctx, "SOL", "iso:EUR")
		assert.True(t, abc.IsNotFoundError(err))
	})

	t.Run("Same currency is one", func(t *testing.T) {
		rate, err := d.ctx.GetExchangeSwapRate(ctx, "SOL", "SOL")
		require.NoError(t, err)
		assert.Equal(t, 1.0, rate)
	})
}
