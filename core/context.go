// Package core is the entry point for apps: a Context logs users in and
// hands out Accounts, which own the wallet list and the running engines.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/client"
	"github.com/AlexZinkM/abc-core/internal/config"
	"github.com/AlexZinkM/abc-core/internal/dispatch"
	"github.com/AlexZinkM/abc-core/internal/edgelogin"
	"github.com/AlexZinkM/abc-core/internal/login"
	"github.com/AlexZinkM/abc-core/internal/otp"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

// Config holds the context's parameters. See LoadConfig.
type Config = config.Core

// LoadConfig reads Config from ABC_* environment variables.
func LoadConfig() (*Config, error) {
	return config.LoadCore()
}

// ContextOptions configures MakeContext.
type ContextOptions struct {
	// Config defaults to LoadConfig.
	Config *Config
	IO     platform.RawIO

	CurrencyPlugins map[string]plugin.CurrencyPluginFactory
	ExchangePlugins map[string]plugin.ExchangePluginFactory

	// OnError receives plugins that failed to load.
	OnError func(err error)
}

// Context is one app's view of the login system on this device.
type Context struct {
	cfg     Config
	io      platform.IO
	log     *zap.Logger
	logins  *login.Manager
	broker  *edgelogin.Broker
	plugins *dispatch.PluginSet

	mu       sync.Mutex
	accounts map[*Account]struct{}
}

// MakeContext resolves the IO, reads the configuration and starts loading
// plugins in the background.
func MakeContext(ctx context.Context, opts ContextOptions) (*Context, error) {
	io, err := platform.Resolve(opts.IO)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve io: %w", err)
	}

	var cfg Config
	if opts.Config != nil {
		cfg = *opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	} else {
		loaded, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	log := io.Log.Named("core")
	auth := client.NewAuthClient(cfg.AuthServer, cfg.APIKey, io.Fetch, io.Log.Named("client"))
	logins := login.NewManager(login.Config{
		AppID:   cfg.AppID,
		Server:  auth,
		IO:      io,
		OTP:     otp.NewEngine(cfg.OtpDriftSteps),
		ScryptN: cfg.ScryptN,
		ScryptR: cfg.ScryptR,
		ScryptP: cfg.ScryptP,
	})
	broker := edgelogin.NewBroker(edgelogin.Options{
		Lobbies:      auth,
		Login:        logins,
		Random:       io.Random,
		Timeout:      cfg.LobbyTimeout,
		PollInterval: cfg.LobbyPollInterval,
		Log:          io.Log,
	})

	onError := opts.OnError
	if onError == nil {
		onError = func(err error) {
			log.Warn("plugin failed to load", zap.Error(err))
		}
	}
	plugins := dispatch.LoadPlugins(context.WithoutCancel(ctx), io, opts.CurrencyPlugins, opts.ExchangePlugins, onError)

	log.Info("context ready", zap.String("app_id", cfg.AppID), zap.String("auth_server", cfg.AuthServer))
	return &Context{
		cfg:      cfg,
		io:       io,
		log:      log,
		logins:   logins,
		broker:   broker,
		plugins:  plugins,
		accounts: make(map[*Account]struct{}),
	}, nil
}

// FixUsername normalizes a username the way every login path does.
func (c *Context) FixUsername(username string) (string, error) {
	return login.FixUsername(username)
}

// ListUsernames lists the users with a login stash on this device.
func (c *Context) ListUsernames(ctx context.Context) ([]string, error) {
	return c.logins.ListUsernames(ctx)
}

// DeleteLocalAccount forgets a user on this device. The server account
// is untouched.
func (c *Context) DeleteLocalAccount(ctx context.Context, username string) error {
	fixed, err := login.FixUsername(username)
	if err != nil {
		return err
	}
	userID, err := login.UserID(c.io.Scrypt, fixed)
	if err != nil {
		return err
	}
	if err := c.logins.DeleteLocalAccount(ctx, fixed); err != nil {
		return err
	}
	if err := c.accountFolder(userID).Delete(ctx); err != nil && !platform.IsNotExist(err) {
		return &abc.StorageError{Op: "delete account folder", Err: err}
	}
	return nil
}

func (c *Context) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	return c.logins.UsernameAvailable(ctx, username)
}

// CreateAccount registers a new user and logs in. Password and pin may be
// empty.
func (c *Context) CreateAccount(ctx context.Context, username, password, pin string, opts abc.AccountOptions) (*Account, error) {
	s, err := c.logins.CreateAccount(ctx, username, password, pin)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, s, opts)
}

func (c *Context) LoginWithPassword(ctx context.Context, username, password string, opts abc.AccountOptions) (*Account, error) {
	s, err := c.logins.LoginWithPassword(ctx, username, password, opts.OTP)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, s, opts)
}

// LoginWithPIN needs PIN login set up on this device for the user.
func (c *Context) LoginWithPIN(ctx context.Context, username, pin string, opts abc.AccountOptions) (*Account, error) {
	s, err := c.logins.LoginWithPIN(ctx, username, pin, opts.OTP)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, s, opts)
}

// LoginWithKey logs in with the text form of a login key, as returned by
// Account.LoginKey.
func (c *Context) LoginWithKey(ctx context.Context, username, loginKey string, opts abc.AccountOptions) (*Account, error) {
	key, err := login.DecodeLoginKey(loginKey)
	if err != nil {
		return nil, err
	}
	defer clear(key)
	s, err := c.logins.LoginWithKey(ctx, username, key, opts.OTP)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, s, opts)
}

func (c *Context) LoginWithRecovery2(ctx context.Context, recovery2Key, username string, answers []string, opts abc.AccountOptions) (*Account, error) {
	s, err := c.logins.LoginWithRecovery2(ctx, recovery2Key, username, answers, opts.OTP)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, s, opts)
}

func (c *Context) PinLoginEnabled(ctx context.Context, username string) (bool, error) {
	return c.logins.PinLoginEnabled(ctx, username)
}

func (c *Context) GetRecovery2Key(ctx context.Context, username string) (string, error) {
	return c.logins.GetRecovery2Key(ctx, username)
}

func (c *Context) FetchRecovery2Questions(ctx context.Context, recovery2Key, username string) ([]string, error) {
	return c.logins.FetchRecovery2Questions(ctx, recovery2Key, username)
}

func (c *Context) ListRecoveryQuestionChoices(ctx context.Context) ([]string, error) {
	return c.logins.ListRecoveryQuestionChoices(ctx)
}

// CheckPasswordRules rates a password. It does no I/O.
func (c *Context) CheckPasswordRules(password string) abc.PasswordRules {
	return login.CheckPasswordRules(password)
}

// RequestOTPReset starts the reset timer with the token carried by an
// *abc.OtpRequiredError. It returns the date the reset matures.
func (c *Context) RequestOTPReset(ctx context.Context, username, resetToken string) (time.Time, error) {
	return c.logins.RequestOTPReset(ctx, username, resetToken)
}

// GetCurrencyPlugins waits for plugin loading and returns the currency
// plugins that loaded.
func (c *Context) GetCurrencyPlugins(ctx context.Context) ([]plugin.CurrencyPlugin, error) {
	return c.plugins.CurrencyPlugins(ctx)
}

// Close logs out every account opened through the context.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	accounts := make([]*Account, 0, len(c.accounts))
	for a := range c.accounts {
		accounts = append(accounts, a)
	}
	c.mu.Unlock()

	var errs []error
	for _, a := range accounts {
		if err := a.Logout(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Context) accountFolder(userID string) platform.Folder {
	return c.io.Folder.Folder("accounts").Folder(userID)
}

// open turns a verified session into an account. With
// SingleSessionPerDevice set, other accounts of the same user are logged
// out first.
func (c *Context) open(ctx context.Context, s *login.Session, opts abc.AccountOptions) (*Account, error) {
	if c.cfg.SingleSessionPerDevice {
		c.mu.Lock()
		var previous []*Account
		for a := range c.accounts {
			if a.session.Username == s.Username {
				previous = append(previous, a)
			}
		}
		c.mu.Unlock()
		for _, a := range previous {
			if err := a.Logout(ctx); err != nil {
				c.log.Warn("failed to log out previous session", zap.String("username", s.Username), zap.Error(err))
			}
		}
	}

	a, err := newAccount(ctx, c, s, opts.Callbacks)
	if err != nil {
		s.Zero()
		return nil, err
	}

	c.mu.Lock()
	c.accounts[a] = struct{}{}
	c.mu.Unlock()

	if drift := s.OtpDrift(); drift != 0 {
		a.callbacks.OnOTPSkew(drift)
	}
	c.log.Info("logged in", zap.String("username", s.Username), zap.Stringer("method", s.Method))
	return a, nil
}

func (c *Context) forget(a *Account) {
	c.mu.Lock()
	delete(c.accounts, a)
	c.mu.Unlock()
}
