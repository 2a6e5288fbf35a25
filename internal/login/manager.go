// Package login verifies credentials against the login server and produces
// sessions. It also manages the credentials of a logged-in session.
package login

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/otp"
	"github.com/AlexZinkM/abc-core/platform"
)

// Server is the part of the login server API the manager uses.
type Server interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginReply, error)
	CreateLogin(ctx context.Context, req model.CreateLoginRequest) error
	ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error
	ChangePin2(ctx context.Context, req model.ChangePin2Request) error
	ChangeRecovery2(ctx context.Context, req model.ChangeRecovery2Request) error
	Recovery2Questions(ctx context.Context, recovery2ID string) (*model.EncryptedBox, error)
	QuestionChoices(ctx context.Context) ([]string, error)
	EnableOtp(ctx context.Context, req model.EnableOtpRequest) error
	DisableOtp(ctx context.Context, auth model.AuthBody) error
	CancelOtpReset(ctx context.Context, auth model.AuthBody) error
	RequestOtpReset(ctx context.Context, userID, resetToken string) (time.Time, error)
	SaveWallets(ctx context.Context, req model.SaveWalletsRequest) error
	UsernameAvailable(ctx context.Context, userID string) (bool, error)
}

// Config holds the manager's collaborators.
type Config struct {
	AppID  string
	Server Server
	IO     platform.IO
	OTP    *otp.Engine
	// scrypt cost for new password keys
	ScryptN, ScryptR, ScryptP int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager runs every login path.
type Manager struct {
	appID   string
	server  Server
	io      platform.IO
	stashes *StashStore
	otp     *otp.Engine
	n, r, p int
	now     func() time.Time
	log     *zap.Logger
}

// NewManager creates a manager. Login stashes live in the "logins" folder.
func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	engine := cfg.OTP
	if engine == nil {
		engine = otp.NewEngine(1)
	}
	return &Manager{
		appID:   cfg.AppID,
		server:  cfg.Server,
		io:      cfg.IO,
		stashes: NewStashStore(cfg.IO.Folder.Folder("logins")),
		otp:     engine,
		n:       cfg.ScryptN,
		r:       cfg.ScryptR,
		p:       cfg.ScryptP,
		now:     now,
		log:     cfg.IO.Log.Named("login"),
	}
}

// Stashes exposes the device's login stashes.
func (m *Manager) Stashes() *StashStore { return m.stashes }

// CreateAccount registers a new username. Password and pin are optional.
func (m *Manager) CreateAccount(ctx context.Context, username, password, pin string) (*Session, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}
	userID, err := UserID(m.io.Scrypt, fixed)
	if err != nil {
		return nil, err
	}

	loginKey, err := m.random(crypto.KeyLen)
	if err != nil {
		return nil, err
	}
	defer clear(loginKey)

	req := model.CreateLoginRequest{UserID: userID, LoginAuth: loginAuth(loginKey, userID)}
	stash := &model.LoginStash{Username: fixed, UserID: userID, LastLogin: m.now().UTC()}
	if password != "" {
		auth, snrp, box, err := m.passwordSetup(fixed, password, loginKey)
		if err != nil {
			return nil, err
		}
		req.PasswordAuth, req.PasswordKeySnrp, req.PasswordBox = auth, snrp, box
		stash.PasswordKeySnrp, stash.PasswordBox = snrp, box
	}

	if err := m.server.CreateLogin(ctx, req); err != nil {
		return nil, err
	}
	if err := m.stashes.Save(ctx, stash); err != nil {
		return nil, err
	}

	session := newSession(m.appID, fixed, userID, abc.LoginMethodNewAccount, loginKey)
	if pin != "" {
		if err := m.ChangePIN(ctx, session, pin); err != nil {
			return nil, fmt.Errorf("failed to set up pin: %w", err)
		}
	}
	m.log.Info("account created", zap.String("username", fixed))
	return session, nil
}

// LoginWithPassword logs in with a username and password.
func (m *Manager) LoginWithPassword(ctx context.Context, username, password, otpCode string) (*Session, error) {
	fixed, userID, stash, err := m.prepare(ctx, username)
	if err != nil {
		return nil, err
	}
	auth, err := passwordAuth(m.io.Scrypt, fixed, password)
	if err != nil {
		return nil, err
	}

	reply, err := m.server.Login(ctx, model.LoginRequest{
		UserID:       userID,
		PasswordAuth: auth,
		OTP:          m.otpCode(otpCode, stash),
	})
	if err != nil {
		return nil, err
	}

	data := []byte(fixed + password)
	defer clear(data)
	passwordKey, err := crypto.DeriveKey(m.io.Scrypt, data, reply.PasswordKeySnrp)
	if err != nil {
		return nil, err
	}
	defer clear(passwordKey)

	loginKey, err := openLoginKey(reply.PasswordBox, passwordKey)
	if err != nil {
		return nil, err
	}
	defer clear(loginKey)

	return m.finish(ctx, fixed, userID, abc.LoginMethodPassword, loginKey, reply, stash)
}

// LoginWithPIN logs in with the PIN set up on this device.
func (m *Manager) LoginWithPIN(ctx context.Context, username, pin, otpCode string) (*Session, error) {
	fixed, userID, stash, err := m.prepare(ctx, username)
	if err != nil {
		return nil, err
	}
	if stash == nil || stash.Pin2Key == "" {
		return nil, abc.ErrPinLoginDisabled
	}
	pin2Key, err := base64.StdEncoding.DecodeString(stash.Pin2Key)
	if err != nil {
		return nil, &abc.StorageError{Op: "decode pin key", Err: err}
	}

	reply, err := m.server.Login(ctx, model.LoginRequest{
		Pin2ID:   pin2ID(pin2Key, fixed),
		Pin2Auth: pin2Auth(pin2Key, pin),
		OTP:      m.otpCode(otpCode, stash),
	})
	if err != nil {
		return nil, err
	}

	loginKey, err := openLoginKey(reply.Pin2Box, pin2BoxKey(pin2Key, pin))
	if err != nil {
		return nil, err
	}
	defer clear(loginKey)

	return m.finish(ctx, fixed, userID, abc.LoginMethodPIN, loginKey, reply, stash)
}

// LoginWithKey logs in with an already derived login key.
func (m *Manager) LoginWithKey(ctx context.Context, username string, loginKey []byte, otpCode string) (*Session, error) {
	return m.loginWithKey(ctx, username, loginKey, otpCode, abc.LoginMethodKey)
}

// LoginWithEdgeKey completes an edge login. The approving device may pass
// its OTP key so that the new device can answer the OTP check.
func (m *Manager) LoginWithEdgeKey(ctx context.Context, username string, loginKey []byte, otpKey string) (*Session, error) {
	code := ""
	if otpKey != "" {
		var err error
		if code, err = m.otp.Generate(otpKey, m.now()); err != nil {
			return nil, err
		}
	}
	return m.loginWithKey(ctx, username, loginKey, code, abc.LoginMethodEdge)
}

func (m *Manager) loginWithKey(ctx context.Context, username string, loginKey []byte, otpCode string, method abc.LoginMethod) (*Session, error) {
	fixed, userID, stash, err := m.prepare(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(loginKey) != crypto.KeyLen {
		return nil, &abc.AuthError{}
	}

	reply, err := m.server.Login(ctx, model.LoginRequest{
		UserID:    userID,
		LoginAuth: loginAuth(loginKey, userID),
		OTP:       m.otpCode(otpCode, stash),
	})
	if err != nil {
		return nil, err
	}
	return m.finish(ctx, fixed, userID, method, loginKey, reply, stash)
}

// LoginWithRecovery2 logs in with a recovery key and the answers to the
// account's recovery questions, in order.
func (m *Manager) LoginWithRecovery2(ctx context.Context, recovery2Key, username string, answers []string, otpCode string) (*Session, error) {
	key, err := decodeRecovery2Key(recovery2Key)
	if err != nil {
		return nil, err
	}
	fixed, userID, stash, err := m.prepare(ctx, username)
	if err != nil {
		return nil, err
	}

	reply, err := m.server.Login(ctx, model.LoginRequest{
		Recovery2ID:   recovery2ID(key, fixed),
		Recovery2Auth: recovery2Auth(key, answers),
		OTP:           m.otpCode(otpCode, stash),
	})
	if err != nil {
		return nil, err
	}

	loginKey, err := openLoginKey(reply.Recovery2Box, key)
	if err != nil {
		return nil, err
	}
	defer clear(loginKey)

	if stash == nil {
		stash = &model.LoginStash{}
	}
	stash.Recovery2Key = recovery2Key
	return m.finish(ctx, fixed, userID, abc.LoginMethodRecovery, loginKey, reply, stash)
}

// FetchRecovery2Questions returns the account's recovery questions without
// answering them.
func (m *Manager) FetchRecovery2Questions(ctx context.Context, recovery2Key, username string) ([]string, error) {
	key, err := decodeRecovery2Key(recovery2Key)
	if err != nil {
		return nil, err
	}
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}

	box, err := m.server.Recovery2Questions(ctx, recovery2ID(key, fixed))
	if err != nil {
		return nil, err
	}
	var questions []string
	if err := crypto.DecryptJSON(box, key, &questions); err != nil {
		return nil, &abc.AuthError{}
	}
	return questions, nil
}

// ListRecoveryQuestionChoices returns the server's question suggestions.
func (m *Manager) ListRecoveryQuestionChoices(ctx context.Context) ([]string, error) {
	return m.server.QuestionChoices(ctx)
}

// GetRecovery2Key returns the recovery key stored on this device.
func (m *Manager) GetRecovery2Key(ctx context.Context, username string) (string, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return "", err
	}
	stash, err := m.stashes.Load(ctx, fixed)
	if err != nil {
		return "", err
	}
	if stash == nil || stash.Recovery2Key == "" {
		return "", &abc.NotFoundError{Kind: "recovery key", ID: fixed}
	}
	return stash.Recovery2Key, nil
}

// PinLoginEnabled reports whether this device can log username in by PIN.
func (m *Manager) PinLoginEnabled(ctx context.Context, username string) (bool, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return false, err
	}
	stash, err := m.stashes.Load(ctx, fixed)
	if err != nil {
		return false, err
	}
	return stash != nil && stash.Pin2Key != "", nil
}

// UsernameAvailable asks the server whether username is unregistered.
func (m *Manager) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return false, err
	}
	userID, err := UserID(m.io.Scrypt, fixed)
	if err != nil {
		return false, err
	}
	return m.server.UsernameAvailable(ctx, userID)
}

// ListUsernames lists the accounts with data on this device.
func (m *Manager) ListUsernames(ctx context.Context) ([]string, error) {
	return m.stashes.Usernames(ctx)
}

// DeleteLocalAccount forgets username on this device only.
func (m *Manager) DeleteLocalAccount(ctx context.Context, username string) error {
	fixed, err := FixUsername(username)
	if err != nil {
		return err
	}
	return m.stashes.Delete(ctx, fixed)
}

// RequestOTPReset starts the reset timer for an account locked by OTP.
func (m *Manager) RequestOTPReset(ctx context.Context, username, resetToken string) (time.Time, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return time.Time{}, err
	}
	userID, err := UserID(m.io.Scrypt, fixed)
	if err != nil {
		return time.Time{}, err
	}
	return m.server.RequestOtpReset(ctx, userID, resetToken)
}

// prepare fixes the username, derives its id and loads the device stash.
func (m *Manager) prepare(ctx context.Context, username string) (string, string, *model.LoginStash, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return "", "", nil, err
	}
	userID, err := UserID(m.io.Scrypt, fixed)
	if err != nil {
		return "", "", nil, err
	}
	stash, err := m.stashes.Load(ctx, fixed)
	if err != nil {
		return "", "", nil, err
	}
	return fixed, userID, stash, nil
}

// otpCode prefers the caller's code, then one generated from the stash.
func (m *Manager) otpCode(override string, stash *model.LoginStash) string {
	if override != "" || stash == nil || stash.OtpKey == "" {
		return override
	}
	code, err := m.otp.Generate(stash.OtpKey, m.now())
	if err != nil {
		m.log.Warn("failed to generate otp code", zap.Error(err))
		return ""
	}
	return code
}

// finish builds the session and refreshes the device stash from the reply.
func (m *Manager) finish(ctx context.Context, username, userID string, method abc.LoginMethod, loginKey []byte, reply *model.LoginReply, stash *model.LoginStash) (*Session, error) {
	if stash == nil {
		stash = &model.LoginStash{}
	}
	stash.Username = username
	stash.UserID = userID
	stash.LastLogin = m.now().UTC()
	if reply.PasswordBox != nil {
		stash.PasswordKeySnrp = reply.PasswordKeySnrp
		stash.PasswordBox = reply.PasswordBox
	}
	stash.OtpKey = reply.OtpKey
	stash.OtpResetDate = reply.OtpResetDate
	stash.WalletBox = reply.WalletBox
	if err := m.stashes.Save(ctx, stash); err != nil {
		return nil, err
	}

	session := newSession(m.appID, username, userID, method, loginKey)
	session.applyReply(reply)
	if reply.OtpDrift != 0 {
		m.log.Info("otp clock drift observed", zap.String("username", username), zap.Int("drift", reply.OtpDrift))
	}
	return session, nil
}

func (m *Manager) random(n int) ([]byte, error) {
	out, err := m.io.Random(n)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	if len(out) != n {
		return nil, errors.New("random source returned a short read")
	}
	return out, nil
}

// openLoginKey opens a box that should hold a login key. A box that does not
// open is reported as a bad credential.
func openLoginKey(box *model.EncryptedBox, key []byte) ([]byte, error) {
	if box == nil {
		return nil, &abc.AuthError{}
	}
	loginKey, err := crypto.Decrypt(box, key)
	if err != nil {
		return nil, &abc.AuthError{}
	}
	return loginKey, nil
}

// EncodeLoginKey is the text form of a login key.
func EncodeLoginKey(loginKey []byte) string {
	return base58.Encode(loginKey)
}

// DecodeLoginKey parses EncodeLoginKey output.
func DecodeLoginKey(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != crypto.KeyLen {
		return nil, &abc.AuthError{}
	}
	return raw, nil
}
