package login

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/otp"
)

// passwordSetup derives the password authenticator and wraps the login key
// with a fresh password key.
func (m *Manager) passwordSetup(username, password string, loginKey []byte) (string, *model.Snrp, *model.EncryptedBox, error) {
	auth, err := passwordAuth(m.io.Scrypt, username, password)
	if err != nil {
		return "", nil, nil, err
	}
	snrp, err := crypto.MakeSnrp(m.io.Random, m.n, m.r, m.p)
	if err != nil {
		return "", nil, nil, err
	}

	data := []byte(username + password)
	defer clear(data)
	passwordKey, err := crypto.DeriveKey(m.io.Scrypt, data, snrp)
	if err != nil {
		return "", nil, nil, err
	}
	defer clear(passwordKey)

	box, err := crypto.Encrypt(m.io.Random, loginKey, passwordKey)
	if err != nil {
		return "", nil, nil, err
	}
	return auth, snrp, box, nil
}

// loadStash returns the session's stash, which must exist once logged in.
func (m *Manager) loadStash(ctx context.Context, s *Session) (*model.LoginStash, error) {
	stash, err := m.stashes.Load(ctx, s.Username)
	if err != nil {
		return nil, err
	}
	if stash == nil {
		return nil, &abc.StorageError{Op: "read login stash", Err: &abc.NotFoundError{Kind: "login stash", ID: s.Username}}
	}
	return stash, nil
}

// CheckPassword reports whether password unlocks this session's login key.
// Only the device stash is consulted.
func (m *Manager) CheckPassword(ctx context.Context, s *Session, password string) (bool, error) {
	loginKey := s.LoginKey()
	if loginKey == nil {
		return false, abc.ErrLoggedOut
	}
	defer clear(loginKey)

	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return false, err
	}
	if stash.PasswordBox == nil {
		return false, nil
	}

	data := []byte(s.Username + password)
	defer clear(data)
	passwordKey, err := crypto.DeriveKey(m.io.Scrypt, data, stash.PasswordKeySnrp)
	if err != nil {
		return false, err
	}
	defer clear(passwordKey)

	stored, err := crypto.Decrypt(stash.PasswordBox, passwordKey)
	if err != nil {
		return false, nil
	}
	defer clear(stored)
	return crypto.Equal(stored, loginKey), nil
}

// ChangePassword replaces the account password.
func (m *Manager) ChangePassword(ctx context.Context, s *Session, password string) error {
	if password == "" {
		return &abc.ValidationError{Message: "password must not be empty"}
	}
	loginKey := s.LoginKey()
	if loginKey == nil {
		return abc.ErrLoggedOut
	}
	defer clear(loginKey)

	auth, err := s.authBody()
	if err != nil {
		return err
	}
	passwordAuth, snrp, box, err := m.passwordSetup(s.Username, password, loginKey)
	if err != nil {
		return err
	}
	if err := m.server.ChangePassword(ctx, model.ChangePasswordRequest{
		AuthBody:        auth,
		PasswordAuth:    passwordAuth,
		PasswordKeySnrp: snrp,
		PasswordBox:     box,
	}); err != nil {
		return err
	}

	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return err
	}
	stash.PasswordKeySnrp, stash.PasswordBox = snrp, box
	return m.stashes.Save(ctx, stash)
}

// ChangePIN sets the PIN and enables PIN login on this device.
func (m *Manager) ChangePIN(ctx context.Context, s *Session, pin string) error {
	if pin == "" {
		return &abc.ValidationError{Message: "pin must not be empty"}
	}
	loginKey := s.LoginKey()
	if loginKey == nil {
		return abc.ErrLoggedOut
	}
	defer clear(loginKey)

	auth, err := s.authBody()
	if err != nil {
		return err
	}
	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return err
	}

	var pin2Key []byte
	if stash.Pin2Key != "" {
		if pin2Key, err = base64.StdEncoding.DecodeString(stash.Pin2Key); err != nil {
			return &abc.StorageError{Op: "decode pin key", Err: err}
		}
	} else if pin2Key, err = m.random(crypto.KeyLen); err != nil {
		return err
	}

	box, err := crypto.Encrypt(m.io.Random, loginKey, pin2BoxKey(pin2Key, pin))
	if err != nil {
		return err
	}
	if err := m.server.ChangePin2(ctx, model.ChangePin2Request{
		AuthBody: auth,
		Pin2ID:   pin2ID(pin2Key, s.Username),
		Pin2Auth: pin2Auth(pin2Key, pin),
		Pin2Box:  box,
	}); err != nil {
		return err
	}

	stash.Pin2Key = base64.StdEncoding.EncodeToString(pin2Key)
	return m.stashes.Save(ctx, stash)
}

// DisablePIN removes PIN login for the account.
func (m *Manager) DisablePIN(ctx context.Context, s *Session) error {
	auth, err := s.authBody()
	if err != nil {
		return err
	}
	if err := m.server.ChangePin2(ctx, model.ChangePin2Request{AuthBody: auth}); err != nil {
		return err
	}
	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return err
	}
	stash.Pin2Key = ""
	return m.stashes.Save(ctx, stash)
}

// SetupRecovery2 stores recovery questions and answers and returns the new
// recovery key. The key is needed to log in by recovery later.
func (m *Manager) SetupRecovery2(ctx context.Context, s *Session, questions, answers []string) (string, error) {
	if len(questions) == 0 || len(questions) != len(answers) {
		return "", &abc.ValidationError{Message: "questions and answers must be non-empty and the same length"}
	}
	loginKey := s.LoginKey()
	if loginKey == nil {
		return "", abc.ErrLoggedOut
	}
	defer clear(loginKey)

	auth, err := s.authBody()
	if err != nil {
		return "", err
	}
	key, err := m.random(crypto.KeyLen)
	if err != nil {
		return "", err
	}

	question2Box, err := crypto.EncryptJSON(m.io.Random, questions, key)
	if err != nil {
		return "", err
	}
	recovery2Box, err := crypto.Encrypt(m.io.Random, loginKey, key)
	if err != nil {
		return "", err
	}
	if err := m.server.ChangeRecovery2(ctx, model.ChangeRecovery2Request{
		AuthBody:      auth,
		Recovery2ID:   recovery2ID(key, s.Username),
		Recovery2Auth: recovery2Auth(key, answers),
		Question2Box:  question2Box,
		Recovery2Box:  recovery2Box,
	}); err != nil {
		return "", err
	}

	encoded := base58.Encode(key)
	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return "", err
	}
	stash.Recovery2Key = encoded
	if err := m.stashes.Save(ctx, stash); err != nil {
		return "", err
	}
	return encoded, nil
}

// EnableOTP turns on OTP with a new secret. timeout is the reset window;
// zero keeps the server default.
func (m *Manager) EnableOTP(ctx context.Context, s *Session, timeout time.Duration) error {
	auth, err := s.authBody()
	if err != nil {
		return err
	}
	key, err := otp.NewKey(m.io.Random)
	if err != nil {
		return err
	}
	if err := m.server.EnableOtp(ctx, model.EnableOtpRequest{
		AuthBody:   auth,
		OtpKey:     key,
		OtpTimeout: int64(timeout / time.Second),
	}); err != nil {
		return err
	}

	s.setOtp(key, nil)
	return m.updateOtpStash(ctx, s)
}

// DisableOTP turns off OTP.
func (m *Manager) DisableOTP(ctx context.Context, s *Session) error {
	auth, err := s.authBody()
	if err != nil {
		return err
	}
	if err := m.server.DisableOtp(ctx, auth); err != nil {
		return err
	}
	s.setOtp("", nil)
	return m.updateOtpStash(ctx, s)
}

// CancelOTPReset drops a pending reset request.
func (m *Manager) CancelOTPReset(ctx context.Context, s *Session) error {
	auth, err := s.authBody()
	if err != nil {
		return err
	}
	if err := m.server.CancelOtpReset(ctx, auth); err != nil {
		return err
	}
	s.setOtp(s.OtpKey(), nil)
	return m.updateOtpStash(ctx, s)
}

func (m *Manager) updateOtpStash(ctx context.Context, s *Session) error {
	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return err
	}
	stash.OtpKey = s.OtpKey()
	stash.OtpResetDate = s.OtpResetDate()
	return m.stashes.Save(ctx, stash)
}

// SaveWallets stores the encrypted wallet list on the server and the device.
func (m *Manager) SaveWallets(ctx context.Context, s *Session, box *model.EncryptedBox) error {
	auth, err := s.authBody()
	if err != nil {
		return err
	}
	if err := m.server.SaveWallets(ctx, model.SaveWalletsRequest{AuthBody: auth, WalletBox: box}); err != nil {
		return err
	}
	s.setWalletBox(box)

	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return err
	}
	stash.WalletBox = box
	if err := m.stashes.Save(ctx, stash); err != nil {
		m.log.Warn("wallet list saved remotely but not locally", zap.Error(err))
		return err
	}
	return nil
}
