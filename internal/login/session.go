package login

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/model"
)

// Session is the result of one verified login.
type Session struct {
	AppID    string
	Username string
	UserID   string
	Method   abc.LoginMethod

	mu           sync.RWMutex
	loginKey     []byte
	otpKey       string
	otpResetDate *time.Time
	otpDrift     int
	walletBox    *model.EncryptedBox
}

func newSession(appID, username, userID string, method abc.LoginMethod, loginKey []byte) *Session {
	key := make([]byte, len(loginKey))
	copy(key, loginKey)
	return &Session{
		AppID:    appID,
		Username: username,
		UserID:   userID,
		Method:   method,
		loginKey: key,
	}
}

func (s *Session) applyReply(reply *model.LoginReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otpKey = reply.OtpKey
	s.otpResetDate = reply.OtpResetDate
	s.otpDrift = reply.OtpDrift
	s.walletBox = reply.WalletBox
}

// LoginKey returns a copy of the login key, or nil after Zero.
func (s *Session) LoginKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loginKey == nil {
		return nil
	}
	out := make([]byte, len(s.loginKey))
	copy(out, s.loginKey)
	return out
}

// Zero wipes the login key. The session is unusable afterwards.
func (s *Session) Zero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.loginKey)
	s.loginKey = nil
}

// Zeroed reports whether Zero was called.
func (s *Session) Zeroed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginKey == nil
}

func (s *Session) OtpKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.otpKey
}

func (s *Session) OtpResetDate() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.otpResetDate
}

// OtpDrift is the step offset of the code accepted at login.
func (s *Session) OtpDrift() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.otpDrift
}

// WalletBox is the encrypted wallet list received at login.
func (s *Session) WalletBox() *model.EncryptedBox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletBox
}

func (s *Session) setOtp(key string, resetDate *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otpKey = key
	s.otpResetDate = resetDate
}

func (s *Session) setWalletBox(box *model.EncryptedBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walletBox = box
}

// authBody proves the session's login key to the server.
func (s *Session) authBody() (model.AuthBody, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loginKey == nil {
		return model.AuthBody{}, abc.ErrLoggedOut
	}
	return model.AuthBody{UserID: s.UserID, LoginAuth: loginAuth(s.loginKey, s.UserID)}, nil
}

func (s *Session) PasswordLogin() bool { return s.Method == abc.LoginMethodPassword }
func (s *Session) PinLogin() bool      { return s.Method == abc.LoginMethodPIN }
func (s *Session) KeyLogin() bool      { return s.Method == abc.LoginMethodKey }
func (s *Session) RecoveryLogin() bool { return s.Method == abc.LoginMethodRecovery }
func (s *Session) EdgeLogin() bool     { return s.Method == abc.LoginMethodEdge }
func (s *Session) NewAccount() bool    { return s.Method == abc.LoginMethodNewAccount }

func loginAuth(loginKey []byte, userID string) string {
	return base64.StdEncoding.EncodeToString(crypto.HMAC(loginKey, []byte(userID)))
}
