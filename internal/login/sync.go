package login

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/internal/model"
)

// SyncResult reports what a login sync found changed on the server.
type SyncResult struct {
	PasswordChanged bool
	OtpChanged      bool
	WalletsChanged  bool
}

// Changed reports whether anything differs from the session.
func (r SyncResult) Changed() bool {
	return r.PasswordChanged || r.OtpChanged || r.WalletsChanged
}

// Sync logs in again with the session's login key and refreshes the
// session and the device stash from the reply. The OTP code is generated
// from the session's OTP key, so an *abc.OtpRequiredError means the
// account's OTP was turned on or rotated elsewhere.
func (m *Manager) Sync(ctx context.Context, s *Session) (SyncResult, error) {
	auth, err := s.authBody()
	if err != nil {
		return SyncResult{}, err
	}
	code := ""
	if key := s.OtpKey(); key != "" {
		if code, err = m.otp.Generate(key, m.now()); err != nil {
			return SyncResult{}, err
		}
	}

	reply, err := m.server.Login(ctx, model.LoginRequest{
		UserID:    auth.UserID,
		LoginAuth: auth.LoginAuth,
		OTP:       code,
	})
	if err != nil {
		return SyncResult{}, err
	}

	stash, err := m.loadStash(ctx, s)
	if err != nil {
		return SyncResult{}, err
	}
	result := SyncResult{
		PasswordChanged: reply.PasswordBox != nil && !sameBox(stash.PasswordBox, reply.PasswordBox),
		OtpChanged:      s.OtpKey() != reply.OtpKey || !sameDate(s.OtpResetDate(), reply.OtpResetDate),
		WalletsChanged:  !sameBox(s.WalletBox(), reply.WalletBox),
	}
	if !result.Changed() {
		return result, nil
	}

	if reply.PasswordBox != nil {
		stash.PasswordKeySnrp = reply.PasswordKeySnrp
		stash.PasswordBox = reply.PasswordBox
	}
	stash.OtpKey = reply.OtpKey
	stash.OtpResetDate = reply.OtpResetDate
	stash.WalletBox = reply.WalletBox
	if err := m.stashes.Save(ctx, stash); err != nil {
		return SyncResult{}, err
	}
	s.setOtp(reply.OtpKey, reply.OtpResetDate)
	s.setWalletBox(reply.WalletBox)

	m.log.Info("login synced",
		zap.String("username", s.Username),
		zap.Bool("password_changed", result.PasswordChanged),
		zap.Bool("otp_changed", result.OtpChanged),
		zap.Bool("wallets_changed", result.WalletsChanged))
	return result, nil
}

func sameBox(a, b *model.EncryptedBox) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
