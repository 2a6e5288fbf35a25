// Package server is a reference login server: it verifies credential
// proofs, enforces OTP, stores encrypted login data and hosts edge-login
// lobbies.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/otp"
)

// DefaultQuestionChoices are offered when none are configured.
var DefaultQuestionChoices = []string{
	"What was the make of your first car?",
	"What was the name of your first pet?",
	"In what city were you born?",
	"What is your oldest sibling's middle name?",
	"What was the name of your elementary school?",
	"What street did you grow up on?",
}

// Options configures a Service.
type Options struct {
	Users           UserStore
	Lobbies         LobbyStore
	BcryptCost      int
	OtpResetWindow  time.Duration
	OtpDriftSteps   int
	LobbyMaxTimeout time.Duration
	QuestionChoices []string
	Now             func() time.Time
	Log             *zap.Logger
}

// Service implements the login server operations.
type Service struct {
	users           UserStore
	lobbies         LobbyStore
	otp             *otp.Engine
	bcryptCost      int
	resetWindow     time.Duration
	lobbyMaxTimeout time.Duration
	questions       []string
	now             func() time.Time
	log             *zap.Logger

	// userMu serializes read-modify-write of user records.
	userMu    sync.Mutex
	dummyHash []byte
}

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Users == nil || opts.Lobbies == nil {
		return nil, errors.New("user and lobby stores are required")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.OtpResetWindow <= 0 {
		opts.OtpResetWindow = 7 * 24 * time.Hour
	}
	if opts.LobbyMaxTimeout <= 0 {
		opts.LobbyMaxTimeout = 30 * time.Minute
	}
	if len(opts.QuestionChoices) == 0 {
		opts.QuestionChoices = DefaultQuestionChoices
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	// Compared against when the user is unknown, so a miss costs the same
	// as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash dummy password: %w", err)
	}

	return &Service{
		users:           opts.Users,
		lobbies:         opts.Lobbies,
		otp:             otp.NewEngine(opts.OtpDriftSteps),
		bcryptCost:      opts.BcryptCost,
		resetWindow:     opts.OtpResetWindow,
		lobbyMaxTimeout: opts.LobbyMaxTimeout,
		questions:       opts.QuestionChoices,
		now:             opts.Now,
		log:             opts.Log,
		dummyHash:       dummy,
	}, nil
}

func (s *Service) hash(secret string) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash authenticator: %w", err)
	}
	return h, nil
}

func sha(secret string) []byte {
	h := sha256.Sum256([]byte(secret))
	return h[:]
}

// recoveryDigest folds the answer proofs into one bcrypt-sized string.
func recoveryDigest(auth []string) string {
	h := sha256.Sum256([]byte(strings.Join(auth, "\n")))
	return base64.StdEncoding.EncodeToString(h[:])
}

func badRequest(msg string) error {
	return &abc.ValidationError{Message: msg}
}

// Login checks one credential group and the account's OTP.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginReply, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	user, err := s.verify(ctx, req)
	if err != nil {
		return nil, err
	}

	check, err := user.Otp.Check(s.otp, req.OTP, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to check otp: %w", err)
	}
	if check.Matured {
		user.OtpResetToken = ""
		if err := s.users.Put(ctx, user); err != nil {
			return nil, err
		}
		s.log.Info("otp reset matured", zap.String("user_id", user.UserID))
	}
	if !check.OK {
		if user.Otp.Status() == otp.StatusResetPending {
			return nil, &abc.OtpResetPendingError{ResetDate: *user.Otp.ResetDate}
		}
		if user.OtpResetToken == "" {
			user.OtpResetToken = uuid.NewString()
			if err := s.users.Put(ctx, user); err != nil {
				return nil, err
			}
		}
		return nil, &abc.OtpRequiredError{ResetToken: user.OtpResetToken}
	}

	return &model.LoginReply{
		UserID:          user.UserID,
		PasswordKeySnrp: user.PasswordKeySnrp,
		PasswordBox:     user.PasswordBox,
		Pin2Box:         user.Pin2Box,
		Recovery2Box:    user.Recovery2Box,
		WalletBox:       user.WalletBox,
		OtpKey:          user.Otp.Key,
		OtpResetDate:    user.Otp.ResetDate,
		OtpDrift:        check.Drift,
	}, nil
}

// verify finds the user named by the request and checks its authenticator.
// Every failure is the same AuthError.
func (s *Service) verify(ctx context.Context, req model.LoginRequest) (*User, error) {
	var (
		user   *User
		err    error
		hash   func(*User) []byte
		secret string
	)
	switch {
	case req.Pin2ID != "":
		user, err = s.users.FindByPin2ID(ctx, req.Pin2ID)
		hash, secret = func(u *User) []byte { return u.Pin2AuthHash }, req.Pin2Auth
	case req.Recovery2ID != "":
		user, err = s.users.FindByRecovery2ID(ctx, req.Recovery2ID)
		hash, secret = func(u *User) []byte { return u.Recovery2AuthHash }, recoveryDigest(req.Recovery2Auth)
	case req.UserID != "" && req.PasswordAuth != "":
		user, err = s.users.Get(ctx, req.UserID)
		hash, secret = func(u *User) []byte { return u.PasswordAuthHash }, req.PasswordAuth
	case req.UserID != "" && req.LoginAuth != "":
		user, err = s.users.Get(ctx, req.UserID)
		if err == nil && subtle.ConstantTimeCompare(user.LoginAuthHash, sha(req.LoginAuth)) == 1 {
			return user, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, &abc.AuthError{}
	default:
		return nil, badRequest("no credentials in login request")
	}

	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if user == nil || len(hash(user)) == 0 {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
		return nil, &abc.AuthError{}
	}
	if bcrypt.CompareHashAndPassword(hash(user), []byte(secret)) != nil {
		return nil, &abc.AuthError{}
	}
	return user, nil
}

// authenticate checks a loginAuth proof for an already logged-in client.
func (s *Service) authenticate(ctx context.Context, auth model.AuthBody) (*User, error) {
	if auth.UserID == "" || auth.LoginAuth == "" {
		return nil, &abc.AuthError{}
	}
	user, err := s.users.Get(ctx, auth.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &abc.AuthError{}
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare(user.LoginAuthHash, sha(auth.LoginAuth)) != 1 {
		return nil, &abc.AuthError{}
	}
	return user, nil
}

// update authenticates, applies fn and stores the user.
func (s *Service) update(ctx context.Context, auth model.AuthBody, fn func(*User) error) error {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	user, err := s.authenticate(ctx, auth)
	if err != nil {
		return err
	}
	if err := fn(user); err != nil {
		return err
	}
	return s.users.Put(ctx, user)
}

// CreateLogin registers a new account.
func (s *Service) CreateLogin(ctx context.Context, req model.CreateLoginRequest) error {
	if req.UserID == "" || req.LoginAuth == "" {
		return badRequest("userId and loginAuth are required")
	}
	hasPassword := req.PasswordAuth != ""
	if hasPassword != (req.PasswordKeySnrp != nil) || hasPassword != (req.PasswordBox != nil) {
		return badRequest("password fields must be set together")
	}

	user := &User{
		UserID:        req.UserID,
		LoginAuthHash: sha(req.LoginAuth),
		WalletBox:     req.WalletBox,
	}
	if hasPassword {
		h, err := s.hash(req.PasswordAuth)
		if err != nil {
			return err
		}
		user.PasswordAuthHash = h
		user.PasswordKeySnrp = req.PasswordKeySnrp
		user.PasswordBox = req.PasswordBox
	}

	s.userMu.Lock()
	defer s.userMu.Unlock()
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrExists) {
			return abc.ErrUsernameTaken
		}
		return err
	}
	s.log.Info("login created", zap.String("user_id", req.UserID))
	return nil
}

// ChangePassword replaces the password authenticator and box.
func (s *Service) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	if req.PasswordAuth == "" || req.PasswordKeySnrp == nil || req.PasswordBox == nil {
		return badRequest("password fields are required")
	}
	h, err := s.hash(req.PasswordAuth)
	if err != nil {
		return err
	}
	return s.update(ctx, req.AuthBody, func(u *User) error {
		u.PasswordAuthHash = h
		u.PasswordKeySnrp = req.PasswordKeySnrp
		u.PasswordBox = req.PasswordBox
		return nil
	})
}

// ChangePin2 replaces or, with an empty id, removes the PIN authenticator.
func (s *Service) ChangePin2(ctx context.Context, req model.ChangePin2Request) error {
	if req.Pin2ID == "" {
		return s.update(ctx, req.AuthBody, func(u *User) error {
			u.Pin2ID, u.Pin2AuthHash, u.Pin2Box = "", nil, nil
			return nil
		})
	}
	if req.Pin2Auth == "" || req.Pin2Box == nil {
		return badRequest("pin2Auth and pin2Box are required")
	}
	h, err := s.hash(req.Pin2Auth)
	if err != nil {
		return err
	}
	return s.update(ctx, req.AuthBody, func(u *User) error {
		u.Pin2ID, u.Pin2AuthHash, u.Pin2Box = req.Pin2ID, h, req.Pin2Box
		return nil
	})
}

// ChangeRecovery2 replaces the recovery questions and answers.
func (s *Service) ChangeRecovery2(ctx context.Context, req model.ChangeRecovery2Request) error {
	if req.Recovery2ID == "" || len(req.Recovery2Auth) == 0 || req.Question2Box == nil || req.Recovery2Box == nil {
		return badRequest("recovery fields are required")
	}
	h, err := s.hash(recoveryDigest(req.Recovery2Auth))
	if err != nil {
		return err
	}
	return s.update(ctx, req.AuthBody, func(u *User) error {
		u.Recovery2ID = req.Recovery2ID
		u.Recovery2AuthHash = h
		u.Question2Box = req.Question2Box
		u.Recovery2Box = req.Recovery2Box
		return nil
	})
}

// Recovery2Questions returns the encrypted questions for a recovery id.
func (s *Service) Recovery2Questions(ctx context.Context, recovery2ID string) (*model.EncryptedBox, error) {
	if recovery2ID == "" {
		return nil, badRequest("recovery2Id is required")
	}
	user, err := s.users.FindByRecovery2ID(ctx, recovery2ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &abc.AuthError{}
		}
		return nil, err
	}
	return user.Question2Box, nil
}

// QuestionChoices lists the suggested recovery questions.
func (s *Service) QuestionChoices(context.Context) ([]string, error) {
	out := make([]string, len(s.questions))
	copy(out, s.questions)
	return out, nil
}

// EnableOtp stores a new OTP secret, superseding any pending reset.
func (s *Service) EnableOtp(ctx context.Context, req model.EnableOtpRequest) error {
	if _, err := s.otp.Generate(req.OtpKey, s.now()); err != nil || req.OtpKey == "" {
		return badRequest("otpKey is not a valid base32 secret")
	}
	if req.OtpTimeout < 0 {
		return badRequest("otpTimeout must not be negative")
	}
	return s.update(ctx, req.AuthBody, func(u *User) error {
		u.Otp.Enable(req.OtpKey, time.Duration(req.OtpTimeout)*time.Second)
		u.OtpResetToken = ""
		return nil
	})
}

// DisableOtp clears the OTP secret.
func (s *Service) DisableOtp(ctx context.Context, auth model.AuthBody) error {
	return s.update(ctx, auth, func(u *User) error {
		u.Otp.Disable()
		u.OtpResetToken = ""
		return nil
	})
}

// CancelOtpReset drops a pending reset.
func (s *Service) CancelOtpReset(ctx context.Context, auth model.AuthBody) error {
	return s.update(ctx, auth, func(u *User) error {
		u.Otp.CancelReset()
		u.OtpResetToken = ""
		return nil
	})
}

// RequestOtpReset schedules OTP removal for a locked-out account.
func (s *Service) RequestOtpReset(ctx context.Context, userID, resetToken string) (time.Time, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, &abc.AuthError{}
		}
		return time.Time{}, err
	}
	if resetToken == "" || subtle.ConstantTimeCompare([]byte(user.OtpResetToken), []byte(resetToken)) != 1 {
		return time.Time{}, &abc.AuthError{}
	}

	date, err := user.Otp.RequestReset(s.now(), s.resetWindow)
	if err != nil {
		return time.Time{}, badRequest(err.Error())
	}
	if err := s.users.Put(ctx, user); err != nil {
		return time.Time{}, err
	}
	s.log.Info("otp reset requested", zap.String("user_id", userID), zap.Time("reset_date", date))
	return date, nil
}

// SaveWallets stores the encrypted wallet list.
func (s *Service) SaveWallets(ctx context.Context, req model.SaveWalletsRequest) error {
	if req.WalletBox == nil {
		return badRequest("walletBox is required")
	}
	return s.update(ctx, req.AuthBody, func(u *User) error {
		u.WalletBox = req.WalletBox
		return nil
	})
}

// UsernameAvailable reports whether userID is unregistered.
func (s *Service) UsernameAvailable(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, badRequest("userId is required")
	}
	_, err := s.users.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		return true, nil
	case err != nil:
		return false, err
	default:
		return false, nil
	}
}
