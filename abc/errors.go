package abc

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLoggedOut is returned by every account operation after Logout.
	ErrLoggedOut = errors.New("account is logged out")
	// ErrPinLoginDisabled is returned when PIN login was never set up on this device.
	ErrPinLoginDisabled = errors.New("pin login is not enabled for this username")
	// ErrUsernameTaken is returned by CreateAccount when the username is registered.
	ErrUsernameTaken = errors.New("username is already taken")
)

// AuthError is a rejected credential. Unknown usernames produce the same error.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "invalid credentials"
	}
	return e.Message
}

// IsAuthError checks if error is AuthError
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// OtpRequiredError means the login needs a valid OTP code.
// ResetToken lets the caller start an OTP reset for the account.
type OtpRequiredError struct {
	ResetToken string
	ResetDate  *time.Time
}

func (e *OtpRequiredError) Error() string {
	return "otp code required"
}

// IsOtpRequiredError checks if error is OtpRequiredError
func IsOtpRequiredError(err error) bool {
	var target *OtpRequiredError
	return errors.As(err, &target)
}

// OtpResetPendingError means a reset was requested and has not matured yet.
type OtpResetPendingError struct {
	ResetDate time.Time
}

func (e *OtpResetPendingError) Error() string {
	return fmt.Sprintf("otp reset pending until %s", e.ResetDate.UTC().Format(time.RFC3339))
}

// IsOtpResetPendingError checks if error is OtpResetPendingError
func IsOtpResetPendingError(err error) bool {
	var target *OtpResetPendingError
	return errors.As(err, &target)
}

// LobbyExpiredError is returned for a cancelled, expired or unknown lobby.
type LobbyExpiredError struct {
	LobbyID string
}

func (e *LobbyExpiredError) Error() string {
	return fmt.Sprintf("lobby %s has expired", e.LobbyID)
}

// IsLobbyExpiredError checks if error is LobbyExpiredError
func IsLobbyExpiredError(err error) bool {
	var target *LobbyExpiredError
	return errors.As(err, &target)
}

// AlreadyResolvedError is returned when a lobby was already approved.
type AlreadyResolvedError struct {
	LobbyID string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("lobby %s was already resolved", e.LobbyID)
}

// IsAlreadyResolvedError checks if error is AlreadyResolvedError
func IsAlreadyResolvedError(err error) bool {
	var target *AlreadyResolvedError
	return errors.As(err, &target)
}

// NotFoundError is an unknown wallet, username or plugin.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsNotFoundError checks if error is NotFoundError
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// ValidationError is a document or argument rejected before any I/O.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError checks if error is ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// EngineError wraps a currency engine failure for one wallet.
type EngineError struct {
	WalletID string
	Err      error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine for wallet %s: %v", e.WalletID, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// IsEngineError checks if error is EngineError
func IsEngineError(err error) bool {
	var target *EngineError
	return errors.As(err, &target)
}

// StorageError wraps a failure of the blob store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError checks if error is StorageError
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// NetworkError wraps a failed request to the login server or another remote.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError checks if error is NetworkError
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}
