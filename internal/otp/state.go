package otp

import (
	"errors"
	"time"
)

// Status is the position of an account in the OTP state machine.
type Status int

const (
	StatusDisabled Status = iota
	StatusEnabled
	StatusResetPending
)

func (s Status) String() string {
	switch s {
	case StatusEnabled:
		return "enabled"
	case StatusResetPending:
		return "reset_pending"
	default:
		return "disabled"
	}
}

// ErrNotEnabled is returned when a reset is requested for an account without OTP.
var ErrNotEnabled = errors.New("otp is not enabled")

// State is the OTP configuration of one account.
type State struct {
	Key       string     `json:"otpKey,omitempty"`
	ResetDate *time.Time `json:"otpResetDate,omitempty"`
	// Timeout is the reset window chosen when OTP was enabled.
	Timeout time.Duration `json:"otpTimeout,omitempty"`
}

// CheckResult is the outcome of checking a login attempt.
type CheckResult struct {
	OK    bool
	Drift int
	// Matured is set when a pending reset came due and disabled OTP.
	Matured bool
}

func (s *State) Status() Status {
	switch {
	case s.Key == "":
		return StatusDisabled
	case s.ResetDate != nil:
		return StatusResetPending
	default:
		return StatusEnabled
	}
}

// Enable stores a new secret. Any pending reset is dropped.
func (s *State) Enable(key string, timeout time.Duration) {
	s.Key = key
	s.ResetDate = nil
	s.Timeout = timeout
}

// Disable clears the secret unconditionally.
func (s *State) Disable() {
	s.Key = ""
	s.ResetDate = nil
	s.Timeout = 0
}

// RequestReset schedules OTP removal. A second request keeps the first date.
func (s *State) RequestReset(now time.Time, defaultWindow time.Duration) (time.Time, error) {
	if s.Key == "" {
		return time.Time{}, ErrNotEnabled
	}
	if s.ResetDate != nil {
		return *s.ResetDate, nil
	}
	window := s.Timeout
	if window <= 0 {
		window = defaultWindow
	}
	date := now.Add(window).UTC()
	s.ResetDate = &date
	return date, nil
}

// CancelReset returns to Enabled.
func (s *State) CancelReset() {
	s.ResetDate = nil
}

// Check decides whether a login carrying code may proceed.
func (s *State) Check(e *Engine, code string, now time.Time) (CheckResult, error) {
	switch s.Status() {
	case StatusDisabled:
		return CheckResult{OK: true}, nil
	case StatusResetPending:
		if !now.Before(*s.ResetDate) {
			s.Disable()
			return CheckResult{OK: true, Matured: true}, nil
		}
	}

	drift, ok, err := e.Validate(s.Key, code, now)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{OK: ok, Drift: drift}, nil
}
