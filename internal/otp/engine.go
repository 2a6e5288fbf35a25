// Package otp generates and checks time-based one-time codes and tracks the
// per-account OTP state machine.
package otp

import (
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/AlexZinkM/abc-core/platform"
)

const (
	DefaultPeriod = 30 * time.Second
	keyBytes      = 10
)

// Engine generates and validates TOTP codes (RFC 6238, HMAC-SHA1, 6 digits).
type Engine struct {
	Period time.Duration
	// DriftSteps is how many periods either side of now are accepted.
	DriftSteps int
}

// NewEngine returns an engine with the default 30 second period.
func NewEngine(driftSteps int) *Engine {
	if driftSteps < 0 {
		driftSteps = 0
	}
	return &Engine{Period: DefaultPeriod, DriftSteps: driftSteps}
}

var opts = hotp.ValidateOpts{Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1}

// NewKey returns a fresh base32 secret without padding.
func NewKey(random platform.RandomFunc) (string, error) {
	raw, err := random(keyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp key: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

func (e *Engine) counter(t time.Time) int64 {
	return t.Unix() / int64(e.Period/time.Second)
}

// Generate returns the code for time t.
func (e *Engine) Generate(key string, t time.Time) (string, error) {
	return e.generateAt(key, e.counter(t))
}

func (e *Engine) generateAt(key string, counter int64) (string, error) {
	if counter < 0 {
		return "", errors.New("otp counter is negative")
	}
	code, err := hotp.GenerateCodeCustom(key, uint64(counter), opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return code, nil
}

// Validate checks code against the window around t. It returns the step
// offset of the matching code; 0 means no drift. The window never grows.
func (e *Engine) Validate(key, code string, t time.Time) (drift int, ok bool, err error) {
	if len(code) != opts.Digits.Length() {
		return 0, false, nil
	}

	now := e.counter(t)
	for _, offset := range e.offsets() {
		want, err := e.generateAt(key, now+int64(offset))
		if err != nil {
			return 0, false, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return offset, true, nil
		}
	}
	return 0, false, nil
}

// offsets lists 0, -1, +1, -2, +2 ... so the zero-drift match wins.
func (e *Engine) offsets() []int {
	out := make([]int, 0, 2*e.DriftSteps+1)
	out = append(out, 0)
	for i := 1; i <= e.DriftSteps; i++ {
		out = append(out, -i, i)
	}
	return out
}
