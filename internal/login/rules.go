package login

import (
	"math"
	"unicode"

	"github.com/AlexZinkM/abc-core/abc"
)

const (
	minPasswordLength = 8
	// Passwords at least this long pass regardless of character classes.
	extraLongPassword = 16
	guessesPerSecond  = 1e10
)

// CheckPasswordRules grades a password without any I/O.
func CheckPasswordRules(password string) abc.PasswordRules {
	var hasDigit, hasLower, hasUpper, hasOther bool
	length := 0
	for _, r := range password {
		length++
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case unicode.IsPrint(r):
			hasOther = true
		}
	}

	charset := 0
	if hasDigit {
		charset += 10
	}
	if hasLower {
		charset += 26
	}
	if hasUpper {
		charset += 26
	}
	if hasOther {
		charset += 33
	}

	var seconds float64
	if length > 0 {
		seconds = math.Pow(float64(charset), float64(length)) / guessesPerSecond
		if math.IsInf(seconds, 1) {
			seconds = math.MaxFloat64
		}
	}

	rules := abc.PasswordRules{
		SecondsToCrack: seconds,
		TooShort:       length < minPasswordLength,
		NoNumber:       !hasDigit,
		NoLowerCase:    !hasLower,
		NoUpperCase:    !hasUpper,
	}
	rules.Passed = length >= extraLongPassword ||
		!(rules.TooShort || rules.NoNumber || rules.NoLowerCase || rules.NoUpperCase)
	return rules
}
