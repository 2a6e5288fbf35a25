package common

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DecimalsFromMultiplier returns the exponent of a power-of-ten denomination
// multiplier. Example: DecimalsFromMultiplier("1000000000") = 9
func DecimalsFromMultiplier(multiplier string) (int, error) {
	if len(multiplier) == 0 || multiplier[0] != '1' || strings.Trim(multiplier[1:], "0") != "" {
		return 0, fmt.Errorf("multiplier %q is not a power of ten", multiplier)
	}
	return len(multiplier) - 1, nil
}

// FormatNative converts a native integer amount to a decimal string without
// float precision loss. Trailing fractional zeros are dropped.
// Example: FormatNative(24981836, 9) = "0.024981836"
func FormatNative(value uint64, decimals int) string {
	s := FormatWithDecimals(value, decimals)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatWithDecimals inserts a decimal point into an integer amount.
// Example: FormatWithDecimals(24981836, 9) = "0.024981836"
func FormatWithDecimals(value uint64, decimals int) string {
	s := strconv.FormatUint(value, 10)
	if decimals <= 0 {
		return s
	}

	// Pad with leading zeros if needed
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// ParseWithDecimals converts a decimal string to its native integer amount.
// Digits beyond the currency's precision are rejected rather than truncated.
// Example: ParseWithDecimals("0.024981836", 9) = 24981836
func ParseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}

	whole, frac, found := strings.Cut(s, ".")
	if found && strings.Contains(frac, ".") {
		return 0, fmt.Errorf("invalid decimal format %q", s)
	}
	if whole == "" {
		whole = "0"
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	n, err := strconv.ParseUint(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return n, nil
}

// ParseNative parses an integer amount string in the smallest unit.
func ParseNative(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse native amount %q: %w", s, err)
	}
	return n, nil
}

// CompareNative compares two native integer amounts.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b, and error if parsing fails
func CompareNative(a, b string) (int, error) {
	aVal, err := ParseNative(a)
	if err != nil {
		return 0, err
	}
	bVal, err := ParseNative(b)
	if err != nil {
		return 0, err
	}

	switch {
	case aVal < bVal:
		return -1, nil
	case aVal > bVal:
		return 1, nil
	default:
		return 0, nil
	}
}
