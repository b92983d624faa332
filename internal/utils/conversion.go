/*
This file contains common utility functions for converting between decimal
display amounts and fixed-point integer token units, and the single
fixed-point comparison routine used everywhere an amount meets a balance.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrInvalidAmount    = errors.New("amount is not a valid decimal string")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrInvalidSlippage  = errors.New("slippage percent is invalid")
)

// ParseUnits converts a decimal string to its fixed-point integer
// representation (amount * 10^decimals). Fractional digits beyond the token's
// precision are truncated, never rounded up.
func ParseUnits(amount string, decimals int) (sdkmath.Int, error) {
	if decimals < 0 || decimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}

	amount = strings.TrimSpace(amount)
	if amount == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	if strings.HasPrefix(amount, "-") {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	intPart := amount
	fracPart := ""
	if i := strings.Index(amount, "."); i >= 0 {
		intPart = amount[:i]
		fracPart = amount[i+1:]
		if strings.Contains(fracPart, ".") {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	// Truncate to the token's precision; pad the remainder with zeros.
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	raw := strings.TrimLeft(intPart+fracPart, "0")
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}

	value, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return value, nil
}

// FormatUnits converts a fixed-point integer amount back to its decimal
// display form using the token's decimal count.
func FormatUnits(amount sdkmath.Int, decimals int) (string, error) {
	if decimals < 0 || decimals > 18 {
		return "", fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}
	if amount.IsNegative() {
		return "", ErrAmountNegative
	}

	raw := amount.String()
	if decimals == 0 {
		return raw, nil
	}
	if len(raw) <= decimals {
		raw = strings.Repeat("0", decimals-len(raw)+1) + raw
	}

	intPart := raw[:len(raw)-decimals]
	fracPart := strings.TrimRight(raw[len(raw)-decimals:], "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

// ParsePositive parses a decimal string and requires the fixed-point result to
// be strictly positive. It is the shared validity check for quote and commit
// preconditions.
func ParsePositive(amount string, decimals int) (sdkmath.Int, error) {
	value, err := ParseUnits(amount, decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !value.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: must be positive, got %q", ErrInvalidAmount, amount)
	}
	return value, nil
}

// CompareAmounts compares two decimal strings at the given precision and
// returns -1, 0 or 1. Both sides go through the same fixed-point conversion,
// so a display amount never races a raw balance in a different base.
func CompareAmounts(a, b string, decimals int) (int, error) {
	av, err := ParseUnits(a, decimals)
	if err != nil {
		return 0, fmt.Errorf("left amount: %w", err)
	}
	bv, err := ParseUnits(b, decimals)
	if err != nil {
		return 0, fmt.Errorf("right amount: %w", err)
	}
	return av.BigInt().Cmp(bv.BigInt()), nil
}

// MinOutput computes the execution-time slippage floor:
// amount * (100 - slippagePercent) / 100, rounded down to the destination
// token's decimal precision. This is distinct from the displayed quote.
func MinOutput(amount string, slippagePercent float64, decimals int) (string, error) {
	if decimals < 0 || decimals > 18 {
		return "", fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, decimals)
	}
	if math.IsNaN(slippagePercent) || math.IsInf(slippagePercent, 0) {
		return "", fmt.Errorf("%w: not finite", ErrInvalidSlippage)
	}
	if slippagePercent < 0 || slippagePercent >= 100 {
		return "", fmt.Errorf("%w: %f (must be in [0, 100))", ErrInvalidSlippage, slippagePercent)
	}

	amountDec, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if amountDec.IsNegative() {
		return "", ErrAmountNegative
	}

	// The tolerance factor stays in decimal arithmetic end to end. Computing
	// (100 - slippage) / 100 in float64 first would turn 1.0 into a factor of
	// 0.989999... and shave the last unit off the floor.
	slipDec, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(slippagePercent, 'f', -1, 64))
	if err != nil {
		return "", fmt.Errorf("%w: %f", ErrInvalidSlippage, slippagePercent)
	}
	factorDec := sdkmath.LegacyNewDec(100).Sub(slipDec).QuoInt64(100)

	scale := sdkmath.LegacyNewDec(10).Power(uint64(decimals))
	floor := amountDec.Mul(factorDec).Mul(scale).TruncateInt()

	return FormatUnits(floor, decimals)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
