// Package felt implements decimal/hex conversion and range checks for the
// field-element and felt252 strings that flow across the ASP's HTTP and
// prover boundaries. Conversion leans on math/big directly; see
// DESIGN.md for why no third-party big-field library covers this prime.
package felt

import (
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/zylith-labs/asp/apperr"
)

// MaxTick is the maximum (and negated minimum) signed tick value.
const MaxTick = 887272

// TickOffset is added to a signed tick before it enters a circuit.
const TickOffset = 887272

var (
	// felt252Max = 2^251 + 17*2^192, the felt252 address/field bound.
	felt252Max = func() *big.Int {
		v := new(big.Int).Lsh(big.NewInt(1), 251)
		seventeenShift := new(big.Int).Lsh(big.NewInt(17), 192)
		return v.Add(v, seventeenShift)
	}()

	u256Max = func() *big.Int {
		v := new(big.Int).Lsh(big.NewInt(1), 256)
		return v.Sub(v, big.NewInt(1))
	}()
)

// HexToDecimal parses a "0x"-prefixed hex u256 string and returns its
// decimal representation.
func HexToDecimal(hex string) (string, error) {
	v, err := parseHexU256(hex, "value")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// DecimalToHex converts a decimal field-element string to a "0x"-prefixed
// hex string.
func DecimalToHex(decimal string) (string, error) {
	v, ok := new(big.Int).SetString(decimal, 10)
	if !ok || v.Sign() < 0 {
		return "", apperr.Invalid("value is not a valid decimal number")
	}
	return "0x" + v.Text(16), nil
}

// ValidateHexU256 validates that value is a "0x"-prefixed hex string that
// fits in 256 bits.
func ValidateHexU256(value, fieldName string) error {
	_, err := parseHexU256(value, fieldName)
	return err
}

func parseHexU256(value, fieldName string) (*big.Int, error) {
	if value == "" {
		return nil, apperr.Invalid("%s is required", fieldName)
	}
	stripped, ok := stripHexPrefix(value)
	if !ok {
		return nil, apperr.Invalid("%s must be hex-prefixed (0x...)", fieldName)
	}
	if stripped == "" {
		return nil, apperr.Invalid("%s has empty hex value", fieldName)
	}
	v, ok := new(big.Int).SetString(stripped, 16)
	if !ok {
		return nil, apperr.Invalid("%s is not valid hex", fieldName)
	}
	if v.Cmp(u256Max) > 0 {
		return nil, apperr.Invalid("%s exceeds u256 range", fieldName)
	}
	return v, nil
}

// ValidateDecimal validates that value is a non-negative decimal integer.
func ValidateDecimal(value, fieldName string) error {
	if value == "" {
		return apperr.Invalid("%s is required", fieldName)
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return apperr.Invalid("%s must be a valid decimal number", fieldName)
	}
	return nil
}

// ValidateAddress validates a hex-encoded felt252 address/field value.
func ValidateAddress(value, fieldName string) error {
	if value == "" {
		return apperr.Invalid("%s is required", fieldName)
	}
	stripped, ok := stripHexPrefix(value)
	if !ok {
		return apperr.Invalid("%s must be hex-prefixed (0x...)", fieldName)
	}
	v, ok := new(big.Int).SetString(stripped, 16)
	if !ok {
		return apperr.Invalid("%s is not valid hex", fieldName)
	}
	if v.Cmp(felt252Max) >= 0 {
		return apperr.Invalid("%s exceeds felt252 range", fieldName)
	}
	return nil
}

// ValidateSecret checks only that a secret field is present.
func ValidateSecret(value, fieldName string) error {
	if value == "" {
		return apperr.Invalid("%s is required", fieldName)
	}
	return nil
}

// ValidateTick checks tick lies within [-MaxTick, MaxTick].
func ValidateTick(tick int32, fieldName string) error {
	if tick < -MaxTick || tick > MaxTick {
		return apperr.Invalid("%s must be between %d and %d", fieldName, -MaxTick, MaxTick)
	}
	return nil
}

// ValidateTickRange checks both ticks are valid and tickLower < tickUpper.
func ValidateTickRange(tickLower, tickUpper int32) error {
	if err := ValidateTick(tickLower, "tick_lower"); err != nil {
		return err
	}
	if err := ValidateTick(tickUpper, "tick_upper"); err != nil {
		return err
	}
	if tickLower >= tickUpper {
		return apperr.Invalid("tick_lower must be less than tick_upper")
	}
	return nil
}

// OffsetTick shifts a signed tick into its unsigned circuit representation.
func OffsetTick(tick int32) uint32 {
	return uint32(tick + TickOffset)
}

func stripHexPrefix(value string) (string, bool) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return value[2:], true
	}
	return "", false
}

// U256ToFelts splits a u256 (decimal or 0x-hex string) into its low/high
// 128-bit halves, each returned as a decimal field-element string. The
// relayer does not call it; RealChain passes u256 values through unsplit.
func U256ToFelts(value string) (low string, high string, err error) {
	var v *big.Int
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		stripped, _ := stripHexPrefix(value)
		var ok bool
		v, ok = new(big.Int).SetString(stripped, 16)
		if !ok {
			return "", "", apperr.Invalid("value is not valid hex")
		}
	} else {
		var ok bool
		v, ok = new(big.Int).SetString(value, 10)
		if !ok {
			return "", "", apperr.Invalid("value is not a valid decimal number")
		}
	}
	if v.Sign() < 0 || v.Cmp(u256Max) > 0 {
		return "", "", apperr.Invalid("value exceeds u256 range")
	}

	u, overflow := uint256.FromBig(v)
	if overflow {
		return "", "", apperr.Invalid("value exceeds u256 range")
	}
	mask128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	big256 := u.ToBig()
	lowBig := new(big.Int).And(big256, mask128)
	highBig := new(big.Int).Rsh(big256, 128)
	return lowBig.String(), highBig.String(), nil
}

// FeltsToDecimal reconstructs a u256 decimal string from its low/high
// 128-bit decimal halves: (high << 128) | low.
func FeltsToDecimal(low, high string) (string, error) {
	lowV, ok := new(big.Int).SetString(low, 10)
	if !ok {
		return "", apperr.Invalid("low is not a valid decimal number")
	}
	highV, ok := new(big.Int).SetString(high, 10)
	if !ok {
		return "", apperr.Invalid("high is not a valid decimal number")
	}
	result := new(big.Int).Lsh(highV, 128)
	result.Or(result, lowV)
	return result.String(), nil
}
