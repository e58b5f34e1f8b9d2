package core

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// AmountScale is the number of decimal places carried by Amount.
const AmountScale = 6

const microsPerUnit int64 = 1_000_000

var ErrInvalidAmount = errors.New("core: invalid amount")

// Amount is a fixed-point monetary value in micro-units of its currency.
type Amount int64

func AmountFromMicros(micros int64) Amount {
	return Amount(micros)
}

// AmountFromMinorUnits converts an integer amount expressed with the given
// number of decimal places (2 for cents) into an Amount.
func AmountFromMinorUnits(value int64, exponent int) (Amount, error) {
	if exponent < 0 || exponent > AmountScale {
		return 0, fmt.Errorf("%w: unsupported exponent %d", ErrInvalidAmount, exponent)
	}
	factor := pow10Int64(AmountScale - exponent)
	result := value * factor
	if value != 0 && result/factor != value {
		return 0, fmt.Errorf("%w: %d overflows", ErrInvalidAmount, value)
	}
	return Amount(result), nil
}

// ParseAmount parses a decimal literal in major units ("19.999999", "1e-5").
// Digits beyond AmountScale are rounded half away from zero.
func ParseAmount(value string) (Amount, error) {
	return parseScaledAmount(value, 0)
}

// ParseMinorUnits parses a decimal literal expressed in minor units, such as
// a cents string with fractional digits ("1234.5" with exponent 2).
func ParseMinorUnits(value string, exponent int) (Amount, error) {
	return parseScaledAmount(value, exponent)
}

func parseScaledAmount(value string, exponent int) (Amount, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	if strings.Contains(trimmed, "/") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	shift := AmountScale - exponent
	if shift >= 0 {
		rat.Mul(rat, new(big.Rat).SetInt(pow10Big(shift)))
	} else {
		rat.Quo(rat, new(big.Rat).SetInt(pow10Big(-shift)))
	}

	num := rat.Num()
	den := rat.Denom()
	quotient, remainder := new(big.Int).QuoRem(num, den, new(big.Int))
	twice := new(big.Int).Mul(new(big.Int).Abs(remainder), big.NewInt(2))
	if twice.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			quotient.Sub(quotient, big.NewInt(1))
		} else {
			quotient.Add(quotient, big.NewInt(1))
		}
	}
	if !quotient.IsInt64() {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, value)
	}
	return Amount(quotient.Int64()), nil
}

func (a Amount) Micros() int64 {
	return int64(a)
}

func (a Amount) IsNegative() bool {
	return a < 0
}

func (a Amount) Add(other Amount) Amount {
	return a + other
}

// String renders the exact decimal value without trailing zeros.
func (a Amount) String() string {
	value := int64(a)
	sign := ""
	var magnitude uint64
	if value < 0 {
		sign = "-"
		magnitude = uint64(-(value + 1)) + 1
	} else {
		magnitude = uint64(value)
	}
	whole := magnitude / uint64(microsPerUnit)
	fraction := magnitude % uint64(microsPerUnit)
	if fraction == 0 {
		return sign + strconv.FormatUint(whole, 10)
	}
	digits := fmt.Sprintf("%06d", fraction)
	digits = strings.TrimRight(digits, "0")
	return sign + strconv.FormatUint(whole, 10) + "." + digits
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func pow10Int64(exp int) int64 {
	result := int64(1)
	for i := 0; i < exp; i++ {
		result *= 10
	}
	return result
}

func pow10Big(exp int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}
