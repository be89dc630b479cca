// Package money keeps every monetary value in integer minor units so that
// commission splits never drift through floating point.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// MinorExponent is the number of decimal places in the deployment currency.
const MinorExponent = 2

var (
	ErrNegative      = errors.New("money: amount must not be negative")
	ErrSubMinorValue = errors.New("money: amount has more precision than the minor unit")
)

// Amount is a value in minor units (cents, kobo...).
type Amount int64

func FromMinor(v int64) Amount { return Amount(v) }

// Parse reads a major-unit string such as "33.33".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts a major-unit decimal, rejecting negatives and fractions of a minor unit.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	shifted := d.Shift(MinorExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrSubMinorValue
	}
	return Amount(shifted.IntPart()), nil
}

func (a Amount) Minor() int64 { return int64(a) }

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorExponent)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorExponent)
}

// MulRate multiplies by rate and rounds half-up to the minor unit.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount(decimal.NewFromInt(int64(a)).Mul(rate).Round(0).IntPart())
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both 12.5 and "12.50".
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	s := string(data)
	if len(data) > 1 && data[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("money: %w", err)
		}
		s = unquoted
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
