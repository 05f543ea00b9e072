// Package money holds rupee amounts as integer paise so that balance
// arithmetic is exact. Conversion to and from human-facing decimals goes
// through shopspring/decimal.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits (paise per rupee = 10^Scale).
const Scale = 2

var (
	ErrPrecision  = errors.New("amount has more than two decimal places")
	ErrOutOfRange = errors.New("amount is out of range")
)

var (
	maxPaise = decimal.NewFromInt(math.MaxInt64)
	minPaise = decimal.NewFromInt(math.MinInt64)
)

// Amount is a value in paise.
type Amount int64

func FromRupees(rupees int64) Amount {
	return Amount(rupees * 100)
}

func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return 0, ErrPrecision
	}
	paise := d.Shift(Scale)
	if paise.GreaterThan(maxPaise) || paise.LessThan(minPaise) {
		return 0, ErrOutOfRange
	}
	return Amount(paise.IntPart()), nil
}

// Add returns a+b and false when the sum does not fit in an Amount.
func Add(a, b Amount) (Amount, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// Parse reads "149", "149.5" or "149.50".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

func (a Amount) IsPositive() bool { return a > 0 }

// MulRate multiplies by a rate and rounds half away from zero to the paisa.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount(a.Decimal().Mul(rate).Round(Scale).Shift(Scale).IntPart())
}

// MarshalJSON encodes the amount as a plain JSON number in rupees, e.g. 149.50.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
