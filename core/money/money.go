// Package money holds fixed-point monetary amounts.
//
// Amounts are stored as integer minor units (cents) so sums over many small
// taxes and installments never drift. shopspring/decimal is only used at the
// edges: parsing user input, rendering, and divisions that need rounding.
package money

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Scale is the number of minor-unit digits.
const Scale = 2

var (
	ErrInvalid   = errors.New("invalid amount")
	ErrPrecision = errors.Errorf("amount cannot have more than %d decimal places", Scale)
)

// Money is an amount in minor units.
type Money int64

// New builds an amount from major and minor units, e.g. New(1150, 50) == 1150.50.
func New(units, cents int64) Money {
	if units < 0 {
		cents = -cents
	}
	return Money(units*100 + cents)
}

// FromUnits builds a whole amount.
func FromUnits(units int64) Money { return Money(units * 100) }

// FromDecimal converts d, rejecting values finer than a minor unit or out of the int64 range.
func FromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, ErrPrecision
	}
	if !shifted.BigInt().IsInt64() {
		return 0, ErrInvalid
	}
	return Money(shifted.IntPart()), nil
}

// Parse reads a decimal string such as "1150", "1150.5" or "-12.30".
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalid
	}
	return FromDecimal(d)
}

// MustParse is Parse for literals; it panics on error.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("money.MustParse(%q): %v", s, err))
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -Scale) }

func (m Money) String() string { return m.Decimal().StringFixed(Scale) }

func (m Money) IsNegative() bool { return m < 0 }

func (m Money) IsPositive() bool { return m > 0 }

// DivRound divides m by n, rounding half to even on the minor unit.
// Dividing by zero returns zero.
func (m Money) DivRound(n int64) Money {
	if n == 0 {
		return 0
	}
	q := m.Decimal().Div(decimal.NewFromInt(n)).RoundBank(Scale)
	return Money(q.Shift(Scale).IntPart())
}

// Sum adds up amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := Parse(s)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", string(data))
	}
	*m = parsed
	return nil
}

// Value stores the amount as its minor-unit integer.
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = 0
	case int64:
		*m = Money(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return errors.Wrap(err, "scanning money")
		}
		*m = Money(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "scanning money")
		}
		*m = Money(n)
	default:
		return errors.Errorf("scanning money: unsupported type %T", src)
	}
	return nil
}
