package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits of the app currency.
const Scale = 2

// Amount is a quantity of the app currency in minor units (cents).
type Amount int64

// Parse converts a decimal string such as "30" or "30.50" into an Amount.
// More than Scale fractional digits is an error rather than a rounding.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	minor := d.Shift(Scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, Scale)
	}
	if minor.GreaterThan(decimal.NewFromInt(maxMinor)) || minor.LessThan(decimal.NewFromInt(-maxMinor)) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return Amount(minor.IntPart()), nil
}

const maxMinor = 1<<62 - 1

// FromMinor wraps a raw minor-unit value.
func FromMinor(v int64) Amount { return Amount(v) }

// Minor returns the raw minor-unit value.
func (a Amount) Minor() int64 { return int64(a) }

// Decimal returns a as a decimal in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// String renders a with exactly Scale fractional digits, e.g. "30.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a > 0 }

// MulBps returns floor(a * bps / 10000) for non-negative a.
func (a Amount) MulBps(bps uint32) Amount {
	scaled := decimal.NewFromInt(int64(a)).Mul(decimal.NewFromInt(int64(bps)))
	return Amount(scaled.Div(decimal.NewFromInt(10000)).Floor().IntPart())
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	var s string
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = raw
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
