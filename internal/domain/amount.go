package domain

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// tokenDecimals is the precision of the escrow token's base unit.
const tokenDecimals = 18

// Amount is a non-negative token quantity expressed in base units.
// The zero value is zero. Amounts are immutable; arithmetic returns new values.
type Amount struct {
	v *big.Int
}

// NewAmount returns n base units.
func NewAmount(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// WholeTokens returns n whole tokens, i.e. n * 10^18 base units.
func WholeTokens(n uint64) Amount {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(tokenDecimals), nil)
	return Amount{v: scale.Mul(scale, new(big.Int).SetUint64(n))}
}

// ParseAmount decodes a base-10 integer string. Negative values are rejected.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount %q: not a base-10 integer", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount %q: must not be negative", s)
	}
	return Amount{v: v}, nil
}

// MustParseAmount is like ParseAmount but panics on malformed input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// BigInt returns a copy of the underlying value.
func (a Amount) BigInt() *big.Int { return new(big.Int).Set(a.int()) }

func (a Amount) IsZero() bool { return a.int().Sign() == 0 }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.int().Cmp(b.int()) }

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.int(), b.int())}
}

// Sub returns a - b. Panics if b is greater than a.
func (a Amount) Sub(b Amount) Amount {
	if a.Cmp(b) < 0 {
		panic(fmt.Sprintf("amount: %s - %s underflows", a, b))
	}
	return Amount{v: new(big.Int).Sub(a.int(), b.int())}
}

// MulUint64 returns a * n.
func (a Amount) MulUint64(n uint64) Amount {
	return Amount{v: new(big.Int).Mul(a.int(), new(big.Int).SetUint64(n))}
}

func (a Amount) String() string { return a.int().String() }

func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount as a decimal string; SQLite integers are too narrow.
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

func (a *Amount) Scan(val any) error {
	switch v := val.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: cannot scan negative %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T", val)
	}
}
