package domain

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account: the administrator, a buyer, the escrow or a token.
// The zero value is the null identity.
type Address [20]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed (or bare) 40 character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 2*len(a) {
		return Address{}, fmt.Errorf("address %q: want %d hex characters, got %d", s, 2*len(a), len(raw))
	}
	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return Address{}, fmt.Errorf("address %q: %w", s, err)
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on malformed input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the address as its hex string.
func (a Address) Value() (driver.Value, error) { return a.String(), nil }

func (a *Address) Scan(val any) error {
	switch v := val.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("address: cannot scan %T", val)
	}
}
