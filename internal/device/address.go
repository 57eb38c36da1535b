package device

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	x10Prefix    = "X10."
	maxX10Unit   = 16
	addressBytes = 3
)

// Address identifies a device on the network. Insteon devices use their
// three address bytes printed as "1A.2B.3C"; X10 devices get a synthetic
// "X10.<house>.<unit>" address.
type Address string

// ParseAddress accepts "1a2b3c", "1A.2B.3C", "1a:2b:3c" or an X10 address
// such as "x10.a.5" or its ID form "x10_a_05", and returns the canonical
// form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)

	if up := strings.ToUpper(s); strings.HasPrefix(up, x10Prefix) || strings.HasPrefix(up, "X10_") {
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '_' })
		if len(parts) != 3 || len(parts[1]) != 1 {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		unit, err := strconv.Atoi(parts[2])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		return X10Address(parts[1], unit)
	}

	clean := strings.NewReplacer(".", "", ":", "", " ", "").Replace(s)
	if len(clean) != addressBytes*2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return AddressFromBytes([3]byte{raw[0], raw[1], raw[2]}), nil
}

// MustParseAddress is ParseAddress for constants in tests and tables.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes builds an Insteon address from its wire bytes.
func AddressFromBytes(b [3]byte) Address {
	return Address(fmt.Sprintf("%02X.%02X.%02X", b[0], b[1], b[2]))
}

// X10Address builds the synthetic address of an X10 house/unit pair.
func X10Address(house string, unit int) (Address, error) {
	house = strings.ToUpper(house)
	if len(house) != 1 || house[0] < 'A' || house[0] > 'P' {
		return "", fmt.Errorf("%w: x10 house code %q", ErrInvalidAddress, house)
	}
	if unit < 1 || unit > maxX10Unit {
		return "", fmt.Errorf("%w: x10 unit code %d", ErrInvalidAddress, unit)
	}
	return Address(fmt.Sprintf("%s%s.%02d", x10Prefix, house, unit)), nil
}

// String returns the canonical address.
func (a Address) String() string { return string(a) }

// IsX10 reports whether a is a synthetic X10 address.
func (a Address) IsX10() bool { return strings.HasPrefix(string(a), x10Prefix) }

// Bytes returns the three wire bytes of an Insteon address.
func (a Address) Bytes() ([3]byte, error) {
	var out [3]byte
	if a.IsX10() {
		return out, fmt.Errorf("%w: %s has no wire bytes", ErrInvalidAddress, a)
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(string(a), ".", ""))
	if err != nil || len(raw) != addressBytes {
		return out, fmt.Errorf("%w: %q", ErrInvalidAddress, string(a))
	}
	copy(out[:], raw)
	return out, nil
}

// ID returns a lowercase identifier without separators, suitable for MQTT
// topics and entity ids: "1a2b3c" or "x10_a_05".
func (a Address) ID() string {
	s := strings.ToLower(string(a))
	if a.IsX10() {
		return strings.ReplaceAll(s, ".", "_")
	}
	return strings.ReplaceAll(s, ".", "")
}
