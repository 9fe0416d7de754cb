// Package money converts between human TON amounts and integer nanoTON.
package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NanoDecimals is the number of fractional digits in one TON.
const NanoDecimals = 9

// ParseTON converts a decimal TON string (e.g. "5.5") to nanoTON.
// More than nine fractional digits is an error rather than a silent truncation.
func ParseTON(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty TON amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid TON amount %q: %w", s, err)
	}
	nano := d.Shift(NanoDecimals)
	if !nano.Equal(nano.Truncate(0)) {
		return nil, fmt.Errorf("TON amount %q has more than %d decimals", s, NanoDecimals)
	}
	return nano.BigInt(), nil
}

// ParseNano parses an integer nanoTON string.
func ParseNano(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid nano amount %q", s)
	}
	return n, nil
}

// FormatTON renders nanoTON as a TON string without trailing zeros.
func FormatTON(nano *big.Int) string {
	if nano == nil {
		return "0"
	}
	return decimal.NewFromBigInt(nano, -NanoDecimals).String()
}

// IsPositive reports n > 0, treating nil as zero.
func IsPositive(n *big.Int) bool {
	return n != nil && n.Sign() > 0
}
