// Package amount converts between satoshis and BTC strings.
package amount

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const SatsPerBTC = 100_000_000

var satsPerBTC = decimal.NewFromInt(SatsPerBTC)

// FormatBTC renders sats as a BTC amount with eight decimals.
func FormatBTC(sats uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), -8).StringFixed(8)
}

// ParseSats accepts a plain satoshi integer ("5000") or a BTC amount with
// a "btc" suffix ("0.00005btc").
func ParseSats(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if btc, ok := strings.CutSuffix(s, "btc"); ok {
		return parseBTC(strings.TrimSpace(btc))
	}
	sats, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: expected whole satoshis", s)
	}
	return sats, nil
}

func parseBTC(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid btc amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	sats := d.Mul(satsPerBTC)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than 8 decimals", s)
	}
	if !sats.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return sats.BigInt().Uint64(), nil
}
