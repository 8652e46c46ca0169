package domain

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	NativeSymbol   = "STEEM"
	StableSymbol   = "SBD"
	AssetPrecision = 3
)

// Asset is an amount in a ledger unit, e.g. "150.000 SBD".
type Asset struct {
	Amount decimal.Decimal
	Symbol string
}

// NewAsset truncates amount to the ledger precision.
func NewAsset(amount decimal.Decimal, symbol string) Asset {
	return Asset{Amount: amount.Truncate(AssetPrecision), Symbol: symbol}
}

// ParseAsset accepts only the ledger's canonical form: a non-negative amount
// with exactly AssetPrecision decimals and a known symbol. Anything else would
// not survive a re-encode unchanged.
func ParseAsset(s string) (Asset, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Asset{}, errors.Errorf("malformed asset %q", s)
	}
	number, symbol := fields[0], fields[1]
	if symbol != NativeSymbol && symbol != StableSymbol {
		return Asset{}, errors.Errorf("asset %q: unknown symbol", s)
	}
	whole, frac, ok := strings.Cut(number, ".")
	if !ok || !isDigits(whole) || len(frac) != AssetPrecision || !isDigits(frac) {
		return Asset{}, errors.Errorf("asset %q: amount must be non-negative with %d decimals", s, AssetPrecision)
	}
	amount, err := decimal.NewFromString(number)
	if err != nil {
		return Asset{}, errors.Wrapf(err, "malformed asset %q", s)
	}

	return Asset{Amount: amount, Symbol: symbol}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func (a Asset) String() string {
	return a.Amount.StringFixed(AssetPrecision) + " " + a.Symbol
}

func (a Asset) IsPositive() bool {
	return a.Amount.IsPositive()
}

// Units is the amount in the smallest indivisible unit.
func (a Asset) Units() int64 {
	return a.Amount.Shift(AssetPrecision).IntPart()
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Asset) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "asset")
	}
	parsed, err := ParseAsset(s)
	if err != nil {
		return err
	}
	*a = parsed

	return nil
}
