// Package oracle prices a market sell of the stable asset against the ask side
// of the internal order book.
package oracle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

// Markup lowers the quoted receive amount by 0.5% against the clearing price.
var Markup = decimal.RequireFromString("1.005")

const DefaultDepth = 50

type Book interface {
	OrderBook(ctx context.Context, depth int) ([]domain.Ask, error)
}

type Oracle struct {
	book  Book
	depth int
}

func New(book Book, depth int) *Oracle {
	if depth <= 0 {
		depth = DefaultDepth
	}

	return &Oracle{
		book:  book,
		depth: depth,
	}
}

// Quote returns the minimum native amount to ask for when selling sell units
// of the stable asset at the current book.
func (o *Oracle) Quote(ctx context.Context, sell decimal.Decimal) (decimal.Decimal, error) {
	asks, err := o.book.OrderBook(ctx, o.depth)
	if err != nil {
		return decimal.Zero, err
	}

	return Quote(asks, sell)
}

// Quote is the pure form of Oracle.Quote; asks must be sorted by increasing price.
func Quote(asks []domain.Ask, sell decimal.Decimal) (decimal.Decimal, error) {
	if !sell.IsPositive() {
		return decimal.Zero, errors.Errorf("sell amount must be positive, got %s", sell)
	}
	price, err := ClearingPrice(asks, sell)
	if err != nil {
		return decimal.Zero, err
	}

	return sell.Div(price.Mul(Markup)).Truncate(domain.AssetPrecision), nil
}

// ClearingPrice walks asks until their cumulative depth covers sell and
// returns the price of the last level consumed.
func ClearingPrice(asks []domain.Ask, sell decimal.Decimal) (decimal.Decimal, error) {
	depth := decimal.Zero
	for i, ask := range asks {
		if !ask.Price.IsPositive() {
			return decimal.Zero, errors.Errorf("ask %d has non-positive price %s", i, ask.Price)
		}
		depth = depth.Add(ask.Depth)
		if depth.GreaterThanOrEqual(sell) {
			return ask.Price, nil
		}
	}

	return decimal.Zero, errors.Wrapf(domain.ErrInsufficientLiquidity, "book depth %s below %s", depth, sell)
}
