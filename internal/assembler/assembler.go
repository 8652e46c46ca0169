// Package assembler builds and publishes the transaction a chain head originates.
package assembler

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
	"github.com/dmitrorezn/steem-multisig-relay/internal/slot"
)

var log = logging.Logger("assembler")

const (
	DefaultTTL      = 3590 * time.Second
	DefaultOrderTTL = time.Hour
)

type Config struct {
	Mode        domain.Mode
	Pool        string
	Market      string
	Treasury    string
	Burn        string
	TransferCap decimal.Decimal
	TTL         time.Duration
	OrderTTL    time.Duration
}

type Quoter interface {
	Quote(ctx context.Context, sell decimal.Decimal) (decimal.Decimal, error)
}

type Assembler struct {
	cfg    Config
	self   domain.Participant
	tag    string
	ledger domain.Ledger
	quoter Quoter
	signer domain.Signer
	slots  slot.Store
	clock  clock.Clock
}

func New(
	cfg Config,
	self domain.Participant,
	tag string,
	ledger domain.Ledger,
	quoter Quoter,
	signer domain.Signer,
	slots slot.Store,
	clk clock.Clock,
) *Assembler {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = DefaultOrderTTL
	}

	return &Assembler{
		cfg:    cfg,
		self:   self,
		tag:    tag,
		ledger: ledger,
		quoter: quoter,
		signer: signer,
		slots:  slots,
		clock:  clk,
	}
}

// Build returns the unsigned transaction for this window, or ErrNoOperations
// when the pool holds nothing actionable.
func (a *Assembler) Build(ctx context.Context) (*domain.Transaction, error) {
	head, err := a.ledger.ChainHead(ctx)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	pool, err := a.ledger.Account(ctx, a.cfg.Pool)
	if err != nil {
		return nil, err
	}

	var ops []domain.Operation
	switch a.cfg.Mode {
	case domain.ModeTransfer:
		ops = a.transferOperations(pool)
	case domain.ModeBurn:
		if ops, err = a.burnOperations(ctx, pool, now); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown mode %q", a.cfg.Mode)
	}
	if len(ops) == 0 {
		return nil, errors.Wrapf(domain.ErrNoOperations, "pool %s", a.cfg.Pool)
	}

	return domain.NewTransaction(head, now.Add(a.cfg.TTL), ops...)
}

// transferOperations sends up to the cap to the market account and returns
// any remainder to the treasury.
func (a *Assembler) transferOperations(pool domain.Account) []domain.Operation {
	if !pool.Stable.IsPositive() {
		return nil
	}
	send := decimal.Min(pool.Stable.Amount, a.cfg.TransferCap)
	ops := []domain.Operation{domain.Transfer{
		From:   a.cfg.Pool,
		To:     a.cfg.Market,
		Amount: domain.NewAsset(send, domain.StableSymbol),
	}}
	if remainder := pool.Stable.Amount.Sub(send); remainder.IsPositive() {
		ops = append(ops, domain.Transfer{
			From:   a.cfg.Pool,
			To:     a.cfg.Treasury,
			Amount: domain.NewAsset(remainder, domain.StableSymbol),
		})
	}

	return ops
}

func (a *Assembler) burnOperations(ctx context.Context, pool domain.Account, now time.Time) ([]domain.Operation, error) {
	var ops []domain.Operation
	if pool.Native.IsPositive() {
		ops = append(ops, domain.Transfer{
			From:   a.cfg.Pool,
			To:     a.cfg.Burn,
			Amount: domain.NewAsset(pool.Native.Amount, domain.NativeSymbol),
		})
	}
	if !pool.Stable.IsPositive() {
		return ops, nil
	}
	receive, err := a.quoter.Quote(ctx, pool.Stable.Amount)
	if err != nil {
		return nil, err
	}
	if !receive.IsPositive() {
		log.Warnw("stable balance too small to sell", "pool", a.cfg.Pool, "balance", pool.Stable.String())

		return ops, nil
	}

	return append(ops, domain.MarketOrder{
		Owner:      a.cfg.Pool,
		OrderID:    uint32(now.Unix()),
		Sell:       domain.NewAsset(pool.Stable.Amount, domain.StableSymbol),
		MinReceive: domain.NewAsset(receive, domain.NativeSymbol),
		Expiration: domain.NewTime(now.Add(a.cfg.OrderTTL)),
	}), nil
}

// Originate builds, signs and publishes the transaction into this participant's slot.
func (a *Assembler) Originate(ctx context.Context) (*domain.Transaction, error) {
	tx, err := a.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err = a.signer.Sign(tx, domain.AuthorityActive); err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	payload, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	receipt, err := a.slots.Publish(ctx, a.self.Identity, a.tag, payload)
	if err != nil {
		return nil, err
	}
	log.Infow("transaction published",
		"slot", a.tag,
		"operations", len(tx.Operations),
		"expiration", tx.Expiration.Format(domain.TimeLayout),
		"receipt", receipt.ID,
	)

	return tx, nil
}
