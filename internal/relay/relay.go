// Package relay hands a pending transaction from a participant's predecessor
// onward: validate, co-sign, then republish (middle) or submit (tail).
package relay

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/raulk/clock"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
	"github.com/dmitrorezn/steem-multisig-relay/internal/slot"
)

var log = logging.Logger("relay")

const DefaultClockSkew = 3 * time.Second

type Config struct {
	Tag       string
	Policy    Policy
	ClockSkew time.Duration
}

type Coordinator struct {
	cfg     Config
	self    domain.Participant
	slots   slot.Store
	ledger  domain.Ledger
	signer  domain.Signer
	clock   clock.Clock
	relayed *cache.Cache
}

// Pending is a transaction read from a predecessor's slot.
type Pending struct {
	Tx   *domain.Transaction
	From string
	Raw  []byte
}

type Result struct {
	Tx      *domain.Transaction
	From    string
	Receipt domain.Receipt
}

func New(cfg Config, self domain.Participant, slots slot.Store, ledger domain.Ledger, signer domain.Signer, clk clock.Clock) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		self:    self,
		slots:   slots,
		ledger:  ledger,
		signer:  signer,
		clock:   clk,
		relayed: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// FetchPending reads the immediate predecessor's slot. When that transaction
// has expired and a second predecessor exists, its slot is read instead; the
// fallback never goes further back.
func (c *Coordinator) FetchPending(ctx context.Context) (*Pending, error) {
	pending, err := c.fetchFrom(ctx, 1)
	if err != nil {
		return nil, err
	}
	if c.self.Index > 1 && pending.Tx.Expired(c.clock.Now(), c.cfg.ClockSkew) {
		log.Warnw("predecessor transaction expired, falling back",
			"predecessor", pending.From,
			"expiration", pending.Tx.Expiration.Format(domain.TimeLayout),
		)

		return c.fetchFrom(ctx, 2)
	}

	return pending, nil
}

func (c *Coordinator) fetchFrom(ctx context.Context, back int) (*Pending, error) {
	from, ok := c.self.Predecessor(back)
	if !ok {
		return nil, errors.Wrapf(domain.ErrNoPendingTransaction, "%s has no predecessor %d back", c.self.Identity, back)
	}
	raw, err := c.slots.Read(ctx, from, c.cfg.Tag)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &domain.RelayError{Err: domain.ErrNoPendingTransaction, Predecessor: from}
	}
	tx, err := domain.DecodeTransaction(raw)
	if err != nil {
		return nil, &domain.RelayError{
			Err:         errors.Wrap(domain.ErrInvalidTransaction, err.Error()),
			Predecessor: from,
			Operations:  string(raw),
		}
	}

	return &Pending{Tx: tx, From: from, Raw: raw}, nil
}

func (c *Coordinator) Relay(ctx context.Context) (*Result, error) {
	role := c.self.Role()
	if role == domain.RoleHead {
		return nil, errors.New("chain head originates, it does not relay")
	}
	pending, err := c.FetchPending(ctx)
	if err != nil {
		return nil, err
	}
	tx := pending.Tx
	if err = c.cfg.Policy.Validate(tx); err != nil {
		return nil, c.reject(pending, err)
	}
	now := c.clock.Now()
	if tx.Expired(now, c.cfg.ClockSkew) {
		return nil, c.reject(pending, domain.ErrTransactionExpired)
	}
	fingerprint := tx.Fingerprint()
	if _, seen := c.relayed.Get(fingerprint); seen {
		return nil, c.reject(pending, domain.ErrAlreadyRelayed)
	}
	if err = c.signer.Sign(tx, domain.AuthorityActive); err != nil {
		return nil, errors.Wrap(err, "co-sign")
	}

	var receipt domain.Receipt
	switch role {
	case domain.RoleTail:
		receipt, err = c.ledger.Submit(ctx, tx)
	default:
		var payload []byte
		if payload, err = tx.Encode(); err != nil {
			return nil, err
		}
		receipt, err = c.slots.Publish(ctx, c.self.Identity, c.cfg.Tag, payload)
	}
	if err != nil {
		return nil, err
	}
	c.relayed.Set(fingerprint, pending.From, tx.Expiration.Sub(now))

	log.Infow("transaction relayed",
		"role", role.String(),
		"from", pending.From,
		"signatures", len(tx.Signatures),
		"receipt", receipt.ID,
	)

	return &Result{Tx: tx, From: pending.From, Receipt: receipt}, nil
}

func (c *Coordinator) reject(pending *Pending, err error) error {
	return &domain.RelayError{
		Err:         err,
		Predecessor: pending.From,
		Operations:  operationsJSON(pending),
		Expiration:  pending.Tx.Expiration.Format(domain.TimeLayout),
	}
}

func operationsJSON(pending *Pending) string {
	b, err := pending.Tx.Operations.MarshalJSON()
	if err != nil {
		return string(pending.Raw)
	}

	return string(b)
}
