package relay

import (
	"github.com/pkg/errors"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

const MaxOperations = 2

// Policy is the per-mode allow-list a relayed transaction must satisfy.
type Policy struct {
	Mode     domain.Mode
	Market   string
	Treasury string
	Burn     string
}

func (p Policy) Permits(op domain.Operation) bool {
	switch op := op.(type) {
	case domain.Transfer:
		if !op.Amount.IsPositive() {
			return false
		}
		switch p.Mode {
		case domain.ModeTransfer:
			return op.To == p.Market || op.To == p.Treasury
		case domain.ModeBurn:
			return op.To == p.Burn
		}
	case domain.MarketOrder:
		return p.Mode == domain.ModeBurn && op.Sell.IsPositive()
	}

	return false
}

func (p Policy) Validate(tx *domain.Transaction) error {
	if n := len(tx.Operations); n == 0 || n > MaxOperations {
		return errors.Wrapf(domain.ErrInvalidTransaction, "%d operations", n)
	}
	for i, op := range tx.Operations {
		if !p.Permits(op) {
			return errors.Wrapf(domain.ErrInvalidTransaction, "operation %d (%s) not permitted in %s mode", i, op.Kind(), p.Mode)
		}
	}

	return nil
}
