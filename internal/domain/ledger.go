package domain

import (
	"context"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type ChainHead struct {
	BlockNumber uint32
	BlockID     string
}

// RefBlock derives the reference block fields a new transaction is bound to.
func (h ChainHead) RefBlock() (num uint16, prefix uint32, err error) {
	id, err := hex.DecodeString(h.BlockID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "head block id")
	}
	if len(id) < 8 {
		return 0, 0, errors.Errorf("head block id too short: %d bytes", len(id))
	}

	return uint16(h.BlockNumber & 0xFFFF), binary.LittleEndian.Uint32(id[4:8]), nil
}

// Ask is one order-book level; Depth is in sell-asset (stable) units.
type Ask struct {
	Price decimal.Decimal
	Depth decimal.Decimal
}

type Account struct {
	Name                string
	Native              Asset
	Stable              Asset
	PostingJSONMetadata string
}

type Receipt struct {
	ID       string `json:"id"`
	BlockNum uint32 `json:"block_num"`
}

type Ledger interface {
	ChainHead(ctx context.Context) (ChainHead, error)
	OrderBook(ctx context.Context, depth int) ([]Ask, error)
	Account(ctx context.Context, name string) (Account, error)
	Submit(ctx context.Context, tx *Transaction) (Receipt, error)
}

// Signer appends a signature made with the given authority. It performs no I/O.
type Signer interface {
	Sign(tx *Transaction, authority Authority) error
}
