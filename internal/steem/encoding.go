package steem

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

// MainnetChainID is the Steem mainnet chain id.
const MainnetChainID = "0000000000000000000000000000000000000000000000000000000000000000"

var operationIDs = map[domain.OperationKind]uint64{
	domain.KindTransfer:      2,
	domain.KindMarketOrder:   5,
	domain.KindProfileUpdate: 43,
}

const symbolWidth = 7

type encoder struct {
	bytes.Buffer
}

func (e *encoder) varint(v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	e.Write(buf[:n])
}

func (e *encoder) u8(v uint8) {
	e.WriteByte(v)
}

func (e *encoder) u16(v uint16) {
	_ = binary.Write(e, binary.LittleEndian, v)
}

func (e *encoder) u32(v uint32) {
	_ = binary.Write(e, binary.LittleEndian, v)
}

func (e *encoder) i64(v int64) {
	_ = binary.Write(e, binary.LittleEndian, v)
}

func (e *encoder) str(s string) {
	e.varint(uint64(len(s)))
	e.WriteString(s)
}

func (e *encoder) boolean(b bool) {
	if b {
		e.u8(1)

		return
	}
	e.u8(0)
}

func (e *encoder) time(t domain.Time) {
	e.u32(uint32(t.Unix()))
}

func (e *encoder) asset(a domain.Asset) error {
	if len(a.Symbol) > symbolWidth {
		return errors.Errorf("asset symbol %q too long", a.Symbol)
	}
	e.i64(a.Units())
	e.u8(domain.AssetPrecision)
	var symbol [symbolWidth]byte
	copy(symbol[:], a.Symbol)
	e.Write(symbol[:])

	return nil
}

func (e *encoder) operation(op domain.Operation) error {
	id, ok := operationIDs[op.Kind()]
	if !ok {
		return errors.Errorf("unsupported operation %q", op.Kind())
	}
	e.varint(id)

	switch op := op.(type) {
	case domain.Transfer:
		e.str(op.From)
		e.str(op.To)
		if err := e.asset(op.Amount); err != nil {
			return err
		}
		e.str(op.Memo)
	case domain.MarketOrder:
		e.str(op.Owner)
		e.u32(op.OrderID)
		if err := e.asset(op.Sell); err != nil {
			return err
		}
		if err := e.asset(op.MinReceive); err != nil {
			return err
		}
		e.boolean(op.FillOrKill)
		e.time(op.Expiration)
	case domain.ProfileUpdate:
		e.str(op.Account)
		// owner, active, posting and memo key are left unchanged
		for i := 0; i < 4; i++ {
			e.u8(0)
		}
		e.str(op.JSONMetadata)
		e.str(op.PostingJSONMetadata)
		e.varint(0)
	default:
		return errors.Errorf("unsupported operation %T", op)
	}

	return nil
}

// Serialize writes tx without signatures in the node's binary layout.
func Serialize(tx *domain.Transaction) ([]byte, error) {
	var e encoder
	e.u16(tx.RefBlockNum)
	e.u32(tx.RefBlockPrefix)
	e.time(tx.Expiration)
	e.varint(uint64(len(tx.Operations)))
	for i, op := range tx.Operations {
		if err := e.operation(op); err != nil {
			return nil, errors.Wrapf(err, "operation %d", i)
		}
	}
	e.varint(0)

	return e.Bytes(), nil
}

// Digest is the hash every signature on tx commits to.
func Digest(chainID string, tx *domain.Transaction) ([]byte, error) {
	id, err := hex.DecodeString(chainID)
	if err != nil {
		return nil, errors.Wrap(err, "chain id")
	}
	raw, err := Serialize(tx)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(id)
	h.Write(raw)

	return h.Sum(nil), nil
}

// TxID is the id the node reports for tx once included.
func TxID(tx *domain.Transaction) (string, error) {
	raw, err := Serialize(tx)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:20]), nil
}
