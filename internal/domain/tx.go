package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// TimeLayout is the ledger's ISO-8601 form without sub-second precision or zone.
const TimeLayout = "2006-01-02T15:04:05"

type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t.UTC().Truncate(time.Second)}
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(TimeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "time")
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		return errors.Wrap(err, "time")
	}
	t.Time = parsed.UTC()

	return nil
}

// emptyList always encodes as [] and ignores whatever it is decoded from.
type emptyList struct{}

func (emptyList) MarshalJSON() ([]byte, error) {
	return []byte("[]"), nil
}

func (*emptyList) UnmarshalJSON([]byte) error {
	return nil
}

// Transaction is the unit relayed along the chain. Operations are fixed at
// origination; participants only append to Signatures.
type Transaction struct {
	RefBlockNum    uint16     `json:"ref_block_num"`
	RefBlockPrefix uint32     `json:"ref_block_prefix"`
	Expiration     Time       `json:"expiration"`
	Operations     Operations `json:"operations"`
	Extensions     emptyList  `json:"extensions"`
	Signatures     []string   `json:"signatures"`
}

func NewTransaction(head ChainHead, expiration time.Time, ops ...Operation) (*Transaction, error) {
	num, prefix, err := head.RefBlock()
	if err != nil {
		return nil, err
	}

	return &Transaction{
		RefBlockNum:    num,
		RefBlockPrefix: prefix,
		Expiration:     NewTime(expiration),
		Operations:     ops,
		Signatures:     []string{},
	}, nil
}

// Expired reports whether the transaction can no longer be included at now,
// treating the expiration as skew earlier than stated.
func (tx *Transaction) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(tx.Expiration.Time)
}

// Fingerprint identifies a transaction independent of its signatures.
func (tx *Transaction) Fingerprint() string {
	return fmt.Sprintf("%d/%d/%s", tx.RefBlockNum, tx.RefBlockPrefix, tx.Expiration.UTC().Format(TimeLayout))
}

func (tx *Transaction) Encode() ([]byte, error) {
	if tx.Signatures == nil {
		tx.Signatures = []string{}
	}
	b, err := json.Marshal(tx)

	return b, errors.Wrap(err, "encode transaction")
}

func DecodeTransaction(b []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(b, &tx); err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}

	return &tx, nil
}
