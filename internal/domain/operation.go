package domain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type OperationKind string

const (
	KindTransfer      OperationKind = "transfer"
	KindMarketOrder   OperationKind = "limit_order_create"
	KindProfileUpdate OperationKind = "account_update2"
)

// Operation is one of Transfer, MarketOrder or ProfileUpdate.
type Operation interface {
	Kind() OperationKind
}

type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Asset  `json:"amount"`
	Memo   string `json:"memo"`
}

func (Transfer) Kind() OperationKind { return KindTransfer }

type MarketOrder struct {
	Owner      string `json:"owner"`
	OrderID    uint32 `json:"orderid"`
	Sell       Asset  `json:"amount_to_sell"`
	MinReceive Asset  `json:"min_to_receive"`
	FillOrKill bool   `json:"fill_or_kill"`
	Expiration Time   `json:"expiration"`
}

func (MarketOrder) Kind() OperationKind { return KindMarketOrder }

// ProfileUpdate rewrites an account's metadata; RelaySlots live in PostingJSONMetadata.
type ProfileUpdate struct {
	Account             string    `json:"account"`
	JSONMetadata        string    `json:"json_metadata"`
	PostingJSONMetadata string    `json:"posting_json_metadata"`
	Extensions          emptyList `json:"extensions"`
}

func (ProfileUpdate) Kind() OperationKind { return KindProfileUpdate }

// Operations encodes as the ledger's [["name", {...}], ...] pairs.
type Operations []Operation

func (ops Operations) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, len(ops))
	for _, op := range ops {
		pairs = append(pairs, [2]any{op.Kind(), op})
	}

	return json.Marshal(pairs)
}

func (ops *Operations) UnmarshalJSON(b []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(b, &pairs); err != nil {
		return errors.Wrap(err, "operations")
	}
	out := make(Operations, 0, len(pairs))
	for i, pair := range pairs {
		var kind OperationKind
		if err := json.Unmarshal(pair[0], &kind); err != nil {
			return errors.Wrapf(err, "operation %d name", i)
		}
		op, err := decodeOperation(kind, pair[1])
		if err != nil {
			return errors.Wrapf(err, "operation %d", i)
		}
		out = append(out, op)
	}
	*ops = out

	return nil
}

func decodeOperation(kind OperationKind, raw json.RawMessage) (Operation, error) {
	switch kind {
	case KindTransfer:
		var op Transfer
		err := json.Unmarshal(raw, &op)

		return op, err
	case KindMarketOrder:
		var op MarketOrder
		err := json.Unmarshal(raw, &op)

		return op, err
	case KindProfileUpdate:
		var op ProfileUpdate
		err := json.Unmarshal(raw, &op)

		return op, err
	}

	return nil, errors.Errorf("unsupported operation %q", kind)
}
