package domain

import (
	"encoding/json"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerTx = `{
	"ref_block_num": 34567,
	"ref_block_prefix": 2952790527,
	"expiration": "2026-10-19T15:01:50",
	"operations": [
		["transfer", {"from": "pool", "to": "market", "amount": "100.000 SBD", "memo": ""}],
		["limit_order_create", {"owner": "pool", "orderid": 7, "amount_to_sell": "5.000 SBD",
			"min_to_receive": "19.900 STEEM", "fill_or_kill": false, "expiration": "2026-10-19T16:00:00"}]
	],
	"extensions": [],
	"signatures": ["1f00"]
}`

func TestDecodeTransaction(t *testing.T) {
	tx, err := DecodeTransaction([]byte(ledgerTx))
	require.NoError(t, err)

	assert.Equal(t, uint16(34567), tx.RefBlockNum)
	assert.Equal(t, uint32(2952790527), tx.RefBlockPrefix)
	assert.Equal(t, time.Date(2026, 10, 19, 15, 1, 50, 0, time.UTC), tx.Expiration.Time)
	require.Len(t, tx.Operations, 2)

	transfer, ok := tx.Operations[0].(Transfer)
	require.True(t, ok)
	assert.Equal(t, "market", transfer.To)
	assert.Equal(t, "100.000 SBD", transfer.Amount.String())

	order, ok := tx.Operations[1].(MarketOrder)
	require.True(t, ok)
	assert.Equal(t, uint32(7), order.OrderID)
	assert.Equal(t, NativeSymbol, order.MinReceive.Symbol)
	assert.Equal(t, []string{"1f00"}, tx.Signatures)

	encoded, err := tx.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, ledgerTx, string(encoded))
}

func TestDecodeTransaction_UnknownOperation(t *testing.T) {
	_, err := DecodeTransaction([]byte(`{"operations": [["vote", {"voter": "x"}]], "expiration": "2026-10-19T15:01:50"}`))
	assert.ErrorContains(t, err, `unsupported operation "vote"`)
}

func TestTransaction_EncodeEmpty(t *testing.T) {
	tx := &Transaction{Expiration: NewTime(time.Date(2026, 1, 2, 3, 4, 5, 999, time.UTC))}
	b, err := tx.Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.JSONEq(t, `[]`, string(raw["operations"]))
	assert.JSONEq(t, `[]`, string(raw["extensions"]))
	assert.JSONEq(t, `[]`, string(raw["signatures"]))
	assert.JSONEq(t, `"2026-01-02T03:04:05"`, string(raw["expiration"]))
}

func TestTransaction_Expired(t *testing.T) {
	exp := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	tx := &Transaction{Expiration: NewTime(exp)}

	assert.False(t, tx.Expired(exp.Add(-time.Minute), 0))
	assert.True(t, tx.Expired(exp, 0))
	assert.True(t, tx.Expired(exp.Add(-2*time.Second), 3*time.Second))
}

func TestChainHead_RefBlock(t *testing.T) {
	head := ChainHead{BlockNumber: 0x05F5E1FF, BlockID: "05f5e1ffb3e7a1cd0000000000000000deadbeef"}

	num, prefix, err := head.RefBlock()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xE1FF), num)
	assert.Equal(t, uint32(0xCDA1E7B3), prefix)

	_, _, err = ChainHead{BlockID: "00ff"}.RefBlock()
	assert.Error(t, err)
}

func TestRoleFor(t *testing.T) {
	for n := 2; n <= 8; n++ {
		for i := 0; i < n; i++ {
			role := RoleFor(i, n)
			assert.Equal(t, i == 0, role == RoleHead, "n=%d i=%d", n, i)
			assert.Equal(t, i == n-1, role == RoleTail, "n=%d i=%d", n, i)
			assert.Equal(t, i > 0 && i < n-1, role == RoleMiddle, "n=%d i=%d", n, i)
		}
	}
}

func TestNewParticipant(t *testing.T) {
	p, err := NewParticipant("bob", []string{"alice", "bob", "carol", "dave"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, RoleMiddle, p.Role())

	prev, ok := p.Predecessor(1)
	assert.True(t, ok)
	assert.Equal(t, "alice", prev)
	_, ok = p.Predecessor(2)
	assert.False(t, ok)

	_, err = NewParticipant("eve", []string{"alice", "bob"})
	assert.Error(t, err)
	_, err = NewParticipant("bob", []string{"bob", "alice", "bob"})
	assert.Error(t, err)
}

func TestAsset(t *testing.T) {
	a, err := ParseAsset("150.500 SBD")
	require.NoError(t, err)
	assert.Equal(t, "150.500 SBD", a.String())
	assert.Equal(t, int64(150500), a.Units())

	trunc := NewAsset(decimal.RequireFromString("1.23456"), NativeSymbol)
	assert.Equal(t, "1.234 STEEM", trunc.String())

	_, err = ParseAsset("12SBD")
	assert.Error(t, err)
}

func TestParseAsset_RejectsNonCanonical(t *testing.T) {
	for _, s := range []string{
		"1.2345 SBD",
		"1.23 SBD",
		"150 SBD",
		"-1.000 SBD",
		"+1.000 SBD",
		"1e3.000 SBD",
		".500 SBD",
		"1.000 TBD",
		"1.000 sbd",
	} {
		_, err := ParseAsset(s)
		assert.Error(t, err, s)
	}

	var op Transfer
	err := json.Unmarshal([]byte(`{"from":"pool","to":"market","amount":"1.2345 SBD","memo":""}`), &op)
	assert.Error(t, err)

	a, err := ParseAsset("0.001 STEEM")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Units())
	assert.Equal(t, "0.001 STEEM", a.String())
}

func TestTransfer_Fuzz(t *testing.T) {
	f := fuzz.New().NilChance(0)
	for i := 0; i < 50; i++ {
		var from, to, memo string
		var units uint32
		f.Fuzz(&from)
		f.Fuzz(&to)
		f.Fuzz(&memo)
		f.Fuzz(&units)

		op := Transfer{From: from, To: to, Memo: memo, Amount: NewAsset(decimal.New(int64(units), -3), StableSymbol)}
		b, err := Operations{op}.MarshalJSON()
		require.NoError(t, err)

		var ops Operations
		require.NoError(t, json.Unmarshal(b, &ops))
		require.Len(t, ops, 1)
		got := ops[0].(Transfer)
		assert.Equal(t, op.From, got.From)
		assert.Equal(t, op.To, got.To)
		assert.True(t, op.Amount.Amount.Equal(got.Amount.Amount))
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "expired", ErrorKind(&RelayError{Err: ErrTransactionExpired, Predecessor: "a"}))
	assert.Equal(t, "collaborator", ErrorKind(&CollaboratorError{Call: "get_accounts", Err: assert.AnError}))
	assert.Equal(t, "error", ErrorKind(assert.AnError))
}
