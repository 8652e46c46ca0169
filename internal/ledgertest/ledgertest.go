// Package ledgertest provides in-memory stand-ins for the ledger, the signer
// and slot storage.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

// HeadBlockID is a 20-byte block id whose prefix bytes decode to 0xCDA1E7B3.
const HeadBlockID = "05f5e1ffb3e7a1cd0000000000000000deadbeef"

type Ledger struct {
	mu        sync.Mutex
	head      domain.ChainHead
	asks      []domain.Ask
	accounts  map[string]domain.Account
	submitted []*domain.Transaction
	err       error
}

func NewLedger() *Ledger {
	return &Ledger{
		head:     domain.ChainHead{BlockNumber: 0x05F5E1FF, BlockID: HeadBlockID},
		accounts: make(map[string]domain.Account),
	}
}

func (l *Ledger) SetAccount(a domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[a.Name] = a
}

func (l *Ledger) SetAsks(asks ...domain.Ask) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.asks = asks
}

// Fail makes every following call return err wrapped as a collaborator failure.
func (l *Ledger) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *Ledger) failure(call string) error {
	if l.err == nil {
		return nil
	}

	return &domain.CollaboratorError{Call: call, Err: l.err}
}

func (l *Ledger) ChainHead(context.Context) (domain.ChainHead, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.head, l.failure("get_dynamic_global_properties")
}

func (l *Ledger) OrderBook(_ context.Context, depth int) ([]domain.Ask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failure("get_order_book"); err != nil {
		return nil, err
	}
	if depth < len(l.asks) {
		return append([]domain.Ask(nil), l.asks[:depth]...), nil
	}

	return append([]domain.Ask(nil), l.asks...), nil
}

func (l *Ledger) Account(_ context.Context, name string) (domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failure("get_accounts"); err != nil {
		return domain.Account{}, err
	}
	a, ok := l.accounts[name]
	if !ok {
		return domain.Account{}, &domain.CollaboratorError{Call: "get_accounts", Err: errors.Errorf("account %s not found", name)}
	}

	return a, nil
}

// Submit records a copy of tx and applies profile updates to the stored accounts.
func (l *Ledger) Submit(_ context.Context, tx *domain.Transaction) (domain.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failure("broadcast_transaction_synchronous"); err != nil {
		return domain.Receipt{}, err
	}
	b, err := tx.Encode()
	if err != nil {
		return domain.Receipt{}, err
	}
	stored, err := domain.DecodeTransaction(b)
	if err != nil {
		return domain.Receipt{}, err
	}
	for _, op := range stored.Operations {
		if update, ok := op.(domain.ProfileUpdate); ok {
			a := l.accounts[update.Account]
			a.Name = update.Account
			a.PostingJSONMetadata = update.PostingJSONMetadata
			l.accounts[update.Account] = a
		}
	}
	l.submitted = append(l.submitted, stored)

	return domain.Receipt{ID: fmt.Sprintf("tx-%d", len(l.submitted)), BlockNum: l.head.BlockNumber + 1}, nil
}

func (l *Ledger) Submitted() []*domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*domain.Transaction(nil), l.submitted...)
}

// Payloads returns submitted transactions other than profile updates.
func (l *Ledger) Payloads() []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range l.Submitted() {
		if len(tx.Operations) > 0 && tx.Operations[0].Kind() == domain.KindProfileUpdate {
			continue
		}
		out = append(out, tx)
	}

	return out
}

// Signer appends "name/authority" instead of a real signature.
type Signer struct {
	Name string
}

func (s Signer) Sign(tx *domain.Transaction, authority domain.Authority) error {
	tx.Signatures = append(tx.Signatures, s.Name+"/"+authority.String())

	return nil
}

type Slots struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func NewSlots() *Slots {
	return &Slots{data: make(map[string][]byte)}
}

func (s *Slots) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Slots) Read(_ context.Context, identity, tag string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	return s.data[identity+"/"+tag], nil
}

func (s *Slots) Publish(_ context.Context, identity, tag string, payload []byte) (domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Receipt{}, s.err
	}
	s.data[identity+"/"+tag] = append([]byte(nil), payload...)

	return domain.Receipt{ID: identity + "/" + tag}, nil
}

// Put publishes tx as identity's slot content.
func (s *Slots) Put(identity, tag string, tx *domain.Transaction) error {
	b, err := tx.Encode()
	if err != nil {
		return err
	}
	_, err = s.Publish(context.Background(), identity, tag, b)

	return err
}

// Get decodes identity's slot content; nil when empty.
func (s *Slots) Get(identity, tag string) (*domain.Transaction, error) {
	b, _ := s.Read(context.Background(), identity, tag)
	if b == nil {
		return nil, nil
	}

	return domain.DecodeTransaction(b)
}
