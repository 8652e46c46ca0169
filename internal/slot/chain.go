package slot

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/raulk/clock"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

var log = logging.Logger("slot")

// DefaultUpdateTTL bounds how long a profile update may wait for inclusion.
const DefaultUpdateTTL = time.Minute

// ChainStore keeps slots inside each account's posting_json_metadata. Writes
// are account_update2 transactions signed with the posting authority.
type ChainStore struct {
	ledger domain.Ledger
	signer domain.Signer
	clock  clock.Clock
	ttl    time.Duration
}

func NewChainStore(ledger domain.Ledger, signer domain.Signer, clk clock.Clock) *ChainStore {
	return &ChainStore{
		ledger: ledger,
		signer: signer,
		clock:  clk,
		ttl:    DefaultUpdateTTL,
	}
}

func (s *ChainStore) Read(ctx context.Context, identity, tag string) ([]byte, error) {
	account, err := s.ledger.Account(ctx, identity)
	if err != nil {
		return nil, err
	}
	raw, ok := parseMetadata(identity, account.PostingJSONMetadata)[tag]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var payload string
	if err = json.Unmarshal(raw, &payload); err != nil {
		// tolerate a slot written as an object rather than a string
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			return raw, nil
		}

		return nil, errors.Wrapf(err, "slot %s of %s", tag, identity)
	}
	if payload == "" {
		return nil, nil
	}

	return []byte(payload), nil
}

func (s *ChainStore) Publish(ctx context.Context, identity, tag string, payload []byte) (domain.Receipt, error) {
	account, err := s.ledger.Account(ctx, identity)
	if err != nil {
		return domain.Receipt{}, err
	}
	meta := parseMetadata(identity, account.PostingJSONMetadata)
	if meta[tag], err = json.Marshal(string(payload)); err != nil {
		return domain.Receipt{}, errors.Wrap(err, "Marshal")
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return domain.Receipt{}, errors.Wrap(err, "Marshal")
	}
	head, err := s.ledger.ChainHead(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}
	tx, err := domain.NewTransaction(head, s.clock.Now().Add(s.ttl), domain.ProfileUpdate{
		Account:             identity,
		PostingJSONMetadata: string(metadata),
	})
	if err != nil {
		return domain.Receipt{}, err
	}
	if err = s.signer.Sign(tx, domain.AuthorityPosting); err != nil {
		return domain.Receipt{}, errors.Wrap(err, "sign profile update")
	}

	return s.ledger.Submit(ctx, tx)
}

// parseMetadata never fails: unreadable metadata is replaced by an empty object.
func parseMetadata(identity, raw string) map[string]json.RawMessage {
	meta := make(map[string]json.RawMessage)
	if raw == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		log.Warnw("unreadable posting metadata, starting empty", "account", identity, "err", err)

		return make(map[string]json.RawMessage)
	}

	return meta
}
