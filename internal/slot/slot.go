// Package slot reads and writes RelaySlots: one field per participant and
// mode tag holding the participant's most recently published transaction.
package slot

import (
	"context"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

// Store has last-write-wins semantics. Read returns nil when the slot is empty.
type Store interface {
	Read(ctx context.Context, identity, tag string) ([]byte, error)
	Publish(ctx context.Context, identity, tag string, payload []byte) (domain.Receipt, error)
}

const (
	BackendChain = "chain"
	BackendRedis = "redis"
)
