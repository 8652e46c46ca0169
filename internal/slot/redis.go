package slot

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

// RedisStore keeps slots in Redis so a chain can be rehearsed without
// touching account profiles.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func Key(identity, tag string) string {
	return fmt.Sprintf("relay-slot:%s:%s", identity, tag)
}

func (s *RedisStore) Read(ctx context.Context, identity, tag string) ([]byte, error) {
	b, err := s.client.Get(ctx, Key(identity, tag)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.CollaboratorError{Call: "redis get", Err: err}
	}

	return b, nil
}

func (s *RedisStore) Publish(ctx context.Context, identity, tag string, payload []byte) (domain.Receipt, error) {
	key := Key(identity, tag)
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return domain.Receipt{}, &domain.CollaboratorError{Call: "redis set", Err: err}
	}

	return domain.Receipt{ID: key}, nil
}
