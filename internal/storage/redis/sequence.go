package redis

import (
	"context"
	"fmt"

	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	goredis "github.com/redis/go-redis/v9"
)

// Sequence is a links.Sequencer on top of INCR. Redis must run with
// persistence enabled or a restart will reissue IDs.
//
// The counter starts at 1. Before switching an existing dataset from the
// Mongo sequence, seed the key past the highest stored ID (SET seq:<name>
// <max>); otherwise every generated insert collides until the counter
// catches up.
type Sequence struct {
	client goredis.Cmdable
	prefix string
}

func NewSequence(client goredis.Cmdable, prefix string) *Sequence {
	if prefix == "" {
		prefix = "seq"
	}
	return &Sequence{client: client, prefix: prefix}
}

func (s *Sequence) Next(ctx context.Context, name string) (uint64, error) {
	n, err := s.client.Incr(ctx, s.key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis incr: %w", links.ErrStorageUnavailable, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: redis incr: non-positive sequence %d for %q", links.ErrStorageUnavailable, n, s.key(name))
	}
	return uint64(n), nil
}

func (s *Sequence) key(name string) string {
	return s.prefix + ":" + name
}
