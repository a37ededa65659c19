package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	pkgredis "github.com/gitter-badger/ashaw-notes/pkg/redis"
)

// Redis adapts the shared Redis client to the Store contract. The individual
// operations are promoted from the client; Apply adds atomic batch execution
// through a transactional pipeline.
type Redis struct {
	*pkgredis.Client
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an already-connected Redis client.
func NewRedis(client *pkgredis.Client) *Redis {
	return &Redis{Client: client}
}

// Apply executes the batch inside MULTI/EXEC so a crash mid-operation cannot
// leave the postings/value pair half written.
func (r *Redis) Apply(ctx context.Context, b Batch) error {
	if b.Len() == 0 {
		return nil
	}
	return r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range b.ops {
			switch o.kind {
			case opSetAdd:
				pipe.SAdd(ctx, o.key, o.member)
			case opSetRemove:
				pipe.SRem(ctx, o.key, o.member)
			case opSetValue:
				pipe.Set(ctx, o.key, o.value, 0)
			case opDel:
				pipe.Del(ctx, o.key)
			}
		}
		return nil
	})
}
