package favouritesdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/enrich"
	"storefront/internal/favourites"
)

const defaultPrefix = "favourite"

// RedisStore keeps each favourite in its own hash and lists them through a
// sorted set scored by insertion sequence.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) indexKey() string { return r.prefix + "s" }
func (r *RedisStore) seqKey() string   { return r.prefix + "s:seq" }

func (r *RedisStore) hashKey(member string) string {
	return r.prefix + ":" + member
}

func member(k favourites.Key) string {
	return fmt.Sprintf("%d:%d:%d", k.UserID(), k.ProductID(), k.LikeDate().UnixMicro())
}

func parseMember(m string) (favourites.Key, error) {
	parts := strings.Split(m, ":")
	if len(parts) != 3 {
		return favourites.Key{}, fmt.Errorf("malformed favourite member %q", m)
	}
	var ids [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return favourites.Key{}, fmt.Errorf("malformed favourite member %q: %w", m, err)
		}
		ids[i] = v
	}
	return favourites.NewKey(ids[0], ids[1], time.UnixMicro(ids[2]))
}

func (r *RedisStore) Get(ctx context.Context, key favourites.Key) (favourites.Favourite, error) {
	n, err := r.client.Exists(ctx, r.hashKey(member(key))).Result()
	if err != nil {
		return favourites.Favourite{}, err
	}
	if n == 0 {
		return favourites.Favourite{}, notFound(key)
	}
	return favourites.Favourite{Key: key}, nil
}

func (r *RedisStore) List(ctx context.Context) ([]favourites.Favourite, error) {
	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]favourites.Favourite, 0, len(members))
	for _, m := range members {
		key, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		out = append(out, favourites.Favourite{Key: key})
	}
	return out, nil
}

// Save writes the favourite. Saving an existing favourite keeps its place in
// the listing.
func (r *RedisStore) Save(ctx context.Context, f favourites.Favourite) (favourites.Favourite, error) {
	if err := ctx.Err(); err != nil {
		return favourites.Favourite{}, err
	}
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return favourites.Favourite{}, err
	}

	m := member(f.Key)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.hashKey(m), map[string]any{
			"user_id":    f.Key.UserID(),
			"product_id": f.Key.ProductID(),
			"like_date":  f.Key.LikeDate().String(),
		})
		pipe.ZAddNX(ctx, r.indexKey(), redis.Z{Score: float64(seq), Member: m})
		return nil
	})
	if err != nil {
		return favourites.Favourite{}, err
	}
	return f, nil
}

// Update only confirms the favourite exists; a favourite has no mutable
// attributes.
func (r *RedisStore) Update(ctx context.Context, f favourites.Favourite) (favourites.Favourite, error) {
	return r.Get(ctx, f.Key)
}

func (r *RedisStore) Delete(ctx context.Context, key favourites.Key) error {
	m := member(key)
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.hashKey(m))
		pipe.ZRem(ctx, r.indexKey(), m)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return notFound(key)
	}
	return nil
}

func notFound(key favourites.Key) error {
	return enrich.NotFoundf("Favourite with id: %s not found", key)
}
