package favouritesdb

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"storefront/internal/enrich"
	"storefront/internal/favourites"
)

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func key(t *testing.T, user, product int64, at time.Time) favourites.Key {
	t.Helper()
	k, err := favourites.NewKey(user, product, at)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return k
}

var liked = time.Date(2024, 2, 3, 4, 5, 6, 789000, time.UTC)

func TestRedisStore_SaveGetList(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	second := key(t, 2, 1, liked)
	first := key(t, 1, 9, liked.Add(time.Hour))
	for _, k := range []favourites.Key{first, second, first} {
		if _, err := store.Save(ctx, favourites.Favourite{Key: k}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	if _, err := store.Get(ctx, second); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := mr.HGet("favourite:2:1:"+strconv.FormatInt(liked.UnixMicro(), 10), "like_date"); got != "03-02-2024__04:05:06:000789" {
		t.Fatalf("unexpected like_date field %q", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != first || list[1].Key != second {
		t.Fatalf("expected insertion order without duplicates, got %+v", list)
	}
}

func TestRedisStore_MissingFavourite(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	k := key(t, 1, 1, liked)

	if _, err := store.Get(ctx, k); !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found on get, got %v", err)
	}
	if _, err := store.Update(ctx, favourites.Favourite{Key: k}); !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := store.Delete(ctx, k); !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestRedisStore_DeleteRemovesFromListing(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	k := key(t, 1, 1, liked)

	if _, err := store.Save(ctx, favourites.Favourite{Key: k}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := store.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty listing, got %+v (%v)", list, err)
	}
}

func TestRedisStore_CanceledContext(t *testing.T) {
	store, mr := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Save(ctx, favourites.Favourite{Key: key(t, 1, 1, liked)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mr.Exists("favourites:seq") {
		t.Fatalf("expected no writes when context canceled")
	}
}

func TestParseMember_RejectsGarbage(t *testing.T) {
	if _, err := parseMember("1:2"); err == nil {
		t.Fatalf("expected malformed member error")
	}
	if _, err := parseMember("0:2:3"); !errors.Is(err, enrich.ErrInvalid) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}
