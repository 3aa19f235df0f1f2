package conversation

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, func() Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStore(client, nil)
	})
}

func TestRedisStoreSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, nil)

	if _, err := store.Upsert(context.Background(), "lead", PartialContext{City: strp("Natal"), State: strp("RN")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ttl := mr.TTL(leadContextKey("lead")); ttl != leadContextTTL {
		t.Fatalf("expected ttl %v, got %v", leadContextTTL, ttl)
	}
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, nil)
	if err := mr.Set(leadContextKey("lead"), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.Get(context.Background(), "lead"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := store.Upsert(context.Background(), "lead", PartialContext{}); err == nil {
		t.Fatal("expected decode error on upsert")
	}
}
