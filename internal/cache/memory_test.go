package cache

import (
	"context"
	"testing"
	"time"

	"github.com/example/ride-share/internal/models"
)

func TestMemoryCacheHitAndInvalidate(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()
	rides := []*models.Ride{{ID: "r1"}}

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set(ctx, "k", rides)
	got, ok := c.Get(ctx, "k")
	if !ok || len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("cache miss after set: %v %v", got, ok)
	}

	c.Invalidate(ctx)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("hit after invalidate")
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, "k", []*models.Ride{{ID: "r1"}})
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived past ttl")
	}
}
