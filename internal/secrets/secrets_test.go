package secrets

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haasonsaas/scribe/internal/errkind"
)

type countingProvider struct {
	calls  int32
	values map[string]string
}

func (p *countingProvider) Fetch(ctx context.Context, name string) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	if v, ok := p.values[name]; ok {
		return v, nil
	}
	return "", errkind.Newf(errkind.Auth, "secret %q not found", name)
}

func TestCacheHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{values: map[string]string{"github-token": "tok-1"}}
	cache := NewCache(inner, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := cache.Fetch(ctx, "github-token")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got != "tok-1" {
			t.Errorf("Fetch() = %q, want tok-1", got)
		}
	}
	if n := atomic.LoadInt32(&inner.calls); n != 1 {
		t.Errorf("inner fetched %d times, want 1", n)
	}
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{values: map[string]string{"model-key": "k"}}
	cache := NewCache(inner, time.Minute)

	clock := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	if _, err := cache.Fetch(ctx, "model-key"); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := cache.Fetch(ctx, "model-key"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&inner.calls); n != 2 {
		t.Errorf("inner fetched %d times after expiry, want 2", n)
	}
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{values: map[string]string{"github-token": "tok"}}
	cache := NewCache(inner, time.Hour)

	if _, err := cache.Fetch(ctx, "github-token"); err != nil {
		t.Fatal(err)
	}
	cache.Invalidate("github-token")
	if _, err := cache.Fetch(ctx, "github-token"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&inner.calls); n != 2 {
		t.Errorf("inner fetched %d times after invalidate, want 2", n)
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{values: map[string]string{}}
	cache := NewCache(inner, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := cache.Fetch(ctx, "missing"); !errkind.Is(err, errkind.Auth) {
			t.Errorf("Fetch() error = %v, want auth kind", err)
		}
	}
	if n := atomic.LoadInt32(&inner.calls); n != 2 {
		t.Errorf("inner fetched %d times, want 2 (failures are not cached)", n)
	}
}
