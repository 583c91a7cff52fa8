package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/go-backoffice/gate"
)

type countingResolver struct {
	inner *gate.StaticResolver[uint]
	calls int
}

func (r *countingResolver) Resolve(ctx context.Context, user uint) (gate.Role, error) {
	r.calls++
	return r.inner.Resolve(ctx, user)
}

func TestCachedResolver_CachesRole(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticRole("r1", "editor", false))

	cached := gate.NewCachedResolver[uint](inner, 16, 5*time.Minute)

	r1, err := cached.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.Name() != "editor" {
		t.Errorf("expected 'editor', got '%s'", r1.Name())
	}

	inner.Set(1, gate.NewStaticRole("r2", "admin", false))

	r2, err := cached.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r2.Name() != "editor" {
		t.Errorf("expected cached 'editor', got '%s'", r2.Name())
	}
}

func TestCachedResolver_CachesMissingRole(t *testing.T) {
	inner := &countingResolver{inner: gate.NewStaticResolver[uint]()}
	cached := gate.NewCachedResolver[uint](inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		role, err := cached.Resolve(context.Background(), 7)
		if err != nil || role != nil {
			t.Fatalf("expected nil role, got %v, %v", role, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestCachedResolver_Invalidate(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticRole("r1", "editor", false))
	inner.Set(2, gate.NewStaticRole("r1", "editor", false))

	cached := gate.NewCachedResolver[uint](inner, 16, 5*time.Minute)
	_, _ = cached.Resolve(context.Background(), 1)
	_, _ = cached.Resolve(context.Background(), 2)

	inner.Set(1, gate.NewStaticRole("r2", "viewer", false))
	cached.Invalidate(1)

	r, err := cached.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name() != "viewer" {
		t.Errorf("expected 'viewer' after invalidate, got '%s'", r.Name())
	}

	cached.InvalidateAll()
	if cached.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", cached.Len())
	}
}

func TestCachedResolver_Expires(t *testing.T) {
	inner := &countingResolver{inner: gate.NewStaticResolver[uint]()}
	inner.inner.Set(1, gate.NewStaticRole("r1", "editor", false))

	cached := gate.NewCachedResolver[uint](inner, 16, 20*time.Millisecond)
	_, _ = cached.Resolve(context.Background(), 1)
	time.Sleep(60 * time.Millisecond)
	_, _ = cached.Resolve(context.Background(), 1)

	if inner.calls != 2 {
		t.Errorf("expected entry to expire, inner calls = %d", inner.calls)
	}
}
