package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryJSONRoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var out []string
	if err := m.GetJSON(ctx, "k", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}

	if err := m.SetJSON(ctx, "k", []string{"a", "b"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if err := m.GetJSON(ctx, "k", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out) != 2 || out[0] != "a" {
		t.Errorf("got %v, want [a b]", out)
	}

	_ = m.Delete(ctx, "k")
	if err := m.GetJSON(ctx, "k", &out); !errors.Is(err, ErrMiss) {
		t.Errorf("after delete got %v, want ErrMiss", err)
	}
}

func TestMemoryIncrWindowExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		n, _ := m.Incr(ctx, "rl", time.Minute)
		if n != i {
			t.Fatalf("got %d, want %d", n, i)
		}
	}

	now = now.Add(61 * time.Second)
	n, _ := m.Incr(ctx, "rl", time.Minute)
	if n != 1 {
		t.Errorf("after window got %d, want 1", n)
	}
}

func TestMemoryIncrWithoutWindowPersists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, _ = m.Incr(ctx, "gen", 0)
	now = now.Add(24 * time.Hour)
	n, _ := m.Incr(ctx, "gen", 0)
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}

	var got int64
	if err := m.GetJSON(ctx, "gen", &got); err != nil || got != 2 {
		t.Errorf("GetJSON = %d, %v; want 2", got, err)
	}
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, _ := m.SetNX(ctx, "idem", "pending", time.Hour)
	if !ok {
		t.Fatal("first SetNX should store")
	}
	ok, _ = m.SetNX(ctx, "idem", "pending", time.Hour)
	if ok {
		t.Error("second SetNX should not store")
	}
	exists, _ := m.Exists(ctx, "idem")
	if !exists {
		t.Error("Exists = false, want true")
	}
}
