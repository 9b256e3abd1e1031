package conversation

import (
	"context"
	"testing"
	"time"

	"shopassist/internal/chatapi"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(Options{Client: &mockClient{}}, time.Hour)
	if _, ok := r.Get("a"); ok {
		t.Fatalf("unexpected store for unknown key")
	}
	first := r.GetOrCreate("a")
	if again := r.GetOrCreate("a"); again != first {
		t.Fatalf("expected the same store for the same key")
	}
	if other := r.GetOrCreate("b"); other == first {
		t.Fatalf("different keys must not share a store")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 stores, got %d", r.Len())
	}
}

func TestRegistryEvictsIdleStores(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &mockClient{textResp: &chatapi.Response{Text: "ok"}, block: make(chan struct{})}
	defer close(client.block)
	r := NewRegistry(Options{Client: client, Executor: goExecutor{}}, time.Minute)
	r.now = func() time.Time { return now }

	r.GetOrCreate("idle")
	busy := r.GetOrCreate("busy")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	busy.SubmitText(ctx, "still thinking")

	now = now.Add(2 * time.Minute)
	r.GetOrCreate("fresh")
	if n := r.evictIdle(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := r.Get("idle"); ok {
		t.Fatalf("idle store should be gone")
	}
	if _, ok := r.Get("busy"); !ok {
		t.Fatalf("store with a call in flight must be kept")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Fatalf("fresh store must be kept")
	}
}

type goExecutor struct{}

func (goExecutor) Submit(_ string, fn func()) error {
	go fn()
	return nil
}
