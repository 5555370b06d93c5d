package gfxcore

import "testing"

func TestHandleRegistryCreateRelease(t *testing.T) {
	r := newHandleRegistry(4)

	h1, err := r.create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !h1.Valid() {
		t.Fatalf("expected a valid handle")
	}

	idx, err := r.resolve(h1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}

	r.release(h1)
	if _, err := r.resolve(h1); err == nil {
		t.Fatalf("expected resolve to fail after release")
	}

	h2, err := r.create()
	if err != nil {
		t.Fatalf("create after release: %v", err)
	}
	if h2.index() != h1.index() {
		t.Fatalf("expected slot reuse, got index %d want %d", h2.index(), h1.index())
	}
	if h2.generation() == h1.generation() {
		t.Fatalf("expected generation to advance on reuse")
	}

	if _, err := r.resolve(h1); err == nil {
		t.Fatalf("stale handle from a reused slot must not resolve")
	}
}

func TestHandleRegistryExhaustion(t *testing.T) {
	r := newHandleRegistry(2)
	if _, err := r.create(); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	if _, err := r.create(); err != nil {
		t.Fatalf("create 2: %v", err)
	}
	if _, err := r.create(); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}

func TestHandleRegistryDoubleReleaseIsNoop(t *testing.T) {
	r := newHandleRegistry(1)
	h, _ := r.create()
	r.release(h)
	r.release(h) // must not panic or double-free the slot

	h2, err := r.create()
	if err != nil {
		t.Fatalf("create after double release: %v", err)
	}
	if h2.index() != 0 {
		t.Fatalf("expected slot 0 reused, got %d", h2.index())
	}
}

func TestInvalidHandleNeverResolves(t *testing.T) {
	r := newHandleRegistry(4)
	if _, err := r.resolve(InvalidHandle); err == nil {
		t.Fatalf("InvalidHandle must never resolve")
	}
}
