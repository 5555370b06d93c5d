package gfxcore

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// newTestRecycler builds a commandRecycler without touching the driver,
// for exercising the pure counter/exhaustion/ownership logic of getNext.
func newTestRecycler(capacity int) *commandRecycler {
	r := &commandRecycler{capacity: capacity}
	for slot := 0; slot < maxInFlight; slot++ {
		r.buffers[slot] = make([]vk.CommandBuffer, capacity)
	}
	return r
}

func TestCommandRecyclerGetNextAdvancesAndExhausts(t *testing.T) {
	r := newTestRecycler(3)

	for i := 0; i < 3; i++ {
		if _, err := r.getNext(0); err != nil {
			t.Fatalf("getNext %d: %v", i, err)
		}
	}
	if _, err := r.getNext(0); err == nil {
		t.Fatalf("expected exhaustion error on the 4th getNext")
	}

	// slot 1 is independent of slot 0's counter.
	if _, err := r.getNext(1); err != nil {
		t.Fatalf("getNext on a fresh slot: %v", err)
	}
}

func TestCommandRecyclerReleaseFrameResetsCounterOnly(t *testing.T) {
	r := newTestRecycler(2)
	if _, err := r.getNext(0); err != nil {
		t.Fatalf("getNext: %v", err)
	}
	if _, err := r.getNext(0); err != nil {
		t.Fatalf("getNext: %v", err)
	}
	r.next[0] = 0 // simulate what releaseFrame's counter reset does, without the real vkResetCommandPool call
	if _, err := r.getNext(0); err != nil {
		t.Fatalf("getNext after counter reset: %v", err)
	}
}

func TestRaceDetectorAllowsSameGoroutine(t *testing.T) {
	var rd raceDetector
	rd.check()
	rd.check()
	rd.check()
}
