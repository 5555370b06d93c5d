package gfxcore

// Handle is an opaque token naming a resource stably across reallocation.
// The low 32 bits select a slot in the owning registry; the high 32 bits
// are the slot's generation at issue time, so a handle outlives a single
// release/reissue cycle of its index without resolving to the wrong
// resident.
type Handle uint64

const invalidIndex = ^uint32(0)

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

// Valid reports whether h differs from InvalidHandle, i.e. whether its index
// is not invalidIndex. It consults no registry: a released handle, or the
// zero Handle (index 0, generation 0), still reports true.
func (h Handle) Valid() bool {
	return h.index() != invalidIndex
}

// InvalidHandle is the value returned by operations that never succeeded;
// resolving it always fails.
const InvalidHandle Handle = Handle(uint64(invalidIndex))

// handleRegistry is a fixed-capacity free-list of slot indices with a
// generation counter per slot, used by the texture and buffer managers to
// hand out and invalidate Handles without holding a pointer into their
// backing arrays.
type handleRegistry struct {
	generations []uint32
	live        []bool
	freeList    []uint32
}

func newHandleRegistry(capacity int) *handleRegistry {
	r := &handleRegistry{
		generations: make([]uint32, capacity),
		live:        make([]bool, capacity),
		freeList:    make([]uint32, capacity),
	}
	for i := 0; i < capacity; i++ {
		r.freeList[i] = uint32(capacity - 1 - i)
	}
	return r
}

// create allocates a slot and returns the Handle naming it. KindExhausted
// is fatal to the caller per the registry's capacity contract.
func (r *handleRegistry) create() (Handle, error) {
	if len(r.freeList) == 0 {
		return InvalidHandle, newCoreError(KindExhausted, "handle registry exhausted")
	}
	n := len(r.freeList) - 1
	index := r.freeList[n]
	r.freeList = r.freeList[:n]
	r.live[index] = true
	return makeHandle(index, r.generations[index]), nil
}

// release invalidates h: its slot is returned to the free list and its
// generation is bumped so any handle still referencing the old generation
// fails to resolve.
func (r *handleRegistry) release(h Handle) {
	index := h.index()
	if int(index) >= len(r.live) || !r.live[index] || r.generations[index] != h.generation() {
		return
	}
	r.live[index] = false
	r.generations[index]++
	r.freeList = append(r.freeList, index)
}

// resolve validates h against the slot's current generation and returns
// the backing index, or KindUnsupported-shaped staleness otherwise (the
// index is meaningless on error).
func (r *handleRegistry) resolve(h Handle) (uint32, error) {
	index := h.index()
	if int(index) >= len(r.generations) || !r.live[index] || r.generations[index] != h.generation() {
		return 0, errStaleHandle
	}
	return index, nil
}

var errStaleHandle = newCoreError(KindUnsupported, "stale handle")
