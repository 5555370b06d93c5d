package gfxcore

import vk "github.com/vulkan-go/vulkan"

// commandRecycler is the Command Buffer Recycler of §4.6: one primary
// command pool per in-flight slot, each backed by a fixed-size array of
// command buffers handed out sequentially and reset wholesale at frame
// boundaries. It is explicitly not thread-safe -- getNext must be
// serialized by the caller, enforced here at runtime by an
// owner-goroutine assertion (race.go) (SPEC_FULL.md §9) rather than a mutex, since
// the contract is single-writer by design, not merely usually so.
type commandRecycler struct {
	device   vk.Device
	pools    [maxInFlight]vk.CommandPool
	buffers  [maxInFlight][]vk.CommandBuffer
	capacity int
	next     [maxInFlight]int
	owner    raceDetector
}

func newCommandRecycler(device vk.Device, queueFamily uint32, capacity int) (*commandRecycler, error) {
	r := &commandRecycler{device: device, capacity: capacity}
	for slot := 0; slot < maxInFlight; slot++ {
		var pool vk.CommandPool
		ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: queueFamily,
		}, nil, &pool)
		if err := wrapResult(ret, "vkCreateCommandPool(recycler)"); err != nil {
			r.destroy()
			return nil, err
		}
		r.pools[slot] = pool

		buffers := make([]vk.CommandBuffer, capacity)
		ret = vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        pool,
			Level:              vk.CommandBufferLevelPrimary,
			CommandBufferCount: uint32(capacity),
		}, buffers)
		if err := wrapResult(ret, "vkAllocateCommandBuffers(recycler)"); err != nil {
			r.destroy()
			return nil, err
		}
		r.buffers[slot] = buffers
	}
	return r, nil
}

// getNext returns the next command buffer in slot's sequence, already in
// the reset state (the pool itself was bulk-reset by the last releaseFrame
// for this slot). Exceeding capacity is fatal per §4.6/§4.13: the original
// source indexes past the array with no bounds check, which this
// implementation refuses to do.
func (r *commandRecycler) getNext(slot int) (vk.CommandBuffer, error) {
	r.owner.check()
	if r.next[slot] >= r.capacity {
		return nil, newCoreError(KindExhausted, "command recycler slot exhausted")
	}
	buf := r.buffers[slot][r.next[slot]]
	r.next[slot]++
	return buf, nil
}

// releaseFrame resets slot's pool in bulk (invalidating every command
// buffer drawn from it this frame) and zeroes its counter. The caller must
// only call this after the fence covering slot has signalled (§5 ordering
// guarantees).
func (r *commandRecycler) releaseFrame(slot int) error {
	r.owner.check()
	ret := vk.ResetCommandPool(r.device, r.pools[slot], vk.CommandPoolResetFlags(0))
	if err := wrapResult(ret, "vkResetCommandPool"); err != nil {
		return err
	}
	r.next[slot] = 0
	return nil
}

func (r *commandRecycler) destroy() {
	for slot := 0; slot < maxInFlight; slot++ {
		if r.pools[slot] != vk.CommandPool(vk.NullHandle) {
			vk.DestroyCommandPool(r.device, r.pools[slot], nil)
		}
	}
}
