package gfxcore

import vk "github.com/vulkan-go/vulkan"

// Allocation records one raw device-memory acquisition. Offset is always
// zero in this core -- there is no sub-allocation -- but the field exists
// so a future arena allocator can hand out offsets within a shared block
// without changing this type's shape.
type Allocation struct {
	Memory    vk.DeviceMemory
	Offset    vk.DeviceSize
	Size      vk.DeviceSize
	TypeIndex uint32
}

// memoryBookkeeper is a thin wrapper over vkAllocateMemory/vkFreeMemory
// that tracks live allocation count and per-memory-type bytes. It performs
// no suballocation: every acquire is one real device allocation.
type memoryBookkeeper struct {
	device     vk.Device
	props      vk.PhysicalDeviceMemoryProperties
	allocCount int
	perType    map[uint32]vk.DeviceSize
}

func newMemoryBookkeeper(device vk.Device, props vk.PhysicalDeviceMemoryProperties) *memoryBookkeeper {
	return &memoryBookkeeper{
		device:  device,
		props:   props,
		perType: make(map[uint32]vk.DeviceSize),
	}
}

// findMemoryType returns the lowest-indexed memory type satisfying both
// typeBits (the device's memory-requirements mask) and the required
// property flags. There is no fallback relaxation: a miss is fatal to the
// caller, per §4.2.
func (m *memoryBookkeeper) findMemoryType(typeBits uint32, required vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < m.props.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		m.props.MemoryTypes[i].Deref()
		if m.props.MemoryTypes[i].PropertyFlags&required == required {
			return i, true
		}
	}
	return 0, false
}

// acquire asks the device for size bytes of memory type typeIndex and
// records it. Failure is fatal: callers are expected to have already sized
// GPU workloads to fit.
func (m *memoryBookkeeper) acquire(size vk.DeviceSize, typeIndex uint32) (Allocation, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(m.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if err := wrapResult(ret, "vkAllocateMemory"); err != nil {
		return Allocation{}, err
	}
	m.allocCount++
	m.perType[typeIndex] += size
	return Allocation{Memory: mem, Size: size, TypeIndex: typeIndex}, nil
}

// release frees a (formerly successful) allocation and decrements its
// counters. Releasing the zero Allocation is a no-op.
func (m *memoryBookkeeper) release(a Allocation) {
	if a.Size == 0 {
		return
	}
	vk.FreeMemory(m.device, a.Memory, nil)
	m.allocCount--
	m.perType[a.TypeIndex] -= a.Size
	if m.perType[a.TypeIndex] <= 0 {
		delete(m.perType, a.TypeIndex)
	}
}

// LiveCount reports the number of outstanding allocations, used by tests
// asserting no allocation leak across create/release cycles.
func (m *memoryBookkeeper) LiveCount() int {
	return m.allocCount
}
