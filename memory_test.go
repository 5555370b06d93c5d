package gfxcore

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestFindMemoryTypePicksLowestMatchingIndex(t *testing.T) {
	props := vk.PhysicalDeviceMemoryProperties{
		MemoryTypeCount: 3,
	}
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit)

	m := &memoryBookkeeper{props: props, perType: make(map[uint32]vk.DeviceSize)}

	idx, ok := m.findMemoryType(0b111, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if !ok {
		t.Fatalf("expected a matching memory type")
	}
	if idx != 1 {
		t.Fatalf("expected lowest-indexed match (1), got %d", idx)
	}
}

func TestFindMemoryTypeRespectsTypeBitsMask(t *testing.T) {
	props := vk.PhysicalDeviceMemoryProperties{MemoryTypeCount: 2}
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

	m := &memoryBookkeeper{props: props, perType: make(map[uint32]vk.DeviceSize)}

	// typeBits excludes index 0 -- only index 1 may be chosen.
	idx, ok := m.findMemoryType(0b10, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if !ok {
		t.Fatalf("expected a matching memory type")
	}
	if idx != 1 {
		t.Fatalf("expected index 1 given the typeBits mask, got %d", idx)
	}
}

func TestFindMemoryTypeNoMatch(t *testing.T) {
	props := vk.PhysicalDeviceMemoryProperties{MemoryTypeCount: 1}
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)

	m := &memoryBookkeeper{props: props, perType: make(map[uint32]vk.DeviceSize)}
	if _, ok := m.findMemoryType(0b1, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)); ok {
		t.Fatalf("expected no match for an unsatisfiable property requirement")
	}
}

func TestAllocationReleaseNoopOnZeroValue(t *testing.T) {
	m := &memoryBookkeeper{perType: make(map[uint32]vk.DeviceSize)}
	m.release(Allocation{}) // must not panic despite a nil device/memory
	if m.LiveCount() != 0 {
		t.Fatalf("zero-value release must not change live count")
	}
}
