package gfxcore

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// BufferUsage is a bitmask translated to vk.BufferUsageFlags.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
)

func (u BufferUsage) toVk() vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if u&BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

// BufferDesc describes a buffer to create; see §4.5. Unlike the original
// (§4.13), a device-local buffer with InitialContents is uploaded with
// vk.BufferUsageTransferDstBit, not the image transfer-dst bit it mistakenly
// reused.
type BufferDesc struct {
	Access          CPUAccess
	Usage           BufferUsage
	Size            vk.DeviceSize
	InitialContents []byte
	DebugLabel      string
}

type bufferSlot struct {
	desc       BufferDesc
	buffer     vk.Buffer
	allocation Allocation
}

// BufferHandle names a live buffer slot.
type BufferHandle Handle

// BufferManager maps BufferHandle -> {buffer, allocation, access} (§3
// Buffer slot) and drives creation/upload/release (§4.5).
type BufferManager struct {
	dc       *DeviceContext
	registry *handleRegistry
	slots    []bufferSlot
}

// NewBufferManager builds a fixed-capacity manager sized independently of
// the texture manager -- the original's AS_MAX_BUFFERS, not its mistaken
// reuse of AS_MAX_TEXTURES (§4.12/§4.13).
func NewBufferManager(dc *DeviceContext, capacity int) *BufferManager {
	return &BufferManager{
		dc:       dc,
		registry: newHandleRegistry(capacity),
		slots:    make([]bufferSlot, capacity),
	}
}

// createBuffer implements §4.5: buffer + memory bind, then either a
// synchronous staging upload (Device access) or a direct map/copy/unmap
// (Staging/Stream access) of any initial contents.
func (bm *BufferManager) createBuffer(desc BufferDesc) (BufferHandle, error) {
	deviceLocal := desc.Access == AccessDevice
	usage := desc.Usage.toVk()
	if deviceLocal && len(desc.InitialContents) > 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}

	var buf vk.Buffer
	ret := vk.CreateBuffer(bm.dc.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        desc.Size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if err := wrapResult(ret, "vkCreateBuffer"); err != nil {
		return BufferHandle(InvalidHandle), err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(bm.dc.device, buf, &reqs)
	reqs.Deref()

	propFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if !deviceLocal {
		propFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	typeIndex, ok := bm.dc.mem.findMemoryType(reqs.MemoryTypeBits, propFlags)
	if !ok {
		vk.DestroyBuffer(bm.dc.device, buf, nil)
		return BufferHandle(InvalidHandle), newCoreError(KindDriverFailure, "no suitable memory type for buffer")
	}
	alloc, err := bm.dc.mem.acquire(reqs.Size, typeIndex)
	if err != nil {
		vk.DestroyBuffer(bm.dc.device, buf, nil)
		return BufferHandle(InvalidHandle), err
	}
	if err := wrapResult(vk.BindBufferMemory(bm.dc.device, buf, alloc.Memory, 0), "vkBindBufferMemory"); err != nil {
		bm.dc.mem.release(alloc)
		vk.DestroyBuffer(bm.dc.device, buf, nil)
		return BufferHandle(InvalidHandle), err
	}

	if len(desc.InitialContents) > 0 {
		var uploadErr error
		if deviceLocal {
			uploadErr = stagingUpload(bm.dc, desc.Size, func(dst []byte) {
				copy(dst, desc.InitialContents)
			}, func(cmd vk.CommandBuffer, stagingBuf vk.Buffer) {
				toTransferWrite := bufferMemoryBarrier(buf, 0, vk.AccessFlags(vk.AccessTransferWriteBit), 0, desc.Size)
				vk.CmdPipelineBarrier(cmd,
					vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
					vk.PipelineStageFlags(vk.PipelineStageTransferBit),
					0, 0, nil, 1, []vk.BufferMemoryBarrier{toTransferWrite}, 0, nil)

				vk.CmdCopyBuffer(cmd, stagingBuf, buf, 1, []vk.BufferCopy{{
					SrcOffset: 0,
					DstOffset: 0,
					Size:      desc.Size,
				}})

				toShaderRead := bufferMemoryBarrier(buf, vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit), 0, desc.Size)
				vk.CmdPipelineBarrier(cmd,
					vk.PipelineStageFlags(vk.PipelineStageTransferBit),
					vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
					0, 0, nil, 1, []vk.BufferMemoryBarrier{toShaderRead}, 0, nil)
			})
		} else {
			uploadErr = bm.writeDirect(alloc, desc.Size, desc.InitialContents)
		}
		if uploadErr != nil {
			bm.dc.mem.release(alloc)
			vk.DestroyBuffer(bm.dc.device, buf, nil)
			return BufferHandle(InvalidHandle), uploadErr
		}
	}

	if bm.dc.validation.DebugMarkers && desc.DebugLabel != "" {
		setDebugObjectName(bm.dc, vk.DebugReportObjectTypeBuffer, uint64(buf), desc.DebugLabel)
	}

	h, err := bm.registry.create()
	if err != nil {
		bm.dc.mem.release(alloc)
		vk.DestroyBuffer(bm.dc.device, buf, nil)
		return BufferHandle(InvalidHandle), err
	}
	idx, _ := bm.registry.resolve(h)
	bm.slots[idx] = bufferSlot{desc: desc, buffer: buf, allocation: alloc}
	return BufferHandle(h), nil
}

// writeDirect implements the host-visible path: map the whole allocation,
// copy contents in, unmap. Used for Staging/Stream access buffers, which
// the caller is also expected to rewrite directly via Map (see below).
func (bm *BufferManager) writeDirect(alloc Allocation, size vk.DeviceSize, contents []byte) error {
	var mapped unsafe.Pointer
	if err := wrapResult(vk.MapMemory(bm.dc.device, alloc.Memory, 0, size, 0, &mapped), "vkMapMemory"); err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(mapped), int(size))
	copy(dst, contents)
	vk.UnmapMemory(bm.dc.device, alloc.Memory)
	return nil
}

// Map gives the caller direct write access to a Staging/Stream buffer's
// memory for the duration of fn; it is an error to call Map on a Device
// (device-local) buffer, which is never host-visible.
func (bm *BufferManager) Map(h BufferHandle, fn func([]byte)) error {
	idx, err := bm.registry.resolve(Handle(h))
	if err != nil {
		return err
	}
	slot := bm.slots[idx]
	if slot.desc.Access == AccessDevice {
		return newCoreError(KindUnsupported, "buffer is device-local and cannot be mapped")
	}
	var mapped unsafe.Pointer
	if err := wrapResult(vk.MapMemory(bm.dc.device, slot.allocation.Memory, 0, slot.desc.Size, 0, &mapped), "vkMapMemory"); err != nil {
		return err
	}
	fn(unsafe.Slice((*byte)(mapped), int(slot.desc.Size)))
	vk.UnmapMemory(bm.dc.device, slot.allocation.Memory)
	return nil
}

// Buffer is the accessor §6 requires to bind this resource into a
// descriptor or vertex/index binding.
func (bm *BufferManager) Buffer(h BufferHandle) (vk.Buffer, error) {
	idx, err := bm.registry.resolve(Handle(h))
	if err != nil {
		return nil, err
	}
	return bm.slots[idx].buffer, nil
}

// releaseBuffer implements §4.5: wait device idle, destroy buffer and
// allocation, invalidate the slot, release the handle.
func (bm *BufferManager) releaseBuffer(h BufferHandle) {
	idx, err := bm.registry.resolve(Handle(h))
	if err != nil {
		return
	}
	vk.DeviceWaitIdle(bm.dc.device)
	slot := bm.slots[idx]
	vk.DestroyBuffer(bm.dc.device, slot.buffer, nil)
	bm.dc.mem.release(slot.allocation)
	bm.slots[idx] = bufferSlot{}
	bm.registry.release(Handle(h))
}

func (bm *BufferManager) destroy() {
	for idx := range bm.slots {
		slot := bm.slots[idx]
		if slot.buffer == nil {
			continue
		}
		vk.DestroyBuffer(bm.dc.device, slot.buffer, nil)
		bm.dc.mem.release(slot.allocation)
	}
}
