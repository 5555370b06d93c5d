package gfxcore

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// stagingUpload is the shared transient-staging-buffer pattern factored
// out of the texture and buffer creation paths per SPEC_FULL.md §9: both
// callers allocate a host-visible+coherent buffer sized to size, hand the
// caller a []byte to fill, record commands against a one-shot command
// buffer, submit to the graphics queue (the transfer queue is the
// original's "TODO" -- §9 resolves this as legitimate either way), and
// wait idle before freeing everything.
func stagingUpload(dc *DeviceContext, size vk.DeviceSize, write func([]byte), record func(vk.CommandBuffer, vk.Buffer)) error {
	var buf vk.Buffer
	ret := vk.CreateBuffer(dc.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if err := wrapResult(ret, "vkCreateBuffer(staging)"); err != nil {
		return err
	}
	defer vk.DestroyBuffer(dc.device, buf, nil)

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dc.device, buf, &reqs)
	reqs.Deref()

	typeIndex, ok := dc.mem.findMemoryType(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if !ok {
		return newCoreError(KindDriverFailure, "no host-visible+coherent memory type for staging buffer")
	}
	alloc, err := dc.mem.acquire(reqs.Size, typeIndex)
	if err != nil {
		return err
	}
	defer dc.mem.release(alloc)

	if err := wrapResult(vk.BindBufferMemory(dc.device, buf, alloc.Memory, 0), "vkBindBufferMemory(staging)"); err != nil {
		return err
	}

	var mapped unsafe.Pointer
	if err := wrapResult(vk.MapMemory(dc.device, alloc.Memory, 0, size, 0, &mapped), "vkMapMemory(staging)"); err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(mapped), int(size))
	write(dst)
	vk.UnmapMemory(dc.device, alloc.Memory)

	cmd, err := beginOneShotCommand(dc)
	if err != nil {
		return err
	}
	record(cmd, buf)
	return endAndSubmitOneShotCommand(dc, cmd)
}

// beginOneShotCommand allocates and begins a single primary command buffer
// from the Device Context's general pool, per §4.4's one-shot recording
// sequence.
func beginOneShotCommand(dc *DeviceContext) (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(dc.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        dc.generalPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := wrapResult(ret, "vkAllocateCommandBuffers(one-shot)"); err != nil {
		return nil, err
	}
	cmd := buffers[0]
	ret = vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := wrapResult(ret, "vkBeginCommandBuffer(one-shot)"); err != nil {
		vk.FreeCommandBuffers(dc.device, dc.generalPool, 1, buffers)
		return nil, err
	}
	return cmd, nil
}

// endAndSubmitOneShotCommand submits cmd to the graphics queue and blocks
// until it completes, per §5's "resource release/creation is synchronous"
// ordering guarantee, then frees the command buffer.
func endAndSubmitOneShotCommand(dc *DeviceContext, cmd vk.CommandBuffer) error {
	if err := wrapResult(vk.EndCommandBuffer(cmd), "vkEndCommandBuffer(one-shot)"); err != nil {
		return err
	}
	buffers := []vk.CommandBuffer{cmd}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}
	if err := wrapResult(vk.QueueSubmit(dc.graphicsQueue, 1, []vk.SubmitInfo{submit}, vk.NullFence), "vkQueueSubmit(one-shot)"); err != nil {
		vk.FreeCommandBuffers(dc.device, dc.generalPool, 1, buffers)
		return err
	}
	if err := wrapResult(vk.QueueWaitIdle(dc.graphicsQueue), "vkQueueWaitIdle(one-shot)"); err != nil {
		vk.FreeCommandBuffers(dc.device, dc.generalPool, 1, buffers)
		return err
	}
	vk.FreeCommandBuffers(dc.device, dc.generalPool, 1, buffers)
	return nil
}

func bufferMemoryBarrier(buf vk.Buffer, srcAccess, dstAccess vk.AccessFlags, offset, size vk.DeviceSize) vk.BufferMemoryBarrier {
	return vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf,
		Offset:              offset,
		Size:                size,
	}
}

func imageMemoryBarrier(image vk.Image, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout,
	srcAccess, dstAccess vk.AccessFlags, baseMip, mipCount, baseLayer, layerCount uint32) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   baseMip,
			LevelCount:     mipCount,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	}
}
