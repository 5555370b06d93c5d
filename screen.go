package gfxcore

import vk "github.com/vulkan-go/vulkan"

// Screen is the Screen Subsystem of §4.7: surface + swapchain + the
// per-swap-image present command buffers that blit the composite render
// target onto the acquired image. It owns the composite/depth targets as
// ordinary Texture Manager handles.
type Screen struct {
	dc       *DeviceContext
	textures *TextureManager
	win      Window

	swapchain vk.Swapchain
	format    vk.SurfaceFormat
	extent    vk.Extent2D

	swapImages   []vk.Image
	presentCmds  []vk.CommandBuffer
	presentPool  vk.CommandPool

	acquireSems  [maxInFlight]vk.Semaphore
	blitDoneSems [maxInFlight]vk.Semaphore

	composite TextureHandle
	depth     TextureHandle

	drawSkip bool
}

// NewScreen creates the Screen Subsystem against an already live
// DeviceContext, following the creation sequence of §4.7.1. Per §3's
// ownership model there is exactly one vk.SurfaceKHR per window: the
// Device Context creates it (it's needed to score present-family support
// and swapchain capability during device selection) and owns its
// lifetime; the Screen Subsystem only ever reuses dc.surface, it never
// creates a surface of its own.
func NewScreen(dc *DeviceContext, textures *TextureManager, win Window) (*Screen, error) {
	s := &Screen{dc: dc, textures: textures, win: win}
	if err := s.create(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Screen) create() error {
	support := querySwapchainSupport(s.dc.gpu, s.dc.surface)
	if len(support.formats) == 0 || len(support.presentModes) == 0 {
		return newCoreError(KindUnsupported, "surface has no usable swapchain support")
	}

	s.format = support.formats[0]
	if s.format.Format == vk.FormatUndefined {
		s.format = vk.SurfaceFormat{Format: preferredSwapFormat, ColorSpace: preferredSwapColorSpace}
	}
	for _, f := range support.formats {
		if f.Format == preferredSwapFormat && f.ColorSpace == preferredSwapColorSpace {
			s.format = f
			break
		}
	}

	width, height := s.win.DrawableSize()
	extent := vk.Extent2D{Width: uint32(width), Height: uint32(height)}
	if support.caps.CurrentExtent.Width != vk.MaxUint32 {
		extent = support.caps.CurrentExtent
	}
	s.extent = extent

	imageCount := support.caps.MinImageCount + 1
	if support.caps.MaxImageCount > 0 && imageCount > support.caps.MaxImageCount {
		imageCount = support.caps.MaxImageCount
	}

	sharingMode := vk.SharingModeExclusive
	var queueIndices []uint32
	if s.dc.families.graphics != s.dc.families.present {
		sharingMode = vk.SharingModeConcurrent
		queueIndices = []uint32{s.dc.families.graphics, s.dc.families.present}
	}

	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(s.dc.device, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               s.dc.surface,
		MinImageCount:         imageCount,
		ImageFormat:           s.format.Format,
		ImageColorSpace:       s.format.ColorSpace,
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		ImageSharingMode:      sharingMode,
		QueueFamilyIndexCount: uint32(len(queueIndices)),
		PQueueFamilyIndices:   queueIndices,
		PreTransform:          support.caps.CurrentTransform,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           vk.PresentModeFifo,
		Clipped:               vk.True,
	}, nil, &swapchain)
	if err := wrapResult(ret, "vkCreateSwapchainKHR"); err != nil {
		return err
	}
	s.swapchain = swapchain

	var count uint32
	vk.GetSwapchainImages(s.dc.device, swapchain, &count, nil)
	s.swapImages = make([]vk.Image, count)
	vk.GetSwapchainImages(s.dc.device, swapchain, &count, s.swapImages)

	for i := range s.acquireSems {
		var sem vk.Semaphore
		if err := wrapResult(vk.CreateSemaphore(s.dc.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &sem), "vkCreateSemaphore(acquire)"); err != nil {
			return err
		}
		s.acquireSems[i] = sem
		var blitDone vk.Semaphore
		if err := wrapResult(vk.CreateSemaphore(s.dc.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &blitDone), "vkCreateSemaphore(blitDone)"); err != nil {
			return err
		}
		s.blitDoneSems[i] = blitDone
	}

	composite, err := s.textures.createTexture(TextureDesc{
		Type:       Texture2D,
		Access:     AccessDevice,
		Format:     FormatR10G10B10A2Unorm,
		Usage:      TextureUsageRenderTarget | TextureUsageTransferSrc,
		Width:      extent.Width,
		Height:     extent.Height,
		MipLevels:  1,
		DebugLabel: "screen.composite",
	})
	if err != nil {
		return err
	}
	s.composite = composite

	depth, err := s.textures.createTexture(TextureDesc{
		Type:       Texture2D,
		Access:     AccessDevice,
		Format:     FormatD32Sfloat,
		Usage:      TextureUsageDepthBuffer,
		Width:      extent.Width,
		Height:     extent.Height,
		MipLevels:  1,
		DebugLabel: "screen.depth",
	})
	if err != nil {
		return err
	}
	s.depth = depth

	if err := s.recordPresentCommands(); err != nil {
		return err
	}
	return nil
}

// recordPresentCommands implements §4.7.1(g): one present command buffer
// per swap image, each recorded once up front since the blit source and
// destination layouts never change between frames.
func (s *Screen) recordPresentCommands() error {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(s.dc.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: s.dc.families.graphics,
	}, nil, &pool)
	if err := wrapResult(ret, "vkCreateCommandPool(present)"); err != nil {
		return err
	}
	s.presentPool = pool

	buffers := make([]vk.CommandBuffer, len(s.swapImages))
	ret = vk.AllocateCommandBuffers(s.dc.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(len(buffers)),
	}, buffers)
	if err := wrapResult(ret, "vkAllocateCommandBuffers(present)"); err != nil {
		return err
	}
	s.presentCmds = buffers

	compositeImage, err := s.textures.Image(s.composite)
	if err != nil {
		return err
	}

	for i, cmd := range buffers {
		ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo})
		if err := wrapResult(ret, "vkBeginCommandBuffer(present)"); err != nil {
			return err
		}

		colorAspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
		toTransferSrc := imageMemoryBarrier(compositeImage, colorAspect, vk.ImageLayoutUndefined, vk.ImageLayoutTransferSrcOptimal,
			0, vk.AccessFlags(vk.AccessTransferReadBit), 0, 1, 0, 1)
		toTransferDst := imageMemoryBarrier(s.swapImages[i], colorAspect, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
			0, vk.AccessFlags(vk.AccessTransferWriteBit), 0, 1, 0, 1)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			0, 0, nil, 0, nil, 2, []vk.ImageMemoryBarrier{toTransferSrc, toTransferDst})

		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: colorAspect, LayerCount: 1},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: colorAspect, LayerCount: 1},
		}
		blit.SrcOffsets[1] = vk.Offset3D{X: int32(s.extent.Width), Y: int32(s.extent.Height), Z: 1}
		blit.DstOffsets[1] = vk.Offset3D{X: int32(s.extent.Width), Y: int32(s.extent.Height), Z: 1}
		vk.CmdBlitImage(cmd,
			compositeImage, vk.ImageLayoutTransferSrcOptimal,
			s.swapImages[i], vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{blit}, vk.FilterLinear)

		toPresent := imageMemoryBarrier(s.swapImages[i], colorAspect, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
			vk.AccessFlags(vk.AccessTransferWriteBit), 0, 0, 1, 0, 1)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toPresent})

		if err := wrapResult(vk.EndCommandBuffer(cmd), "vkEndCommandBuffer(present)"); err != nil {
			return err
		}
	}
	return nil
}

// acquire implements step 2 of §4.8: acquire the next swap image, signalling
// acquireSems[frame]. ErrSwapchainStale is returned on OUT_OF_DATE so the
// caller can trigger a resize without this subsystem owning that decision.
func (s *Screen) acquire(frame int) (uint32, error) {
	var imageIndex uint32
	ret := vk.AcquireNextImage(s.dc.device, s.swapchain, vk.MaxUint64, s.acquireSems[frame], vk.NullFence, &imageIndex)
	switch ret {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, ErrSwapchainStale
	default:
		return 0, wrapResult(ret, "vkAcquireNextImageKHR")
	}
}

// present implements step 4 of §4.8: queue a present waiting on
// blitDoneSems[frame]; OUT_OF_DATE/SUBOPTIMAL is reported as
// ErrSwapchainStale rather than a hard failure.
func (s *Screen) present(frame int, imageIndex uint32) error {
	swapchains := []vk.Swapchain{s.swapchain}
	images := []uint32{imageIndex}
	waits := []vk.Semaphore{s.blitDoneSems[frame]}
	results := make([]vk.Result, 1)
	ret := vk.QueuePresent(s.dc.presentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      images,
		PResults:           results,
	})
	switch ret {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return ErrSwapchainStale
	default:
		return wrapResult(ret, "vkQueuePresentKHR")
	}
}

// setDrawSkip implements §4.7.3's minimized-window guard: while set,
// TriggerResize (and thus DrawFrame's recreation path) becomes a no-op.
func (s *Screen) setDrawSkip(skip bool) {
	s.drawSkip = skip
}

// resize implements §4.7.3: destroy then recreate against the same
// surface, unless drawSkip is set.
func (s *Screen) resize() error {
	if s.drawSkip {
		return nil
	}
	s.destroySwapchainResources()
	return s.create()
}

func (s *Screen) destroySwapchainResources() {
	vk.DeviceWaitIdle(s.dc.device)
	if len(s.presentCmds) > 0 {
		vk.FreeCommandBuffers(s.dc.device, s.presentPool, uint32(len(s.presentCmds)), s.presentCmds)
		s.presentCmds = nil
	}
	if s.presentPool != vk.CommandPool(vk.NullHandle) {
		vk.DestroyCommandPool(s.dc.device, s.presentPool, nil)
		s.presentPool = vk.CommandPool(vk.NullHandle)
	}
	for i := range s.acquireSems {
		if s.acquireSems[i] != vk.Semaphore(vk.NullHandle) {
			vk.DestroySemaphore(s.dc.device, s.acquireSems[i], nil)
			s.acquireSems[i] = vk.Semaphore(vk.NullHandle)
		}
		if s.blitDoneSems[i] != vk.Semaphore(vk.NullHandle) {
			vk.DestroySemaphore(s.dc.device, s.blitDoneSems[i], nil)
			s.blitDoneSems[i] = vk.Semaphore(vk.NullHandle)
		}
	}
	if s.composite.Valid() {
		s.textures.releaseTexture(s.composite)
	}
	if s.depth.Valid() {
		s.textures.releaseTexture(s.depth)
	}
	s.swapImages = nil
	if s.swapchain != vk.Swapchain(vk.NullHandle) {
		vk.DestroySwapchain(s.dc.device, s.swapchain, nil)
		s.swapchain = vk.Swapchain(vk.NullHandle)
	}
}

// destroy implements §4.7.2: swapchain teardown. The surface itself is
// dc.surface, owned and torn down by DeviceContext.destroy, not here.
func (s *Screen) destroy() {
	s.destroySwapchainResources()
}

// Valid reports whether h differs from InvalidHandle (see Handle.Valid) -- lifted onto TextureHandle so
// screen.go can guard conditional releases without reaching into Handle.
func (h TextureHandle) Valid() bool {
	return Handle(h).Valid()
}
