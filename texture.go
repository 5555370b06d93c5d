package gfxcore

import (
	vk "github.com/vulkan-go/vulkan"
)

// TextureType is the abstract shape of a texture, mapped to a concrete
// vk.ImageType/vk.ImageViewType pair at creation time.
type TextureType int

const (
	Texture2D TextureType = iota
	Texture2DArray
	TextureCube
	TextureCubeArray
	Texture3D
)

// CPUAccess names the upload/visibility path for a texture or buffer, the
// Go-native equivalent of the original's asGpuResourceUploadType (§4.12).
type CPUAccess int

const (
	AccessDevice CPUAccess = iota
	AccessStaging
	AccessStream
)

// TextureUsage is a bitmask translated bit-for-bit to vk.ImageUsageFlags.
type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageRenderTarget
	TextureUsageDepthBuffer
	TextureUsageTransferSrc
)

func (u TextureUsage) toVk() vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&TextureUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&TextureUsageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if u&TextureUsageRenderTarget != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&TextureUsageDepthBuffer != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&TextureUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	return vk.ImageUsageFlags(flags)
}

// TextureRegion is one initial-contents upload region, carried forward
// unchanged from the original's per-region content descriptor (§4.12):
// multiple regions let one createTexture call seed several mips/layers.
type TextureRegion struct {
	BufferOffset   vk.DeviceSize
	ImageOffset    [3]int32
	ImageExtent    [3]uint32
	MipLevel       uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// TextureDesc describes a texture to create; see §4.4.
type TextureDesc struct {
	Type            TextureType
	Access          CPUAccess
	Format          ColorFormat
	Usage           TextureUsage
	Width           uint32
	Height          uint32
	Depth           uint32 // array layers, unless Type == Texture3D
	MipLevels       uint32
	InitialContents []byte
	Regions         []TextureRegion
	DebugLabel      string
}

type textureSlot struct {
	desc       TextureDesc
	image      vk.Image
	view       vk.ImageView
	allocation Allocation
}

// TextureHandle names a live texture slot.
type TextureHandle Handle

// TextureManager maps TextureHandle -> {image, view, allocation, type,
// access} (§3 Texture slot) and drives creation/upload/release (§4.4).
type TextureManager struct {
	dc       *DeviceContext
	registry *handleRegistry
	slots    []textureSlot
}

// NewTextureManager builds a fixed-capacity manager; capacity mirrors the
// original's AS_MAX_TEXTURES (§4.12).
func NewTextureManager(dc *DeviceContext, capacity int) *TextureManager {
	return &TextureManager{
		dc:       dc,
		registry: newHandleRegistry(capacity),
		slots:    make([]textureSlot, capacity),
	}
}

func imageTypeFor(t TextureType) vk.ImageType {
	if t == Texture3D {
		return vk.ImageType3d
	}
	return vk.ImageType2d
}

func viewTypeFor(t TextureType) vk.ImageViewType {
	switch t {
	case Texture2D:
		return vk.ImageViewType2d
	case Texture2DArray:
		return vk.ImageViewType2dArray
	case TextureCube:
		return vk.ImageViewTypeCube
	case TextureCubeArray:
		return vk.ImageViewTypeCubeArray
	case Texture3D:
		return vk.ImageViewType3d
	default:
		return vk.ImageViewType2d
	}
}

func arrayLayersFor(desc TextureDesc) uint32 {
	if desc.Type == Texture3D {
		return 1
	}
	if desc.Depth == 0 {
		return 1
	}
	return desc.Depth
}

// createTexture implements §4.4: image + view + memory bind, and
// synchronous staging upload of initial contents when supplied.
func (tm *TextureManager) createTexture(desc TextureDesc) (TextureHandle, error) {
	isRenderTarget := desc.Usage&(TextureUsageRenderTarget|TextureUsageDepthBuffer) != 0
	usage := desc.Usage.toVk()
	deviceLocal := desc.Access == AccessDevice
	if len(desc.InitialContents) > 0 && deviceLocal {
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}

	extent := vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1}
	layers := arrayLayersFor(desc)
	if desc.Type == Texture3D {
		extent.Depth = desc.Depth
		if extent.Depth == 0 {
			extent.Depth = 1
		}
	}
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}

	tiling := vk.ImageTilingOptimal
	if !deviceLocal {
		tiling = vk.ImageTilingLinear
	}

	var image vk.Image
	ret := vk.CreateImage(tm.dc.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     imageTypeFor(desc.Type),
		Format:        textureFormat(desc.Format),
		Extent:        extent,
		MipLevels:     mips,
		ArrayLayers:   layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        tiling,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := wrapResult(ret, "vkCreateImage"); err != nil {
		return TextureHandle(InvalidHandle), err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(tm.dc.device, image, &reqs)
	reqs.Deref()

	propFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if !deviceLocal {
		propFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	typeIndex, ok := tm.dc.mem.findMemoryType(reqs.MemoryTypeBits, propFlags)
	if !ok {
		vk.DestroyImage(tm.dc.device, image, nil)
		return TextureHandle(InvalidHandle), newCoreError(KindDriverFailure, "no suitable memory type for texture")
	}
	alloc, err := tm.dc.mem.acquire(reqs.Size, typeIndex)
	if err != nil {
		vk.DestroyImage(tm.dc.device, image, nil)
		return TextureHandle(InvalidHandle), err
	}
	if err := wrapResult(vk.BindImageMemory(tm.dc.device, image, alloc.Memory, 0), "vkBindImageMemory"); err != nil {
		tm.dc.mem.release(alloc)
		vk.DestroyImage(tm.dc.device, image, nil)
		return TextureHandle(InvalidHandle), err
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if desc.Format.isDepth() {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	viewLayers := uint32(1)
	if desc.Type != Texture3D {
		viewLayers = layers
	}

	var view vk.ImageView
	ret = vk.CreateImageView(tm.dc.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewTypeFor(desc.Type),
		Format:   textureFormat(desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			LevelCount:     mips,
			LayerCount:     viewLayers,
		},
	}, nil, &view)
	if err := wrapResult(ret, "vkCreateImageView"); err != nil {
		tm.dc.mem.release(alloc)
		vk.DestroyImage(tm.dc.device, image, nil)
		return TextureHandle(InvalidHandle), err
	}

	if len(desc.InitialContents) > 0 && !isRenderTarget && desc.Access == AccessDevice {
		if err := tm.uploadInitialContents(image, mips, viewLayers, aspect, desc); err != nil {
			vk.DestroyImageView(tm.dc.device, view, nil)
			tm.dc.mem.release(alloc)
			vk.DestroyImage(tm.dc.device, image, nil)
			return TextureHandle(InvalidHandle), err
		}
	}
	// Staging/Stream access with initial contents: silently no-op per §4.4
	// -- higher layers are expected to map and write themselves.

	if tm.dc.validation.DebugMarkers && desc.DebugLabel != "" {
		setDebugObjectName(tm.dc, vk.DebugReportObjectTypeImage, uint64(image), desc.DebugLabel)
		setDebugObjectName(tm.dc, vk.DebugReportObjectTypeImageView, uint64(view), desc.DebugLabel)
	}

	h, err := tm.registry.create()
	if err != nil {
		vk.DestroyImageView(tm.dc.device, view, nil)
		tm.dc.mem.release(alloc)
		vk.DestroyImage(tm.dc.device, image, nil)
		return TextureHandle(InvalidHandle), err
	}
	idx, _ := tm.registry.resolve(h)
	tm.slots[idx] = textureSlot{desc: desc, image: image, view: view, allocation: alloc}
	return TextureHandle(h), nil
}

// uploadInitialContents implements the Device-access upload sequence of
// §4.4: barrier to TRANSFER_DST, one copyBufferToImage per region, barrier
// to SHADER_READ_ONLY.
func (tm *TextureManager) uploadInitialContents(image vk.Image, mips, layers uint32, aspect vk.ImageAspectFlags, desc TextureDesc) error {
	return stagingUpload(tm.dc, vk.DeviceSize(len(desc.InitialContents)), func(dst []byte) {
		copy(dst, desc.InitialContents)
	}, func(cmd vk.CommandBuffer, stagingBuf vk.Buffer) {
		toTransferDst := imageMemoryBarrier(image, aspect, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
			0, vk.AccessFlags(vk.AccessTransferWriteBit), 0, mips, 0, layers)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransferDst})

		regions := desc.Regions
		if len(regions) == 0 {
			regions = []TextureRegion{{
				ImageExtent: [3]uint32{desc.Width, desc.Height, 1},
				LayerCount:  layers,
			}}
		}
		copies := make([]vk.BufferImageCopy, len(regions))
		for i, r := range regions {
			layerCount := r.LayerCount
			if layerCount == 0 {
				layerCount = layers
			}
			copies[i] = vk.BufferImageCopy{
				BufferOffset: r.BufferOffset,
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask:     aspect,
					MipLevel:       r.MipLevel,
					BaseArrayLayer: r.BaseArrayLayer,
					LayerCount:     layerCount,
				},
				ImageOffset: vk.Offset3D{X: r.ImageOffset[0], Y: r.ImageOffset[1], Z: r.ImageOffset[2]},
				ImageExtent: vk.Extent3D{Width: r.ImageExtent[0], Height: r.ImageExtent[1], Depth: maxu32(r.ImageExtent[2], 1)},
			}
		}
		vk.CmdCopyBufferToImage(cmd, stagingBuf, image, vk.ImageLayoutTransferDstOptimal, uint32(len(copies)), copies)

		toShaderRead := imageMemoryBarrier(image, aspect, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit), 0, mips, 0, layers)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toShaderRead})
	})
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// releaseTexture implements §4.4: wait device idle, destroy view/image/
// allocation, invalidate the slot, release the handle.
func (tm *TextureManager) releaseTexture(h TextureHandle) {
	idx, err := tm.registry.resolve(Handle(h))
	if err != nil {
		return
	}
	vk.DeviceWaitIdle(tm.dc.device)
	slot := tm.slots[idx]
	vk.DestroyImageView(tm.dc.device, slot.view, nil)
	vk.DestroyImage(tm.dc.device, slot.image, nil)
	tm.dc.mem.release(slot.allocation)
	tm.slots[idx] = textureSlot{}
	tm.registry.release(Handle(h))
}

// Image/View/Allocation are the accessors §6 requires for the renderer
// layer to build descriptors; they return a copy, never a live pointer
// into the manager's backing array.
func (tm *TextureManager) Image(h TextureHandle) (vk.Image, error) {
	idx, err := tm.registry.resolve(Handle(h))
	if err != nil {
		return nil, err
	}
	return tm.slots[idx].image, nil
}

func (tm *TextureManager) View(h TextureHandle) (vk.ImageView, error) {
	idx, err := tm.registry.resolve(Handle(h))
	if err != nil {
		return nil, err
	}
	return tm.slots[idx].view, nil
}

func (tm *TextureManager) Allocation(h TextureHandle) (Allocation, error) {
	idx, err := tm.registry.resolve(Handle(h))
	if err != nil {
		return Allocation{}, err
	}
	return tm.slots[idx].allocation, nil
}

func (tm *TextureManager) destroy() {
	for idx := range tm.slots {
		slot := tm.slots[idx]
		if slot.image == nil {
			continue
		}
		vk.DestroyImageView(tm.dc.device, slot.view, nil)
		vk.DestroyImage(tm.dc.device, slot.image, nil)
		tm.dc.mem.release(slot.allocation)
	}
}

