package gfxcore

import vk "github.com/vulkan-go/vulkan"

// ColorFormat is the core's abstract pixel format, translated to a
// vk.Format by textureFormat. The catalogue is wider than the
// minimum the pitch table needs, carrying forward every format named in
// the original renderer's format enum (§4.12 of SPEC_FULL.md).
type ColorFormat int

const (
	FormatR8Unorm ColorFormat = iota
	FormatR8G8Unorm
	FormatR16Sfloat
	FormatR16Unorm
	FormatR16G16Unorm
	FormatR32Sfloat
	FormatRG16Sfloat
	FormatRGBA8Unorm
	FormatRGBA16Sfloat
	FormatRGBA32Sfloat
	FormatRGB16Sfloat
	FormatRGB32Sfloat
	FormatR10G10B10A2Unorm
	FormatBC1Unorm
	FormatBC3Unorm
	FormatBC5Unorm
	FormatBC6HUfloat
	FormatBC7Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

func (f ColorFormat) isBlockCompressed() bool {
	switch f {
	case FormatBC1Unorm, FormatBC3Unorm, FormatBC5Unorm, FormatBC6HUfloat, FormatBC7Unorm:
		return true
	default:
		return false
	}
}

func (f ColorFormat) isDepth() bool {
	switch f {
	case FormatD32Sfloat, FormatD32SfloatS8Uint, FormatD24UnormS8Uint:
		return true
	default:
		return false
	}
}

// blockBytes returns the bytes-per-4x4-block for a
// block-compressed format. Only called when isBlockCompressed is true.
func (f ColorFormat) blockBytes() int {
	if f == FormatBC1Unorm {
		return 8
	}
	return 16
}

// bitsPerPixel is the fixed table for uncompressed, non-depth formats.
func (f ColorFormat) bitsPerPixel() int {
	switch f {
	case FormatR8Unorm:
		return 8
	case FormatR8G8Unorm:
		return 16
	case FormatR16Sfloat, FormatR16Unorm:
		return 16
	case FormatR16G16Unorm, FormatRG16Sfloat:
		return 32
	case FormatR32Sfloat:
		return 32
	case FormatRGBA8Unorm:
		return 32
	case FormatRGBA16Sfloat:
		return 64
	case FormatRGBA32Sfloat:
		return 128
	case FormatRGB16Sfloat:
		return 48
	case FormatRGB32Sfloat:
		return 96
	case FormatR10G10B10A2Unorm:
		return 32
	default:
		return 0
	}
}

// calcTexturePitch returns the byte pitch of one row of width texels in
// format fmt. Block-compressed formats round width up to the nearest 4x4
// block; depth formats are a fixed 4 bytes (8 for D32_SFLOAT_S8_UINT;
// D24_UNORM_S8_UINT packs into 4);
// everything else derives from bitsPerPixel.
func calcTexturePitch(fmt ColorFormat, width int) int {
	if fmt.isBlockCompressed() {
		blockBytes := fmt.blockBytes()
		blocks := (width + 3) / 4
		pitch := blocks * blockBytes
		if pitch < blockBytes {
			return blockBytes
		}
		return pitch
	}
	if fmt.isDepth() {
		if fmt == FormatD32SfloatS8Uint {
			return 8
		}
		return 4
	}
	bpp := fmt.bitsPerPixel()
	return (width*bpp + 7) / 8
}

// textureFormat maps a ColorFormat to the vk.Format used for image/view
// creation.
func textureFormat(fmt ColorFormat) vk.Format {
	switch fmt {
	case FormatR8Unorm:
		return vk.FormatR8Unorm
	case FormatR8G8Unorm:
		return vk.FormatR8g8Unorm
	case FormatR16Sfloat:
		return vk.FormatR16Sfloat
	case FormatR16Unorm:
		return vk.FormatR16Unorm
	case FormatR16G16Unorm:
		return vk.FormatR16g16Unorm
	case FormatR32Sfloat:
		return vk.FormatR32Sfloat
	case FormatRG16Sfloat:
		return vk.FormatR16g16Sfloat
	case FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case FormatRGBA16Sfloat:
		return vk.FormatR16g16b16a16Sfloat
	case FormatRGBA32Sfloat:
		return vk.FormatR32g32b32a32Sfloat
	case FormatRGB16Sfloat:
		return vk.FormatR16g16b16Sfloat
	case FormatRGB32Sfloat:
		return vk.FormatR32g32b32Sfloat
	case FormatR10G10B10A2Unorm:
		return vk.FormatA2r10g10b10UnormPack32
	case FormatBC1Unorm:
		return vk.FormatBc1RgbaUnormBlock
	case FormatBC3Unorm:
		return vk.FormatBc3UnormBlock
	case FormatBC5Unorm:
		return vk.FormatBc5UnormBlock
	case FormatBC6HUfloat:
		return vk.FormatBc6hUfloatBlock
	case FormatBC7Unorm:
		return vk.FormatBc7UnormBlock
	case FormatD32Sfloat:
		return vk.FormatD32Sfloat
	case FormatD32SfloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	case FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatUndefined
	}
}
