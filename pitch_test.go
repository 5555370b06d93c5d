package gfxcore

import "testing"

func TestCalcTexturePitch(t *testing.T) {
	cases := []struct {
		name  string
		fmt   ColorFormat
		width int
		want  int
	}{
		{"bc1 rounds up to one block", FormatBC1Unorm, 5, 16},
		{"bc7 rounds up a single texel to one block", FormatBC7Unorm, 1, 16},
		{"rgba8 uncompressed", FormatRGBA8Unorm, 7, 28},
		{"r8 uncompressed", FormatR8Unorm, 16, 16},
		{"depth32 fixed width", FormatD32Sfloat, 1000, 4},
		{"depth32-stencil8 combined is 8 bytes", FormatD32SfloatS8Uint, 1000, 8},
		{"bc3 exact block boundary", FormatBC3Unorm, 8, 32},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := calcTexturePitch(c.fmt, c.width)
			if got != c.want {
				t.Errorf("calcTexturePitch(%v, %d) = %d, want %d", c.fmt, c.width, got, c.want)
			}
		})
	}
}

func TestColorFormatClassification(t *testing.T) {
	if !FormatBC1Unorm.isBlockCompressed() {
		t.Errorf("BC1 should be block compressed")
	}
	if FormatRGBA8Unorm.isBlockCompressed() {
		t.Errorf("RGBA8 should not be block compressed")
	}
	if !FormatD24UnormS8Uint.isDepth() {
		t.Errorf("D24S8 should be a depth format")
	}
	if FormatRGBA8Unorm.isDepth() {
		t.Errorf("RGBA8 should not be a depth format")
	}
}

func TestTextureFormatMapsEveryCatalogueEntry(t *testing.T) {
	all := []ColorFormat{
		FormatR8Unorm, FormatR8G8Unorm, FormatR16Sfloat, FormatR16Unorm,
		FormatR16G16Unorm, FormatR32Sfloat, FormatRG16Sfloat, FormatRGBA8Unorm,
		FormatRGBA16Sfloat, FormatRGBA32Sfloat, FormatRGB16Sfloat, FormatRGB32Sfloat,
		FormatR10G10B10A2Unorm, FormatBC1Unorm, FormatBC3Unorm, FormatBC5Unorm,
		FormatBC6HUfloat, FormatBC7Unorm, FormatD32Sfloat, FormatD32SfloatS8Uint,
		FormatD24UnormS8Uint,
	}
	for _, f := range all {
		if textureFormat(f) == 0 {
			t.Errorf("format %v maps to the zero vk.Format", f)
		}
	}
}
