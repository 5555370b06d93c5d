//go:build vulkan

package gfxcore

import (
	"context"
	"io"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

// TestBackendDrawsAFrameOnARealDevice drives a real instance/device/window
// end-to-end, the way this codebase's own render-loop test does. It is only
// built under the "vulkan" tag and skips outright if no usable driver is
// found, since a headless CI box has neither a GPU nor a loader.
func TestBackendDrawsAFrameOnARealDevice(t *testing.T) {
	if err := glfw.Init(); err != nil {
		t.Skipf("no usable windowing system: %v", err)
	}
	defer glfw.Terminate()

	if !glfw.VulkanSupported() {
		t.Skip("loader reports no Vulkan support")
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		t.Skip("no vkGetInstanceProcAddr available")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		t.Skipf("vk.Init failed: %v", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	win, err := glfw.CreateWindow(64, 64, "gfxcore-test", nil, nil)
	if err != nil {
		t.Skipf("no usable window surface: %v", err)
	}
	defer win.Destroy()

	app := AppInfo{Name: "gfxcore-test", EngineName: "gfxcore", Version: 1}
	cfg := DefaultMapConfig()
	logs := NewLoggers(io.Discard)

	var fatalErr error
	fatal := func(err error) { fatalErr = err }

	backend, err := NewBackend(app, cfg, NewGLFWWindow(win), logs, fatal)
	if err != nil {
		t.Skipf("no usable device on this machine: %v", err)
	}
	defer backend.Shutdown()

	tex, err := backend.CreateTexture(TextureDesc{
		Type:      Texture2D,
		Access:    AccessDevice,
		Format:    FormatRGBA8Unorm,
		Usage:     TextureUsageSampled,
		Width:     4,
		Height:    4,
		Depth:     1,
		MipLevels: 1,
	})
	require.NoError(t, err)
	require.True(t, tex.Valid())
	backend.ReleaseTexture(tex)

	err = backend.DrawFrame(context.Background())
	if err != nil {
		require.ErrorIs(t, err, ErrSwapchainStale, "the only acceptable non-nil DrawFrame error off a fresh window is a stale swapchain")
	}
	require.NoError(t, fatalErr)
}
