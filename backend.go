package gfxcore

import (
	"context"
	"errors"

	vk "github.com/vulkan-go/vulkan"
)

const (
	graphicsCommandsPerSlot = 64
	computeCommandsPerSlot  = 32
	maxTextures             = 1024
	maxBuffers              = 2048
)

// Backend is the single aggregate value this core hands callers: it wires
// the Device Context, the two resource managers, the two command
// recyclers, and the Screen Subsystem together and drives the frame loop
// (§4.8). Per §9, exactly one Backend is expected to exist per process --
// there is no hidden global state backing any of its parts.
type Backend struct {
	dc       *DeviceContext
	textures *TextureManager
	buffers  *BufferManager
	graphics *commandRecycler
	compute  *commandRecycler
	screen   *Screen

	currentFrame int
	fatal        FatalSink
	logs         Loggers
}

// NewBackend brings up the entire core in one call: Device Context,
// resource managers, both command recyclers, and the Screen Subsystem.
func NewBackend(app AppInfo, cfg Config, win Window, logs Loggers, fatal FatalSink) (*Backend, error) {
	dc, err := newDeviceContext(app, cfg, win, logs, fatal)
	if err != nil {
		return nil, err
	}

	b := &Backend{dc: dc, fatal: fatal, logs: logs}
	b.textures = NewTextureManager(dc, maxTextures)
	b.buffers = NewBufferManager(dc, maxBuffers)

	graphics, err := newCommandRecycler(dc.device, dc.families.graphics, graphicsCommandsPerSlot)
	if err != nil {
		dc.destroy()
		return nil, err
	}
	b.graphics = graphics

	compute, err := newCommandRecycler(dc.device, dc.families.compute, computeCommandsPerSlot)
	if err != nil {
		graphics.destroy()
		dc.destroy()
		return nil, err
	}
	b.compute = compute

	screen, err := NewScreen(dc, b.textures, win)
	if err != nil {
		compute.destroy()
		graphics.destroy()
		dc.destroy()
		return nil, err
	}
	b.screen = screen

	return b, nil
}

// handleFatal implements §7's propagation policy at the public boundary:
// recoverable swapchain staleness is returned to the caller untouched,
// everything else is routed to FatalSink and also returned so a test
// double FatalSink can still observe the failure.
func (b *Backend) handleFatal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSwapchainStale) {
		return err
	}
	b.fatal(err)
	return err
}

// CreateTexture implements the public boundary over the Texture Manager.
func (b *Backend) CreateTexture(desc TextureDesc) (TextureHandle, error) {
	h, err := b.textures.createTexture(desc)
	if err != nil {
		return TextureHandle(InvalidHandle), b.handleFatal(err)
	}
	return h, nil
}

// ReleaseTexture implements the public boundary over the Texture Manager.
func (b *Backend) ReleaseTexture(h TextureHandle) {
	b.textures.releaseTexture(h)
}

// CreateBuffer implements the public boundary over the Buffer Manager.
func (b *Backend) CreateBuffer(desc BufferDesc) (BufferHandle, error) {
	h, err := b.buffers.createBuffer(desc)
	if err != nil {
		return BufferHandle(InvalidHandle), b.handleFatal(err)
	}
	return h, nil
}

// ReleaseBuffer implements the public boundary over the Buffer Manager.
func (b *Backend) ReleaseBuffer(h BufferHandle) {
	b.buffers.releaseBuffer(h)
}

// NextGraphicsCommand draws the next command buffer from the current
// frame's graphics slot.
func (b *Backend) NextGraphicsCommand() (vk.CommandBuffer, error) {
	cmd, err := b.graphics.getNext(b.currentFrame)
	if err != nil {
		return nil, b.handleFatal(err)
	}
	return cmd, nil
}

// NextComputeCommand draws the next command buffer from the current
// frame's compute slot.
func (b *Backend) NextComputeCommand() (vk.CommandBuffer, error) {
	cmd, err := b.compute.getNext(b.currentFrame)
	if err != nil {
		return nil, b.handleFatal(err)
	}
	return cmd, nil
}

// TextureImage/TextureView are the accessors §6 names for the renderer
// layer to build descriptors against a texture this core owns.
func (b *Backend) TextureImage(h TextureHandle) (vk.Image, error) {
	return b.textures.Image(h)
}

func (b *Backend) TextureView(h TextureHandle) (vk.ImageView, error) {
	return b.textures.View(h)
}

// BufferHandleVk is the accessor §6 names for the renderer layer to bind
// this core's buffer into a vertex/index/descriptor slot.
func (b *Backend) BufferHandleVk(h BufferHandle) (vk.Buffer, error) {
	return b.buffers.Buffer(h)
}

// DrawFrame implements §4.8 step by step.
func (b *Backend) DrawFrame(ctx context.Context) error {
	fence := b.dc.fences[b.currentFrame]
	if err := wrapResult(vk.WaitForFences(b.dc.device, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64), "vkWaitForFences"); err != nil {
		return b.handleFatal(err)
	}

	imageIndex, err := b.screen.acquire(b.currentFrame)
	if err != nil {
		if errors.Is(err, ErrSwapchainStale) {
			if rerr := b.TriggerResize(); rerr != nil {
				return rerr
			}
			return ErrSwapchainStale
		}
		return b.handleFatal(err)
	}

	if err := wrapResult(vk.ResetFences(b.dc.device, 1, []vk.Fence{fence}), "vkResetFences"); err != nil {
		return b.handleFatal(err)
	}

	cmd := b.screen.presentCmds[imageIndex]
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{b.screen.acquireSems[b.currentFrame]},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.screen.blitDoneSems[b.currentFrame]},
	}
	if err := wrapResult(vk.QueueSubmit(b.dc.graphicsQueue, 1, []vk.SubmitInfo{submit}, fence), "vkQueueSubmit(present)"); err != nil {
		return b.handleFatal(err)
	}

	presentErr := b.screen.present(b.currentFrame, imageIndex)
	if presentErr != nil {
		if !errors.Is(presentErr, ErrSwapchainStale) {
			return b.handleFatal(presentErr)
		}
		if rerr := b.TriggerResize(); rerr != nil {
			return rerr
		}
	}

	if err := b.graphics.releaseFrame(b.currentFrame); err != nil {
		return b.handleFatal(err)
	}
	if err := b.compute.releaseFrame(b.currentFrame); err != nil {
		return b.handleFatal(err)
	}

	b.currentFrame = (b.currentFrame + 1) % maxInFlight
	return presentErr
}

// TriggerResize implements §4.7.3/§9: recreate the Screen Subsystem's
// swapchain against the same surface, a no-op while draw-skip is set.
func (b *Backend) TriggerResize() error {
	if err := b.screen.resize(); err != nil {
		return b.handleFatal(err)
	}
	return nil
}

// SetDrawSkip implements the minimized-window guard of §4.7.3.
func (b *Backend) SetDrawSkip(skip bool) {
	b.screen.setDrawSkip(skip)
}

// Shutdown tears everything down in reverse dependency order.
func (b *Backend) Shutdown() {
	vk.DeviceWaitIdle(b.dc.device)
	b.screen.destroy()
	b.compute.destroy()
	b.graphics.destroy()
	b.buffers.destroy()
	b.textures.destroy()
	b.dc.destroy()
}
