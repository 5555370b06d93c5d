package gfxcore

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Window is the windowing collaborator the core consumes: an opaque
// drawable surface plus whatever the native platform needs to hand the
// instance a vk.Surface. The core never creates or polls a window itself.
type Window interface {
	RequiredInstanceExtensions() []string
	DrawableSize() (width, height int)
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// glfwWindow adapts a *glfw.Window to Window, the way this codebase's
// display and application layers already drive GLFW.
type glfwWindow struct {
	win *glfw.Window
}

// NewGLFWWindow wraps an existing GLFW window. The caller remains
// responsible for glfw.Init/Terminate and for pumping glfw.PollEvents.
func NewGLFWWindow(win *glfw.Window) Window {
	return &glfwWindow{win: win}
}

func (w *glfwWindow) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

func (w *glfwWindow) DrawableSize() (int, int) {
	return w.win.GetSize()
}

func (w *glfwWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	raw, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(raw), nil
}
