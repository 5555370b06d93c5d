package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	gfxcore "github.com/astrand130/astrengine"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
	vk "github.com/vulkan-go/vulkan"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		width             int
		height            int
		gpuIndex          int
		validationEnabled bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "drives a window through the GPU resource core's frame loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(width, height, gpuIndex, validationEnabled)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&width, "width", 1280, "window width in pixels")
	flags.IntVar(&height, "height", 720, "window height in pixels")
	flags.IntVar(&gpuIndex, "gpu-index", -1, "physical device index, -1 to auto-pick")
	flags.BoolVar(&validationEnabled, "validation", false, "enable the Khronos validation layer")
	return cmd
}

func run(width, height, gpuIndex int, validationEnabled bool) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw.Init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, "astrengine demo", nil, nil)
	if err != nil {
		return fmt.Errorf("glfw.CreateWindow: %w", err)
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vk.Init: %w", err)
	}

	logs := gfxcore.NewLoggers(os.Stderr)

	cfg := gfxcore.DefaultMapConfig()
	cfg.IntProps[gfxcore.ConfigWidth] = width
	cfg.IntProps[gfxcore.ConfigHeight] = height
	cfg.IntProps[gfxcore.ConfigGPUIndex] = gpuIndex
	cfg.BoolProps[gfxcore.ConfigValidationEnabled] = validationEnabled

	fatalErr := make(chan error, 1)
	fatal := func(err error) {
		select {
		case fatalErr <- err:
		default:
		}
	}

	backend, err := gfxcore.NewBackend(gfxcore.AppInfo{
		Name:       "astrengine demo",
		EngineName: "astrengine",
	}, cfg, gfxcore.NewGLFWWindow(win), logs, fatal)
	if err != nil {
		return fmt.Errorf("gfxcore.NewBackend: %w", err)
	}
	defer backend.Shutdown()

	win.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		backend.SetDrawSkip(w == 0 || h == 0)
		if err := backend.TriggerResize(); err != nil {
			logs.Errorf("resize failed: %v", err)
		}
	})

	for !win.ShouldClose() {
		glfw.PollEvents()

		select {
		case err := <-fatalErr:
			logs.Errorf("fatal: %v", err)
			os.Exit(1)
		default:
		}

		if err := backend.DrawFrame(context.Background()); err != nil {
			logs.Warnf("draw frame: %v", err)
		}
	}
	return nil
}
