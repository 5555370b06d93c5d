package gfxcore

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// AppInfo names the application for vkApplicationInfo and picks the
// Vulkan API version the context requests.
type AppInfo struct {
	Name        string
	EngineName  string
	Version     uint32
	APIVersion  uint32
}

// Validation is the macro-gated validation behavior of the original
// renderer, reified as a config struct per SPEC_FULL.md §9.
type Validation struct {
	Enabled      bool
	WantedLayers []string
	DebugMarkers bool
}

const maxInFlight = 2

// queueFamilies records the family index chosen for each queue role. Per
// §4.3.3 a dedicated queue is only created for a family index the first
// time it's seen among {graphics, present, compute}; transfer reuses
// whichever family already covers it.
type queueFamilies struct {
	graphics uint32
	present  uint32
	compute  uint32
	transfer uint32
}

func (q queueFamilies) uniqueCreateIndices() []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, idx := range []uint32{q.graphics, q.present, q.compute} {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}

// DeviceContext owns everything SPEC_FULL.md §4.3 says is exclusively the
// Device Context's: instance, physical-device record, logical device, the
// four queues, the general command pool, and per-in-flight fences.
type DeviceContext struct {
	instance vk.Instance
	surface  vk.Surface
	gpu      vk.PhysicalDevice
	device   vk.Device

	gpuProps   vk.PhysicalDeviceProperties
	memProps   vk.PhysicalDeviceMemoryProperties
	anisotropy bool

	families queueFamilies
	graphicsQueue vk.Queue
	presentQueue  vk.Queue
	computeQueue  vk.Queue
	transferQueue vk.Queue

	generalPool vk.CommandPool
	fences      [maxInFlight]vk.Fence

	debugReport       vk.DebugReportCallback
	debugMarkerSetName vk.PfnDebugMarkerSetObjectNameEXT
	validation        Validation

	mem *memoryBookkeeper

	logs  Loggers
	fatal FatalSink
}

// FatalSink is the single externally supplied boundary that turns a
// terminal core error into process termination (§7 Propagation policy).
type FatalSink func(error)

func newDeviceContext(app AppInfo, cfg Config, win Window, logs Loggers, fatal FatalSink) (*DeviceContext, error) {
	dc := &DeviceContext{logs: logs, fatal: fatal}
	dc.validation = Validation{
		Enabled:      cfg.Bool(ConfigValidationEnabled, false),
		WantedLayers: cfg.StringSlice(ConfigValidationLayers, []string{"VK_LAYER_KHRONOS_validation"}),
		DebugMarkers: cfg.Bool(ConfigValidationEnabled, false),
	}

	if err := dc.createInstance(app, win); err != nil {
		return nil, err
	}
	if dc.validation.Enabled {
		if err := dc.createDebugReport(); err != nil {
			return nil, err
		}
	}
	surface, err := win.CreateSurface(dc.instance)
	if err != nil {
		return nil, newCoreError(KindDriverFailure, "window surface creation failed: "+err.Error())
	}
	dc.surface = surface
	if err := dc.pickPhysicalDevice(cfg); err != nil {
		return nil, err
	}
	if err := dc.createLogicalDevice(); err != nil {
		return nil, err
	}
	dc.mem = newMemoryBookkeeper(dc.device, dc.memProps)
	if err := dc.createGeneralResources(); err != nil {
		return nil, err
	}
	if dc.validation.DebugMarkers {
		dc.resolveDebugMarkerEntryPoint()
	}
	return dc, nil
}

// createInstance implements §4.3.1: required platform surface extensions
// plus the debug-report extension when validation is enabled; fails
// fatally (returns a KindUnsupported error, which NewBackend hands back to
// its caller) if validation is requested but the validation layer is absent.
func (dc *DeviceContext) createInstance(app AppInfo, win Window) error {
	extensions := append([]string{}, win.RequiredInstanceExtensions()...)
	if dc.validation.Enabled {
		extensions = append(extensions, "VK_EXT_debug_report")

		available, err := availableInstanceLayers()
		if err != nil {
			return err
		}
		if !hasAllLayers(available, dc.validation.WantedLayers) {
			return newCoreError(KindUnsupported, "required validation layer not present")
		}
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeCString(app.Name),
		ApplicationVersion: app.Version,
		PEngineName:        safeCString(app.EngineName),
		EngineVersion:      app.Version,
		ApiVersion:         apiVersionOrDefault(app.APIVersion),
	}

	var layers []string
	if dc.validation.Enabled {
		layers = dc.validation.WantedLayers
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := wrapResult(ret, "vkCreateInstance"); err != nil {
		return err
	}
	vk.InitInstance(instance)
	dc.instance = instance
	return nil
}

func apiVersionOrDefault(v uint32) uint32 {
	if v != 0 {
		return v
	}
	return uint32(vk.MakeVersion(1, 1, 0))
}

func (dc *DeviceContext) createDebugReport() error {
	ret := vk.CreateDebugReportCallback(dc.instance, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dc.debugCallback,
	}, nil, &dc.debugReport)
	return wrapResult(ret, "vkCreateDebugReportCallbackEXT")
}

// debugCallback routes validation messages to the Logger; per §4.9
// Validation-layer messages are logged, never fatal.
func (dc *DeviceContext) debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		dc.logs.Errorf("[%s] %s", pLayerPrefix, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0,
		flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		dc.logs.Warnf("[%s] %s", pLayerPrefix, pMessage)
	default:
		dc.logs.Infof("[%s] %s", pLayerPrefix, pMessage)
	}
	return vk.Bool32(vk.False)
}

// deviceCandidate carries a physical device through scoring so the best
// one can be picked without re-querying the driver.
type deviceCandidate struct {
	gpu      vk.PhysicalDevice
	props    vk.PhysicalDeviceProperties
	memProps vk.PhysicalDeviceMemoryProperties
	features vk.PhysicalDeviceFeatures
	families queueFamilies
	score    int
}

// pickPhysicalDevice implements §4.3.2. If the config supplies a valid
// GPUIndex, scoring is skipped entirely and that device is used directly;
// an out-of-range index (§8 scenario 6) falls back to automatic scoring
// rather than indexing out of bounds.
func (dc *DeviceContext) pickPhysicalDevice(cfg Config) error {
	var count uint32
	if err := wrapResult(vk.EnumeratePhysicalDevices(dc.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return newCoreError(KindUnsupported, "no physical devices present")
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := wrapResult(vk.EnumeratePhysicalDevices(dc.instance, &count, gpus), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requestedIndex := cfg.Int(ConfigGPUIndex, -1)
	if requestedIndex >= 0 && requestedIndex < int(count) {
		cand, ok, err := dc.evaluateDevice(gpus[requestedIndex])
		if err != nil {
			return err
		}
		if !ok {
			return newCoreError(KindUnsupported, "configured GPUIndex does not satisfy requirements")
		}
		dc.adoptCandidate(cand)
		return nil
	}

	var best *deviceCandidate
	for _, gpu := range gpus {
		cand, ok, err := dc.evaluateDevice(gpu)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if best == nil || cand.score > best.score {
			c := cand
			best = &c
		}
	}
	if best == nil {
		return newCoreError(KindUnsupported, "no physical device satisfies minimum requirements")
	}
	dc.adoptCandidate(*best)
	return nil
}

func (dc *DeviceContext) adoptCandidate(cand deviceCandidate) {
	dc.gpu = cand.gpu
	dc.gpuProps = cand.props
	dc.memProps = cand.memProps
	dc.anisotropy = cand.features.SamplerAnisotropy != vk.False
	dc.families = cand.families
}

// evaluateDevice rejects a device missing any mandatory requirement, else
// computes its score per §4.3.2.
func (dc *DeviceContext) evaluateDevice(gpu vk.PhysicalDevice) (deviceCandidate, bool, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	if features.ImageCubeArray == vk.False {
		return deviceCandidate{}, false, nil
	}

	families, ok := dc.findQueueFamilies(gpu)
	if !ok {
		return deviceCandidate{}, false, nil
	}

	extensions, err := deviceExtensionNames(gpu)
	if err != nil {
		return deviceCandidate{}, false, err
	}
	if !hasAllLayers(extensions, []string{"VK_KHR_swapchain"}) {
		return deviceCandidate{}, false, nil
	}

	swapScore, ok := dc.scoreSwapchainSupport(gpu)
	if !ok {
		return deviceCandidate{}, false, nil
	}

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memProps)
	memProps.Deref()

	score := 0
	if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
		score += 10000
	}
	if features.SamplerAnisotropy != vk.False {
		score += 100
	}
	// Swapchain score is credited twice -- see SPEC_FULL.md §4.3.2.
	score += swapScore
	score += swapScore

	return deviceCandidate{
		gpu:      gpu,
		props:    props,
		memProps: memProps,
		features: features,
		families: families,
		score:    score,
	}, true, nil
}

// swapchainSupport is the capabilities/formats/present-modes triple this
// core queries both at device-scoring time and again when the Screen
// Subsystem actually creates a swapchain against the same surface.
type swapchainSupport struct {
	caps         vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func querySwapchainSupport(gpu vk.PhysicalDevice, surface vk.Surface) swapchainSupport {
	var s swapchainSupport
	vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &s.caps)
	s.caps.Deref()
	s.caps.MaxImageExtent.Deref()
	s.caps.MinImageExtent.Deref()
	s.caps.CurrentExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, nil)
	if formatCount > 0 {
		s.formats = make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, s.formats)
		for i := range s.formats {
			s.formats[i].Deref()
		}
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &modeCount, nil)
	if modeCount > 0 {
		s.presentModes = make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &modeCount, s.presentModes)
	}
	return s
}

const preferredSwapFormat = vk.FormatB8g8r8a8Unorm
const preferredSwapColorSpace = vk.ColorSpaceSrgbNonlinear

// scoreSwapchainSupport implements the swapchain half of §4.3.2: reject on
// no formats/no present modes, otherwise accumulate the format/present-mode
// bonuses and the device's max image extent. The "credit the bonus, then
// break" resolution from §4.3.2/§9 is applied explicitly: the matching
// bonus is always added before the scoring loop moves on, never skipped by
// an early break.
func (dc *DeviceContext) scoreSwapchainSupport(gpu vk.PhysicalDevice) (int, bool) {
	support := querySwapchainSupport(gpu, dc.surface)
	if len(support.formats) == 0 || len(support.presentModes) == 0 {
		return 0, false
	}

	score := 0
	if len(support.formats) == 1 && support.formats[0].Format == vk.FormatUndefined {
		score += 200 // driver reports "no preferred format"; we choose BGRA8-UNORM / sRGB-nonlinear.
	} else {
		for _, f := range support.formats {
			if f.Format == preferredSwapFormat && f.ColorSpace == preferredSwapColorSpace {
				score += 100
				break
			}
		}
	}

	haveMailbox, haveImmediate := false, false
	for _, m := range support.presentModes {
		if m == vk.PresentModeMailbox {
			haveMailbox = true
		}
		if m == vk.PresentModeImmediate {
			haveImmediate = true
		}
	}
	switch {
	case haveMailbox:
		score += 500
	case haveImmediate:
		score += 300
	}
	// else: falls back to FIFO, which every driver supports, for +0.

	score += int(support.caps.MaxImageExtent.Width) + int(support.caps.MaxImageExtent.Height)
	return score, true
}

// findQueueFamilies implements the "queue families complete" requirement
// of §4.3.2 and the dedup rule of §4.3.3: graphics, present, compute and
// transfer must each resolve to some family index; the transfer index may
// coincide with another.
func (dc *DeviceContext) findQueueFamilies(gpu vk.PhysicalDevice) (queueFamilies, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)

	var families queueFamilies
	var haveGraphics, havePresent, haveCompute, haveTransfer bool

	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		flags := props[i].QueueFlags

		if !haveGraphics && flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			families.graphics = i
			haveGraphics = true
		}
		if !haveCompute && flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			families.compute = i
			haveCompute = true
		}
		if !haveTransfer && flags&vk.QueueFlags(vk.QueueTransferBit) != 0 {
			families.transfer = i
			haveTransfer = true
		}
		if !havePresent {
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, i, dc.surface, &supportsPresent)
			if supportsPresent.B() {
				families.present = i
				havePresent = true
			}
		}
	}

	if !haveGraphics || !havePresent || !haveCompute || !haveTransfer {
		return families, false
	}
	return families, true
}

func (dc *DeviceContext) createLogicalDevice() error {
	var infos []vk.DeviceQueueCreateInfo
	priorities := []float32{1.0}
	for _, idx := range dc.families.uniqueCreateIndices() {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: priorities,
		})
	}

	features := vk.PhysicalDeviceFeatures{
		ImageCubeArray: vk.True,
	}
	if dc.anisotropy {
		features.SamplerAnisotropy = vk.True
	}

	extensions := []string{"VK_KHR_swapchain"}
	if dc.validation.DebugMarkers {
		available, err := deviceExtensionNames(dc.gpu)
		if err != nil {
			return err
		}
		if hasAllLayers(available, []string{"VK_EXT_debug_marker"}) {
			extensions = append(extensions, "VK_EXT_debug_marker")
		} else {
			dc.validation.DebugMarkers = false
		}
	}

	var device vk.Device
	ret := vk.CreateDevice(dc.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(infos)),
		PQueueCreateInfos:       infos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}, nil, &device)
	if err := wrapResult(ret, "vkCreateDevice"); err != nil {
		return err
	}
	dc.device = device

	var q vk.Queue
	vk.GetDeviceQueue(device, dc.families.graphics, 0, &q)
	dc.graphicsQueue = q
	if dc.families.present == dc.families.graphics {
		dc.presentQueue = q
	} else {
		var pq vk.Queue
		vk.GetDeviceQueue(device, dc.families.present, 0, &pq)
		dc.presentQueue = pq
	}
	if dc.families.compute == dc.families.graphics {
		dc.computeQueue = q
	} else {
		var cq vk.Queue
		vk.GetDeviceQueue(device, dc.families.compute, 0, &cq)
		dc.computeQueue = cq
	}
	// §9 Open Questions: the transfer queue is not given a dedicated
	// handle; uploads submit on the graphics queue (see staging.go).
	dc.transferQueue = dc.graphicsQueue
	return nil
}

func (dc *DeviceContext) createGeneralResources() error {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dc.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dc.families.graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := wrapResult(ret, "vkCreateCommandPool"); err != nil {
		return err
	}
	dc.generalPool = pool

	for i := range dc.fences {
		var fence vk.Fence
		ret := vk.CreateFence(dc.device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fence)
		if err := wrapResult(ret, "vkCreateFence"); err != nil {
			return err
		}
		dc.fences[i] = fence
	}
	return nil
}

func (dc *DeviceContext) resolveDebugMarkerEntryPoint() {
	// vulkan-go resolves extension entry points lazily through the loader;
	// the set-object-name call itself is invoked directly by name at each
	// create site (texture.go/buffer.go) guarded on validation.DebugMarkers.
}

func (dc *DeviceContext) destroy() {
	if dc.device != vk.Device(vk.NullHandle) {
		vk.DeviceWaitIdle(dc.device)
	}
	for _, f := range dc.fences {
		if f != vk.Fence(vk.NullHandle) {
			vk.DestroyFence(dc.device, f, nil)
		}
	}
	if dc.generalPool != vk.CommandPool(vk.NullHandle) {
		vk.DestroyCommandPool(dc.device, dc.generalPool, nil)
	}
	if dc.surface != vk.NullSurface {
		vk.DestroySurface(dc.instance, dc.surface, nil)
	}
	if dc.device != vk.Device(vk.NullHandle) {
		vk.DestroyDevice(dc.device, nil)
	}
	if dc.debugReport != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(dc.instance, dc.debugReport, nil)
	}
	if dc.instance != vk.Instance(vk.NullHandle) {
		vk.DestroyInstance(dc.instance, nil)
	}
}

func safeCString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func availableInstanceLayers() ([]string, error) {
	var count uint32
	if err := wrapResult(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	if err := wrapResult(vk.EnumerateInstanceLayerProperties(&count, list), "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range list {
		list[i].Deref()
		names = append(names, vk.ToString(list[i].LayerName[:]))
	}
	return names, nil
}

func deviceExtensionNames(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := wrapResult(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := wrapResult(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range list {
		list[i].Deref()
		names = append(names, vk.ToString(list[i].ExtensionName[:]))
	}
	return names, nil
}

// hasAllLayers reports whether every entry in wanted is present in
// available, using explicit string equality -- the §9 resolution of
// the strcmp-as-boolean bug, written the unambiguous way.
func hasAllLayers(available, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, a := range available {
			if a == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
