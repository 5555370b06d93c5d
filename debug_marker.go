package gfxcore

import vk "github.com/vulkan-go/vulkan"

// setDebugObjectName attaches a human-readable name to a Vulkan object via
// VK_EXT_debug_marker, mirroring the original's vkDebugMarkerSetObjectName
// calls at texture/buffer creation time (§4.4/§4.5). Callers only reach
// this when validation.DebugMarkers is set, so no extension-presence check
// is needed here.
func setDebugObjectName(dc *DeviceContext, objectType vk.DebugReportObjectType, object uint64, name string) {
	vk.DebugMarkerSetObjectName(dc.device, &vk.DebugMarkerObjectNameInfo{
		SType:      vk.StructureTypeDebugMarkerObjectNameInfo,
		ObjectType: objectType,
		Object:     object,
		PObjectName: safeCString(name),
	})
}
