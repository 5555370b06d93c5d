package gfxcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAllLayers(t *testing.T) {
	available := []string{"VK_LAYER_KHRONOS_validation", "VK_LAYER_LUNARG_monitor"}

	assert.True(t, hasAllLayers(available, []string{"VK_LAYER_KHRONOS_validation"}))
	assert.True(t, hasAllLayers(available, nil))
	assert.False(t, hasAllLayers(available, []string{"VK_LAYER_KHRONOS_validation", "VK_LAYER_MISSING"}))
	assert.False(t, hasAllLayers(nil, []string{"VK_LAYER_KHRONOS_validation"}))
}

func TestHasAllLayersIsExactMatchNotSubstring(t *testing.T) {
	available := []string{"VK_LAYER_KHRONOS_validation_experimental"}
	// The original's strcmp-as-boolean bug would treat this as present; the
	// resolution here requires an exact match.
	assert.False(t, hasAllLayers(available, []string{"VK_LAYER_KHRONOS_validation"}))
}

func TestUniqueCreateIndicesDedupes(t *testing.T) {
	q := queueFamilies{graphics: 0, present: 0, compute: 1, transfer: 0}
	got := q.uniqueCreateIndices()
	assert.ElementsMatch(t, []uint32{0, 1}, got)
}

func TestUniqueCreateIndicesAllDistinct(t *testing.T) {
	q := queueFamilies{graphics: 0, present: 1, compute: 2, transfer: 0}
	got := q.uniqueCreateIndices()
	assert.ElementsMatch(t, []uint32{0, 1, 2}, got)
}

func TestCoreErrorIsMatchesOnKindAlone(t *testing.T) {
	a := &CoreError{Kind: KindSwapchainStale, msg: "first"}
	b := &CoreError{Kind: KindSwapchainStale, msg: "second"}
	c := &CoreError{Kind: KindDriverFailure, msg: "first"}

	assert.True(t, a.Is(b), "same Kind, different message, should still match")
	assert.False(t, a.Is(c), "different Kind must not match")
}
