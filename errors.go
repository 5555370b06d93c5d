package gfxcore

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies a core error the way the failure-semantics model expects:
// most kinds are fatal and are routed to a FatalSink at the public boundary,
// ErrSwapchainStale is the one recoverable condition, and Validation is
// logged only.
type Kind int

const (
	// KindUnsupported means no device satisfies the minimum feature/queue/extension set.
	KindUnsupported Kind = iota
	// KindDriverFailure means a device call returned a non-Success vk.Result where success was expected.
	KindDriverFailure
	// KindExhausted means a fixed-capacity handle pool has no free slots left.
	KindExhausted
	// KindSwapchainStale is recoverable: the caller should trigger swapchain recreation.
	KindSwapchainStale
	// KindValidation is diagnostic only and never fatal.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindDriverFailure:
		return "driver failure"
	case KindExhausted:
		return "exhausted"
	case KindSwapchainStale:
		return "swapchain stale"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// CoreError is the error type this package returns internally; Kind lets the
// Backend boundary decide whether to route it to FatalSink or return it.
type CoreError struct {
	Kind Kind
	msg  string
}

func (e *CoreError) Error() string {
	return e.Kind.String() + ": " + e.msg
}

// Is lets errors.Is(err, ErrSwapchainStale) match on Kind alone, since the
// sentinel's message text isn't meaningful to compare.
func (e *CoreError) Is(target error) bool {
	other, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newCoreError(kind Kind, msg string) error {
	return errors.WithStack(&CoreError{Kind: kind, msg: msg})
}

// ErrSwapchainStale is returned by DrawFrame when acquire or present found
// the swapchain out of date; DrawFrame has already triggered its
// recreation by then. Compare with errors.Is.
var ErrSwapchainStale error = &CoreError{Kind: KindSwapchainStale, msg: "swapchain out of date"}

// isError reports whether ret is any result other than vk.Success.
func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// wrapResult converts a failing vk.Result from the named call into a
// stack-annotated DriverFailure, or nil if the call succeeded.
func wrapResult(ret vk.Result, call string) error {
	if !isError(ret) {
		return nil
	}
	return newCoreError(KindDriverFailure, fmt.Sprintf("%s: vulkan result %d", call, ret))
}
