package gpu

import "strings"

// Access is a bitmask describing how a pass touches a resource. The render graph compares
// consecutive accesses to decide where barriers are needed.
type Access uint32

const (
	AccessNone Access = 0

	AccessTransferRead Access = 1 << iota
	AccessTransferWrite
	AccessComputeRead
	AccessComputeWrite
	AccessComputeSampled
	AccessVertexRead
	AccessIndexRead
	AccessIndirectRead
	AccessFragmentRead
	AccessFragmentWrite
	AccessFragmentSampled
	AccessColorRead
	AccessColorWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessPresent
)

// Composite accesses.
const (
	AccessComputeRW      = AccessComputeRead | AccessComputeWrite
	AccessFragmentRW     = AccessFragmentRead | AccessFragmentWrite
	AccessColorRW        = AccessColorRead | AccessColorWrite
	AccessDepthStencilRW = AccessDepthStencilRead | AccessDepthStencilWrite
)

const writeMask = AccessTransferWrite | AccessComputeWrite | AccessFragmentWrite | AccessColorWrite | AccessDepthStencilWrite

// IsWrite reports whether the access contains any write.
func (a Access) IsWrite() bool {
	return a&writeMask != 0
}

// IsColorAttachment reports whether the access binds the image as a color attachment.
func (a Access) IsColorAttachment() bool {
	return a&(AccessColorRead|AccessColorWrite) != 0
}

// IsDepthAttachment reports whether the access binds the image as a depth attachment.
func (a Access) IsDepthAttachment() bool {
	return a&(AccessDepthStencilRead|AccessDepthStencilWrite) != 0
}

var accessNames = []struct {
	a    Access
	name string
}{
	{AccessTransferRead, "transfer-read"},
	{AccessTransferWrite, "transfer-write"},
	{AccessComputeRead, "compute-read"},
	{AccessComputeWrite, "compute-write"},
	{AccessComputeSampled, "compute-sampled"},
	{AccessVertexRead, "vertex-read"},
	{AccessIndexRead, "index-read"},
	{AccessIndirectRead, "indirect-read"},
	{AccessFragmentRead, "fragment-read"},
	{AccessFragmentWrite, "fragment-write"},
	{AccessFragmentSampled, "fragment-sampled"},
	{AccessColorRead, "color-read"},
	{AccessColorWrite, "color-write"},
	{AccessDepthStencilRead, "depth-read"},
	{AccessDepthStencilWrite, "depth-write"},
	{AccessPresent, "present"},
}

func (a Access) String() string {
	if a == AccessNone {
		return "none"
	}
	var parts []string
	for _, n := range accessNames {
		if a&n.a != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Barrier is an access transition on one resource between two passes.
type Barrier struct {
	Buffer *Buffer
	Image  *Image
	Src    Access
	Dst    Access
}

// NeedsBarrier reports whether moving from src to dst requires synchronization.
// Read-after-read of the same kind is the only transition that does not.
func NeedsBarrier(src, dst Access) bool {
	if src == AccessNone {
		return dst.IsWrite() || dst.IsColorAttachment() || dst.IsDepthAttachment()
	}
	if src.IsWrite() || dst.IsWrite() {
		return true
	}
	return src != dst
}
