// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import "fmt"

// allocationKind classifies a chunk for buffer/image granularity
// conflict detection. Linear covers buffers and linearly laid-out
// images; NonLinear covers optimally tiled images. The two may not abut
// within one granularity page. Free chunks never conflict with anything.
type allocationKind int

const (
	allocationKindFree allocationKind = iota
	allocationKindLinear
	allocationKindNonLinear
)

func (k allocationKind) String() string {
	switch k {
	case allocationKindFree:
		return "Free"
	case allocationKindLinear:
		return "Linear"
	case allocationKindNonLinear:
		return "NonLinear"
	default:
		return "Unknown"
	}
}

// MemoryLocation describes how an allocation will be accessed, and drives
// the Allocator's memory-type selection.
type MemoryLocation int

const (
	// MemoryLocationUnknown lets the driver decide; no required flags.
	MemoryLocationUnknown MemoryLocation = iota

	// MemoryLocationGpu prefers device-local memory. GPU-only access.
	MemoryLocationGpu

	// MemoryLocationCpuToGpu is used for uploading data to the GPU.
	// Prefers host-visible, host-coherent, device-local memory.
	MemoryLocationCpuToGpu

	// MemoryLocationGpuToCpu is used for reading data back from the GPU.
	// Prefers host-visible, host-coherent, host-cached memory.
	MemoryLocationGpuToCpu
)

func (l MemoryLocation) String() string {
	switch l {
	case MemoryLocationGpu:
		return "Gpu"
	case MemoryLocationCpuToGpu:
		return "CpuToGpu"
	case MemoryLocationGpuToCpu:
		return "GpuToCpu"
	default:
		return "Unknown"
	}
}

// dedicationKind distinguishes the three AllocationScheme variants.
type dedicationKind int

const (
	schemeGpuAllocatorManaged dedicationKind = iota
	schemeDedicatedBuffer
	schemeDedicatedImage
)

// AllocationScheme selects whether an allocation is managed by the
// allocator's own pooling logic, or is dedicated to a single driver
// resource. Vulkan's VK_KHR_dedicated_allocation lets the driver optimize
// a memory object it knows backs exactly one buffer or image.
//
// Construct with GpuAllocatorManagedScheme, DedicatedBufferScheme, or
// DedicatedImageScheme; the zero value is GpuAllocatorManagedScheme.
type AllocationScheme struct {
	kind   dedicationKind
	buffer Buffer
	image  Image
}

// GpuAllocatorManagedScheme requests ordinary pooled or dedicated
// allocation at the allocator's discretion (based on size).
func GpuAllocatorManagedScheme() AllocationScheme {
	return AllocationScheme{kind: schemeGpuAllocatorManaged}
}

// DedicatedBufferScheme requests a driver-dedicated allocation for buffer.
func DedicatedBufferScheme(buffer Buffer) AllocationScheme {
	return AllocationScheme{kind: schemeDedicatedBuffer, buffer: buffer}
}

// DedicatedImageScheme requests a driver-dedicated allocation for image.
func DedicatedImageScheme(image Image) AllocationScheme {
	return AllocationScheme{kind: schemeDedicatedImage, image: image}
}

// isDriverDedicated reports whether this scheme is anything other than
// GpuAllocatorManaged — i.e. the driver itself asked for a dedicated
// memory object, as opposed to the allocator choosing one because the
// request didn't fit in a pool block.
func (s AllocationScheme) isDriverDedicated() bool {
	return s.kind != schemeGpuAllocatorManaged
}

// AllocationSizes configures the size of pool blocks the allocator
// requests from the device. Defaults: 256 MiB for
// device-local memory, 64 MiB for host-visible memory — device-local
// heaps are usually much larger and justify bigger blocks, while
// host-visible allocations tend to be smaller and more numerous.
type AllocationSizes struct {
	DeviceMemoryBlockSize uint64
	HostMemoryBlockSize   uint64
}

// DefaultAllocationSizes returns the allocator's default block sizes.
func DefaultAllocationSizes() AllocationSizes {
	return AllocationSizes{
		DeviceMemoryBlockSize: 256 << 20,
		HostMemoryBlockSize:   64 << 20,
	}
}

func (s AllocationSizes) validate() error {
	if !isPowerOfTwo(s.DeviceMemoryBlockSize) {
		return fmt.Errorf("%w: DeviceMemoryBlockSize %d is not a power of two", ErrInvalidArgument, s.DeviceMemoryBlockSize)
	}
	if !isPowerOfTwo(s.HostMemoryBlockSize) {
		return fmt.Errorf("%w: HostMemoryBlockSize %d is not a power of two", ErrInvalidArgument, s.HostMemoryBlockSize)
	}
	return nil
}

// DebugSettings controls optional diagnostics. All fields default to
// false — gpualloc is silent by default, matching SetLogger's default
// no-op handler. Grounded on the original gpu_memory_manager crate's
// debug_settings struct, which this spec's distillation omitted.
type DebugSettings struct {
	// LogMemoryInformation is stored by New but not read: the chosen
	// memory type and block of an allocation are not logged.
	LogMemoryInformation bool

	// LogLeaksOnShutdown logs every non-free chunk and occupied dedicated
	// block found by Allocator.Destroy, at slog.LevelWarn. This is the
	// leak-detection behavior; it is opt-in here rather than
	// unconditional, left unconditional by the underlying mechanism this is modeled on.
	LogLeaksOnShutdown bool

	// StoreStackTraces captures the call stack of every allocation placed
	// in a general (free-list) block, so leak reports can show where a
	// leaked allocation originated. Frees capture nothing, and
	// allocations in dedicated blocks carry no stack.
	StoreStackTraces bool

	// LogAllocations is stored by New but not read: allocate calls are
	// not logged.
	LogAllocations bool

	// LogFrees is stored by New but not read: free calls are not logged.
	LogFrees bool

	// LogStackTraces is stored by New but not read; captured stacks
	// appear only in leak reports.
	LogStackTraces bool
}
