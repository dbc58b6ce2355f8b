// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import "fmt"

// Allocation is the handle returned by Allocator.Allocate. It carries
// everything a caller needs to bind the allocation to a resource and,
// if mapped, read or write it directly, plus everything the Allocator
// needs to free it again. The zero value is a "null" allocation, which
// Allocator.Free accepts as a no-op; IsNull reports this.
type Allocation struct {
	chunkID        uint64
	offset         uint64
	size           uint64
	memoryBlockIdx int
	memoryTypeIdx  int
	deviceMemory   DeviceMemory
	mappedPtr      uintptr
	propertyFlags  MemoryPropertyFlags
	isDedicated    bool
}

// IsNull reports whether this is the zero Allocation, as returned by
// Allocate alongside an error.
func (a Allocation) IsNull() bool { return a.chunkID == 0 }

// DeviceMemory returns the native device memory object this allocation
// lives in. Do not free or unmap it directly; use Allocator.Free.
func (a Allocation) DeviceMemory() DeviceMemory { return a.deviceMemory }

// Offset returns the allocation's byte offset within its DeviceMemory.
func (a Allocation) Offset() uint64 { return a.offset }

// Size returns the allocation's size in bytes.
func (a Allocation) Size() uint64 { return a.size }

// IsDedicated reports whether this allocation was requested with a
// driver-dedicated scheme (DedicatedBufferScheme or DedicatedImageScheme).
// An allocation that got its own DeviceMemory object only because its
// size exceeded the pool's general block size reports false.
func (a Allocation) IsDedicated() bool { return a.isDedicated }

// MemoryPropertyFlags returns the property flags of the memory type
// this allocation was placed in.
func (a Allocation) MemoryPropertyFlags() MemoryPropertyFlags { return a.propertyFlags }

// MappedPtr returns the host-visible base address of this allocation,
// or 0 if its memory type is not host-visible.
func (a Allocation) MappedPtr() uintptr { return a.mappedPtr }

// AllocationCreateInfo describes one request to Allocator.Allocate.
type AllocationCreateInfo struct {
	// Name is attached to the allocation for leak reporting; purely
	// diagnostic.
	Name string

	// Size and Alignment are the resource's memory requirements, as
	// reported by the driver for the buffer or image being backed.
	// Alignment must be a power of two; Size must be greater than 0.
	Size      uint64
	Alignment uint64

	// Location hints how the allocation will be accessed, driving
	// memory-type selection.
	Location MemoryLocation

	// MemoryTypeBits is the bitmask of memory type indices the bound
	// resource supports, as reported by the driver alongside Size and
	// Alignment. Bit i set means memory type i is admissible. A zero
	// value admits every memory type.
	MemoryTypeBits uint32

	// Linear is true for buffers and linearly tiled images, false for
	// optimally tiled images. Used for buffer/image granularity
	// conflict detection between neighboring sub-allocations.
	Linear bool

	// Scheme selects pooled vs. driver-dedicated placement. The zero
	// value is GpuAllocatorManagedScheme().
	Scheme AllocationScheme
}

func (info AllocationCreateInfo) kind() allocationKind {
	if info.Linear {
		return allocationKindLinear
	}
	return allocationKindNonLinear
}

// AllocatorDescriptor configures a new Allocator. New queries Device
// once for its memory types, memory heaps and buffer/image granularity.
type AllocatorDescriptor struct {
	Device Device

	// DeviceAddress requests device-address-capable allocations
	// (VK_KHR_buffer_device_address) on every block this allocator
	// creates.
	DeviceAddress bool

	// AllocationSizes controls general pool block sizes. The zero
	// value is invalid; use DefaultAllocationSizes().
	AllocationSizes AllocationSizes

	// Debug controls optional logging and leak diagnostics. The zero
	// value disables all of it.
	Debug DebugSettings
}

func (d AllocatorDescriptor) validate() error {
	if d.Device == nil {
		return fmt.Errorf("%w: Device is nil", ErrInvalidArgument)
	}
	if err := d.AllocationSizes.validate(); err != nil {
		return err
	}
	return nil
}

// Allocator is a host-side sub-allocator over one Device's memory
// types, grouping individual resource allocations into a small number
// of large device memory blocks. An Allocator holds no
// internal lock: callers that use one Allocator from multiple
// goroutines must synchronize their own calls to Allocate, Free,
// ReportMemoryLeaks, and Destroy.
type Allocator struct {
	device        Device
	granularity   uint64
	heaps         []MemoryHeap
	pools         []*memoryTypePool
	deviceAddress bool
	sizes         AllocationSizes
	debug         DebugSettings
}

// New constructs an Allocator over desc.Device, querying its memory
// topology and buffer/image granularity once.
func New(desc AllocatorDescriptor) (*Allocator, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}

	props := desc.Device.MemoryProperties()

	pools := make([]*memoryTypePool, len(props.MemoryTypes))
	for i, memType := range props.MemoryTypes {
		pools[i] = newMemoryTypePool(i, memType)
	}

	return &Allocator{
		device:        desc.Device,
		granularity:   desc.Device.BufferImageGranularity(),
		heaps:         props.MemoryHeaps,
		pools:         pools,
		deviceAddress: desc.DeviceAddress,
		sizes:         desc.AllocationSizes,
		debug:         desc.Debug,
	}, nil
}

// Allocate places info in the lowest-index memory type admitted by
// MemoryTypeBits whose flags include the preferred flags for its
// Location, or, if no type has them, the relaxed required flags. For
// MemoryLocationCpuToGpu only, if allocating from that type fails, it
// retries once in the lowest-index host-visible, host-coherent type.
// It returns a handle describing where the allocation landed.
func (a *Allocator) Allocate(info AllocationCreateInfo) (Allocation, error) {
	if info.Size == 0 || !isPowerOfTwo(info.Alignment) {
		return Allocation{}, fmt.Errorf("%w: size must be > 0 and alignment must be a power of two", ErrInvalidArgument)
	}

	typeBits := info.MemoryTypeBits
	if typeBits == 0 {
		typeBits = ^uint32(0)
	}

	preferred := preferredPropertyFlags(info.Location)
	typeIndex, ok := a.findMemoryTypeIndex(typeBits, preferred)
	if !ok {
		required := requiredPropertyFlags(info.Location)
		typeIndex, ok = a.findMemoryTypeIndex(typeBits, required)
		if !ok {
			return Allocation{}, ErrNoCompatibleMemoryType
		}
	}

	alloc, err := a.allocateFromType(typeIndex, info)

	if info.Location == MemoryLocationCpuToGpu && err != nil {
		fallbackIndex, ok := a.findMemoryTypeIndex(typeBits, MemoryPropertyHostVisible|MemoryPropertyHostCoherent)
		if !ok {
			return Allocation{}, ErrNoCompatibleMemoryType
		}
		return a.allocateFromType(fallbackIndex, info)
	}

	return alloc, err
}

func (a *Allocator) allocateFromType(typeIndex int, info AllocationCreateInfo) (Allocation, error) {
	pool := a.pools[typeIndex]

	if int(pool.heapIndex) >= len(a.heaps) || info.Size > a.heaps[pool.heapIndex].Size {
		return Allocation{}, ErrNoCompatibleMemoryType
	}

	blockSize := a.sizes.DeviceMemoryBlockSize
	if pool.mappable {
		blockSize = a.sizes.HostMemoryBlockSize
	}

	req := subAllocationRequest{
		size:          info.Size,
		alignment:     info.Alignment,
		kind:          info.kind(),
		name:          info.Name,
		scheme:        info.Scheme,
		deviceAddress: a.deviceAddress,
	}

	alloc, err := pool.allocate(a.device, req, a.granularity, blockSize, a.debug.StoreStackTraces)
	if err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}

// Free releases alloc. Freeing the zero Allocation is a no-op.
func (a *Allocator) Free(alloc Allocation) error {
	if alloc.IsNull() {
		return nil
	}
	if alloc.memoryTypeIdx < 0 || alloc.memoryTypeIdx >= len(a.pools) {
		return ErrCorruptedFreeID
	}
	return a.pools[alloc.memoryTypeIdx].free(a.device, alloc)
}

// ReportMemoryLeaks logs every chunk still live across every pool,
// tagged with its memory type and block indices.
func (a *Allocator) ReportMemoryLeaks() {
	for _, pool := range a.pools {
		pool.reportLeaks()
	}
}

// Destroy frees every device memory block this Allocator still owns.
// If Debug.LogLeaksOnShutdown is set, it calls ReportMemoryLeaks first.
// The Allocator must not be used after Destroy returns.
func (a *Allocator) Destroy() {
	if a.debug.LogLeaksOnShutdown {
		a.ReportMemoryLeaks()
	}
	for _, pool := range a.pools {
		pool.destroyAll(a.device)
	}
}

// findMemoryTypeIndex returns the lowest-index memory type admitted by
// typeBits (bit i set means index i is admissible) whose property flags
// are a superset of required.
func (a *Allocator) findMemoryTypeIndex(typeBits uint32, required MemoryPropertyFlags) (int, bool) {
	for i, pool := range a.pools {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if pool.propertyFlags.Has(required) {
			return i, true
		}
	}
	return 0, false
}

func preferredPropertyFlags(loc MemoryLocation) MemoryPropertyFlags {
	switch loc {
	case MemoryLocationGpu:
		return MemoryPropertyDeviceLocal
	case MemoryLocationCpuToGpu:
		return MemoryPropertyHostVisible | MemoryPropertyHostCoherent | MemoryPropertyDeviceLocal
	case MemoryLocationGpuToCpu:
		return MemoryPropertyHostVisible | MemoryPropertyHostCoherent | MemoryPropertyHostCached
	default:
		return 0
	}
}

func requiredPropertyFlags(loc MemoryLocation) MemoryPropertyFlags {
	switch loc {
	case MemoryLocationGpu:
		return MemoryPropertyDeviceLocal
	case MemoryLocationCpuToGpu, MemoryLocationGpuToCpu:
		return MemoryPropertyHostVisible | MemoryPropertyHostCoherent
	default:
		return 0
	}
}
