// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

// memoryBlock owns one whole device memory object and delegates
// sub-allocation within it to either a freeListAllocator (general pooled
// allocations) or a dedicatedAllocator (driver-dedicated or
// personal-size allocations). It is created and destroyed by the owning
// memoryTypePool, never directly by callers.
type memoryBlock struct {
	deviceMemory DeviceMemory
	mappedPtr    uintptr
	mapped       bool
	sub          subAllocator
}

// newMemoryBlock requests size bytes of memoryTypeIndex from device and
// wraps the result in a memoryBlock backed by the sub-allocator strategy
// dictated by scheme/personal: a dedicated allocation or a
// block sized beyond the pool's general block size gets a
// dedicatedAllocator; everything else gets a freeListAllocator.
func newMemoryBlock(device Device, size uint64, memoryTypeIndex int, mappable bool, deviceAddress bool, scheme AllocationScheme, personal bool) (*memoryBlock, error) {
	mem, err := device.AllocateMemory(DeviceAllocationRequest{
		Size:            size,
		MemoryTypeIndex: uint32(memoryTypeIndex),
		DeviceAddress:   deviceAddress,
		Scheme:          scheme,
	})
	if err != nil {
		return nil, ErrDeviceAllocationFailure
	}

	b := &memoryBlock{deviceMemory: mem}

	if mappable {
		ptr, err := device.MapMemory(mem, size)
		if err != nil {
			device.FreeMemory(mem)
			return nil, ErrDeviceAllocationFailure
		}
		b.mappedPtr = ptr
		b.mapped = true
	}

	if scheme.isDriverDedicated() || personal {
		b.sub = newDedicatedAllocator(size)
	} else {
		b.sub = newFreeListAllocator(size)
	}

	return b, nil
}

// mappedPointerAt returns the host pointer for offset bytes into the
// block's mapping, or 0 if the block was not mapped.
func (b *memoryBlock) mappedPointerAt(offset uint64) uintptr {
	if !b.mapped {
		return 0
	}
	return b.mappedPtr + uintptr(offset)
}

func (b *memoryBlock) destroy(device Device) {
	if b.mapped {
		device.UnmapMemory(b.deviceMemory)
	}
	device.FreeMemory(b.deviceMemory)
}
