// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package testdevice implements gpualloc.Device over host memory, for
// tests and examples that want to exercise the allocator without a
// real Vulkan device. Host-visible memory types are backed by real
// anonymous mappings (via golang.org/x/sys/unix on unix platforms) so
// that MappedPtr on an Allocation is a genuine page-backed address,
// not a fabricated one.
package testdevice

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gpualloc"
)

// ErrUnknownMemory is returned by MapMemory when passed a handle this
// Device did not allocate. FreeMemory and UnmapMemory ignore such handles.
var ErrUnknownMemory = errors.New("testdevice: unknown device memory handle")

// Config describes the fake memory topology a Device presents. A
// realistic discrete-GPU shape is used if Config is the zero value:
// one device-local heap, one host-visible/coherent heap.
type Config struct {
	MemoryTypes             []gpualloc.MemoryType
	MemoryHeaps             []gpualloc.MemoryHeap
	BufferImageGranularity  uint64
}

// DefaultConfig returns a two-heap, two-memory-type topology typical
// of a discrete GPU with resizable BAR disabled: 4 GiB device-local,
// 256 MiB host-visible/coherent.
func DefaultConfig() Config {
	return Config{
		MemoryTypes: []gpualloc.MemoryType{
			{PropertyFlags: gpualloc.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: gpualloc.MemoryPropertyHostVisible | gpualloc.MemoryPropertyHostCoherent, HeapIndex: 1},
		},
		MemoryHeaps: []gpualloc.MemoryHeap{
			{Size: 4 << 30, Flags: gpualloc.MemoryHeapDeviceLocal},
			{Size: 256 << 20},
		},
		BufferImageGranularity: 256,
	}
}

type allocation struct {
	size    uint64
	backing []byte // nil for non-host-visible memory
}

// Device is a gpualloc.Device backed by host memory. Safe for
// concurrent use even though gpualloc.Allocator itself is not, since a
// Device may be shared in ways an Allocator never is (e.g. across
// tests running in parallel against independent allocators).
type Device struct {
	mu     sync.Mutex
	config Config
	next   gpualloc.DeviceMemory
	live   map[gpualloc.DeviceMemory]*allocation
}

// New creates a Device presenting the given topology.
func New(config Config) *Device {
	if config.MemoryTypes == nil && config.MemoryHeaps == nil && config.BufferImageGranularity == 0 {
		config = DefaultConfig()
	}
	return &Device{
		config: config,
		next:   1,
		live:   make(map[gpualloc.DeviceMemory]*allocation),
	}
}

func (d *Device) MemoryProperties() gpualloc.DeviceMemoryProperties {
	return gpualloc.DeviceMemoryProperties{
		MemoryTypes: append([]gpualloc.MemoryType(nil), d.config.MemoryTypes...),
		MemoryHeaps: append([]gpualloc.MemoryHeap(nil), d.config.MemoryHeaps...),
	}
}

func (d *Device) BufferImageGranularity() uint64 { return d.config.BufferImageGranularity }

func (d *Device) AllocateMemory(req gpualloc.DeviceAllocationRequest) (gpualloc.DeviceMemory, error) {
	if int(req.MemoryTypeIndex) >= len(d.config.MemoryTypes) {
		return 0, fmt.Errorf("testdevice: memory type index %d out of range", req.MemoryTypeIndex)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	mem := d.next
	d.next++
	d.live[mem] = &allocation{size: req.Size}
	return mem, nil
}

func (d *Device) FreeMemory(mem gpualloc.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()

	alloc, ok := d.live[mem]
	if !ok {
		return
	}
	if alloc.backing != nil {
		_ = unmapAnon(alloc.backing)
	}
	delete(d.live, mem)
}

func (d *Device) MapMemory(mem gpualloc.DeviceMemory, size uint64) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	alloc, ok := d.live[mem]
	if !ok {
		return 0, ErrUnknownMemory
	}
	if alloc.backing == nil {
		backing, err := mapAnon(size)
		if err != nil {
			return 0, fmt.Errorf("testdevice: mapping memory: %w", err)
		}
		alloc.backing = backing
	}
	return uintptr(unsafe.Pointer(&alloc.backing[0])), nil
}

func (d *Device) UnmapMemory(mem gpualloc.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()

	alloc, ok := d.live[mem]
	if !ok || alloc.backing == nil {
		return
	}
	_ = unmapAnon(alloc.backing)
	alloc.backing = nil
}
