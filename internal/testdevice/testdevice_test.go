// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package testdevice

import (
	"testing"
	"unsafe"

	"github.com/gogpu/gpualloc"
)

func TestDeviceMemoryProperties(t *testing.T) {
	d := New(DefaultConfig())
	props := d.MemoryProperties()
	if len(props.MemoryTypes) != 2 {
		t.Fatalf("len(MemoryTypes) = %d, want 2", len(props.MemoryTypes))
	}
	if len(props.MemoryHeaps) != 2 {
		t.Fatalf("len(MemoryHeaps) = %d, want 2", len(props.MemoryHeaps))
	}
}

func TestDeviceAllocateAndFree(t *testing.T) {
	d := New(DefaultConfig())
	mem, err := d.AllocateMemory(gpualloc.DeviceAllocationRequest{Size: 4096, MemoryTypeIndex: 0})
	if err != nil {
		t.Fatalf("AllocateMemory: %v", err)
	}
	if mem == 0 {
		t.Fatal("expected non-zero device memory handle")
	}
	d.FreeMemory(mem)
}

func TestDeviceMapMemoryIsWritable(t *testing.T) {
	d := New(DefaultConfig())
	mem, err := d.AllocateMemory(gpualloc.DeviceAllocationRequest{Size: 4096, MemoryTypeIndex: 1})
	if err != nil {
		t.Fatalf("AllocateMemory: %v", err)
	}
	defer d.FreeMemory(mem)

	ptr, err := d.MapMemory(mem, 4096)
	if err != nil {
		t.Fatalf("MapMemory: %v", err)
	}
	if ptr == 0 {
		t.Fatal("expected non-zero mapped pointer")
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), 4096)
	buf[0] = 0xAB
	if buf[0] != 0xAB {
		t.Fatal("expected write to mapped memory to be visible")
	}

	d.UnmapMemory(mem)
}

func TestDeviceMapMemoryUnknownHandle(t *testing.T) {
	d := New(DefaultConfig())
	if _, err := d.MapMemory(999, 4096); err == nil {
		t.Fatal("expected error mapping an unknown handle")
	}
}
