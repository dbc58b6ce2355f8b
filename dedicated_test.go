// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import "testing"

func TestDedicatedAllocatorAllocate(t *testing.T) {
	d := newDedicatedAllocator(4096)

	offset, chunkID, err := d.allocate(4096, 256, allocationKindLinear, 0, "dedicated-buf", false)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}
	if chunkID != dedicatedChunkID {
		t.Errorf("chunkID = %d, want %d", chunkID, dedicatedChunkID)
	}
	if d.allocated() != 4096 {
		t.Errorf("allocated() = %d, want 4096", d.allocated())
	}
}

func TestDedicatedAllocatorRejectsSizeMismatch(t *testing.T) {
	d := newDedicatedAllocator(4096)
	if _, _, err := d.allocate(2048, 256, allocationKindLinear, 0, "x", false); err == nil {
		t.Fatal("expected error for size mismatch")
	}
}

func TestDedicatedAllocatorRejectsDoubleAllocate(t *testing.T) {
	d := newDedicatedAllocator(4096)
	if _, _, err := d.allocate(4096, 256, allocationKindLinear, 0, "x", false); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	if _, _, err := d.allocate(4096, 256, allocationKindLinear, 0, "y", false); err == nil {
		t.Fatal("expected error on second allocate")
	}
}

func TestDedicatedAllocatorFree(t *testing.T) {
	d := newDedicatedAllocator(4096)
	_, chunkID, _ := d.allocate(4096, 256, allocationKindLinear, 0, "x", false)

	if err := d.free(chunkID + 1); err == nil {
		t.Fatal("expected error freeing wrong chunk id")
	}
	if err := d.free(chunkID); err != nil {
		t.Fatalf("free: %v", err)
	}
	if d.allocated() != 0 {
		t.Errorf("allocated() = %d after free, want 0", d.allocated())
	}

	// Now reusable.
	if _, _, err := d.allocate(4096, 256, allocationKindLinear, 0, "z", false); err != nil {
		t.Fatalf("reallocate after free: %v", err)
	}
}

func TestDedicatedAllocatorSupportsGeneralAllocations(t *testing.T) {
	d := newDedicatedAllocator(4096)
	if d.supportsGeneralAllocations() {
		t.Error("dedicatedAllocator must not support general allocations")
	}
}
