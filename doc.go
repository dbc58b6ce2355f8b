// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package gpualloc is a user-space sub-allocator for GPU device memory.
//
// Graphics and compute runtimes satisfy thousands of buffer/image
// allocations per frame from a small, fixed pool of native device memory
// objects. The native allocation API (Vulkan-style) is coarse-grained, caps
// the number of live allocations, and enforces placement rules — alignment
// and buffer/image granularity — that naive per-resource allocation would
// violate. gpualloc sits between application code and the driver: it
// reserves large device memory blocks and sub-partitions them into tightly
// packed regions.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────┐
//	│                      Allocator                           │
//	│  (memory type selection, façade over per-type pools)     │
//	├─────────────────────────────────────────────────────────┤
//	│                  memoryTypePool (per type)                │
//	│  (block reuse, dedicated vs. pooled decision)             │
//	├─────────────────────────────────────────────────────────┤
//	│                     memoryBlock                           │
//	│  (one device memory object + one sub-allocator)           │
//	├──────────────────────────┬──────────────────────────────┤
//	│   freeListAllocator       │   dedicatedAllocator          │
//	│   (best-fit, coalescing)  │   (single-tenant block)       │
//	├──────────────────────────┴──────────────────────────────┤
//	│                      Device (interface)                   │
//	│  (vkAllocateMemory / vkFreeMemory / vkMapMemory, ...)     │
//	└─────────────────────────────────────────────────────────┘
//
// # Allocation strategies
//
//   - Pooled: small/medium allocations suballocated from large blocks using
//     a best-fit free list that honors alignment and buffer/image
//     granularity.
//   - Dedicated: allocations that request their own device memory object
//     (driver-dedicated, or simply larger than one pool block) bypass the
//     free list entirely.
//
// # Thread safety
//
// The allocator is single-threaded internally; it takes no internal locks.
// Callers must serialize calls into one Allocator themselves. Allocation
// handles may be passed across goroutines freely once returned.
package gpualloc
