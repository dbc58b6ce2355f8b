// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import "errors"

// Sentinel errors returned by gpualloc. Each corresponds to one of the
// error kinds in the allocator's error-handling design: callers are
// expected to treat all of them as terminal for the allocation attempt
// that produced them (a GPU allocator failure generally means the current
// frame cannot be built), but composing and testing against them with
// errors.Is/errors.As is supported and encouraged.
var (
	// ErrInvalidArgument indicates a zero size, a non-power-of-two
	// alignment, or a missing required builder field.
	ErrInvalidArgument = errors.New("gpualloc: invalid argument")

	// ErrNoCompatibleMemoryType indicates no memory type satisfies the
	// requested flags and memory-type bitmask, even after relaxing
	// preferred flags to the minimal required set, or that the heap of
	// the chosen memory type is smaller than the request.
	ErrNoCompatibleMemoryType = errors.New("gpualloc: no compatible memory type")

	// ErrOutOfMemoryBlock indicates a sub-allocator's best-fit search
	// found no free chunk large enough to satisfy a request.
	ErrOutOfMemoryBlock = errors.New("gpualloc: out of memory in block")

	// ErrDeviceAllocationFailure indicates the device capability denied a
	// memory allocation or a mapping request.
	ErrDeviceAllocationFailure = errors.New("gpualloc: device allocation failed")

	// ErrCorruptedFreeID indicates Free was called with a chunk id the
	// owning sub-allocator does not recognize, or with the wrong sentinel
	// for a dedicated allocation. This always signals a caller bug or a
	// double free.
	ErrCorruptedFreeID = errors.New("gpualloc: corrupted or unknown chunk id")
)

// MustNew calls New and panics if it returns an error. Intended for
// call sites — tests, examples, one-shot tools — that want the literal
// "abort the process" framing the allocator's error-handling design
// describes for fatal conditions, without forcing every library caller
// into that framing.
func MustNew(desc AllocatorDescriptor) *Allocator {
	a, err := New(desc)
	if err != nil {
		panic(err)
	}
	return a
}

// MustAllocate calls Allocate and panics if it returns an error.
func MustAllocate(a *Allocator, info AllocationCreateInfo) Allocation {
	alloc, err := a.Allocate(info)
	if err != nil {
		panic(err)
	}
	return alloc
}
