// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

// alignDown returns the greatest multiple of alignment that is <= v.
// alignment must be a power of two.
func alignDown(v, alignment uint64) uint64 {
	return v &^ (alignment - 1)
}

// alignUp returns the least multiple of alignment that is >= v.
// alignment must be a power of two.
func alignUp(v, alignment uint64) uint64 {
	return alignDown(v+alignment-1, alignment)
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// isOnSamePage reports whether the last byte of [offsetA, offsetA+sizeA)
// and the first byte of range B fall within the same page-aligned region
// of the given page size. Used to decide whether two sub-allocations can
// collide under the device's buffer/image granularity.
func isOnSamePage(offsetA, sizeA, offsetB, page uint64) bool {
	endA := offsetA + sizeA - 1
	endPageA := alignDown(endA, page)
	startPageB := alignDown(offsetB, page)
	return endPageA == startPageB
}

// hasGranularityConflict reports whether two allocation kinds sharing a
// granularity page must be separated by granularity padding. Free never
// conflicts with anything; otherwise Linear and NonLinear conflict with
// each other but not with themselves.
func hasGranularityConflict(a, b allocationKind) bool {
	if a == allocationKindFree || b == allocationKindFree {
		return false
	}
	return a != b
}
