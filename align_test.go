// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct {
		v, a, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{1024, 64, 1024},
		{1000, 64, 1024},
	}
	for _, c := range cases {
		if got := alignUp(c.v, c.a); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.v, c.a, got, c.want)
		}
	}
}

func TestAlignDown(t *testing.T) {
	if got := alignDown(1023, 256); got != 768 {
		t.Errorf("alignDown(1023, 256) = %d, want 768", got)
	}
}

func TestIsOnSamePage(t *testing.T) {
	// A 200-byte Linear allocation at offset 0 and a 200-byte NonLinear
	// allocation considered at offset 0 share granularity page [0, 256).
	if !isOnSamePage(0, 200, 0, 256) {
		t.Error("expected ranges to share a granularity page")
	}
	// A range starting at 256 does not share the [0,256) page with one
	// ending at 199.
	if isOnSamePage(0, 200, 256, 256) {
		t.Error("did not expect ranges to share a granularity page")
	}
}

func TestHasGranularityConflict(t *testing.T) {
	cases := []struct {
		a, b allocationKind
		want bool
	}{
		{allocationKindFree, allocationKindLinear, false},
		{allocationKindLinear, allocationKindFree, false},
		{allocationKindLinear, allocationKindLinear, false},
		{allocationKindNonLinear, allocationKindNonLinear, false},
		{allocationKindLinear, allocationKindNonLinear, true},
		{allocationKindNonLinear, allocationKindLinear, true},
	}
	for _, c := range cases {
		if got := hasGranularityConflict(c.a, c.b); got != c.want {
			t.Errorf("hasGranularityConflict(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
