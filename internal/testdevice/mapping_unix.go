// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build unix

package testdevice

import "golang.org/x/sys/unix"

// mapAnon creates a real anonymous page mapping of at least size
// bytes, so a host-visible Allocation's MappedPtr is backed by actual
// pages rather than a Go-GC-managed slice that could move.
func mapAnon(size uint64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapAnon(b []byte) error {
	return unix.Munmap(b)
}
