// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

import (
	"fmt"
	"log/slog"
	"runtime"
)

// subAllocator is the closed set of strategies a memoryBlock can delegate
// to: freeListAllocator (C3) or dedicatedAllocator (C2). Kept as a small
// interface over a two-member sum type rather than open dispatch — the
// set is fixed and memoryTypePool needs to distinguish the variants
// anyway via supportsGeneralAllocations.
type subAllocator interface {
	// allocate places a new chunk of size bytes, honoring alignment and
	// granularity padding against neighboring chunks, and returns its
	// offset within the block and its chunk id.
	allocate(size, alignment uint64, kind allocationKind, granularity uint64, name string, captureStack bool) (offset, chunkID uint64, err error)

	// free releases the chunk identified by chunkID.
	free(chunkID uint64) error

	// reportLeaks logs every live (non-free) chunk, tagged with the
	// memory-type and memory-block indices supplied by the owning pool.
	reportLeaks(memoryTypeIndex, memoryBlockIndex int)

	// supportsGeneralAllocations is true for freeListAllocator and false
	// for dedicatedAllocator. memoryTypePool uses it to decide whether to
	// retain one spare general block on free (§4.5).
	supportsGeneralAllocations() bool

	size() uint64
	allocated() uint64
}

func subAllocAvailable(s subAllocator) uint64 { return s.size() - s.allocated() }
func subAllocIsEmpty(s subAllocator) bool     { return s.allocated() == 0 }

// captureCallStack records up to 32 PC frames above its caller's caller,
// used by leak reports when DebugSettings.StoreStackTraces is set.
func captureCallStack() []uintptr {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}

func formatCallStack(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs)
	var out string
	for {
		frame, more := frames.Next()
		out += fmt.Sprintf("\n\t%s\n\t\t%s:%d", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return out
}

// logLeak emits one leak-report line through the package logger.
func logLeak(memoryTypeIndex, memoryBlockIndex int, chunkID, size, offset uint64, kind allocationKind, name string, stack []uintptr) {
	attrs := []any{
		slog.Int("memory_type", memoryTypeIndex),
		slog.Int("memory_block", memoryBlockIndex),
		slog.Uint64("chunk_id", chunkID),
		slog.String("size", fmt.Sprintf("0x%x", size)),
		slog.Uint64("offset", offset),
		slog.String("kind", kind.String()),
		slog.String("name", name),
	}
	if s := formatCallStack(stack); s != "" {
		attrs = append(attrs, slog.String("stack", s))
	}
	Logger().Warn("gpualloc: leak detected", attrs...)
}
