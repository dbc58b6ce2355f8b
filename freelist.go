// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

// memoryChunk is one contiguous region of a freeListAllocator's block: a
// doubly linked list node ordered by offset. A chunk is either free
// (kind == allocationKindFree) or carries a live allocation.
type memoryChunk struct {
	id     uint64
	size   uint64
	offset uint64
	kind   allocationKind
	name   string
	stack  []uintptr

	// next and prev are neighboring chunk ids in offset order, or 0 if
	// this chunk is first/last in the block. 0 is never a valid chunk id.
	next uint64
	prev uint64
}

// freeListAllocator sub-allocates one memory block using best-fit
// placement over a doubly linked, offset-ordered chunk list, with eager
// coalescing of adjacent free chunks on every free. free rejects an id
// that is not in chunks or whose chunk is already free. An exact-fit
// allocation takes over the id of the free chunk it fills, so an id
// returned by an earlier, freed allocation can name a live one again.
type freeListAllocator struct {
	totalSize uint64
	usedSize  uint64

	nextChunkID uint64
	chunks      map[uint64]*memoryChunk
	freeChunks  map[uint64]struct{}
}

// newFreeListAllocator creates a free-list allocator over size bytes,
// starting as one whole free chunk. Chunk id 1 is reserved for that
// initial chunk; ids handed out by getNewChunkID start at 2, matching
// the numbering scheme of the system this allocator was ported from.
func newFreeListAllocator(size uint64) *freeListAllocator {
	const initialChunkID = 1

	f := &freeListAllocator{
		totalSize:   size,
		nextChunkID: 2,
		chunks:      make(map[uint64]*memoryChunk),
		freeChunks:  make(map[uint64]struct{}),
	}
	f.chunks[initialChunkID] = &memoryChunk{
		id:     initialChunkID,
		size:   size,
		offset: 0,
		kind:   allocationKindFree,
	}
	f.freeChunks[initialChunkID] = struct{}{}
	return f
}

func (f *freeListAllocator) getNewChunkID() (uint64, error) {
	if f.nextChunkID == ^uint64(0) {
		return 0, ErrOutOfMemoryBlock
	}
	id := f.nextChunkID
	f.nextChunkID++
	return id, nil
}

func (f *freeListAllocator) removeFromFreeList(chunkID uint64) {
	delete(f.freeChunks, chunkID)
}

// mergeFreeChunks absorbs right into left: both must already be free
// and adjacent (left.next == right.id). right is removed from the
// chunk table entirely; left grows to cover its extent.
func (f *freeListAllocator) mergeFreeChunks(leftID, rightID uint64) {
	right := f.chunks[rightID]
	rightSize, rightNext := right.size, right.next
	delete(f.chunks, rightID)
	f.removeFromFreeList(rightID)

	left := f.chunks[leftID]
	left.next = rightNext
	left.size += rightSize

	if rightNext != 0 {
		f.chunks[rightNext].prev = leftID
	}
}

// allocate finds the smallest free chunk that fits size bytes under the
// given alignment and granularity constraints. When the fit isn't exact,
// the allocation is carved off the front of that chunk as a new chunk
// and the remainder stays free under the original id; an exact fit
// reuses the free chunk and its id.
func (f *freeListAllocator) allocate(size, alignment uint64, kind allocationKind, granularity uint64, name string, captureStack bool) (uint64, uint64, error) {
	if size > subAllocAvailable(f) {
		return 0, 0, ErrOutOfMemoryBlock
	}

	var (
		bestFitID     uint64
		bestOffset    uint64
		bestAlignSize uint64
		bestChunkSize uint64
		found         bool
	)

	for candidateID := range f.freeChunks {
		candidate := f.chunks[candidateID]
		if candidate.size < size {
			continue
		}

		offset := alignUp(candidate.offset, alignment)

		if candidate.prev != 0 {
			prev := f.chunks[candidate.prev]
			if isOnSamePage(prev.offset, prev.size, offset, granularity) && hasGranularityConflict(prev.kind, kind) {
				offset = alignUp(offset, granularity)
			}
		}

		padding := offset - candidate.offset
		alignedSize := padding + size
		if alignedSize > candidate.size {
			continue
		}

		if candidate.next != 0 {
			next := f.chunks[candidate.next]
			if isOnSamePage(offset, size, next.offset, granularity) && hasGranularityConflict(kind, next.kind) {
				continue
			}
		}

		if !found || candidate.size < bestChunkSize {
			bestFitID = candidateID
			bestAlignSize = alignedSize
			bestOffset = offset
			bestChunkSize = candidate.size
			found = true
		}
	}

	if !found {
		return 0, 0, ErrOutOfMemoryBlock
	}

	var stack []uintptr
	if captureStack {
		stack = captureCallStack()
	}

	var chunkID uint64
	if bestChunkSize > bestAlignSize {
		newID, err := f.getNewChunkID()
		if err != nil {
			return 0, 0, err
		}

		freeChunk := f.chunks[bestFitID]
		newChunk := &memoryChunk{
			id:     newID,
			size:   bestAlignSize,
			offset: freeChunk.offset,
			kind:   kind,
			name:   name,
			stack:  stack,
			prev:   freeChunk.prev,
			next:   bestFitID,
		}

		freeChunk.prev = newID
		freeChunk.offset += bestAlignSize
		freeChunk.size -= bestAlignSize

		if newChunk.prev != 0 {
			f.chunks[newChunk.prev].next = newID
		}

		f.chunks[newID] = newChunk
		chunkID = newID
	} else {
		chunk := f.chunks[bestFitID]
		chunk.kind = kind
		chunk.name = name
		chunk.stack = stack
		f.removeFromFreeList(bestFitID)
		chunkID = bestFitID
	}

	f.usedSize += bestAlignSize
	return bestOffset, chunkID, nil
}

// free releases chunkID and eagerly coalesces it with a free predecessor
// and/or successor.
func (f *freeListAllocator) free(chunkID uint64) error {
	chunk, ok := f.chunks[chunkID]
	if !ok || chunk.kind == allocationKindFree {
		return ErrCorruptedFreeID
	}

	chunk.kind = allocationKindFree
	chunk.name = ""
	chunk.stack = nil
	f.usedSize -= chunk.size
	f.freeChunks[chunkID] = struct{}{}

	nextID, prevID := chunk.next, chunk.prev

	if nextID != 0 && f.chunks[nextID].kind == allocationKindFree {
		f.mergeFreeChunks(chunkID, nextID)
	}
	if prevID != 0 && f.chunks[prevID].kind == allocationKindFree {
		f.mergeFreeChunks(prevID, chunkID)
	}
	return nil
}

func (f *freeListAllocator) reportLeaks(memoryTypeIndex, memoryBlockIndex int) {
	for id, chunk := range f.chunks {
		if chunk.kind == allocationKindFree {
			continue
		}
		logLeak(memoryTypeIndex, memoryBlockIndex, id, chunk.size, chunk.offset, chunk.kind, chunk.name, chunk.stack)
	}
}

func (f *freeListAllocator) supportsGeneralAllocations() bool { return true }
func (f *freeListAllocator) size() uint64                     { return f.totalSize }
func (f *freeListAllocator) allocated() uint64                { return f.usedSize }
