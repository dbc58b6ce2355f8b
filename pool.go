// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package gpualloc

// subAllocationRequest carries the fields of an allocation request that
// matter once the Allocator has already picked a memory type; it is
// the façade's AllocationCreateInfo with location resolved away.
type subAllocationRequest struct {
	size          uint64
	alignment     uint64
	kind          allocationKind
	name          string
	scheme        AllocationScheme
	deviceAddress bool
}

// memoryTypePool owns every memoryBlock allocated from one Vulkan
// memory type. Blocks are stored in a slice with holes: a destroyed
// block's slot is set to nil and reused by the next block created,
// rather than shrinking the slice, so memory-block indices handed out
// in an Allocation stay stable for the blocks that remain alive.
type memoryTypePool struct {
	index         int
	heapIndex     int
	propertyFlags MemoryPropertyFlags
	mappable      bool

	blocks              []*memoryBlock
	activeGeneralBlocks int
}

func newMemoryTypePool(index int, memType MemoryType) *memoryTypePool {
	return &memoryTypePool{
		index:         index,
		heapIndex:     int(memType.HeapIndex),
		propertyFlags: memType.PropertyFlags,
		mappable:      memType.PropertyFlags.Has(MemoryPropertyHostVisible),
	}
}

// allocate satisfies req against this pool, either by placing it in a
// dedicated block (driver-dedicated scheme, or a request too large for
// blockSize) or by sub-allocating from an existing or freshly created
// general block.
func (p *memoryTypePool) allocate(device Device, req subAllocationRequest, granularity uint64, blockSize uint64, captureStack bool) (Allocation, error) {
	dedicated := req.scheme.isDriverDedicated()
	requiresPersonalBlock := req.size > blockSize

	if dedicated || requiresPersonalBlock {
		return p.allocateDedicatedBlock(device, req, granularity, captureStack)
	}
	return p.allocateGeneral(device, req, granularity, blockSize, captureStack)
}

func (p *memoryTypePool) allocateDedicatedBlock(device Device, req subAllocationRequest, granularity uint64, captureStack bool) (Allocation, error) {
	block, err := newMemoryBlock(device, req.size, p.index, p.mappable, req.deviceAddress, req.scheme, true)
	if err != nil {
		return Allocation{}, err
	}

	blockIndex := p.claimSlot(block)

	offset, chunkID, err := block.sub.allocate(req.size, req.alignment, req.kind, granularity, req.name, captureStack)
	if err != nil {
		block.destroy(device)
		p.blocks[blockIndex] = nil
		return Allocation{}, err
	}

	return Allocation{
		chunkID:        chunkID,
		offset:         offset,
		size:           req.size,
		memoryBlockIdx: blockIndex,
		memoryTypeIdx:  p.index,
		deviceMemory:   block.deviceMemory,
		mappedPtr:      block.mappedPointerAt(offset),
		propertyFlags:  p.propertyFlags,
		isDedicated:    req.scheme.isDriverDedicated(),
	}, nil
}

func (p *memoryTypePool) allocateGeneral(device Device, req subAllocationRequest, granularity uint64, blockSize uint64, captureStack bool) (Allocation, error) {
	var emptySlot = -1

	for i := len(p.blocks) - 1; i >= 0; i-- {
		block := p.blocks[i]
		if block == nil {
			if emptySlot == -1 {
				emptySlot = i
			}
			continue
		}
		if !block.sub.supportsGeneralAllocations() {
			continue
		}

		offset, chunkID, err := block.sub.allocate(req.size, req.alignment, req.kind, granularity, req.name, captureStack)
		if err != nil {
			continue
		}

		return Allocation{
			chunkID:        chunkID,
			offset:         offset,
			size:           req.size,
			memoryBlockIdx: i,
			memoryTypeIdx:  p.index,
			deviceMemory:   block.deviceMemory,
			mappedPtr:      block.mappedPointerAt(offset),
			propertyFlags:  p.propertyFlags,
		}, nil
	}

	block, err := newMemoryBlock(device, blockSize, p.index, p.mappable, req.deviceAddress, GpuAllocatorManagedScheme(), false)
	if err != nil {
		return Allocation{}, err
	}

	var blockIndex int
	if emptySlot != -1 {
		p.blocks[emptySlot] = block
		blockIndex = emptySlot
	} else {
		p.blocks = append(p.blocks, block)
		blockIndex = len(p.blocks) - 1
	}
	p.activeGeneralBlocks++

	offset, chunkID, err := block.sub.allocate(req.size, req.alignment, req.kind, granularity, req.name, captureStack)
	if err != nil {
		block.destroy(device)
		p.blocks[blockIndex] = nil
		p.activeGeneralBlocks--
		return Allocation{}, err
	}

	return Allocation{
		chunkID:        chunkID,
		offset:         offset,
		size:           req.size,
		memoryBlockIdx: blockIndex,
		memoryTypeIdx:  p.index,
		deviceMemory:   block.deviceMemory,
		mappedPtr:      block.mappedPointerAt(offset),
		propertyFlags:  p.propertyFlags,
	}, nil
}

// claimSlot reuses the first nil slot in blocks, or appends, returning
// the index block was stored at.
func (p *memoryTypePool) claimSlot(block *memoryBlock) int {
	for i, b := range p.blocks {
		if b == nil {
			p.blocks[i] = block
			return i
		}
	}
	p.blocks = append(p.blocks, block)
	return len(p.blocks) - 1
}

// free releases alloc back into the block it came from, destroying the
// block if it's now empty — unless it's the pool's last general block,
// which is kept around to absorb the next allocation.
func (p *memoryTypePool) free(device Device, alloc Allocation) error {
	block := p.blocks[alloc.memoryBlockIdx]
	if block == nil {
		return ErrCorruptedFreeID
	}

	if err := block.sub.free(alloc.chunkID); err != nil {
		return err
	}

	if !subAllocIsEmpty(block.sub) {
		return nil
	}

	if block.sub.supportsGeneralAllocations() {
		if p.activeGeneralBlocks > 1 {
			block.destroy(device)
			p.blocks[alloc.memoryBlockIdx] = nil
			p.activeGeneralBlocks--
		}
		return nil
	}

	block.destroy(device)
	p.blocks[alloc.memoryBlockIdx] = nil
	return nil
}

func (p *memoryTypePool) reportLeaks() {
	for blockIndex, block := range p.blocks {
		if block == nil {
			continue
		}
		block.sub.reportLeaks(p.index, blockIndex)
	}
}

func (p *memoryTypePool) destroyAll(device Device) {
	for i, block := range p.blocks {
		if block == nil {
			continue
		}
		block.destroy(device)
		p.blocks[i] = nil
	}
	p.activeGeneralBlocks = 0
}
