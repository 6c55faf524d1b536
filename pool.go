package alloc

import (
	"unsafe"

	"github.com/micro-gl/micro-alloc/internal/dbg"
	"github.com/micro-gl/micro-alloc/internal/signal"
)

// poolFreeNode overlays the head of every free slot. next holds the
// address of the next free slot, or 0 for the end of the list, stored as
// a raw integer rather than a typed pointer since it lives inside a plain
// []byte region the GC does not scan for pointers.
type poolFreeNode struct {
	next uintptr
}

// PoolEngine is a fixed-block free-list allocator. Malloc/Free are O(1)
// unless guardAgainstDoubleFree is enabled, in which case Free walks the
// free list to reject freeing an already-free slot, at O(free-list size).
type PoolEngine struct {
	region
	valid           bool
	blockSize       uintptr
	blocksCount     uintptr
	freeBlocksCount uintptr
	freeListRoot    uintptr // 0 means nil
	guard           bool
}

// NewPoolEngine constructs a pool engine over buf with the given block
// size. alignment must be a power of two at least pointer-sized; if it is
// smaller, pointer size is used instead. When guardAgainstDoubleFree is
// true, Free rejects freeing a slot that is already in the free list, at
// the cost of an O(free-list size) walk on every Free.
func NewPoolEngine(buf []byte, blockSize, alignment uintptr, guardAgainstDoubleFree bool) *PoolEngine {
	alignment = maxUptr(alignment, ptrSize)
	e := &PoolEngine{region: newRegion(buf, alignment), guard: guardAgainstDoubleFree}

	minimal := alignUp(ptrSize, alignment)
	corrected := alignUp(blockSize, alignment)
	if corrected < minimal {
		corrected = minimal
	}

	regionSize := uintptr(0)
	if e.alignedEnd() > e.alignedBase() {
		regionSize = e.alignedEnd() - e.alignedBase()
	}
	e.valid = isPow2(alignment) && len(buf) > 0 && corrected <= regionSize

	dbg.Printf("pool: hello, alignment=%d block_size=%d valid=%v", alignment, corrected, e.valid)
	if e.valid {
		e.reset(corrected)
	} else {
		signal.Raise(ErrInvalidConstruction)
	}
	return e
}

func (e *PoolEngine) reset(blockSize uintptr) {
	e.blockSize = blockSize
	regionSize := e.alignedEnd() - e.alignedBase()
	e.blocksCount = regionSize / blockSize
	e.freeBlocksCount = e.blocksCount

	if e.blocksCount == 0 {
		e.freeListRoot = 0
		return
	}

	current := e.alignedBase()
	e.freeListRoot = current
	for i := uintptr(0); i < e.blocksCount-1; i++ {
		next := current + blockSize
		e.nodeAt(current).next = next
		current = next
	}
	e.nodeAt(current).next = 0
	dbg.Printf("pool: %d blocks of %d bytes, first block @%d", e.blocksCount, blockSize, e.freeListRoot)
}

func (e *PoolEngine) nodeAt(addr uintptr) *poolFreeNode {
	return (*poolFreeNode)(e.ptr(addr))
}

// BlockSize returns the (alignment- and header-corrected) size of every slot.
func (e *PoolEngine) BlockSize() uintptr { return e.blockSize }

// BlocksCount returns the total number of slots in the pool.
func (e *PoolEngine) BlocksCount() uintptr { return e.blocksCount }

// FreeBlocksCount returns the number of currently free slots.
func (e *PoolEngine) FreeBlocksCount() uintptr { return e.freeBlocksCount }

// AvailableSize returns free slot count * block size.
func (e *PoolEngine) AvailableSize() uintptr {
	if !e.valid {
		return 0
	}
	return e.freeBlocksCount * e.blockSize
}

// Malloc returns the next free slot. The size argument is ignored; every
// slot is exactly BlockSize() bytes.
func (e *PoolEngine) Malloc(size uintptr) unsafe.Pointer {
	if !e.valid {
		return nil
	}
	dbg.Printf("pool: malloc")
	if e.freeListRoot == 0 {
		dbg.Printf("pool: no free blocks available")
		signal.Raise(ErrOutOfMemory)
		return nil
	}
	addr := e.freeListRoot
	e.freeListRoot = e.nodeAt(addr).next
	e.freeBlocksCount--
	dbg.Printf("pool: handed block @%d, free=[%d/%d]", addr, e.freeBlocksCount, e.blocksCount)
	return e.ptr(addr)
}

// Free releases ptr back to the pool. It fails if ptr is outside the
// region, not aligned to a slot boundary, or (when the guard is enabled)
// already present in the free list.
func (e *PoolEngine) Free(ptr unsafe.Pointer) bool {
	if !e.valid {
		return false
	}
	addr := uintptr(ptr)
	minRange, maxRange := e.alignedBase(), e.alignedEnd()
	dbg.Printf("pool: free requested @%d", addr)

	if addr < minRange || addr >= maxRange {
		dbg.Printf("pool: address out of range [%d, %d)", minRange, maxRange)
		signal.Raise(ErrOutOfRange)
		return false
	}
	if (addr-minRange)%e.blockSize != 0 {
		dbg.Printf("pool: address not aligned to %d-byte blocks", e.blockSize)
		signal.Raise(ErrOutOfRange)
		return false
	}

	if e.guard {
		for cur := e.freeListRoot; cur != 0; cur = e.nodeAt(cur).next {
			if cur == addr {
				dbg.Printf("pool: address already free, double free rejected")
				signal.Raise(ErrDoubleFree)
				return false
			}
		}
	}

	e.nodeAt(addr).next = e.freeListRoot
	e.freeListRoot = addr
	e.freeBlocksCount++
	dbg.Printf("pool: freed, free=[%d/%d]", e.freeBlocksCount, e.blocksCount)
	return true
}

// IsValid reports whether construction succeeded.
func (e *PoolEngine) IsValid() bool { return e.valid }

// TypeID identifies this engine for Resource.IsEqual.
func (e *PoolEngine) TypeID() TypeID { return TypePool }

// IsEqual reports whether other is a PoolEngine over the same region.
func (e *PoolEngine) IsEqual(other Resource) bool {
	if other == nil || other.TypeID() != e.TypeID() {
		return false
	}
	o, ok := other.(*PoolEngine)
	return ok && o.base == e.base
}

// PoolMetrics is a point-in-time snapshot of a PoolEngine.
type PoolMetrics struct {
	BlockSize       uintptr
	BlocksCount     uintptr
	FreeBlocksCount uintptr
	Utilization     float64
}

// Metrics returns a snapshot of this engine's usage.
func (e *PoolEngine) Metrics() PoolMetrics {
	util := 0.0
	if e.blocksCount > 0 {
		util = 1.0 - float64(e.freeBlocksCount)/float64(e.blocksCount)
	}
	return PoolMetrics{
		BlockSize:       e.blockSize,
		BlocksCount:     e.blocksCount,
		FreeBlocksCount: e.freeBlocksCount,
		Utilization:     util,
	}
}
