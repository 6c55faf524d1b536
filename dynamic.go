package alloc

import (
	"unsafe"

	"github.com/micro-gl/micro-alloc/internal/dbg"
	"github.com/micro-gl/micro-alloc/internal/signal"
)

// DynamicEngine is a best-fit free-list allocator with boundary-tag
// coalescing. Every block (free or allocated) carries matching header and
// footer words packing size|allocated-bit; free blocks additionally store
// doubly-linked free-list pointers immediately after the header, which is
// why the minimum block size must fit a base header, two links, and a
// footer. The free list is kept in strictly ascending address order to
// bound fragmentation and to let Free reinsert in O(1) whenever it can
// coalesce (see the "hint" nodes below).
//
// Allocated block layout: [ size|1 | ... payload ... | size|1 ]
// Free block layout:      [ size|0 | prev | next | ... padding ... | size|0 ]
//
// Header and footer words are read and written directly over the backing
// []byte via unsafe.Add and typed pointer casts.
//
// malloc is O(size of the free list); free is O(1) when it coalesces with
// at least one neighbor, O(size of the free list) otherwise.
type DynamicEngine struct {
	region
	valid        bool
	freeListRoot uintptr // 0 means nil; otherwise the header address of a free block
	allocations  uintptr
}

// dynBlock is a short-lived view over a block at [from, to) in e's region.
// It never outlives the call that created it; all state lives in the
// backing buffer, not in this struct.
type dynBlock struct {
	e        *DynamicEngine
	from, to uintptr
}

func packSizeAndStatus(size uintptr, allocated bool) uintptr {
	if allocated {
		return size | 1
	}
	return size
}

func sizeOfPacked(sizeAndStatus uintptr) uintptr { return sizeAndStatus &^ 1 }

func isAllocatedPacked(sizeAndStatus uintptr) bool { return sizeAndStatus&1 != 0 }

func (e *DynamicEngine) wordAt(addr uintptr) *uintptr {
	return (*uintptr)(e.ptr(addr))
}

// headerWordSize is the aligned size of the one-word size|status header
// (and identically sized footer).
func (e *DynamicEngine) headerWordSize() uintptr { return alignUp(ptrSize, e.alignment) }

// minimalBlockSize is the smallest block that can host a free header (size
// word + prev + next) and a footer.
func (e *DynamicEngine) minimalBlockSize() uintptr {
	freeHeaderSize := 3 * ptrSize
	footerSize := ptrSize
	return alignUp(freeHeaderSize, e.alignment) + alignUp(footerSize, e.alignment)
}

// alignedBaseHeaderAndFooter is the aligned size of just the base
// size|status header plus the footer, the overhead an *allocated* block
// pays once its link words become payload.
func (e *DynamicEngine) alignedBaseHeaderAndFooter() uintptr {
	return e.headerWordSize() + e.headerWordSize()
}

func (e *DynamicEngine) effectivePayloadSize(blockSize uintptr) uintptr {
	return blockSize - e.alignedBaseHeaderAndFooter()
}

func (e *DynamicEngine) computeRequiredBlockSize(payloadSize uintptr) uintptr {
	payloadSize = alignUp(payloadSize, e.alignment)
	allocatedBlock := e.alignedBaseHeaderAndFooter() + payloadSize
	minimal := e.minimalBlockSize()
	if minimal > allocatedBlock {
		return minimal
	}
	return allocatedBlock
}

func (e *DynamicEngine) blockAt(from uintptr) dynBlock {
	size := sizeOfPacked(*e.wordAt(from))
	return dynBlock{e: e, from: from, to: from + size}
}

// makeFreeBlock writes a fresh free block spanning [from, to) and returns
// a view over it. prev/next start cleared; the caller links it in.
func (e *DynamicEngine) makeFreeBlock(from, to uintptr) dynBlock {
	b := dynBlock{e: e, from: alignUp(from, e.alignment), to: alignDown(to, e.alignment)}
	b.setSizeAndStatus(b.size(), false)
	b.setPrev(0)
	b.setNext(0)
	return b
}

func (b dynBlock) size() uintptr   { return b.to - b.from }
func (b dynBlock) header() uintptr { return b.from }
func (b dynBlock) footer() uintptr { return b.to - b.e.headerWordSize() }

func (b dynBlock) setSizeAndStatus(size uintptr, allocated bool) {
	v := packSizeAndStatus(size, allocated)
	*b.e.wordAt(b.header()) = v
	*b.e.wordAt(b.footer()) = v
}

func (b dynBlock) isAllocated() bool { return isAllocatedPacked(*b.e.wordAt(b.header())) }

func (b dynBlock) toggleAllocated() {
	*b.e.wordAt(b.header()) ^= 1
	*b.e.wordAt(b.footer()) ^= 1
}

func (b dynBlock) sanityTest() bool {
	return *b.e.wordAt(b.footer()) == *b.e.wordAt(b.header())
}

func (b dynBlock) prev() uintptr     { return *b.e.wordAt(b.header() + ptrSize) }
func (b dynBlock) setPrev(v uintptr) { *b.e.wordAt(b.header() + ptrSize) = v }
func (b dynBlock) next() uintptr     { return *b.e.wordAt(b.header() + 2*ptrSize) }
func (b dynBlock) setNext(v uintptr) { *b.e.wordAt(b.header() + 2*ptrSize) = v }

// NewDynamicEngine constructs a dynamic engine over buf as one large free
// block. alignment must be a power of two at least pointer-sized; if it is
// smaller, pointer size is used instead.
func NewDynamicEngine(buf []byte, alignment uintptr) *DynamicEngine {
	alignment = maxUptr(alignment, ptrSize)
	e := &DynamicEngine{region: newRegion(buf, alignment)}

	span := uintptr(0)
	if e.alignedEnd() > e.alignedBase() {
		span = e.alignedEnd() - e.alignedBase()
	}
	e.valid = isPow2(alignment) && len(buf) > 0 && span >= e.minimalBlockSize()

	dbg.Printf("dynamic: hello, alignment=%d size=%d minimal_block=%d valid=%v",
		alignment, len(buf), e.minimalBlockSize(), e.valid)

	if e.valid {
		block := e.makeFreeBlock(e.alignedBase(), e.alignedEnd())
		e.freeListRoot = block.header()
	} else {
		signal.Raise(ErrInvalidConstruction)
	}
	return e
}

// AvailableSize returns the total region size minus bytes currently handed
// out via Malloc. It is not the largest free block: individual requests
// may still fail due to fragmentation.
func (e *DynamicEngine) AvailableSize() uintptr {
	if !e.valid {
		return 0
	}
	return (e.alignedEnd() - e.alignedBase()) - e.allocations
}

// Malloc searches the free list for the smallest block whose effective
// payload satisfies size (best fit, ties broken by first encountered),
// splits it if the remainder would be large enough to stay a useful free
// block, and returns the payload address. Returns nil if no block fits.
func (e *DynamicEngine) Malloc(size uintptr) unsafe.Pointer {
	if !e.valid {
		return nil
	}
	size = alignUp(size, e.alignment)
	dbg.Printf("dynamic: malloc requested %d bytes (aligned up)", size)

	var bestNode uintptr
	for cur := e.freeListRoot; cur != 0; cur = e.blockAt(cur).next() {
		blk := e.blockAt(cur)
		if size > e.effectivePayloadSize(blk.size()) {
			continue
		}
		if bestNode == 0 || blk.size() < e.blockAt(bestNode).size() {
			bestNode = cur
		}
	}
	if bestNode == 0 {
		dbg.Printf("dynamic: no block satisfies the request")
		signal.Raise(ErrOutOfMemory)
		return nil
	}

	resolved := e.splitFreeBlock(bestNode, size)
	blk := e.blockAt(resolved)

	prev, next := blk.prev(), blk.next()
	isFirst, isLast := prev == 0, next == 0
	if !isFirst {
		e.blockAt(prev).setNext(next)
	}
	if !isLast {
		e.blockAt(next).setPrev(prev)
	}
	if isFirst {
		e.freeListRoot = next
	}
	blk.setPrev(0)
	blk.setNext(0)
	blk.toggleAllocated()

	addr := resolved + e.headerWordSize()
	e.allocations += blk.size()
	dbg.Printf("dynamic: fulfilled with %d byte block @%d", blk.size(), addr)
	return e.ptr(addr)
}

// splitFreeBlock splits block into an allocated-sized left half and a free
// right remainder when the remainder would stay at least
// minimalBlockSize()+alignment bytes. The extra alignment unit is a
// preserved threshold with no stated rationale: a remainder of exactly
// minimalBlockSize() would also be a valid free block. Otherwise the whole
// block is handed out unsplit. Returns the header address of the block to
// allocate.
func (e *DynamicEngine) splitFreeBlock(header uintptr, payloadSize uintptr) uintptr {
	payloadSize = alignUp(payloadSize, e.alignment)
	requiredAllocated := e.computeRequiredBlockSize(payloadSize)
	requiredFree := e.minimalBlockSize() + e.alignment

	blk := e.blockAt(header)
	if requiredAllocated+requiredFree > blk.size() {
		return header
	}

	oldSize := blk.size()
	blockPrev, blockNext := blk.prev(), blk.next()

	left := e.makeFreeBlock(header, header+requiredAllocated)
	right := e.makeFreeBlock(left.to, header+oldSize)

	left.setPrev(blockPrev)
	left.setNext(right.header())
	right.setPrev(left.header())
	right.setNext(blockNext)
	if blockNext != 0 {
		e.blockAt(blockNext).setPrev(right.header())
	}

	dbg.Printf("dynamic: split %d bytes into [%d:%d]", oldSize, left.size(), right.size())
	return left.header()
}

// Free releases ptr, which must be the address returned by a prior Malloc
// on this engine. It fails if ptr is misaligned, fails the header/footer
// sanity check (likely not a block this engine handed out), or is already
// free. On success the block is coalesced with any free neighbors and
// reinserted into the address-ordered free list.
func (e *DynamicEngine) Free(ptr unsafe.Pointer) bool {
	if !e.valid {
		return false
	}
	addr := uintptr(ptr)
	dbg.Printf("dynamic: free requested @%d", addr)

	if addr < e.alignedBase() || addr >= e.alignedEnd() {
		dbg.Printf("dynamic: address out of range [%d, %d)", e.alignedBase(), e.alignedEnd())
		signal.Raise(ErrOutOfRange)
		return false
	}
	if alignDown(addr, e.alignment) != addr {
		dbg.Printf("dynamic: address misaligned to %d bytes", e.alignment)
		signal.Raise(ErrMisalignedFree)
		return false
	}

	headerAddr := addr - e.headerWordSize()
	blk := e.blockAt(headerAddr)
	if !blk.sanityTest() {
		dbg.Printf("dynamic: header/footer mismatch, not a block")
		signal.Raise(ErrNotABlock)
		return false
	}
	if !blk.isAllocated() {
		dbg.Printf("dynamic: block already free")
		signal.Raise(ErrDoubleFree)
		return false
	}

	// Mark free now; this doubles as the guard against re-freeing the
	// same block from inside the coalesce logic below.
	blk.toggleAllocated()
	e.allocations -= blk.size()

	isFirstBlock := blk.from == e.alignedBase()
	isLastBlock := blk.to == e.alignedEnd()

	var leftHint, rightHint uintptr
	leftMost, rightMost := blk.from, blk.to

	if !isFirstBlock {
		leftFooterAddr := blk.from - e.headerWordSize()
		leftSize := sizeOfPacked(*e.wordAt(leftFooterAddr))
		leftBlk := e.blockAt(blk.from - leftSize)
		if !leftBlk.isAllocated() {
			lp, ln := leftBlk.prev(), leftBlk.next()
			if lp != 0 {
				e.blockAt(lp).setNext(ln)
			}
			if ln != 0 {
				e.blockAt(ln).setPrev(lp)
			}
			if lp == 0 {
				e.freeListRoot = ln
			}
			leftMost = leftBlk.from
			leftHint = lp
		}
	}

	if !isLastBlock {
		rightBlk := e.blockAt(blk.to)
		if !rightBlk.isAllocated() {
			rp, rn := rightBlk.prev(), rightBlk.next()
			if rp != 0 {
				e.blockAt(rp).setNext(rn)
			}
			if rn != 0 {
				e.blockAt(rn).setPrev(rp)
			}
			if rp == 0 {
				e.freeListRoot = rn
			}
			rightMost = rightBlk.to
			rightHint = rn
			// rp is the closest free block below the merged block, so it
			// also serves as the left hint when the left neighbor was not free.
			leftHint = rp
		}
	}

	wasEmpty := e.freeListRoot == 0
	newBlock := e.makeFreeBlock(leftMost, rightMost)

	switch {
	case wasEmpty:
		e.freeListRoot = newBlock.header()
		dbg.Printf("dynamic: free list was empty, assigned the block")

	case leftHint != 0:
		hintNext := e.blockAt(leftHint).next()
		newBlock.setNext(hintNext)
		newBlock.setPrev(leftHint)
		if hintNext != 0 {
			e.blockAt(hintNext).setPrev(newBlock.header())
		}
		e.blockAt(leftHint).setNext(newBlock.header())
		dbg.Printf("dynamic: inserted via left hint")

	case rightHint != 0:
		hintPrev := e.blockAt(rightHint).prev()
		newBlock.setNext(rightHint)
		newBlock.setPrev(hintPrev)
		if hintPrev != 0 {
			e.blockAt(hintPrev).setNext(newBlock.header())
		}
		e.blockAt(rightHint).setPrev(newBlock.header())
		if e.freeListRoot == rightHint {
			e.freeListRoot = newBlock.header()
		}
		dbg.Printf("dynamic: inserted via right hint")

	default:
		cur := e.freeListRoot
		curBefore := cur
		for cur != 0 && cur < newBlock.from {
			curBefore = cur
			cur = e.blockAt(cur).next()
		}
		if cur == 0 {
			e.blockAt(curBefore).setNext(newBlock.header())
			newBlock.setPrev(curBefore)
			newBlock.setNext(0)
			dbg.Printf("dynamic: appended at the tail of the free list")
		} else {
			curPrev := e.blockAt(cur).prev()
			newBlock.setPrev(curPrev)
			newBlock.setNext(cur)
			if curPrev != 0 {
				e.blockAt(curPrev).setNext(newBlock.header())
			} else {
				e.freeListRoot = newBlock.header()
			}
			e.blockAt(cur).setPrev(newBlock.header())
			dbg.Printf("dynamic: inserted before existing node")
		}
	}

	return true
}

// IsValid reports whether construction succeeded.
func (e *DynamicEngine) IsValid() bool { return e.valid }

// TypeID identifies this engine for Resource.IsEqual.
func (e *DynamicEngine) TypeID() TypeID { return TypeDynamic }

// IsEqual reports whether other is a DynamicEngine over the same region.
func (e *DynamicEngine) IsEqual(other Resource) bool {
	if other == nil || other.TypeID() != e.TypeID() {
		return false
	}
	o, ok := other.(*DynamicEngine)
	return ok && o.base == e.base
}

// DynamicMetrics is a point-in-time snapshot of a DynamicEngine.
type DynamicMetrics struct {
	Capacity     uintptr
	Allocated    uintptr
	Available    uintptr
	FreeListSize int
	Utilization  float64
	LargestBlock uintptr
}

// Metrics returns a snapshot of this engine's usage, including a scan of
// the free list for its length and largest block.
func (e *DynamicEngine) Metrics() DynamicMetrics {
	cap := uintptr(0)
	if e.alignedEnd() > e.alignedBase() {
		cap = e.alignedEnd() - e.alignedBase()
	}
	m := DynamicMetrics{Capacity: cap, Allocated: e.allocations}
	if !e.valid {
		return m
	}
	m.Available = e.AvailableSize()
	for cur := e.freeListRoot; cur != 0; {
		blk := e.blockAt(cur)
		m.FreeListSize++
		if blk.size() > m.LargestBlock {
			m.LargestBlock = blk.size()
		}
		cur = blk.next()
	}
	if cap > 0 {
		m.Utilization = float64(e.allocations) / float64(cap)
	}
	return m
}
