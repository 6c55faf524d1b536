package alloc

import (
	"unsafe"

	"github.com/micro-gl/micro-alloc/internal/dbg"
	"github.com/micro-gl/micro-alloc/internal/signal"
)

// footerAlignment is the alignment of a stack block's trailing footer word,
// independent of the engine's requested alignment (the footer is always a
// single uintptr).
const footerAlignment = ptrSize

// StackEngine is a LIFO allocator. Each live block carries a trailing
// footer word holding the distance back to the end of the previous block,
// so Free is O(1) and validates that the freed pointer is indeed the most
// recently allocated block.
//
// Block layout: [ aligned payload | footer ].
type StackEngine struct {
	region
	valid           bool
	currentBlockEnd uintptr
}

type stackFooter struct {
	distanceToPrevBlockEnd uintptr
}

// NewStackEngine constructs a stack engine over buf. alignment must be a
// power of two at least pointer-sized; if it is smaller, pointer size is
// used instead.
func NewStackEngine(buf []byte, alignment uintptr) *StackEngine {
	alignment = maxUptr(alignment, ptrSize)
	e := &StackEngine{region: newRegion(buf, alignment)}
	e.valid = isPow2(alignment) && uintptr(len(buf)) >= footerAlignment && e.alignedBase() < e.alignedEnd()
	dbg.Printf("stack: hello, alignment=%d size=%d valid=%v", alignment, len(buf), e.valid)
	if e.valid {
		e.currentBlockEnd = e.alignedBase()
	} else {
		signal.Raise(ErrInvalidConstruction)
	}
	return e
}

// AvailableSize returns a non-binding estimate of additionally allocatable
// bytes.
func (e *StackEngine) AvailableSize() uintptr {
	if !e.valid {
		return 0
	}
	return e.alignedEnd() - alignUp(e.currentBlockEnd, e.alignment)
}

func (e *StackEngine) footerAt(addr uintptr) *stackFooter {
	return (*stackFooter)(e.ptr(addr))
}

// Malloc allocates size bytes on top of the stack. Returns nil for a
// zero-byte request or when there is no room for the payload plus footer.
func (e *StackEngine) Malloc(size uintptr) unsafe.Pointer {
	if !e.valid {
		return nil
	}
	dbg.Printf("stack: malloc requested %d bytes", size)
	if size == 0 {
		signal.Raise(ErrZeroSize)
		return nil
	}

	prevBlockEnd := e.currentBlockEnd
	newBlockStart := alignUp(prevBlockEnd, e.alignment)
	alignedSize := alignUp(size, e.alignment)
	startOfFooter := newBlockStart + alignUp(alignedSize, footerAlignment)
	newBlockEnd := startOfFooter + unsafe.Sizeof(stackFooter{})
	distance := newBlockEnd - prevBlockEnd

	if distance > e.AvailableSize() {
		dbg.Printf("stack: out of memory, available=%d requested=%d", e.AvailableSize(), distance)
		signal.Raise(ErrOutOfMemory)
		return nil
	}

	e.currentBlockEnd += distance
	e.footerAt(startOfFooter).distanceToPrevBlockEnd = distance
	dbg.Printf("stack: handed block @%d, consumed %d bytes", newBlockStart, distance)
	return e.ptr(newBlockStart)
}

// Free releases ptr, which must be the most recently allocated, not-yet-
// freed block. Freeing anything else (including an empty stack) fails.
func (e *StackEngine) Free(ptr unsafe.Pointer) bool {
	if !e.valid {
		return false
	}
	addr := uintptr(ptr)
	dbg.Printf("stack: free requested @%d", addr)

	if e.currentBlockEnd == e.alignedBase() {
		dbg.Printf("stack: nothing allocated, nothing to free")
		signal.Raise(ErrLifoViolation)
		return false
	}

	footerStart := e.currentBlockEnd - unsafe.Sizeof(stackFooter{})
	footer := e.footerAt(footerStart)
	lastBlockEnd := e.currentBlockEnd - footer.distanceToPrevBlockEnd
	topBlockStart := alignUp(lastBlockEnd, e.alignment)

	if addr != topBlockStart {
		dbg.Printf("stack: %d is not the top block (%d), LIFO violation", addr, topBlockStart)
		signal.Raise(ErrLifoViolation)
		return false
	}

	e.currentBlockEnd -= footer.distanceToPrevBlockEnd
	dbg.Printf("stack: freed, current_block_end=%d", e.currentBlockEnd)
	return true
}

// IsValid reports whether construction succeeded.
func (e *StackEngine) IsValid() bool { return e.valid }

// TypeID identifies this engine for Resource.IsEqual.
func (e *StackEngine) TypeID() TypeID { return TypeStack }

// IsEqual reports whether other is a StackEngine over the same region.
func (e *StackEngine) IsEqual(other Resource) bool {
	if other == nil || other.TypeID() != e.TypeID() {
		return false
	}
	o, ok := other.(*StackEngine)
	return ok && o.base == e.base
}

// StackMetrics is a point-in-time snapshot of a StackEngine.
type StackMetrics struct {
	Capacity    uintptr
	Available   uintptr
	Utilization float64
}

// Metrics returns a snapshot of this engine's usage.
func (e *StackEngine) Metrics() StackMetrics {
	cap := e.alignedEnd() - e.alignedBase()
	avail := e.AvailableSize()
	util := 0.0
	if cap > 0 {
		util = 1.0 - float64(avail)/float64(cap)
	}
	return StackMetrics{Capacity: cap, Available: avail, Utilization: util}
}
