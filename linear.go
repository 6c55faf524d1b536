package alloc

import (
	"unsafe"

	"github.com/micro-gl/micro-alloc/internal/dbg"
	"github.com/micro-gl/micro-alloc/internal/signal"
)

// LinearEngine is a bump allocator: malloc advances a single cursor and
// free is a no-op. Reclaiming memory requires Reset, which rewinds the
// cursor back to the start of the region in O(1). It operates over exactly
// one caller-supplied region and never grows.
type LinearEngine struct {
	region
	valid   bool
	current uintptr
}

// NewLinearEngine constructs a linear engine over buf. alignment must be a
// power of two at least pointer-sized; if it is smaller, pointer size is
// used instead.
func NewLinearEngine(buf []byte, alignment uintptr) *LinearEngine {
	alignment = maxUptr(alignment, ptrSize)
	e := &LinearEngine{region: newRegion(buf, alignment)}
	e.valid = isPow2(alignment) && len(buf) > 0 && e.alignedBase() < e.alignedEnd()
	dbg.Printf("linear: hello, alignment=%d size=%d valid=%v", alignment, len(buf), e.valid)
	if e.valid {
		e.Reset()
	} else {
		signal.Raise(ErrInvalidConstruction)
	}
	return e
}

// Reset rewinds the cursor to the start of the region, reclaiming every
// allocation made so far in O(1).
func (e *LinearEngine) Reset() {
	e.current = e.alignedBase()
	dbg.Printf("linear: reset to %d", e.current)
}

// AvailableSize returns the number of bytes still reachable before the
// engine runs out of room.
func (e *LinearEngine) AvailableSize() uintptr {
	if !e.valid {
		return 0
	}
	return e.alignedEnd() - e.current
}

// Malloc rounds size up to the engine's alignment and bumps the cursor.
// It fails (returns nil) for a zero-byte request or when the region is
// exhausted.
func (e *LinearEngine) Malloc(size uintptr) unsafe.Pointer {
	if !e.valid {
		return nil
	}
	size = alignUp(size, e.alignment)
	dbg.Printf("linear: malloc requested %d bytes (aligned up)", size)
	if size == 0 {
		dbg.Printf("linear: cannot fulfill a zero-size block")
		signal.Raise(ErrZeroSize)
		return nil
	}
	if size > e.AvailableSize() {
		dbg.Printf("linear: out of memory, available=%d", e.AvailableSize())
		signal.Raise(ErrOutOfMemory)
		return nil
	}
	p := e.ptr(e.current)
	e.current += size
	return p
}

// Free is always a no-op on a linear engine; use Reset instead.
func (e *LinearEngine) Free(ptr unsafe.Pointer) bool {
	dbg.Printf("linear: free is a no-op, use Reset()")
	return false
}

// IsValid reports whether construction succeeded.
func (e *LinearEngine) IsValid() bool { return e.valid }

// TypeID identifies this engine for Resource.IsEqual.
func (e *LinearEngine) TypeID() TypeID { return TypeLinear }

// IsEqual reports whether other is a LinearEngine over the same region.
func (e *LinearEngine) IsEqual(other Resource) bool {
	if other == nil || other.TypeID() != e.TypeID() {
		return false
	}
	o, ok := other.(*LinearEngine)
	return ok && o.base == e.base
}

// LinearMetrics is a point-in-time snapshot of a LinearEngine.
type LinearMetrics struct {
	Capacity    uintptr
	Available   uintptr
	Utilization float64
}

// Metrics returns a snapshot of this engine's usage.
func (e *LinearEngine) Metrics() LinearMetrics {
	cap := e.alignedEnd() - e.alignedBase()
	avail := e.AvailableSize()
	util := 0.0
	if cap > 0 {
		util = 1.0 - float64(avail)/float64(cap)
	}
	return LinearMetrics{Capacity: cap, Available: avail, Utilization: util}
}
