// Package alloc implements a family of embedded-friendly memory allocators
// for Go.
//
// # Overview
//
// Four allocation strategies share one Resource interface, so code that
// allocates through a Resource can swap strategies without changing a
// line:
//
//   - LinearEngine: a bump allocator. Malloc is O(1); Free is a no-op;
//     Reset reclaims everything at once.
//   - StackEngine: a LIFO allocator. Malloc is O(1); Free only succeeds
//     on the most recently allocated, not-yet-freed block.
//   - PoolEngine: a fixed-block-size free-list allocator. Malloc and Free
//     are both O(1) (O(free list length) with the double-free guard
//     enabled).
//   - DynamicEngine: a best-fit allocator with boundary-tag coalescing.
//     Malloc is O(free list length); Free is O(1) when it coalesces,
//     O(free list length) otherwise.
//
// Every engine operates over a single caller-supplied []byte region; none
// of them grow, allocate from the Go heap on your behalf, or are safe for
// concurrent use without external synchronization.
//
// # Basic Usage
//
//	buf := make([]byte, 64*1024)
//	engine := alloc.NewDynamicEngine(buf, 16)
//	if !engine.IsValid() {
//		// buf was too small for even one block at this alignment.
//	}
//	p := engine.Malloc(128)
//	if p == nil {
//		// out of memory
//	}
//	engine.Free(p)
//
// # Typed Facade
//
// Allocator[T] wraps a Resource and translates element counts into byte
// counts:
//
//	a := alloc.NewAllocator[MyStruct](engine)
//	items := a.Allocate(16)
//	a.Deallocate(items)
//
// # Thread Safety
//
// No engine synchronizes its own state. Share an engine across goroutines
// only behind your own mutex.
//
// # Failure Signaling
//
// By default every failure is reported solely through a nil pointer or a
// false return. Building with -tags alloc_throw additionally panics with
// the triggering error (see the package-level Err* sentinels). Building
// with -tags alloc_debug emits structured diagnostic logging for every
// engine operation.
package alloc
