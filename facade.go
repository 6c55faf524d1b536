package alloc

import (
	"runtime"
	"unsafe"
)

// Allocator is a thin typed facade over a Resource, translating element
// counts into byte counts for a particular type T. It carries no state of
// its own beyond the Resource it wraps, so copying an Allocator[T] is cheap
// and safe.
type Allocator[T any] struct {
	resource Resource
}

// NewAllocator binds a typed facade to resource. A nil or invalid resource
// is accepted; every Allocate call on it then fails like any other
// out-of-memory condition.
func NewAllocator[T any](resource Resource) Allocator[T] {
	return Allocator[T]{resource: resource}
}

// Resource returns the underlying Resource this allocator is bound to.
func (a Allocator[T]) Resource() Resource { return a.resource }

func elemSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// Allocate reserves room for n contiguous, uninitialized T values and
// returns them as a slice. It returns nil if the resource is nil, n is
// zero, or the underlying Malloc fails.
func (a Allocator[T]) Allocate(n uintptr) []T {
	if a.resource == nil || n == 0 {
		return nil
	}
	p := a.resource.Malloc(n * elemSize[T]())
	if p == nil {
		return nil
	}
	return unsafe.Slice((*T)(p), n)
}

// AllocateZeroed is identical to Allocate but clears the returned memory
// first.
func (a Allocator[T]) AllocateZeroed(n uintptr) []T {
	s := a.Allocate(n)
	if len(s) == 0 {
		return s
	}
	var zero T
	for i := range s {
		s[i] = zero
	}
	return s
}

// Deallocate releases memory previously returned by Allocate (or
// AllocateBytes) on the same allocator. It reports whether the underlying
// resource accepted the release.
func (a Allocator[T]) Deallocate(s []T) bool {
	if a.resource == nil || len(s) == 0 {
		return false
	}
	return a.resource.Free(unsafe.Pointer(&s[0]))
}

// AllocateBytes is the untyped counterpart of Allocate.
func (a Allocator[T]) AllocateBytes(size uintptr) unsafe.Pointer {
	if a.resource == nil || size == 0 {
		return nil
	}
	return a.resource.Malloc(size)
}

// DeallocateBytes is the untyped counterpart of Deallocate.
func (a Allocator[T]) DeallocateBytes(ptr unsafe.Pointer) bool {
	if a.resource == nil || ptr == nil {
		return false
	}
	return a.resource.Free(ptr)
}

// NewObject allocates a single T, copies value into it, and returns a
// pointer into the resource's backing region.
func (a Allocator[T]) NewObject(value T) *T {
	s := a.Allocate(1)
	if s == nil {
		return nil
	}
	s[0] = value
	return &s[0]
}

// DeleteObject releases a pointer previously returned by NewObject or
// Allocate(1). obj is zeroed first so any contained pointers do not keep
// heap objects referenced by the caller's T alive past the free.
func (a Allocator[T]) DeleteObject(obj *T) bool {
	if a.resource == nil || obj == nil {
		return false
	}
	var zero T
	*obj = zero
	runtime.KeepAlive(obj)
	return a.resource.Free(unsafe.Pointer(obj))
}

// Rebind returns a facade for a different element type U bound to the same
// underlying resource.
func Rebind[U, T any](a Allocator[T]) Allocator[U] {
	return Allocator[U]{resource: a.resource}
}

// SelectOnContainerCopyConstruction returns the allocator a container
// copy-constructed from a should use. The resource propagates unchanged:
// a copy shares its source's allocator rather than falling back to some
// default.
func SelectOnContainerCopyConstruction[T any](a Allocator[T]) Allocator[T] {
	return Allocator[T]{resource: a.resource}
}

// AllocatorsEqual reports whether a and b are bound to the same resource.
func AllocatorsEqual[T any](a, b Allocator[T]) bool {
	return Equal(a.resource, b.resource)
}
