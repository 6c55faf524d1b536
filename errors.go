package alloc

import "errors"

// Error taxonomy for the engines, per cause. Every failing malloc/free
// returns nil/false as usual; when built with -tags alloc_throw, the
// matching error here is also panicked via internal/signal.
var (
	// ErrInvalidConstruction means the region was too small for the
	// engine's headers, the alignment was not a power of two, or (pool)
	// the block size did not fit the region.
	ErrInvalidConstruction = errors.New("alloc: invalid construction")

	// ErrOutOfMemory means no block could satisfy a malloc request.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrZeroSize means malloc(0) was requested on an engine that rejects it.
	ErrZeroSize = errors.New("alloc: zero size request")

	// ErrMisalignedFree means a dynamic-engine free address was not
	// aligned to the engine's alignment.
	ErrMisalignedFree = errors.New("alloc: misaligned free")

	// ErrNotABlock means a dynamic-engine free address failed the
	// header/footer sanity check.
	ErrNotABlock = errors.New("alloc: not a block")

	// ErrDoubleFree means the block being freed is already free.
	ErrDoubleFree = errors.New("alloc: double free")

	// ErrLifoViolation means a stack-engine free targeted a block other
	// than the most recently allocated one (including freeing into an
	// empty stack).
	ErrLifoViolation = errors.New("alloc: lifo violation")

	// ErrOutOfRange means a pool- or dynamic-engine free address fell
	// outside the region, or (pool) was not aligned to a slot boundary.
	ErrOutOfRange = errors.New("alloc: out of range")
)
