package tests

import (
	"testing"
	"unsafe"

	alloc "github.com/micro-gl/micro-alloc"
	"github.com/stretchr/testify/require"
)

// Every successful malloc returns a pointer aligned to the engine's
// alignment.
func TestMallocReturnsAlignedPointers(t *testing.T) {
	for _, alignment := range []uintptr{8, 16, 32, 64} {
		engine := alloc.NewDynamicEngine(make([]byte, 4096), alignment)
		require.True(t, engine.IsValid())
		for i := 0; i < 32; i++ {
			p := engine.Malloc(uintptr(1 + i))
			if p == nil {
				continue
			}
			require.Zero(t, uintptr(p)%alignment, "alignment=%d i=%d", alignment, i)
		}
	}
}

// A NewObject/DeleteObject round trip leaves AvailableSize unchanged.
func TestNewObjectDeleteObjectPreservesAvailableSize(t *testing.T) {
	engine := alloc.NewDynamicEngine(make([]byte, 2048), 16)
	allocator := alloc.NewAllocator[[24]byte](engine)

	before := engine.AvailableSize()
	obj := allocator.NewObject([24]byte{})
	require.NotNil(t, obj)
	require.True(t, allocator.DeleteObject(obj))
	after := engine.AvailableSize()

	require.Equal(t, before, after)
}

// After Reset, a linear engine reports its full capacity as available.
func TestLinearResetRestoresFullCapacity(t *testing.T) {
	engine := alloc.NewLinearEngine(make([]byte, 1024), 8)
	capacity := engine.Metrics().Capacity

	engine.Malloc(100)
	engine.Malloc(200)
	engine.Reset()
	require.Equal(t, capacity, engine.AvailableSize())

	engine.Reset()
	require.Equal(t, capacity, engine.AvailableSize())
}

// Freeing three adjacent dynamic blocks in c, a, b order coalesces back
// into a single free block spanning the whole region.
func TestDynamicFullRegionCoalesce(t *testing.T) {
	const regionSize = 5000
	engine := alloc.NewDynamicEngine(make([]byte, regionSize), 8)

	a := engine.Malloc(200)
	b := engine.Malloc(200)
	c := engine.Malloc(200)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	require.True(t, engine.Free(c))
	require.True(t, engine.Free(a))
	require.True(t, engine.Free(b))

	// The whole region should be reclaimable as one block again.
	whole := engine.Malloc(regionSize - 64)
	require.NotNil(t, whole, "expected the coalesced region to satisfy a near-full request")
}

// Freeing a and then requesting a smaller block reuses a's slot.
func TestDynamicReusesFreedSlotForSmallerRequest(t *testing.T) {
	engine := alloc.NewDynamicEngine(make([]byte, 5000), 8)

	a := engine.Malloc(200)
	_ = engine.Malloc(200) // b
	require.NotNil(t, a)

	require.True(t, engine.Free(a))

	c := engine.Malloc(150)
	require.NotNil(t, c)
	require.Equal(t, a, c, "expected the 150-byte request to be served from a's slot")
}

// A guarded pool hands out distinct, aligned, in-range pointers, and
// rejects freeing an already-free slot.
func TestPoolGuardRejectsDoubleFree(t *testing.T) {
	engine := alloc.NewPoolEngine(make([]byte, 1024), 32, 8, true)

	seen := map[unsafe.Pointer]bool{}
	var last unsafe.Pointer
	for i := 0; i < 5; i++ {
		p := engine.Malloc(0)
		require.NotNil(t, p)
		require.False(t, seen[p])
		require.Zero(t, uintptr(p)%32)
		seen[p] = true
		last = p
	}

	for engine.FreeBlocksCount() > 0 {
		p := engine.Malloc(0)
		require.NotNil(t, p)
	}
	require.Zero(t, engine.FreeBlocksCount())

	require.True(t, engine.Free(last))
	require.False(t, engine.Free(last), "expected freeing an already-free slot to fail")
}

// A stack engine rejects oversized requests, enforces LIFO order, and
// rejects freeing into an empty stack.
func TestStackEnforcesLifoOrder(t *testing.T) {
	const regionSize = 5000
	engine := alloc.NewStackEngine(make([]byte, regionSize), 8)

	require.Nil(t, engine.Malloc(regionSize))

	a := engine.Malloc(512)
	require.NotNil(t, a)
	b := engine.Malloc(256)
	require.NotNil(t, b)

	require.False(t, engine.Free(a), "expected a LIFO violation")
	require.True(t, engine.Free(b))
	require.True(t, engine.Free(a))
	require.False(t, engine.Free(a), "expected a free on an empty stack to fail")
}

// Allocate a dynamic engine until failure, free everything in reverse,
// and confirm the region is once again a single free block.
func TestDynamicAllocateToFailureThenFreeAllReclaimsRegion(t *testing.T) {
	engine := alloc.NewDynamicEngine(make([]byte, 4096), 8)

	var allocations []unsafe.Pointer
	for {
		p := engine.Malloc(64)
		if p == nil {
			break
		}
		allocations = append(allocations, p)
	}
	require.NotEmpty(t, allocations)

	for i := len(allocations) - 1; i >= 0; i-- {
		require.True(t, engine.Free(allocations[i]))
	}

	whole := engine.Malloc(4096 - 64)
	require.NotNil(t, whole, "expected the region to be fully reclaimed")
}

// A second free of the same dynamic-engine pointer is rejected.
func TestDynamicRejectsDoubleFree(t *testing.T) {
	engine := alloc.NewDynamicEngine(make([]byte, 1024), 8)
	a := engine.Malloc(200)
	require.NotNil(t, a)

	require.True(t, engine.Free(a))
	require.False(t, engine.Free(a))
}
