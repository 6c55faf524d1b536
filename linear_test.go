package alloc

import (
	"testing"
)

func TestLinearEngineBasicAllocation(t *testing.T) {
	buf := make([]byte, 256)
	e := NewLinearEngine(buf, 8)
	if !e.IsValid() {
		t.Fatal("expected a valid engine")
	}
	if e.TypeID() != TypeLinear {
		t.Fatalf("got TypeID %d, want %d", e.TypeID(), TypeLinear)
	}

	p1 := e.Malloc(16)
	if p1 == nil {
		t.Fatal("expected a non-nil pointer")
	}
	if uintptr(p1)%8 != 0 {
		t.Fatalf("pointer %v is not 8-byte aligned", p1)
	}

	p2 := e.Malloc(16)
	if p2 == nil {
		t.Fatal("expected a non-nil pointer")
	}
	if uintptr(p2) <= uintptr(p1) {
		t.Fatal("second allocation should land after the first")
	}
}

func TestLinearEngineZeroSizeFails(t *testing.T) {
	e := NewLinearEngine(make([]byte, 64), 8)
	if p := e.Malloc(0); p != nil {
		t.Fatal("expected malloc(0) to fail")
	}
}

func TestLinearEngineOutOfMemory(t *testing.T) {
	e := NewLinearEngine(make([]byte, 16), 8)
	if p := e.Malloc(1024); p != nil {
		t.Fatal("expected an oversized request to fail")
	}
}

func TestLinearEngineFreeIsNoOp(t *testing.T) {
	e := NewLinearEngine(make([]byte, 64), 8)
	p := e.Malloc(8)
	if e.Free(p) {
		t.Fatal("expected Free to always report false")
	}
	if e.AvailableSize() == e.Metrics().Capacity {
		t.Fatal("expected the bump cursor to not have moved back")
	}
}

func TestLinearEngineReset(t *testing.T) {
	e := NewLinearEngine(make([]byte, 64), 8)
	e.Malloc(32)
	before := e.AvailableSize()
	e.Reset()
	after := e.AvailableSize()
	if after <= before {
		t.Fatalf("expected Reset to reclaim space, before=%d after=%d", before, after)
	}
	if after != e.Metrics().Capacity {
		t.Fatalf("expected a full reset to restore full capacity, got %d want %d", after, e.Metrics().Capacity)
	}
}

func TestLinearEngineInvalidConstruction(t *testing.T) {
	e := NewLinearEngine(nil, 8)
	if e.IsValid() {
		t.Fatal("expected an empty buffer to be invalid")
	}
	if p := e.Malloc(1); p != nil {
		t.Fatal("expected malloc on an invalid engine to fail")
	}
}

func TestLinearEngineIsEqual(t *testing.T) {
	buf := make([]byte, 64)
	a := NewLinearEngine(buf, 8)
	sameRegion := NewLinearEngine(buf, 8)
	if !a.IsEqual(a) {
		t.Fatal("engine should equal itself")
	}
	if !a.IsEqual(sameRegion) {
		t.Fatal("two engines over the same backing buffer should be equal")
	}

	other := NewLinearEngine(make([]byte, 64), 8)
	if Equal(a, other) {
		t.Fatal("engines over different regions must not be equal")
	}
}
