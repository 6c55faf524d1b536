package alloc

import "testing"

func TestStackEngineLifoOrder(t *testing.T) {
	e := NewStackEngine(make([]byte, 256), 8)
	if !e.IsValid() {
		t.Fatal("expected a valid engine")
	}

	p1 := e.Malloc(16)
	p2 := e.Malloc(16)
	p3 := e.Malloc(16)
	if p1 == nil || p2 == nil || p3 == nil {
		t.Fatal("expected all three allocations to succeed")
	}

	if e.Free(p1) {
		t.Fatal("freeing a non-top block must be rejected")
	}
	if !e.Free(p3) {
		t.Fatal("freeing the top block must succeed")
	}
	if !e.Free(p2) {
		t.Fatal("freeing the new top block must succeed")
	}
	if !e.Free(p1) {
		t.Fatal("freeing the last remaining block must succeed")
	}
	if e.Free(p1) {
		t.Fatal("freeing into an empty stack must be rejected")
	}
}

func TestStackEngineReuseAfterFree(t *testing.T) {
	e := NewStackEngine(make([]byte, 128), 8)
	p1 := e.Malloc(16)
	if !e.Free(p1) {
		t.Fatal("expected the only block to free successfully")
	}
	p2 := e.Malloc(16)
	if p2 == nil {
		t.Fatal("expected reallocation to succeed")
	}
	if p1 != p2 {
		t.Fatal("expected the freed slot to be reused at the same address")
	}
}

func TestStackEngineZeroSizeFails(t *testing.T) {
	e := NewStackEngine(make([]byte, 64), 8)
	if p := e.Malloc(0); p != nil {
		t.Fatal("expected malloc(0) to fail")
	}
}

func TestStackEngineOutOfMemory(t *testing.T) {
	e := NewStackEngine(make([]byte, 32), 8)
	if p := e.Malloc(1024); p != nil {
		t.Fatal("expected an oversized request to fail")
	}
}

func TestStackEngineInvalidConstruction(t *testing.T) {
	e := NewStackEngine(nil, 8)
	if e.IsValid() {
		t.Fatal("expected an empty buffer to be invalid")
	}
}

func TestStackEngineAlignment(t *testing.T) {
	e := NewStackEngine(make([]byte, 256), 16)
	p := e.Malloc(3)
	if p == nil {
		t.Fatal("expected allocation to succeed")
	}
	if uintptr(p)%16 != 0 {
		t.Fatalf("pointer %v is not 16-byte aligned", p)
	}
}
