package constpool

import (
	"math"
	"testing"

	"github.com/kos-lang/kos/pkg/bytecode"
)

func TestInternInt_Dedups(t *testing.T) {
	p := New()
	a := p.InternInt(42)
	b := p.InternInt(42)
	c := p.InternInt(43)
	if a != b {
		t.Errorf("InternInt(42) twice returned different indices: %d, %d", a, b)
	}
	if a == c {
		t.Errorf("InternInt(43) collided with InternInt(42)'s index")
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 constants, got %d", p.Len())
	}
}

func TestInternFloat_DistinguishesSignedZero(t *testing.T) {
	p := New()
	pos := p.InternFloat(0.0)
	neg := p.InternFloat(math.Copysign(0, -1))
	if pos == neg {
		t.Errorf("+0.0 and -0.0 interned to the same constant, expected distinct bit patterns")
	}
	if p.InternFloat(0.0) != pos {
		t.Errorf("re-interning 0.0 did not dedup")
	}
}

func TestInternString_DedupsByEscapeAndContent(t *testing.T) {
	p := New()
	a := p.InternString([]byte("hi"), NoEscape)
	b := p.InternString([]byte("hi"), NoEscape)
	c := p.InternString([]byte("hi"), WithEscape)
	if a != b {
		t.Errorf("identical no-escape strings did not dedup")
	}
	if a == c {
		t.Errorf("different escape modes collapsed to the same constant before narrowing")
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 distinct string constants, got %d", p.Len())
	}
}

func TestInternString_NoEscapeNarrowsExistingWithEscapeEntry(t *testing.T) {
	p := New()
	withEscape := p.InternString([]byte("hi"), WithEscape)
	noEscape := p.InternString([]byte("hi"), NoEscape)

	if withEscape != noEscape {
		t.Fatalf("expected the no-escape intern to reuse the existing entry's index, got %d and %d", withEscape, noEscape)
	}
	if p.Get(withEscape).Escape != NoEscape {
		t.Errorf("expected the existing entry's escape mode to narrow to NoEscape in place")
	}
	if p.Len() != 1 {
		t.Errorf("narrowing should not create a second entry, got %d constants", p.Len())
	}
}

func TestInternFunction_NeverDedups(t *testing.T) {
	p := New()
	h1 := bytecode.NewFunctionHeader(0)
	h2 := bytecode.NewFunctionHeader(0)
	a := p.InternFunction(h1)
	b := p.InternFunction(h2)
	if a == b {
		t.Errorf("two function constants collapsed to one index; functions must never be deduped")
	}
}

func TestInternPrototype_NeverDedups(t *testing.T) {
	p := New()
	a := p.InternPrototype()
	b := p.InternPrototype()
	if a == b {
		t.Errorf("two prototype constants collapsed to one index; prototypes must never be deduped")
	}
}

func TestFromOrder_RebuildsLookupOnly(t *testing.T) {
	p := New()
	p.InternInt(7)
	p.InternString([]byte("x"), NoEscape)

	rebuilt := FromOrder(p.Order)
	if rebuilt.Len() != p.Len() {
		t.Fatalf("FromOrder changed the constant count: got %d, want %d", rebuilt.Len(), p.Len())
	}
	if rebuilt.Get(0).Int != 7 {
		t.Errorf("FromOrder lost constant data at index 0")
	}
}
