package regalloc

import "testing"

func TestAllocTemp_ExtendsAndReusesFreed(t *testing.T) {
	a := New()
	r0, err := a.AllocTemp()
	if err != nil || r0 != 0 {
		t.Fatalf("first AllocTemp = %d, %v, want 0, nil", r0, err)
	}
	r1, err := a.AllocTemp()
	if err != nil || r1 != 1 {
		t.Fatalf("second AllocTemp = %d, %v, want 1, nil", r1, err)
	}
	a.Free(r0)
	r2, err := a.AllocTemp()
	if err != nil || r2 != 0 {
		t.Errorf("AllocTemp after freeing r0 = %d, %v, want 0, nil (smallest free register)", r2, err)
	}
	if a.Count() != 2 {
		t.Errorf("frame count = %d, want 2 (no growth from reuse)", a.Count())
	}
}

func TestAllocContiguous_PrefersFreeRunThenExtends(t *testing.T) {
	a := New()
	for i := 0; i < 4; i++ {
		if _, err := a.AllocTemp(); err != nil {
			t.Fatalf("AllocTemp: %v", err)
		}
	}
	a.Free(1)
	a.Free(2)

	start, err := a.AllocContiguous(2)
	if err != nil {
		t.Fatalf("AllocContiguous: %v", err)
	}
	if start != 1 {
		t.Errorf("AllocContiguous(2) = %d, want 1 (reusing the free run)", start)
	}

	start2, err := a.AllocContiguous(3)
	if err != nil {
		t.Fatalf("AllocContiguous: %v", err)
	}
	if start2 != 4 {
		t.Errorf("AllocContiguous(3) = %d, want 4 (extending the frame, no run of 3 free)", start2)
	}
}

func TestAllocContiguous_RejectsNonPositive(t *testing.T) {
	a := New()
	if _, err := a.AllocContiguous(0); err == nil {
		t.Errorf("expected an error allocating 0 contiguous registers")
	}
}

func TestAllocDest_SkipsAliasingIntoABoundSource(t *testing.T) {
	a := New()
	bound, _ := a.AllocTemp()
	a.BindVariable(bound)

	// source is bound and equals preferred: a fresh temp is required so the
	// destination never silently clobbers the variable's own register.
	dst, err := a.AllocDest(&bound, bound)
	if err != nil {
		t.Fatalf("AllocDest: %v", err)
	}
	if dst == bound {
		t.Errorf("AllocDest reused the bound source register %d as its own destination", bound)
	}

	// source is bound but preferred names a different register: honor
	// preferred directly.
	other := byte(9)
	dst2, err := a.AllocDest(&other, bound)
	if err != nil {
		t.Fatalf("AllocDest: %v", err)
	}
	if dst2 != other {
		t.Errorf("AllocDest(preferred=%d, bound source) = %d, want %d", other, dst2, other)
	}

	// source is an ordinary temp, no preference: reuse it in place.
	temp, _ := a.AllocTemp()
	dst3, err := a.AllocDest(nil, temp)
	if err != nil {
		t.Fatalf("AllocDest: %v", err)
	}
	if dst3 != temp {
		t.Errorf("AllocDest(nil, temp) = %d, want %d (reuse the temp)", dst3, temp)
	}
}

func TestFree_BoundRegisterIsNoOp(t *testing.T) {
	a := New()
	bound, _ := a.AllocTemp()
	a.BindVariable(bound)
	a.Free(bound)

	next, _ := a.AllocTemp()
	if next == bound {
		t.Errorf("Free released a variable-bound register back to the free pool")
	}
}

func TestIsTemp_DistinguishesBoundFromTemporary(t *testing.T) {
	a := New()
	temp, _ := a.AllocTemp()
	bound, _ := a.AllocTemp()
	a.BindVariable(bound)

	if !a.IsTemp(temp) {
		t.Errorf("expected freshly allocated register to report IsTemp")
	}
	if a.IsTemp(bound) {
		t.Errorf("expected a bound register to report !IsTemp")
	}
}

func TestAllocTemp_ExhaustionReturnsError(t *testing.T) {
	a := New()
	for i := 0; i < MaxRegisters; i++ {
		if _, err := a.AllocTemp(); err != nil {
			t.Fatalf("unexpected error allocating register %d: %v", i, err)
		}
	}
	if _, err := a.AllocTemp(); err != ErrTooManyRegisters {
		t.Errorf("expected ErrTooManyRegisters on the 256th register, got %v", err)
	}
}
