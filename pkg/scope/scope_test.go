package scope

import "testing"

func TestDeclareAndLookup_WalksParentChain(t *testing.T) {
	outer := New(nil)
	inner := New(outer)

	x := &Variable{Name: "x", Kind: KindLocal}
	outer.Declare(x)

	if got := inner.Lookup("x"); got != x {
		t.Errorf("Lookup from inner scope did not find outer's x")
	}
	if got := inner.LookupLocal("x"); got != nil {
		t.Errorf("LookupLocal should not see an ancestor's variable, got %v", got)
	}
	if got := outer.LookupLocal("x"); got != x {
		t.Errorf("LookupLocal in the declaring scope did not find x")
	}
}

func TestLookup_ReturnsNearestBinding(t *testing.T) {
	outer := New(nil)
	inner := New(outer)

	outerX := &Variable{Name: "x", Kind: KindLocal}
	innerX := &Variable{Name: "x", Kind: KindLocal}
	outer.Declare(outerX)
	inner.Declare(innerX)

	if got := inner.Lookup("x"); got != innerX {
		t.Errorf("expected shadowing inner declaration to win")
	}
}

func TestLookup_MissingNameReturnsNil(t *testing.T) {
	s := New(nil)
	if got := s.Lookup("nope"); got != nil {
		t.Errorf("expected nil for an undeclared name, got %v", got)
	}
}

func TestDeclare_TracksIndependentCounts(t *testing.T) {
	s := New(nil)
	s.Declare(&Variable{Name: "a", Kind: KindLocal})
	s.Declare(&Variable{Name: "b", Kind: KindIndependentLocal})
	s.Declare(&Variable{Name: "c", Kind: KindIndependentArgument})
	s.Declare(&Variable{Name: "d", Kind: KindIndependentLocal})

	if s.NumIndependentLocals != 2 {
		t.Errorf("NumIndependentLocals = %d, want 2", s.NumIndependentLocals)
	}
	if s.NumIndependentArgs != 1 {
		t.Errorf("NumIndependentArgs = %d, want 1", s.NumIndependentArgs)
	}
}

func TestDeclare_SetsHomeAndActive(t *testing.T) {
	s := New(nil)
	v := &Variable{Name: "x", Kind: KindLocal}
	s.Declare(v)

	if v.Home != s {
		t.Errorf("Declare did not set Home to the declaring scope")
	}
	if !v.Active {
		t.Errorf("Declare did not mark the variable active")
	}
}

func TestDeactivate_HidesScopesOwnVariablesOnly(t *testing.T) {
	outer := New(nil)
	inner := New(outer)

	outerX := &Variable{Name: "x", Kind: KindLocal}
	innerY := &Variable{Name: "y", Kind: KindLocal}
	outer.Declare(outerX)
	inner.Declare(innerY)

	inner.Deactivate()

	if inner.Lookup("y") != nil {
		t.Errorf("expected y to be inactive after Deactivate")
	}
	if inner.Lookup("x") != outerX {
		t.Errorf("Deactivate on inner scope should not affect the outer scope's variables")
	}
}

func TestVariables_PreservesDeclarationOrder(t *testing.T) {
	s := New(nil)
	a := &Variable{Name: "a", Kind: KindLocal}
	b := &Variable{Name: "b", Kind: KindLocal}
	c := &Variable{Name: "c", Kind: KindLocal}
	s.Declare(a)
	s.Declare(b)
	s.Declare(c)

	got := s.Variables()
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Errorf("Variables() = %v, want [a b c] in declaration order", got)
	}
}

func TestEnclosingFunction_SkipsNonFunctionScopes(t *testing.T) {
	fn := New(nil)
	fn.IsFunction = true
	block := New(fn)
	nested := New(block)

	if got := nested.EnclosingFunction(); got != fn {
		t.Errorf("EnclosingFunction did not walk up to the owning function scope")
	}
	if got := New(nil).EnclosingFunction(); got != nil {
		t.Errorf("expected nil EnclosingFunction for a scope chain with no function scope")
	}
}

func TestKind_StringAndIsIndependent(t *testing.T) {
	cases := []struct {
		k             Kind
		str           string
		isIndependent bool
	}{
		{KindLocal, "local", false},
		{KindArgumentReg, "argument-in-register", false},
		{KindArgumentHeap, "argument-on-heap", false},
		{KindIndependentLocal, "independent-local", true},
		{KindIndependentArgument, "independent-argument", true},
		{KindGlobal, "global", false},
		{KindModule, "module", false},
		{KindImported, "imported", false},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.str {
			t.Errorf("%v.String() = %q, want %q", c.k, got, c.str)
		}
		if got := c.k.IsIndependent(); got != c.isIndependent {
			t.Errorf("%v.IsIndependent() = %v, want %v", c.k, got, c.isIndependent)
		}
	}
}
