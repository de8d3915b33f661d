// Package scope defines the variable/scope resolver's output contract as
// consumed by codegen (spec §1: "The variable/scope resolver's output
// contract (already produced by an earlier pass) as consumed by codegen").
// The resolution pass itself (name binding, closure capture analysis) is
// an upstream collaborator; this package only models its result: the
// Scope/Variable/Frame data that the code emitter reads.
//
// Grounded on pkg/semantic/scope.go's map-based symbol table chain.
package scope

// Kind is the binding kind of a Variable (spec §3 "Variable").
type Kind int

const (
	KindLocal Kind = iota
	KindArgumentReg
	KindArgumentHeap
	KindIndependentLocal
	KindIndependentArgument
	KindGlobal
	KindModule
	KindImported
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindArgumentReg:
		return "argument-in-register"
	case KindArgumentHeap:
		return "argument-on-heap"
	case KindIndependentLocal:
		return "independent-local"
	case KindIndependentArgument:
		return "independent-argument"
	case KindGlobal:
		return "global"
	case KindModule:
		return "module"
	case KindImported:
		return "imported"
	default:
		return "unknown"
	}
}

// IsIndependent reports whether this kind denotes a closure-captured
// binding (spec GLOSSARY "Independent variable").
func (k Kind) IsIndependent() bool {
	return k == KindIndependentLocal || k == KindIndependentArgument
}

// Variable is a named binding (spec §3 "Variable").
type Variable struct {
	Name    string
	Kind    Kind
	IsConst bool
	Home    *Scope

	NumReads        int
	NumAssignments  int
	LocalReads      int
	LocalAssignments int

	// ArrayIdx is the slot index into the variable's container: a
	// register number for locals/arguments, or a slot in the globals
	// array / closure-args array for the other kinds.
	ArrayIdx int

	// Active tracks whether the name is in scope at the current visit
	// position (spec §3 "activation flag").
	Active bool
}

// Scope is a lexical region with an ordered set of declared variables
// (spec §3 "Scope").
type Scope struct {
	Parent *Scope

	IsFunction bool // starts a new frame
	HasFrame   bool
	UsesThis   bool

	vars  map[string]*Variable
	order []*Variable

	NumIndependentLocals int
	NumIndependentArgs   int
	HasRestParam         bool
	EllipsisVar          *Variable

	// Frame is non-nil only when IsFunction is true; it is populated by
	// codegen (pkg/codegen.Frame lives there, not here, to keep this
	// package free of a codegen dependency) and referenced here as an
	// opaque pointer so closures can find their owning frame's data at
	// bind time.
	Frame interface{}
}

// New creates a scope nested in parent (parent may be nil for the module
// top-level scope).
func New(parent *Scope) *Scope {
	return &Scope{Parent: parent, vars: make(map[string]*Variable)}
}

// Declare adds a new variable to this scope. It does not check for
// redefinition; that is the resolver's job upstream (spec §1 out-of-scope
// collaborator) — codegen only ever reads scopes that are already
// well-formed.
func (s *Scope) Declare(v *Variable) {
	v.Home = s
	v.Active = true
	s.vars[v.Name] = v
	s.order = append(s.order, v)
	if v.Kind.IsIndependent() {
		if v.Kind == KindIndependentLocal {
			s.NumIndependentLocals++
		} else {
			s.NumIndependentArgs++
		}
	}
}

// Lookup searches this scope and its ancestors for name, returning the
// nearest active binding.
func (s *Scope) Lookup(name string) *Variable {
	for sc := s; sc != nil; sc = sc.Parent {
		if v, ok := sc.vars[name]; ok && v.Active {
			return v
		}
	}
	return nil
}

// LookupLocal searches only this scope.
func (s *Scope) LookupLocal(name string) *Variable {
	if v, ok := s.vars[name]; ok && v.Active {
		return v
	}
	return nil
}

// Variables returns this scope's declared variables in declaration order.
func (s *Scope) Variables() []*Variable { return s.order }

// EnclosingFunction walks up to the nearest scope that owns a frame.
func (s *Scope) EnclosingFunction() *Scope {
	for sc := s; sc != nil; sc = sc.Parent {
		if sc.IsFunction {
			return sc
		}
	}
	return nil
}

// Deactivate marks every variable declared directly in this scope as out
// of scope; called by codegen when a lexical block ends so that later
// lookups of the same name in a sibling scope do not see stale bindings
// (spec §3 "activation flag").
func (s *Scope) Deactivate() {
	for _, v := range s.order {
		v.Active = false
	}
}
