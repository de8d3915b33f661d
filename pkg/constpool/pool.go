// Package constpool implements the Kos compiler's constant pool: it
// deduplicates integers, floats, strings, function templates, and
// class-prototype placeholders into an ordered list referenced by index
// from bytecode (spec §3 "Constant", §4.2).
package constpool

import (
	"math"

	"github.com/kos-lang/kos/pkg/bytecode"
)

// Kind discriminates the constant-pool variants.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindFunction
	KindPrototype
)

// EscapeMode records whether a string constant was tagged by the parser as
// raw ("no escape processing needed") or as containing escape sequences.
// No-escape sorts before with-escape (spec §4.2).
type EscapeMode int

const (
	NoEscape EscapeMode = iota
	WithEscape
)

// Constant is one entry of the pool.
type Constant struct {
	Kind   Kind
	Index  int
	Int    int64
	Float  float64
	Str    []byte
	Escape EscapeMode
	Func   *bytecode.FunctionHeader
}

type intKey struct{ v int64 }
type floatKey struct{ bits uint64 }
type stringKey struct {
	escape EscapeMode
	s      string
}

// Pool is the per-module constant pool. Lookup is via Go maps rather than
// the reference implementation's balanced tree (see DESIGN.md: no example
// repo in the retrieval pack carries a generic ordered-map/balanced-tree
// dependency, and the teacher's own symbol tables (pkg/semantic/scope.go)
// are plain `map[string]Symbol` — we follow that precedent). Insertion
// order is preserved in Order so the emitter can serialize the pool after
// code, in the order constants were first interned.
type Pool struct {
	Order []*Constant

	ints    map[intKey]*Constant
	floats  map[floatKey]*Constant
	strings map[stringKey]*Constant
	// functions and prototypes are never deduplicated (spec §3): every
	// intern call appends a fresh entry.
}

// New returns an empty constant pool.
func New() *Pool {
	return &Pool{
		ints:    make(map[intKey]*Constant),
		floats:  make(map[floatKey]*Constant),
		strings: make(map[stringKey]*Constant),
	}
}

func (p *Pool) insert(c *Constant) *Constant {
	c.Index = len(p.Order)
	p.Order = append(p.Order, c)
	return c
}

// InternInt interns an integer constant by value. Callers implementing the
// LOAD_INT8 fast path (spec §4.2: integers in [-128,127] bypass the pool)
// should not call this for such values.
func (p *Pool) InternInt(v int64) int {
	k := intKey{v}
	if c, ok := p.ints[k]; ok {
		return c.Index
	}
	c := p.insert(&Constant{Kind: KindInt, Int: v})
	p.ints[k] = c
	return c.Index
}

// InternFloat interns a float constant, comparing by exact bit pattern so
// that -0.0 and +0.0 remain distinct constants (spec §4.2).
func (p *Pool) InternFloat(v float64) int {
	k := floatKey{math.Float64bits(v)}
	if c, ok := p.floats[k]; ok {
		return c.Index
	}
	c := p.insert(&Constant{Kind: KindFloat, Float: v})
	p.floats[k] = c
	return c.Index
}

// InternString interns a string constant. Dedup compares first by escape
// mode then by byte content (spec §4.2). When a no-escape intern matches an
// existing with-escape entry of the same bytes, the no-escape (narrower)
// interpretation wins and replaces the stored escape mode in place, so
// existing references to that index remain valid (spec §4.2 "String
// normalization").
func (p *Pool) InternString(bytes []byte, escape EscapeMode) int {
	s := string(bytes)
	if escape == NoEscape {
		if c, ok := p.strings[stringKey{WithEscape, s}]; ok {
			delete(p.strings, stringKey{WithEscape, s})
			c.Escape = NoEscape
			p.strings[stringKey{NoEscape, s}] = c
			return c.Index
		}
	}
	k := stringKey{escape, s}
	if c, ok := p.strings[k]; ok {
		return c.Index
	}
	c := p.insert(&Constant{Kind: KindString, Str: bytes, Escape: escape})
	p.strings[k] = c
	return c.Index
}

// InternFunction appends a new function constant. Function constants are
// never deduplicated across bodies, even if two bodies happen to produce
// identical bytecode (spec §3: "functions by their bytecode offset, i.e.
// not deduped across bodies").
func (p *Pool) InternFunction(h *bytecode.FunctionHeader) int {
	return p.insert(&Constant{Kind: KindFunction, Func: h}).Index
}

// InternPrototype appends a new class-prototype placeholder. Prototypes
// are never deduplicated (spec §3: "prototypes by index, never deduped").
func (p *Pool) InternPrototype() int {
	return p.insert(&Constant{Kind: KindPrototype}).Index
}

// FromOrder rebuilds a Pool purely for lookup (Get), from a previously
// serialized Order slice (kosvm's compiled-module loader: a loaded
// program is only ever read from, never re-interned into, so the dedup
// maps don't need reconstructing).
func FromOrder(order []*Constant) *Pool {
	return &Pool{Order: order}
}

// Len returns the number of interned constants.
func (p *Pool) Len() int { return len(p.Order) }

// Get returns the constant at index i.
func (p *Pool) Get(i int) *Constant { return p.Order[i] }
