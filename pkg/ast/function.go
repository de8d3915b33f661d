package ast

import "github.com/kos-lang/kos/pkg/scope"

// FunctionNode is the shared body of a function literal, method, and
// class constructor; the Function/Class Synthesizer (spec §4.4) lowers
// one of these into a FunctionHeader plus emitted bytecode.
type FunctionNode struct {
	Name  string // empty for anonymous function expressions
	Scope *scope.Scope

	Params        []*scope.Variable
	DefaultValues map[int]Expression // param index -> default-value expr, for trailing optional params
	RestParam     *scope.Variable    // non-nil if the last param is `...rest`
	EllipsisParam *scope.Variable    // non-nil if declared with a bare `...` ellipsis marker

	IsGenerator   bool
	IsConstructor bool

	// Captures lists the outer scopes this function's body references,
	// in bind order; the synthesizer turns these into BIND/BIND_SELF
	// instructions at the call site that produces the closure value
	// (spec §4.4 step covering closure capture).
	Captures []*scope.Scope

	Body *Block

	DefLine  int
	StartPos Position
	EndPos   Position
}
