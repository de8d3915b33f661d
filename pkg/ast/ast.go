// Package ast defines the resolved abstract syntax tree that the code
// emitter consumes (spec §1: lexing/parsing/name-resolution are upstream,
// external collaborators; this package is their output contract).
//
// Node shape (Node/Position/Statement/Expression interfaces, one struct
// per node kind with a private marker method) is grounded on the
// teacher's pkg/ast/ast.go; the node set itself is this language's own
// (a dynamically-typed scripting language, not MinZ's statically-typed
// retro-hardware surface).
package ast

import "github.com/kos-lang/kos/pkg/scope"

// Position is a location in the original source.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Node is the base interface every AST node implements.
type Node interface {
	Pos() Position
	End() Position
}

// Statement is implemented by every statement node.
type Statement interface {
	Node
	stmtNode()
}

// Expression is implemented by every expression node.
type Expression interface {
	Node
	exprNode()
}

// File is the top-level resolved compilation unit handed to codegen.
type File struct {
	Name     string
	Scope    *scope.Scope
	Body     []Statement
	StartPos Position
	EndPos   Position
}

func (f *File) Pos() Position { return f.StartPos }
func (f *File) End() Position { return f.EndPos }

// Block groups statements under one lexical scope.
type Block struct {
	Scope    *scope.Scope
	Stmts    []Statement
	StartPos Position
	EndPos   Position
}

func (b *Block) Pos() Position { return b.StartPos }
func (b *Block) End() Position { return b.EndPos }
func (b *Block) stmtNode()     {}

// ExprStmt is an expression evaluated for effect.
type ExprStmt struct {
	X        Expression
	StartPos Position
	EndPos   Position
}

func (s *ExprStmt) Pos() Position { return s.StartPos }
func (s *ExprStmt) End() Position { return s.EndPos }
func (s *ExprStmt) stmtNode()     {}

// VarDecl declares and initializes a single local/global/module variable.
type VarDecl struct {
	Var      *scope.Variable
	Value    Expression // nil means initialize to void
	StartPos Position
	EndPos   Position
}

func (s *VarDecl) Pos() Position { return s.StartPos }
func (s *VarDecl) End() Position { return s.EndPos }
func (s *VarDecl) stmtNode()     {}

// If is an if/else statement.
type If struct {
	Cond     Expression
	Then     *Block
	Else     Statement // *Block, *If (else-if), or nil
	StartPos Position
	EndPos   Position
}

func (s *If) Pos() Position { return s.StartPos }
func (s *If) End() Position { return s.EndPos }
func (s *If) stmtNode()     {}

// While is a pre-tested loop.
type While struct {
	Cond     Expression
	Body     *Block
	StartPos Position
	EndPos   Position
}

func (s *While) Pos() Position { return s.StartPos }
func (s *While) End() Position { return s.EndPos }
func (s *While) stmtNode()     {}

// Repeat is a post-tested (`do { } while`) loop.
type Repeat struct {
	Body     *Block
	Cond     Expression
	StartPos Position
	EndPos   Position
}

func (s *Repeat) Pos() Position { return s.StartPos }
func (s *Repeat) End() Position { return s.EndPos }
func (s *Repeat) stmtNode()     {}

// ForIn is a `for (var x[, y...] in expr)` loop, covering both the
// general iterator-protocol form and the range-specialized form (codegen
// decides which lowering applies — spec §4.3.3 "for-range optimization").
type ForIn struct {
	Targets  []*scope.Variable
	Iterable Expression
	Body     *Block
	StartPos Position
	EndPos   Position
}

func (s *ForIn) Pos() Position { return s.StartPos }
func (s *ForIn) End() Position { return s.EndPos }
func (s *ForIn) stmtNode()     {}

// SwitchCase is one `case` arm.
type SwitchCase struct {
	Keys        []Expression
	Body        *Block
	Fallthrough bool
}

// Switch is a switch statement over a single scrutinee expression.
type Switch struct {
	Scrutinee Expression
	Cases     []*SwitchCase
	Default   *Block // nil if no default case
	StartPos  Position
	EndPos    Position
}

func (s *Switch) Pos() Position { return s.StartPos }
func (s *Switch) End() Position { return s.EndPos }
func (s *Switch) stmtNode()     {}

// TryCatch is a try/catch statement.
type TryCatch struct {
	Try      *Block
	CatchVar *scope.Variable // nil if the exception value is discarded
	Catch    *Block
	StartPos Position
	EndPos   Position
}

func (s *TryCatch) Pos() Position { return s.StartPos }
func (s *TryCatch) End() Position { return s.EndPos }
func (s *TryCatch) stmtNode()     {}

// TryDefer is a try/defer statement: Defer runs on every exit from Try
// (normal completion, exception, break/continue/fallthrough, return).
type TryDefer struct {
	Try      *Block
	Defer    *Block
	StartPos Position
	EndPos   Position
}

func (s *TryDefer) Pos() Position { return s.StartPos }
func (s *TryDefer) End() Position { return s.EndPos }
func (s *TryDefer) stmtNode()     {}

// Break/Continue/Fallthrough terminate or redirect the enclosing
// loop/switch.
type Break struct {
	StartPos Position
	EndPos   Position
}

func (s *Break) Pos() Position { return s.StartPos }
func (s *Break) End() Position { return s.EndPos }
func (s *Break) stmtNode()     {}

type Continue struct {
	StartPos Position
	EndPos   Position
}

func (s *Continue) Pos() Position { return s.StartPos }
func (s *Continue) End() Position { return s.EndPos }
func (s *Continue) stmtNode()     {}

type Fallthrough struct {
	StartPos Position
	EndPos   Position
}

func (s *Fallthrough) Pos() Position { return s.StartPos }
func (s *Fallthrough) End() Position { return s.EndPos }
func (s *Fallthrough) stmtNode()     {}

// Return returns Value (nil means return void) from the enclosing
// function. Non-void returns from a generator body are a compile error
// (spec §7 ReturnInGenerator).
type Return struct {
	Value    Expression
	StartPos Position
	EndPos   Position
}

func (s *Return) Pos() Position { return s.StartPos }
func (s *Return) End() Position { return s.EndPos }
func (s *Return) stmtNode()     {}

// Throw raises Value as a script exception.
type Throw struct {
	Value    Expression
	StartPos Position
	EndPos   Position
}

func (s *Throw) Pos() Position { return s.StartPos }
func (s *Throw) End() Position { return s.EndPos }
func (s *Throw) stmtNode()     {}
