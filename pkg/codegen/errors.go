package codegen

import (
	"fmt"

	"github.com/kos-lang/kos/pkg/ast"
)

// CompileError is a positioned compile-time error (spec §7). It is
// grounded on the teacher's semantic.ErrorWithPosition: same shape,
// rendered as "file:line:col: Kind: message", reused here because the emitter
// needs the identical positioned-error contract the teacher's analyzer
// uses.
type CompileError struct {
	Kind     string
	Message  string
	Position ast.Position
	File     string
}

func (e CompileError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Position.Line, e.Position.Column, e.Kind, e.Message)
	}
	return fmt.Sprintf("line %d, col %d: %s: %s", e.Position.Line, e.Position.Column, e.Kind, e.Message)
}

// Compile-time error kinds (spec §7).
const (
	ErrTooManyRegisters      = "TooManyRegisters"
	ErrTooManyConstants      = "TooManyConstants"
	ErrCodeTooLarge          = "CodeTooLarge"
	ErrConstAssignment       = "ConstAssignment"
	ErrRedefinedVariable     = "RedefinedVariable"
	ErrUndefinedVariable     = "UndefinedVariable"
	ErrDuplicateProperty     = "DuplicateProperty"
	ErrExpectedRefinement    = "ExpectedRefinement"
	ErrExpectedIdentifier    = "ExpectedIdentifier"
	ErrOperandNotNumeric     = "OperandNotNumeric"
	ErrOperandNotString      = "OperandNotString"
	ErrInvalidIndex          = "InvalidIndex"
	ErrInvalidNumericLiteral = "InvalidNumericLiteral"
	ErrReturnInGenerator     = "ReturnInGenerator"
	ErrCatchNestingTooDeep   = "CatchNestingTooDeep"
	ErrTooManyArgs           = "TooManyArgs"
	ErrTooManyVarsForRange   = "TooManyVarsForRange"
	ErrUnexpectedSuper       = "UnexpectedSuper"
	ErrUnexpectedUnderscore  = "UnexpectedUnderscore"
	ErrCannotInvokeVoidCtor  = "CannotInvokeVoidCtor"
	ErrNoSuchModuleVariable  = "NoSuchModuleVariable"
	ErrCannotYield           = "CannotYield"
)

func (c *Compiler) errorAt(n ast.Node, kind, format string, args ...interface{}) error {
	return CompileError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Position: n.Pos(),
		File:     c.FileName,
	}
}
