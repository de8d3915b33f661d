// Package codegen implements the code emitter and function/class
// synthesizer (spec §4.3, §4.4): it walks a resolved *ast.File and
// produces bytecode, a constant pool, and function headers for pkg/vm to
// execute.
//
// Visitor shape (one large method-per-node-kind switch hung off a
// Compiler) is grounded on the teacher's pkg/codegen/z80.go; the register
// bookkeeping style is grounded on pkg/codegen/register_allocator.go.
package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/scope"
)

// Compiler holds the state shared across every function compiled from one
// source file: the constant pool, the currently active frame, and the
// global instruction buffer every function's bytecode is appended to.
type Compiler struct {
	FileName string
	Pool     *constpool.Pool

	frame *Frame // currently active frame; nil outside Compile

	// assigned tracks, per-variable, whether registerFor has already
	// allocated its register/closure slot.
	assigned map[*scope.Variable]bool

	// fnConst caches a function literal's already-synthesized header and
	// constant-pool index, so a FunctionNode revisited during compilation
	// (spec §4.4 step 1: "if already synthesized ... skip") is not
	// re-lowered.
	fnConst map[*ast.FunctionNode]*fnConstEntry

	// globalCode is the module's assembled bytecode: every function's
	// instructions, back to back, addressed by each FunctionHeader's
	// BytecodeOffset/BytecodeSize (spec §4.4 step 13).
	globalCode  []byte
	globalLines []byte

	// numGlobals tracks one past the highest global/module/imported
	// ArrayIdx seen, since the out-of-scope resolver that assigns those
	// slots never reports a count directly (spec §3 Variable: "array_idx
	// ... into its container — globals array").
	numGlobals int
}

// NumGlobals returns the size the module's globals array must have.
func (c *Compiler) NumGlobals() int { return c.numGlobals }

func (c *Compiler) trackGlobal(idx int) {
	if idx+1 > c.numGlobals {
		c.numGlobals = idx + 1
	}
}

// NewCompiler returns a compiler that will intern constants into pool and
// attribute errors to fileName.
func NewCompiler(fileName string, pool *constpool.Pool) *Compiler {
	return &Compiler{
		FileName: fileName,
		Pool:     pool,
		assigned: make(map[*scope.Variable]bool),
		fnConst:  make(map[*ast.FunctionNode]*fnConstEntry),
	}
}

// Compile lowers file's top-level statements as the module's entry
// function body and returns its header. Every nested function/class
// literal reachable from file is compiled as a side effect and interned
// into the pool.
func (c *Compiler) Compile(file *ast.File) (*bytecode.FunctionHeader, error) {
	nameIdx := c.Pool.InternString([]byte(file.Name), constpool.NoEscape)
	header := bytecode.NewFunctionHeader(uint32(nameIdx))
	header.MinArgs = 0
	header.NumNamedArgs = 0

	f := newFrame(file.Scope, header, nil)
	c.frame = f

	for _, stmt := range file.Body {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	// fall off the end of the module body the same as a function falling
	// off without an explicit return: load void into the implicit return
	// register and return it.
	retReg, err := f.Alloc.AllocTemp()
	if err != nil {
		return nil, c.errorAt(file, ErrTooManyRegisters, "register capacity exceeded")
	}
	f.SetLine(file.End().Line)
	if _, err := f.Emit(bytecode.LOAD_VOID, int64(retReg)); err != nil {
		return nil, err
	}
	if _, err := f.Emit(bytecode.RETURN, int64(retReg)); err != nil {
		return nil, err
	}

	c.finalizeFrame(f)
	return header, nil
}

// finalizeFrame appends a compiled frame's code and line table to the
// module's global buffers and stamps the resulting offsets/sizes/register
// count into its header (spec §4.4 step 12-13).
func (c *Compiler) finalizeFrame(f *Frame) {
	code := f.Code()
	lines := f.Lines().Encode()

	f.Header.BytecodeOffset = uint32(len(c.globalCode))
	f.Header.BytecodeSize = uint32(len(code))
	f.Header.LineTableOffset = uint32(len(c.globalLines))
	f.Header.LineTableSize = uint32(len(lines))
	f.Header.NumRegs = uint8(clampRegCount(f.Alloc.Count()))
	f.Header.Lines = f.Lines()
	if f.closureReg != 0 {
		f.Header.OwnClosureReg = f.closureReg - 1
	}

	c.globalCode = append(c.globalCode, code...)
	c.globalLines = append(c.globalLines, lines...)
}

func clampRegCount(n int) int {
	if n > 255 {
		return 255
	}
	return n
}

// GlobalCode returns the module's assembled bytecode buffer.
func (c *Compiler) GlobalCode() []byte { return c.globalCode }

// GlobalLines returns the module's assembled address-to-line buffer.
func (c *Compiler) GlobalLines() []byte { return c.globalLines }
