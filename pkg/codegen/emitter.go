package codegen

import (
	"github.com/kos-lang/kos/pkg/bytecode"
)

// maxCodeSize is the implementation limit on total emitted code for one
// module (spec §4.3.1: "at least 16 MiB").
const maxCodeSize = 16 << 20

// jumpArray is a small grow-on-demand vector of placeholder jump-operand
// offsets awaiting a common target (spec §4.3.2).
type jumpArray []int

func (j *jumpArray) add(operandOffset int) { *j = append(*j, operandOffset) }

// Emitter accumulates one function's bytecode and its address-to-line
// table (spec §4.3.1).
type Emitter struct {
	code  []byte
	lines bytecode.LineTable
	line  int // current source line, set by the statement/expression visitor
}

func newEmitter() *Emitter {
	return &Emitter{}
}

// Offset returns the next instruction's offset within this function.
func (e *Emitter) Offset() int { return len(e.code) }

// SetLine updates the line attributed to instructions emitted from here
// on, recording a new address-to-line entry.
func (e *Emitter) SetLine(line int) {
	e.line = line
	e.lines.Add(uint32(e.Offset()), uint32(line))
}

// Emit appends one instruction and returns its offset.
func (e *Emitter) Emit(op bytecode.Opcode, operands ...int64) (int, error) {
	off := e.Offset()
	var n int
	e.code, n = bytecode.Emit(e.code, op, operands...)
	_ = n
	if len(e.code) > maxCodeSize {
		return off, errCodeTooLarge
	}
	return off, nil
}

// EmitJump appends a jump-family instruction whose relative-delta operand
// is a placeholder, registers that operand's offset into arr, and returns
// the instruction's offset.
func (e *Emitter) EmitJump(arr *jumpArray, op bytecode.Opcode, operands ...int64) (int, error) {
	if len(operands) == len(bytecode.Operands(op))-1 {
		operands = append(operands, 0) // caller omitted the delta placeholder
	}
	off, err := e.Emit(op, operands...)
	if err != nil {
		return off, err
	}
	// the jump-delta operand is always the last encoded operand and is
	// always 4 bytes (OpJumpRel), per the static operand table.
	operandOffset := e.Offset() - 4
	arr.add(operandOffset)
	return off, nil
}

// PatchTo patches every placeholder registered in arr so that its jump
// lands at targetOffset.
func (e *Emitter) PatchTo(arr jumpArray, targetOffset int) {
	for _, operandOffset := range arr {
		instrSize := 4 // width of the trailing jump-delta operand itself
		delta := int32(targetOffset - (operandOffset + instrSize))
		bytecode.PatchJump(e.code, operandOffset, delta)
	}
}

// Code returns the accumulated instruction stream.
func (e *Emitter) Code() []byte { return e.code }

// Lines returns the accumulated address-to-line table.
func (e *Emitter) Lines() *bytecode.LineTable { return &e.lines }

var errCodeTooLarge = CompileError{Kind: ErrCodeTooLarge, Message: "emitted code exceeds implementation limit"}
