package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Decoded is an instruction pulled apart into its opcode and raw operand
// values, in encoding order. Register/Imm8U/Imm16U/Imm32U operands are
// stored as their unsigned bit pattern in the low bits of the int64;
// Imm8S/JumpRel operands are sign-extended.
type Decoded struct {
	Op       Opcode
	Operands []int64
	Offset   int // byte offset this instruction was decoded from
	Size     int // total encoded size including opcode byte
}

// Reg returns operand i as a register index.
func (d Decoded) Reg(i int) byte { return byte(d.Operands[i]) }

// Emit appends opcode op with the given operands to buf, validating operand
// count and widths against the static operand table, and returns the new
// buffer along with the number of bytes written.
func Emit(buf []byte, op Opcode, operands ...int64) ([]byte, int) {
	kinds := Operands(op)
	if len(operands) != len(kinds) {
		panic(fmt.Sprintf("bytecode: %s expects %d operands, got %d", op, len(kinds), len(operands)))
	}
	start := len(buf)
	buf = append(buf, byte(op))
	for i, k := range kinds {
		v := operands[i]
		switch k {
		case OpReg, OpImm8U:
			buf = append(buf, byte(v))
		case OpImm8S:
			buf = append(buf, byte(int8(v)))
		case OpImm16U:
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(v))
			buf = append(buf, b[:]...)
		case OpImm32U:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v))
			buf = append(buf, b[:]...)
		case OpJumpRel:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
			buf = append(buf, b[:]...)
		}
	}
	return buf, len(buf) - start
}

// PatchJump overwrites the 4-byte relative jump operand located at
// operandOffset (the byte immediately after the opcode and any register
// operands that precede it) with delta.
func PatchJump(code []byte, operandOffset int, delta int32) {
	binary.LittleEndian.PutUint32(code[operandOffset:operandOffset+4], uint32(delta))
}

// Decode reads one instruction from code starting at offset.
func Decode(code []byte, offset int) Decoded {
	op := Opcode(code[offset])
	kinds := Operands(op)
	d := Decoded{Op: op, Offset: offset, Operands: make([]int64, len(kinds))}
	p := offset + 1
	for i, k := range kinds {
		switch k {
		case OpReg, OpImm8U:
			d.Operands[i] = int64(code[p])
			p++
		case OpImm8S:
			d.Operands[i] = int64(int8(code[p]))
			p++
		case OpImm16U:
			d.Operands[i] = int64(binary.LittleEndian.Uint16(code[p : p+2]))
			p += 2
		case OpImm32U:
			d.Operands[i] = int64(binary.LittleEndian.Uint32(code[p : p+4]))
			p += 4
		case OpJumpRel:
			d.Operands[i] = int64(int32(binary.LittleEndian.Uint32(code[p : p+4])))
			p += 4
		}
	}
	d.Size = p - offset
	return d
}

// Reassemble re-encodes a Decoded instruction to bytes; used to verify the
// disassemble/reassemble round trip (spec §8, "Round-trip" property).
func Reassemble(d Decoded) []byte {
	buf, _ := Emit(nil, d.Op, d.Operands...)
	return buf
}

// Disassemble renders one decoded instruction in a human-readable form.
func Disassemble(d Decoded) string {
	kinds := Operands(d.Op)
	s := d.Op.String()
	for i, k := range kinds {
		switch k {
		case OpReg:
			s += fmt.Sprintf(" r%d", d.Operands[i])
		case OpJumpRel:
			s += fmt.Sprintf(" %+d", d.Operands[i])
		default:
			s += fmt.Sprintf(" %d", d.Operands[i])
		}
	}
	return s
}

// DisassembleFunc renders every instruction between [start, start+size) in
// code, each prefixed with its offset relative to start.
func DisassembleFunc(code []byte, start, size int) []string {
	var lines []string
	for off := 0; off < size; {
		d := Decode(code, start+off)
		lines = append(lines, fmt.Sprintf("%6d  %s", off, Disassemble(d)))
		off += d.Size
	}
	return lines
}
