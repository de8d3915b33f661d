package bytecode

// Flag bits for FunctionHeader.Flags (spec §3, §6.2).
const (
	FlagIsClass     uint8 = 1 << 0
	FlagIsGenerator uint8 = 1 << 1
	FlagIsClosure   uint8 = 1 << 2
	FlagHasEllipsis uint8 = 1 << 3
)

// ParamKind classifies where a parameter's value lives once bound (spec
// §4.3.5's variable-kind distinctions, restricted to the subset that can
// occur as a function parameter).
type ParamKind uint8

const (
	ParamArgReg ParamKind = iota
	ParamArgHeap
	ParamArgIndependent
)

// LoadInstr selects which load opcode a call site should use to push this
// function's value: LOAD_CONST{,8} for plain function constants that never
// need per-instantiation closures/defaults wired at load time, LOAD_FUN{,8}
// when the function must be synthesized as a fresh closure value (spec
// §4.3.4 "Function literals").
type LoadInstr uint8

const (
	LoadUseConst LoadInstr = iota
	LoadUseFun
)

// FunctionHeader is the function-constant record written into the
// constant pool (spec §3 "Function constant header", §6.2).
type FunctionHeader struct {
	NameIndex uint32 // name-string constant index

	NumNamedArgs    uint8
	NumDeclDefArgs  uint8
	NumUsedDefArgs  uint8
	MinArgs         uint8
	ParamNameIdx    []uint32 // one string-constant index per named arg, in order

	// ParamKind/ParamSlot record, per named argument, where the call
	// prologue must deposit its value: ParamArgReg addresses ParamSlot as
	// a plain frame register, ParamArgHeap/ParamArgIndependent address it
	// as a slot in the args-heap array (ArgsReg) / this frame's own
	// closure-cell array (OwnClosureReg) respectively.
	ParamKind []ParamKind
	ParamSlot []byte

	ThisReg      byte
	RestReg      byte
	EllipsisReg  byte
	ArgsReg      byte
	BaseCtorReg  byte
	BaseProtoReg byte

	// OwnClosureReg is the register holding this frame's own closure-cell
	// array, KOSNoReg if the function captures nothing of its own.
	// BIND_SELF's operand encoding carries no source register (spec
	// §6.1's BIND_SELF(dst, slot) shape), so the interpreter resolves the
	// implicit source through this field instead.
	OwnClosureReg byte

	ClosureSize uint8 // number of bind registers this function expects
	NumBinds    uint8
	NumRegs     uint8 // total register count for this frame

	// BindRegs maps each bind slot (as BIND/BIND_SELF address it at the
	// creation call site) to the register in THIS function's own frame
	// that should receive the bound value at call time: slots 0/1 are
	// BaseCtorReg/BaseProtoReg for a derived constructor, the rest are the
	// registers synthesizeFunction reserved per captured enclosing scope.
	BindRegs []byte

	Flags     uint8
	LoadInstr LoadInstr

	BytecodeOffset uint32
	BytecodeSize   uint32

	LineTableOffset uint32
	LineTableSize   uint32

	DefLine          uint32
	InstructionCount uint32

	Lines *LineTable // retained in-memory for lookup; encoded form lives in the module's line buffer
}

// NewFunctionHeader returns a header with every register field defaulted
// to KOSNoReg, matching an "incomplete register map" (spec §6.1).
func NewFunctionHeader(name uint32) *FunctionHeader {
	return &FunctionHeader{
		NameIndex:    name,
		ThisReg:      KOSNoReg,
		RestReg:      KOSNoReg,
		EllipsisReg:  KOSNoReg,
		ArgsReg:      KOSNoReg,
		BaseCtorReg:   KOSNoReg,
		BaseProtoReg:  KOSNoReg,
		OwnClosureReg: KOSNoReg,
		Lines:         &LineTable{},
	}
}

func (h *FunctionHeader) IsClass() bool     { return h.Flags&FlagIsClass != 0 }
func (h *FunctionHeader) IsGenerator() bool { return h.Flags&FlagIsGenerator != 0 }
func (h *FunctionHeader) IsClosure() bool   { return h.Flags&FlagIsClosure != 0 }
func (h *FunctionHeader) HasEllipsis() bool { return h.Flags&FlagHasEllipsis != 0 }

func (h *FunctionHeader) SetFlag(bit uint8, on bool) {
	if on {
		h.Flags |= bit
	} else {
		h.Flags &^= bit
	}
}
