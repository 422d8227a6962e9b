// Package disasm decodes single machine instructions and classifies them
// for highlighting.
package disasm

import (
	"errors"
)

// ErrNotInitialized is returned by Decode when Init was not called.
var ErrNotInitialized = errors.New("decoder not initialized")

// ErrUnsupportedEncoding is returned by Init for byte orders the
// architecture cannot use.
var ErrUnsupportedEncoding = errors.New("unsupported byte order")

// InstructionKind is the coarse class of a decoded instruction.
type InstructionKind uint8

const (
	OtherInstruction InstructionKind = iota
	CallInstruction
	LCallInstruction
	JmpInstruction
	LJmpInstruction
	RetInstruction
	HardBreakInstruction
	// PushFrameInstruction saves the frame pointer (push rbp / push ebp).
	PushFrameInstruction
	// SetFrameInstruction establishes a new frame (mov rbp, rsp / mov ebp, esp).
	SetFrameInstruction
)

func (k InstructionKind) String() string {
	switch k {
	case CallInstruction:
		return "call"
	case LCallInstruction:
		return "lcall"
	case JmpInstruction:
		return "jmp"
	case LJmpInstruction:
		return "ljmp"
	case RetInstruction:
		return "ret"
	case HardBreakInstruction:
		return "breakpoint"
	case PushFrameInstruction:
		return "push-frame"
	case SetFrameInstruction:
		return "set-frame"
	}
	return "other"
}

// Instruction is one decoded instruction.
type Instruction struct {
	// Offset is the position of the first byte of the instruction, in the
	// coordinate space the caller decoded from.
	Offset uint64
	Size   int
	Bytes  []byte
	Kind   InstructionKind

	Inst archInst
}

// Text returns the instruction in the requested syntax. pc is the address
// used to resolve relative operands.
func (inst *Instruction) Text(flavour AssemblyFlavour, pc uint64) string {
	if inst.Inst == nil {
		return "?"
	}
	return inst.Inst.Text(flavour, pc)
}

type archInst interface {
	Text(flavour AssemblyFlavour, pc uint64) string
}

// AssemblyFlavour is the assembly syntax to display.
type AssemblyFlavour int

const (
	// IntelFlavour will display Intel assembly syntax.
	IntelFlavour = AssemblyFlavour(iota)
	// GNUFlavour will display GNU assembly syntax.
	GNUFlavour
	// GoFlavour will display Go assembly syntax.
	GoFlavour
)

// ParseFlavour maps the names used in the configuration file to an
// AssemblyFlavour. Unknown names select IntelFlavour.
func ParseFlavour(s string) AssemblyFlavour {
	switch s {
	case "gnu":
		return GNUFlavour
	case "go":
		return GoFlavour
	}
	return IntelFlavour
}

// Decoder decodes and classifies single instructions.
type Decoder interface {
	// Init prepares the decoder for the given address width and byte order.
	Init(is64, littleEndian bool) error
	// Decode decodes the instruction at the start of buf. offset is recorded
	// in the returned Instruction.
	Decode(buf []byte, offset uint64) (Instruction, error)

	IsCall(inst Instruction) bool
	IsLCall(inst Instruction) bool
	IsJmp(inst Instruction) bool
	IsLJmp(inst Instruction) bool
	IsBreakpoint(inst Instruction) bool
	// AreFunctionStart reports whether first followed by second is a
	// function prologue.
	AreFunctionStart(first, second Instruction) bool
	IsFunctionEnd(inst Instruction) bool
}

// Disassemble decodes consecutive instructions from mem until it is
// exhausted or max instructions were decoded (max <= 0 means no limit).
// Bytes that cannot be decoded are returned as one-byte instructions with a
// nil Inst.
func Disassemble(d Decoder, mem []byte, offset uint64, max int) []Instruction {
	r := make([]Instruction, 0, len(mem)/4)
	for len(mem) > 0 {
		if max > 0 && len(r) >= max {
			break
		}
		inst, err := d.Decode(mem, offset)
		if err != nil || inst.Size <= 0 {
			inst = Instruction{Offset: offset, Size: 1, Bytes: mem[:1]}
		}
		r = append(r, inst)
		offset += uint64(inst.Size)
		mem = mem[inst.Size:]
	}
	return r
}
