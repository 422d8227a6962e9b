package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

type x86Inst x86asm.Inst

// X86 decodes x86 and x86-64 instructions.
type X86 struct {
	mode int
}

// NewX86 returns an uninitialized x86 decoder.
func NewX86() *X86 {
	return &X86{}
}

// Init implements Decoder.
func (d *X86) Init(is64, littleEndian bool) error {
	if !littleEndian {
		return fmt.Errorf("%w: x86 is little endian", ErrUnsupportedEncoding)
	}
	d.mode = 32
	if is64 {
		d.mode = 64
	}
	return nil
}

// Mode returns 32 or 64, or 0 before Init.
func (d *X86) Mode() int {
	return d.mode
}

// Decode implements Decoder.
func (d *X86) Decode(buf []byte, offset uint64) (Instruction, error) {
	if d.mode == 0 {
		return Instruction{}, ErrNotInitialized
	}
	inst, err := x86asm.Decode(buf, d.mode)
	if err != nil {
		return Instruction{}, err
	}
	if inst.Len == 0 || inst.Op == 0 {
		return Instruction{}, x86asm.ErrUnrecognized
	}
	r := Instruction{
		Offset: offset,
		Size:   inst.Len,
		Bytes:  buf[:inst.Len],
		Kind:   x86Kind(&inst, d.mode),
	}
	r.Inst = (*x86Inst)(&inst)
	return r, nil
}

func x86Kind(inst *x86asm.Inst, mode int) InstructionKind {
	switch inst.Op {
	case x86asm.CALL:
		return CallInstruction
	case x86asm.LCALL:
		return LCallInstruction
	case x86asm.JMP,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
		return JmpInstruction
	case x86asm.LJMP:
		return LJmpInstruction
	case x86asm.RET, x86asm.LRET:
		return RetInstruction
	case x86asm.INT:
		if imm, ok := inst.Args[0].(x86asm.Imm); ok && imm == 3 {
			return HardBreakInstruction
		}
	case x86asm.PUSH:
		if reg, ok := inst.Args[0].(x86asm.Reg); ok && reg == framePointer(mode) {
			return PushFrameInstruction
		}
	case x86asm.MOV:
		dst, ok1 := inst.Args[0].(x86asm.Reg)
		src, ok2 := inst.Args[1].(x86asm.Reg)
		if ok1 && ok2 && dst == framePointer(mode) && src == stackPointer(mode) {
			return SetFrameInstruction
		}
	}
	return OtherInstruction
}

func framePointer(mode int) x86asm.Reg {
	if mode == 64 {
		return x86asm.RBP
	}
	return x86asm.EBP
}

func stackPointer(mode int) x86asm.Reg {
	if mode == 64 {
		return x86asm.RSP
	}
	return x86asm.ESP
}

// IsCall implements Decoder.
func (d *X86) IsCall(inst Instruction) bool { return inst.Kind == CallInstruction }

// IsLCall implements Decoder.
func (d *X86) IsLCall(inst Instruction) bool { return inst.Kind == LCallInstruction }

// IsJmp implements Decoder.
func (d *X86) IsJmp(inst Instruction) bool { return inst.Kind == JmpInstruction }

// IsLJmp implements Decoder.
func (d *X86) IsLJmp(inst Instruction) bool { return inst.Kind == LJmpInstruction }

// IsBreakpoint implements Decoder.
func (d *X86) IsBreakpoint(inst Instruction) bool { return inst.Kind == HardBreakInstruction }

// AreFunctionStart implements Decoder.
func (d *X86) AreFunctionStart(first, second Instruction) bool {
	return first.Kind == PushFrameInstruction && second.Kind == SetFrameInstruction
}

// IsFunctionEnd implements Decoder.
func (d *X86) IsFunctionEnd(inst Instruction) bool { return inst.Kind == RetInstruction }

func (inst *x86Inst) Text(flavour AssemblyFlavour, pc uint64) string {
	if inst == nil {
		return "?"
	}

	var text string

	switch flavour {
	case GNUFlavour:
		text = x86asm.GNUSyntax(x86asm.Inst(*inst), pc, nil)
	case GoFlavour:
		text = x86asm.GoSyntax(x86asm.Inst(*inst), pc, nil)
	case IntelFlavour:
		fallthrough
	default:
		text = x86asm.IntelSyntax(x86asm.Inst(*inst), pc, nil)
	}

	return text
}
