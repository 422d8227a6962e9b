package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestX86Classify(t *testing.T) {
	testcases := []struct {
		name string
		mode bool
		code []byte
		kind InstructionKind
		size int
	}{
		{"call rel32", true, []byte{0xe8, 0x00, 0x00, 0x00, 0x00}, CallInstruction, 5},
		{"lcall m16:32", true, []byte{0xff, 0x18}, LCallInstruction, 2},
		{"jmp rel8", true, []byte{0xeb, 0xfe}, JmpInstruction, 2},
		{"je rel8", true, []byte{0x74, 0x02}, JmpInstruction, 2},
		{"ljmp m16:32", true, []byte{0xff, 0x28}, LJmpInstruction, 2},
		{"int3", true, []byte{0xcc}, HardBreakInstruction, 1},
		{"int 0x80", false, []byte{0xcd, 0x80}, OtherInstruction, 2},
		{"ret", true, []byte{0xc3}, RetInstruction, 1},
		{"push rbp", true, []byte{0x55}, PushFrameInstruction, 1},
		{"mov rbp, rsp", true, []byte{0x48, 0x89, 0xe5}, SetFrameInstruction, 3},
		{"push ebp", false, []byte{0x55}, PushFrameInstruction, 1},
		{"mov ebp, esp", false, []byte{0x89, 0xe5}, SetFrameInstruction, 2},
		{"nop", true, []byte{0x90}, OtherInstruction, 1},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewX86()
			require.NoError(t, d.Init(tc.mode, true))
			inst, err := d.Decode(tc.code, 0x40)
			require.NoError(t, err)
			require.Equal(t, tc.kind, inst.Kind, "kind %s", inst.Kind)
			require.Equal(t, tc.size, inst.Size)
			require.Equal(t, uint64(0x40), inst.Offset)
			require.Equal(t, tc.code[:tc.size], inst.Bytes)
		})
	}
}

func TestX86Predicates(t *testing.T) {
	d := NewX86()
	require.NoError(t, d.Init(true, true))

	decode := func(code ...byte) Instruction {
		inst, err := d.Decode(code, 0)
		require.NoError(t, err)
		return inst
	}

	push, mov := decode(0x55), decode(0x48, 0x89, 0xe5)
	require.True(t, d.AreFunctionStart(push, mov))
	require.False(t, d.AreFunctionStart(mov, push))
	require.True(t, d.IsCall(decode(0xe8, 0, 0, 0, 0)))
	require.True(t, d.IsJmp(decode(0xeb, 0)))
	require.True(t, d.IsBreakpoint(decode(0xcc)))
	require.True(t, d.IsFunctionEnd(decode(0xc3)))
	require.False(t, d.IsFunctionEnd(decode(0x90)))
	require.False(t, d.IsLCall(push))
	require.False(t, d.IsLJmp(push))
}

func TestX86Errors(t *testing.T) {
	d := NewX86()
	_, err := d.Decode([]byte{0x90}, 0)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.ErrorIs(t, d.Init(true, false), ErrUnsupportedEncoding)

	require.NoError(t, d.Init(true, true))
	require.Equal(t, 64, d.Mode())
	_, err = d.Decode([]byte{0xe8, 0x00}, 0)
	require.Error(t, err)
	_, err = d.Decode(nil, 0)
	require.Error(t, err)
}

func TestDisassemble(t *testing.T) {
	d := NewX86()
	require.NoError(t, d.Init(true, true))

	code := []byte{0x55, 0x48, 0x89, 0xe5, 0xe8, 0x00, 0x00, 0x00, 0x00, 0xc3}
	insts := Disassemble(d, code, 0x1000, 0)
	require.Len(t, insts, 4)
	require.Equal(t, uint64(0x1000), insts[0].Offset)
	require.Equal(t, uint64(0x1001), insts[1].Offset)
	require.Equal(t, uint64(0x1004), insts[2].Offset)
	require.Equal(t, uint64(0x1009), insts[3].Offset)
	require.Equal(t, "ret", insts[3].Text(IntelFlavour, 0x1009))

	require.Len(t, Disassemble(d, code, 0, 2), 2)

	// truncated call is emitted byte by byte
	insts = Disassemble(d, []byte{0xe8, 0x00}, 0, 0)
	require.Len(t, insts, 2)
	require.Equal(t, "?", insts[0].Text(GoFlavour, 0))
}

func TestParseFlavour(t *testing.T) {
	require.Equal(t, GNUFlavour, ParseFlavour("gnu"))
	require.Equal(t, GoFlavour, ParseFlavour("go"))
	require.Equal(t, IntelFlavour, ParseFlavour("intel"))
	require.Equal(t, IntelFlavour, ParseFlavour(""))
}
