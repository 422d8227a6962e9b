package gopclntab

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTable returns a go1.20 line table for a 64-bit executable describing
// a single function main.main covering [0, size) relative to the text start.
func buildTable(size uint32) []byte {
	const (
		words    = 8
		nameOff  = headerSize + words*8
		name     = "main.main\x00"
		tabOff   = nameOff + 12
		funcOff  = 12
		funcSize = 40
	)
	data := make([]byte, tabOff+funcOff+funcSize)
	le := binary.LittleEndian
	le.PutUint32(data, go120magic)
	data[6] = 1
	data[7] = 8
	word := func(i int, v uint64) { le.PutUint64(data[headerSize+i*8:], v) }
	word(0, 1) // nfunc
	word(1, 0) // nfiles
	word(2, 0)
	word(3, nameOff)
	word(4, tabOff)
	word(5, tabOff)
	word(6, tabOff)
	word(7, tabOff)
	copy(data[nameOff:], name)

	// functab: entry offset, func offset, end offset
	le.PutUint32(data[tabOff:], 0)
	le.PutUint32(data[tabOff+4:], funcOff)
	le.PutUint32(data[tabOff+8:], size)
	// _func: entry offset, name offset, remaining fields zero
	le.PutUint32(data[tabOff+funcOff:], 0)
	le.PutUint32(data[tabOff+funcOff+4:], 0)
	return data
}

func TestReadHeader(t *testing.T) {
	h, err := ReadHeader(buildTable(0x20))
	require.NoError(t, err)
	require.Equal(t, Version120, h.Version)
	require.Equal(t, binary.LittleEndian, h.ByteOrder)
	require.Equal(t, uint8(1), h.Quantum)
	require.Equal(t, uint8(8), h.PtrSize)

	be := []byte{0xff, 0xff, 0xff, 0xfb, 0, 0, 4, 4}
	h, err = ReadHeader(be)
	require.NoError(t, err)
	require.Equal(t, Version12, h.Version)
	require.Equal(t, binary.BigEndian, h.ByteOrder)

	testcases := []struct {
		name string
		data []byte
		err  error
	}{
		{"short", []byte{0xf1, 0xff, 0xff}, ErrTooShort},
		{"padding", []byte{0xf1, 0xff, 0xff, 0xff, 1, 0, 1, 8}, ErrBadMagic},
		{"quantum", []byte{0xf1, 0xff, 0xff, 0xff, 0, 0, 3, 8}, ErrBadMagic},
		{"ptrsize", []byte{0xf1, 0xff, 0xff, 0xff, 0, 0, 1, 2}, ErrBadMagic},
		{"magic", []byte{0x01, 0x02, 0x03, 0x04, 0, 0, 1, 8}, ErrBadMagic},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadHeader(tc.data)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestProcess(t *testing.T) {
	tab := New()
	tab.SetTextStart(0x401000)
	tab.SetBuildID("abc/def")
	require.False(t, tab.Processed())
	require.Nil(t, tab.Funcs())

	require.NoError(t, tab.Process(buildTable(0x20), ArchX64))
	require.True(t, tab.Processed())
	require.Equal(t, "abc/def", tab.BuildID())
	require.Equal(t, ArchX64, tab.Arch())
	require.Equal(t, Version120, tab.Header().Version)

	funcs := tab.Funcs()
	require.Len(t, funcs, 1)
	require.Equal(t, Func{Name: "main.main", Entry: 0x401000, End: 0x401020}, funcs[0])

	fn, ok := tab.LookupFunc("main.main")
	require.True(t, ok)
	require.Equal(t, uint64(0x401000), fn.Entry)
	_, ok = tab.LookupFunc("main.init")
	require.False(t, ok)

	fn, ok = tab.PCToFunc(0x401010)
	require.True(t, ok)
	require.Equal(t, "main.main", fn.Name)
	_, ok = tab.PCToFunc(0x401020)
	require.False(t, ok)

	_, line, fn, ok := tab.PCToLine(0x401004)
	require.True(t, ok)
	require.Equal(t, "main.main", fn.Name)
	require.GreaterOrEqual(t, line, 0)
}

func TestProcessErrors(t *testing.T) {
	tab := New()
	require.ErrorIs(t, tab.Process(buildTable(0x20), ArchX86), ErrArchMismatch)
	require.ErrorIs(t, tab.Process([]byte{1, 2, 3}, ArchX64), ErrTooShort)
	require.False(t, tab.Processed())

	// unknown architecture skips the pointer size check
	require.NoError(t, tab.Process(buildTable(0x20), ArchUnknown))
	require.True(t, tab.Processed())
}

func TestArchitecture(t *testing.T) {
	require.Equal(t, "x86", ArchX86.String())
	require.Equal(t, "x64", ArchX64.String())
	require.Equal(t, "unknown", ArchUnknown.String())
	require.Equal(t, 4, ArchX86.PtrSize())
	require.Equal(t, 8, ArchX64.PtrSize())
	require.Equal(t, "go1.18", Version118.String())
}
