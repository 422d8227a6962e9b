package elffile

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/elfscope/pkg/demangle"
)

func symbolFile(class elf.Class) *elfBuilder {
	b := textFile(nil)
	b.class = class
	if class == elf.ELFCLASS32 {
		b.machine = elf.EM_386
	}
	recsize := uint64(24)
	if class == elf.ELFCLASS32 {
		recsize = 16
	}

	strtab := []byte("\x00main\x00_ZN3foo3barEv\x00")
	symtab := b.symtab(
		elf.Sym64{Name: 1, Info: elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC), Shndx: 1, Value: 0x1000, Size: 0x10},
		elf.Sym64{Name: 6, Info: elf.ST_INFO(elf.STB_LOCAL, elf.STT_FUNC), Other: byte(elf.STV_HIDDEN), Shndx: 1, Value: 0x1010, Size: 0x8},
		elf.Sym64{Name: 999, Info: elf.ST_INFO(elf.STB_WEAK, elf.STT_OBJECT)},
	)
	// a partial record follows the three complete ones
	symtab = append(symtab, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	dynstr := []byte("\x00puts\x00")
	dynsym := b.symtab(
		elf.Sym64{},
		elf.Sym64{Name: 1, Info: elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC)},
	)

	b.put(0x100, strtab)
	b.put(0x120, symtab)
	b.put(0x180, dynstr)
	b.put(0x190, dynsym)
	b.sections = append(b.sections,
		testSection{name: ".strtab", typ: elf.SHT_STRTAB, off: 0x100, size: uint64(len(strtab))},
		testSection{name: ".symtab", typ: elf.SHT_SYMTAB, off: 0x120, size: uint64(len(symtab)), link: 2, entsize: recsize},
		testSection{name: ".dynstr", typ: elf.SHT_STRTAB, off: 0x180, size: uint64(len(dynstr))},
		testSection{name: ".dynsym", typ: elf.SHT_DYNSYM, off: 0x190, size: uint64(len(dynsym)), link: 4, entsize: recsize},
	)
	return b
}

func TestSymbols(t *testing.T) {
	for _, class := range []elf.Class{elf.ELFCLASS64, elf.ELFCLASS32} {
		t.Run(class.String(), func(t *testing.T) {
			f := load(t, symbolFile(class).build())

			require.True(t, f.HasPanel(PanelStaticSymbols))
			require.True(t, f.HasPanel(PanelDynamicSymbols))

			syms := f.StaticSymbols()
			require.Len(t, syms, 3)
			require.Equal(t, "main", syms[0].Name)
			require.Equal(t, uint64(0x1000), syms[0].Value)
			require.Equal(t, uint64(0x10), syms[0].Size)
			require.Equal(t, elf.STB_GLOBAL, syms[0].Bind())
			require.Equal(t, elf.STT_FUNC, syms[0].Type())
			require.Equal(t, elf.SectionIndex(1), syms[0].Section)

			require.Equal(t, "foo::bar()", syms[1].Name)
			require.Equal(t, "_ZN3foo3barEv", syms[1].RawName)
			require.Equal(t, elf.STV_HIDDEN, syms[1].Visibility())
			require.Equal(t, elf.STB_LOCAL, syms[1].Bind())

			require.Equal(t, "", syms[2].Name)
			require.Equal(t, uint32(999), syms[2].NameOffset)
			require.Equal(t, elf.STT_OBJECT, syms[2].Type())

			require.Equal(t, []string{"main", "foo::bar()", ""}, f.StaticSymbolNames())
			require.Equal(t, []string{"", "puts"}, f.DynamicSymbolNames())
			require.Len(t, f.DynamicSymbols(), 2)
		})
	}
}

func TestSymbolCount(t *testing.T) {
	b := textFile(nil)
	for _, n := range []int{0, 1, 5, 7} {
		data := make([]byte, n*24+23)
		b.contents = map[uint64][]byte{0x100: data}
		b.sections = []testSection{
			{name: ".text", typ: elf.SHT_PROGBITS, addr: 0x1000, off: 0x40, size: 0x40},
			{name: ".symtab", typ: elf.SHT_SYMTAB, off: 0x100, size: uint64(len(data)), link: 1},
		}
		f := load(t, b.build())
		require.Len(t, f.StaticSymbols(), n)
		require.Len(t, f.StaticSymbolNames(), n)
		require.Empty(t, f.DynamicSymbols())
		require.False(t, f.HasPanel(PanelDynamicSymbols))
	}
}

func TestSymbolErrors(t *testing.T) {
	// unreadable symbol table
	b := symbolFile(elf.ELFCLASS64)
	b.sections[2].size = 0x100000
	f := load(t, b.build())
	require.Empty(t, f.StaticSymbols())
	require.Len(t, f.DynamicSymbols(), 2)

	// link out of range
	b = symbolFile(elf.ELFCLASS64)
	b.sections[2].link = 100
	f = load(t, b.build())
	require.Equal(t, []string{"", "", ""}, f.StaticSymbolNames())
	require.Equal(t, uint64(0x1000), f.StaticSymbols()[0].Value)

	// string table outside the file
	b = symbolFile(elf.ELFCLASS64)
	b.sections[3].size = 0x100000
	f = load(t, b.build())
	require.Equal(t, []string{"main", "foo::bar()", ""}, f.StaticSymbolNames())
	require.Equal(t, []string{"", ""}, f.DynamicSymbolNames())
}

func TestSymbolLookup(t *testing.T) {
	f := load(t, symbolFile(elf.ELFCLASS64).build(), WithDemangler(demangle.None))
	require.Equal(t, []string{"main", "_ZN3foo3barEv", ""}, f.StaticSymbolNames())

	f = load(t, symbolFile(elf.ELFCLASS64).build())
	syms := f.SymbolsByPrefix("foo::")
	require.Len(t, syms, 1)
	require.Equal(t, uint64(0x1010), syms[0].Value)
	require.Len(t, f.SymbolsByPrefix("_ZN3foo"), 1)
	require.Len(t, f.SymbolsByPrefix("p"), 1)

	sym, ok := f.LookupSymbol("puts")
	require.True(t, ok)
	require.Equal(t, elf.STB_GLOBAL, sym.Bind())
	sym, ok = f.LookupSymbol("_ZN3foo3barEv")
	require.True(t, ok)
	require.Equal(t, "foo::bar()", sym.Name)
	_, ok = f.LookupSymbol("printf")
	require.False(t, ok)
}
