package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"sort"
)

type testSegment struct {
	typ    elf.ProgType
	flags  elf.ProgFlag
	off    uint64
	vaddr  uint64
	filesz uint64
	memsz  uint64
	align  uint64
}

type testSection struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	addr    uint64
	off     uint64
	size    uint64
	link    uint32
	entsize uint64
}

// elfBuilder assembles synthetic ELF files. The section table always
// starts with the null section and ends with .shstrtab, so the index of
// sections[i] is i+1.
type elfBuilder struct {
	class   elf.Class
	order   binary.ByteOrder
	machine elf.Machine
	typ     elf.Type
	entry   uint64

	segments []testSegment
	sections []testSection
	contents map[uint64][]byte
	size     uint64

	// shstrndx overrides the string table index when set.
	shstrndx *uint16
	// noSections omits the section table entirely.
	noSections bool
}

func newBuilder(class elf.Class) *elfBuilder {
	return &elfBuilder{
		class:    class,
		order:    binary.LittleEndian,
		machine:  elf.EM_X86_64,
		typ:      elf.ET_EXEC,
		contents: map[uint64][]byte{},
	}
}

func (b *elfBuilder) put(off uint64, data []byte) *elfBuilder {
	b.contents[off] = data
	return b
}

func (b *elfBuilder) is64() bool {
	return b.class == elf.ELFCLASS64
}

func (b *elfBuilder) sizes() (ehsize, phentsize, shentsize uint64) {
	if b.is64() {
		return 64, 56, 64
	}
	return 52, 32, 40
}

func (b *elfBuilder) record(v interface{}) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, b.order, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func align8(v uint64) uint64 {
	return (v + 7) &^ 7
}

// build lays the file out as: header, contents at their fixed offsets,
// program headers, section name table, section headers.
func (b *elfBuilder) build() []byte {
	ehsize, phentsize, shentsize := b.sizes()
	end := ehsize

	offs := make([]uint64, 0, len(b.contents))
	for off, data := range b.contents {
		offs = append(offs, off)
		if e := off + uint64(len(data)); e > end {
			end = e
		}
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	if b.size > end {
		end = b.size
	}

	phoff := align8(end)
	end = phoff + uint64(len(b.segments))*phentsize

	var sections []testSection
	var names []uint32
	var shoff, strtabOff uint64
	strtab := []byte{0}
	if !b.noSections {
		sections = append([]testSection{{}}, b.sections...)
		sections = append(sections, testSection{name: ".shstrtab", typ: elf.SHT_STRTAB})
		names = make([]uint32, len(sections))
		for i := 1; i < len(sections); i++ {
			if sections[i].name == "" {
				continue
			}
			names[i] = uint32(len(strtab))
			strtab = append(strtab, sections[i].name...)
			strtab = append(strtab, 0)
		}
		strtabOff = end
		last := &sections[len(sections)-1]
		last.off = strtabOff
		last.size = uint64(len(strtab))
		shoff = align8(strtabOff + uint64(len(strtab)))
		end = shoff + uint64(len(sections))*shentsize
	}

	out := make([]byte, end)

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(b.class)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	if b.order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var shstrndx uint16
	if !b.noSections {
		shstrndx = uint16(len(sections) - 1)
	}
	if b.shstrndx != nil {
		shstrndx = *b.shstrndx
	}

	if b.is64() {
		copy(out, b.record(elf.Header64{
			Ident: ident, Type: uint16(b.typ), Machine: uint16(b.machine), Version: uint32(elf.EV_CURRENT),
			Entry: b.entry, Phoff: phoff, Shoff: shoff, Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(len(b.segments)),
			Shentsize: uint16(shentsize), Shnum: uint16(len(sections)), Shstrndx: shstrndx,
		}))
	} else {
		copy(out, b.record(elf.Header32{
			Ident: ident, Type: uint16(b.typ), Machine: uint16(b.machine), Version: uint32(elf.EV_CURRENT),
			Entry: uint32(b.entry), Phoff: uint32(phoff), Shoff: uint32(shoff), Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(len(b.segments)),
			Shentsize: uint16(shentsize), Shnum: uint16(len(sections)), Shstrndx: shstrndx,
		}))
	}

	for _, off := range offs {
		copy(out[off:], b.contents[off])
	}

	for i, seg := range b.segments {
		var rec []byte
		if b.is64() {
			rec = b.record(elf.Prog64{
				Type: uint32(seg.typ), Flags: uint32(seg.flags), Off: seg.off, Vaddr: seg.vaddr,
				Paddr: seg.vaddr, Filesz: seg.filesz, Memsz: seg.memsz, Align: seg.align,
			})
		} else {
			rec = b.record(elf.Prog32{
				Type: uint32(seg.typ), Off: uint32(seg.off), Vaddr: uint32(seg.vaddr), Paddr: uint32(seg.vaddr),
				Filesz: uint32(seg.filesz), Memsz: uint32(seg.memsz), Flags: uint32(seg.flags), Align: uint32(seg.align),
			})
		}
		copy(out[phoff+uint64(i)*phentsize:], rec)
	}

	if b.noSections {
		return out
	}
	copy(out[strtabOff:], strtab)
	for i, sec := range sections {
		var rec []byte
		if b.is64() {
			rec = b.record(elf.Section64{
				Name: names[i], Type: uint32(sec.typ), Flags: uint64(sec.flags), Addr: sec.addr,
				Off: sec.off, Size: sec.size, Link: sec.link, Entsize: sec.entsize,
			})
		} else {
			rec = b.record(elf.Section32{
				Name: names[i], Type: uint32(sec.typ), Flags: uint32(sec.flags), Addr: uint32(sec.addr),
				Off: uint32(sec.off), Size: uint32(sec.size), Link: sec.link, Entsize: uint32(sec.entsize),
			})
		}
		copy(out[shoff+uint64(i)*shentsize:], rec)
	}
	return out
}

// symtab encodes symbol records for the builder's class.
func (b *elfBuilder) symtab(syms ...elf.Sym64) []byte {
	var buf bytes.Buffer
	for _, s := range syms {
		if b.is64() {
			buf.Write(b.record(s))
		} else {
			buf.Write(b.record(elf.Sym32{
				Name: s.Name, Value: uint32(s.Value), Size: uint32(s.Size),
				Info: s.Info, Other: s.Other, Shndx: s.Shndx,
			}))
		}
	}
	return buf.Bytes()
}

// note encodes a note record padded to align.
func note(order binary.ByteOrder, name string, typ uint32, desc []byte, align uint64) []byte {
	pad := func(b []byte) []byte {
		for uint64(len(b))%align != 0 {
			b = append(b, 0)
		}
		return b
	}
	var out []byte
	var hdr [12]byte
	order.PutUint32(hdr[0:], uint32(len(name)))
	order.PutUint32(hdr[4:], uint32(len(desc)))
	order.PutUint32(hdr[8:], typ)
	out = append(out, hdr[:]...)
	out = pad(append(out, name...))
	out = pad(append(out, desc...))
	return out
}

// textFile is a 64-bit executable with one executable segment covering
// [0x40, 0x80) mapped at 0x1000 and a .text section over it.
func textFile(code []byte) *elfBuilder {
	b := newBuilder(elf.ELFCLASS64)
	b.segments = []testSegment{
		{typ: elf.PT_LOAD, flags: elf.PF_R | elf.PF_X, off: 0x40, vaddr: 0x1000, filesz: 0x40, memsz: 0x40, align: 0x1000},
	}
	b.sections = []testSection{
		{name: ".text", typ: elf.SHT_PROGBITS, flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, addr: 0x1000, off: 0x40, size: 0x40},
	}
	b.size = 0x80
	if code != nil {
		b.put(0x40, code)
	}
	return b
}
