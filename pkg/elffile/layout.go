package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// layout decodes the fixed-size records of one ELF class into their
// width-neutral form. A file uses a single layout for every record.
type layout interface {
	is64() bool
	order() binary.ByteOrder
	segmentSize() int
	sectionSize() int
	symbolSize() int

	header(buf []byte) (Header, error)
	segment(buf []byte) (Segment, error)
	section(buf []byte) (Section, error)
	symbol(buf []byte) (Symbol, error)
}

var (
	prog32Size    = binary.Size(elf.Prog32{})
	prog64Size    = binary.Size(elf.Prog64{})
	section32Size = binary.Size(elf.Section32{})
	section64Size = binary.Size(elf.Section64{})
	sym32Size     = binary.Size(elf.Sym32{})
	sym64Size     = binary.Size(elf.Sym64{})
)

func decode(buf []byte, order binary.ByteOrder, v interface{}) error {
	return binary.Read(bytes.NewReader(buf), order, v)
}

func headerIdent(h *Header, ident [elf.EI_NIDENT]byte) {
	h.Class = elf.Class(ident[elf.EI_CLASS])
	h.Data = elf.Data(ident[elf.EI_DATA])
	h.OSABI = elf.OSABI(ident[elf.EI_OSABI])
	h.ABIVersion = ident[elf.EI_ABIVERSION]
}

type layout32 struct {
	bo binary.ByteOrder
}

func (layout32) is64() bool                { return false }
func (l layout32) order() binary.ByteOrder { return l.bo }
func (layout32) segmentSize() int          { return prog32Size }
func (layout32) sectionSize() int          { return section32Size }
func (layout32) symbolSize() int           { return sym32Size }

func (l layout32) header(buf []byte) (Header, error) {
	var hdr elf.Header32
	if err := decode(buf, l.bo, &hdr); err != nil {
		return Header{}, err
	}
	h := Header{
		Type:      elf.Type(hdr.Type),
		Machine:   elf.Machine(hdr.Machine),
		Version:   elf.Version(hdr.Version),
		Entry:     uint64(hdr.Entry),
		Phoff:     uint64(hdr.Phoff),
		Shoff:     uint64(hdr.Shoff),
		Flags:     hdr.Flags,
		Ehsize:    hdr.Ehsize,
		Phentsize: hdr.Phentsize,
		Phnum:     hdr.Phnum,
		Shentsize: hdr.Shentsize,
		Shnum:     hdr.Shnum,
		Shstrndx:  hdr.Shstrndx,
	}
	headerIdent(&h, hdr.Ident)
	return h, nil
}

func (l layout32) segment(buf []byte) (Segment, error) {
	var p elf.Prog32
	if err := decode(buf, l.bo, &p); err != nil {
		return Segment{}, err
	}
	return Segment{
		Type:   elf.ProgType(p.Type),
		Flags:  elf.ProgFlag(p.Flags),
		Offset: uint64(p.Off),
		Vaddr:  uint64(p.Vaddr),
		Paddr:  uint64(p.Paddr),
		Filesz: uint64(p.Filesz),
		Memsz:  uint64(p.Memsz),
		Align:  uint64(p.Align),
	}, nil
}

func (l layout32) section(buf []byte) (Section, error) {
	var s elf.Section32
	if err := decode(buf, l.bo, &s); err != nil {
		return Section{}, err
	}
	return Section{
		NameOffset: s.Name,
		Type:       elf.SectionType(s.Type),
		Flags:      elf.SectionFlag(s.Flags),
		Addr:       uint64(s.Addr),
		Offset:     uint64(s.Off),
		Size:       uint64(s.Size),
		Link:       s.Link,
		Info:       s.Info,
		Addralign:  uint64(s.Addralign),
		Entsize:    uint64(s.Entsize),
		Segment:    -1,
	}, nil
}

func (l layout32) symbol(buf []byte) (Symbol, error) {
	var s elf.Sym32
	if err := decode(buf, l.bo, &s); err != nil {
		return Symbol{}, err
	}
	return Symbol{
		NameOffset: s.Name,
		Value:      uint64(s.Value),
		Size:       uint64(s.Size),
		Info:       s.Info,
		Other:      s.Other,
		Section:    elf.SectionIndex(s.Shndx),
	}, nil
}

type layout64 struct {
	bo binary.ByteOrder
}

func (layout64) is64() bool                { return true }
func (l layout64) order() binary.ByteOrder { return l.bo }
func (layout64) segmentSize() int          { return prog64Size }
func (layout64) sectionSize() int          { return section64Size }
func (layout64) symbolSize() int           { return sym64Size }

func (l layout64) header(buf []byte) (Header, error) {
	var hdr elf.Header64
	if err := decode(buf, l.bo, &hdr); err != nil {
		return Header{}, err
	}
	h := Header{
		Type:      elf.Type(hdr.Type),
		Machine:   elf.Machine(hdr.Machine),
		Version:   elf.Version(hdr.Version),
		Entry:     hdr.Entry,
		Phoff:     hdr.Phoff,
		Shoff:     hdr.Shoff,
		Flags:     hdr.Flags,
		Ehsize:    hdr.Ehsize,
		Phentsize: hdr.Phentsize,
		Phnum:     hdr.Phnum,
		Shentsize: hdr.Shentsize,
		Shnum:     hdr.Shnum,
		Shstrndx:  hdr.Shstrndx,
	}
	headerIdent(&h, hdr.Ident)
	return h, nil
}

func (l layout64) segment(buf []byte) (Segment, error) {
	var p elf.Prog64
	if err := decode(buf, l.bo, &p); err != nil {
		return Segment{}, err
	}
	return Segment{
		Type:   elf.ProgType(p.Type),
		Flags:  elf.ProgFlag(p.Flags),
		Offset: p.Off,
		Vaddr:  p.Vaddr,
		Paddr:  p.Paddr,
		Filesz: p.Filesz,
		Memsz:  p.Memsz,
		Align:  p.Align,
	}, nil
}

func (l layout64) section(buf []byte) (Section, error) {
	var s elf.Section64
	if err := decode(buf, l.bo, &s); err != nil {
		return Section{}, err
	}
	return Section{
		NameOffset: s.Name,
		Type:       elf.SectionType(s.Type),
		Flags:      elf.SectionFlag(s.Flags),
		Addr:       s.Addr,
		Offset:     s.Off,
		Size:       s.Size,
		Link:       s.Link,
		Info:       s.Info,
		Addralign:  s.Addralign,
		Entsize:    s.Entsize,
		Segment:    -1,
	}, nil
}

func (l layout64) symbol(buf []byte) (Symbol, error) {
	var s elf.Sym64
	if err := decode(buf, l.bo, &s); err != nil {
		return Symbol{}, err
	}
	return Symbol{
		NameOffset: s.Name,
		Value:      s.Value,
		Size:       s.Size,
		Info:       s.Info,
		Other:      s.Other,
		Section:    elf.SectionIndex(s.Shndx),
	}, nil
}
