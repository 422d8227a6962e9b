package elffile

import (
	"debug/elf"
)

// InvalidAddress is returned by the address translation functions when an
// address does not map to the requested space.
const InvalidAddress = ^uint64(0)

// AddressSpace is the coordinate space an address is expressed in.
type AddressSpace uint8

const (
	FileOffset AddressSpace = iota
	VirtualAddress
)

func (s AddressSpace) String() string {
	switch s {
	case FileOffset:
		return "file offset"
	case VirtualAddress:
		return "virtual address"
	}
	return "unknown"
}

// rebase maps q from the range starting at from to the range starting at
// to, provided q lies in [from, from+size].
func rebase(q, from, size, to uint64) (uint64, bool) {
	if q < from || q-from > size {
		return 0, false
	}
	r := to + (q - from)
	if r < to || r == InvalidAddress {
		return 0, false
	}
	return r, true
}

func fileOffsetToVA(sections []Section, off uint64) uint64 {
	for i := range sections {
		sec := &sections[i]
		if va, ok := rebase(off, sec.Offset, sec.Size, sec.Addr); ok {
			return va
		}
	}
	return InvalidAddress
}

func vaToFileOffset(sections []Section, va uint64) uint64 {
	for i := range sections {
		sec := &sections[i]
		if sec.Addr == 0 {
			continue
		}
		if off, ok := rebase(va, sec.Addr, sec.Size, sec.Offset); ok {
			return off
		}
	}
	return InvalidAddress
}

// FileOffsetToVA returns the virtual address of the byte at file offset
// off, using the first section whose [Offset, Offset+Size] covers it.
func (f *File) FileOffsetToVA(off uint64) uint64 {
	return fileOffsetToVA(f.sections, off)
}

// VAToFileOffset returns the file offset of virtual address va, using the
// first mapped section whose [Addr, Addr+Size] covers it.
func (f *File) VAToFileOffset(va uint64) uint64 {
	return vaToFileOffset(f.sections, va)
}

// ConvertAddress converts v from one address space to another.
func (f *File) ConvertAddress(v uint64, from, to AddressSpace) uint64 {
	switch {
	case from == to && (from == FileOffset || from == VirtualAddress):
		return v
	case from == FileOffset && to == VirtualAddress:
		return f.FileOffsetToVA(v)
	case from == VirtualAddress && to == FileOffset:
		return f.VAToFileOffset(v)
	}
	return InvalidAddress
}

// TranslateToFileOffset converts v, expressed in the address space with
// index from, to a file offset.
func (f *File) TranslateToFileOffset(v uint64, from int) uint64 {
	return f.ConvertAddress(v, AddressSpace(from), FileOffset)
}

// TranslateFromFileOffset converts the file offset v to the address space
// with index to.
func (f *File) TranslateFromFileOffset(v uint64, to int) uint64 {
	return f.ConvertAddress(v, FileOffset, AddressSpace(to))
}

// ImageBase returns the virtual address of the first loadable segment.
func (f *File) ImageBase() uint64 {
	for i := range f.segments {
		if f.segments[i].Type == elf.PT_LOAD {
			return f.segments[i].Vaddr
		}
	}
	return InvalidAddress
}

// VirtualSize returns the sum of the memory sizes of the loadable segments.
func (f *File) VirtualSize() uint64 {
	var size uint64
	found := false
	for i := range f.segments {
		seg := &f.segments[i]
		if seg.Type != elf.PT_LOAD {
			continue
		}
		found = true
		if size+seg.Memsz < size {
			return InvalidAddress
		}
		size += seg.Memsz
	}
	if !found {
		return InvalidAddress
	}
	return size
}
