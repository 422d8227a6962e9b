package elffile

import (
	"bytes"
	"debug/elf"
	"fmt"
	"math"

	"github.com/go-delve/elfscope/pkg/bytesource"
	"github.com/go-delve/elfscope/pkg/logflags"
)

// Segment is a program header table entry.
type Segment struct {
	Type   elf.ProgType
	Flags  elf.ProgFlag
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Executable reports whether the segment is mapped with execute permission.
func (s *Segment) Executable() bool {
	return s.Flags&elf.PF_X != 0
}

// containsRange reports whether [addr, addr+size) lies within the file
// backed part of the segment's virtual address range.
func (s *Segment) containsRange(addr, size uint64) bool {
	if addr < s.Vaddr {
		return false
	}
	delta := addr - s.Vaddr
	return delta <= s.Filesz && size <= s.Filesz-delta
}

// Section is a section header table entry.
type Section struct {
	NameOffset uint32
	// Name is empty when HasName is false.
	Name    string
	HasName bool

	Type      elf.SectionType
	Flags     elf.SectionFlag
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64

	// Segment is the index of the first segment containing the section, or
	// -1.
	Segment int
}

// Zone is a half open range of file offsets covered by an executable
// segment.
type Zone struct {
	Start, End uint64
}

// Contains reports whether off is in [Start, End).
func (z Zone) Contains(off uint64) bool {
	return off >= z.Start && off < z.End
}

// tableEntry returns the offset of entry i of a table starting at base with
// the given stride.
func tableEntry(base uint64, i int, stride uint64) (uint64, bool) {
	idx := uint64(i)
	if stride != 0 && idx > (math.MaxUint64-base)/stride {
		return 0, false
	}
	return base + idx*stride, true
}

func readTable(src bytesource.Source, what string, base uint64, count int, entsize uint16, recsize int, decode func([]byte) error) error {
	if count == 0 {
		return nil
	}
	if int(entsize) < recsize {
		return fmt.Errorf("%w: %s entry size %d smaller than %d", ErrTruncatedTable, what, entsize, recsize)
	}
	buf := make([]byte, recsize)
	for i := 0; i < count; i++ {
		off, ok := tableEntry(base, i, uint64(entsize))
		if !ok {
			return fmt.Errorf("%w: %s entry %d offset overflows", ErrTruncatedTable, what, i)
		}
		if err := src.Copy(off, buf); err != nil {
			return fmt.Errorf("%w: %s entry %d: %v", ErrTruncatedTable, what, i, err)
		}
		if err := decode(buf); err != nil {
			return fmt.Errorf("%w: %s entry %d: %v", ErrTruncatedTable, what, i, err)
		}
	}
	return nil
}

// loadSegments reads the program header table and the executable zones it
// describes.
func loadSegments(src bytesource.Source, h *Header, l layout) ([]Segment, []Zone, error) {
	segments := make([]Segment, 0, h.Phnum)
	err := readTable(src, "segment", h.Phoff, int(h.Phnum), h.Phentsize, l.segmentSize(), func(buf []byte) error {
		seg, err := l.segment(buf)
		if err != nil {
			return err
		}
		segments = append(segments, seg)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var zones []Zone
	for i := range segments {
		seg := &segments[i]
		if !seg.Executable() || seg.Filesz == 0 {
			continue
		}
		end := seg.Offset + seg.Filesz
		if end < seg.Offset {
			end = math.MaxUint64
		}
		zones = append(zones, Zone{Start: seg.Offset, End: end})
	}
	return segments, zones, nil
}

// loadSections reads the section header table and maps every section into
// the first segment that contains it.
func loadSections(src bytesource.Source, h *Header, l layout, segments []Segment) ([]Section, error) {
	sections := make([]Section, 0, h.Shnum)
	err := readTable(src, "section", h.Shoff, int(h.Shnum), h.Shentsize, l.sectionSize(), func(buf []byte) error {
		sec, err := l.section(buf)
		if err != nil {
			return err
		}
		sections = append(sections, sec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range sections {
		sec := &sections[i]
		for j := range segments {
			seg := &segments[j]
			if seg.Vaddr != 0 && seg.containsRange(sec.Addr, sec.Size) {
				sec.Segment = j
				break
			}
		}
	}
	return sections, nil
}

// resolveSectionNames fills in the section names from the section header
// string table. Failures leave the names unset.
func resolveSectionNames(src bytesource.Source, h *Header, sections []Section) {
	logger := logflags.LoaderLogger()

	idx := h.Shstrndx
	switch {
	case idx == uint16(elf.SHN_UNDEF):
		if logflags.Loader() {
			logger.Debugf("no section name table")
		}
		return
	case idx >= uint16(elf.SHN_LORESERVE):
		logger.Warnf("%v: section name table index %#x", ErrUnsupportedRegion, idx)
		return
	case int(idx) >= len(sections):
		logger.Warnf("%v: section name table index %d out of %d sections", ErrUnresolvedReference, idx, len(sections))
		return
	}

	strtab := &sections[idx]
	blob, err := src.CopyToBuffer(strtab.Offset, strtab.Size)
	if err != nil {
		logger.WithError(err).Warnf("section name table unreadable")
		return
	}
	for i := range sections {
		sec := &sections[i]
		sec.Name, sec.HasName = cstring(blob, uint64(sec.NameOffset))
		if !sec.HasName && logflags.Loader() {
			logger.Debugf("%v: section %d name offset %#x", ErrUnresolvedReference, i, sec.NameOffset)
		}
	}
}

// cstring returns the NUL terminated string starting at off. The scan stops
// at the end of blob.
func cstring(blob []byte, off uint64) (string, bool) {
	if off >= uint64(len(blob)) {
		return "", false
	}
	s := blob[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), true
}
