package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/go-delve/elfscope/pkg/bytesource"
	"github.com/go-delve/elfscope/pkg/gopclntab"
	"github.com/go-delve/elfscope/pkg/logflags"
)

const (
	noteHeaderSize = 12

	noteTypeGoBuildID  = 4
	noteTypeGNUBuildID = 3
)

var (
	noteNameGo  = []byte("Go\x00\x00")
	noteNameGNU = []byte("GNU\x00")
)

// lineTableSections are the names of the Go line table section, in
// lookup order. PIE binaries use the second.
var lineTableSections = []string{".gopclntab", ".data.rel.ro.gopclntab"}

// Note is a record of a PT_NOTE segment.
type Note struct {
	Name []byte
	Type uint32
	Desc []byte
}

// noteIterator walks the records of a note blob. Records are a 12 byte
// header (namesz, descsz, type) followed by the name and the descriptor,
// each padded to the segment alignment.
type noteIterator struct {
	buf   []byte
	order binary.ByteOrder
	align uint64
	off   uint64
	cur   Note
	err   error
}

func newNoteIterator(buf []byte, order binary.ByteOrder, align uint64) *noteIterator {
	if align != 8 {
		align = 4
	}
	return &noteIterator{buf: buf, order: order, align: align}
}

func alignUp(v, a uint64) (uint64, bool) {
	r := (v + a - 1) &^ (a - 1)
	return r, r >= v
}

// Next advances to the next record. It returns false at the end of the
// blob or when a record is truncated, in which case Err is set.
func (it *noteIterator) Next() bool {
	if it.err != nil {
		return false
	}
	n := uint64(len(it.buf))
	if it.off >= n {
		return false
	}
	if n-it.off < noteHeaderSize {
		it.err = fmt.Errorf("%w: note header at %#x", ErrTruncatedTable, it.off)
		return false
	}
	hdr := it.buf[it.off:]
	namesz := uint64(it.order.Uint32(hdr[0:]))
	descsz := uint64(it.order.Uint32(hdr[4:]))
	typ := it.order.Uint32(hdr[8:])

	nameOff := it.off + noteHeaderSize
	descOff, ok1 := alignUp(nameOff+namesz, it.align)
	next, ok2 := alignUp(descOff+descsz, it.align)
	if !ok1 || !ok2 || namesz > n || descsz > n || descOff+descsz > n {
		it.err = fmt.Errorf("%w: note at %#x (namesz %d, descsz %d)", ErrTruncatedTable, it.off, namesz, descsz)
		return false
	}
	it.cur = Note{
		Name: it.buf[nameOff : nameOff+namesz],
		Type: typ,
		Desc: it.buf[descOff : descOff+descsz],
	}
	if next > n {
		next = n
	}
	it.off = next
	return true
}

// Note returns the current record.
func (it *noteIterator) Note() Note {
	return it.cur
}

// Err returns the error that stopped the iteration.
func (it *noteIterator) Err() error {
	return it.err
}

func isGoBuildID(n *Note) bool {
	return len(n.Name) == 4 && n.Type == noteTypeGoBuildID && bytes.Equal(n.Name, noteNameGo)
}

func isGNUBuildID(n *Note) bool {
	return len(n.Name) == 4 && n.Type == noteTypeGNUBuildID && bytes.Equal(n.Name, noteNameGNU)
}

type runtimeMetadata struct {
	goBuildID  string
	hasGoID    bool
	gnuBuildID []byte
	notes      []Note

	lineTableSection int
	lineTableOK      bool
}

// extractNotes walks every record of every PT_NOTE segment. The first Go
// and the first GNU build identifier win.
func extractNotes(src bytesource.Source, order binary.ByteOrder, segments []Segment, md *runtimeMetadata) {
	logger := logflags.NotesLogger()
	for i := range segments {
		seg := &segments[i]
		if seg.Type != elf.PT_NOTE {
			continue
		}
		blob, err := src.CopyToBuffer(seg.Offset, seg.Filesz)
		if err != nil {
			logger.WithError(err).Warnf("note segment %d unreadable", i)
			continue
		}
		it := newNoteIterator(blob, order, seg.Align)
		for it.Next() {
			n := it.Note()
			md.notes = append(md.notes, n)
			switch {
			case isGoBuildID(&n):
				if !md.hasGoID {
					md.goBuildID = string(n.Desc)
					md.hasGoID = true
				}
			case isGNUBuildID(&n):
				if md.gnuBuildID == nil {
					md.gnuBuildID = append([]byte{}, n.Desc...)
				}
			}
		}
		if err := it.Err(); err != nil {
			logger.Warnf("note segment %d: %v", i, err)
		}
	}
	if logflags.Notes() {
		logger.Debugf("%d notes, go build id %q, gnu build id %x", len(md.notes), md.goBuildID, md.gnuBuildID)
	}
}

// processLineTable hands the Go line table section to p. Absence of the
// section is not an error.
func processLineTable(src bytesource.Source, h *Header, sections []Section, p gopclntab.Parser, md *runtimeMetadata) {
	md.lineTableSection = -1
	if p == nil {
		return
	}
	logger := logflags.NotesLogger()

	idx := findSection(sections, lineTableSections...)
	if idx < 0 {
		return
	}
	md.lineTableSection = idx
	sec := &sections[idx]
	data, err := src.CopyToBuffer(sec.Offset, sec.Size)
	if err != nil {
		logger.WithError(err).Warnf("%s unreadable", sec.Name)
		return
	}
	if ts, ok := p.(gopclntab.TextStarter); ok {
		if text := findSection(sections, ".text"); text >= 0 {
			ts.SetTextStart(sections[text].Addr)
		}
	}
	arch := gopclntab.ArchX86
	if h.Is64() {
		arch = gopclntab.ArchX64
	}
	if err := p.Process(data, arch); err != nil {
		logger.WithError(err).Warnf("%s could not be parsed", sec.Name)
		return
	}
	md.lineTableOK = true
}

// findSection returns the index of the first section named like the first
// of names that exists, or -1.
func findSection(sections []Section, names ...string) int {
	for _, name := range names {
		for i := range sections {
			if sections[i].HasName && sections[i].Name == name {
				return i
			}
		}
	}
	return -1
}

// HexBuildID formats a GNU build identifier the way tools print it.
func HexBuildID(id []byte) string {
	return hex.EncodeToString(id)
}
