// Package gopclntab reads the Go line-number table (.gopclntab) embedded in
// Go executables.
package gopclntab

import (
	"debug/gosym"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-delve/elfscope/pkg/logflags"
)

// Architecture is the instruction set the table was generated for.
type Architecture uint8

const (
	ArchUnknown Architecture = iota
	ArchX86
	ArchX64
)

func (a Architecture) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX64:
		return "x64"
	}
	return "unknown"
}

// PtrSize returns the pointer size used by a, or 0 when unknown.
func (a Architecture) PtrSize() int {
	switch a {
	case ArchX86:
		return 4
	case ArchX64:
		return 8
	}
	return 0
}

// Parser consumes the raw bytes of a line-number table.
type Parser interface {
	// Process parses data, which was read from an executable for arch.
	Process(data []byte, arch Architecture) error
	// SetBuildID records the Go build identifier found in the executable.
	SetBuildID(id string)
}

// TextStarter is implemented by parsers that need the address of the
// text section to compute function entry points.
type TextStarter interface {
	SetTextStart(addr uint64)
}

var (
	ErrTooShort     = errors.New("line table too short")
	ErrBadMagic     = errors.New("unknown line table magic")
	ErrArchMismatch = errors.New("line table pointer size does not match architecture")
)

// Version is the line table format version.
type Version uint8

const (
	VersionUnknown Version = iota
	Version12
	Version116
	Version118
	Version120
)

func (v Version) String() string {
	switch v {
	case Version12:
		return "go1.2"
	case Version116:
		return "go1.16"
	case Version118:
		return "go1.18"
	case Version120:
		return "go1.20"
	}
	return "unknown"
}

const (
	go12magic  = 0xfffffffb
	go116magic = 0xfffffffa
	go118magic = 0xfffffff0
	go120magic = 0xfffffff1

	headerSize = 8
)

func magicVersion(magic uint32) Version {
	switch magic {
	case go12magic:
		return Version12
	case go116magic:
		return Version116
	case go118magic:
		return Version118
	case go120magic:
		return Version120
	}
	return VersionUnknown
}

// Header is the fixed prefix of every line table.
type Header struct {
	Version   Version
	ByteOrder binary.ByteOrder
	Quantum   uint8
	PtrSize   uint8
}

// ReadHeader validates the magic number, padding, pc quantum and pointer
// size at the start of data.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < headerSize {
		return h, ErrTooShort
	}
	if data[4] != 0 || data[5] != 0 {
		return h, fmt.Errorf("%w: bad padding", ErrBadMagic)
	}
	switch data[6] {
	case 1, 2, 4:
	default:
		return h, fmt.Errorf("%w: bad pc quantum %d", ErrBadMagic, data[6])
	}
	if data[7] != 4 && data[7] != 8 {
		return h, fmt.Errorf("%w: bad pointer size %d", ErrBadMagic, data[7])
	}
	if v := magicVersion(binary.LittleEndian.Uint32(data)); v != VersionUnknown {
		h.Version, h.ByteOrder = v, binary.LittleEndian
	} else if v := magicVersion(binary.BigEndian.Uint32(data)); v != VersionUnknown {
		h.Version, h.ByteOrder = v, binary.BigEndian
	} else {
		return h, fmt.Errorf("%w: %#x", ErrBadMagic, binary.LittleEndian.Uint32(data))
	}
	h.Quantum = data[6]
	h.PtrSize = data[7]
	return h, nil
}

// Func is a function described by the line table.
type Func struct {
	Name  string
	Entry uint64
	End   uint64
}

// Table is the default Parser, backed by debug/gosym.
type Table struct {
	textStart uint64
	buildID   string
	arch      Architecture
	header    Header
	symtab    *gosym.Table
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// SetTextStart sets the address of the text section. Tables produced by
// Go 1.18 and later store function entries relative to it.
func (t *Table) SetTextStart(addr uint64) {
	t.textStart = addr
}

// SetBuildID implements Parser.
func (t *Table) SetBuildID(id string) {
	t.buildID = id
}

// BuildID returns the identifier set with SetBuildID.
func (t *Table) BuildID() string {
	return t.buildID
}

// Process implements Parser.
func (t *Table) Process(data []byte, arch Architecture) (err error) {
	logger := logflags.PclntabLogger()

	h, err := ReadHeader(data)
	if err != nil {
		return err
	}
	if ps := arch.PtrSize(); ps != 0 && ps != int(h.PtrSize) {
		return fmt.Errorf("%w: %s with pointer size %d", ErrArchMismatch, arch, h.PtrSize)
	}

	defer func() {
		if ierr := recover(); ierr != nil {
			err = fmt.Errorf("malformed line table: %v", ierr)
		}
	}()

	lt := gosym.NewLineTable(data, t.textStart)
	symtab, err := gosym.NewTable(nil, lt)
	if err != nil {
		return fmt.Errorf("could not create symbol table: %w", err)
	}

	t.header = h
	t.arch = arch
	t.symtab = symtab
	if logflags.Pclntab() {
		logger.Debugf("%s line table for %s: %d functions, %d files", h.Version, arch, len(symtab.Funcs), len(symtab.Files))
	}
	return nil
}

// Processed reports whether Process succeeded.
func (t *Table) Processed() bool {
	return t.symtab != nil
}

// Header returns the header of the processed table.
func (t *Table) Header() Header {
	return t.header
}

// Arch returns the architecture passed to Process.
func (t *Table) Arch() Architecture {
	return t.arch
}

// Funcs returns every function in the table, sorted by entry point.
func (t *Table) Funcs() []Func {
	if t.symtab == nil {
		return nil
	}
	r := make([]Func, 0, len(t.symtab.Funcs))
	for i := range t.symtab.Funcs {
		r = append(r, convertFunc(&t.symtab.Funcs[i]))
	}
	return r
}

// Files returns the number of source files referenced by the table.
func (t *Table) Files() int {
	if t.symtab == nil {
		return 0
	}
	return len(t.symtab.Files)
}

// LookupFunc returns the function with the given name.
func (t *Table) LookupFunc(name string) (Func, bool) {
	if t.symtab == nil {
		return Func{}, false
	}
	fn := t.symtab.LookupFunc(name)
	if fn == nil {
		return Func{}, false
	}
	return convertFunc(fn), true
}

// PCToFunc returns the function containing pc.
func (t *Table) PCToFunc(pc uint64) (Func, bool) {
	if t.symtab == nil {
		return Func{}, false
	}
	fn := t.symtab.PCToFunc(pc)
	if fn == nil {
		return Func{}, false
	}
	return convertFunc(fn), true
}

// PCToLine returns the source position of pc. The returned line is 0 when
// the table has no position information for pc.
func (t *Table) PCToLine(pc uint64) (file string, line int, fn Func, ok bool) {
	if t.symtab == nil {
		return "", 0, Func{}, false
	}
	f, l, gfn := t.symtab.PCToLine(pc)
	if gfn == nil {
		return "", 0, Func{}, false
	}
	if l < 0 {
		l = 0
	}
	return f, l, convertFunc(gfn), true
}

func convertFunc(fn *gosym.Func) Func {
	r := Func{Entry: fn.Entry, End: fn.End}
	if fn.Sym != nil {
		r.Name = fn.Sym.Name
	}
	return r
}
