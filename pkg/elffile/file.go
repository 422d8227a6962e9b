// Package elffile loads ELF executables and object files: headers, segment
// and section tables, symbols and build metadata. A loaded File translates
// between file offsets and virtual addresses and classifies the
// instructions found in executable segments.
package elffile

import (
	"debug/elf"
	"errors"
	"io"

	"github.com/go-delve/elfscope/pkg/bytesource"
	"github.com/go-delve/elfscope/pkg/config"
	"github.com/go-delve/elfscope/pkg/demangle"
	"github.com/go-delve/elfscope/pkg/disasm"
	"github.com/go-delve/elfscope/pkg/gopclntab"
	"github.com/go-delve/elfscope/pkg/logflags"
)

// File is an ELF file loaded from a byte source.
//
// Update must complete before any query. Queries may then be issued
// concurrently.
type File struct {
	src    bytesource.Source
	closer io.Closer

	decoder   disasm.Decoder
	demangler demangle.Func
	lineTable gopclntab.Parser

	header   Header
	layout   layout
	bodyOff  uint64
	segments []Segment
	sections []Section
	zones    []Zone
	syms     symbolTables
	meta     runtimeMetadata

	decoderReady bool
	panels       PanelMask
	loaded       bool

	hl *highlighter
}

type options struct {
	decoder   disasm.Decoder
	demangler demangle.Func
	lineTable gopclntab.Parser
	cacheSize int
}

// Option configures a File.
type Option func(*options)

// WithDecoder sets the instruction decoder. A nil decoder disables
// instruction highlighting.
func WithDecoder(d disasm.Decoder) Option {
	return func(o *options) { o.decoder = d }
}

// WithDemangler sets the function used to demangle symbol names.
func WithDemangler(fn demangle.Func) Option {
	return func(o *options) { o.demangler = fn }
}

// WithLineTableParser sets the parser that receives the Go line table.
func WithLineTableParser(p gopclntab.Parser) Option {
	return func(o *options) { o.lineTable = p }
}

// WithCacheSize bounds the number of highlight results cached.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// New returns an unloaded File reading from src.
func New(src bytesource.Source, opts ...Option) (*File, error) {
	o := options{
		decoder:   disasm.NewX86(),
		demangler: demangle.Demangle,
		lineTable: gopclntab.New(),
		cacheSize: config.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = config.DefaultCacheSize
	}
	hl, err := newHighlighter(o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &File{
		src:       src,
		decoder:   o.decoder,
		demangler: o.demangler,
		lineTable: o.lineTable,
		hl:        hl,
	}, nil
}

// Open maps the file at path and loads it.
func Open(path string, opts ...Option) (*File, error) {
	src, err := bytesource.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := New(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	f.closer = src
	if err := f.Update(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Close releases the byte source if the File opened it.
func (f *File) Close() error {
	f.reset()
	if f.closer == nil {
		return nil
	}
	c := f.closer
	f.closer = nil
	return c.Close()
}

func (f *File) reset() {
	f.header = Header{}
	f.layout = nil
	f.bodyOff = 0
	f.segments = nil
	f.sections = nil
	f.zones = nil
	f.syms = symbolTables{}
	f.meta = runtimeMetadata{lineTableSection: -1}
	f.decoderReady = false
	f.panels = 0
	f.loaded = false
	f.hl.reset(nil, nil, nil)
}

// Update parses the file. On failure the File is left empty, with no
// panels.
func (f *File) Update() error {
	f.reset()
	if err := f.load(); err != nil {
		if logflags.Loader() {
			logflags.LoaderLogger().WithError(err).Debugf("load failed")
		}
		f.reset()
		return err
	}
	return nil
}

func (f *File) load() error {
	logger := logflags.LoaderLogger()

	if f.src == nil {
		return errors.New("no byte source")
	}

	h, l, bodyOff, err := parseHeader(f.src)
	if err != nil {
		return err
	}
	if logflags.Loader() {
		logger.Debugf("%v %v %v, %d segments at %#x, %d sections at %#x", h.Class, h.Data, h.Machine, h.Phnum, h.Phoff, h.Shnum, h.Shoff)
	}

	segments, zones, err := loadSegments(f.src, &h, l)
	if err != nil {
		return err
	}
	sections, err := loadSections(f.src, &h, l, segments)
	if err != nil {
		return err
	}
	resolveSectionNames(f.src, &h, sections)

	var meta runtimeMetadata
	extractNotes(f.src, l.order(), segments, &meta)
	if meta.hasGoID && f.lineTable != nil {
		f.lineTable.SetBuildID(meta.goBuildID)
	}
	processLineTable(f.src, &h, sections, f.lineTable, &meta)

	syms := resolveSymbols(f.src, l, sections, f.demangler)

	f.header = h
	f.layout = l
	f.bodyOff = bodyOff
	f.segments = segments
	f.sections = sections
	f.zones = zones
	f.meta = meta
	f.syms = syms

	if f.decoder != nil && f.MachineRecognized() {
		if err := f.decoder.Init(h.Is64(), h.LittleEndian()); err != nil {
			logger.WithError(err).Warnf("instruction decoder unavailable for %v", h.Machine)
		} else {
			f.decoderReady = true
		}
	}
	if f.decoderReady {
		f.hl.reset(f.src, zones, f.decoder)
	} else {
		f.hl.reset(f.src, zones, nil)
	}

	f.panels = f.registerPanels()
	f.loaded = true
	return nil
}

// Loaded reports whether the last Update succeeded.
func (f *File) Loaded() bool {
	return f.loaded
}

// Source returns the byte source of the file.
func (f *File) Source() bytesource.Source {
	return f.src
}

// Header returns the file header.
func (f *File) Header() Header {
	return f.header
}

// Is64 reports whether the file uses the 64-bit layout.
func (f *File) Is64() bool {
	return f.header.Is64()
}

// HeaderSize returns the offset of the first byte after the file header.
func (f *File) HeaderSize() uint64 {
	return f.bodyOff
}

// MachineRecognized reports whether instructions of the file's machine can
// be decoded.
func (f *File) MachineRecognized() bool {
	return decodableMachines[f.header.Machine]
}

// Segments returns the program header table.
func (f *File) Segments() []Segment {
	return f.segments
}

// Sections returns the section header table.
func (f *File) Sections() []Section {
	return f.sections
}

// Section returns the first section called name.
func (f *File) Section(name string) (Section, bool) {
	i := findSection(f.sections, name)
	if i < 0 {
		return Section{}, false
	}
	return f.sections[i], true
}

// SectionData returns a copy of the contents of section i.
func (f *File) SectionData(i int) ([]byte, error) {
	if i < 0 || i >= len(f.sections) {
		return nil, ErrUnresolvedReference
	}
	sec := &f.sections[i]
	if sec.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	return f.src.CopyToBuffer(sec.Offset, sec.Size)
}

// StaticSymbols returns the symbols of the SHT_SYMTAB sections.
func (f *File) StaticSymbols() []Symbol {
	return f.syms.static
}

// DynamicSymbols returns the symbols of the SHT_DYNSYM sections.
func (f *File) DynamicSymbols() []Symbol {
	return f.syms.dynamic
}

// StaticSymbolNames returns the names of StaticSymbols, in the same order.
func (f *File) StaticSymbolNames() []string {
	return symbolNames(f.syms.static)
}

// DynamicSymbolNames returns the names of DynamicSymbols, in the same order.
func (f *File) DynamicSymbolNames() []string {
	return symbolNames(f.syms.dynamic)
}

// SymbolsByPrefix returns the static and dynamic symbols whose demangled or
// raw name starts with prefix.
func (f *File) SymbolsByPrefix(prefix string) []Symbol {
	return append(symbolsByPrefix(f.syms.static, prefix), symbolsByPrefix(f.syms.dynamic, prefix)...)
}

// LookupSymbol returns the first static or dynamic symbol called name.
func (f *File) LookupSymbol(name string) (Symbol, bool) {
	if sym, ok := lookupSymbol(f.syms.static, name); ok {
		return sym, true
	}
	return lookupSymbol(f.syms.dynamic, name)
}

// Notes returns every record of the PT_NOTE segments.
func (f *File) Notes() []Note {
	return f.meta.notes
}

// GoBuildID returns the Go build identifier.
func (f *File) GoBuildID() (string, bool) {
	return f.meta.goBuildID, f.meta.hasGoID
}

// GNUBuildID returns the GNU build identifier.
func (f *File) GNUBuildID() []byte {
	return f.meta.gnuBuildID
}

// LineTable returns the line table parser when it processed the file's Go
// line table, nil otherwise.
func (f *File) LineTable() gopclntab.Parser {
	if !f.meta.lineTableOK {
		return nil
	}
	return f.lineTable
}

// GoTable returns the line table when it was processed by the default
// parser.
func (f *File) GoTable() (*gopclntab.Table, bool) {
	t, ok := f.LineTable().(*gopclntab.Table)
	return t, ok
}
