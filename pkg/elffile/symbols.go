package elffile

import (
	"debug/elf"
	"fmt"
	"strings"

	"github.com/go-delve/elfscope/pkg/bytesource"
	"github.com/go-delve/elfscope/pkg/demangle"
	"github.com/go-delve/elfscope/pkg/logflags"
)

// Symbol is an entry of a symbol table.
type Symbol struct {
	NameOffset uint32
	// Name is the demangled name, RawName the name found in the string
	// table.
	Name    string
	RawName string

	Value   uint64
	Size    uint64
	Info    uint8
	Other   uint8
	Section elf.SectionIndex
}

// Bind returns the binding of the symbol.
func (s *Symbol) Bind() elf.SymBind {
	return elf.ST_BIND(s.Info)
}

// Type returns the type of the symbol.
func (s *Symbol) Type() elf.SymType {
	return elf.ST_TYPE(s.Info)
}

// Visibility returns the visibility of the symbol.
func (s *Symbol) Visibility() elf.SymVis {
	return elf.ST_VISIBILITY(s.Other)
}

type symbolTables struct {
	static, dynamic       []Symbol
	hasStatic, hasDynamic bool
}

// resolveSymbols decodes every SHT_SYMTAB and SHT_DYNSYM section. Errors
// are local to the table they occur in.
func resolveSymbols(src bytesource.Source, l layout, sections []Section, dem demangle.Func) symbolTables {
	var tabs symbolTables
	for i := range sections {
		sec := &sections[i]
		var dst *[]Symbol
		switch sec.Type {
		case elf.SHT_SYMTAB:
			dst = &tabs.static
			tabs.hasStatic = true
		case elf.SHT_DYNSYM:
			dst = &tabs.dynamic
			tabs.hasDynamic = true
		default:
			continue
		}
		syms, err := readSymbolTable(src, l, sections, i, dem)
		if err != nil {
			logflags.SymbolsLogger().WithError(err).Warnf("symbol table %d (%s) skipped", i, sec.Name)
		}
		*dst = append(*dst, syms...)
	}
	return tabs
}

func readSymbolTable(src bytesource.Source, l layout, sections []Section, idx int, dem demangle.Func) ([]Symbol, error) {
	logger := logflags.SymbolsLogger()
	sec := &sections[idx]

	data, err := src.CopyToBuffer(sec.Offset, sec.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol table data: %v", ErrUnresolvedReference, err)
	}

	var strtab []byte
	if int(sec.Link) >= len(sections) || sec.Link == uint32(elf.SHN_UNDEF) {
		logger.Warnf("%v: symbol table %d links to section %d", ErrUnresolvedReference, idx, sec.Link)
	} else {
		link := &sections[sec.Link]
		strtab, err = src.CopyToBuffer(link.Offset, link.Size)
		if err != nil {
			logger.WithError(err).Warnf("%v: string table %d unreadable", ErrUnresolvedReference, sec.Link)
			strtab = nil
		}
	}

	recsize := l.symbolSize()
	n := len(data) / recsize
	syms := make([]Symbol, 0, n)
	for i := 0; i < n; i++ {
		sym, err := l.symbol(data[i*recsize : (i+1)*recsize])
		if err != nil {
			return syms, fmt.Errorf("symbol %d: %w", i, err)
		}
		sym.RawName, _ = cstring(strtab, uint64(sym.NameOffset))
		sym.Name = sym.RawName
		if dem != nil {
			if s, ok := dem(sym.RawName); ok {
				sym.Name = s
			}
		}
		syms = append(syms, sym)
	}
	if logflags.Symbols() {
		logger.Debugf("symbol table %d (%s): %d symbols", idx, sec.Name, len(syms))
	}
	return syms, nil
}

func symbolNames(syms []Symbol) []string {
	r := make([]string, len(syms))
	for i := range syms {
		r[i] = syms[i].Name
	}
	return r
}

func symbolsByPrefix(syms []Symbol, prefix string) []Symbol {
	var r []Symbol
	for i := range syms {
		if strings.HasPrefix(syms[i].Name, prefix) || strings.HasPrefix(syms[i].RawName, prefix) {
			r = append(r, syms[i])
		}
	}
	return r
}

func lookupSymbol(syms []Symbol, name string) (Symbol, bool) {
	for i := range syms {
		if syms[i].Name == name || syms[i].RawName == name {
			return syms[i], true
		}
	}
	return Symbol{}, false
}
