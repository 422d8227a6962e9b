package terminal

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-delve/elfscope/pkg/bytesource"
	"github.com/go-delve/elfscope/pkg/elffile"
)

// DefaultHighlightColors are the ANSI colors used by Hexdump for each
// highlight class, unless overridden by the highlight-colors option.
var DefaultHighlightColors = map[string]int{
	"call":       ansiGreen,
	"lcall":      ansiBrGreen,
	"jmp":        ansiYellow,
	"ljmp":       ansiBrYellow,
	"breakpoint": ansiRed,
	"fstart":     ansiCyan,
	"fend":       ansiMagenta,
	"header":     ansiBlue,
}

// HighlightColors merges the configured colors over DefaultHighlightColors
// and keys the result by class.
func HighlightColors(conf map[string]int) (map[elffile.Mask]int, error) {
	r := make(map[elffile.Mask]int, len(DefaultHighlightColors))
	merge := func(m map[string]int) error {
		for name, color := range m {
			class, err := elffile.ParseMask([]string{name})
			if err != nil {
				return err
			}
			r[class] = color
		}
		return nil
	}
	if err := merge(DefaultHighlightColors); err != nil {
		return nil, err
	}
	if err := merge(conf); err != nil {
		return nil, err
	}
	return r, nil
}

const notAvailable = "n/a"

func formatAddr(v uint64) string {
	if v == elffile.InvalidAddress {
		return notAvailable
	}
	return fmt.Sprintf("%#x", v)
}

// PrintInfo prints the header, the runtime metadata and the panels of f.
func PrintInfo(w io.Writer, f *elffile.File) {
	h := f.Header()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Class:\t%s\n", h.Class)
	fmt.Fprintf(tw, "Data:\t%s\n", h.Data)
	fmt.Fprintf(tw, "OS/ABI:\t%s (%d)\n", h.OSABI, h.ABIVersion)
	fmt.Fprintf(tw, "Type:\t%s\n", h.Type)
	fmt.Fprintf(tw, "Machine:\t%s\n", h.Machine)
	fmt.Fprintf(tw, "Entry:\t%#x\n", h.Entry)
	fmt.Fprintf(tw, "Flags:\t%#x\n", h.Flags)
	fmt.Fprintf(tw, "Program headers:\t%d at %#x\n", h.Phnum, h.Phoff)
	fmt.Fprintf(tw, "Section headers:\t%d at %#x\n", h.Shnum, h.Shoff)
	fmt.Fprintf(tw, "Image base:\t%s\n", formatAddr(f.ImageBase()))
	fmt.Fprintf(tw, "Virtual size:\t%s\n", formatAddr(f.VirtualSize()))

	if id, ok := f.GoBuildID(); ok {
		fmt.Fprintf(tw, "Go build ID:\t%s\n", id)
	}
	if id := f.GNUBuildID(); id != nil {
		fmt.Fprintf(tw, "GNU build ID:\t%s\n", elffile.HexBuildID(id))
	}
	if lt, ok := f.GoTable(); ok {
		lh := lt.Header()
		fmt.Fprintf(tw, "Go line table:\t%s, %s, %d functions, %d files\n", lh.Version, lt.Arch(), len(lt.Funcs()), lt.Files())
	}
	fmt.Fprintf(tw, "Panels:\t%s\n", f.Panels())
}

// PrintSegments prints the program header table.
func PrintSegments(w io.Writer, f *elffile.File) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tType\tFlags\tOffset\tVAddr\tFileSz\tMemSz\tAlign")
	for i, seg := range f.Segments() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%#x\t%#x\t%#x\t%#x\t%#x\n", i, seg.Type, segmentFlags(seg.Flags), seg.Offset, seg.Vaddr, seg.Filesz, seg.Memsz, seg.Align)
	}
}

func segmentFlags(fl elf.ProgFlag) string {
	b := []byte("---")
	if fl&elf.PF_R != 0 {
		b[0] = 'r'
	}
	if fl&elf.PF_W != 0 {
		b[1] = 'w'
	}
	if fl&elf.PF_X != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// PrintSections prints the section header table. Sections without a
// resolved name are printed as <unnamed>.
func PrintSections(w io.Writer, f *elffile.File) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tName\tType\tAddr\tOffset\tSize\tSegment")
	for i, s := range f.Sections() {
		name := "<unnamed>"
		if s.HasName {
			name = s.Name
		}
		seg := "-"
		if s.Segment >= 0 {
			seg = strconv.Itoa(s.Segment)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%#x\t%#x\t%#x\t%s\n", i, name, s.Type, s.Addr, s.Offset, s.Size, seg)
	}
}

// PrintSymbols prints syms. If prefix is not empty only symbols whose name
// starts with it are printed.
func PrintSymbols(w io.Writer, syms []elffile.Symbol, prefix string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "Value\tSize\tType\tBind\tSection\tName")
	for i := range syms {
		s := &syms[i]
		if prefix != "" && !strings.HasPrefix(s.Name, prefix) {
			continue
		}
		fmt.Fprintf(tw, "%#x\t%d\t%s\t%s\t%s\t%s\n", s.Value, s.Size, s.Type(), s.Bind(), s.Section, s.Name)
	}
}

// PrintFuncs prints the functions of the Go line table matching filter. An
// empty filter matches everything.
func PrintFuncs(w io.Writer, f *elffile.File, filter string) error {
	lt, ok := f.GoTable()
	if !ok {
		return errors.New("no Go line table")
	}
	var re *regexp.Regexp
	if filter != "" {
		var err error
		re, err = regexp.Compile(filter)
		if err != nil {
			return fmt.Errorf("invalid filter argument: %s", err.Error())
		}
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, fn := range lt.Funcs() {
		if re != nil && !re.MatchString(fn.Name) {
			continue
		}
		file, line, _, _ := lt.PCToLine(fn.Entry)
		fmt.Fprintf(tw, "%#x\t%#x\t%s\t%s:%d\n", fn.Entry, fn.End, fn.Name, file, line)
	}
	return nil
}

// HexdumpOptions controls Hexdump.
type HexdumpOptions struct {
	Width  int
	Mask   elffile.Mask
	Colors map[elffile.Mask]int
	// Colored enables ANSI escapes; otherwise highlighted bytes are
	// bracketed.
	Colored bool
}

// Hexdump prints length bytes of f starting at file offset off. Bytes
// covered by a highlight span are colored by class.
func Hexdump(w io.Writer, f *elffile.File, off, length uint64, opts HexdumpOptions) error {
	src := f.Source()
	if src == nil {
		return errors.New("no file loaded")
	}
	if off >= src.Len() {
		return fmt.Errorf("offset %#x: %w", off, bytesource.ErrOutOfBounds)
	}
	if length > src.Len()-off {
		length = src.Len() - off
	}
	data, err := src.CopyToBuffer(off, length)
	if err != nil {
		return err
	}
	width := opts.Width
	if width <= 0 {
		width = 16
	}

	var cur elffile.Span
	classAt := func(p uint64) elffile.Mask {
		if p >= cur.Start && p < cur.End {
			return cur.Class
		}
		if opts.Mask == 0 {
			return 0
		}
		if sp, ok := f.HighlightAt(opts.Mask, p); ok && sp.Start == p {
			cur = sp
			return sp.Class
		}
		return 0
	}

	var b strings.Builder
	for row := 0; row < len(data); row += width {
		end := row + width
		if end > len(data) {
			end = len(data)
		}
		b.Reset()
		fmt.Fprintf(&b, "%08x ", off+uint64(row))
		if va := f.FileOffsetToVA(off + uint64(row)); va != elffile.InvalidAddress {
			fmt.Fprintf(&b, "%12s  ", formatAddr(va))
		} else {
			fmt.Fprintf(&b, "%12s  ", "")
		}
		for i := row; i < row+width; i++ {
			if i >= end {
				b.WriteString("   ")
				continue
			}
			b.WriteString(formatByte(data[i], classAt(off+uint64(i)), opts))
			b.WriteByte(' ')
		}
		b.WriteString(" |")
		for _, c := range data[row:end] {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func formatByte(c byte, class elffile.Mask, opts HexdumpOptions) string {
	if class == 0 {
		return fmt.Sprintf("%02x", c)
	}
	if !opts.Colored {
		return strings.ToUpper(fmt.Sprintf("%02x", c))
	}
	color, ok := opts.Colors[class]
	if !ok {
		color = ansiWhite
	}
	return fmt.Sprintf(terminalHighlightEscapeCode+"%02x"+terminalResetEscapeCode, color, c)
}

// ParseAddressSpace parses "fo" (file offset) or "va" (virtual address).
func ParseAddressSpace(s string) (elffile.AddressSpace, error) {
	switch strings.ToLower(s) {
	case "fo", "offset", "file":
		return elffile.FileOffset, nil
	case "va", "vaddr", "virtual":
		return elffile.VirtualAddress, nil
	}
	return 0, fmt.Errorf("unknown address space %q, expected fo or va", s)
}

// ParseUint parses a number in any base accepted by strconv.ParseUint.
func ParseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
