package elffile

import (
	"bytes"
	"debug/elf"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/elfscope/pkg/bytesource"
	"github.com/go-delve/elfscope/pkg/disasm"
	"github.com/go-delve/elfscope/pkg/logflags"
)

// Mask selects the classes of bytes Highlight reports.
type Mask uint32

const (
	HighlightCall Mask = 1 << iota
	HighlightLCall
	HighlightJmp
	HighlightLJmp
	HighlightBreakpoint
	HighlightFunctionStart
	HighlightFunctionEnd
	HighlightHeader

	HighlightAll = HighlightCall | HighlightLCall | HighlightJmp | HighlightLJmp |
		HighlightBreakpoint | HighlightFunctionStart | HighlightFunctionEnd | HighlightHeader
)

var maskNames = []struct {
	name string
	bit  Mask
}{
	{"call", HighlightCall},
	{"lcall", HighlightLCall},
	{"jmp", HighlightJmp},
	{"ljmp", HighlightLJmp},
	{"breakpoint", HighlightBreakpoint},
	{"fstart", HighlightFunctionStart},
	{"fend", HighlightFunctionEnd},
	{"header", HighlightHeader},
}

// ParseMask returns the mask for a list of class names. "all" selects
// every class.
func ParseMask(names []string) (Mask, error) {
	var m Mask
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		if name == "all" {
			m |= HighlightAll
			continue
		}
		found := false
		for _, mn := range maskNames {
			if mn.name == name {
				m |= mn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown highlight class %q", name)
		}
	}
	return m, nil
}

// MaskNames returns the valid class names in priority order.
func MaskNames() []string {
	r := make([]string, len(maskNames))
	for i := range maskNames {
		r[i] = maskNames[i].name
	}
	return r
}

func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	for _, mn := range maskNames {
		if m&mn.bit != 0 {
			names = append(names, mn.name)
		}
	}
	return strings.Join(names, ",")
}

// Span is a highlighted range of file offsets, [Start, End).
type Span struct {
	Start, End uint64
	// Class is the single mask bit that matched.
	Class Mask
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() uint64 {
	return s.End - s.Start
}

// maxInstLen is the longest x86 instruction.
const maxInstLen = 15

// DefaultWindow is the number of bytes HighlightAt makes available to the
// decoder, enough for a function-start pair.
const DefaultWindow = 2 * maxInstLen

// decodableMachines are the machines whose code is handed to the decoder.
var decodableMachines = map[elf.Machine]bool{
	elf.EM_386:    true,
	elf.EM_486:    true,
	elf.EM_860:    true,
	elf.EM_960:    true,
	elf.EM_8051:   true,
	elf.EM_X86_64: true,
}

// highlighter classifies the bytes at a file offset and remembers the
// result. A highlighter belongs to one File.
type highlighter struct {
	mu sync.Mutex

	src     bytesource.Source
	zones   []Zone
	decoder disasm.Decoder
	ready   bool

	mask   Mask
	spans  *lru.Cache // offset -> Span
	misses *lru.Cache // offset -> struct{}
}

func newHighlighter(size int) (*highlighter, error) {
	spans, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	misses, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &highlighter{spans: spans, misses: misses}, nil
}

// reset binds the highlighter to a freshly loaded file. A nil decoder
// disables instruction classification.
func (hl *highlighter) reset(src bytesource.Source, zones []Zone, decoder disasm.Decoder) {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	hl.src = src
	hl.zones = zones
	hl.decoder = decoder
	hl.ready = decoder != nil
	hl.mask = 0
	hl.spans.Purge()
	hl.misses.Purge()
}

func (hl *highlighter) zone(off uint64) (Zone, bool) {
	for _, z := range hl.zones {
		if z.Contains(off) {
			return z, true
		}
	}
	return Zone{}, false
}

func (hl *highlighter) highlight(mask Mask, off, window uint64) (Span, bool) {
	if window == 0 {
		return Span{}, false
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	if hl.src == nil || mask == 0 {
		return Span{}, false
	}

	logger := logflags.HighlightLogger()

	if mask != hl.mask {
		if logflags.Highlight() {
			logger.Debugf("mask changed from %v to %v, purging %d spans and %d misses", hl.mask, mask, hl.spans.Len(), hl.misses.Len())
		}
		hl.spans.Purge()
		hl.misses.Purge()
		hl.mask = mask
	}

	if v, ok := hl.spans.Get(off); ok {
		return v.(Span), true
	}
	if hl.misses.Contains(off) {
		return Span{}, false
	}

	if mask&HighlightHeader != 0 && window >= uint64(len(elf.ELFMAG)) {
		var magic [len(elf.ELFMAG)]byte
		if hl.src.Copy(off, magic[:]) == nil && bytes.Equal(magic[:], []byte(elf.ELFMAG)) {
			return Span{Start: off, End: off + uint64(len(magic)), Class: HighlightHeader}, true
		}
	}

	span, ok := hl.classify(mask, off, window)
	if ok {
		hl.spans.Add(off, span)
		return span, true
	}
	hl.misses.Add(off, struct{}{})
	return Span{}, false
}

func (hl *highlighter) classify(mask Mask, off, window uint64) (Span, bool) {
	if !hl.ready {
		return Span{}, false
	}
	z, ok := hl.zone(off)
	if !ok {
		return Span{}, false
	}
	if max := z.End - off; window > max {
		window = max
	}
	buf, err := hl.src.View(off, window)
	if err != nil {
		return Span{}, false
	}

	d := hl.decoder
	inst, err := d.Decode(buf, off)
	if err != nil {
		if logflags.Highlight() {
			logflags.HighlightLogger().Debugf("%v at %#x: %v", ErrDecodeFailure, off, err)
		}
		return Span{}, false
	}

	span := func(class Mask, size int) (Span, bool) {
		return Span{Start: off, End: off + uint64(size), Class: class}, true
	}

	switch {
	case mask&HighlightCall != 0 && d.IsCall(inst):
		return span(HighlightCall, inst.Size)
	case mask&HighlightLCall != 0 && d.IsLCall(inst):
		return span(HighlightLCall, inst.Size)
	case mask&HighlightJmp != 0 && d.IsJmp(inst):
		return span(HighlightJmp, inst.Size)
	case mask&HighlightLJmp != 0 && d.IsLJmp(inst):
		return span(HighlightLJmp, inst.Size)
	case mask&HighlightBreakpoint != 0 && d.IsBreakpoint(inst):
		return span(HighlightBreakpoint, inst.Size)
	}

	if mask&HighlightFunctionStart != 0 && inst.Size < len(buf) {
		next, err := d.Decode(buf[inst.Size:], off+uint64(inst.Size))
		if err == nil && d.AreFunctionStart(inst, next) {
			return span(HighlightFunctionStart, inst.Size+next.Size)
		}
	}

	if mask&HighlightFunctionEnd != 0 && d.IsFunctionEnd(inst) {
		return span(HighlightFunctionEnd, inst.Size)
	}
	return Span{}, false
}

// Highlight classifies the bytes at file offset off, decoding at most
// window bytes. Results are cached per offset until the mask changes.
func (f *File) Highlight(mask Mask, off, window uint64) (Span, bool) {
	return f.hl.highlight(mask, off, window)
}

// HighlightAt is Highlight with DefaultWindow.
func (f *File) HighlightAt(mask Mask, off uint64) (Span, bool) {
	return f.hl.highlight(mask, off, DefaultWindow)
}

// ExecutableZones returns the file offset ranges of the executable
// segments.
func (f *File) ExecutableZones() []Zone {
	return f.zones
}

// InExecutableZone reports whether off lies in an executable segment.
func (f *File) InExecutableZone(off uint64) bool {
	for _, z := range f.zones {
		if z.Contains(off) {
			return true
		}
	}
	return false
}
