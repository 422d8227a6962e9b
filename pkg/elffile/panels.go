package elffile

import "strings"

// Panel identifies a view a host can show for a loaded file.
type Panel uint8

const (
	PanelInformation Panel = iota
	PanelSegments
	PanelSections
	PanelOpCodes
	PanelGoInformation
	PanelStaticSymbols
	PanelDynamicSymbols

	numPanels
)

func (p Panel) String() string {
	switch p {
	case PanelInformation:
		return "information"
	case PanelSegments:
		return "segments"
	case PanelSections:
		return "sections"
	case PanelOpCodes:
		return "opcodes"
	case PanelGoInformation:
		return "go-information"
	case PanelStaticSymbols:
		return "static-symbols"
	case PanelDynamicSymbols:
		return "dynamic-symbols"
	}
	return "unknown"
}

// PanelMask is a set of panels.
type PanelMask uint32

// Has reports whether p is in the set.
func (m PanelMask) Has(p Panel) bool {
	return m&(1<<p) != 0
}

func (m *PanelMask) set(p Panel) {
	*m |= 1 << p
}

// List returns the panels in the set in display order.
func (m PanelMask) List() []Panel {
	var r []Panel
	for p := Panel(0); p < numPanels; p++ {
		if m.Has(p) {
			r = append(r, p)
		}
	}
	return r
}

func (m PanelMask) String() string {
	var names []string
	for _, p := range m.List() {
		names = append(names, p.String())
	}
	return strings.Join(names, ",")
}

func (f *File) registerPanels() PanelMask {
	var m PanelMask
	m.set(PanelInformation)
	m.set(PanelSegments)
	m.set(PanelSections)
	if f.MachineRecognized() && f.decoderReady {
		m.set(PanelOpCodes)
	}
	if f.meta.lineTableOK {
		m.set(PanelGoInformation)
	}
	if f.syms.hasStatic {
		m.set(PanelStaticSymbols)
	}
	if f.syms.hasDynamic {
		m.set(PanelDynamicSymbols)
	}
	return m
}

// Panels returns the panels that apply to the file. It is empty until
// Update succeeds.
func (f *File) Panels() PanelMask {
	return f.panels
}

// HasPanel reports whether p applies to the file.
func (f *File) HasPanel(p Panel) bool {
	return f.panels.Has(p)
}
