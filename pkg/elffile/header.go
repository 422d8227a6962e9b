package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/go-delve/elfscope/pkg/bytesource"
)

// Header is the width-neutral file header.
type Header struct {
	Class      elf.Class
	Data       elf.Data
	OSABI      elf.OSABI
	ABIVersion uint8
	Type       elf.Type
	Machine    elf.Machine
	Version    elf.Version
	Entry      uint64
	Phoff      uint64
	Shoff      uint64
	Flags      uint32
	Ehsize     uint16
	Phentsize  uint16
	Phnum      uint16
	Shentsize  uint16
	Shnum      uint16
	Shstrndx   uint16
}

// Is64 reports whether the file uses the 64-bit record layout.
func (h *Header) Is64() bool {
	return h.Class == elf.ELFCLASS64
}

// ByteOrder returns the byte order declared by the header.
func (h *Header) ByteOrder() binary.ByteOrder {
	if h.Data == elf.ELFDATA2MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// LittleEndian reports whether the file declares the little endian
// encoding. It is false for unknown encodings.
func (h *Header) LittleEndian() bool {
	return h.Data == elf.ELFDATA2LSB
}

var (
	header32Size = binary.Size(elf.Header32{})
	header64Size = binary.Size(elf.Header64{})
)

// parseHeader reads the file header at offset 0 and returns it together
// with the record layout used by the rest of the file and the offset
// following the header.
func parseHeader(src bytesource.Source) (Header, layout, uint64, error) {
	buf := make([]byte, header32Size)
	if err := src.Copy(0, buf); err != nil {
		return Header{}, nil, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if !bytes.Equal(buf[:len(elf.ELFMAG)], []byte(elf.ELFMAG)) {
		return Header{}, nil, 0, fmt.Errorf("%w: bad magic number %q", ErrMalformedHeader, buf[:len(elf.ELFMAG)])
	}

	var order binary.ByteOrder
	switch d := elf.Data(buf[elf.EI_DATA]); d {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		// Recorded as is. Multi-byte fields are read little endian.
		order = binary.LittleEndian
	}

	var l layout
	switch c := elf.Class(buf[elf.EI_CLASS]); c {
	case elf.ELFCLASS32:
		l = layout32{order}
	case elf.ELFCLASS64:
		buf = make([]byte, header64Size)
		if err := src.Copy(0, buf); err != nil {
			return Header{}, nil, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		}
		l = layout64{order}
	default:
		return Header{}, nil, 0, fmt.Errorf("%w: unknown class %v", ErrMalformedHeader, c)
	}

	h, err := l.header(buf)
	if err != nil {
		return Header{}, nil, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return h, l, uint64(len(buf)), nil
}
