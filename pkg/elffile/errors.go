package elffile

import "errors"

var (
	// ErrMalformedHeader is returned when the file header cannot be read or
	// declares an unknown class.
	ErrMalformedHeader = errors.New("malformed ELF header")
	// ErrTruncatedTable is returned when the segment or section table lies
	// outside the file.
	ErrTruncatedTable = errors.New("truncated table")
	// ErrUnresolvedReference is reported for indices and offsets that do not
	// resolve inside the table or blob they refer to.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrDecodeFailure is reported when no instruction could be decoded.
	ErrDecodeFailure = errors.New("instruction decode failure")
	// ErrUnsupportedRegion is reported for valid but unsupported encodings,
	// such as extended section indices.
	ErrUnsupportedRegion = errors.New("unsupported region")
)
