package bytesource

import (
	"os"
)

// File is a Source backed by the contents of a file on disk. On unix
// systems the file is memory mapped, elsewhere it is read into memory.
type File struct {
	Bytes
	path  string
	unmap func() error
}

// Open maps the file at path.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &File{path: path}, nil
	}
	data, unmap, err := mapFile(fh, fi.Size())
	if err != nil {
		return nil, err
	}
	return &File{Bytes: data, path: path, unmap: unmap}, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Close releases the mapping. The Source must not be used afterwards.
func (f *File) Close() error {
	f.Bytes = nil
	if f.unmap == nil {
		return nil
	}
	unmap := f.unmap
	f.unmap = nil
	return unmap()
}
