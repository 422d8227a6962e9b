//go:build unix

package bytesource

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(fh *os.File, size int64) ([]byte, func() error, error) {
	if int64(int(size)) != size {
		return nil, nil, fmt.Errorf("%s: file too large to map (%d bytes)", fh.Name(), size)
	}
	data, err := unix.Mmap(int(fh.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %s: %w", fh.Name(), err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
