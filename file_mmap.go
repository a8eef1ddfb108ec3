//go:build unix

package pipelib

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mmapCloser unmaps a file-backed library region.
type mmapCloser struct {
	data []byte
}

func (c *mmapCloser) Close() error { return unix.Munmap(c.data) }

// readFileShared maps path read-only. The file descriptor is closed
// before returning; the mapping keeps the pages alive.
func readFileShared(path string) ([]byte, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := st.Size()
	if size == 0 {
		return nil, nopCloser{}, nil
	}
	if size != int64(int(size)) {
		return nil, nil, fmt.Errorf("pipelib: %s: file too large to map", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("pipelib: failed to mmap %s: %w", path, err)
	}
	return data, &mmapCloser{data: data}, nil
}
