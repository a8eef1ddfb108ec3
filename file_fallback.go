//go:build !unix

package pipelib

import (
	"io"
	"os"
)

// readFileShared reads path into memory on platforms without mmap
// support. The library then borrows the returned buffer.
func readFileShared(path string) ([]byte, io.Closer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, nopCloser{}, nil
}
