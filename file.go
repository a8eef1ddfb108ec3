package pipelib

import "io"

// OpenFile opens a serialized pipeline library directly from a file.
// On unix platforms the file is memory-mapped read-only and the
// library borrows the mapping, so opening a multi-hundred-megabyte
// library faults in little more than the table of contents. Elsewhere
// the file is read into memory.
//
// The returned closer releases the mapping; for the in-memory fallback
// it does nothing. It must not be closed while the library is in use:
// deserialized entries reference the mapped bytes directly.
func OpenFile(device Device, path string, opts ...Option) (*Library, io.Closer, error) {
	data, closer, err := readFileShared(path)
	if err != nil {
		return nil, nil, err
	}
	lib, err := New(device, data, opts...)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return lib, closer, nil
}

// nopCloser is the closer for backing stores with nothing to release.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }
