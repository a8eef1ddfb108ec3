package pipelib

import "errors"

var (
	// ErrDriverVersionMismatch is returned when a blob was produced by a
	// different build, driver or format version, or when its payload is
	// corrupt. Callers recover by rebuilding the pipeline from source.
	//
	// Corruption deliberately maps here rather than to ErrInvalidBlob:
	// cache consumers handle a version mismatch gracefully (recompile)
	// but tend to treat invalid-argument as fatal.
	ErrDriverVersionMismatch = errors.New("pipelib: driver version mismatch")

	// ErrAdapterNotFound is returned when a blob was produced on a
	// different GPU (vendor or device id mismatch).
	ErrAdapterNotFound = errors.New("pipelib: adapter not found")

	// ErrInvalidBlob is returned for content-level mismatches: wrong
	// root-signature compatibility hash, wrong source shader hash,
	// undecodable SPIR-V, or out-of-bounds table-of-contents entries.
	ErrInvalidBlob = errors.New("pipelib: invalid blob data")

	// ErrMissingChunk is returned when a blob lacks a chunk that the
	// format requires (the PSO compatibility chunk, or a shader stage
	// the caller asked for).
	ErrMissingChunk = errors.New("pipelib: required blob chunk missing")

	// ErrAlreadyExists is returned by Store for a name that is already
	// present in the library.
	ErrAlreadyExists = errors.New("pipelib: pipeline name already exists")

	// ErrNotFound is returned by the Load functions for an unknown name.
	ErrNotFound = errors.New("pipelib: pipeline not found")

	// ErrBufferTooSmall is returned by Serialize when the destination
	// buffer is smaller than SerializedSize. The caller resizes and
	// retries.
	ErrBufferTooSmall = errors.New("pipelib: serialization buffer too small")
)
