// Package pipelib persists compiled GPU pipeline state across process
// runs for graphics-API translation layers built on the GoGPU stack.
//
// # Overview
//
// A translated pipeline is expensive to rebuild: its SPIR-V has to be
// recompiled from source bytecode and the driver has to re-optimize the
// pipeline from scratch. pipelib captures the result of that work in a
// versioned, checksummed blob holding the driver's opaque pipeline-cache
// data, the per-stage SPIR-V (varint-compressed), and the compatibility
// hashes that tie the blob to a specific resource-binding layout. A named
// collection of such blobs serializes to a single flat byte range.
//
// # Quick Start
//
//	import "github.com/gogpu/pipelib"
//
//	// Create a library, store a compiled pipeline under a name.
//	lib, _ := pipelib.New(device, nil)
//	_ = lib.Store("shadow_pass", state)
//
//	// Persist it.
//	buf := make([]byte, lib.SerializedSize())
//	_ = lib.Serialize(buf)
//	_ = os.WriteFile(path, buf, 0o644)
//
//	// Next run: reload and fetch pipelines by name.
//	lib, closer, _ := pipelib.OpenFile(device, path)
//	defer closer.Close()
//	state, err := lib.LoadCompute("shadow_pass", desc)
//
// # Validation
//
// Blobs are untrusted input. A pipeline blob is validated against the
// format magic, the device identity (vendor, device, driver cache UUID,
// build and shader-interface key) and a checksum over its payload before
// its content is used. A serialized library header is gated on the same
// magic and identity and its table of contents is bounds-checked; the
// library as a whole carries no checksum, so corruption inside a stored
// blob surfaces when that blob is validated. A blob produced by a different driver or
// build fails with ErrDriverVersionMismatch or ErrAdapterNotFound, and
// the caller is expected to rebuild from source.
//
// # Architecture
//
// The module is organized into:
//   - Public API: Library, PipelineState, blob serialize/validate/extract
//   - Internal: varint (SPIR-V word-stream codec), hashutil (FNV-1 checksums)
//   - cmd/pipelibtool: build and inspect serialized libraries
package pipelib
