package pipelib

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/pipelib/internal/hashutil"
	"github.com/gogpu/pipelib/internal/varint"
)

// chunkWriter emits TLV chunks into a pre-measured buffer. The buffer
// comes from make, so the zero-fill padding between chunks (which is
// part of the checksummed bytes) is already in place.
type chunkWriter struct {
	buf []byte
	off int
}

// next writes a chunk header and returns the body slice to fill.
func (w *chunkWriter) next(ctype uint32, size int) []byte {
	binary.LittleEndian.PutUint32(w.buf[w.off:], ctype)
	binary.LittleEndian.PutUint32(w.buf[w.off+4:], uint32(size))
	body := w.buf[w.off+chunkHeaderSize : w.off+chunkHeaderSize+size]
	w.off += align8(chunkHeaderSize + size)
	return body
}

// serializableStage is a stage that survives serialization filtering,
// with its varint size precomputed by the measure phase.
type serializableStage struct {
	code       *StageCode
	varintSize int
}

// SerializePipeline serializes a pipeline state into a standalone,
// self-contained blob tagged with the given device identity. All
// payloads are inlined; the blob validates and extracts without a
// library.
func SerializePipeline(identity DeviceIdentity, state *PipelineState) ([]byte, error) {
	return serializePipelineBlob(identity, state, nil, libraryOptions{})
}

// serializePipelineBlob is the shared measure-then-emit path. When lib
// is non-nil the blob is library-embedded: SPIR-V and driver-cache
// payloads are deduplicated into lib's internal maps and the blob
// carries link chunks instead of inline data. The caller holds lib's
// write lock in that mode.
func serializePipelineBlob(identity DeviceIdentity, state *PipelineState, lib *Library, opts libraryOptions) ([]byte, error) {
	var driverData []byte
	haveDriverCache := state.DriverCache != nil && !opts.withoutDriverCache
	if haveDriverCache {
		data, err := state.DriverCache.Data()
		if err != nil {
			return nil, fmt.Errorf("pipelib: failed to read driver pipeline cache: %w", err)
		}
		driverData = data
	}

	stages := make([]serializableStage, 0, len(state.Stages))
	for i := range state.Stages {
		code := &state.Stages[i]
		if len(code.SPIRV) == 0 || code.Meta.Flags&ShaderMetaFlagReplaced != 0 {
			continue
		}
		if len(code.SPIRV)%4 != 0 {
			return nil, fmt.Errorf("%w: stage SPIR-V size %d is not a multiple of 4", ErrInvalidBlob, len(code.SPIRV))
		}
		stages = append(stages, serializableStage{code: code, varintSize: varint.SizeBytes(code.SPIRV)})
	}

	// Measure. Emission order is fixed, so the size is exact.
	payloadSize := align8(chunkHeaderSize + psoCompatChunkSize)
	if haveDriverCache {
		if lib != nil {
			payloadSize += align8(chunkHeaderSize + linkChunkSize)
		} else {
			payloadSize += align8(chunkHeaderSize + len(driverData))
		}
	}
	for _, s := range stages {
		if lib != nil {
			payloadSize += align8(chunkHeaderSize + linkChunkSize)
		} else {
			payloadSize += align8(chunkHeaderSize + spirvChunkHeaderSize + s.varintSize)
		}
		payloadSize += align8(chunkHeaderSize + shaderMetaSize)
	}

	// Emit.
	buf := make([]byte, blobHeaderSize+payloadSize)
	binary.LittleEndian.PutUint32(buf[blobOffVersion:], BlobMagic)
	binary.LittleEndian.PutUint32(buf[blobOffVendorID:], identity.VendorID)
	binary.LittleEndian.PutUint32(buf[blobOffDeviceID:], identity.DeviceID)
	binary.LittleEndian.PutUint64(buf[blobOffBuild:], identity.Build)
	binary.LittleEndian.PutUint64(buf[blobOffIfaceKey:], identity.ShaderInterfaceKey)
	copy(buf[blobOffUUID:], identity.CacheUUID[:])

	w := &chunkWriter{buf: buf, off: blobHeaderSize}

	body := w.next(chunkPSOCompat, psoCompatChunkSize)
	binary.LittleEndian.PutUint64(body, state.RootSignatureCompatHash)

	if haveDriverCache {
		if lib != nil {
			key := lib.dedupDriverCache(driverData)
			body = w.next(chunkPipelineCacheLink, linkChunkSize)
			binary.LittleEndian.PutUint64(body, key)
		} else {
			body = w.next(chunkPipelineCache, len(driverData))
			copy(body, driverData)
		}
	}

	for _, s := range stages {
		if lib != nil {
			key := lib.dedupSPIRV(s.code.SPIRV, s.varintSize)
			body = w.next(chunkType(chunkVarintSPIRVLink, s.code.Stage), linkChunkSize)
			binary.LittleEndian.PutUint64(body, key)
		} else {
			body = w.next(chunkType(chunkVarintSPIRV, s.code.Stage), spirvChunkHeaderSize+s.varintSize)
			putSPIRVChunk(body, s.code.SPIRV)
		}

		body = w.next(chunkType(chunkShaderMeta, s.code.Stage), shaderMetaSize)
		putShaderMeta(body, s.code.Meta)
	}

	binary.LittleEndian.PutUint32(buf[blobOffChecksum:], hashutil.Checksum(buf[blobHeaderSize:]))
	return buf, nil
}

// putSPIRVChunk fills a VARINT_SPIRV chunk body: decompressed size,
// compressed size, then the varint stream. body is pre-sized to
// spirvChunkHeaderSize plus the varint size of spirv.
func putSPIRVChunk(body []byte, spirv []byte) {
	binary.LittleEndian.PutUint32(body[0:], uint32(len(spirv)))
	binary.LittleEndian.PutUint32(body[4:], uint32(len(body)-spirvChunkHeaderSize))
	varint.AppendBytes(body[spirvChunkHeaderSize:spirvChunkHeaderSize:len(body)], spirv)
}

// makeInternalBlob wraps a deduplicated payload with its checksum
// prefix: {checksum u32, data[]}.
func makeInternalBlob(data []byte) []byte {
	blob := make([]byte, internalBlobHeaderSize+len(data))
	binary.LittleEndian.PutUint32(blob, hashutil.Checksum(data))
	copy(blob[internalBlobHeaderSize:], data)
	return blob
}
