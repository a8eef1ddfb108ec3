package pipelib

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pipelib/internal/varint"
)

// CreateDriverCacheFromBlob builds a driver pipeline cache from the
// cached state, primed with the blob's stored driver-cache payload
// when one is present (inline or linked). A missing or empty blob
// yields an unprimed cache. That is not an error, merely a cold
// start.
func CreateDriverCacheFromBlob(device Device, cached CachedState) (DriverCache, error) {
	if len(cached.Blob) < blobHeaderSize {
		return device.CreatePipelineCache(nil)
	}
	payload := cached.Blob[blobHeaderSize:]

	if body := findChunk(payload, chunkPipelineCache); body != nil {
		return device.CreatePipelineCache(body)
	}

	if body := findChunk(payload, chunkPipelineCacheLink); body != nil && len(body) == linkChunkSize {
		if cached.Library == nil {
			return nil, fmt.Errorf("%w: driver cache link without a library", ErrInvalidBlob)
		}
		data, err := cached.Library.resolveDriverCache(binary.LittleEndian.Uint64(body))
		if err != nil {
			return nil, err
		}
		return device.CreatePipelineCache(data)
	}

	return device.CreatePipelineCache(nil)
}

// ExtractSPIRV pulls one stage's SPIR-V and metadata out of a cached
// pipeline blob. sourceCode is the source bytecode the caller is about
// to compile for that stage; its hash must match the stored metadata,
// otherwise the cache refers to a different shader and ErrInvalidBlob
// is returned.
//
// The stage's SPIR-V may be stored inline or as a link into the
// library the blob came from; link resolution requires
// cached.Library.
func ExtractSPIRV(cached CachedState, stage gputypes.ShaderStage, sourceCode []byte) ([]byte, ShaderMeta, error) {
	var meta ShaderMeta
	if len(cached.Blob) < blobHeaderSize {
		return nil, meta, fmt.Errorf("%w: shader meta for stage %#x", ErrMissingChunk, uint32(stage))
	}
	payload := cached.Blob[blobHeaderSize:]

	metaBody := findChunk(payload, chunkType(chunkShaderMeta, stage))
	if metaBody == nil || len(metaBody) != shaderMetaSize {
		return nil, meta, fmt.Errorf("%w: shader meta for stage %#x", ErrMissingChunk, uint32(stage))
	}
	meta = getShaderMeta(metaBody)

	if h := HashShaderCode(sourceCode); h != meta.SourceHash {
		Logger().Warn("pipelib: source shader hash mismatch",
			"stage", uint32(stage), "got", h, "want", meta.SourceHash)
		return nil, meta, fmt.Errorf("%w: source shader hash mismatch", ErrInvalidBlob)
	}

	spirvBody := findChunk(payload, chunkType(chunkVarintSPIRV, stage))
	if spirvBody == nil {
		linkBody := findChunk(payload, chunkType(chunkVarintSPIRVLink, stage))
		if linkBody == nil || len(linkBody) != linkChunkSize {
			return nil, meta, fmt.Errorf("%w: SPIR-V for stage %#x", ErrMissingChunk, uint32(stage))
		}
		if cached.Library == nil {
			return nil, meta, fmt.Errorf("%w: SPIR-V link without a library", ErrInvalidBlob)
		}
		resolved, err := cached.Library.resolveSPIRV(binary.LittleEndian.Uint64(linkBody))
		if err != nil {
			return nil, meta, err
		}
		spirvBody = resolved
	}

	spirv, err := decodeSPIRVChunk(spirvBody)
	if err != nil {
		return nil, meta, err
	}
	return spirv, meta, nil
}

// decodeSPIRVChunk decodes a VARINT_SPIRV chunk body back into raw
// SPIR-V bytes.
func decodeSPIRVChunk(body []byte) ([]byte, error) {
	if len(body) < spirvChunkHeaderSize {
		return nil, fmt.Errorf("%w: truncated SPIR-V chunk", ErrInvalidBlob)
	}
	decompressedSize := int(binary.LittleEndian.Uint32(body[0:]))
	compressedSize := int(binary.LittleEndian.Uint32(body[4:]))
	if decompressedSize%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V size %d is not a multiple of 4", ErrInvalidBlob, decompressedSize)
	}
	if spirvChunkHeaderSize+compressedSize != len(body) {
		return nil, fmt.Errorf("%w: SPIR-V chunk size mismatch", ErrInvalidBlob)
	}

	spirv := make([]byte, decompressedSize)
	if err := varint.DecodeBytes(spirv, body[spirvChunkHeaderSize:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	return spirv, nil
}
