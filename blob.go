package pipelib

import (
	"encoding/binary"

	"github.com/gogpu/gputypes"
)

// Both persisted formats are little-endian and 8-byte aligned, and open
// with a four-byte magic that doubles as the format version: bumping
// the version digit invalidates every existing cache file.
const (
	// BlobMagic tags a single serialized pipeline blob ("VKB" + version).
	BlobMagic uint32 = 'V' | 'K'<<8 | 'B'<<16 | 3<<24
	// LibraryMagic tags a serialized pipeline library ("VKL" + version).
	LibraryMagic uint32 = 'V' | 'K'<<8 | 'L'<<16 | 3<<24
)

// Chunk kinds. A chunk's on-disk type is a packed u32: the kind in the
// low 16 bits, an optional index (a shader-stage bit for per-stage
// chunks) in the high 16. The packing is an on-disk contract.
const (
	// Raw driver pipeline-cache bytes.
	chunkPipelineCache = 0
	// One stage's varint-compressed SPIR-V. Stage in the upper 16 bits.
	chunkVarintSPIRV = 1
	// Hash reference to a driver-cache payload deduplicated in a
	// pipeline library.
	chunkPipelineCacheLink = 2
	// Hash reference to a deduplicated SPIR-V payload. Stage in the
	// upper 16 bits.
	chunkVarintSPIRVLink = 3
	// Fixed ShaderMeta struct. Stage in the upper 16 bits.
	chunkShaderMeta = 4
	// Root-signature compatibility hash.
	chunkPSOCompat = 5

	chunkKindMask   = 0xffff
	chunkIndexShift = 16
)

const (
	// chunkHeaderSize is the {type u32, size u32} prefix of every chunk.
	chunkHeaderSize = 8
	// chunkAlign pads each chunk's end to an 8-byte boundary. Padding
	// bytes are zero so identical logical content checksums identically.
	chunkAlign = 8
	// blobAlign aligns each blob inside a serialized library.
	blobAlign = 8

	// spirvChunkHeaderSize is the {decompressedSize u32, compressedSize
	// u32} prefix of a VARINT_SPIRV chunk payload.
	spirvChunkHeaderSize = 8
	// linkChunkSize is the payload of a *_LINK chunk: one u64 hash.
	linkChunkSize = 8
	// psoCompatChunkSize is the payload of a PSO_COMPAT chunk.
	psoCompatChunkSize = 8

	// internalBlobHeaderSize is the u32 checksum prefixing a
	// deduplicated payload inside a library.
	internalBlobHeaderSize = 4
)

// Single-pipeline blob header field offsets.
const (
	blobOffVersion  = 0  // uint32
	blobOffVendorID = 4  // uint32
	blobOffDeviceID = 8  // uint32
	blobOffChecksum = 12 // uint32, over data[blobHeaderSize:] incl. padding
	blobOffBuild    = 16 // uint64
	blobOffIfaceKey = 24 // uint64
	blobOffUUID     = 32 // [16]byte
	blobHeaderSize  = 48
)

func align8(n int) int { return (n + 7) &^ 7 }

// chunkType packs a chunk kind with a shader-stage index.
func chunkType(kind uint32, stage gputypes.ShaderStage) uint32 {
	return kind | uint32(stage)<<chunkIndexShift
}

// findChunk scans payload for the first chunk with the given packed
// type and returns its body, or nil. A chunk whose aligned extent
// exceeds the remaining payload terminates the walk: the tail is
// malformed and treated as absent.
func findChunk(payload []byte, ctype uint32) []byte {
	for len(payload) >= chunkHeaderSize {
		t := binary.LittleEndian.Uint32(payload)
		size := int(binary.LittleEndian.Uint32(payload[4:]))
		aligned := align8(chunkHeaderSize + size)
		if aligned > len(payload) || aligned < 0 {
			return nil
		}
		if t == ctype {
			return payload[chunkHeaderSize : chunkHeaderSize+size]
		}
		payload = payload[aligned:]
	}
	return nil
}

// blobIdentity reads the device-identity fields out of a blob header.
// The caller has already checked the length.
func blobIdentity(blob []byte) DeviceIdentity {
	var id DeviceIdentity
	id.VendorID = binary.LittleEndian.Uint32(blob[blobOffVendorID:])
	id.DeviceID = binary.LittleEndian.Uint32(blob[blobOffDeviceID:])
	id.Build = binary.LittleEndian.Uint64(blob[blobOffBuild:])
	id.ShaderInterfaceKey = binary.LittleEndian.Uint64(blob[blobOffIfaceKey:])
	copy(id.CacheUUID[:], blob[blobOffUUID:blobOffUUID+16])
	return id
}
