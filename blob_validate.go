package pipelib

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/pipelib/internal/hashutil"
)

// ValidatePipelineBlob checks a cached pipeline blob against the
// current device identity and the root-signature layout the caller is
// about to use. Checks run in order and the first failure wins:
//
//   - short blob or wrong magic: ErrDriverVersionMismatch
//   - vendor or device id mismatch: ErrAdapterNotFound
//   - build, shader-interface key or cache UUID mismatch:
//     ErrDriverVersionMismatch
//   - checksum mismatch: ErrDriverVersionMismatch (corrupt data is
//     reported as version-stale by policy, see ErrDriverVersionMismatch)
//   - PSO compatibility chunk absent or mis-sized: ErrMissingChunk
//   - root-signature hash mismatch: ErrInvalidBlob
func ValidatePipelineBlob(identity DeviceIdentity, blob []byte, rootSignatureCompatHash uint64) error {
	if len(blob) < blobHeaderSize || binary.LittleEndian.Uint32(blob[blobOffVersion:]) != BlobMagic {
		return ErrDriverVersionMismatch
	}

	stored := blobIdentity(blob)
	if stored.VendorID != identity.VendorID || stored.DeviceID != identity.DeviceID {
		return ErrAdapterNotFound
	}
	if stored.Build != identity.Build ||
		stored.ShaderInterfaceKey != identity.ShaderInterfaceKey ||
		stored.CacheUUID != identity.CacheUUID {
		return ErrDriverVersionMismatch
	}

	payload := blob[blobHeaderSize:]
	if hashutil.Checksum(payload) != binary.LittleEndian.Uint32(blob[blobOffChecksum:]) {
		Logger().Warn("pipelib: corrupt pipeline blob entry")
		return ErrDriverVersionMismatch
	}

	compat := findChunk(payload, chunkPSOCompat)
	if compat == nil || len(compat) != psoCompatChunkSize {
		return ErrMissingChunk
	}
	if binary.LittleEndian.Uint64(compat) != rootSignatureCompatHash {
		Logger().Warn("pipelib: root signature compatibility hash mismatch")
		return fmt.Errorf("%w: root signature compatibility hash mismatch", ErrInvalidBlob)
	}

	return nil
}
