package pipelib

import (
	"encoding/binary"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pipelib/internal/hashutil"
)

// Shader meta flag bits.
const (
	// ShaderMetaFlagReplaced marks a stage whose code was replaced by a
	// developer override. Replaced stages are never serialized: the
	// override is external to the cache and may change at any time.
	ShaderMetaFlagReplaced uint32 = 1 << 0
)

// shaderMetaSize is the fixed on-disk size of a SHADER_META chunk
// payload.
const shaderMetaSize = 32

// ShaderMeta is the per-stage metadata serialized next to a stage's
// SPIR-V. SourceHash gates a cached stage against the source bytecode
// the caller is about to compile: a mismatch means the cache refers to
// a different shader.
type ShaderMeta struct {
	SourceHash       uint64
	Flags            uint32
	WorkgroupSize    [3]uint32
	PatchVertexCount uint32
}

// putShaderMeta writes meta into buf, which must hold shaderMetaSize
// bytes. The trailing reserved word stays zero.
func putShaderMeta(buf []byte, meta ShaderMeta) {
	binary.LittleEndian.PutUint64(buf[0:], meta.SourceHash)
	binary.LittleEndian.PutUint32(buf[8:], meta.Flags)
	binary.LittleEndian.PutUint32(buf[12:], meta.WorkgroupSize[0])
	binary.LittleEndian.PutUint32(buf[16:], meta.WorkgroupSize[1])
	binary.LittleEndian.PutUint32(buf[20:], meta.WorkgroupSize[2])
	binary.LittleEndian.PutUint32(buf[24:], meta.PatchVertexCount)
	binary.LittleEndian.PutUint32(buf[28:], 0)
}

// getShaderMeta reads a ShaderMeta from a shaderMetaSize-byte payload.
func getShaderMeta(buf []byte) ShaderMeta {
	return ShaderMeta{
		SourceHash: binary.LittleEndian.Uint64(buf[0:]),
		Flags:      binary.LittleEndian.Uint32(buf[8:]),
		WorkgroupSize: [3]uint32{
			binary.LittleEndian.Uint32(buf[12:]),
			binary.LittleEndian.Uint32(buf[16:]),
			binary.LittleEndian.Uint32(buf[20:]),
		},
		PatchVertexCount: binary.LittleEndian.Uint32(buf[24:]),
	}
}

// StageCode is one shader stage of a compiled pipeline: the generated
// SPIR-V (a little-endian stream of 32-bit words) plus its metadata.
type StageCode struct {
	Stage gputypes.ShaderStage
	SPIRV []byte
	Meta  ShaderMeta
}

// PipelineState is the cacheable payload of one compiled pipeline.
// Stages appear in pipeline order; DriverCache may be nil when the
// driver produced no cache data.
type PipelineState struct {
	RootSignatureCompatHash uint64
	DriverCache             DriverCache
	Stages                  []StageCode
}

// StageBytecode pairs a shader stage with its source bytecode. The
// source is hashed during load to verify that a cached stage still
// corresponds to the shader the caller provides.
type StageBytecode struct {
	Stage gputypes.ShaderStage
	Code  []byte
}

// PipelineDesc is the bind-point-independent pipeline description the
// Load functions hand to the device together with the cached blob.
type PipelineDesc struct {
	RootSignatureCompatHash uint64
	Stages                  []StageBytecode
}

// GraphicsPipelineDesc describes a graphics pipeline to load.
type GraphicsPipelineDesc struct {
	RootSignatureCompatHash uint64
	Stages                  []StageBytecode
}

// ComputePipelineDesc describes a compute pipeline to load.
type ComputePipelineDesc struct {
	RootSignatureCompatHash uint64
	Compute                 []byte
}

// StreamDesc describes a pipeline of either kind, mirroring the host
// API's stream-style descriptor.
type StreamDesc struct {
	BindPoint               BindPoint
	RootSignatureCompatHash uint64
	Stages                  []StageBytecode
}

// HashShaderCode computes the source-bytecode hash stored in
// ShaderMeta.SourceHash.
func HashShaderCode(code []byte) uint64 {
	return hashutil.Hash64(code)
}
