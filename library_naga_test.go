package pipelib

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

const testComputeWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * 2u + 1u;
}
`

// TestCompiledShaderRoundTrip runs the full store/serialize/reload/load
// cycle with real SPIR-V from the naga compiler rather than synthetic
// word streams.
func TestCompiledShaderRoundTrip(t *testing.T) {
	spirv, err := naga.Compile(testComputeWGSL)
	if err != nil {
		t.Fatalf("naga.Compile: %v", err)
	}
	if len(spirv)%4 != 0 {
		t.Fatalf("compiled SPIR-V is %d bytes, not word-aligned", len(spirv))
	}
	if binary.LittleEndian.Uint32(spirv) != 0x07230203 {
		t.Fatalf("compiled SPIR-V has magic %#x", binary.LittleEndian.Uint32(spirv))
	}

	device := &testDevice{identity: testIdentity()}
	lib, _ := New(device, nil)

	source := []byte(testComputeWGSL)
	state := &PipelineState{
		RootSignatureCompatHash: HashShaderCode(source),
		DriverCache:             testDriverCache{data: []byte("driver blob")},
		Stages: []StageCode{{
			Stage: gputypes.ShaderStageCompute,
			SPIRV: spirv,
			Meta: ShaderMeta{
				SourceHash:    HashShaderCode(source),
				WorkgroupSize: [3]uint32{64, 1, 1},
			},
		}},
	}
	if err := lib.Store("doubler", state); err != nil {
		t.Fatalf("Store: %v", err)
	}

	data := serializeLibrary(t, lib)
	reloaded, err := New(device, data)
	if err != nil {
		t.Fatalf("New from serialized bytes: %v", err)
	}

	loaded, err := reloaded.LoadCompute("doubler", &ComputePipelineDesc{
		RootSignatureCompatHash: HashShaderCode(source),
		Compute:                 source,
	})
	if err != nil {
		t.Fatalf("LoadCompute: %v", err)
	}
	if !bytes.Equal(loaded.Stages[0].SPIRV, spirv) {
		t.Error("compiled SPIR-V does not survive the round trip")
	}
	if got := loaded.Stages[0].Meta.WorkgroupSize; got != [3]uint32{64, 1, 1} {
		t.Errorf("workgroup size = %v, want [64 1 1]", got)
	}
}
