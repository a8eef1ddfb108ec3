package pipelib

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gogpu/wgpu/core"

	"github.com/gogpu/pipelib/internal/hashutil"
)

// DeviceIdentity pins cached blobs to the environment that produced
// them. All fields participate in blob validation: a blob is only
// usable when every field matches the current device exactly.
type DeviceIdentity struct {
	// VendorID is the PCI vendor id of the GPU.
	VendorID uint32
	// DeviceID is the PCI device id of the GPU.
	DeviceID uint32
	// Build identifies the translation-layer build. The shader compiler
	// changes between builds, so cached SPIR-V from another build is
	// unusable.
	Build uint64
	// ShaderInterfaceKey digests the configuration that affects
	// generated SPIR-V: extension availability, feature toggles.
	ShaderInterfaceKey uint64
	// CacheUUID is the driver's pipeline-cache UUID. The driver refuses
	// or silently drops cache data created under a different UUID.
	CacheUUID [16]byte
}

// DriverCache is a handle to the underlying driver's opaque pipeline
// cache for one pipeline.
type DriverCache interface {
	// Data returns the driver's serialized cache blob. The returned
	// bytes are owned by the caller.
	Data() ([]byte, error)
}

// BindPoint selects the pipeline kind being created.
type BindPoint uint8

const (
	BindPointGraphics BindPoint = iota
	BindPointCompute
)

// Device is the surface pipelib consumes from the underlying graphics
// layer. Implementations wrap a concrete device of the lower-level API.
type Device interface {
	// Identity reports the device identity cached blobs are gated on.
	Identity() DeviceIdentity

	// CreatePipelineCache builds a driver pipeline cache, primed with
	// initialData when non-empty.
	CreatePipelineCache(initialData []byte) (DriverCache, error)

	// CreatePipeline compiles a pipeline from desc, consulting the
	// attached cached state. Implementations are expected to call
	// ValidatePipelineBlob, ExtractSPIRV and CreateDriverCacheFromBlob
	// on cached before falling back to a full rebuild.
	CreatePipeline(bind BindPoint, desc *PipelineDesc, cached CachedState) (*PipelineState, error)
}

// CachedState carries a serialized pipeline blob into pipeline
// creation. Library is non-nil when the blob may reference
// deduplicated payloads stored in a pipeline library; it resolves the
// link chunks.
type CachedState struct {
	Blob    []byte
	Library *Library
}

// pciVendorIDs maps adapter vendor names reported by wgpu to PCI
// vendor ids. Matched in order; first hit wins.
var pciVendorIDs = []struct {
	name string
	id   uint32
}{
	{"nvidia", 0x10de},
	{"advanced micro devices", 0x1002},
	{"amd", 0x1002},
	{"intel", 0x8086},
	{"apple", 0x106b},
	{"qualcomm", 0x5143},
	{"broadcom", 0x14e4},
	{"arm", 0x13b5},
	// "ati" is a substring of "corporation", so it is tried last.
	{"ati", 0x1002},
}

// IdentityFromAdapter derives a DeviceIdentity from a wgpu adapter.
// The vendor name maps to its PCI vendor id where known; the device id
// and cache UUID are digested from the adapter's name and driver
// strings, so a driver update invalidates cached blobs the same way a
// changed pipelineCacheUUID would.
//
// build and shaderInterfaceKey come from the translation layer; see
// DeviceIdentity for their meaning.
func IdentityFromAdapter(adapterID core.AdapterID, build, shaderInterfaceKey uint64) (DeviceIdentity, error) {
	info, err := core.GetAdapterInfo(adapterID)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("pipelib: failed to get adapter info: %w", err)
	}

	id := DeviceIdentity{
		VendorID:           vendorIDFromName(info.Vendor),
		DeviceID:           hashutil.Fold32(hashutil.Hash64([]byte(info.Name))),
		Build:              build,
		ShaderInterfaceKey: shaderInterfaceKey,
	}

	nameHash := hashutil.Hash64([]byte(info.Name))
	driverHash := hashutil.Hash64([]byte(info.Driver))
	binary.LittleEndian.PutUint64(id.CacheUUID[0:], nameHash)
	binary.LittleEndian.PutUint64(id.CacheUUID[8:], driverHash)
	return id, nil
}

// vendorIDFromName maps an adapter vendor string to a PCI vendor id,
// hashing unknown vendors so distinct vendors still compare unequal.
func vendorIDFromName(vendor string) uint32 {
	v := strings.ToLower(vendor)
	for _, e := range pciVendorIDs {
		if strings.Contains(v, e.name) {
			return e.id
		}
	}
	return hashutil.Fold32(hashutil.Hash64([]byte(v)))
}
