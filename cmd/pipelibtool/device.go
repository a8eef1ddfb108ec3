package main

import "github.com/gogpu/pipelib"

// hostDevice is a synthetic pipelib.Device: driver caches are plain
// in-memory buffers and pipeline creation just validates and unpacks
// the cached blob.
type hostDevice struct {
	identity pipelib.DeviceIdentity
}

func (d *hostDevice) Identity() pipelib.DeviceIdentity { return d.identity }

func (d *hostDevice) CreatePipelineCache(initialData []byte) (pipelib.DriverCache, error) {
	return memDriverCache{data: append([]byte(nil), initialData...)}, nil
}

func (d *hostDevice) CreatePipeline(bind pipelib.BindPoint, desc *pipelib.PipelineDesc, cached pipelib.CachedState) (*pipelib.PipelineState, error) {
	if err := pipelib.ValidatePipelineBlob(d.identity, cached.Blob, desc.RootSignatureCompatHash); err != nil {
		return nil, err
	}

	state := &pipelib.PipelineState{RootSignatureCompatHash: desc.RootSignatureCompatHash}
	for _, sb := range desc.Stages {
		spirv, meta, err := pipelib.ExtractSPIRV(cached, sb.Stage, sb.Code)
		if err != nil {
			return nil, err
		}
		state.Stages = append(state.Stages, pipelib.StageCode{Stage: sb.Stage, SPIRV: spirv, Meta: meta})
	}

	driverCache, err := pipelib.CreateDriverCacheFromBlob(d, cached)
	if err != nil {
		return nil, err
	}
	state.DriverCache = driverCache
	return state, nil
}

// memDriverCache is an in-memory stand-in for a driver pipeline cache.
type memDriverCache struct {
	data []byte
}

func (c memDriverCache) Data() ([]byte, error) { return c.data, nil }
