package pipelib

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/pipelib/internal/hashutil"
	"github.com/gogpu/pipelib/internal/varint"
)

// internalKeySize is the name-table footprint of a hash-keyed entry.
const internalKeySize = 8

// cachedBlob is one stored entry. isNew distinguishes owned copies
// (created by Store) from borrowed views into the seed byte range
// (created by deserialization); only owned entries ever duplicate
// memory.
type cachedBlob struct {
	blob  []byte
	isNew bool
}

// Library is a keyed, thread-safe store of serialized pipeline blobs.
//
// Named entries hold full pipeline blobs; two hash-keyed side maps hold
// deduplicated SPIR-V and driver-cache payloads that named blobs
// reference through link chunks. The whole collection serializes to a
// single flat byte range and reloads zero-copy from one.
//
// Library is safe for concurrent use. When created with seed bytes,
// the seed must remain valid and unmodified for the library's
// lifetime: deserialized entries reference into it without copying.
type Library struct {
	mu       sync.RWMutex
	device   Device
	identity DeviceIdentity
	opts     libraryOptions

	psoMap         map[string]cachedBlob
	spirvCacheMap  map[uint64]cachedBlob
	driverCacheMap map[uint64]cachedBlob

	// Running totals sized so SerializedSize is O(1). totalBlobSize is
	// 8-byte-aligned per entry.
	totalNameTableSize int
	totalBlobSize      int
}

// New creates a pipeline library for device. A non-nil seed is a byte
// range previously produced by Serialize (typically a memory-mapped
// file); it is deserialized without copying blob data and must outlive
// the library. Pass nil to start empty.
func New(device Device, seed []byte, opts ...Option) (*Library, error) {
	l := &Library{
		device:         device,
		identity:       device.Identity(),
		psoMap:         make(map[string]cachedBlob),
		spirvCacheMap:  make(map[uint64]cachedBlob),
		driverCacheMap: make(map[uint64]cachedBlob),
	}
	for _, opt := range opts {
		opt(&l.opts)
	}

	if len(seed) > 0 {
		if err := l.readSerialized(seed); err != nil {
			return nil, err
		}
		Logger().Debug("pipelib: loaded pipeline library",
			"pipelines", len(l.psoMap),
			"spirv", len(l.spirvCacheMap),
			"driver_caches", len(l.driverCacheMap))
	}
	return l, nil
}

// Counts reports the number of named pipelines and deduplicated
// payloads currently stored.
func (l *Library) Counts() (pipelines, spirv, driverCaches int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.psoMap), len(l.spirvCacheMap), len(l.driverCacheMap)
}

// Store serializes state and inserts it under name. The name must be
// unused; storing a second pipeline under an existing name fails with
// ErrAlreadyExists. Unless the library was created with
// WithInlinePayloads, the state's SPIR-V and driver-cache payloads are
// deduplicated into the library's shared maps and the named blob
// references them by hash.
func (l *Library) Store(name string, state *PipelineState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.psoMap[name]; ok {
		Logger().Warn("pipelib: pipeline already exists", "name", name)
		return ErrAlreadyExists
	}

	linkLib := l
	if l.opts.inlinePayloads {
		linkLib = nil
	}
	blob, err := serializePipelineBlob(l.identity, state, linkLib, l.opts)
	if err != nil {
		return err
	}

	if !insertCachedBlob(l, l.psoMap, name, cachedBlob{blob: blob, isNew: true}, len(name)) {
		return ErrAlreadyExists
	}
	Logger().Debug("pipelib: stored pipeline", "name", name, "size", len(blob))
	return nil
}

// Blob returns the serialized blob stored under name, for handing back
// to an application. The returned bytes are the library's storage:
// callers must not modify them, and they stay valid for the library's
// lifetime.
func (l *Library) Blob(name string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.psoMap[name]
	if !ok {
		return nil, ErrNotFound
	}
	return e.blob, nil
}

// LoadGraphics creates a graphics pipeline from the blob stored under
// name. An unknown name fails with ErrNotFound.
func (l *Library) LoadGraphics(name string, desc *GraphicsPipelineDesc) (*PipelineState, error) {
	return l.loadPipeline(name, BindPointGraphics, &PipelineDesc{
		RootSignatureCompatHash: desc.RootSignatureCompatHash,
		Stages:                  desc.Stages,
	})
}

// LoadCompute creates a compute pipeline from the blob stored under
// name. An unknown name fails with ErrNotFound.
func (l *Library) LoadCompute(name string, desc *ComputePipelineDesc) (*PipelineState, error) {
	return l.loadPipeline(name, BindPointCompute, &PipelineDesc{
		RootSignatureCompatHash: desc.RootSignatureCompatHash,
		Stages: []StageBytecode{
			{Stage: gputypes.ShaderStageCompute, Code: desc.Compute},
		},
	})
}

// Load creates a pipeline of either kind from a stream-style
// descriptor. An unknown name fails with ErrNotFound.
func (l *Library) Load(name string, desc *StreamDesc) (*PipelineState, error) {
	return l.loadPipeline(name, desc.BindPoint, &PipelineDesc{
		RootSignatureCompatHash: desc.RootSignatureCompatHash,
		Stages:                  desc.Stages,
	})
}

func (l *Library) loadPipeline(name string, bind BindPoint, desc *PipelineDesc) (*PipelineState, error) {
	l.mu.RLock()
	e, ok := l.psoMap[name]
	l.mu.RUnlock()
	if !ok {
		Logger().Debug("pipelib: pipeline not present", "name", name)
		return nil, ErrNotFound
	}

	// Pipeline creation runs outside the lock; the snapshotted blob
	// slice stays valid for the library's lifetime because entries are
	// never removed or resized.
	return l.device.CreatePipeline(bind, desc, CachedState{Blob: e.blob, Library: l})
}

// dedupDriverCache inserts a driver-cache payload into the shared map
// if its content hash is not yet present, and returns the hash for the
// link chunk. Caller holds the write lock.
func (l *Library) dedupDriverCache(data []byte) uint64 {
	key := hashutil.Hash64(data)
	if _, ok := l.driverCacheMap[key]; !ok {
		insertCachedBlob(l, l.driverCacheMap, key,
			cachedBlob{blob: makeInternalBlob(data), isNew: true}, internalKeySize)
	}
	return key
}

// dedupSPIRV inserts one stage's varint-encoded SPIR-V into the shared
// map if its content hash is not yet present, and returns the hash.
// The key hashes the decompressed SPIR-V, so linked and inline forms
// of the same shader agree. Caller holds the write lock.
func (l *Library) dedupSPIRV(spirv []byte, varintSize int) uint64 {
	key := hashutil.Hash64(spirv)
	if _, ok := l.spirvCacheMap[key]; !ok {
		body := make([]byte, spirvChunkHeaderSize, spirvChunkHeaderSize+varintSize)
		binary.LittleEndian.PutUint32(body[0:], uint32(len(spirv)))
		binary.LittleEndian.PutUint32(body[4:], uint32(varintSize))
		body = varint.AppendBytes(body, spirv)
		insertCachedBlob(l, l.spirvCacheMap, key,
			cachedBlob{blob: makeInternalBlob(body), isNew: true}, internalKeySize)
	}
	return key
}

// resolveSPIRV returns the VARINT_SPIRV chunk body a link chunk
// references.
func (l *Library) resolveSPIRV(hash uint64) ([]byte, error) {
	l.mu.RLock()
	e, ok := l.spirvCacheMap[hash]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unresolved SPIR-V link %016x", ErrInvalidBlob, hash)
	}
	return parseInternalBlob(e.blob)
}

// resolveDriverCache returns the raw driver-cache bytes a link chunk
// references.
func (l *Library) resolveDriverCache(hash uint64) ([]byte, error) {
	l.mu.RLock()
	e, ok := l.driverCacheMap[hash]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unresolved driver cache link %016x", ErrInvalidBlob, hash)
	}
	return parseInternalBlob(e.blob)
}

// parseInternalBlob unwraps a {checksum u32, data[]} deduplicated blob,
// verifying the checksum. Corruption is reported as
// ErrDriverVersionMismatch per the blob corruption policy.
func parseInternalBlob(blob []byte) ([]byte, error) {
	if len(blob) < internalBlobHeaderSize {
		return nil, fmt.Errorf("%w: truncated deduplicated blob", ErrInvalidBlob)
	}
	data := blob[internalBlobHeaderSize:]
	if binary.LittleEndian.Uint32(blob) != hashutil.Checksum(data) {
		Logger().Warn("pipelib: corrupt deduplicated blob entry")
		return nil, ErrDriverVersionMismatch
	}
	return data, nil
}

// sameData reports whether two entries are the same stored datum:
// equal length, equal ownership flag, and the same backing memory.
// Content is deliberately not compared: re-inserting the very slice
// already present (an idempotent reload) is a no-op, while an
// identical-content copy under the same key is still a conflict.
func sameData(a, b cachedBlob) bool {
	if len(a.blob) != len(b.blob) || a.isNew != b.isNew {
		return false
	}
	if len(a.blob) == 0 {
		return true
	}
	return &a.blob[0] == &b.blob[0]
}

// insertCachedBlob is the single insertion point for all three maps.
// An existing identical entry is a no-op success; an existing entry
// with different data is a conflict; a fresh key bumps the running
// size totals.
func insertCachedBlob[K comparable](l *Library, m map[K]cachedBlob, key K, e cachedBlob, keyTableSize int) bool {
	if prev, ok := m[key]; ok {
		return sameData(prev, e)
	}
	m[key] = e
	l.totalNameTableSize += keyTableSize
	l.totalBlobSize += align8(len(e.blob))
	return true
}
