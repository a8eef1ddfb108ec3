package pipelib

import (
	"encoding/binary"
	"fmt"
)

// libraryIdentity reads the identity fields out of a serialized
// library header. The caller has already checked the length.
func libraryIdentity(seed []byte) DeviceIdentity {
	var id DeviceIdentity
	id.VendorID = binary.LittleEndian.Uint32(seed[libOffVendorID:])
	id.DeviceID = binary.LittleEndian.Uint32(seed[libOffDeviceID:])
	id.Build = binary.LittleEndian.Uint64(seed[libOffBuild:])
	id.ShaderInterfaceKey = binary.LittleEndian.Uint64(seed[libOffIfaceKey:])
	copy(id.CacheUUID[:], seed[libOffUUID:libOffUUID+16])
	return id
}

// readSerialized rebuilds the three maps from a serialized library.
// Blob values reference into seed without copying (map keys are copied:
// names into strings, hash keys into uint64s), which is what makes
// memory-mapped consumption work. Identity gating mirrors single-blob
// validation: stale format or build is ErrDriverVersionMismatch,
// different GPU is ErrAdapterNotFound. A TOC that does not fit in seed
// is ErrDriverVersionMismatch; out-of-bounds name or blob entries and
// conflicting duplicates are ErrInvalidBlob.
func (l *Library) readSerialized(seed []byte) error {
	if len(seed) < libraryHeaderSize ||
		binary.LittleEndian.Uint32(seed[libOffVersion:]) != LibraryMagic {
		return ErrDriverVersionMismatch
	}

	stored := libraryIdentity(seed)
	if stored.VendorID != l.identity.VendorID || stored.DeviceID != l.identity.DeviceID {
		return ErrAdapterNotFound
	}
	if stored.Build != l.identity.Build ||
		stored.ShaderInterfaceKey != l.identity.ShaderInterfaceKey ||
		stored.CacheUUID != l.identity.CacheUUID {
		return ErrDriverVersionMismatch
	}

	spirvCount := binary.LittleEndian.Uint32(seed[libOffSPIRVCount:])
	driverCacheCount := binary.LittleEndian.Uint32(seed[libOffDriverCacheCount:])
	pipelineCount := binary.LittleEndian.Uint32(seed[libOffPipelineCount:])

	// Counts are untrusted; size the TOC in 64 bits before comparing.
	totalEntries := uint64(spirvCount) + uint64(driverCacheCount) + uint64(pipelineCount)
	headerEntrySize := uint64(libraryHeaderSize) + totalEntries*tocEntrySize
	if uint64(len(seed)) < headerEntrySize {
		return ErrDriverVersionMismatch
	}

	data := seed[headerEntrySize:]
	toc := seed[libraryHeaderSize:headerEntrySize]
	nameCursor := 0
	entryIndex := 0

	readSection := func(count uint32, insert func(key []byte, e cachedBlob) bool) error {
		for i := uint32(0); i < count; i++ {
			entry := toc[entryIndex*tocEntrySize:]
			entryIndex++

			blobOffset := binary.LittleEndian.Uint64(entry[tocOffBlobOffset:])
			nameLen := int(binary.LittleEndian.Uint32(entry[tocOffNameLen:]))
			blobLen := int(binary.LittleEndian.Uint32(entry[tocOffBlobLen:]))

			keySize := nameLen
			if keySize == 0 {
				keySize = internalKeySize
			}
			if keySize < 0 || nameCursor+keySize > len(data) {
				return fmt.Errorf("%w: name table entry out of bounds", ErrInvalidBlob)
			}
			key := data[nameCursor : nameCursor+keySize]
			nameCursor += keySize

			if blobOffset > uint64(len(data)) || uint64(blobLen) > uint64(len(data))-blobOffset {
				return fmt.Errorf("%w: blob entry out of bounds", ErrInvalidBlob)
			}
			e := cachedBlob{blob: data[blobOffset : blobOffset+uint64(blobLen)], isNew: false}

			if !insert(key, e) {
				return fmt.Errorf("%w: conflicting duplicate entry", ErrInvalidBlob)
			}
		}
		return nil
	}

	// Section order matches serialization: spirv, driver cache, then
	// named pipelines.
	if err := readSection(spirvCount, func(key []byte, e cachedBlob) bool {
		return insertCachedBlob(l, l.spirvCacheMap, binary.LittleEndian.Uint64(key), e, internalKeySize)
	}); err != nil {
		return err
	}
	if err := readSection(driverCacheCount, func(key []byte, e cachedBlob) bool {
		return insertCachedBlob(l, l.driverCacheMap, binary.LittleEndian.Uint64(key), e, internalKeySize)
	}); err != nil {
		return err
	}
	if err := readSection(pipelineCount, func(key []byte, e cachedBlob) bool {
		return insertCachedBlob(l, l.psoMap, string(key), e, len(key))
	}); err != nil {
		return err
	}

	return nil
}

// SerializedInfo summarizes a serialized pipeline library without
// device gating, for inspection tooling.
type SerializedInfo struct {
	Identity         DeviceIdentity
	SPIRVCount       int
	DriverCacheCount int
	PipelineCount    int
	// Names lists the stored pipeline names in TOC order.
	Names []string
}

// ReadSerializedInfo parses the header and table of contents of a
// serialized library. Unlike New it does not check device identity, so
// it works on files from any machine; structural problems still fail
// with ErrDriverVersionMismatch (bad magic, truncated TOC) or
// ErrInvalidBlob (out-of-bounds entries).
func ReadSerializedInfo(data []byte) (*SerializedInfo, error) {
	if len(data) < libraryHeaderSize ||
		binary.LittleEndian.Uint32(data[libOffVersion:]) != LibraryMagic {
		return nil, ErrDriverVersionMismatch
	}

	info := &SerializedInfo{
		Identity:         libraryIdentity(data),
		SPIRVCount:       int(binary.LittleEndian.Uint32(data[libOffSPIRVCount:])),
		DriverCacheCount: int(binary.LittleEndian.Uint32(data[libOffDriverCacheCount:])),
		PipelineCount:    int(binary.LittleEndian.Uint32(data[libOffPipelineCount:])),
	}

	totalEntries := uint64(info.SPIRVCount) + uint64(info.DriverCacheCount) + uint64(info.PipelineCount)
	headerEntrySize := uint64(libraryHeaderSize) + totalEntries*tocEntrySize
	if uint64(len(data)) < headerEntrySize {
		return nil, ErrDriverVersionMismatch
	}

	body := data[headerEntrySize:]
	nameCursor := 0
	for i := uint64(0); i < totalEntries; i++ {
		entry := data[uint64(libraryHeaderSize)+i*tocEntrySize:]
		nameLen := int(binary.LittleEndian.Uint32(entry[tocOffNameLen:]))
		keySize := nameLen
		if keySize == 0 {
			keySize = internalKeySize
		}
		if keySize < 0 || nameCursor+keySize > len(body) {
			return nil, fmt.Errorf("%w: name table entry out of bounds", ErrInvalidBlob)
		}
		if nameLen > 0 {
			info.Names = append(info.Names, string(body[nameCursor:nameCursor+nameLen]))
		}
		nameCursor += keySize
	}
	return info, nil
}
