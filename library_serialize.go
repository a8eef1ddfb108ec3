package pipelib

import (
	"encoding/binary"
	"maps"
	"slices"
)

// Serialized pipeline library layout, in file order:
//
//  1. Header (56 bytes): magic, vendor/device ids, entry counts, build,
//     shader-interface key, driver cache UUID.
//  2. Table of contents: one 16-byte entry per stored blob, in
//     (spirv, driver-cache, pipeline) section order.
//  3. Name table: per TOC entry, either nameLen bytes of name or, for
//     hash-keyed entries (nameLen == 0), the 8-byte key. Packed tight,
//     padded to 8 bytes as a whole.
//  4. Blob data: per TOC entry, blobLen bytes, each padded to 8 bytes.
//
// TOC blob offsets are relative to the serialized-data base (the first
// byte after the TOC). The split layout lets a consumer of a
// memory-mapped file scan the compact TOC without page-faulting
// through the blob data, and keeps room for content-addressed
// deduplication: hash-keyed sections are ordinary TOC sections.
const (
	libOffVersion          = 0  // uint32
	libOffVendorID         = 4  // uint32
	libOffDeviceID         = 8  // uint32
	libOffSPIRVCount       = 12 // uint32
	libOffDriverCacheCount = 16 // uint32
	libOffPipelineCount    = 20 // uint32
	libOffBuild            = 24 // uint64
	libOffIfaceKey         = 32 // uint64
	libOffUUID             = 40 // [16]byte
	libraryHeaderSize      = 56

	// TOC entry: {blobOffset u64, nameLen u32, blobLen u32}.
	tocOffBlobOffset = 0
	tocOffNameLen    = 8
	tocOffBlobLen    = 12
	tocEntrySize     = 16
)

// SerializedSize returns the exact byte count Serialize needs,
// computed in O(1) from the running totals.
func (l *Library) SerializedSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.serializedSizeLocked()
}

func (l *Library) serializedSizeLocked() int {
	entries := len(l.psoMap) + len(l.spirvCacheMap) + len(l.driverCacheMap)
	return libraryHeaderSize + tocEntrySize*entries + align8(l.totalNameTableSize) + l.totalBlobSize
}

// Serialize writes the library into buf as a single contiguous region
// suitable for writing to disk and memory-mapping back. Fails with
// ErrBufferTooSmall when buf is shorter than SerializedSize; a
// concurrent Store between the two calls can grow the requirement, so
// callers should be prepared to retry.
func (l *Library) Serialize(buf []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	required := l.serializedSizeLocked()
	if len(buf) < required {
		return ErrBufferTooSmall
	}
	buf = buf[:required]
	// All inter-entry padding is part of the format; start from zeroes
	// so identical content serializes to identical bytes.
	clear(buf)

	binary.LittleEndian.PutUint32(buf[libOffVersion:], LibraryMagic)
	binary.LittleEndian.PutUint32(buf[libOffVendorID:], l.identity.VendorID)
	binary.LittleEndian.PutUint32(buf[libOffDeviceID:], l.identity.DeviceID)
	binary.LittleEndian.PutUint32(buf[libOffSPIRVCount:], uint32(len(l.spirvCacheMap)))
	binary.LittleEndian.PutUint32(buf[libOffDriverCacheCount:], uint32(len(l.driverCacheMap)))
	binary.LittleEndian.PutUint32(buf[libOffPipelineCount:], uint32(len(l.psoMap)))
	binary.LittleEndian.PutUint64(buf[libOffBuild:], l.identity.Build)
	binary.LittleEndian.PutUint64(buf[libOffIfaceKey:], l.identity.ShaderInterfaceKey)
	copy(buf[libOffUUID:], l.identity.CacheUUID[:])

	entries := len(l.psoMap) + len(l.spirvCacheMap) + len(l.driverCacheMap)
	toc := buf[libraryHeaderSize:]
	data := buf[libraryHeaderSize+tocEntrySize*entries:]

	tocIndex := 0
	nameOffset := 0
	blobOffset := align8(l.totalNameTableSize)

	emit := func(nameBytes []byte, nameLen int, e cachedBlob) {
		entry := toc[tocIndex*tocEntrySize:]
		binary.LittleEndian.PutUint64(entry[tocOffBlobOffset:], uint64(blobOffset))
		binary.LittleEndian.PutUint32(entry[tocOffNameLen:], uint32(nameLen))
		binary.LittleEndian.PutUint32(entry[tocOffBlobLen:], uint32(len(e.blob)))
		tocIndex++

		copy(data[nameOffset:], nameBytes)
		nameOffset += len(nameBytes)

		copy(data[blobOffset:], e.blob)
		blobOffset += align8(len(e.blob))
	}

	// Map iteration order is not stable in Go; sort each section so a
	// library serializes to the same bytes every time.
	var keyBuf [internalKeySize]byte
	for _, key := range slices.Sorted(maps.Keys(l.spirvCacheMap)) {
		binary.LittleEndian.PutUint64(keyBuf[:], key)
		emit(keyBuf[:], 0, l.spirvCacheMap[key])
	}
	for _, key := range slices.Sorted(maps.Keys(l.driverCacheMap)) {
		binary.LittleEndian.PutUint64(keyBuf[:], key)
		emit(keyBuf[:], 0, l.driverCacheMap[key])
	}
	for _, name := range slices.Sorted(maps.Keys(l.psoMap)) {
		emit([]byte(name), len(name), l.psoMap[name])
	}

	Logger().Debug("pipelib: serialized pipeline library", "size", required, "entries", entries)
	return nil
}
