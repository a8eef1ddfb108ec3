// Package varint implements the compact word-stream encoding used for
// cached SPIR-V payloads.
//
// Each 32-bit word is encoded as 1-5 bytes of 7-bit little-endian groups.
// Bit 7 of every byte except the last one of a word is set, marking a
// continuation. SPIR-V id and literal streams are dominated by small
// integers, so the encoding roughly halves the payload at trivial cost.
//
// The decoder is strict: the input must be exactly the encoding of the
// requested word count. Trailing bytes, truncated words and overlong
// sequences (shift reaching 32 with the continuation bit still set) are
// all rejected with ErrMalformed.
package varint

import (
	"encoding/binary"
	"errors"
)

// ErrMalformed is returned when an encoded stream does not decode to
// exactly the requested number of words.
var ErrMalformed = errors.New("varint: malformed encoding")

// Size returns the exact number of bytes Append would produce for words.
func Size(words []uint32) int {
	size := 0
	for _, w := range words {
		switch {
		case w < 1<<7:
			size++
		case w < 1<<14:
			size += 2
		case w < 1<<21:
			size += 3
		case w < 1<<28:
			size += 4
		default:
			size += 5
		}
	}
	return size
}

// Append encodes words and appends the bytes to dst, returning the
// extended slice.
func Append(dst []byte, words []uint32) []byte {
	for _, w := range words {
		for w >= 0x80 {
			dst = append(dst, byte(w)|0x80)
			w >>= 7
		}
		dst = append(dst, byte(w))
	}
	return dst
}

// Decode fills words from src. src must hold exactly the encoding of
// len(words) words; anything else fails with ErrMalformed.
func Decode(words []uint32, src []byte) error {
	offset := 0
	for i := range words {
		var w uint32
		var shift uint
		for {
			if offset >= len(src) || shift >= 32 {
				return ErrMalformed
			}
			b := src[offset]
			offset++
			w |= uint32(b&0x7f) << shift
			shift += 7
			if b&0x80 == 0 {
				break
			}
		}
		words[i] = w
	}
	if offset != len(src) {
		return ErrMalformed
	}
	return nil
}

// SizeBytes returns the encoded size of a little-endian u32 byte stream.
// len(p) must be a multiple of 4.
func SizeBytes(p []byte) int {
	size := 0
	for i := 0; i+4 <= len(p); i += 4 {
		switch w := binary.LittleEndian.Uint32(p[i:]); {
		case w < 1<<7:
			size++
		case w < 1<<14:
			size += 2
		case w < 1<<21:
			size += 3
		case w < 1<<28:
			size += 4
		default:
			size += 5
		}
	}
	return size
}

// AppendBytes encodes a little-endian u32 byte stream, appending to dst.
// len(p) must be a multiple of 4.
func AppendBytes(dst []byte, p []byte) []byte {
	for i := 0; i+4 <= len(p); i += 4 {
		w := binary.LittleEndian.Uint32(p[i:])
		for w >= 0x80 {
			dst = append(dst, byte(w)|0x80)
			w >>= 7
		}
		dst = append(dst, byte(w))
	}
	return dst
}

// DecodeBytes decodes src into dst as little-endian u32 words.
// len(dst) must be a multiple of 4 and src must be exactly the encoding
// of len(dst)/4 words.
func DecodeBytes(dst []byte, src []byte) error {
	offset := 0
	for i := 0; i+4 <= len(dst); i += 4 {
		var w uint32
		var shift uint
		for {
			if offset >= len(src) || shift >= 32 {
				return ErrMalformed
			}
			b := src[offset]
			offset++
			w |= uint32(b&0x7f) << shift
			shift += 7
			if b&0x80 == 0 {
				break
			}
		}
		binary.LittleEndian.PutUint32(dst[i:], w)
	}
	if offset != len(src) {
		return ErrMalformed
	}
	return nil
}
