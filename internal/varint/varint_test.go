package varint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		words []uint32
	}{
		{"empty", nil},
		{"zero", []uint32{0}},
		{"one byte max", []uint32{0x7f}},
		{"two byte min", []uint32{0x80}},
		{"two byte max", []uint32{1<<14 - 1}},
		{"three byte min", []uint32{1 << 14}},
		{"three byte max", []uint32{1<<21 - 1}},
		{"four byte min", []uint32{1 << 21}},
		{"four byte max", []uint32{1<<28 - 1}},
		{"five byte min", []uint32{1 << 28}},
		{"max word", []uint32{0xffffffff}},
		{"mixed", []uint32{0, 1, 127, 128, 300, 1 << 20, 1 << 27, 1 << 31, 42}},
		{"spirv-like header", []uint32{0x07230203, 0x00010300, 0, 100, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := Append(nil, tt.words)
			if len(enc) != Size(tt.words) {
				t.Errorf("Size = %d, encoded %d bytes", Size(tt.words), len(enc))
			}

			got := make([]uint32, len(tt.words))
			if err := Decode(got, enc); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			for i := range tt.words {
				if got[i] != tt.words[i] {
					t.Errorf("word %d: got %#x, want %#x", i, got[i], tt.words[i])
				}
			}
		})
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 100; trial++ {
		words := make([]uint32, rng.Intn(256))
		for i := range words {
			// Bias toward small values, like real SPIR-V streams.
			shift := rng.Intn(32)
			words[i] = rng.Uint32() >> shift
		}

		enc := Append(nil, words)
		if len(enc) != Size(words) {
			t.Fatalf("trial %d: Size = %d, encoded %d bytes", trial, Size(words), len(enc))
		}
		got := make([]uint32, len(words))
		if err := Decode(got, enc); err != nil {
			t.Fatalf("trial %d: Decode: %v", trial, err)
		}
		for i := range words {
			if got[i] != words[i] {
				t.Fatalf("trial %d word %d: got %#x, want %#x", trial, i, got[i], words[i])
			}
		}
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	enc := Append(nil, []uint32{1, 2, 3})
	enc = append(enc, 0)

	got := make([]uint32, 3)
	if err := Decode(got, enc); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decode with trailing byte: got %v, want ErrMalformed", err)
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	words := []uint32{0xffffffff, 5}
	enc := Append(nil, words)

	for n := 0; n < len(enc); n++ {
		got := make([]uint32, len(words))
		if err := Decode(got, enc[:n]); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode of %d/%d bytes: got %v, want ErrMalformed", n, len(enc), err)
		}
	}
}

func TestDecodeRejectsOverlong(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
	}{
		// Continuation bit still set when the shift reaches 32.
		{"five continuations", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}},
		{"all ones", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]uint32, 1)
			if err := Decode(got, tt.src); !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	if err := Decode(nil, nil); err != nil {
		t.Errorf("Decode(nil, nil): %v", err)
	}
	if err := Decode(nil, []byte{0}); !errors.Is(err, ErrMalformed) {
		t.Errorf("Decode(nil, [1 byte]): got %v, want ErrMalformed", err)
	}
}

func TestByteInterface(t *testing.T) {
	words := []uint32{0, 1, 0x7f, 0x80, 1 << 20, 0xffffffff}
	raw := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[4*i:], w)
	}

	if got, want := SizeBytes(raw), Size(words); got != want {
		t.Errorf("SizeBytes = %d, Size = %d", got, want)
	}
	encWords := Append(nil, words)
	encBytes := AppendBytes(nil, raw)
	if !bytes.Equal(encWords, encBytes) {
		t.Errorf("AppendBytes = %x, Append = %x", encBytes, encWords)
	}

	dec := make([]byte, len(raw))
	if err := DecodeBytes(dec, encBytes); err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if !bytes.Equal(dec, raw) {
		t.Errorf("DecodeBytes = %x, want %x", dec, raw)
	}

	if err := DecodeBytes(dec, append(encBytes, 0)); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeBytes with trailing byte: got %v, want ErrMalformed", err)
	}
}
