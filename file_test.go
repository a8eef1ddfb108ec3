package pipelib

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFile(t *testing.T) {
	device := &testDevice{identity: testIdentity()}
	lib, _ := New(device, nil)
	source := []byte("compute shader")
	state := computeTestState(0x42, source)
	if err := lib.Store("pso", state); err != nil {
		t.Fatalf("Store: %v", err)
	}
	data := serializeLibrary(t, lib)

	path := filepath.Join(t.TempDir(), "pipelines.vkl")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opened, closer, err := OpenFile(device, path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer closer.Close()

	loaded, err := opened.LoadCompute("pso", computeDescFor(state, source))
	if err != nil {
		t.Fatalf("LoadCompute: %v", err)
	}
	if !bytes.Equal(loaded.Stages[0].SPIRV, state.Stages[0].SPIRV) {
		t.Error("SPIR-V differs after file round trip")
	}
}

func TestOpenFileEmpty(t *testing.T) {
	device := &testDevice{identity: testIdentity()}
	path := filepath.Join(t.TempDir(), "empty.vkl")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// An empty file seeds nothing: the library starts cold.
	lib, closer, err := OpenFile(device, path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer closer.Close()
	if pipelines, spirv, driverCaches := lib.Counts(); pipelines+spirv+driverCaches != 0 {
		t.Errorf("empty file produced %d/%d/%d entries", pipelines, spirv, driverCaches)
	}
}

func TestOpenFileMissing(t *testing.T) {
	device := &testDevice{identity: testIdentity()}
	if _, _, err := OpenFile(device, filepath.Join(t.TempDir(), "nope.vkl")); err == nil {
		t.Error("OpenFile on a missing file succeeded")
	}
}
