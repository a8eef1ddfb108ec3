// Command pipelibtool builds, inspects and verifies serialized
// pipeline libraries without a GPU. Shaders are WGSL sources compiled
// to SPIR-V with naga; pipelines are stored against a synthetic host
// device identity, so a library built here round-trips through the
// tool but is (by design) rejected by a real device.
//
// Usage:
//
//	pipelibtool build -o lib.vkl shader1.wgsl shader2.wgsl
//	pipelibtool inspect lib.vkl
//	pipelibtool verify lib.vkl shader1.wgsl shader2.wgsl
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/pipelib"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pipelibtool: ")

	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pipelibtool build -o <file> <shader.wgsl>...")
	fmt.Fprintln(os.Stderr, "       pipelibtool inspect <file>")
	fmt.Fprintln(os.Stderr, "       pipelibtool verify <file> <shader.wgsl>...")
	os.Exit(2)
}

// hostIdentity is the fixed device identity the tool stores and loads
// against.
func hostIdentity() pipelib.DeviceIdentity {
	var id pipelib.DeviceIdentity
	id.Build = pipelib.HashShaderCode([]byte("pipelibtool"))
	id.ShaderInterfaceKey = 1
	copy(id.CacheUUID[:], "pipelibtool-host")
	return id
}

// compiledShader is one WGSL source compiled to SPIR-V, keyed by the
// pipeline name it is stored under (the file's base name).
type compiledShader struct {
	name   string
	source []byte
	spirv  []byte
}

// compileShaders compiles all WGSL files concurrently.
func compileShaders(paths []string) ([]compiledShader, error) {
	shaders := make([]compiledShader, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			source, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			spirv, err := naga.Compile(string(source))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			shaders[i] = compiledShader{
				name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				source: source,
				spirv:  spirv,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shaders, nil
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "pipelines.vkl", "output library file")
	fs.Parse(args)
	if fs.NArg() == 0 {
		usage()
	}

	shaders, err := compileShaders(fs.Args())
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	device := &hostDevice{identity: hostIdentity()}
	lib, err := pipelib.New(device, nil)
	if err != nil {
		log.Fatalf("create library: %v", err)
	}

	for _, sh := range shaders {
		state := &pipelib.PipelineState{
			RootSignatureCompatHash: pipelib.HashShaderCode(sh.source),
			Stages: []pipelib.StageCode{{
				Stage: gputypes.ShaderStageCompute,
				SPIRV: sh.spirv,
				Meta:  pipelib.ShaderMeta{SourceHash: pipelib.HashShaderCode(sh.source)},
			}},
		}
		if err := lib.Store(sh.name, state); err != nil {
			log.Fatalf("store %s: %v", sh.name, err)
		}
	}

	buf := make([]byte, lib.SerializedSize())
	if err := lib.Serialize(buf); err != nil {
		log.Fatalf("serialize: %v", err)
	}
	if err := os.WriteFile(*output, buf, 0o644); err != nil {
		log.Fatalf("write: %v", err)
	}
	log.Printf("wrote %s: %d pipelines, %d bytes", *output, len(shaders), len(buf))
}

func runInspect(args []string) {
	if len(args) != 1 {
		usage()
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatal(err)
	}
	info, err := pipelib.ReadSerializedInfo(data)
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}

	fmt.Printf("%s: %d bytes\n", args[0], len(data))
	fmt.Printf("  vendor %#04x device %#04x build %#016x interface %#016x\n",
		info.Identity.VendorID, info.Identity.DeviceID,
		info.Identity.Build, info.Identity.ShaderInterfaceKey)
	fmt.Printf("  cache uuid %x\n", info.Identity.CacheUUID)
	fmt.Printf("  entries: %d pipelines, %d spirv, %d driver caches\n",
		info.PipelineCount, info.SPIRVCount, info.DriverCacheCount)
	for _, name := range info.Names {
		fmt.Printf("    %s\n", name)
	}
}

func runVerify(args []string) {
	if len(args) < 2 {
		usage()
	}
	shaders, err := compileShaders(args[1:])
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	device := &hostDevice{identity: hostIdentity()}
	lib, closer, err := pipelib.OpenFile(device, args[0])
	if err != nil {
		log.Fatalf("open %s: %v", args[0], err)
	}
	defer closer.Close()

	for _, sh := range shaders {
		state, err := lib.LoadCompute(sh.name, &pipelib.ComputePipelineDesc{
			RootSignatureCompatHash: pipelib.HashShaderCode(sh.source),
			Compute:                 sh.source,
		})
		if err != nil {
			log.Fatalf("load %s: %v", sh.name, err)
		}
		log.Printf("%s: ok, %d bytes of SPIR-V", sh.name, len(state.Stages[0].SPIRV))
	}
}
