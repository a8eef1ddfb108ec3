package pipelib

// Option configures a Library during creation.
//
// Example:
//
//	// Skip driver cache blobs, e.g. when the driver's own disk cache
//	// already covers them:
//	lib, err := pipelib.New(device, nil, pipelib.WithoutDriverCache())
type Option func(*libraryOptions)

// libraryOptions holds optional Library configuration.
type libraryOptions struct {
	withoutDriverCache bool
	inlinePayloads     bool
}

// WithoutDriverCache disables storing driver pipeline-cache payloads.
// Stored blobs then carry only SPIR-V and metadata; loads start with
// an unprimed driver cache. Useful when the driver maintains its own
// on-disk cache and duplicating it would only inflate the library.
func WithoutDriverCache() Option {
	return func(o *libraryOptions) {
		o.withoutDriverCache = true
	}
}

// WithInlinePayloads stores each pipeline as a fully self-contained
// blob instead of deduplicating SPIR-V and driver-cache payloads into
// the library's shared maps. Blobs stored this way remain readable by
// any consumer without link resolution, at the cost of duplicated
// content across pipelines that share shaders.
func WithInlinePayloads() Option {
	return func(o *libraryOptions) {
		o.inlinePayloads = true
	}
}
