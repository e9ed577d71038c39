//go:build !llama

package engine

// This file provides a no-CGO runtime for builds without the 'llama' tag,
// keeping default builds and CI CGO-free. The scripted stub stands in for the
// real runtime; the capability probe is still the host probe.

// llamaBuilt indicates this binary was compiled without real llama support.
var llamaBuilt = false

// Built reports whether a real inference runtime is compiled in.
func Built() bool { return llamaBuilt }

// NewRuntime returns the engine for this build.
func NewRuntime(modelsDir string, ctxSize, threads int) Engine {
	return &hostProbed{Stub: NewStub(StubConfig{
		Chunks:    []string{"<think>", "no runtime built", "</think>", "gend was built without the 'llama' tag; responses are canned."},
		Artifacts: []string{"model.stub"},
	})}
}

// hostProbed overlays the real capability probe on the scripted stub.
type hostProbed struct {
	*Stub
}

func (hostProbed) Accelerated() error { return ProbeAccelerated() }
