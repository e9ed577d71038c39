package types

// Dtype identifies the numeric precision/quantization scheme of model weights.
type Dtype string

const (
	// DtypeFP32 is full 32-bit floating point precision.
	DtypeFP32 Dtype = "fp32"
	// DtypeQ4 is 4-bit quantized weights.
	DtypeQ4 Dtype = "q4"
	// DtypeQ4F16 is 4-bit quantized weights with fp16 activations.
	DtypeQ4F16 Dtype = "q4f16"
)

// KnownDtype reports whether s is a recognized precision tag.
func KnownDtype(s Dtype) bool {
	switch s {
	case DtypeFP32, DtypeQ4, DtypeQ4F16:
		return true
	}
	return false
}

// Device identifies the execution backend a model runs on.
type Device string

const (
	// DeviceAccelerated is the GPU-class backend. Default for all loads.
	DeviceAccelerated Device = "gpu"
	// DeviceCPU is the CPU fallback backend.
	DeviceCPU Device = "cpu"
)

// ModelDescriptor describes one entry of the model registry.
type ModelDescriptor struct {
	// Stable identifier, vendor/name convention.
	// example: onnx-community/Qwen3-0.6B-ONNX
	ID string `json:"id" example:"onnx-community/Qwen3-0.6B-ONNX"`
	// Human-friendly display name.
	// example: Qwen3 0.6B
	Friendly string `json:"friendly" example:"Qwen3 0.6B"`
	// Preferred weight precision for this model.
	// example: q4f16
	Dtype Dtype `json:"dtype,omitempty" example:"q4f16"`
	// Whether this model emits a delimited internal-reasoning segment.
	// example: true
	Thinking bool `json:"thinking,omitempty" example:"true"`
}

// RegistryEntry is the wire form of a descriptor, keyed by model id in the
// registry mapping handed over the control channel.
type RegistryEntry struct {
	Friendly string `json:"friendly"`
	Dtype    Dtype  `json:"dtype,omitempty"`
	Thinking bool   `json:"thinking,omitempty"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	// Role is one of user, assistant, system.
	// example: user
	Role string `json:"role" example:"user"`
	// Content is the message text.
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// Progress is a download-progress triple reported by the inference engine
// while fetching a model artifact. Loaded==0 signals the artifact starting,
// 0<Loaded<Total signals progress, Loaded==Total (or Total==0) completion.
type Progress struct {
	File   string `json:"file"`
	Loaded int64  `json:"loaded"`
	Total  int64  `json:"total"`
}

// Percent returns the integer download percentage, floor(loaded/total*100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return int(p.Loaded * 100 / p.Total)
}

// Done reports whether this event completes the artifact.
func (p Progress) Done() bool {
	return p.Total == 0 || p.Loaded >= p.Total
}
