// Package engine defines the contract the session expects from an inference
// engine: tokenizer and model factories with download-progress reporting, a
// capability probe for the accelerated backend, and streaming generation with
// a cooperative stopping token. The neural-network runtime itself is external;
// this package only shapes the boundary and supplies adapters.
package engine

import (
	"context"

	"gend/pkg/types"
)

// ProgressFunc receives download-progress events while the engine fetches
// model artifacts. May be nil.
type ProgressFunc func(types.Progress)

// Engine supplies tokenizer and model handles for a model id.
type Engine interface {
	// Accelerated reports whether the accelerated execution backend is
	// usable. A nil return means yes; a non-nil error carries the
	// capability failure verbatim.
	Accelerated() error

	// NewTokenizer obtains a tokenizer handle for modelID, reporting
	// artifact downloads through onProgress.
	NewTokenizer(ctx context.Context, modelID string, onProgress ProgressFunc) (Tokenizer, error)

	// NewModel obtains a causal-language-model handle for modelID at the
	// given precision on the given backend.
	NewModel(ctx context.Context, modelID string, dtype types.Dtype, device types.Device, onProgress ProgressFunc) (Model, error)
}

// Tokenizer supports chat-template application and token decoding.
type Tokenizer interface {
	// ApplyChatTemplate renders an ordered message sequence into model input.
	ApplyChatTemplate(msgs []types.ChatMessage) (string, error)
	// Decode renders a single token sequence to text.
	Decode(ids []int) (string, error)
	// BatchDecode renders each generated sequence to text, skipping special
	// tokens the tokenizer knows about.
	BatchDecode(seqs [][]int) ([]string, error)
}

// GenerateRequest configures one generation call.
type GenerateRequest struct {
	// Input is the chat-templated model input.
	Input string
	// MaxNewTokens caps the number of newly generated tokens.
	MaxNewTokens int
	// Sample enables sampling; false means greedy decoding.
	Sample bool
	// PastKeyValues is opaque key-value cache state from a prior turn, or nil.
	PastKeyValues any
	// OnToken is invoked for every decoded increment with its token id.
	OnToken func(text string, id int)
	// Stop is the cooperative stopping token, polled between token-emission
	// steps. A true return unwinds the loop cleanly.
	Stop func() bool
}

// GenerateResult is returned when a generation completes or is stopped.
type GenerateResult struct {
	// Sequences holds the generated token ids, one slice per sequence.
	Sequences [][]int
	// PastKeyValues is reusable cache state for the next turn, or nil.
	PastKeyValues any
}

// Model is a loaded causal-language-model handle.
type Model interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	// Dispose releases the weights. Safe to call once; errors are reported,
	// not fatal.
	Dispose() error
}
