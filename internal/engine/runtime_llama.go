//go:build llama

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"gend/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// Built reports whether a real inference runtime is compiled in.
func Built() bool { return llamaBuilt }

// NewRuntime returns an engine backed by in-process go-llama.cpp. Model ids
// resolve to <modelsDir>/<id>.gguf.
func NewRuntime(modelsDir string, ctxSize, threads int) Engine {
	return &llamaEngine{
		modelsDir: modelsDir,
		ctxSize:   ctxSize,
		threads:   threads,
		vocab:     make(map[int]string),
		nextID:    1,
	}
}

type llamaEngine struct {
	modelsDir string
	ctxSize   int
	threads   int

	mu     sync.Mutex
	vocab  map[int]string
	nextID int
}

func (e *llamaEngine) Accelerated() error { return ProbeAccelerated() }

func (e *llamaEngine) modelPath(modelID string) string {
	name := strings.ReplaceAll(modelID, "/", "--")
	if !strings.HasSuffix(name, ".gguf") {
		name += ".gguf"
	}
	return filepath.Join(e.modelsDir, name)
}

func (e *llamaEngine) NewTokenizer(ctx context.Context, modelID string, onProgress ProgressFunc) (Tokenizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llamaTokenizer{eng: e}, nil
}

func (e *llamaEngine) NewModel(ctx context.Context, modelID string, dtype types.Dtype, device types.Device, onProgress ProgressFunc) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := e.modelPath(modelID)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}
	if onProgress != nil {
		name := filepath.Base(path)
		onProgress(types.Progress{File: name, Loaded: 0, Total: fi.Size()})
	}
	opts := []llama.ModelOption{llama.SetContext(e.ctxSize)}
	if device == types.DeviceAccelerated {
		opts = append(opts, llama.SetGPULayers(-1))
	}
	if dtype == types.DtypeFP32 {
		opts = append(opts, llama.EnableF16Memory)
	}
	m, err := llama.New(path, opts...)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		name := filepath.Base(path)
		onProgress(types.Progress{File: name, Loaded: fi.Size(), Total: fi.Size()})
	}
	return &llamaModel{eng: e, model: m}, nil
}

// intern assigns synthetic ids: go-llama.cpp streams text, not token ids, so
// the adapter keeps its own id space to satisfy the decode side of the
// tokenizer contract.
func (e *llamaEngine) intern(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.vocab[id] = text
	return id
}

func (e *llamaEngine) lookup(id int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.vocab[id]
	return t, ok
}

type llamaTokenizer struct {
	eng *llamaEngine
}

func (t *llamaTokenizer) ApplyChatTemplate(msgs []types.ChatMessage) (string, error) {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "<|%s|>\n%s\n", m.Role, m.Content)
	}
	b.WriteString("<|assistant|>\n")
	return b.String(), nil
}

func (t *llamaTokenizer) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		text, ok := t.eng.lookup(id)
		if !ok {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func (t *llamaTokenizer) BatchDecode(seqs [][]int) ([]string, error) {
	out := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		text, err := t.Decode(seq)
		if err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

type llamaModel struct {
	eng   *llamaEngine
	mu    sync.Mutex
	model *llama.LLama
}

func (m *llamaModel) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return GenerateResult{}, errors.New("llama model disposed")
	}

	var seq []int
	m.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if req.Stop != nil && req.Stop() {
			return false
		}
		id := m.eng.intern(tok)
		seq = append(seq, id)
		if req.OnToken != nil {
			req.OnToken(tok, id)
		}
		return true
	})

	po := []llama.PredictOption{
		llama.SetThreads(m.eng.threads),
		llama.SetTokens(req.MaxNewTokens),
	}
	if !req.Sample {
		// Greedy decoding.
		po = append(po, llama.SetTemperature(0), llama.SetTopK(1))
	}
	_, err := m.model.Predict(req.Input, po...)
	if err != nil && ctx.Err() == nil && (req.Stop == nil || !req.Stop()) {
		return GenerateResult{Sequences: [][]int{seq}}, err
	}
	// go-llama.cpp keeps its context window internally; there is no separate
	// key-value handle to return.
	return GenerateResult{Sequences: [][]int{seq}}, nil
}

func (m *llamaModel) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil
	}
	m.model.Free()
	m.model = nil
	return nil
}
