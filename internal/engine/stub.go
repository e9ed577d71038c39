package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gend/pkg/types"
)

// StubConfig scripts a stub engine. Used by the default (no-CGO) build and by
// session tests that need deterministic streams and injected failures.
type StubConfig struct {
	// Chunks are the decoded increments streamed per generate call.
	Chunks []string
	// Artifacts are fake download names reported while loading; each gets an
	// initiate / progress / done progress sequence.
	Artifacts []string
	// ArtifactBytes is the reported total size per artifact. Default 1MiB.
	ArtifactBytes int64
	// AcceleratedErr, when set, makes the capability probe fail.
	AcceleratedErr error
	// TokenizerErrs and ModelErrs are consumed one per factory call;
	// a nil entry (or exhaustion) means success.
	TokenizerErrs []error
	ModelErrs     []error
	// StepDelay paces token emission, for interrupt tests.
	StepDelay time.Duration
}

// Stub is a scripted in-memory Engine.
type Stub struct {
	cfg StubConfig

	mu             sync.Mutex
	tokenizerCalls int
	modelCalls     int
	generateCalls  int
	disposeCalls   int
	lastDtype      types.Dtype
	lastDevice     types.Device
	vocab          map[int]string
	nextID         int
}

// NewStub builds a stub engine from a script.
func NewStub(cfg StubConfig) *Stub {
	if cfg.ArtifactBytes <= 0 {
		cfg.ArtifactBytes = 1 << 20
	}
	return &Stub{cfg: cfg, vocab: make(map[int]string), nextID: 1}
}

func (s *Stub) Accelerated() error { return s.cfg.AcceleratedErr }

func (s *Stub) NewTokenizer(ctx context.Context, modelID string, onProgress ProgressFunc) (Tokenizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	call := s.tokenizerCalls
	s.tokenizerCalls++
	s.mu.Unlock()
	if call < len(s.cfg.TokenizerErrs) && s.cfg.TokenizerErrs[call] != nil {
		return nil, s.cfg.TokenizerErrs[call]
	}
	s.reportArtifact(onProgress, modelID+"/tokenizer.json")
	return &stubTokenizer{eng: s}, nil
}

func (s *Stub) NewModel(ctx context.Context, modelID string, dtype types.Dtype, device types.Device, onProgress ProgressFunc) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	call := s.modelCalls
	s.modelCalls++
	s.lastDtype = dtype
	s.lastDevice = device
	s.mu.Unlock()
	if call < len(s.cfg.ModelErrs) && s.cfg.ModelErrs[call] != nil {
		return nil, s.cfg.ModelErrs[call]
	}
	for _, name := range s.cfg.Artifacts {
		s.reportArtifact(onProgress, name)
	}
	return &stubModel{eng: s}, nil
}

// reportArtifact emits a full start / halfway / complete progress sequence.
func (s *Stub) reportArtifact(onProgress ProgressFunc, name string) {
	if onProgress == nil {
		return
	}
	total := s.cfg.ArtifactBytes
	onProgress(types.Progress{File: name, Loaded: 0, Total: total})
	onProgress(types.Progress{File: name, Loaded: total / 2, Total: total})
	onProgress(types.Progress{File: name, Loaded: total, Total: total})
}

// intern assigns a stable token id for a chunk so Decode round-trips.
func (s *Stub) intern(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.vocab[id] = text
	return id
}

func (s *Stub) lookup(id int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.vocab[id]
	return t, ok
}

// Call counters for test assertions.

func (s *Stub) TokenizerCalls() int { s.mu.Lock(); defer s.mu.Unlock(); return s.tokenizerCalls }
func (s *Stub) ModelCalls() int     { s.mu.Lock(); defer s.mu.Unlock(); return s.modelCalls }
func (s *Stub) GenerateCalls() int  { s.mu.Lock(); defer s.mu.Unlock(); return s.generateCalls }
func (s *Stub) DisposeCalls() int   { s.mu.Lock(); defer s.mu.Unlock(); return s.disposeCalls }

// LastLoad reports the dtype/device of the most recent NewModel call.
func (s *Stub) LastLoad() (types.Dtype, types.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDtype, s.lastDevice
}

type stubTokenizer struct {
	eng *Stub
}

func (t *stubTokenizer) ApplyChatTemplate(msgs []types.ChatMessage) (string, error) {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "<|%s|>\n%s\n", m.Role, m.Content)
	}
	b.WriteString("<|assistant|>\n")
	return b.String(), nil
}

func (t *stubTokenizer) Decode(ids []int) (string, error) {
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

func (t *stubTokenizer) BatchDecode(seqs [][]int) ([]string, error) {
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

type stubModel struct {
	eng *Stub
}

// stubKV stands in for reusable key-value cache state.
type stubKV struct {
	turns int
}

func (m *stubModel) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	m.eng.mu.Lock()
	m.eng.generateCalls++
	m.eng.mu.Unlock()

	turns := 1
	if kv, ok := req.PastKeyValues.(*stubKV); ok && kv != nil {
		turns = kv.turns + 1
	}

	budget := req.MaxNewTokens
	if budget <= 0 || budget > len(m.eng.cfg.Chunks) {
		budget = len(m.eng.cfg.Chunks)
	}

	var seq []int
	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return GenerateResult{Sequences: [][]int{seq}, PastKeyValues: &stubKV{turns: turns}}, err
		}
		if req.Stop != nil && req.Stop() {
			break
		}
		if d := m.eng.cfg.StepDelay; d > 0 {
			time.Sleep(d)
		}
		chunk := m.eng.cfg.Chunks[i]
		id := m.eng.intern(chunk)
		seq = append(seq, id)
		if req.OnToken != nil {
			req.OnToken(chunk, id)
		}
	}
	return GenerateResult{Sequences: [][]int{seq}, PastKeyValues: &stubKV{turns: turns}}, nil
}

func (m *stubModel) Dispose() error {
	m.eng.mu.Lock()
	m.eng.disposeCalls++
	m.eng.mu.Unlock()
	return nil
}
