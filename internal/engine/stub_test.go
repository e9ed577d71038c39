package engine

import (
	"context"
	"errors"
	"testing"

	"gend/pkg/types"
)

func TestStub_ProgressSequencePerArtifact(t *testing.T) {
	s := NewStub(StubConfig{Artifacts: []string{"model.gguf"}, ArtifactBytes: 100})
	var got []types.Progress
	_, err := s.NewModel(context.Background(), "m", types.DtypeQ4, types.DeviceCPU, func(p types.Progress) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 progress reports, got %d", len(got))
	}
	if got[0].Loaded != 0 || got[1].Loaded != 50 || !got[2].Done() {
		t.Fatalf("unexpected sequence: %+v", got)
	}
	if got[1].Percent() != 50 {
		t.Fatalf("percent = %d", got[1].Percent())
	}
}

func TestStub_InjectedErrorsConsumedPerCall(t *testing.T) {
	boom := errors.New("device lost")
	s := NewStub(StubConfig{ModelErrs: []error{boom}})
	if _, err := s.NewModel(context.Background(), "m", types.DtypeQ4, types.DeviceAccelerated, nil); !errors.Is(err, boom) {
		t.Fatalf("first call should fail: %v", err)
	}
	if _, err := s.NewModel(context.Background(), "m", types.DtypeFP32, types.DeviceCPU, nil); err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
	dtype, device := s.LastLoad()
	if dtype != types.DtypeFP32 || device != types.DeviceCPU {
		t.Fatalf("last load = %s/%s", dtype, device)
	}
}

func TestStub_GenerateStreamsAndDecodes(t *testing.T) {
	s := NewStub(StubConfig{Chunks: []string{"a", "b", "c"}})
	tok, err := s.NewTokenizer(context.Background(), "m", nil)
	if err != nil {
		t.Fatalf("NewTokenizer: %v", err)
	}
	mdl, err := s.NewModel(context.Background(), "m", types.DtypeQ4, types.DeviceCPU, nil)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	var streamed string
	res, err := mdl.Generate(context.Background(), GenerateRequest{
		Input:   "prompt",
		OnToken: func(text string, id int) { streamed += text },
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if streamed != "abc" {
		t.Fatalf("streamed = %q", streamed)
	}
	texts, err := tok.BatchDecode(res.Sequences)
	if err != nil {
		t.Fatalf("BatchDecode: %v", err)
	}
	if len(texts) != 1 || texts[0] != "abc" {
		t.Fatalf("decoded = %v", texts)
	}
	if res.PastKeyValues == nil {
		t.Fatalf("expected key-value state")
	}
}

func TestStub_GenerateHonorsMaxNewTokens(t *testing.T) {
	s := NewStub(StubConfig{Chunks: []string{"a", "b", "c"}})
	mdl, _ := s.NewModel(context.Background(), "m", types.DtypeQ4, types.DeviceCPU, nil)
	var n int
	_, err := mdl.Generate(context.Background(), GenerateRequest{
		MaxNewTokens: 2,
		OnToken:      func(string, int) { n++ },
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tokens, got %d", n)
	}
}

func TestStub_GenerateStopsOnRequest(t *testing.T) {
	s := NewStub(StubConfig{Chunks: []string{"a", "b", "c", "d"}})
	mdl, _ := s.NewModel(context.Background(), "m", types.DtypeQ4, types.DeviceCPU, nil)
	var n int
	_, err := mdl.Generate(context.Background(), GenerateRequest{
		Stop:    func() bool { return n >= 2 },
		OnToken: func(string, int) { n++ },
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected stop after 2 tokens, got %d", n)
	}
}

func TestStub_ChatTemplate(t *testing.T) {
	s := NewStub(StubConfig{})
	tok, _ := s.NewTokenizer(context.Background(), "m", nil)
	out, err := tok.ApplyChatTemplate([]types.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("ApplyChatTemplate: %v", err)
	}
	want := "<|system|>\nbe brief\n<|user|>\nhi\n<|assistant|>\n"
	if out != want {
		t.Fatalf("template = %q", out)
	}
}
