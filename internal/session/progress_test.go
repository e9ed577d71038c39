package session

import (
	"testing"

	"gend/pkg/types"
)

func TestProgressReshaper_FullSequence(t *testing.T) {
	pub := NewMemoryPublisher()
	r := newProgressReshaper(pub)

	r.observe(types.Progress{File: "weights.bin", Loaded: 0, Total: 200})
	r.observe(types.Progress{File: "weights.bin", Loaded: 50, Total: 200})
	r.observe(types.Progress{File: "weights.bin", Loaded: 100, Total: 200})
	r.observe(types.Progress{File: "weights.bin", Loaded: 200, Total: 200})

	got := pub.Statuses()
	if len(got) != 4 {
		t.Fatalf("expected 4 statuses, got %v", kinds(got))
	}
	if got[0].Status != types.StatusInitiate || got[0].File != "weights.bin" {
		t.Fatalf("first status: %+v", got[0])
	}
	if got[1].Status != types.StatusProgress || got[1].Progress != 25 {
		t.Fatalf("second status: %+v", got[1])
	}
	if got[2].Status != types.StatusProgress || got[2].Progress != 50 {
		t.Fatalf("third status: %+v", got[2])
	}
	if got[3].Status != types.StatusDone {
		t.Fatalf("fourth status: %+v", got[3])
	}
}

func TestProgressReshaper_FirstEventMidway(t *testing.T) {
	pub := NewMemoryPublisher()
	r := newProgressReshaper(pub)

	// A nonzero first sighting still produces initiate, then its progress.
	r.observe(types.Progress{File: "f", Loaded: 60, Total: 100})
	got := pub.Statuses()
	if len(got) != 2 || got[0].Status != types.StatusInitiate || got[1].Progress != 60 {
		t.Fatalf("statuses: %+v", got)
	}
}

func TestProgressReshaper_EventsAfterDoneDropped(t *testing.T) {
	pub := NewMemoryPublisher()
	r := newProgressReshaper(pub)

	r.observe(types.Progress{File: "f", Loaded: 100, Total: 100})
	r.observe(types.Progress{File: "f", Loaded: 100, Total: 100})
	if n := len(pub.Statuses()); n != 2 { // initiate + done, once
		t.Fatalf("expected 2 statuses, got %v", kinds(pub.Statuses()))
	}
}

func TestProgressReshaper_EmptyFileIgnored(t *testing.T) {
	pub := NewMemoryPublisher()
	r := newProgressReshaper(pub)
	r.observe(types.Progress{Loaded: 10, Total: 100})
	if len(pub.Statuses()) != 0 {
		t.Fatalf("empty file name must be ignored")
	}
}

func TestProgressReshaper_InterleavedArtifacts(t *testing.T) {
	pub := NewMemoryPublisher()
	r := newProgressReshaper(pub)

	r.observe(types.Progress{File: "a", Loaded: 0, Total: 10})
	r.observe(types.Progress{File: "b", Loaded: 0, Total: 10})
	r.observe(types.Progress{File: "a", Loaded: 10, Total: 10})
	r.observe(types.Progress{File: "b", Loaded: 5, Total: 10})
	r.observe(types.Progress{File: "b", Loaded: 10, Total: 10})

	got := pub.Statuses()
	want := []struct {
		kind string
		file string
	}{
		{types.StatusInitiate, "a"},
		{types.StatusInitiate, "b"},
		{types.StatusDone, "a"},
		{types.StatusProgress, "b"},
		{types.StatusDone, "b"},
	}
	if len(got) != len(want) {
		t.Fatalf("statuses: %v", kinds(got))
	}
	for i, w := range want {
		if got[i].Status != w.kind || got[i].File != w.file {
			t.Fatalf("status[%d] = %+v, want %s/%s", i, got[i], w.kind, w.file)
		}
	}
}
