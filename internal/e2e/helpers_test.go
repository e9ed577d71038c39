package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gend/internal/engine"
	"gend/internal/gateway"
	"gend/internal/registry"
	"gend/internal/session"
	"gend/pkg/types"
)

// harness is a full in-process stack: stub engine, session worker, and the
// HTTP gateway, wired exactly as cmd/gend does it.
type harness struct {
	srv    *httptest.Server
	worker *session.Worker
	events *gateway.Broadcaster
	cancel context.CancelFunc
}

func newHarness(t *testing.T, stubCfg engine.StubConfig) *harness {
	t.Helper()
	reg, err := registry.New([]types.ModelDescriptor{
		{ID: "modelA", Friendly: "Model A", Dtype: types.DtypeQ4, Thinking: true},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	events := gateway.NewBroadcaster()
	sess := session.New(session.Config{
		Registry:  reg,
		Engine:    engine.NewStub(stubCfg),
		Publisher: events,
		Logger:    zerolog.Nop(),
	})
	worker := session.NewWorker(sess, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	srv := httptest.NewServer(gateway.NewMux(worker, events, nil))
	h := &harness{srv: srv, worker: worker, events: events, cancel: cancel}
	t.Cleanup(func() {
		srv.Close()
		cancel()
		worker.Wait()
	})
	return h
}

// control posts one command and returns the HTTP status code.
func (h *harness) control(t *testing.T, cmd types.Command) int {
	t.Helper()
	body, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	resp, err := http.Post(h.srv.URL+"/control", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /control: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

// eventStream opens /events and returns a channel of decoded statuses.
func (h *harness) eventStream(t *testing.T) <-chan types.Status {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.srv.URL+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	out := make(chan types.Status, 256)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			var st types.Status
			if err := json.Unmarshal(scanner.Bytes(), &st); err != nil {
				continue
			}
			out <- st
		}
	}()

	// Wait for the subscription to register before commands fire.
	deadline := time.Now().Add(2 * time.Second)
	for h.events.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if h.events.Subscribers() == 0 {
		t.Fatalf("event subscriber never registered")
	}
	return out
}

// collectUntil drains the stream until a status of the given kind arrives,
// returning everything seen up to and including it.
func collectUntil(t *testing.T, ch <-chan types.Status, kind string) []types.Status {
	t.Helper()
	var seen []types.Status
	timeout := time.After(5 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("event stream closed while waiting for %q; saw %v", kind, kindsOf(seen))
			}
			seen = append(seen, st)
			if st.Status == kind {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q; saw %v", kind, kindsOf(seen))
		}
	}
}

func kindsOf(statuses []types.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.Status
	}
	return out
}

func filterKind(statuses []types.Status, kind string) []types.Status {
	var out []types.Status
	for _, s := range statuses {
		if s.Status == kind {
			out = append(out, s)
		}
	}
	return out
}
