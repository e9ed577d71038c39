package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	cleanup := func() { _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	root := filepath.Dir(filepath.Dir(bbDir))
	return root
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "gend")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/gend")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

func writeRegistry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "registry.yaml")
	data := []byte("modelA:\n  friendly: Model A\n  dtype: q4\n  thinking: true\nmodelB:\n  friendly: Model B\n")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return p
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin, registryPath string, port int, extra ...string) *serverProc {
	t.Helper()
	addr := fmt.Sprintf(":%d", port)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := []string{"serve", "--addr", addr, "--registry", registryPath, "--models-dir", t.TempDir()}
	args = append(args, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Force the stub engine's capability probe to pass regardless of host.
	cmd.Env = append(os.Environ(), "GEND_FORCE_ACCELERATED=1")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	registryPath := writeRegistry(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, registryPath, port)

	// /healthz
	resp, body := get(t, sp.base+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d %s", resp.StatusCode, string(body))
	}

	// /models
	resp, body = get(t, sp.base+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/models content-type=%s", ct)
	}
	var modelsResp struct {
		Models []struct {
			ID string `json:"id"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		t.Fatalf("/models json: %v body=%s", err, string(body))
	}
	if len(modelsResp.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(modelsResp.Models))
	}

	// /readyz initially 503
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz initial %d %s", resp.StatusCode, string(body))
	}

	// select and load the model over the control channel
	resp, body = postJSON(t, sp.base+"/control", []byte(`{"type":"set_model","data":"modelA"}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/control set_model %d %s", resp.StatusCode, string(body))
	}
	resp, body = postJSON(t, sp.base+"/control", []byte(`{"type":"load"}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/control load %d %s", resp.StatusCode, string(body))
	}

	// /readyz eventually 200
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, _ = get(t, sp.base+"/readyz")
		if resp.StatusCode == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("/readyz did not become ready in time; last=%d", resp.StatusCode)
		}
		time.Sleep(25 * time.Millisecond)
	}

	// /status reflects the loaded model
	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var statusResp struct {
		State       string `json:"state"`
		ActiveModel string `json:"active_model"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil {
		t.Fatalf("/status json: %v body=%s", err, string(body))
	}
	if statusResp.State != "ready" || statusResp.ActiveModel != "modelA" {
		t.Fatalf("unexpected status: %s", string(body))
	}
}

func TestBlackbox_UnknownCommand_400(t *testing.T) {
	bin := buildBinary(t)
	registryPath := writeRegistry(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, registryPath, port)

	resp, body := postJSON(t, sp.base+"/control", []byte(`{"type":"frobnicate"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_GenerateWithoutModel_Errors(t *testing.T) {
	bin := buildBinary(t)
	registryPath := writeRegistry(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, registryPath, port)

	// The command is well-formed so it is accepted; the session reports the
	// contract violation through the event stream, and /status records it.
	resp, body := postJSON(t, sp.base+"/control", []byte(`{"type":"load"}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/control load %d %s", resp.StatusCode, string(body))
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, body = get(t, sp.base+"/status")
		var st struct {
			LastError string `json:"last_error"`
		}
		_ = json.Unmarshal(body, &st)
		if st.LastError != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("load without model never surfaced an error; status=%s", string(body))
		}
		time.Sleep(25 * time.Millisecond)
	}
}
