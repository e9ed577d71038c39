package engine

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/shirou/gopsutil/v3/mem"
)

// Minimum available memory to consider any backend usable. Loading even a
// small quantized model under this floor tends to OOM the host instead of
// failing cleanly.
const minAvailableMB = 512

// ProbeAccelerated checks whether a GPU-class backend is usable on this host.
// GEND_FORCE_ACCELERATED=1 overrides detection (useful in containers where
// the device nodes are mapped but tooling is absent).
func ProbeAccelerated() error {
	if os.Getenv("GEND_FORCE_ACCELERATED") == "1" {
		return nil
	}
	if err := probeMemory(); err != nil {
		return err
	}
	if !gpuPresent() {
		return fmt.Errorf("no accelerated backend: no usable GPU adapter detected")
	}
	return nil
}

func probeMemory() error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		// Detection failure is not a capability failure.
		return nil
	}
	availMB := vm.Available / (1024 * 1024)
	if availMB < minAvailableMB {
		return fmt.Errorf("no accelerated backend: only %dMB memory available (%dMB required)", availMB, minAvailableMB)
	}
	return nil
}

// gpuPresent checks for NVIDIA tooling or a render node.
func gpuPresent() bool {
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return true
	}
	entries, err := os.ReadDir("/dev/dri")
	if err != nil {
		return false
	}
	return len(entries) > 0
}
