package session

import (
	"errors"
	"testing"
)

func TestClassifyAcquisition(t *testing.T) {
	cases := []struct {
		msg  string
		want acquisitionClass
	}{
		{"Device lost during initialization", classDevice},
		{"no suitable GPU adapter found", classDevice},
		{"out of memory allocating KV cache", classOutOfMemory},
		{"CUDA OOM at layer 12", classOutOfMemory},
		{"failed to create inference session", classRuntimeInit},
		{"backend refused to start", classRuntimeInit},
		{"runtime panic in shader compiler", classRuntimeInit},
		{"something unexpected", classUnknown},
	}
	for _, c := range cases {
		if got := classifyAcquisition(errors.New(c.msg)); got != c.want {
			t.Fatalf("classifyAcquisition(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestNewLoadError_RewritesMessage(t *testing.T) {
	cause := errors.New("Device lost during initialization")
	le := newLoadError(cause)
	if le.class != classDevice {
		t.Fatalf("class = %v", le.class)
	}
	if le.Error() == cause.Error() {
		t.Fatalf("raw backend message must not cross the boundary")
	}
	if !errors.Is(le, cause) {
		t.Fatalf("cause not preserved for diagnostics")
	}
}

func TestNewLoadError_UnknownClassKeepsCauseText(t *testing.T) {
	le := newLoadError(errors.New("mystery failure"))
	if le.class != classUnknown {
		t.Fatalf("class = %v", le.class)
	}
	if le.Error() != "Failed to load the model: mystery failure" {
		t.Fatalf("unexpected message: %q", le.Error())
	}
}

func TestDeviceClass(t *testing.T) {
	if !deviceClass(newLoadError(errors.New("adapter unavailable"))) {
		t.Fatalf("adapter failure should be device class")
	}
	if deviceClass(newLoadError(errors.New("out of memory"))) {
		t.Fatalf("oom failure must not be device class")
	}
	if deviceClass(errors.New("plain")) {
		t.Fatalf("plain error must not be device class")
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsCapability(capabilityError{cause: errors.New("x")}) || IsCapability(errors.New("x")) {
		t.Fatalf("IsCapability misclassifies")
	}
	if !IsContractViolation(contractViolationError{msg: "x"}) || IsContractViolation(errors.New("x")) {
		t.Fatalf("IsContractViolation misclassifies")
	}
}
