package session

import "strings"

// capabilityError signals that the accelerated backend is unavailable. Fatal
// to the load attempt, reported verbatim, never retried automatically.
type capabilityError struct{ cause error }

func (e capabilityError) Error() string { return e.cause.Error() }
func (e capabilityError) Unwrap() error { return e.cause }

// IsCapability reports whether err is a backend-capability failure.
func IsCapability(err error) bool {
	_, ok := err.(capabilityError)
	return ok
}

// acquisitionClass buckets model-acquisition failures by message content.
type acquisitionClass int

const (
	classUnknown acquisitionClass = iota
	classDevice
	classRuntimeInit
	classOutOfMemory
)

// classifyAcquisition inspects the error message. Substring matching is the
// contract here: the engine surfaces backend errors as flat strings.
func classifyAcquisition(err error) acquisitionClass {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "oom"):
		return classOutOfMemory
	case strings.Contains(msg, "device") || strings.Contains(msg, "adapter"):
		return classDevice
	case strings.Contains(msg, "session") || strings.Contains(msg, "backend") || strings.Contains(msg, "runtime"):
		return classRuntimeInit
	}
	return classUnknown
}

// rewriteAcquisition maps a classified failure to a user-safe description.
// The raw message stays in logs; only the rewrite crosses the boundary.
func rewriteAcquisition(class acquisitionClass, err error) string {
	switch class {
	case classDevice:
		return "Failed to initialize the accelerated device. Your hardware may not be supported."
	case classRuntimeInit:
		return "The inference runtime failed to initialize. Try loading the model again."
	case classOutOfMemory:
		return "Ran out of memory while loading the model. Try a smaller model or a lower precision."
	}
	return "Failed to load the model: " + err.Error()
}

// loadError is a classified, rewritten model-acquisition failure.
type loadError struct {
	class   acquisitionClass
	userMsg string
	cause   error
}

func (e loadError) Error() string { return e.userMsg }
func (e loadError) Unwrap() error { return e.cause }

func newLoadError(cause error) loadError {
	class := classifyAcquisition(cause)
	return loadError{class: class, userMsg: rewriteAcquisition(class, cause), cause: cause}
}

// deviceClass reports whether err is a device/adapter-class load failure,
// the only class eligible for the one-shot CPU fallback.
func deviceClass(err error) bool {
	le, ok := err.(loadError)
	return ok && le.class == classDevice
}

// contractViolationError signals a controller protocol violation, e.g. a
// second generate while one is in flight.
type contractViolationError struct{ msg string }

func (e contractViolationError) Error() string { return e.msg }

// IsContractViolation reports whether err indicates a caller contract breach.
func IsContractViolation(err error) bool {
	_, ok := err.(contractViolationError)
	return ok
}
