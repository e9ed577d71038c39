package session

import (
	"time"

	"gend/internal/reasoning"
)

// State represents the lifecycle state of the session.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateUnloading  State = "unloading"
)

// Snapshot is a read-only projection of the session state.
type Snapshot struct {
	State                State
	ActiveModel          string
	Dtype                string
	Device               string
	CPUFallbackAttempted bool
	LastError            string
	LoadsTotal           uint64
	RunsTotal            uint64
}

// run tracks one generation from start to complete. Ephemeral; destroyed when
// the run completes, is interrupted, or errors.
type run struct {
	id        string
	rawBuffer string
	numTokens int
	start     time.Time
	tps       *float64
	phase     reasoning.Phase
	// reportedMatches counts scrub matches already sent to diagnostics;
	// the buffer is re-scanned every increment, so matches re-appear.
	reportedMatches int
}
