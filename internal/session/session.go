package session

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"gend/internal/engine"
	"gend/internal/registry"
	"gend/pkg/types"
)

// Session is the mutable core entity: the currently selected model, lazily
// materialized tokenizer/model handles, and generation progress. Invariant:
// tokenizer and model are either both nil or both non-nil; at most one
// generation is in flight at a time.
type Session struct {
	mu                   sync.RWMutex
	state                State
	lastErr              string
	reg                  *registry.Registry
	activeModelID        string
	preferredDtype       types.Dtype
	preferredDevice      types.Device
	loadedDtype          types.Dtype
	loadedDevice         types.Device
	tokenizer            engine.Tokenizer
	model                engine.Model
	cpuFallbackAttempted bool
	pastKV               any
	loadsTotal           uint64
	runsTotal            uint64

	eng          engine.Engine
	pub          Publisher
	log          zerolog.Logger
	stats        Recorder
	maxNewTokens int

	// interrupt is the cooperative cancellation token polled by the decode
	// loop between token-emission steps. Set from the controller side.
	interrupt atomic.Bool
}

// Snapshot returns a read-only view of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:                s.state,
		ActiveModel:          s.activeModelID,
		Dtype:                string(s.loadedDtype),
		Device:               string(s.loadedDevice),
		CPUFallbackAttempted: s.cpuFallbackAttempted,
		LastError:            s.lastErr,
		LoadsTotal:           s.loadsTotal,
		RunsTotal:            s.runsTotal,
	}
}

// Models returns the current registry contents.
func (s *Session) Models() []types.ModelDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.List()
}

// Ready reports whether handles are loaded and no long operation is running.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady && s.model != nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// handles returns the current tokenizer/model pair.
func (s *Session) handles() (engine.Tokenizer, engine.Model) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenizer, s.model
}

func (s *Session) publish(st types.Status) { s.pub.Publish(st) }
