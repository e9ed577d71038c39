package session

import (
	"gend/internal/registry"
	"gend/pkg/types"
)

// SetModel selects the active model from a bare id or a {model_id, dtype}
// spec. Any cached tokenizer/model handles are discarded so the next load or
// generate acquires fresh ones. Does not itself load.
func (s *Session) SetModel(spec types.SetModelSpec) {
	s.mu.Lock()
	s.activeModelID = spec.ModelID
	s.preferredDtype = spec.Dtype
	mdl := s.model
	s.tokenizer = nil
	s.model = nil
	s.pastKV = nil
	s.loadedDtype = ""
	s.loadedDevice = ""
	if s.state == StateReady {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if mdl != nil {
		if err := mdl.Dispose(); err != nil {
			s.log.Warn().Err(err).Str("model", spec.ModelID).Msg("dispose on set_model failed")
		}
	}
	s.publish(types.ModelChangedStatus(spec.ModelID))
}

// ReplaceRegistry swaps in a controller-supplied registry table.
func (s *Session) ReplaceRegistry(entries map[string]types.RegistryEntry) error {
	reg, err := registry.FromWire(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.reg = reg
	s.mu.Unlock()
	s.publish(types.Status{Status: types.StatusRegistryReceived})
	return nil
}

// Interrupt signals the cooperative cancellation token consumed by the
// in-flight decode loop. Idempotent; a no-op when nothing is running.
func (s *Session) Interrupt() {
	s.interrupt.Store(true)
}

// Reset clears the key-value cache and the interrupt token without touching
// loaded handles, starting a fresh multi-turn context.
func (s *Session) Reset() {
	s.mu.Lock()
	s.pastKV = nil
	s.mu.Unlock()
	s.interrupt.Store(false)
}

// Check probes the accelerated backend and reports a capability error to the
// controller when it is unavailable. Success is silent.
func (s *Session) Check() {
	if err := s.eng.Accelerated(); err != nil {
		s.log.Warn().Err(err).Msg("capability check failed")
		s.publish(types.ErrorStatus(err.Error()))
		return
	}
	s.log.Debug().Msg("capability check ok")
}
