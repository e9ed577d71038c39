package session

import "gend/pkg/types"

// Unload halts any in-flight generation via the interrupt token, releases
// model and tokenizer handles, clears the fallback marker and the key-value
// cache, and returns the session to Idle. Dispose failures are logged, never
// propagated.
func (s *Session) Unload() {
	s.interrupt.Store(true)
	s.setState(StateUnloading)
	s.publish(types.Status{Status: types.StatusUnloading})

	s.mu.Lock()
	mdl := s.model
	id := s.activeModelID
	s.tokenizer = nil
	s.model = nil
	s.pastKV = nil
	s.cpuFallbackAttempted = false
	s.loadedDtype = ""
	s.loadedDevice = ""
	s.state = StateIdle
	s.mu.Unlock()

	if mdl != nil {
		if err := mdl.Dispose(); err != nil {
			s.log.Warn().Err(err).Str("model", id).Msg("dispose failed during unload")
		}
	}
	s.interrupt.Store(false)
	s.log.Info().Str("model", id).Msg("unloaded")
	s.publish(types.Status{Status: types.StatusUnloaded})
}
