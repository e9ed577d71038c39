package session

import (
	"context"

	"gend/internal/engine"
	"gend/pkg/types"
)

// Load materializes tokenizer and model handles for the active model. It
// confirms backend capability, resolves dtype and device by priority,
// streams per-artifact download progress, runs a one-token warm-up to force
// one-time compilation cost, then reports ready. Failures are classified,
// rewritten, and may trigger the one-shot CPU fallback; the session is left
// in Idle on terminal failure, usable for a retried load.
func (s *Session) Load(ctx context.Context) error {
	s.mu.RLock()
	id := s.activeModelID
	override := s.preferredDtype
	device := s.preferredDevice
	loaded := s.model != nil
	reg := s.reg
	s.mu.RUnlock()

	if id == "" {
		msg := "no model selected"
		s.setError(msg)
		s.publish(types.ErrorStatus(msg))
		return contractViolationError{msg: msg}
	}
	if loaded {
		// Cached handles are current for this model id; set_model clears
		// them, so reaching here means the load is already done.
		s.publish(types.ReadyStatus(id))
		return nil
	}

	s.setState(StateLoading)
	s.setError("")

	// Capability is a hard gate for the accelerated backend: fail fast,
	// verbatim, no retry.
	if device == types.DeviceAccelerated {
		if err := s.eng.Accelerated(); err != nil {
			loadsTotal.WithLabelValues("capability_error").Inc()
			s.log.Error().Err(err).Msg("accelerated backend unavailable")
			s.setState(StateIdle)
			s.setError(err.Error())
			s.publish(types.ErrorStatus(err.Error()))
			return capabilityError{cause: err}
		}
	}

	dtype := reg.ResolveDtype(id, override)
	friendly := id
	if m, ok := reg.Lookup(id); ok && m.Friendly != "" {
		friendly = m.Friendly
	}
	s.publish(types.LoadingStatus("Loading " + friendly + "..."))
	s.log.Info().Str("model", id).Str("dtype", string(dtype)).Str("device", string(device)).Msg("load start")

	reshaper := newProgressReshaper(s.pub)

	tok, err := s.eng.NewTokenizer(ctx, id, reshaper.observe)
	if err != nil {
		return s.failLoad(newLoadError(err))
	}

	mdl, err := s.eng.NewModel(ctx, id, dtype, device, reshaper.observe)
	if err != nil {
		le := newLoadError(err)
		mdl, dtype, device, err = s.tryCPUFallback(ctx, id, le, reshaper)
		if err != nil {
			return s.failLoad(err)
		}
	}

	// Warm-up: a throwaway single-token generation so ahead-of-time
	// compilation cost is paid before the first real request.
	if _, err := mdl.Generate(ctx, engine.GenerateRequest{MaxNewTokens: 1}); err != nil {
		if derr := mdl.Dispose(); derr != nil {
			s.log.Warn().Err(derr).Msg("dispose after failed warm-up")
		}
		return s.failLoad(loadError{
			class:   classRuntimeInit,
			userMsg: rewriteAcquisition(classRuntimeInit, err),
			cause:   err,
		})
	}

	s.mu.Lock()
	s.tokenizer = tok
	s.model = mdl
	s.loadedDtype = dtype
	s.loadedDevice = device
	s.state = StateReady
	s.loadsTotal++
	s.mu.Unlock()

	loadsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("model", id).Str("dtype", string(dtype)).Str("device", string(device)).Msg("load done")
	s.publish(types.ReadyStatus(id))
	return nil
}

// tryCPUFallback reacquires the model on the CPU backend at full precision,
// at most once per session lifetime and only for device-class failures. The
// fallback's own failure is appended to the original message and surfaced as
// a single terminal error.
func (s *Session) tryCPUFallback(ctx context.Context, id string, orig loadError, reshaper *progressReshaper) (engine.Model, types.Dtype, types.Device, error) {
	s.mu.Lock()
	eligible := orig.class == classDevice && !s.cpuFallbackAttempted
	if eligible {
		s.cpuFallbackAttempted = true
	}
	s.mu.Unlock()

	if !eligible {
		return nil, "", "", orig
	}

	s.log.Warn().Err(orig.cause).Str("model", id).Msg("device failure, retrying on cpu at fp32")
	s.publish(types.LoadingStatus("Accelerated load failed, retrying on CPU..."))

	mdl, err := s.eng.NewModel(ctx, id, types.DtypeFP32, types.DeviceCPU, reshaper.observe)
	if err != nil {
		return nil, "", "", loadError{
			class:   orig.class,
			userMsg: orig.userMsg + " (CPU fallback also failed: " + err.Error() + ")",
			cause:   orig.cause,
		}
	}
	cpuFallbacksTotal.Inc()
	return mdl, types.DtypeFP32, types.DeviceCPU, nil
}

// failLoad reports a terminal load failure and parks the session in Idle.
func (s *Session) failLoad(err error) error {
	if le, ok := err.(loadError); ok {
		s.log.Error().Err(le.cause).Str("class", loadClassName(le.class)).Msg("load failed")
	} else {
		s.log.Error().Err(err).Msg("load failed")
	}
	loadsTotal.WithLabelValues("error").Inc()
	s.setState(StateIdle)
	s.setError(err.Error())
	s.publish(types.ErrorStatus(err.Error()))
	return err
}

func loadClassName(c acquisitionClass) string {
	switch c {
	case classDevice:
		return "device"
	case classRuntimeInit:
		return "runtime_init"
	case classOutOfMemory:
		return "oom"
	}
	return "unknown"
}
