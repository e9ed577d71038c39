package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"gend/internal/engine"
	"gend/internal/reasoning"
	"gend/pkg/types"
)

// Generate runs one generation over the conversation so far. Handles are
// materialized on demand (the full load procedure, including fallback, runs
// inline when absent). Every decoded increment passes through the
// thought/answer splitter and the control-token scrubber before an update
// leaves the session; the run ends with exactly one complete, whether it
// finished naturally or was interrupted.
func (s *Session) Generate(ctx context.Context, msgs []types.ChatMessage) error {
	s.mu.Lock()
	if s.state == StateGenerating {
		s.mu.Unlock()
		// Caller contract violation: the controller must not issue a second
		// generate before complete. Reject rather than corrupt the run.
		msg := "generation already in progress; interrupt it first"
		s.log.Warn().Msg(msg)
		s.publish(types.ErrorStatus(msg))
		return contractViolationError{msg: msg}
	}
	s.mu.Unlock()

	if _, mdl := s.handles(); mdl == nil {
		if err := s.Load(ctx); err != nil {
			return err
		}
	}
	tok, mdl := s.handles()

	s.interrupt.Store(false)

	input, err := tok.ApplyChatTemplate(msgs)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		s.setError(err.Error())
		s.publish(types.ErrorStatus("Failed to format the conversation: " + err.Error()))
		return err
	}

	s.setState(StateGenerating)
	defer s.setState(StateReady)

	s.mu.RLock()
	kv := s.pastKV
	modelID := s.activeModelID
	s.mu.RUnlock()

	s.publish(types.StartStatus())
	r := &run{id: uuid.NewString(), phase: reasoning.PhaseAnswering}

	onToken := func(text string, id int) {
		r.numTokens++
		if r.numTokens == 1 {
			// The first token's arrival establishes the timer origin.
			r.start = time.Now()
		}
		if r.numTokens >= 5 && r.numTokens%5 == 0 {
			v := float64(r.numTokens) / time.Since(r.start).Seconds()
			r.tps = &v
		}
		r.rawBuffer += text

		split := reasoning.Split(r.rawBuffer)
		thought, tm := reasoning.Scrub(split.Thought)
		answer, am := reasoning.Scrub(split.Answer)
		r.phase = split.Phase
		s.reportScrubbed(r, []int{id}, append(am, tm...))
		s.publish(types.UpdateStatus(answer, thought, r.tps, r.numTokens, string(split.Phase)))
	}

	res, err := mdl.Generate(ctx, engine.GenerateRequest{
		Input:         input,
		MaxNewTokens:  s.maxNewTokens,
		Sample:        false,
		PastKeyValues: kv,
		OnToken:       onToken,
		Stop:          s.interrupt.Load,
	})
	interrupted := s.interrupt.Load() || ctx.Err() != nil
	if err != nil && !interrupted {
		generationsTotal.WithLabelValues("error").Inc()
		s.setError(err.Error())
		s.publish(types.ErrorStatus("Generation failed: " + err.Error()))
		return err
	}

	// Final decode of the full sequences; scrub again before it leaves the
	// worker. Decode failure here is best-effort diagnostics territory: fall
	// back to the streamed buffer rather than dropping the run.
	final := r.rawBuffer
	if texts, derr := tok.BatchDecode(res.Sequences); derr == nil {
		final = strings.Join(texts, "")
	} else {
		s.log.Warn().Err(derr).Msg("final batch decode failed, using streamed buffer")
	}
	clean, matches := reasoning.Scrub(final)
	if len(matches) > 0 {
		s.reportScrubbed(r, flatten(res.Sequences), matches)
	}

	s.mu.Lock()
	s.pastKV = res.PastKeyValues
	s.runsTotal++
	s.mu.Unlock()

	outcome := "complete"
	if interrupted {
		outcome = "interrupted"
	}
	generationsTotal.WithLabelValues(outcome).Inc()
	tokensGeneratedTotal.Add(float64(r.numTokens))

	var meanTPS float64
	duration := time.Duration(0)
	if r.numTokens > 0 {
		duration = time.Since(r.start)
		if secs := duration.Seconds(); secs > 0 {
			meanTPS = float64(r.numTokens) / secs
			tokensPerSecond.Set(meanTPS)
		}
	}

	s.publish(types.CompleteStatus(clean))
	s.log.Info().
		Str("run", r.id).
		Str("model", modelID).
		Int("tokens", r.numTokens).
		Bool("interrupted", interrupted).
		Msg("generation complete")

	if s.stats != nil {
		s.stats.Record(types.RunStats{
			RunID:           r.id,
			ModelID:         modelID,
			NumTokens:       r.numTokens,
			DurationMS:      duration.Milliseconds(),
			TokensPerSecond: meanTPS,
			Phase:           string(r.phase),
			Interrupted:     interrupted,
			CompletedUnix:   time.Now().Unix(),
		})
	}
	return nil
}

// reportScrubbed sends newly observed control-token matches to the
// diagnostic channel (structured log) and the token_debug status. The run's
// running match count dedupes re-scans of the growing buffer and the final
// full-sequence scrub. Diagnostics never interrupt the stream.
func (s *Session) reportScrubbed(r *run, ids []int, matches []string) {
	newFrom := 0
	if r != nil {
		if len(matches) <= r.reportedMatches {
			r.reportedMatches = len(matches)
			return
		}
		newFrom = r.reportedMatches
		r.reportedMatches = len(matches)
	}
	for _, m := range matches[newFrom:] {
		controlTokensScrubbed.Inc()
		s.log.Debug().Str("match", m).Ints("tokens", ids).Msg("control token scrubbed")
		s.publish(types.TokenDebugStatus(ids, m))
	}
}

func flatten(seqs [][]int) []int {
	var out []int
	for _, s := range seqs {
		out = append(out, s...)
	}
	return out
}
