// Package session owns the generation-session state machine: model
// selection, lazy tokenizer/model materialization, streaming generation with
// cooperative interrupt, and the status protocol back to the controller. It
// is structured into small files by concern:
//
//   - session.go: core Session type, constructor, snapshot projection.
//   - config.go: Config and package defaults.
//   - types.go: lifecycle states and the per-run bookkeeping type.
//   - errors.go: error classification, user-safe rewrites, Is* helpers.
//   - events.go: Publisher interface, fan-out and in-memory publishers.
//   - commands.go: SetModel/Reset/Interrupt and registry handover.
//   - load.go: capability probe, dtype/device resolution, acquisition with
//     progress reshaping, warm-up, one-shot CPU fallback.
//   - generate.go: streaming decode loop, post-processing, TPS cadence.
//   - unload.go: drain, dispose, teardown.
//   - worker.go: the single worker goroutine consuming the command channel.
//   - progress.go: download-progress reshaping into protocol statuses.
//   - metrics.go: Prometheus instrumentation.
//
// All mutable session state belongs to the worker goroutine; the controller
// side reaches it only through Worker.Dispatch and observes it only through
// the Publisher. Interrupt is an atomic flag so it lands mid-generation.
package session
