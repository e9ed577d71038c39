package session

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"gend/pkg/types"
)

// Worker runs the session on a single goroutine, isolated from the
// controller: all cross-boundary communication is asynchronous message
// passing, no shared memory. Long operations (load, generate, unload) run
// inline on the worker goroutine, cooperatively sequenced; interrupt and
// reset act immediately from the dispatching side since they only touch the
// cancellation token and caches.
type Worker struct {
	sess *Session
	cmds chan types.Command
	log  zerolog.Logger
	done chan struct{}
}

// NewWorker wraps sess in a command-channel worker.
func NewWorker(sess *Session, log zerolog.Logger) *Worker {
	return &Worker{
		sess: sess,
		cmds: make(chan types.Command, defaultCommandBuffer),
		log:  log,
		done: make(chan struct{}),
	}
}

// Session exposes the underlying session for read-only projections.
func (w *Worker) Session() *Session { return w.sess }

// Snapshot forwards to the session; safe to call from any goroutine.
func (w *Worker) Snapshot() Snapshot { return w.sess.Snapshot() }

// Models forwards to the session registry.
func (w *Worker) Models() []types.ModelDescriptor { return w.sess.Models() }

// Ready forwards the session readiness probe.
func (w *Worker) Ready() bool { return w.sess.Ready() }

// Dispatch validates cmd and routes it. Returns an error when the command is
// malformed or violates the caller contract; accepted commands are
// fire-and-forget.
func (w *Worker) Dispatch(cmd types.Command) error {
	if !types.KnownCommand(cmd.Type) {
		return contractViolationError{msg: "unknown command type: " + cmd.Type}
	}
	switch cmd.Type {
	case types.CmdInterrupt:
		w.sess.Interrupt()
		return nil
	case types.CmdReset:
		w.sess.Reset()
		return nil
	case types.CmdGenerate:
		var msgs []types.ChatMessage
		if err := json.Unmarshal(cmd.Data, &msgs); err != nil {
			return contractViolationError{msg: "generate: invalid messages payload"}
		}
		// A second generate while one is in flight is a contract violation;
		// reject it here rather than queueing it behind the active run.
		if w.sess.Snapshot().State == StateGenerating {
			msg := "generation already in progress; interrupt it first"
			w.log.Warn().Msg(msg)
			w.sess.publish(types.ErrorStatus(msg))
			return contractViolationError{msg: msg}
		}
	case types.CmdSetModel:
		if _, err := types.DecodeSetModel(cmd.Data); err != nil {
			return contractViolationError{msg: "set_model: invalid payload"}
		}
	case types.CmdUnload:
		// Halt any in-flight generation now; the queued unload finishes the
		// teardown once the run has drained.
		w.sess.Interrupt()
	}

	select {
	case w.cmds <- cmd:
		return nil
	default:
		return contractViolationError{msg: "command queue full"}
	}
}

// Run consumes commands until ctx is canceled, then unloads and exits. An
// in-flight generation unwinds cooperatively through ctx before the final
// unload runs.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.sess.Unload()
			return
		case cmd := <-w.cmds:
			w.handle(ctx, cmd)
		}
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) handle(ctx context.Context, cmd types.Command) {
	w.log.Debug().Str("command", cmd.Type).Msg("handling command")
	switch cmd.Type {
	case types.CmdCheck:
		w.sess.Check()
	case types.CmdModelRegistry:
		var entries map[string]types.RegistryEntry
		if err := json.Unmarshal(cmd.Data, &entries); err != nil {
			w.sess.publish(types.ErrorStatus("model_registry: invalid payload"))
			return
		}
		if err := w.sess.ReplaceRegistry(entries); err != nil {
			w.sess.publish(types.ErrorStatus("model_registry: " + err.Error()))
		}
	case types.CmdSetModel:
		spec, err := types.DecodeSetModel(cmd.Data)
		if err != nil {
			w.sess.publish(types.ErrorStatus("set_model: invalid payload"))
			return
		}
		w.sess.SetModel(spec)
	case types.CmdLoad:
		// Errors are already classified and published by Load.
		_ = w.sess.Load(ctx)
	case types.CmdGenerate:
		var msgs []types.ChatMessage
		if err := json.Unmarshal(cmd.Data, &msgs); err != nil {
			w.sess.publish(types.ErrorStatus("generate: invalid messages payload"))
			return
		}
		_ = w.sess.Generate(ctx, msgs)
	case types.CmdUnload:
		w.sess.Unload()
	}
}
