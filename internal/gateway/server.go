// Package gateway exposes the generation session over HTTP: a command
// endpoint for the control channel, an NDJSON status stream, and the usual
// read-only projections (models, status, health, metrics).
package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gend/internal/session"
	"gend/pkg/types"
)

// Service defines the methods required by the HTTP layer. *session.Worker
// satisfies it.
type Service interface {
	Dispatch(cmd types.Command) error
	Models() []types.ModelDescriptor
	Snapshot() session.Snapshot
	Ready() bool
}

// StatsReader supplies recorded run history for the status projection. May be
// nil when persistence is disabled.
type StatsReader interface {
	Recent(n int) ([]types.RunStats, error)
}

const recentRunsShown = 10

// NewMux builds the router. events must be the same broadcaster installed as
// the session publisher so /events subscribers observe every status.
func NewMux(svc Service, events *Broadcaster, stats StatsReader) http.Handler {
	start := time.Now()

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.Models()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		snap := svc.Snapshot()
		resp := types.StatusResponse{
			State:                string(snap.State),
			ActiveModel:          snap.ActiveModel,
			Dtype:                snap.Dtype,
			Device:               snap.Device,
			CPUFallbackAttempted: snap.CPUFallbackAttempted,
			LastError:            snap.LastError,
			UptimeSeconds:        int64(time.Since(start).Seconds()),
			ServerTimeUnix:       time.Now().Unix(),
			LoadsTotal:           snap.LoadsTotal,
			RunsTotal:            snap.RunsTotal,
		}
		if stats != nil {
			recent, err := stats.Recent(recentRunsShown)
			if err != nil {
				if zlog != nil {
					zlog.Warn().Err(err).Msg("failed to read recent runs")
				}
			} else {
				resp.RecentRuns = recent
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Post("/control", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var cmd types.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !types.KnownCommand(cmd.Type) {
			writeJSONError(w, http.StatusBadRequest, "unknown command type: "+cmd.Type)
			return
		}

		lvl := requestLogLevel(r)
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Str("command", cmd.Type)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("control command")
		}

		if err := svc.Dispatch(cmd); err != nil {
			if session.IsContractViolation(err) {
				writeJSONError(w, http.StatusConflict, err.Error())
				return
			}
			if he, ok := err.(HTTPError); ok {
				writeJSONError(w, he.StatusCode(), he.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": cmd.Type})
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch, cancel := events.Subscribe()
		defer cancel()

		lvl := requestLogLevel(r)
		// Join server base context with request context so shutdown ends the stream too.
		ctx, cancelCtx := joinContexts(serverBaseCtx, r.Context())
		defer cancelCtx()

		enc := json.NewEncoder(w)
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-ch:
				if err := enc.Encode(st); err != nil {
					return
				}
				flusher.Flush()
				if lvl >= LevelDebug && zlog != nil {
					zlog.Debug().Str("status", st.Status).Msg("event sent")
				}
			}
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}
