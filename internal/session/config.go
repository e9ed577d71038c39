package session

import (
	"github.com/rs/zerolog"

	"gend/internal/engine"
	"gend/internal/registry"
	"gend/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	// defaultMaxNewTokens is the fixed new-token budget per generation.
	defaultMaxNewTokens = 2048
	// defaultCommandBuffer is the worker command queue depth.
	defaultCommandBuffer = 16
)

// Recorder persists per-run statistics. Best effort: implementations log
// their own failures and never block generation.
type Recorder interface {
	Record(types.RunStats)
}

// Config encapsulates all tunables for Session construction.
type Config struct {
	Registry      *registry.Registry
	Engine        engine.Engine
	Publisher     Publisher
	Logger        zerolog.Logger
	Stats         Recorder
	MaxNewTokens  int
	DefaultDevice types.Device
}

// New constructs a Session from Config.
func New(cfg Config) *Session {
	s := &Session{
		state:           StateIdle,
		reg:             cfg.Registry,
		eng:             cfg.Engine,
		pub:             cfg.Publisher,
		log:             cfg.Logger,
		stats:           cfg.Stats,
		maxNewTokens:    cfg.MaxNewTokens,
		preferredDevice: cfg.DefaultDevice,
	}
	if s.pub == nil {
		s.pub = noopPublisher{}
	}
	if s.maxNewTokens <= 0 {
		s.maxNewTokens = defaultMaxNewTokens
	}
	if s.preferredDevice == "" {
		s.preferredDevice = types.DeviceAccelerated
	}
	if s.reg == nil {
		s.reg, _ = registry.New(nil)
	}
	return s
}
