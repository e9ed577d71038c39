package session

import (
	"sync"

	"github.com/rs/zerolog"

	"gend/pkg/types"
)

// Publisher receives status messages from the session. Implementations must
// be lightweight and non-blocking; Publish must not panic.
type Publisher interface {
	Publish(types.Status)
}

// noopPublisher is the default; it drops statuses.
type noopPublisher struct{}

func (noopPublisher) Publish(types.Status) {}

// MultiPublisher fans one status stream out to several publishers.
type MultiPublisher []Publisher

func (mp MultiPublisher) Publish(s types.Status) {
	for _, p := range mp {
		p.Publish(s)
	}
}

// LogPublisher taps the status stream into a zerolog logger at debug level.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher { return &LogPublisher{log: log} }

func (p *LogPublisher) Publish(s types.Status) {
	e := p.log.Debug().Str("status", s.Status)
	if s.Data != "" {
		e = e.Str("data", s.Data)
	}
	if s.Model != "" {
		e = e.Str("model", s.Model)
	}
	e.Msg("status")
}

// MemoryPublisher stores statuses in-memory for tests.
type MemoryPublisher struct {
	mu       sync.Mutex
	statuses []types.Status
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(s types.Status) {
	p.mu.Lock()
	p.statuses = append(p.statuses, s)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Statuses() []types.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Status, len(p.statuses))
	copy(out, p.statuses)
	return out
}

// Filter returns the stored statuses of one kind, in order.
func (p *MemoryPublisher) Filter(kind string) []types.Status {
	var out []types.Status
	for _, s := range p.Statuses() {
		if s.Status == kind {
			out = append(out, s)
		}
	}
	return out
}
