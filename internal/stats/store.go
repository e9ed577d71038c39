// Package stats persists per-run generation statistics to a local SQLite
// database so throughput history survives restarts. Recording is best-effort:
// a storage failure is logged and never propagated into the generation path.
package stats

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"gend/internal/common/fsutil"
	"gend/pkg/types"
)

// Store is a SQLite-backed run-statistics recorder.
type Store struct {
	db   *sql.DB
	log  zerolog.Logger
	mu   sync.Mutex
	path string
}

// Open creates (or reopens) the statistics database at path. Parent
// directories are created as needed.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := fsutil.EnsureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	s := &Store{db: db, log: log, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		num_tokens INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		tokens_per_second REAL,
		phase TEXT,
		interrupted INTEGER NOT NULL DEFAULT 0,
		completed_unix INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to init stats schema: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_completed ON runs(completed_unix);`)
	if err != nil {
		return fmt.Errorf("failed to init stats index: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores one completed run. Failures are logged, not returned; the
// generation path must never stall on statistics bookkeeping.
func (s *Store) Record(r types.RunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CompletedUnix == 0 {
		r.CompletedUnix = time.Now().Unix()
	}
	interrupted := 0
	if r.Interrupted {
		interrupted = 1
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs
			(run_id, model_id, num_tokens, duration_ms, tokens_per_second, phase, interrupted, completed_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.ModelID, r.NumTokens, r.DurationMS, r.TokensPerSecond, r.Phase, interrupted, r.CompletedUnix)
	if err != nil {
		s.log.Warn().Err(err).Str("run_id", r.RunID).Msg("failed to record run stats")
	}
}

// Recent returns up to n of the most recently completed runs, newest first.
func (s *Store) Recent(n int) ([]types.RunStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT run_id, model_id, num_tokens, duration_ms, tokens_per_second, phase, interrupted, completed_unix
		FROM runs ORDER BY completed_unix DESC, run_id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	var out []types.RunStats
	for rows.Next() {
		var r types.RunStats
		var interrupted int
		if err := rows.Scan(&r.RunID, &r.ModelID, &r.NumTokens, &r.DurationMS,
			&r.TokensPerSecond, &r.Phase, &interrupted, &r.CompletedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Interrupted = interrupted != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Totals returns the all-time run and token counts.
func (s *Store) Totals() (runs int64, tokens int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(num_tokens), 0) FROM runs`)
	if err := row.Scan(&runs, &tokens); err != nil {
		return 0, 0, fmt.Errorf("failed to read run totals: %w", err)
	}
	return runs, tokens, nil
}
