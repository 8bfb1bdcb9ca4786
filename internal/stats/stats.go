// Package stats periodically serializes runtime counters from the
// executor pool to disk as a YAML snapshot, for external monitoring
// without requiring a metrics endpoint.
package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/puttle-proxy/puttle/internal/clog"
	"github.com/puttle-proxy/puttle/internal/executor"
)

// ExecutorSnapshot is one executor's lifetime counters at snapshot time.
type ExecutorSnapshot struct {
	ID        int   `yaml:"id"`
	Sessions  int64 `yaml:"sessions"`
	BytesUp   int64 `yaml:"bytes_up"`
	BytesDown int64 `yaml:"bytes_down"`
}

// Snapshot is the top-level document written to the stats file.
type Snapshot struct {
	Timestamp      string             `yaml:"timestamp"`
	TotalSessions  int64              `yaml:"total_sessions"`
	TotalBytesUp   int64              `yaml:"total_bytes_up"`
	TotalBytesDown int64              `yaml:"total_bytes_down"`
	Executors      []ExecutorSnapshot `yaml:"executors"`
}

// Build aggregates a Snapshot from the current state of pool's executors.
func Build(pool *executor.Pool) Snapshot {
	snap := Snapshot{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	for _, e := range pool.Executors() {
		sessions, up, down := e.Stats()
		snap.Executors = append(snap.Executors, ExecutorSnapshot{
			ID: e.ID(), Sessions: sessions, BytesUp: up, BytesDown: down,
		})
		snap.TotalSessions += sessions
		snap.TotalBytesUp += up
		snap.TotalBytesDown += down
	}
	return snap
}

// DefaultPath returns the default stats snapshot location, following the
// same XDG_STATE_HOME convention as the log file.
func DefaultPath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "puttle", "stats.yaml")
}

// Write marshals snap to YAML and writes it to path with user-only
// permissions, creating the parent directory if needed.
func Write(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("stats: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("stats: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("stats: write %s: %w", path, err)
	}
	return nil
}

// Writer periodically snapshots pool to path until ctx is canceled.
type Writer struct {
	Path     string
	Interval time.Duration
	Pool     *executor.Pool
}

// Run blocks, writing a snapshot every Interval, until ctx is done. It
// always writes one final snapshot before returning.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := Write(w.Path, Build(w.Pool)); err != nil {
				clog.Warn("stats: final snapshot: %v", err)
			}
			return
		case <-ticker.C:
			if err := Write(w.Path, Build(w.Pool)); err != nil {
				clog.Warn("stats: periodic snapshot: %v", err)
			}
		}
	}
}
