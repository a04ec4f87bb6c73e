// Package orchestrator coordinates the capability invocations of one turn:
// it partitions selected capabilities into dependency batches and runs each
// batch under a bounded worker limit with per-invocation timeouts.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// activeTrace holds the installed scheduling trace, nil when tracing is off.
var activeTrace atomic.Pointer[Trace]

// SetTrace installs the package-level scheduling trace. Pass nil to disable.
func SetTrace(t *Trace) {
	activeTrace.Store(t)
}

// debugLog writes one line to the active trace, if any. The graph, scheduler,
// and turn runner use it for trace-grade detail that would drown slog.
func debugLog(format string, args ...any) {
	if t := activeTrace.Load(); t != nil {
		t.printf(format, args...)
	}
}

// Trace is a line-oriented scheduling trace backed by an append-only file.
// Every line is timestamped and synced on write.
type Trace struct {
	mu   sync.Mutex
	file *os.File
}

// OpenTrace appends to the file at path, creating parent directories as
// needed. An empty path yields a trace that discards everything.
func OpenTrace(path string) (*Trace, error) {
	if path == "" {
		return &Trace{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	t := &Trace{file: f}
	t.printf("=== scheduling trace started %s ===", time.Now().Format(time.RFC3339))
	return t, nil
}

func (t *Trace) printf(format string, args ...any) {
	if t == nil || t.file == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(t.file, "[%s] %s\n", stamp, fmt.Sprintf(format, args...))
	t.file.Sync()
}

// Close closes the trace file. Safe on nil and on a discarding trace.
func (t *Trace) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
