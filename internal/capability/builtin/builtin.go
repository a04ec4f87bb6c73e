// Package builtin provides the stock analytics capabilities: metric
// queries, report generation, and root-cause analysis over the metrics
// warehouse.
package builtin

import (
	"context"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/state"
)

// MetricsStore is the warehouse surface the builtin capabilities read.
// *state.DB satisfies it.
type MetricsStore interface {
	QueryMetrics(ctx context.Context, q state.MetricsQuery) ([]state.MetricPoint, error)
}

// Completer produces free-text completions. Optional: capabilities that
// accept one degrade to template output without it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RegisterAll registers every builtin capability. completer may be nil.
func RegisterAll(r *capability.Registry, store MetricsStore, completer Completer) {
	r.MustRegister(NewQueryMetrics(store))
	r.MustRegister(NewGenerateReport(store))
	r.MustRegister(NewAnalyzeRootCause(completer))
}
