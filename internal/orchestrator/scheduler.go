package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/pkg/models"
)

const (
	// DefaultConcurrency is the bound on simultaneous invocations within a batch.
	DefaultConcurrency = 5
	// DefaultTaskTimeout is the per-invocation deadline.
	DefaultTaskTimeout = 30 * time.Second
)

// Scheduler runs dependency batches of capabilities. Capabilities within a
// batch run concurrently up to the configured limit; batches run strictly
// in sequence. One invocation failing, timing out, or panicking never
// affects its batch peers, only its declared dependents.
type Scheduler struct {
	// limit is the maximum number of concurrent invocations.
	limit int
	// taskTimeout is the deadline applied to each invocation's context.
	taskTimeout time.Duration
}

// NewScheduler creates a scheduler. Non-positive limit or timeout values
// fall back to the defaults.
func NewScheduler(limit int, taskTimeout time.Duration) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Scheduler{limit: limit, taskTimeout: taskTimeout}
}

// RunBatches executes the batches in order and returns one outcome per
// unique selected capability, in the order of selected. Batches regroup
// capabilities by dependency level, so slot positions come from selected,
// never from batch layout. params maps capability name to the
// already-resolved parameters for its invocation; a missing entry means
// no parameters. inv is the shared invocation context; the scheduler
// writes inv.Results only between batches.
//
// RunBatches never returns an error: every per-capability problem is
// recorded in that capability's outcome. Cancelling ctx aborts in-flight
// invocations through their derived contexts.
func (s *Scheduler) RunBatches(
	ctx context.Context,
	selected []capability.Capability,
	batches [][]capability.Capability,
	params map[string]map[string]any,
	inv *capability.Invocation,
) []models.CapabilityOutcome {
	// Pre-size the outcome slots so concurrent writers never share a slot
	// and the final order is selection order regardless of finish order.
	// Repeated selections collapse onto their first slot, matching the
	// dedup the graph applies.
	slots := make(map[string]int)
	var total int
	for _, c := range selected {
		if _, dup := slots[c.Name()]; dup {
			continue
		}
		slots[c.Name()] = total
		total++
	}
	outcomes := make([]models.CapabilityOutcome, total)

	if inv == nil {
		inv = &capability.Invocation{}
	}
	if inv.Results == nil {
		inv.Results = make(map[string]*models.InvocationResult)
	}

	for i, batch := range batches {
		debugLog("[scheduler] batch %d: %d capabilities, limit %d", i, len(batch), s.limit)

		var runnable []capability.Capability
		for _, c := range batch {
			if reason := s.unmetDependency(c, slots, outcomes); reason != "" {
				slot := slots[c.Name()]
				outcomes[slot] = models.CapabilityOutcome{
					Capability: c.Name(),
					Status:     models.OutcomeSkipped,
					Error:      reason,
				}
				debugLog("[scheduler] skipping %s: %s", c.Name(), reason)
				continue
			}
			runnable = append(runnable, c)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.limit)
		for _, c := range runnable {
			slot := slots[c.Name()]
			g.Go(func() error {
				outcomes[slot] = s.invoke(gctx, c, params[c.Name()], inv)
				return nil
			})
		}
		// Workers never return errors; Wait only joins them.
		g.Wait()

		// Publish this batch's successes before the next batch starts.
		for _, c := range runnable {
			o := outcomes[slots[c.Name()]]
			if o.Status == models.OutcomeSuccess {
				inv.Results[o.Capability] = o.Result
			}
		}
	}

	return outcomes
}

// unmetDependency returns a skip reason if any declared dependency of c
// that was selected for this turn did not succeed. Dependencies outside
// the selection impose nothing.
func (s *Scheduler) unmetDependency(c capability.Capability, slots map[string]int, outcomes []models.CapabilityOutcome) string {
	for _, dep := range c.DependsOn() {
		slot, selected := slots[dep]
		if !selected {
			continue
		}
		if o := outcomes[slot]; o.Status != models.OutcomeSuccess {
			return fmt.Sprintf("dependency %q did not succeed (status %s)", dep, o.Status)
		}
	}
	return ""
}

// invoke runs one capability under the per-task timeout, normalizing its
// parameters first. A panic inside the capability becomes a failed outcome.
func (s *Scheduler) invoke(ctx context.Context, c capability.Capability, rawParams map[string]any, inv *capability.Invocation) (outcome models.CapabilityOutcome) {
	outcome.Capability = c.Name()

	start := time.Now()
	defer func() {
		outcome.Duration = time.Since(start)
		if r := recover(); r != nil {
			outcome.Status = models.OutcomeFailed
			outcome.Error = fmt.Sprintf("panic: %v", r)
			outcome.Result = nil
			debugLog("[scheduler] %s panicked: %v", c.Name(), r)
		}
	}()

	if rawParams == nil {
		rawParams = map[string]any{}
	}
	params, err := c.InputSchema().Normalize(rawParams)
	if err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Error = fmt.Sprintf("invalid parameters: %v", err)
		return outcome
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	result, err := c.Invoke(taskCtx, params, inv)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			outcome.Status = models.OutcomeTimedOut
			outcome.Error = fmt.Sprintf("timed out after %s", s.taskTimeout)
		} else {
			outcome.Status = models.OutcomeFailed
			outcome.Error = err.Error()
		}
		return outcome
	}

	if result == nil {
		result = &models.InvocationResult{}
	}
	outcome.Status = models.OutcomeSuccess
	outcome.Result = result
	return outcome
}
