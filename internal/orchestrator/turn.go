package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/internal/state"
	"github.com/parleyhq/parley/pkg/models"
)

// DefaultConfidenceThreshold is the minimum resolver confidence required
// to act on a resolved intent. Below it, the turn falls back to chat.
const DefaultConfidenceThreshold = 0.5

// IntentResolver resolves a user message to an intent and parameter set.
type IntentResolver interface {
	Resolve(ctx context.Context, turnText string, history []string) models.IntentResolution
}

// ReplyCompleter produces free-text completions for chat turns and is
// optional; without one, chat turns get a fixed reply.
type ReplyCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the dependencies of a TurnRunner. Registry, Catalog,
// Resolver and Store are required.
type Config struct {
	Registry *capability.Registry
	Catalog  *intent.Catalog
	Resolver IntentResolver
	Store    state.SessionStore

	// Concurrency bounds simultaneous invocations per batch; zero means
	// DefaultConcurrency.
	Concurrency int
	// TaskTimeout is the per-invocation deadline; zero means
	// DefaultTaskTimeout.
	TaskTimeout time.Duration
	// ConfidenceThreshold gates acting on a resolution; zero means
	// DefaultConfidenceThreshold.
	ConfidenceThreshold float64
	// Completer, when set, writes chat replies. Optional.
	Completer ReplyCompleter
	// Logger receives structured turn logs. Defaults to slog.Default().
	Logger *slog.Logger
	// HistoryDepth is how many prior user messages the resolver sees.
	// Zero means 5.
	HistoryDepth int
}

// TurnRunner drives one user message through the full pipeline: intent
// resolution, capability selection, batched execution, reply assembly,
// and session persistence.
type TurnRunner struct {
	registry  *capability.Registry
	catalog   *intent.Catalog
	resolver  IntentResolver
	store     state.SessionStore
	scheduler *Scheduler
	threshold float64
	completer ReplyCompleter
	logger    *slog.Logger
	history   int
}

// NewTurnRunner validates the config and builds a runner. Missing
// required dependencies are a *ConfigurationError.
func NewTurnRunner(cfg Config) (*TurnRunner, error) {
	switch {
	case cfg.Registry == nil:
		return nil, &ConfigurationError{Reason: "capability registry is required"}
	case cfg.Catalog == nil:
		return nil, &ConfigurationError{Reason: "intent catalog is required"}
	case cfg.Resolver == nil:
		return nil, &ConfigurationError{Reason: "intent resolver is required"}
	case cfg.Store == nil:
		return nil, &ConfigurationError{Reason: "session store is required"}
	}

	threshold := cfg.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	history := cfg.HistoryDepth
	if history <= 0 {
		history = 5
	}

	return &TurnRunner{
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		resolver:  cfg.Resolver,
		store:     cfg.Store,
		scheduler: NewScheduler(cfg.Concurrency, cfg.TaskTimeout),
		threshold: threshold,
		completer: cfg.Completer,
		logger:    logger,
		history:   history,
	}, nil
}

// TurnResult is what a completed turn hands back to the transport layer.
type TurnResult struct {
	SessionID        string                     `json:"session_id"`
	TurnID           string                     `json:"turn_id"`
	Reply            string                     `json:"reply"`
	Intent           string                     `json:"intent"`
	Confidence       float64                    `json:"confidence"`
	Tier             models.ResolutionTier      `json:"tier"`
	CapabilitiesUsed []string                   `json:"capabilities_used,omitempty"`
	Outcomes         []models.CapabilityOutcome `json:"outcomes,omitempty"`
	Elapsed          time.Duration              `json:"elapsed"`
}

// HandleTurn runs one user message end to end. A missing sessionID
// creates a new session. The returned error is non-nil only for
// configuration problems; per-capability failures are reported inside
// the result, and the turn still completes.
func (r *TurnRunner) HandleTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	start := time.Now()

	session, err := r.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turn := models.Turn{
		ID:        uuid.NewString(),
		UserText:  userText,
		Timestamp: start.UTC(),
		State:     models.TurnResolvingIntent,
	}
	log := r.logger.With("session_id", session.ID, "turn_id", turn.ID)

	turn.Resolution = r.resolver.Resolve(ctx, userText, session.RecentUserTexts(r.history))
	log.Info("intent resolved",
		"intent", turn.Resolution.Intent,
		"confidence", turn.Resolution.Confidence,
		"tier", turn.Resolution.Tier)

	r.advance(&turn, models.TurnSelectingCapabilities)
	def := r.selectDefinition(turn.Resolution)

	if len(def.Capabilities) == 0 {
		r.advance(&turn, models.TurnAssemblingReply)
		turn.Reply = r.chatReply(ctx, session, userText)
		r.advance(&turn, models.TurnDone)
		return r.finish(ctx, session, &turn, nil, start, log)
	}

	selected := make([]capability.Capability, 0, len(def.Capabilities))
	for _, name := range def.Capabilities {
		c := r.registry.Get(name)
		if c == nil {
			return r.fail(ctx, session, &turn, start, log, &ConfigurationError{
				Reason: fmt.Sprintf("intent %q maps to unregistered capability %q", def.Name, name),
			})
		}
		selected = append(selected, c)
	}

	batches, err := BuildBatches(selected)
	if err != nil {
		return r.fail(ctx, session, &turn, start, log, err)
	}

	r.advance(&turn, models.TurnScheduling)
	inv := &capability.Invocation{
		SessionID: session.ID,
		TurnID:    turn.ID,
		State:     snapshotState(session.State),
		Results:   make(map[string]*models.InvocationResult),
	}
	params := make(map[string]map[string]any, len(selected))
	for _, c := range selected {
		params[c.Name()] = turn.Resolution.Params
	}
	turn.Outcomes = r.scheduler.RunBatches(ctx, selected, batches, params, inv)

	r.advance(&turn, models.TurnAssemblingReply)
	turn.Reply = assembleReply(turn.Outcomes)

	for _, o := range turn.Outcomes {
		if o.Status == models.OutcomeSuccess && o.Result != nil {
			session.MergeState(o.Result.StateUpdates)
		}
	}

	r.advance(&turn, models.TurnDone)
	return r.finish(ctx, session, &turn, def.Capabilities, start, log)
}

// loadOrCreate resolves the session for the turn, creating one for an
// empty or unknown ID.
func (r *TurnRunner) loadOrCreate(ctx context.Context, sessionID string) (*state.Session, error) {
	if sessionID == "" {
		return state.NewSession(uuid.NewString()), nil
	}
	session, err := r.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if session == nil {
		session = state.NewSession(sessionID)
	}
	return session, nil
}

// selectDefinition maps a resolution to its intent definition, falling
// back to chat for low confidence or an unknown intent name.
func (r *TurnRunner) selectDefinition(res models.IntentResolution) *intent.Definition {
	if res.Confidence < r.threshold {
		debugLog("[turn] confidence %.2f below threshold %.2f, falling back to chat", res.Confidence, r.threshold)
		return r.catalog.Fallback()
	}
	if def := r.catalog.Get(res.Intent); def != nil {
		return def
	}
	debugLog("[turn] resolved intent %q not in catalog, falling back to chat", res.Intent)
	return r.catalog.Fallback()
}

// advance moves the turn to the next pipeline state.
func (r *TurnRunner) advance(turn *models.Turn, next models.TurnState) {
	debugLog("[turn] %s: %s -> %s", turn.ID, turn.State, next)
	turn.State = next
}

// finish records the turn on the session, persists it, and builds the
// transport result.
func (r *TurnRunner) finish(ctx context.Context, session *state.Session, turn *models.Turn, used []string, start time.Time, log *slog.Logger) (*TurnResult, error) {
	session.AppendMessage("user", turn.UserText)
	session.AppendMessage("assistant", turn.Reply)
	session.Turns = append(session.Turns, *turn)

	if err := r.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session %s: %w", session.ID, err)
	}

	elapsed := time.Since(start)
	log.Info("turn complete", "state", turn.State, "capabilities", len(used), "elapsed", elapsed)

	return &TurnResult{
		SessionID:        session.ID,
		TurnID:           turn.ID,
		Reply:            turn.Reply,
		Intent:           turn.Resolution.Intent,
		Confidence:       turn.Resolution.Confidence,
		Tier:             turn.Resolution.Tier,
		CapabilitiesUsed: used,
		Outcomes:         turn.Outcomes,
		Elapsed:          elapsed,
	}, nil
}

// fail terminates the turn on a configuration error. The turn is still
// recorded and the session saved, then the error is returned.
func (r *TurnRunner) fail(ctx context.Context, session *state.Session, turn *models.Turn, start time.Time, log *slog.Logger, cause error) (*TurnResult, error) {
	turn.State = models.TurnFailed
	turn.Reply = "Something is misconfigured on my end, so I couldn't act on that. Please try again later."
	log.Error("turn failed", "error", cause)

	res, err := r.finish(ctx, session, turn, nil, start, log)
	if err != nil {
		return nil, err
	}
	return res, cause
}

// chatReply writes the free-text reply for turns with no capabilities.
func (r *TurnRunner) chatReply(ctx context.Context, session *state.Session, userText string) string {
	const fallbackReply = "I can query metrics, generate reports, and analyze changes in your data. What would you like to look at?"

	if r.completer == nil {
		return fallbackReply
	}

	var b strings.Builder
	b.WriteString("You are a concise analytics assistant. Continue the conversation naturally.\n\n")
	for _, m := range session.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", userText)

	reply, err := r.completer.Complete(ctx, b.String())
	if err != nil || strings.TrimSpace(reply) == "" {
		debugLog("[turn] chat completion failed: %v", err)
		return fallbackReply
	}
	return strings.TrimSpace(reply)
}

// assembleReply composes the reply text from the capability outcomes, in
// selection order.
func assembleReply(outcomes []models.CapabilityOutcome) string {
	var parts []string
	for _, o := range outcomes {
		switch o.Status {
		case models.OutcomeSuccess:
			if o.Result != nil && o.Result.Summary != "" {
				parts = append(parts, o.Result.Summary)
			}
		case models.OutcomeFailed:
			parts = append(parts, fmt.Sprintf("%s failed: %s.", displayName(o.Capability), o.Error))
		case models.OutcomeTimedOut:
			parts = append(parts, fmt.Sprintf("%s %s.", displayName(o.Capability), o.Error))
		case models.OutcomeSkipped:
			parts = append(parts, fmt.Sprintf("%s was skipped: %s.", displayName(o.Capability), o.Error))
		}
	}
	if len(parts) == 0 {
		return "Nothing to report for that request."
	}
	return strings.Join(parts, " ")
}

// displayName turns a registry name into reply-friendly text.
func displayName(capability string) string {
	name := strings.ReplaceAll(capability, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// snapshotState copies the session state so concurrent invocations read a
// stable view.
func snapshotState(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
