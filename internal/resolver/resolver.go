// Package resolver converts one user turn into an intent, a confidence
// score, and a validated parameter set. Three strategies are tried in
// order: schema-constrained function calling, a guided few-shot prompt,
// and deterministic keyword rules. Resolve never returns an error; the
// worst case is the plain-conversation fallback with confidence 0.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/pkg/models"
)

// CompletionService is the slice of the completion client the first two
// tiers need. A nil service disables both and resolution is rule-only.
type CompletionService interface {
	Structured(ctx context.Context, system, user string, tools []llm.Tool) (*llm.StructuredResult, error)
	Complete(ctx context.Context, prompt string) (string, error)
}

var _ CompletionService = (*llm.Client)(nil)

// Confidence levels per tier, mirroring how much each strategy is trusted.
const (
	confidenceStructured     = 0.95
	confidenceStructuredChat = 0.9
	confidenceGuided         = 0.85
	confidenceGuidedChat     = 0.8
	confidenceRule           = 0.6
)

// Resolver implements the tiered fallback chain over an intent catalog.
type Resolver struct {
	catalog *intent.Catalog
	svc     CompletionService

	// escalateValidation controls whether a structured extraction that
	// fails schema validation escalates to the guided-prompt tier. When
	// false, validation failures fall straight through to the rule tier;
	// only outright call failures reach tier 2.
	escalateValidation bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEscalateValidationFailures controls tier-2 escalation for tier-1
// results that failed schema validation. Default true.
func WithEscalateValidationFailures(escalate bool) Option {
	return func(r *Resolver) {
		r.escalateValidation = escalate
	}
}

// New creates a Resolver. svc may be nil, in which case only the rule tier
// runs (the original deployment behaves this way without an API key).
func New(catalog *intent.Catalog, svc CompletionService, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:            catalog,
		svc:                svc,
		escalateValidation: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the fallback chain for one user turn. history carries the
// most recent session messages for conversational context; it may be empty.
func (r *Resolver) Resolve(ctx context.Context, turnText string, history []string) models.IntentResolution {
	if r.svc != nil {
		res, err := r.structured(ctx, turnText, history)
		if err == nil {
			return *res
		}

		var verr *schema.ValidationError
		failedValidation := errors.As(err, &verr)
		if !failedValidation || r.escalateValidation {
			if res, err := r.guided(ctx, turnText, history); err == nil {
				return *res
			}
		}
	}

	return r.rule(turnText)
}

// fallback is the terminal resolution: plain conversation, confidence 0.
func (r *Resolver) fallback(tier models.ResolutionTier) models.IntentResolution {
	return models.IntentResolution{
		Intent:     intent.FallbackIntent,
		Confidence: 0,
		Params:     map[string]any{},
		Tier:       tier,
	}
}

// structured is tier 1: one function-calling request offering a tool per
// non-fallback intent. No tool call means plain conversation.
func (r *Resolver) structured(ctx context.Context, turnText string, history []string) (*models.IntentResolution, error) {
	var tools []llm.Tool
	for _, def := range r.catalog.List() {
		if def.Name == intent.FallbackIntent {
			continue
		}
		tools = append(tools, llm.Tool{
			Name:        def.Name,
			Description: def.Description,
			Properties:  def.Params.ToolProperties(),
			Required:    def.Params.Required(),
		})
	}

	result, err := r.svc.Structured(ctx, structuredSystemPrompt, withHistory(turnText, history), tools)
	if err != nil {
		return nil, err
	}

	if result.ToolName == "" {
		return &models.IntentResolution{
			Intent:     intent.FallbackIntent,
			Confidence: confidenceStructuredChat,
			Params:     map[string]any{},
			Tier:       models.TierStructured,
		}, nil
	}

	def := r.catalog.Get(result.ToolName)
	if def == nil {
		return nil, fmt.Errorf("model invoked unknown tool %q", result.ToolName)
	}

	params, err := def.Params.Normalize(result.Arguments)
	if err != nil {
		return nil, err
	}

	return &models.IntentResolution{
		Intent:     def.Name,
		Confidence: confidenceStructured,
		Params:     params,
		Tier:       models.TierStructured,
	}, nil
}

// guided is tier 2: a few-shot intent classification call followed by a
// few-shot parameter extraction call, both parsed from free text.
func (r *Resolver) guided(ctx context.Context, turnText string, history []string) (*models.IntentResolution, error) {
	name, err := r.classifyIntent(ctx, turnText, history)
	if err != nil {
		return nil, err
	}

	if name == intent.FallbackIntent {
		return &models.IntentResolution{
			Intent:     intent.FallbackIntent,
			Confidence: confidenceGuidedChat,
			Params:     map[string]any{},
			Tier:       models.TierGuidedPrompt,
		}, nil
	}

	def := r.catalog.Get(name)
	raw, err := r.extractParams(ctx, turnText, def)
	if err != nil {
		return nil, err
	}

	params, err := def.Params.Normalize(raw)
	if err != nil {
		return nil, err
	}

	return &models.IntentResolution{
		Intent:     def.Name,
		Confidence: confidenceGuided,
		Params:     params,
		Tier:       models.TierGuidedPrompt,
	}, nil
}

func (r *Resolver) classifyIntent(ctx context.Context, turnText string, history []string) (string, error) {
	var b strings.Builder
	b.WriteString("You are an intent classifier. Pick the single best intent for the user message.\n\nIntents:\n")
	for _, def := range r.catalog.List() {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}

	b.WriteString("\nExamples:\n")
	for _, def := range r.catalog.List() {
		if len(def.Examples) > 0 {
			fmt.Fprintf(&b, "User message: %s\nIntent: %s\n", def.Examples[0].UserText, def.Name)
		}
	}
	fmt.Fprintf(&b, "User message: hello there\nIntent: %s\n", intent.FallbackIntent)

	if len(history) > 0 {
		fmt.Fprintf(&b, "\nRecent conversation:\n%s\n", strings.Join(history, "\n"))
	}

	fmt.Fprintf(&b, "\nCurrent user message: %s\nReply with only the intent name.", turnText)

	resp, err := r.svc.Complete(ctx, b.String())
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(strings.ToLower(resp))
	if r.catalog.Get(name) == nil {
		return "", fmt.Errorf("model returned unknown intent %q", name)
	}
	return name, nil
}

func (r *Resolver) extractParams(ctx context.Context, turnText string, def *intent.Definition) (map[string]any, error) {
	schemaJSON, err := json.Marshal(map[string]any{
		"properties": def.Params.ToolProperties(),
		"required":   def.Params.Required(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal param schema: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a parameter extractor. Extract the parameters for %s from the user message.\n\nParameter schema:\n%s\n\nExamples:\n", def.Name, schemaJSON)

	examples := def.Examples
	if len(examples) > 5 {
		examples = examples[:5]
	}
	for _, ex := range examples {
		exJSON, err := json.Marshal(ex.Params)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "User message: %s\nExtraction: %s\n", ex.UserText, exJSON)
	}

	fmt.Fprintf(&b, "\nCurrent user message: %s\nExtraction (JSON only, no explanation):", turnText)

	resp, err := r.svc.Complete(ctx, b.String())
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := llm.ExtractJSON(resp, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func withHistory(turnText string, history []string) string {
	if len(history) == 0 {
		return turnText
	}
	return fmt.Sprintf("Recent conversation:\n%s\n\nCurrent message: %s", strings.Join(history, "\n"), turnText)
}

const structuredSystemPrompt = `You are the intent and parameter extraction step of a data analysis assistant.

Your job:
1. Understand the user's natural-language request.
2. Pick the tool matching what they want done.
3. Extract the parameters that tool needs.

If the request needs no tool (greetings, thanks, small talk), do not call any tool and reply directly.

Follow each tool's parameter definitions strictly. Use sensible defaults when a parameter is unclear or missing.`
