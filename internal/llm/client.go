// Package llm wraps the Anthropic text-completion service behind the two
// narrow calls the resolver needs: schema-constrained structured extraction
// (function calling) and plain text completion.
package llm

import (
	"context"
	"errors"
	"os"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// ErrNoCredentials is returned when neither an API key nor Bedrock is configured.
var ErrNoCredentials = errors.New("llm: no API key configured and Bedrock disabled")

// ClientConfig selects the model and the transport credentials.
type ClientConfig struct {
	// Model overrides DefaultModel when set.
	Model anthropic.Model
	// APIKey authenticates against the Anthropic API directly. Falls back
	// to the ANTHROPIC_API_KEY environment variable when empty.
	APIKey string
	// UseAWSBedrock routes calls through AWS Bedrock instead; the API key
	// is ignored and AWS credentials are resolved the usual SDK way.
	UseAWSBedrock bool
	// AWSRegion and AWSProfile narrow the Bedrock credential resolution.
	AWSRegion  string
	AWSProfile string
}

// Client is a thin wrapper over the Anthropic SDK that pins a model and
// accumulates token usage across calls.
type Client struct {
	api   anthropic.Client
	model anthropic.Model
	usage *TokenTracker
}

// NewClient builds a client for either the direct API or Bedrock.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opt option.RequestOption
	switch {
	case cfg.UseAWSBedrock:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opt = bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...)
	default:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, ErrNoCredentials
		}
		opt = option.WithAPIKey(key)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if cfg.UseAWSBedrock {
		model = bedrockModelID(model)
	}

	return &Client{
		api:   anthropic.NewClient(opt),
		model: model,
		usage: NewTokenTracker(),
	}, nil
}

// bedrockModelID maps an Anthropic model name to the matching Bedrock
// cross-region inference profile. Unknown names pass through untouched,
// which covers IDs already in Bedrock form.
func bedrockModelID(model anthropic.Model) anthropic.Model {
	switch model {
	case anthropic.ModelClaudeSonnet4_20250514:
		return "us.anthropic.claude-sonnet-4-20250514-v1:0"
	case anthropic.ModelClaudeSonnet4_5_20250929:
		return "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	case anthropic.ModelClaudeHaiku4_5_20251001:
		return "us.anthropic.claude-haiku-4-5-20251001-v1:0"
	case anthropic.ModelClaude3_5Haiku20241022:
		return "us.anthropic.claude-3-5-haiku-20241022-v1:0"
	}
	return model
}

// Model returns the pinned model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the accumulated token usage for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.usage
}

// TokenTracker accumulates token usage across calls. Safe for concurrent use.
type TokenTracker struct {
	input  atomic.Int64
	output atomic.Int64
	calls  atomic.Int64
}

// NewTokenTracker returns an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records one call's token usage.
func (t *TokenTracker) Add(input, output int64) {
	t.input.Add(input)
	t.output.Add(output)
	t.calls.Add(1)
}

// Total returns the accumulated input and output token counts.
func (t *TokenTracker) Total() (input, output int64) {
	return t.input.Load(), t.output.Load()
}

// Calls returns the number of calls recorded.
func (t *TokenTracker) Calls() int {
	return int(t.calls.Load())
}
