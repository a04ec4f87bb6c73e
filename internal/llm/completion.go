package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Tool describes one function-calling tool the structured call offers.
type Tool struct {
	// Name is the tool (intent) name.
	Name string
	// Description documents when the model should pick this tool.
	Description string
	// Properties is the JSON-schema property map for the tool input.
	Properties map[string]any
	// Required lists the mandatory property names.
	Required []string
}

// StructuredResult is the outcome of a structured-extraction call. When the
// model invoked no tool, ToolName is empty and Text carries the plain reply.
type StructuredResult struct {
	ToolName  string
	Arguments map[string]any
	Text      string
}

// Structured issues one function-calling request offering the given tools
// and returns the model's choice. A transport error or an unparseable tool
// payload is returned as an error; the caller treats it as a tier failure.
func (c *Client) Structured(ctx context.Context, system, user string, tools []Tool) (*StructuredResult, error) {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params = append(params, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Properties,
					Required:   t.Required,
				},
			},
		})
	}

	req := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Tools:     params,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.api.Messages.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("structured call failed: %w", err)
	}

	c.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	result := &StructuredResult{}
	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			if result.ToolName != "" {
				continue // first tool call wins
			}
			var args map[string]any
			if err := json.Unmarshal([]byte(variant.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("parse tool arguments: %w", err)
			}
			result.ToolName = variant.Name
			result.Arguments = args
		}
	}
	result.Text = text.String()

	return result, nil
}

// Complete executes a prompt and returns the text response. No tools are
// provided; this is for guided-prompt extraction and reply generation.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion call failed: %w", err)
	}

	c.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}

	return result.String(), nil
}

// ExtractJSON finds the first JSON object or array embedded in a model
// response and unmarshals it into target. Models often wrap JSON in prose
// or code fences, so the raw string is scanned for brace boundaries.
func ExtractJSON(response string, target any) error {
	jsonStart := strings.Index(response, "{")
	if jsonStart == -1 {
		jsonStart = strings.Index(response, "[")
	}
	jsonEnd := strings.LastIndex(response, "}")
	if jsonEnd == -1 {
		jsonEnd = strings.LastIndex(response, "]")
	}

	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return fmt.Errorf("no valid JSON found in response: %s", truncate(response, 200))
	}

	jsonStr := response[jsonStart : jsonEnd+1]
	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}

	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
