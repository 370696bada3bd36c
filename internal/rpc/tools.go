package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// InternalToolPrefix marks tools reserved for the host's own plumbing.
// They are hidden from user-facing tool listings.
const InternalToolPrefix = "openllm_"

// Tool describes a callable tool advertised by the remote host.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	Internal    bool            `json:"_internal,omitempty"`
}

// ToolContent is one content block of a tool result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text concatenates all text content blocks.
func (r ToolResult) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// DecodeJSON parses the concatenated text content as JSON into v.
func (r ToolResult) DecodeJSON(v any) error {
	return json.Unmarshal([]byte(r.Text()), v)
}

// IsInternalTool reports whether the tool name is reserved for host plumbing.
func IsInternalTool(name string) bool {
	return strings.HasPrefix(name, InternalToolPrefix)
}

type toolListResult struct {
	Tools []Tool `json:"tools"`
}

// ListTools returns every tool the host advertises, internal ones included.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var res toolListResult
	if err := c.Call(ctx, "tools/list", struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return res.Tools, nil
}

// ListUserTools returns the host's tools with internal ones filtered out.
func (c *Client) ListUserTools(ctx context.Context) ([]Tool, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := tools[:0]
	for _, t := range tools {
		if !t.Internal && !IsInternalTool(t.Name) {
			out = append(out, t)
		}
	}
	return out, nil
}

// CallTool invokes a named tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	var res ToolResult
	params := struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}{Name: name, Arguments: args}
	if err := c.Call(ctx, "tools/call", params, &res); err != nil {
		return ToolResult{}, fmt.Errorf("calling tool %s: %w", name, err)
	}
	return res, nil
}
