// Package mcptools provides an MCP (Model Context Protocol) client bridge
// that discovers tools from external MCP servers, such as an editor host's
// tool surface, and adapts them for local invocation. Tools reserved for
// host plumbing are filtered out of user-facing listings.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openllm-dev/openllm/internal/rpc"
)

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"`
	Command   string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	URL       string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Result is the outcome of invoking a discovered tool.
type Result struct {
	Output  string
	Success bool
}

// Tool wraps a tool discovered from an MCP server.
type Tool struct {
	namespacedName string // "mcp__<server>__<tool>" — unique across all servers.
	description    string
	inputSchema    map[string]any
	client         mcpclient.MCPClient
	originalName   string
	serverName     string
	logger         *slog.Logger
}

func (t *Tool) Name() string                { return t.namespacedName }
func (t *Tool) Description() string         { return t.description }
func (t *Tool) InputSchema() map[string]any { return t.inputSchema }
func (t *Tool) Server() string              { return t.serverName }

// Internal reports whether the tool is host plumbing rather than a
// user-facing tool.
func (t *Tool) Internal() bool { return rpc.IsInternalTool(t.originalName) }

// Validate checks that all schema-required parameters are present.
func (t *Tool) Validate(params map[string]any) error {
	required, _ := t.inputSchema["required"].([]any)
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if _, exists := params[key]; !exists {
			return fmt.Errorf("missing required parameter: %s", key)
		}
	}
	return nil
}

// Execute invokes the tool on its MCP server.
func (t *Tool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	t.logger.InfoContext(ctx, "mcp tool executing",
		slog.String("server", t.serverName),
		slog.String("tool", t.originalName),
	)

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = t.originalName
	callReq.Params.Arguments = params

	callResult, err := t.client.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("MCP call to %s/%s failed: %w", t.serverName, t.originalName, err)
	}

	return &Result{
		Output:  formatContent(callResult.Content),
		Success: !callResult.IsError,
	}, nil
}

// formatContent converts MCP content items to a single string.
func formatContent(content []mcp.Content) string {
	var sb strings.Builder
	for i, c := range content {
		if i > 0 {
			sb.WriteString("\n")
		}
		if tc, ok := mcp.AsTextContent(c); ok {
			sb.WriteString(tc.Text)
		} else {
			// Non-text content (image, audio, resource) serializes as JSON.
			data, _ := json.Marshal(c)
			sb.WriteString(string(data))
		}
	}
	return sb.String()
}

// Bridge manages the lifecycle of MCP client connections and produces Tool
// adapters.
type Bridge struct {
	clients []mcpclient.MCPClient
	logger  *slog.Logger
}

// NewBridge creates a bridge that will manage MCP server connections.
func NewBridge(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{logger: logger}
}

// ConnectAndDiscover connects to one MCP server, performs the initialization
// handshake, discovers tools, and returns adapters ready for use.
func (b *Bridge) ConnectAndDiscover(ctx context.Context, cfg ServerConfig) ([]*Tool, error) {
	c, err := b.createClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating MCP client for %q: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "openllm",
		Version: "0.1.0",
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("MCP initialize for %q: %w", cfg.Name, err)
	}

	b.clients = append(b.clients, c)

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("MCP list tools for %q: %w", cfg.Name, err)
	}

	discovered := make([]*Tool, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		discovered = append(discovered, &Tool{
			namespacedName: fmt.Sprintf("mcp__%s__%s", cfg.Name, t.Name),
			description:    fmt.Sprintf("[MCP:%s] %s", cfg.Name, t.Description),
			inputSchema:    convertInputSchema(t.InputSchema),
			client:         c,
			originalName:   t.Name,
			serverName:     cfg.Name,
			logger:         b.logger,
		})
	}

	b.logger.Info("MCP server connected",
		slog.String("server", cfg.Name),
		slog.String("transport", cfg.Transport),
		slog.Int("tools_discovered", len(discovered)),
	)

	return discovered, nil
}

// UserTools filters a discovered tool list down to user-facing tools.
func UserTools(tools []*Tool) []*Tool {
	out := make([]*Tool, 0, len(tools))
	for _, t := range tools {
		if !t.Internal() {
			out = append(out, t)
		}
	}
	return out
}

// Close shuts down all MCP client connections.
func (b *Bridge) Close() {
	for _, c := range b.clients {
		if err := c.Close(); err != nil {
			b.logger.Error("closing MCP client", slog.String("error", err.Error()))
		}
	}
}

// createClient creates the appropriate MCP client based on transport type.
func (b *Bridge) createClient(cfg ServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio":
		env := expandEnvList(cfg.Env)
		return mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)

	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(expandEnvMap(cfg.Headers)))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)

	case "streamable_http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(expandEnvMap(cfg.Headers)))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

// convertInputSchema converts the MCP ToolInputSchema to a plain map.
func convertInputSchema(schema mcp.ToolInputSchema) map[string]any {
	result := map[string]any{
		"type": schema.Type,
	}
	if schema.Properties != nil {
		result["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		reqAny := make([]any, len(schema.Required))
		for i, r := range schema.Required {
			reqAny[i] = r
		}
		result["required"] = reqAny
	}
	return result
}

// expandEnvList converts a key→value map to "KEY=expanded_value" pairs.
func expandEnvList(m map[string]string) []string {
	env := make([]string, 0, len(m))
	for k, v := range m {
		env = append(env, k+"="+os.ExpandEnv(v))
	}
	return env
}

// expandEnvMap returns a new map with values expanded via os.ExpandEnv.
func expandEnvMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = os.ExpandEnv(v)
	}
	return out
}
