// Package rpc implements the JSON-RPC 2.0 wire client used to talk to host
// applications over a local socket, plus the endpoint registry and typed
// wrappers for the secrets, config, and tool method families.
//
// Framing is LSP-style: an ASCII "Content-Length: <n>" header, a blank line,
// then exactly n bytes of UTF-8 JSON. Every call opens a fresh connection;
// this is a low-frequency control channel, not a throughput path.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openllm-dev/openllm/internal/observability"
)

// DefaultTimeout bounds a single call when the context carries no deadline.
const DefaultTimeout = 5 * time.Second

// PingMethod is the only method that does not require auth.
const PingMethod = "lifecycle/ping"

// requestID is process-wide so ids stay strictly monotonic across clients.
var requestID atomic.Uint64

func nextRequestID() uint64 { return requestID.Add(1) }

// Client issues JSON-RPC calls to one socket. Zero pooling: each Call dials,
// writes one request, reads one response, and closes.
type Client struct {
	socketPath string
	authToken  string
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *observability.MetricsCollector
}

// NewClient creates a client for the given socket path and auth token.
func NewClient(socketPath, authToken string) *Client {
	return &Client{
		socketPath: socketPath,
		authToken:  authToken,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
}

// NewClientForEndpoint creates a client from a registered endpoint.
func NewClientForEndpoint(e Endpoint) *Client {
	return NewClient(e.SocketPath, e.AuthToken)
}

// WithTimeout sets the per-call timeout used when the context has no deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// WithLogger sets the structured logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithMetrics attaches a metrics collector. Nil is fine.
func (c *Client) WithMetrics(m *observability.MetricsCollector) *Client {
	c.metrics = m
	return c
}

// SocketPath returns the socket path this client dials.
func (c *Client) SocketPath() string { return c.socketPath }

type request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Call performs one JSON-RPC round-trip. The endpoint's auth token is merged
// into params before sending. On success the response's result member is
// unmarshalled into result when result is non-nil.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	return c.call(ctx, method, params, result, true)
}

// Ping checks whether the host behind the socket is up and ready. It
// fast-fails when the socket path does not exist on disk, avoiding
// OS connect timeouts on a known-dead endpoint. No auth is sent.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := os.Stat(c.socketPath); err != nil {
		return fmt.Errorf("%w: socket %s does not exist", ErrConnectionFailed, c.socketPath)
	}
	var raw json.RawMessage
	if err := c.call(ctx, PingMethod, nil, &raw, false); err != nil {
		return err
	}
	// Hosts may answer with {"ready":bool} or any other success payload;
	// only an explicit ready=false counts as not ready.
	var res struct {
		Ready *bool `json:"ready"`
	}
	if err := json.Unmarshal(raw, &res); err == nil && res.Ready != nil && !*res.Ready {
		return fmt.Errorf("%w: host not ready", ErrConnectionFailed)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params, result any, withAuth bool) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordRPCRequest(method, status, time.Since(start))
		c.logger.Debug("rpc call", "method", method, "status", status, "duration", time.Since(start))
	}()

	var rawParams json.RawMessage
	if withAuth {
		rawParams, err = mergeAuth(params, c.authToken)
	} else {
		rawParams, err = marshalParams(params)
	}
	if err != nil {
		return fmt.Errorf("encoding params for %s: %w", method, err)
	}

	req := request{
		Jsonrpc: "2.0",
		ID:      nextRequestID(),
		Method:  method,
		Params:  rawParams,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", method, err)
	}

	conn, err := dialSocket(ctx, c.socketPath)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrConnectionFailed, c.socketPath, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return fmt.Errorf("%w: set deadline: %v", ErrConnectionFailed, err)
	}

	if err := writeFrame(conn, body); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrConnectionFailed, method, err)
	}

	respBody, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return err
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: decoding response for %s: %v", ErrInvalidResponse, method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.Result == nil || bytes.Equal(resp.Result, []byte("null")) {
		return fmt.Errorf("%w: response for %s has no result", ErrInvalidResponse, method)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%w: decoding result for %s: %v", ErrInvalidResponse, method, err)
		}
	}
	return nil
}

// writeFrame writes one Content-Length framed message.
func writeFrame(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

// readFrame reads header lines until a blank line, extracts Content-Length,
// and returns exactly that many body bytes.
func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrConnectionFailed, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("%w: malformed header %q", ErrInvalidResponse, line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad Content-Length %q", ErrInvalidResponse, value)
			}
			length = n
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrInvalidResponse)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: reading %d-byte body: %v", ErrInvalidResponse, length, err)
	}
	return body, nil
}

// mergeAuth folds the auth token into the params payload. A JSON object gets
// an "auth" member inserted; nil params become {"auth":token}; anything else
// is wrapped as {"auth":token,"data":params}.
func mergeAuth(params any, token string) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		tok, _ := json.Marshal(token)
		obj["auth"] = tok
		return json.Marshal(obj)
	}
	if bytes.Equal(raw, []byte("null")) {
		return json.Marshal(map[string]string{"auth": token})
	}
	return json.Marshal(map[string]json.RawMessage{
		"auth": mustMarshal(token),
		"data": raw,
	})
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(params)
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// dialer is shared by the platform dial implementations.
var dialer = &net.Dialer{}
