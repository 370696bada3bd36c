package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// startMockHost listens on a unix socket in a temp dir and answers each
// framed request through handle. Every decoded request is also delivered
// on the returned channel.
func startMockHost(t *testing.T, handle func(req request) response) (string, <-chan request) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "host.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	reqs := make(chan request, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				body, err := readFrame(bufio.NewReader(conn))
				if err != nil {
					return
				}
				var req request
				if err := json.Unmarshal(body, &req); err != nil {
					return
				}
				reqs <- req
				resp := handle(req)
				resp.Jsonrpc = "2.0"
				resp.ID = req.ID
				out, err := json.Marshal(resp)
				if err != nil {
					return
				}
				_ = writeFrame(conn, out)
			}(conn)
		}
	}()

	return path, reqs
}

func recvRequest(t *testing.T, reqs <-chan request) request {
	t.Helper()
	select {
	case req := <-reqs:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no request received")
		return request{}
	}
}

func TestCallRoundTrip(t *testing.T) {
	path, reqs := startMockHost(t, func(req request) response {
		return response{Result: json.RawMessage(`{"value":"sk-123"}`)}
	})

	c := NewClient(path, "token-1")
	var res struct {
		Value string `json:"value"`
	}
	err := c.Call(context.Background(), "secrets/get", map[string]string{"key": "openai"}, &res)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Value != "sk-123" {
		t.Errorf("result value = %q, want sk-123", res.Value)
	}

	req := recvRequest(t, reqs)
	if req.Method != "secrets/get" {
		t.Errorf("method = %q", req.Method)
	}
	if req.Jsonrpc != "2.0" {
		t.Errorf("jsonrpc = %q", req.Jsonrpc)
	}

	var params map[string]string
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("params not an object: %v", err)
	}
	if params["key"] != "openai" {
		t.Errorf("params key = %q, want openai", params["key"])
	}
	if params["auth"] != "token-1" {
		t.Errorf("params auth = %q, want token-1", params["auth"])
	}
}

func TestCallAuthMergeNilParams(t *testing.T) {
	path, reqs := startMockHost(t, func(req request) response {
		return response{Result: json.RawMessage(`{}`)}
	})

	c := NewClient(path, "tok")
	if err := c.Call(context.Background(), "secrets/list", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	var params map[string]string
	if err := json.Unmarshal(recvRequest(t, reqs).Params, &params); err != nil {
		t.Fatalf("params: %v", err)
	}
	if len(params) != 1 || params["auth"] != "tok" {
		t.Errorf("params = %v, want only auth", params)
	}
}

func TestCallAuthMergeNonObjectParams(t *testing.T) {
	path, reqs := startMockHost(t, func(req request) response {
		return response{Result: json.RawMessage(`{}`)}
	})

	c := NewClient(path, "tok")
	if err := c.Call(context.Background(), "x/y", []string{"a", "b"}, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	var params struct {
		Auth string   `json:"auth"`
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(recvRequest(t, reqs).Params, &params); err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Auth != "tok" {
		t.Errorf("auth = %q", params.Auth)
	}
	if len(params.Data) != 2 || params.Data[0] != "a" {
		t.Errorf("data = %v", params.Data)
	}
}

func TestCallRPCError(t *testing.T) {
	path, _ := startMockHost(t, func(req request) response {
		return response{Error: &RPCError{Code: -32601, Message: "method not found"}}
	})

	c := NewClient(path, "tok")
	err := c.Call(context.Background(), "nope", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error type = %T, want *RPCError", err)
	}
	if rpcErr.Code != -32601 || rpcErr.Message != "method not found" {
		t.Errorf("got %+v", rpcErr)
	}
}

func TestCallMissingResult(t *testing.T) {
	path, _ := startMockHost(t, func(req request) response {
		return response{}
	})

	c := NewClient(path, "tok")
	err := c.Call(context.Background(), "x/y", nil, nil)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestCallConnectionRefused(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"), "tok")
	err := c.Call(context.Background(), "x/y", nil, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestPingNonexistentSocket(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"), "tok")

	start := time.Now()
	err := c.Ping(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
	// Fast-fail: no connect attempt, so well under the call timeout.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ping took %v, expected fast failure", elapsed)
	}
}

func TestPingNoAuthAndReady(t *testing.T) {
	path, reqs := startMockHost(t, func(req request) response {
		return response{Result: json.RawMessage(`{"ready":true}`)}
	})

	c := NewClient(path, "secret-token")
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	req := recvRequest(t, reqs)
	if req.Method != PingMethod {
		t.Errorf("method = %q, want %q", req.Method, PingMethod)
	}
	if bytes.Contains(req.Params, []byte("secret-token")) {
		t.Error("ping leaked the auth token")
	}
}

func TestPingNotReady(t *testing.T) {
	path, _ := startMockHost(t, func(req request) response {
		return response{Result: json.RawMessage(`{"ready":false}`)}
	})

	c := NewClient(path, "tok")
	if err := c.Ping(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestRequestIDsMonotonic(t *testing.T) {
	path, reqs := startMockHost(t, func(req request) response {
		return response{Result: json.RawMessage(`{}`)}
	})

	c := NewClient(path, "tok")
	for i := 0; i < 3; i++ {
		if err := c.Call(context.Background(), "x/y", nil, nil); err != nil {
			t.Fatalf("Call %d: %v", i, err)
		}
	}
	var ids []uint64
	for i := 0; i < 3; i++ {
		ids = append(ids, recvRequest(t, reqs).ID)
	}
	if !(ids[0] < ids[1] && ids[1] < ids[2]) {
		t.Errorf("ids not strictly increasing: %v", ids)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","id":7,"method":"lifecycle/ping","params":null}`)

	var buf bytes.Buffer
	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round-trip mismatch:\n got %s\nwant %s", got, payload)
	}
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"malformed header", "NotAHeader\r\n\r\n{}", ErrInvalidResponse},
		{"missing content length", "X-Other: 1\r\n\r\n{}", ErrInvalidResponse},
		{"bad length value", "Content-Length: abc\r\n\r\n{}", ErrInvalidResponse},
		{"truncated body", "Content-Length: 100\r\n\r\n{}", ErrInvalidResponse},
		{"premature eof", "Content-Length: 2", ErrConnectionFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readFrame(bufio.NewReader(bytes.NewReader([]byte(tc.input))))
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMergeAuthPreservesExistingFields(t *testing.T) {
	raw, err := mergeAuth(map[string]any{"key": "k", "n": 1}, "t")
	if err != nil {
		t.Fatalf("mergeAuth: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["key"] != "k" || got["auth"] != "t" || got["n"] != float64(1) {
		t.Errorf("merged = %v", got)
	}
}
