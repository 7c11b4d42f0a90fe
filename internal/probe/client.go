package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const protocolVersion = "2024-11-05"

// client speaks JSON-RPC to a single MCP server over stdio or HTTP.
type client struct {
	name       string
	cfg        target
	httpClient *http.Client

	// Stdio fields (non-nil when command-based)
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	nextID int64
}

func newClient(name string, cfg target) *client {
	return &client{
		name: name,
		cfg:  cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// connect starts the server subprocess (stdio) and returns the initialize result.
func (c *client) connect(ctx context.Context) (json.RawMessage, error) {
	switch {
	case c.cfg.Command != "":
		if err := c.startStdio(ctx); err != nil {
			return nil, err
		}
	case c.cfg.URL != "":
	default:
		return nil, fmt.Errorf("server %q: no command or url configured", c.name)
	}

	res, err := c.initialize(ctx)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return res, nil
}

func (c *client) startStdio(ctx context.Context) error {
	c.cmd = exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	if len(c.cfg.Env) > 0 {
		c.cmd.Env = os.Environ()
		for k, v := range c.cfg.Env {
			c.cmd.Env = append(c.cmd.Env, k+"="+v)
		}
	}

	stdinPipe, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	c.stdin = stdinPipe
	c.stdout = bufio.NewReader(stdoutPipe)

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// close stops a stdio server. It is a no-op for HTTP servers.
func (c *client) close() {
	if c.cmd == nil || c.cmd.Process == nil {
		return
	}
	if c.stdin != nil {
		c.stdin.Close()
	}
	c.cmd.Process.Kill() //nolint:errcheck
	_ = c.cmd.Wait()
}

// listTools returns the tools exposed by the server.
func (c *client) listTools(ctx context.Context) ([]Tool, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list: %w", err)
	}
	return result.Tools, nil
}

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

func (c *client) initialize(ctx context.Context) (json.RawMessage, error) {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "mcpmanager", "version": "1.0"},
	}
	res, err := c.call(ctx, "initialize", params)
	if err != nil {
		return nil, err
	}
	if c.stdin != nil {
		// Send initialized notification (no response expected)
		notif := map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"}
		data, _ := json.Marshal(notif)
		_, _ = fmt.Fprintf(c.stdin, "%s\n", data)
	}
	return res, nil
}

func (c *client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.cfg.Command == "" {
		return c.callHTTP(ctx, method, params)
	}
	return c.callStdio(ctx, method, params)
}

func (c *client) request(method string, params any) (int64, []byte, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	return id, data, err
}

func (c *client) callStdio(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id, data, err := c.request(method, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintf(c.stdin, "%s\n", data); err != nil {
		return nil, fmt.Errorf("write to server stdin: %w", err)
	}

	// Read response lines until we get one with our id.
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read server stdout: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			continue // skip non-JSON lines (server log output)
		}
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		return resp.result()
	}
}

func (c *client) callHTTP(ctx context.Context, method string, params any) (json.RawMessage, error) {
	_, data, err := c.request(method, params)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rpcResp.result()
}

type rpcResponse struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r rpcResponse) result() (json.RawMessage, error) {
	if r.Error != nil {
		return nil, fmt.Errorf("MCP error %d: %s", r.Error.Code, r.Error.Message)
	}
	return r.Result, nil
}
