// Copyright 2025 Edwin Ortega
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
)

// Synthesized tool names bound to a server that exposes resources but no
// tools. They keep the catalog non-empty for resource-only servers.
const (
	ResourcesListTool = "resources_list"
	ResourceReadTool  = "resource_read"
)

// defaultTimeout bounds each request/response exchange when the caller's
// context carries no deadline.
const defaultTimeout = 30 * time.Second

// listToolsMethods are the discovery method names tried in order. Some
// servers only answer the dotted variant.
var listToolsMethods = []string{"tools/list", "tools.list"}

// listToolsParams are the parameter shapes crossed with each method name:
// omitted params, an empty object, and a pagination-style object.
var listToolsParams = []any{
	nil,
	map[string]any{},
	map[string]any{"cursor": ""},
}

// StdioConfig configures a subprocess-framed transport.
type StdioConfig struct {
	// ServerName identifies the server in logs and errors
	ServerName string

	// Command is the executable to run
	Command string

	// Args are the command-line arguments
	Args []string

	// Dir is the child's working directory (optional)
	Dir string

	// Env is an environment overlay in KEY=VALUE form, appended to the
	// host environment
	Env []string

	// Framing selects the wire framing (defaults to lsp)
	Framing jsonrpc.Framing

	// Strategy selects the handshake strategy (defaults to modern)
	Strategy HandshakeStrategy

	// ProtocolVersion is the version hint sent in initialize
	ProtocolVersion string

	// Timeout bounds each exchange when the context has no deadline
	Timeout time.Duration

	// StderrLines caps the stderr ring buffer (defaults to 200)
	StderrLines int

	// Logger is used for structured logging (optional)
	Logger *slog.Logger
}

// Stdio is a transport that owns a child process and speaks framed JSON-RPC
// over its stdin/stdout. A drain goroutine empties stderr into a bounded
// ring buffer for the process's entire lifetime.
type Stdio struct {
	cfg    StdioConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	conn   *framedConn
	drain  *stderrDrain
	logger *slog.Logger

	// resourceBacked marks that discovery fell back to resources/list and
	// tool calls must be mapped onto resource methods
	resourceBacked bool

	closeOnce sync.Once
	closeErr  error
}

// NewStdio spawns the child process and wires up framing and the stderr
// drain. The handshake is not performed here; call Initialize.
func NewStdio(cfg StdioConfig) (*Stdio, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Framing == "" {
		cfg.Framing = jsonrpc.FramingLSP
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	logger := cfg.Logger.With("server", cfg.ServerName)
	t := &Stdio{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		conn:   newFramedConn(stdin, stdout, cfg.Framing, logger),
		drain:  newStderrDrain(stderr, cfg.StderrLines),
		logger: logger,
	}

	logger.Debug("subprocess transport started",
		"command", cfg.Command,
		"pid", cmd.Process.Pid,
		"framing", cfg.Framing,
	)
	return t, nil
}

// newStdioOverPipes builds a transport over an existing reader/writer pair
// without a child process. Used by tests to script the server side.
func newStdioOverPipes(cfg StdioConfig, w io.Writer, r io.Reader) *Stdio {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Framing == "" {
		cfg.Framing = jsonrpc.FramingLSP
	}
	logger := cfg.Logger.With("server", cfg.ServerName)
	return &Stdio{
		cfg:    cfg,
		conn:   newFramedConn(w, r, cfg.Framing, logger),
		drain:  newStderrDrain(emptyReader{}, 1),
		logger: logger,
	}
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

// Initialize performs the handshake with the configured strategy.
func (t *Stdio) Initialize(ctx context.Context) error {
	if err := t.checkAlive("initialize"); err != nil {
		return err
	}

	neg := &negotiator{conn: t.conn, logger: t.logger}
	err := neg.Negotiate(t.cfg.Strategy, t.cfg.ProtocolVersion, t.timeout(ctx))
	if err == nil {
		return nil
	}

	// Handshake failure is terminal for this attempt; surface the last raw
	// response plus whatever the child wrote to stderr.
	var te *Error
	if e, ok := err.(*Error); ok {
		te = e
	} else {
		te = newError(KindHandshake, "initialize", err.Error()).withCause(err)
	}
	if tail := t.drain.Tail(20); tail != "" {
		if te.Diagnostic != "" {
			te.Diagnostic += "\n"
		}
		te.Diagnostic += tail
	}
	return te
}

// ListTools tries every discovery method/parameter combination and returns
// the first tools array a server answers with. When the whole cross product
// fails it falls back to resources/list and synthesizes two generic tools,
// so a resource-only server still contributes to the catalog.
func (t *Stdio) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	timeout := t.timeout(ctx)

	var lastErr error
	for _, method := range listToolsMethods {
		for _, params := range listToolsParams {
			if err := t.checkAlive(method); err != nil {
				return nil, err
			}

			resp, err := t.conn.call(method, params, timeout)
			if err != nil {
				lastErr = err
				continue
			}
			if resp.Error != nil {
				lastErr = newError(KindProtocol, method, resp.Error.Message).withCause(resp.Error)
				continue
			}

			tools, ok := parseToolsResult(resp.Result)
			if !ok {
				lastErr = newError(KindDecode, method, "result carries no tools array")
				continue
			}
			t.logger.Debug("tools discovered", "method", method, "count", len(tools))
			return tools, nil
		}
	}

	tools, err := t.resourcesFallback(timeout)
	if err == nil {
		return tools, nil
	}

	de := newError(KindDiscovery, "tools/list", "every discovery variant failed")
	de.Cause = lastErr
	de.Diagnostic = t.drain.Tail(20)
	return nil, de
}

// resourcesFallback probes resources/list and, when the server answers with
// a resources array, synthesizes the two generic resource tools.
func (t *Stdio) resourcesFallback(timeout time.Duration) ([]ToolDefinition, error) {
	resp, err := t.conn.call("resources/list", nil, timeout)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, newError(KindProtocol, "resources/list", resp.Error.Message).withCause(resp.Error)
	}

	var result struct {
		Resources []json.RawMessage `json:"resources"`
	}
	if resp.Result == nil || json.Unmarshal(resp.Result, &result) != nil || result.Resources == nil {
		return nil, newError(KindDecode, "resources/list", "result carries no resources array")
	}

	t.resourceBacked = true
	t.logger.Info("server exposes resources only, synthesizing generic tools",
		"resources", len(result.Resources),
	)
	return []ToolDefinition{
		{
			Name:        ResourcesListTool,
			Description: "List the resources exposed by this server",
			InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
		},
		{
			Name:        ResourceReadTool,
			Description: "Read one resource from this server by URI",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"uri":{"type":"string","description":"Resource URI to read"}},"required":["uri"]}`),
		},
	}, nil
}

// CallTool invokes one tool. Synthesized resource tools are mapped back onto
// the resource methods they stand in for.
func (t *Stdio) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if err := t.checkAlive("tools/call"); err != nil {
		return nil, err
	}

	method := "tools/call"
	var params any = map[string]any{
		"name":      name,
		"arguments": args,
	}
	if t.resourceBacked {
		switch name {
		case ResourcesListTool:
			method, params = "resources/list", nil
		case ResourceReadTool:
			method, params = "resources/read", map[string]any{"uri": args["uri"]}
		}
	}

	resp, err := t.conn.call(method, params, t.timeout(ctx))
	if err != nil {
		if te, ok := err.(*Error); ok && te.Diagnostic == "" {
			te.Diagnostic = t.drain.Tail(20)
		}
		return nil, err
	}
	if resp.Error != nil {
		return nil, newError(KindProtocol, method, resp.Error.Message).withCause(resp.Error)
	}

	var result any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, newError(KindDecode, method, "undecodable result").withCause(err)
	}
	return result, nil
}

// Stderr returns the last n captured stderr lines for diagnostics.
func (t *Stdio) Stderr(n int) string {
	return t.drain.Tail(n)
}

// Close shuts the child down: stdin is closed first so well-behaved servers
// exit on their own, then the process is killed after a short grace period.
func (t *Stdio) Close() error {
	t.closeOnce.Do(func() {
		t.conn.close()
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd == nil || t.cmd.Process == nil {
			return
		}

		done := make(chan error, 1)
		go func() { done <- t.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.logger.Warn("subprocess did not exit, killing", "pid", t.cmd.Process.Pid)
			_ = t.cmd.Process.Kill()
			<-done
		}
	})
	return t.closeErr
}

// checkAlive converts an already-dead child into a process-exited error with
// the stderr tail attached.
func (t *Stdio) checkAlive(op string) error {
	exited := t.conn.dec.Closed()
	if t.cmd != nil && t.cmd.ProcessState != nil {
		exited = true
	}
	if !exited {
		return nil
	}
	return newError(KindProcessExited, op, "server process has exited").
		withDiagnostic(t.drain.Tail(20))
}

// timeout derives the per-exchange deadline from the context, falling back
// to the configured default.
func (t *Stdio) timeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return t.cfg.Timeout
}

// parseToolsResult extracts a tools array from a discovery result. The key
// must be present and be an array; an empty array is a valid answer.
func parseToolsResult(result json.RawMessage) ([]ToolDefinition, bool) {
	if result == nil {
		return nil, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(result, &probe); err != nil {
		return nil, false
	}
	raw, ok := probe["tools"]
	if !ok {
		return nil, false
	}
	var tools []ToolDefinition
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, false
	}
	return tools, true
}
