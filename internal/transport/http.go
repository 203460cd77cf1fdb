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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
)

// maxErrorBody caps how much of an HTTP error body is captured as
// diagnostic text.
const maxErrorBody = 2048

// HTTPConfig configures an HTTP transport.
type HTTPConfig struct {
	// ServerName identifies the server in logs and errors
	ServerName string

	// BaseURL is the JSON-RPC endpoint every request is POSTed to
	BaseURL string

	// Headers are extra headers sent on every request
	Headers map[string]string

	// BearerToken, when set, is sent as an Authorization header
	BearerToken string

	// ProtocolVersion is the version hint sent in initialize
	ProtocolVersion string

	// Timeout bounds each request when the context has no deadline
	Timeout time.Duration

	// Client overrides the pooled HTTP client (optional, used by tests)
	Client *http.Client

	// Logger is used for structured logging (optional)
	Logger *slog.Logger
}

// HTTP is a stateless per-request JSON-RPC transport over POST. There is no
// session state beyond the keep-alive connection pool; each of initialize,
// list tools, and call tool is one independent request with its own timeout.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
	rpc    *jsonrpc.Client
	logger *slog.Logger
}

// NewHTTP creates an HTTP transport with a pooled keep-alive client.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &HTTP{
		cfg:    cfg,
		client: client,
		rpc:    jsonrpc.NewClient(),
		logger: cfg.Logger.With("server", cfg.ServerName),
	}, nil
}

// Initialize sends one initialize request. HTTP servers keep no session, so
// no initialized notification follows.
func (t *HTTP) Initialize(ctx context.Context) error {
	version := t.cfg.ProtocolVersion
	if version == "" {
		version = DefaultProtocolVersion
	}

	_, err := t.post(ctx, "initialize", initializePayload(version, 2))
	if err != nil && version != FallbackProtocolVersion && isVersionRejection(err) {
		t.logger.Warn("protocol version rejected, retrying with fallback",
			"rejected", version,
			"fallback", FallbackProtocolVersion,
		)
		_, err = t.post(ctx, "initialize", initializePayload(FallbackProtocolVersion, 2))
	}
	if err != nil {
		return newError(KindHandshake, "initialize", err.Error()).
			withCause(err).
			withDiagnostic(DiagnosticOf(err))
	}
	return nil
}

// ListTools requests the tool list in one round trip.
func (t *HTTP) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := t.post(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	tools, ok := parseToolsResult(result)
	if !ok {
		return nil, newError(KindDecode, "tools/list", "result carries no tools array")
	}
	return tools, nil
}

// CallTool invokes one tool in one round trip. Retry-after-reinitialize on
// failure is the dispatcher's job, not the transport's.
func (t *HTTP) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	result, err := t.post(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(result, &decoded); err != nil {
		return nil, newError(KindDecode, "tools/call", "undecodable result").withCause(err)
	}
	return decoded, nil
}

// Close drops pooled connections.
func (t *HTTP) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// post performs one JSON-RPC exchange over HTTP POST.
func (t *HTTP) post(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(t.rpc.NewRequest(method, params))
	if err != nil {
		return nil, newError(KindDecode, method, "marshal request").withCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindProtocol, method, "build request").withCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	if t.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, newError(KindTimeout, method, "request timed out").withCause(err)
		}
		return nil, newError(KindProtocol, method, "request failed").withCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return nil, newError(KindDecode, method, "read response body").withCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindHTTPStatus, method, fmt.Sprintf("HTTP %d", resp.StatusCode)).
			withDiagnostic(truncate(string(data), maxErrorBody))
	}

	var rpcResp jsonrpc.Response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, newError(KindDecode, method, "undecodable response").
			withCause(err).
			withDiagnostic(truncate(string(data), maxErrorBody))
	}
	if rpcResp.Error != nil {
		return nil, newError(KindProtocol, method, rpcResp.Error.Message).withCause(rpcResp.Error)
	}
	return rpcResp.Result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
