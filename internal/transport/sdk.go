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
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// SDK delegates to the mcp-go protocol client. When the SDK cannot complete
// initialize or discovery against a server, the transport falls back to a
// Stdio transport over the same launch spec; the fallback is invisible to
// callers beyond a log line.
type SDK struct {
	cfg    StdioConfig
	logger *slog.Logger

	mu       sync.Mutex
	client   *client.Client
	fallback *Stdio
}

// NewSDK creates an SDK-delegate transport. The child process is started by
// the SDK itself during Initialize.
func NewSDK(cfg StdioConfig) *SDK {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SDK{
		cfg:    cfg,
		logger: cfg.Logger.With("server", cfg.ServerName),
	}
}

// Initialize starts the SDK client and performs its handshake. Any SDK
// failure triggers the subprocess-framed fallback.
func (t *SDK) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fallback != nil {
		return t.fallback.Initialize(ctx)
	}

	if err := t.initializeSDK(ctx); err != nil {
		t.logger.Warn("sdk client failed, falling back to framed subprocess transport",
			"error", err,
		)
		return t.fallbackLocked(ctx)
	}
	return nil
}

func (t *SDK) initializeSDK(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(t.cfg.Command, t.cfg.Env, t.cfg.Args...)
	if err != nil {
		return err
	}
	if err := mcpClient.Start(ctx); err != nil {
		_ = mcpClient.Close()
		return err
	}

	version := t.cfg.ProtocolVersion
	if version == "" {
		version = mcp.LATEST_PROTOCOL_VERSION
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: version,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		return err
	}

	t.client = mcpClient
	return nil
}

// fallbackLocked replaces the SDK client with a Stdio transport over the
// same launch spec and initializes it. Caller holds t.mu.
func (t *SDK) fallbackLocked(ctx context.Context) error {
	if t.client != nil {
		_ = t.client.Close()
		t.client = nil
	}

	fb, err := NewStdio(t.cfg)
	if err != nil {
		return newError(KindHandshake, "initialize", "sdk fallback failed to start").withCause(err)
	}
	if err := fb.Initialize(ctx); err != nil {
		_ = fb.Close()
		return err
	}
	t.fallback = fb
	return nil
}

// ListTools lists tools through the SDK, falling back on failure.
func (t *SDK) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fallback != nil {
		return t.fallback.ListTools(ctx)
	}

	tools, err := t.listToolsSDK(ctx)
	if err == nil {
		return tools, nil
	}

	t.logger.Warn("sdk tool discovery failed, falling back to framed subprocess transport",
		"error", err,
	)
	if fbErr := t.fallbackLocked(ctx); fbErr != nil {
		return nil, fbErr
	}
	return t.fallback.ListTools(ctx)
}

func (t *SDK) listToolsSDK(ctx context.Context) ([]ToolDefinition, error) {
	result, err := t.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	tools := make([]ToolDefinition, len(result.Tools))
	for i, tool := range result.Tools {
		schema, err := toolSchemaJSON(tool)
		if err != nil {
			return nil, err
		}
		tools[i] = ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		}
	}
	return tools, nil
}

// toolSchemaJSON extracts a tool's input schema verbatim. RawInputSchema is
// preferred; otherwise the schema is pulled out of the marshaled tool.
func toolSchemaJSON(tool mcp.Tool) (json.RawMessage, error) {
	if len(tool.RawInputSchema) > 0 {
		return json.RawMessage(tool.RawInputSchema), nil
	}

	toolBytes, err := tool.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var toolMap map[string]json.RawMessage
	if err := json.Unmarshal(toolBytes, &toolMap); err != nil {
		return nil, err
	}
	return toolMap["inputSchema"], nil
}

// CallTool invokes one tool. Calls route through whichever delegate is
// active; no further fallback happens at call time since the process may
// already have performed side effects.
func (t *SDK) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	t.mu.Lock()
	fb, sdk := t.fallback, t.client
	t.mu.Unlock()

	if fb != nil {
		return fb.CallTool(ctx, name, args)
	}
	if sdk == nil {
		return nil, newError(KindProtocol, "tools/call", "transport not initialized")
	}

	result, err := sdk.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTimeout, "tools/call", "call timed out").withCause(err)
		}
		return nil, newError(KindProtocol, "tools/call", "sdk call failed").withCause(err)
	}
	return convertSDKResult(result), nil
}

// convertSDKResult flattens an SDK call result into the same shape the
// framed transport returns: the decoded JSON value of the result object.
func convertSDKResult(result *mcp.CallToolResult) any {
	content := make([]map[string]any, 0, len(result.Content))
	for _, item := range result.Content {
		entry := map[string]any{}
		if text, ok := mcp.AsTextContent(item); ok {
			entry["type"] = text.Type
			entry["text"] = text.Text
		} else if img, ok := mcp.AsImageContent(item); ok {
			entry["type"] = img.Type
			entry["data"] = img.Data
			entry["mimeType"] = img.MIMEType
		} else if raw, err := json.Marshal(item); err == nil {
			_ = json.Unmarshal(raw, &entry)
		}
		content = append(content, entry)
	}

	out := map[string]any{"content": content}
	if result.IsError {
		out["isError"] = true
	}
	return out
}

// Close shuts down whichever delegate is active.
func (t *SDK) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fallback != nil {
		return t.fallback.Close()
	}
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}
