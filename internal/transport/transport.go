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

/*
Package transport implements the channels that carry MCP JSON-RPC traffic to
a tool server, behind one common contract.

Three implementations exist, selected once from the server descriptor:

  - Stdio: a child process with framed stdin/stdout and a drained stderr
  - SDK: delegation to the mcp-go protocol client, with an automatic
    fallback to Stdio when the SDK cannot talk to the server
  - HTTP: stateless JSON-RPC over POST to a base URL

Every blocking operation takes a context; deadline expiry surfaces as an
*Error with KindTimeout rather than corrupting the connection state.
*/
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ToolDefinition describes one callable tool discovered on a server.
// The schema is passed through verbatim from the server.
type ToolDefinition struct {
	// Name is the tool's identifier on its server
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// InputSchema is the tool's JSON Schema, opaque to this layer
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Transport is the common contract every channel implementation satisfies.
//
// Implementations are not safe for pipelined use: within one transport at
// most one request is in flight at a time, and concurrent callers are
// serialized internally.
type Transport interface {
	// Initialize performs the protocol handshake.
	Initialize(ctx context.Context) error

	// ListTools discovers the tools the server exposes, in server order.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// CallTool invokes one tool and returns its decoded result.
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)

	// Close releases the channel and any owned process or connection pool.
	Close() error
}

// Kind categorizes a transport failure.
type Kind string

const (
	// KindTimeout indicates a deadline elapsed before a response arrived.
	KindTimeout Kind = "timeout"
	// KindProtocol indicates the server answered with a JSON-RPC error or
	// an otherwise unusable response.
	KindProtocol Kind = "protocol-error"
	// KindProcessExited indicates the child process ended before or during
	// the exchange.
	KindProcessExited Kind = "process-exited"
	// KindHTTPStatus indicates a non-success HTTP status.
	KindHTTPStatus Kind = "http-status"
	// KindDecode indicates a response could not be decoded.
	KindDecode Kind = "decode-error"
	// KindHandshake indicates the initialize exchange failed terminally.
	KindHandshake Kind = "handshake-failure"
	// KindDiscovery indicates tool discovery exhausted every variant.
	KindDiscovery Kind = "discovery-failure"
)

// Error is a categorized transport failure. Diagnostic carries captured
// stderr or response text when available.
type Error struct {
	// Kind is the failure category
	Kind Kind

	// Op is the operation that failed (e.g. "initialize", "tools/list")
	Op string

	// Message is the primary error message
	Message string

	// Diagnostic is captured stderr or raw response text, may be empty
	Diagnostic string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// newError builds an *Error.
func newError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// withDiagnostic attaches captured diagnostic text.
func (e *Error) withDiagnostic(diag string) *Error {
	e.Diagnostic = diag
	return e
}

// withCause attaches the underlying error.
func (e *Error) withCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf extracts the failure category from an error chain.
// Unrecognized errors map to KindProtocol.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindProtocol
}

// DiagnosticOf extracts captured diagnostic text from an error chain.
func DiagnosticOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Diagnostic
	}
	return ""
}
