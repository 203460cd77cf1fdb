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

package host

import (
	"fmt"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

// Dispatch failure reasons that originate in the host rather than on a
// transport. Transport-level reasons reuse the transport.Kind taxonomy.
const (
	// ReasonNoSuchTool means the sanitized id resolves to nothing.
	ReasonNoSuchTool = "no-such-tool"
	// ReasonNoActiveSession means the owning server has no Ready session.
	ReasonNoActiveSession = "no-active-session"
)

// HostError is a categorized host-level failure tied to one server.
type HostError struct {
	// Reason is a host reason constant or a transport.Kind string
	Reason string

	// Server is the server the failure belongs to
	Server string

	// Message is the primary error message
	Message string

	// Detail carries diagnostic text (stderr snapshots, raw responses),
	// populated only in debug mode
	Detail string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *HostError) Error() string {
	if e.Server != "" {
		return fmt.Sprintf("server %s: %s: %s", e.Server, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap returns the underlying error.
func (e *HostError) Unwrap() error {
	return e.Cause
}

// newHostError builds a HostError.
func newHostError(reason, server, message string) *HostError {
	return &HostError{Reason: reason, Server: server, Message: message}
}

// fromTransport converts a transport failure into a HostError, carrying the
// transport's category through as the reason.
func fromTransport(server string, err error) *HostError {
	return &HostError{
		Reason:  string(transport.KindOf(err)),
		Server:  server,
		Message: err.Error(),
		Detail:  transport.DiagnosticOf(err),
		Cause:   err,
	}
}

// errorResult converts a failure into the structured value handed to the
// orchestration layer: a plain map it can relay as text. Diagnostic detail
// is attached only when debug is set.
func errorResult(server, tool string, err error, debug bool) map[string]any {
	out := map[string]any{
		"error":  err.Error(),
		"server": server,
	}
	if tool != "" {
		out["tool"] = tool
	}
	var he *HostError
	if e, ok := err.(*HostError); ok {
		he = e
	} else {
		he = fromTransport(server, err)
	}
	out["reason"] = he.Reason
	if debug && he.Detail != "" {
		out["diagnostic"] = he.Detail
	}
	return out
}
