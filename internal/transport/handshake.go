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
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// HandshakeStrategy selects how the initialize/initialized exchange is
// performed. Discovered servers disagree on which fields initialize must
// carry, so each server descriptor configures the strategy that works for it.
type HandshakeStrategy string

const (
	// HandshakeModern sends one full initialize payload and awaits the
	// response before sending the initialized notification.
	HandshakeModern HandshakeStrategy = "modern"
	// HandshakeCompat sends three increasingly complete payload variants
	// back-to-back, then reads a single response with a longer timeout.
	HandshakeCompat HandshakeStrategy = "compat"
	// HandshakeLegacyMinimal sends a protocol-version-only payload with a
	// short timeout, for servers intolerant of extra fields.
	HandshakeLegacyMinimal HandshakeStrategy = "legacy-minimal"
	// HandshakeSkip omits initialize and proceeds straight to discovery.
	HandshakeSkip HandshakeStrategy = "skip"
)

// Protocol version constants. FallbackProtocolVersion is the version the
// original host pinned and is retried once when a server rejects the
// configured hint.
const (
	DefaultProtocolVersion  = "2025-03-26"
	FallbackProtocolVersion = "2024-11-05"
)

// Client identity announced during the handshake.
const (
	clientName    = "pokechatbot-mcp-host"
	clientVersion = "1.0.0"
)

// negotiator drives the initialize/initialized exchange over a framed
// connection. A handshake failure is terminal for the connection attempt.
type negotiator struct {
	conn    *framedConn
	logger  *slog.Logger
	lastRaw string
}

// initializePayload builds one of the three payload shapes. Level 0 is the
// minimal protocol-version-only form, level 2 the full modern form.
func initializePayload(protocolVersion string, level int) map[string]any {
	params := map[string]any{
		"protocolVersion": protocolVersion,
	}
	if level >= 1 {
		params["capabilities"] = map[string]any{}
	}
	if level >= 2 {
		params["capabilities"] = map[string]any{
			"roots":    map[string]any{"listChanged": true},
			"sampling": map[string]any{},
		}
		params["clientInfo"] = map[string]any{
			"name":    clientName,
			"version": clientVersion,
		}
	}
	return params
}

// Negotiate runs the configured strategy. On a rejected protocol version it
// retries once with FallbackProtocolVersion before declaring failure. The
// returned error is always a *Error with KindHandshake; the last raw
// response, if any, rides along in the diagnostic.
func (n *negotiator) Negotiate(strategy HandshakeStrategy, protocolVersion string, timeout time.Duration) error {
	if strategy == HandshakeSkip {
		return nil
	}
	if protocolVersion == "" {
		protocolVersion = DefaultProtocolVersion
	}

	err := n.attempt(strategy, protocolVersion, timeout)
	if err == nil {
		return nil
	}
	if protocolVersion != FallbackProtocolVersion && isVersionRejection(err) {
		n.logger.Warn("protocol version rejected, retrying with fallback",
			"rejected", protocolVersion,
			"fallback", FallbackProtocolVersion,
		)
		if retryErr := n.attempt(strategy, FallbackProtocolVersion, timeout); retryErr == nil {
			return nil
		}
	}

	he := newError(KindHandshake, "initialize", err.Error()).withCause(err)
	he.Diagnostic = n.lastRaw
	return he
}

func (n *negotiator) attempt(strategy HandshakeStrategy, protocolVersion string, timeout time.Duration) error {
	switch strategy {
	case HandshakeCompat:
		return n.compat(protocolVersion, timeout)
	case HandshakeLegacyMinimal:
		return n.exchange(initializePayload(protocolVersion, 0), timeout/2)
	default:
		return n.exchange(initializePayload(protocolVersion, 2), timeout)
	}
}

// exchange performs one initialize round trip and, on success, sends the
// initialized notification.
func (n *negotiator) exchange(params map[string]any, timeout time.Duration) error {
	resp, err := n.conn.call("initialize", params, timeout)
	if err != nil {
		return err
	}
	n.recordRaw(resp)

	if resp.Error != nil {
		return newError(KindProtocol, "initialize", resp.Error.Message).withCause(resp.Error)
	}
	if resp.Result == nil {
		return newError(KindProtocol, "initialize", "response carries no result")
	}
	return n.conn.notify("initialized", nil)
}

// compat fires the three payload variants without waiting individually, then
// accepts the first well-formed result that comes back.
func (n *negotiator) compat(protocolVersion string, timeout time.Duration) error {
	n.conn.mu.Lock()
	for level := 0; level <= 2; level++ {
		req := n.conn.rpc.NewRequest("initialize", initializePayload(protocolVersion, level))
		if err := n.conn.sendRaw(req); err != nil {
			n.conn.mu.Unlock()
			return err
		}
	}
	// Accept a response to any of the three requests.
	resp, err := n.conn.await("initialize", "", 2*timeout)
	n.conn.mu.Unlock()
	if err != nil {
		return err
	}
	n.recordRaw(resp)

	if resp.Error != nil {
		return newError(KindProtocol, "initialize", resp.Error.Message).withCause(resp.Error)
	}
	if resp.Result == nil {
		return newError(KindProtocol, "initialize", "response carries no result")
	}
	return n.conn.notify("initialized", nil)
}

func (n *negotiator) recordRaw(resp any) {
	if raw, err := json.Marshal(resp); err == nil {
		n.lastRaw = string(raw)
	}
}

// isVersionRejection reports whether the server's error looks like a
// protocol-version complaint. Servers phrase this inconsistently; matching
// on the two words covers the variants observed in the wild. Only the
// server's own message is inspected, never the error envelope.
func isVersionRejection(err error) bool {
	msg := err.Error()
	var te *Error
	if errors.As(err, &te) {
		msg = te.Message
	}
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "protocol") || strings.Contains(msg, "version")
}
