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
	"regexp"
	"strings"
	"time"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

// TransportKind selects which channel implementation carries a server's
// traffic. The set is closed; the kind is resolved once at connect time.
type TransportKind string

const (
	// KindSubprocess runs the server as a child process with framed pipes.
	KindSubprocess TransportKind = "subprocess"
	// KindSDKDelegate runs the server through the mcp-go client library.
	KindSDKDelegate TransportKind = "sdk-delegate"
	// KindHTTP talks JSON-RPC over POST to a remote endpoint.
	KindHTTP TransportKind = "http"
)

// ServerNameRegex validates server names: a leading letter followed by
// letters, numbers, hyphens, and underscores, at most 64 characters.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// ServerDescriptor is the immutable registration of one tool server. A
// descriptor never changes after registration; reconnecting re-reads it.
type ServerDescriptor struct {
	// Name uniquely identifies the server
	Name string

	// Kind selects the transport implementation
	Kind TransportKind

	// Description is free text shown in status output
	Description string

	// Command, Args, Dir, and Env form the launch spec for subprocess and
	// sdk-delegate transports. Env is a KEY=VALUE overlay on the host
	// environment.
	Command string
	Args    []string
	Dir     string
	Env     []string

	// URL, Headers, and BearerToken form the endpoint spec for the http
	// transport.
	URL         string
	Headers     map[string]string
	BearerToken string

	// ProtocolVersion is the handshake version hint (optional)
	ProtocolVersion string

	// Strategy selects the handshake strategy (defaults to modern)
	Strategy transport.HandshakeStrategy

	// Framing selects the subprocess wire framing (defaults to lsp)
	Framing jsonrpc.Framing

	// Timeout bounds each exchange with this server (optional)
	Timeout time.Duration

	// Enabled gates whether ConnectAll attempts this server
	Enabled bool
}

// Validate checks the descriptor for registration.
func (d *ServerDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("server name is required")
	}
	if !ServerNameRegex.MatchString(d.Name) {
		return fmt.Errorf("invalid server name %q: must start with a letter and contain only letters, numbers, hyphens, and underscores", d.Name)
	}

	switch d.Kind {
	case KindSubprocess, KindSDKDelegate:
		if d.Command == "" {
			return fmt.Errorf("command is required for %s transport", d.Kind)
		}
	case KindHTTP:
		if d.URL == "" {
			return fmt.Errorf("url is required for http transport")
		}
		if !strings.HasPrefix(d.URL, "http://") && !strings.HasPrefix(d.URL, "https://") {
			return fmt.Errorf("url must use http or https scheme")
		}
	default:
		return fmt.Errorf("unknown transport kind %q", d.Kind)
	}

	switch d.Strategy {
	case "", transport.HandshakeModern, transport.HandshakeCompat,
		transport.HandshakeLegacyMinimal, transport.HandshakeSkip:
	default:
		return fmt.Errorf("unknown handshake strategy %q", d.Strategy)
	}

	switch d.Framing {
	case "", jsonrpc.FramingLSP, jsonrpc.FramingRaw:
	default:
		return fmt.Errorf("unknown framing mode %q", d.Framing)
	}

	for i, env := range d.Env {
		if err := validateEnv(env); err != nil {
			return fmt.Errorf("env[%d]: %w", i, err)
		}
	}
	if d.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

var envKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateEnv checks an environment overlay entry is KEY=VALUE with a sane key.
func validateEnv(env string) error {
	parts := strings.SplitN(env, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("environment variable must be in KEY=VALUE format")
	}
	if !envKeyRegex.MatchString(parts[0]) {
		return fmt.Errorf("invalid environment variable key: %s", parts[0])
	}
	return nil
}

// sensitiveKeyPatterns flag env keys whose values must not be logged.
var sensitiveKeyPatterns = []string{
	"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL", "AUTH",
}

// IsSensitiveEnvKey returns true if the key appears to hold sensitive data.
func IsSensitiveEnvKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// RedactEnv redacts sensitive values from an environment overlay for logging.
func RedactEnv(envs []string) []string {
	result := make([]string, len(envs))
	for i, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && IsSensitiveEnvKey(parts[0]) {
			result[i] = parts[0] + "=***REDACTED***"
		} else {
			result[i] = env
		}
	}
	return result
}
