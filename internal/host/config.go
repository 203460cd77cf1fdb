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
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

// ConfigFile is the on-disk host configuration: a list of server entries
// plus defaults applied to entries that leave a field unset.
type ConfigFile struct {
	// Servers lists the configured MCP servers.
	Servers []ServerEntry `yaml:"servers,omitempty"`

	// Defaults provides fallback values for server entries.
	Defaults ConfigDefaults `yaml:"defaults,omitempty"`
}

// ServerEntry is one server in the configuration file.
type ServerEntry struct {
	// Name uniquely identifies the server.
	Name string `yaml:"name"`

	// Transport selects the transport: "subprocess", "sdk", or "http".
	Transport string `yaml:"transport,omitempty"`

	// Description is free-form text shown in status output.
	Description string `yaml:"description,omitempty"`

	// Command is the executable to run (subprocess and sdk transports).
	Command string `yaml:"command,omitempty"`

	// Args are command-line arguments.
	Args []string `yaml:"args,omitempty"`

	// Dir is the child process working directory.
	Dir string `yaml:"dir,omitempty"`

	// Env are environment variables in KEY=VALUE format.
	Env []string `yaml:"env,omitempty"`

	// URL is the JSON-RPC endpoint (http transport).
	URL string `yaml:"url,omitempty"`

	// Headers are extra HTTP headers sent on every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// BearerToken is sent as an Authorization header when set.
	BearerToken string `yaml:"bearer_token,omitempty"`

	// Framing selects the subprocess wire framing: "lsp" or "raw".
	Framing string `yaml:"framing,omitempty"`

	// Handshake selects the handshake strategy:
	// "modern", "compat", "legacy-minimal", or "skip".
	Handshake string `yaml:"handshake,omitempty"`

	// ProtocolVersion overrides the protocol version hint.
	ProtocolVersion string `yaml:"protocol_version,omitempty"`

	// Timeout is the per-exchange timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// Enabled controls whether ConnectAll includes this server.
	// Defaults to true; set explicitly to false to park an entry.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// ConfigDefaults provides fallback values for server entries.
type ConfigDefaults struct {
	// Timeout is the default per-exchange timeout in seconds (default: 30).
	Timeout int `yaml:"timeout,omitempty"`

	// Transport is the default transport (default: "subprocess").
	Transport string `yaml:"transport,omitempty"`

	// Framing is the default subprocess framing (default: "lsp").
	Framing string `yaml:"framing,omitempty"`
}

// LoadConfig reads and parses the host configuration file. A missing file
// is not an error; an empty configuration comes back.
func LoadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigFile{Defaults: ConfigDefaults{Timeout: 30}}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *ConfigFile) applyDefaults() {
	if c.Defaults.Timeout == 0 {
		c.Defaults.Timeout = 30
	}
	if c.Defaults.Transport == "" {
		c.Defaults.Transport = "subprocess"
	}
	if c.Defaults.Framing == "" {
		c.Defaults.Framing = "lsp"
	}

	for i := range c.Servers {
		entry := &c.Servers[i]
		if entry.Transport == "" {
			entry.Transport = c.Defaults.Transport
		}
		if entry.Framing == "" {
			entry.Framing = c.Defaults.Framing
		}
		if entry.Timeout == 0 {
			entry.Timeout = c.Defaults.Timeout
		}
	}
}

// Descriptors converts the file's entries into validated server descriptors.
func (c *ConfigFile) Descriptors() ([]ServerDescriptor, error) {
	seen := make(map[string]bool)
	out := make([]ServerDescriptor, 0, len(c.Servers))
	for _, entry := range c.Servers {
		if seen[entry.Name] {
			return nil, fmt.Errorf("duplicate server name %q", entry.Name)
		}
		seen[entry.Name] = true

		d, err := entry.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", entry.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Descriptor converts one entry into a validated server descriptor.
func (e ServerEntry) Descriptor() (ServerDescriptor, error) {
	d := ServerDescriptor{
		Name:            e.Name,
		Description:     e.Description,
		Command:         e.Command,
		Args:            e.Args,
		Dir:             e.Dir,
		Env:             e.Env,
		URL:             e.URL,
		Headers:         e.Headers,
		BearerToken:     e.BearerToken,
		ProtocolVersion: e.ProtocolVersion,
		Timeout:         time.Duration(e.Timeout) * time.Second,
		Enabled:         e.Enabled == nil || *e.Enabled,
	}

	switch e.Transport {
	case "subprocess", "":
		d.Kind = KindSubprocess
	case "sdk":
		d.Kind = KindSDKDelegate
	case "http":
		d.Kind = KindHTTP
	default:
		return ServerDescriptor{}, fmt.Errorf("unknown transport %q", e.Transport)
	}

	framing, err := parseFraming(e.Framing)
	if err != nil {
		return ServerDescriptor{}, err
	}
	d.Framing = framing

	strategy, err := parseStrategy(e.Handshake)
	if err != nil {
		return ServerDescriptor{}, err
	}
	d.Strategy = strategy

	if err := d.Validate(); err != nil {
		return ServerDescriptor{}, err
	}
	return d, nil
}

func parseFraming(s string) (jsonrpc.Framing, error) {
	switch s {
	case "", "lsp":
		return jsonrpc.FramingLSP, nil
	case "raw":
		return jsonrpc.FramingRaw, nil
	default:
		return "", fmt.Errorf("unknown framing %q", s)
	}
}

func parseStrategy(s string) (transport.HandshakeStrategy, error) {
	switch s {
	case "", "modern":
		return transport.HandshakeModern, nil
	case "compat":
		return transport.HandshakeCompat, nil
	case "legacy-minimal":
		return transport.HandshakeLegacyMinimal, nil
	case "skip":
		return transport.HandshakeSkip, nil
	default:
		return "", fmt.Errorf("unknown handshake strategy %q", s)
	}
}
