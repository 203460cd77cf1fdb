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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcphost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
defaults:
  timeout: 15
servers:
  - name: pokeapi
    command: python3
    args: ["-m", "pokeapi_server"]
    env: ["POKEAPI_URL=https://pokeapi.co"]
    framing: raw
    handshake: compat
  - name: web
    transport: http
    url: https://tools.example.com/rpc
    bearer_token: s3cret
    timeout: 60
  - name: parked
    command: npx
    enabled: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	descriptors, err := cfg.Descriptors()
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	poke := descriptors[0]
	assert.Equal(t, KindSubprocess, poke.Kind, "subprocess is the default transport")
	assert.Equal(t, jsonrpc.FramingRaw, poke.Framing)
	assert.Equal(t, transport.HandshakeCompat, poke.Strategy)
	assert.Equal(t, 15*time.Second, poke.Timeout, "defaults.timeout applies when unset")
	assert.True(t, poke.Enabled, "enabled defaults to true")

	web := descriptors[1]
	assert.Equal(t, KindHTTP, web.Kind)
	assert.Equal(t, "s3cret", web.BearerToken)
	assert.Equal(t, 60*time.Second, web.Timeout)

	assert.False(t, descriptors[2].Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Servers)
	assert.Equal(t, 30, cfg.Defaults.Timeout)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "servers: [unclosed")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "parse")
}

func TestConfigDuplicateNames(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: twice
    command: a
  - name: twice
    command: b
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = cfg.Descriptors()
	assert.ErrorContains(t, err, "duplicate server name")
}

func TestConfigRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name    string
		entry   ServerEntry
		wantErr string
	}{
		{"bad transport", ServerEntry{Name: "s", Transport: "carrier-pigeon"}, "unknown transport"},
		{"bad framing", ServerEntry{Name: "s", Command: "x", Framing: "morse"}, "unknown framing"},
		{"bad handshake", ServerEntry{Name: "s", Command: "x", Handshake: "wave"}, "unknown handshake"},
		{"missing url", ServerEntry{Name: "s", Transport: "http"}, "url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.entry.Descriptor()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigSDKTransport(t *testing.T) {
	entry := ServerEntry{Name: "sdkserver", Transport: "sdk", Command: "npx"}
	d, err := entry.Descriptor()
	require.NoError(t, err)
	assert.Equal(t, KindSDKDelegate, d.Kind)
}
