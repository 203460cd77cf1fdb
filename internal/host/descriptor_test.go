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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerDescriptor)
		wantErr string
	}{
		{"valid subprocess", func(d *ServerDescriptor) {}, ""},
		{"empty name", func(d *ServerDescriptor) { d.Name = "" }, "name is required"},
		{"name starts with digit", func(d *ServerDescriptor) { d.Name = "1srv" }, "invalid server name"},
		{"name with dots", func(d *ServerDescriptor) { d.Name = "a.b" }, "invalid server name"},
		{"name too long", func(d *ServerDescriptor) {
			d.Name = "a"
			for len(d.Name) < 70 {
				d.Name += "x"
			}
		}, "invalid server name"},
		{"missing command", func(d *ServerDescriptor) { d.Command = "" }, "command is required"},
		{"bad strategy", func(d *ServerDescriptor) { d.Strategy = "yolo" }, "unknown handshake strategy"},
		{"bad framing", func(d *ServerDescriptor) { d.Framing = "pigeon" }, "unknown framing"},
		{"bad env entry", func(d *ServerDescriptor) { d.Env = []string{"NOEQUALS"} }, "KEY=VALUE"},
		{"bad env key", func(d *ServerDescriptor) { d.Env = []string{"9BAD=x"} }, "invalid environment variable key"},
		{"negative timeout", func(d *ServerDescriptor) { d.Timeout = -1 }, "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ServerDescriptor{
				Name:    "srv",
				Kind:    KindSubprocess,
				Command: "npx",
			}
			tt.mutate(&d)

			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDescriptorValidateHTTP(t *testing.T) {
	d := ServerDescriptor{Name: "web", Kind: KindHTTP}
	assert.ErrorContains(t, d.Validate(), "url is required")

	d.URL = "ftp://example.com"
	assert.ErrorContains(t, d.Validate(), "http or https")

	d.URL = "https://example.com/rpc"
	assert.NoError(t, d.Validate())
}

func TestDescriptorValidateStrategies(t *testing.T) {
	for _, s := range []transport.HandshakeStrategy{
		"", transport.HandshakeModern, transport.HandshakeCompat,
		transport.HandshakeLegacyMinimal, transport.HandshakeSkip,
	} {
		d := ServerDescriptor{Name: "srv", Kind: KindSubprocess, Command: "x", Strategy: s}
		assert.NoError(t, d.Validate(), "strategy %q", s)
	}
}

func TestRedactEnv(t *testing.T) {
	out := RedactEnv([]string{
		"POKEAPI_URL=https://pokeapi.co",
		"API_TOKEN=abc123",
		"DB_PASSWORD=hunter2",
		"MY_SECRET_THING=x",
	})

	assert.Equal(t, "POKEAPI_URL=https://pokeapi.co", out[0])
	assert.Equal(t, "API_TOKEN=***REDACTED***", out[1])
	assert.Equal(t, "DB_PASSWORD=***REDACTED***", out[2])
	assert.Equal(t, "MY_SECRET_THING=***REDACTED***", out[3])
}

func TestIsSensitiveEnvKey(t *testing.T) {
	assert.True(t, IsSensitiveEnvKey("API_KEY"))
	assert.True(t, IsSensitiveEnvKey("github_token"))
	assert.True(t, IsSensitiveEnvKey("AUTH_HEADER"))
	assert.False(t, IsSensitiveEnvKey("BASE_URL"))
	assert.False(t, IsSensitiveEnvKey("TIMEOUT"))
}
