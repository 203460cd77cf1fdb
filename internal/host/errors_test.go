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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

func TestErrorResultShape(t *testing.T) {
	err := newHostError(ReasonNoSuchTool, "", `tool "x" is not in the catalog`)
	out := errorResult("", "x", err, false)

	assert.Contains(t, out, "error")
	assert.Equal(t, ReasonNoSuchTool, out["reason"])
	assert.Equal(t, "x", out["tool"])
	assert.NotContains(t, out, "diagnostic")
}

func TestErrorResultCarriesTransportKind(t *testing.T) {
	cause := &transport.Error{
		Kind:       transport.KindTimeout,
		Op:         "tools/call",
		Message:    "no response within deadline",
		Diagnostic: "stderr: panic at line 3",
	}
	out := errorResult("pokeapi", "lookup", cause, false)

	assert.Equal(t, string(transport.KindTimeout), out["reason"])
	assert.Equal(t, "pokeapi", out["server"])
	assert.NotContains(t, out, "diagnostic", "diagnostics only surface in debug mode")
}

func TestErrorResultDebugDiagnostic(t *testing.T) {
	cause := &transport.Error{
		Kind:       transport.KindProcessExited,
		Op:         "tools/call",
		Message:    "server process has exited",
		Diagnostic: "Traceback (most recent call last)",
	}
	out := errorResult("pokeapi", "lookup", cause, true)

	require.Contains(t, out, "diagnostic")
	assert.Contains(t, out["diagnostic"], "Traceback")
}

func TestFromTransportUnwraps(t *testing.T) {
	cause := &transport.Error{Kind: transport.KindHandshake, Op: "initialize", Message: "refused"}
	he := fromTransport("srv", cause)

	assert.Equal(t, string(transport.KindHandshake), he.Reason)
	assert.Equal(t, "srv", he.Server)
	assert.True(t, errors.Is(he, error(cause)))
}
