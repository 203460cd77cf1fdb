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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
)

func TestHandshakeModern(t *testing.T) {
	tr, log := scriptedStdio(t, StdioConfig{Strategy: HandshakeModern},
		func(req jsonrpc.Request) *jsonrpc.Response {
			if req.Method == "initialize" {
				return resultResponse(req.ID, map[string]any{
					"protocolVersion": DefaultProtocolVersion,
					"capabilities":    map[string]any{},
				})
			}
			return nil
		})

	err := tr.Initialize(context.Background())
	require.NoError(t, err)

	// initialize round trip, then the initialized notification.
	waitForMethods(t, log, "initialize", "initialized")

	reqs := log.all()
	params := paramsOf(reqs[0])
	assert.Equal(t, DefaultProtocolVersion, params["protocolVersion"])
	assert.Contains(t, params, "capabilities")
	assert.Contains(t, params, "clientInfo")
	assert.Empty(t, reqs[1].ID, "initialized must be a notification")
}

func TestHandshakeVersionFallback(t *testing.T) {
	tr, log := scriptedStdio(t, StdioConfig{Strategy: HandshakeModern},
		func(req jsonrpc.Request) *jsonrpc.Response {
			if req.Method != "initialize" {
				return nil
			}
			if paramsOf(req)["protocolVersion"] != FallbackProtocolVersion {
				return errorResponse(req.ID, jsonrpc.CodeInvalidParams, "unsupported protocol version")
			}
			return resultResponse(req.ID, map[string]any{"protocolVersion": FallbackProtocolVersion})
		})

	err := tr.Initialize(context.Background())
	require.NoError(t, err)

	versions := []string{}
	for _, req := range log.all() {
		if req.Method == "initialize" {
			versions = append(versions, paramsOf(req)["protocolVersion"].(string))
		}
	}
	assert.Equal(t, []string{DefaultProtocolVersion, FallbackProtocolVersion}, versions)
}

func TestHandshakeNoFallbackOnUnrelatedError(t *testing.T) {
	tr, log := scriptedStdio(t, StdioConfig{Strategy: HandshakeModern},
		func(req jsonrpc.Request) *jsonrpc.Response {
			if req.Method == "initialize" {
				return errorResponse(req.ID, jsonrpc.CodeInternalError, "database unavailable")
			}
			return nil
		})

	err := tr.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindHandshake, KindOf(err))

	initializes := 0
	for _, method := range log.methods() {
		if method == "initialize" {
			initializes++
		}
	}
	assert.Equal(t, 1, initializes, "an unrelated error must not trigger the version retry")
}

func TestHandshakeLegacyMinimal(t *testing.T) {
	tr, log := scriptedStdio(t, StdioConfig{Strategy: HandshakeLegacyMinimal},
		func(req jsonrpc.Request) *jsonrpc.Response {
			if req.Method == "initialize" {
				return resultResponse(req.ID, map[string]any{})
			}
			return nil
		})

	err := tr.Initialize(context.Background())
	require.NoError(t, err)

	params := paramsOf(log.all()[0])
	assert.Contains(t, params, "protocolVersion")
	assert.NotContains(t, params, "capabilities", "legacy payload is version-only")
	assert.NotContains(t, params, "clientInfo")
}

func TestHandshakeCompat(t *testing.T) {
	seen := 0
	tr, log := scriptedStdio(t, StdioConfig{Strategy: HandshakeCompat},
		func(req jsonrpc.Request) *jsonrpc.Response {
			if req.Method != "initialize" {
				return nil
			}
			seen++
			// Only the fullest variant gets an answer.
			if seen == 3 {
				return resultResponse(req.ID, map[string]any{"capabilities": map[string]any{}})
			}
			return nil
		})

	err := tr.Initialize(context.Background())
	require.NoError(t, err)

	waitForMethods(t, log, "initialize", "initialize", "initialize", "initialized")

	// The variants must escalate: version-only, then +capabilities, then full.
	reqs := log.all()
	assert.NotContains(t, paramsOf(reqs[0]), "capabilities")
	assert.Contains(t, paramsOf(reqs[1]), "capabilities")
	assert.Contains(t, paramsOf(reqs[2]), "clientInfo")
}

func TestHandshakeSkip(t *testing.T) {
	tr, log := scriptedStdio(t, StdioConfig{Strategy: HandshakeSkip},
		func(req jsonrpc.Request) *jsonrpc.Response {
			t.Errorf("unexpected request %q during skipped handshake", req.Method)
			return nil
		})

	err := tr.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, log.all())
}

func TestHandshakeTimeout(t *testing.T) {
	tr, _ := scriptedStdio(t, StdioConfig{Strategy: HandshakeModern, Timeout: 100 * time.Millisecond},
		func(req jsonrpc.Request) *jsonrpc.Response {
			return nil // never answer
		})

	start := time.Now()
	err := tr.Initialize(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, KindHandshake, KindOf(err))
	assert.Less(t, elapsed, 2*time.Second)
}

// waitForMethods polls until the request log holds exactly the given method
// sequence. Notifications are written asynchronously with respect to the
// caller's return, so assertions on them need a little patience.
func waitForMethods(t *testing.T, log *requestLog, want ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := log.methods()
		if len(got) >= len(want) {
			assert.Equal(t, want, got)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for methods %v, got %v", want, log.methods())
}
