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
Package host manages connections to MCP tool servers and presents their
tools as one flat, collision-free catalog.

The host sits between a chat orchestration layer and any number of MCP
servers. It owns server registration, session lifecycle, tool discovery,
and call dispatch; the orchestration layer only ever sees sanitized tool
ids and structured results.

# Overview

The package consists of several components:

  - Manager: registration, connection fan-out, and call dispatch
  - Catalog: sanitized tool ids mapped back to (server, tool) pairs
  - Session: one connection's lifecycle (connecting, ready, closed)
  - LogCapture: bounded per-server interaction history
  - Watcher: configuration file watching with debounced reconcile

# Connecting

Register descriptors and connect everything that is enabled:

	mgr := host.NewManager(host.ManagerConfig{Logger: logger})

	err := mgr.Register(host.ServerDescriptor{
	    Name:    "filesystem",
	    Kind:    host.KindSubprocess,
	    Command: "npx",
	    Args:    []string{"-y", "@modelcontextprotocol/server-filesystem"},
	    Enabled: true,
	})

	summary := mgr.ConnectAll(ctx)

ConnectAll attempts every enabled server concurrently; one server failing
to come up never blocks or cancels the others.

# Dispatching

Tool calls go through the catalog id:

	result := mgr.CallTool(ctx, "filesystem_read_file", map[string]any{
	    "path": "/tmp/notes.txt",
	})

CallTool never returns an error: failures come back as a structured value
with error, reason, server, and tool fields, so a model-facing caller can
relay them verbatim.
*/
package host
