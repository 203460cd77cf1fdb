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
	"sync"
	"time"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

// SessionState is the lifecycle state of a Session.
type SessionState string

const (
	// SessionConnecting means the transport exists but the handshake and
	// discovery have not completed.
	SessionConnecting SessionState = "connecting"
	// SessionReady means the session accepts tool calls.
	SessionReady SessionState = "ready"
	// SessionClosed means the session is finished. Sessions never reopen;
	// a retry creates a new Session.
	SessionClosed SessionState = "closed"
)

// Session binds one ServerDescriptor to a live transport. It owns the
// underlying process handle or HTTP connection pool through the transport.
type Session struct {
	server string
	kind   TransportKind
	tr     transport.Transport

	mu        sync.Mutex
	state     SessionState
	startedAt time.Time
}

func newSession(server string, kind TransportKind, tr transport.Transport) *Session {
	return &Session{
		server: server,
		kind:   kind,
		tr:     tr,
		state:  SessionConnecting,
	}
}

// markReady transitions Connecting → Ready.
func (s *Session) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionConnecting {
		s.state = SessionReady
		s.startedAt = time.Now()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Uptime reports how long the session has been Ready.
func (s *Session) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionReady || s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Close transitions to Closed and releases the transport. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = SessionClosed
	s.mu.Unlock()
	return s.tr.Close()
}

// Transport exposes the underlying transport for dispatch.
func (s *Session) Transport() transport.Transport {
	return s.tr
}

// Server returns the owning server name.
func (s *Session) Server() string {
	return s.server
}

// Kind returns the descriptor's transport kind.
func (s *Session) Kind() TransportKind {
	return s.kind
}
