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
)

// Interaction types recorded in the capture buffers.
const (
	InteractionConnect      = "CONNECT"
	InteractionConnectError = "CONNECT_ERROR"
	InteractionDisconnect   = "DISCONNECT"
	InteractionToolCall     = "TOOL_CALL"
	InteractionToolResponse = "TOOL_RESPONSE"
	InteractionToolError    = "TOOL_ERROR"
	InteractionStderr       = "STDERR"
)

// Truncation caps applied before anything is buffered or logged.
const (
	maxLoggedResult = 500
	maxLoggedDetail = 1000
)

// LogEntry is one recorded interaction with a server.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Server    string    `json:"server"`
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Message   string    `json:"message"`
	Duration  float64   `json:"duration_ms,omitempty"`
}

// ringBuffer is a fixed-size circular buffer of log entries.
type ringBuffer struct {
	entries []LogEntry
	head    int
	count   int
}

func (rb *ringBuffer) add(entry LogEntry) {
	if rb.count < len(rb.entries) {
		rb.entries[(rb.head+rb.count)%len(rb.entries)] = entry
		rb.count++
		return
	}
	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % len(rb.entries)
}

func (rb *ringBuffer) last(n int) []LogEntry {
	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]LogEntry, n)
	start := rb.count - n
	for i := 0; i < n; i++ {
		out[i] = rb.entries[(rb.head+start+i)%len(rb.entries)]
	}
	return out
}

// LogCapture keeps a bounded per-server history of interactions so the
// orchestration layer can show them without re-reading log files.
type LogCapture struct {
	mu      sync.RWMutex
	buffers map[string]*ringBuffer
	size    int
}

// NewLogCapture creates a capture keeping up to size entries per server.
func NewLogCapture(size int) *LogCapture {
	if size <= 0 {
		size = 1000
	}
	return &LogCapture{
		buffers: make(map[string]*ringBuffer),
		size:    size,
	}
}

// Add records one interaction.
func (lc *LogCapture) Add(server, typ, requestID, message string, duration time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	buf := lc.buffers[server]
	if buf == nil {
		buf = &ringBuffer{entries: make([]LogEntry, lc.size)}
		lc.buffers[server] = buf
	}
	entry := LogEntry{
		Timestamp: time.Now(),
		Server:    server,
		Type:      typ,
		RequestID: requestID,
		Message:   truncateString(message, maxLoggedDetail),
	}
	if duration > 0 {
		entry.Duration = float64(duration.Microseconds()) / 1000
	}
	buf.add(entry)
}

// Last returns the last n entries for a server, oldest first.
func (lc *LogCapture) Last(server string, n int) []LogEntry {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	buf := lc.buffers[server]
	if buf == nil {
		return nil
	}
	return buf.last(n)
}

// RemoveServer drops a server's history.
func (lc *LogCapture) RemoveServer(server string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	delete(lc.buffers, server)
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
