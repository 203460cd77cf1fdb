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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCaptureOrderAndLimit(t *testing.T) {
	lc := NewLogCapture(3)
	for i := 0; i < 5; i++ {
		lc.Add("srv", InteractionToolCall, "", fmt.Sprintf("call-%d", i), 0)
	}

	entries := lc.Last("srv", 0)
	require.Len(t, entries, 3, "the buffer is bounded")
	assert.Equal(t, "call-2", entries[0].Message)
	assert.Equal(t, "call-4", entries[2].Message)

	tail := lc.Last("srv", 1)
	require.Len(t, tail, 1)
	assert.Equal(t, "call-4", tail[0].Message)
}

func TestLogCapturePerServerIsolation(t *testing.T) {
	lc := NewLogCapture(10)
	lc.Add("a", InteractionConnect, "", "up", 0)
	lc.Add("b", InteractionConnect, "", "up", 0)

	lc.RemoveServer("a")

	assert.Empty(t, lc.Last("a", 0))
	assert.Len(t, lc.Last("b", 0), 1)
}

func TestLogCaptureTruncatesDetail(t *testing.T) {
	lc := NewLogCapture(10)
	lc.Add("srv", InteractionToolResponse, "req-1", strings.Repeat("x", 5000), 0)

	entries := lc.Last("srv", 0)
	require.Len(t, entries, 1)
	assert.LessOrEqual(t, len(entries[0].Message), maxLoggedDetail+32)
	assert.Contains(t, entries[0].Message, "truncated")
}

func TestLogCaptureDuration(t *testing.T) {
	lc := NewLogCapture(10)
	lc.Add("srv", InteractionToolResponse, "req-1", "done", 1500*time.Millisecond)

	entries := lc.Last("srv", 0)
	require.Len(t, entries, 1)
	assert.InDelta(t, 1500.0, entries[0].Duration, 1.0)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	out := truncateString(strings.Repeat("a", 20), 10)
	assert.Contains(t, out, "truncated")
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 10)))
}
