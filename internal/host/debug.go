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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// DebugFormatter renders dispatched calls and their results for a human
// chasing a misbehaving server. It is only wired up when the manager runs
// with Debug set.
type DebugFormatter struct {
	writer io.Writer
}

// NewDebugFormatter creates a formatter writing to w.
func NewDebugFormatter(w io.Writer) *DebugFormatter {
	if w == nil {
		w = io.Discard
	}
	return &DebugFormatter{writer: w}
}

// Request formats an outgoing tool call.
func (f *DebugFormatter) Request(server, tool string, args map[string]any) {
	f.write(server, "CALL "+tool, args)
}

// Response formats a tool call result.
func (f *DebugFormatter) Response(server, tool string, result any) {
	f.write(server, "RESULT "+tool, result)
}

// Failure formats a tool call failure.
func (f *DebugFormatter) Failure(server, tool string, err error) {
	f.write(server, "ERROR "+tool, err.Error())
}

func (f *DebugFormatter) write(server, header string, data any) {
	var sb strings.Builder
	sb.WriteString(time.Now().Format("15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(server)
	sb.WriteString("] ")
	sb.WriteString(header)
	sb.WriteString("\n")

	if data != nil {
		body, err := json.MarshalIndent(data, "  ", "  ")
		if err != nil {
			body = []byte(fmt.Sprintf("%v", data))
		}
		sb.WriteString("  ")
		sb.Write(body)
		sb.WriteString("\n")
	}
	_, _ = f.writer.Write([]byte(sb.String()))
}
