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
	"bufio"
	"io"
	"sync"
)

// defaultStderrLines bounds the stderr ring buffer per process.
const defaultStderrLines = 200

// stderrDrain continuously reads a child process's stderr into a bounded
// ring buffer for the process's entire lifetime. Draining is decoupled from
// request/response flow so a full stderr pipe can never stall the child.
type stderrDrain struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
	done  chan struct{}
}

// newStderrDrain starts a drain goroutine over r. The goroutine exits when
// r reaches EOF, which happens when the process ends.
func newStderrDrain(r io.Reader, capacity int) *stderrDrain {
	if capacity <= 0 {
		capacity = defaultStderrLines
	}
	d := &stderrDrain{
		lines: make([]string, capacity),
		done:  make(chan struct{}),
	}
	go d.run(r)
	return d
}

func (d *stderrDrain) run(r io.Reader) {
	defer close(d.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		d.add(scanner.Text())
	}
}

func (d *stderrDrain) add(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count < len(d.lines) {
		d.lines[(d.head+d.count)%len(d.lines)] = line
		d.count++
		return
	}
	d.lines[d.head] = line
	d.head = (d.head + 1) % len(d.lines)
}

// Snapshot returns the captured lines, oldest first.
func (d *stderrDrain) Snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, d.count)
	for i := 0; i < d.count; i++ {
		out[i] = d.lines[(d.head+i)%len(d.lines)]
	}
	return out
}

// Tail returns the last n captured lines joined with newlines.
func (d *stderrDrain) Tail(n int) string {
	lines := d.Snapshot()
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	var out string
	for i, line := range lines {
		if i > 0 {
			out += "\n"
		}
		out += line
	}
	return out
}
