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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStderrDrainCapturesLines(t *testing.T) {
	d := newStderrDrain(strings.NewReader("first\nsecond\nthird\n"), 10)
	<-d.done

	assert.Equal(t, []string{"first", "second", "third"}, d.Snapshot())
	assert.Equal(t, "second\nthird", d.Tail(2))
}

func TestStderrDrainBounded(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "line-%d\n", i)
	}

	d := newStderrDrain(strings.NewReader(b.String()), 10)
	<-d.done

	// Only the newest capacity lines survive, oldest first.
	lines := d.Snapshot()
	assert.Len(t, lines, 10)
	assert.Equal(t, "line-15", lines[0])
	assert.Equal(t, "line-24", lines[9])
}

func TestStderrDrainEmpty(t *testing.T) {
	d := newStderrDrain(strings.NewReader(""), 10)
	<-d.done

	assert.Empty(t, d.Snapshot())
	assert.Equal(t, "", d.Tail(5))
}
