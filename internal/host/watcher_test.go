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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRequiresManagerAndPath(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{})
	assert.ErrorContains(t, err, "manager is required")

	_, err = NewWatcher(WatcherConfig{Manager: testManager(t, newFakeFactory())})
	assert.ErrorContains(t, err, "config path is required")
}

func TestWatcherReconcilesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcphost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: []\n"), 0600))

	ff := newFakeFactory()
	ff.add("added", &fakeTransport{tools: defs("t1")})
	mgr := testManager(t, ff)

	w, err := NewWatcher(WatcherConfig{
		Manager:       mgr,
		Path:          path,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	updated := `
servers:
  - name: added
    command: fake-server
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	require.Eventually(t, func() bool {
		_, ok := mgr.ToolCatalog()["added_t1"]
		return ok
	}, 5*time.Second, 20*time.Millisecond, "new server must be registered and connected")
}

func TestWatcherRemovesVanishedServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcphost.yaml")
	initial := `
servers:
  - name: doomed
    command: fake-server
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0600))

	ff := newFakeFactory()
	ff.add("doomed", &fakeTransport{tools: defs("t1")})
	mgr := testManager(t, ff)
	require.NoError(t, mgr.Register(subprocessDescriptor("doomed")))
	require.NoError(t, mgr.Connect(t.Context(), "doomed"))

	w, err := NewWatcher(WatcherConfig{
		Manager:       mgr,
		Path:          path,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(path, []byte("servers: []\n"), 0600))

	require.Eventually(t, func() bool {
		return len(mgr.ToolCatalog()) == 0 && len(mgr.Descriptors()) == 0
	}, 5*time.Second, 20*time.Millisecond, "vanished server must be removed")
}

func TestWatcherIgnoresBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcphost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: []\n"), 0600))

	ff := newFakeFactory()
	ff.add("stable", &fakeTransport{tools: defs("t1")})
	mgr := testManager(t, ff)
	require.NoError(t, mgr.Register(subprocessDescriptor("stable")))
	require.NoError(t, mgr.Connect(t.Context(), "stable"))

	w, err := NewWatcher(WatcherConfig{
		Manager:       mgr,
		Path:          path,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(path, []byte("servers: [unclosed"), 0600))

	// The broken file must not tear down the running state.
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, mgr.ToolCatalog(), 1)
	assert.Len(t, mgr.Descriptors(), 1)
}
