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
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

// TransportFactory builds a transport for a descriptor. The default factory
// selects the implementation from the descriptor's kind; tests inject fakes.
type TransportFactory func(d ServerDescriptor, logger *slog.Logger) (transport.Transport, error)

// ManagerConfig configures the host manager.
type ManagerConfig struct {
	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// Debug attaches verbose diagnostics to errors and enables the
	// request/response formatter. An explicit field, never ambient state.
	Debug bool

	// DebugWriter receives formatted traffic when Debug is set
	DebugWriter io.Writer

	// ConnectTimeout bounds handshake plus discovery per server (30s default)
	ConnectTimeout time.Duration

	// CallTimeout bounds one tool call (30s default)
	CallTimeout time.Duration

	// LogHistory caps the per-server interaction buffer (1000 default)
	LogHistory int

	// Factory overrides transport construction (tests)
	Factory TransportFactory
}

// Manager owns the server descriptors, their sessions, and the tool catalog,
// and dispatches tool calls through the right transport. It is the only
// surface the orchestration layer consumes.
type Manager struct {
	logger  *slog.Logger
	factory TransportFactory
	catalog *Catalog
	capture *LogCapture
	debug   *DebugFormatter

	debugMode      bool
	connectTimeout time.Duration
	callTimeout    time.Duration

	mu          sync.RWMutex
	descriptors map[string]ServerDescriptor
	sessions    map[string]*Session
	lastErrors  map[string]string
	caps        map[string]ServerCapabilities
}

// ServerCapabilities summarizes what a connected server exposes.
type ServerCapabilities struct {
	// Tools is the number of catalog entries the server contributed
	Tools int `json:"tools"`

	// SupportsResources is set when discovery fell back to resources
	SupportsResources bool `json:"supports_resources"`
}

// NewManager creates a host manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	m := &Manager{
		logger:         logger,
		catalog:        NewCatalog(),
		capture:        NewLogCapture(cfg.LogHistory),
		debugMode:      cfg.Debug,
		connectTimeout: cfg.ConnectTimeout,
		callTimeout:    cfg.CallTimeout,
		descriptors:    make(map[string]ServerDescriptor),
		sessions:       make(map[string]*Session),
		lastErrors:     make(map[string]string),
		caps:           make(map[string]ServerCapabilities),
	}
	if cfg.Debug {
		m.debug = NewDebugFormatter(cfg.DebugWriter)
	}
	m.factory = cfg.Factory
	if m.factory == nil {
		m.factory = m.buildTransport
	}
	return m
}

// buildTransport is the default factory: the transport kind is resolved here
// once, from the descriptor, never by runtime type inspection afterwards.
func (m *Manager) buildTransport(d ServerDescriptor, logger *slog.Logger) (transport.Transport, error) {
	switch d.Kind {
	case KindSubprocess:
		return transport.NewStdio(stdioConfig(d, logger))
	case KindSDKDelegate:
		return transport.NewSDK(stdioConfig(d, logger)), nil
	case KindHTTP:
		return transport.NewHTTP(transport.HTTPConfig{
			ServerName:      d.Name,
			BaseURL:         d.URL,
			Headers:         d.Headers,
			BearerToken:     d.BearerToken,
			ProtocolVersion: d.ProtocolVersion,
			Timeout:         d.Timeout,
			Logger:          logger,
		})
	default:
		return nil, fmt.Errorf("unknown transport kind %q", d.Kind)
	}
}

func stdioConfig(d ServerDescriptor, logger *slog.Logger) transport.StdioConfig {
	return transport.StdioConfig{
		ServerName:      d.Name,
		Command:         d.Command,
		Args:            d.Args,
		Dir:             d.Dir,
		Env:             d.Env,
		Framing:         d.Framing,
		Strategy:        d.Strategy,
		ProtocolVersion: d.ProtocolVersion,
		Timeout:         d.Timeout,
		Logger:          logger,
	}
}

// Register adds a server descriptor. Names are unique; registering over a
// connected server is rejected.
func (m *Manager) Register(d ServerDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.descriptors[d.Name]; exists {
		return fmt.Errorf("server %q is already registered", d.Name)
	}
	m.descriptors[d.Name] = d

	m.logger.Info("server registered",
		"server", d.Name,
		"transport", d.Kind,
		"enabled", d.Enabled,
		"env", RedactEnv(d.Env),
	)
	return nil
}

// Remove unregisters a server, disconnecting it first if needed.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	_, exists := m.descriptors[name]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("server %q is not registered", name)
	}

	_ = m.Disconnect(name)

	m.mu.Lock()
	delete(m.descriptors, name)
	delete(m.lastErrors, name)
	m.mu.Unlock()
	m.capture.RemoveServer(name)
	return nil
}

// ConnectSummary reports the outcome of ConnectAll.
type ConnectSummary struct {
	Attempted int
	Connected int
	Errors    map[string]error
}

// ConnectAll connects every enabled server concurrently. One server's
// failure never cancels or blocks the others; failures are recorded per
// server and returned in the summary.
func (m *Manager) ConnectAll(ctx context.Context) ConnectSummary {
	m.mu.RLock()
	names := make([]string, 0, len(m.descriptors))
	for name, d := range m.descriptors {
		if d.Enabled {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	summary := ConnectSummary{Attempted: len(names), Errors: make(map[string]error)}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := m.Connect(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors[name] = err
				return
			}
			summary.Connected++
		}(name)
	}
	wg.Wait()

	m.logger.Info("connections completed",
		"attempted", summary.Attempted,
		"connected", summary.Connected,
		"failed", len(summary.Errors),
	)
	return summary
}

// Connect establishes a new session for one server: transport construction,
// handshake, discovery, then an atomic catalog replace. An existing session
// is closed first; sessions never reopen.
func (m *Manager) Connect(ctx context.Context, name string) error {
	m.mu.RLock()
	d, exists := m.descriptors[name]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("server %q is not registered", name)
	}

	// A retry always gets a fresh Session object.
	if old := m.session(name); old != nil {
		_ = old.Close()
	}

	logger := m.logger.With("server", name)
	tr, err := m.factory(d, logger)
	if err != nil {
		return m.connectFailed(name, fromTransport(name, err))
	}

	sess := newSession(name, d.Kind, tr)
	m.mu.Lock()
	m.sessions[name] = sess
	m.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	if err := tr.Initialize(connectCtx); err != nil {
		m.dropSession(name, sess)
		return m.connectFailed(name, fromTransport(name, err))
	}

	tools, err := tr.ListTools(connectCtx)
	if err != nil {
		m.dropSession(name, sess)
		return m.connectFailed(name, fromTransport(name, err))
	}

	recs := m.catalog.ReplaceServer(name, tools)
	sess.markReady()

	caps := ServerCapabilities{Tools: len(recs)}
	for _, rec := range recs {
		if rec.Name == transport.ResourcesListTool {
			caps.SupportsResources = true
		}
	}
	m.mu.Lock()
	m.caps[name] = caps
	delete(m.lastErrors, name)
	m.mu.Unlock()

	m.updateGauges()
	recordConnect(name, nil)
	m.capture.Add(name, InteractionConnect, "", fmt.Sprintf("connected, %d tools", len(recs)), 0)
	logger.Info("server connected", "tools", len(recs), "transport", d.Kind)
	return nil
}

func (m *Manager) connectFailed(name string, err *HostError) error {
	recordConnect(name, err)
	m.mu.Lock()
	m.lastErrors[name] = err.Error()
	m.mu.Unlock()
	m.capture.Add(name, InteractionConnectError, "", err.Error(), 0)
	if err.Detail != "" {
		m.capture.Add(name, InteractionStderr, "", err.Detail, 0)
	}
	m.logger.Error("server connection failed", "server", name, "error", err)
	return err
}

func (m *Manager) dropSession(name string, sess *Session) {
	_ = sess.Close()
	m.mu.Lock()
	if m.sessions[name] == sess {
		delete(m.sessions, name)
	}
	m.mu.Unlock()
	m.updateGauges()
}

// CallTool dispatches one tool call by sanitized id. Failures come back as a
// structured {error, reason, server, tool} value, never as an error crossing
// into the orchestration layer.
func (m *Manager) CallTool(ctx context.Context, id string, args map[string]any) any {
	requestID := uuid.NewString()

	rec, ok := m.catalog.Resolve(id)
	if !ok {
		err := newHostError(ReasonNoSuchTool, "", fmt.Sprintf("tool %q is not in the catalog", id))
		return errorResult("", id, err, m.debugMode)
	}

	sess := m.readySession(rec.Server)
	if sess == nil {
		err := newHostError(ReasonNoActiveSession, rec.Server,
			fmt.Sprintf("no active session for server %q", rec.Server))
		return errorResult(rec.Server, rec.Name, err, m.debugMode)
	}

	m.capture.Add(rec.Server, InteractionToolCall, requestID,
		truncateString(fmt.Sprintf("%s args=%v", rec.Name, args), maxLoggedResult), 0)
	if m.debug != nil {
		m.debug.Request(rec.Server, rec.Name, args)
	}

	start := time.Now()
	result, err := m.invoke(ctx, sess, rec.Name, args)

	// HTTP sessions are stateless per request: one close-and-reinitialize
	// then retry. Subprocess calls are never retried automatically; the
	// child may already have performed side effects.
	if err != nil && sess.Kind() == KindHTTP {
		callRetries.WithLabelValues(rec.Server).Inc()
		m.logger.Warn("tool call failed on http session, reinitializing once",
			"server", rec.Server,
			"tool", rec.Name,
			"error", err,
		)
		if fresh, rerr := m.reinitialize(ctx, rec.Server); rerr == nil {
			sess = fresh
			result, err = m.invoke(ctx, sess, rec.Name, args)
		}
	}

	elapsed := time.Since(start)
	recordToolCall(rec.Server, err != nil, elapsed.Seconds())

	if err != nil {
		m.capture.Add(rec.Server, InteractionToolError, requestID, err.Error(), elapsed)
		if m.debug != nil {
			m.debug.Failure(rec.Server, rec.Name, err)
		}
		return errorResult(rec.Server, rec.Name, err, m.debugMode)
	}

	m.capture.Add(rec.Server, InteractionToolResponse, requestID,
		truncateString(fmt.Sprintf("%v", result), maxLoggedResult), elapsed)
	if m.debug != nil {
		m.debug.Response(rec.Server, rec.Name, result)
	}
	return result
}

func (m *Manager) invoke(ctx context.Context, sess *Session, tool string, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return sess.Transport().CallTool(callCtx, tool, args)
}

// reinitialize replaces an HTTP session with a fresh one. The catalog is
// untouched: the server's tool set was established at connect time.
func (m *Manager) reinitialize(ctx context.Context, name string) (*Session, error) {
	m.mu.RLock()
	d, exists := m.descriptors[name]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("server %q is not registered", name)
	}

	if old := m.session(name); old != nil {
		_ = old.Close()
	}

	tr, err := m.factory(d, m.logger.With("server", name))
	if err != nil {
		return nil, err
	}

	sess := newSession(name, d.Kind, tr)
	initCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()
	if err := tr.Initialize(initCtx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	sess.markReady()

	m.mu.Lock()
	m.sessions[name] = sess
	m.mu.Unlock()
	m.updateGauges()
	return sess, nil
}

// Descriptors returns the currently registered server descriptors.
func (m *Manager) Descriptors() []ServerDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServerDescriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		out = append(out, d)
	}
	return out
}

// ToolCatalog returns the catalog as an id → record mapping.
func (m *Manager) ToolCatalog() map[string]ToolRecord {
	out := make(map[string]ToolRecord)
	for _, rec := range m.catalog.All() {
		out[rec.ID] = rec
	}
	return out
}

// ServerTools returns one server's catalog records in discovery order.
func (m *Manager) ServerTools(name string) []ToolRecord {
	return m.catalog.ServerTools(name)
}

// Disconnect closes a server's session and removes exactly its catalog
// records; every other server's records are untouched.
func (m *Manager) Disconnect(name string) error {
	sess := m.session(name)
	if sess == nil {
		return nil
	}

	m.mu.Lock()
	delete(m.sessions, name)
	delete(m.caps, name)
	m.mu.Unlock()

	err := sess.Close()
	m.catalog.RemoveServer(name)
	m.updateGauges()

	m.capture.Add(name, InteractionDisconnect, "", "disconnected", 0)
	m.logger.Info("server disconnected", "server", name)
	return err
}

// DisconnectAll disconnects every connected server concurrently.
func (m *Manager) DisconnectAll() {
	m.mu.RLock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = m.Disconnect(name)
		}(name)
	}
	wg.Wait()
}

// ServerStatus describes one registered server.
type ServerStatus struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Kind         TransportKind      `json:"transport"`
	Enabled      bool               `json:"enabled"`
	State        SessionState       `json:"state"`
	Tools        int                `json:"tools"`
	Uptime       time.Duration      `json:"uptime,omitempty"`
	LastError    string             `json:"last_error,omitempty"`
	Capabilities ServerCapabilities `json:"capabilities"`
}

// Status reports the state of every registered server.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServerStatus, 0, len(m.descriptors))
	for name, d := range m.descriptors {
		st := ServerStatus{
			Name:        name,
			Description: d.Description,
			Kind:        d.Kind,
			Enabled:     d.Enabled,
			State:       SessionClosed,
			LastError:   m.lastErrors[name],
		}
		if sess := m.sessions[name]; sess != nil {
			st.State = sess.State()
			st.Uptime = sess.Uptime()
		}
		st.Capabilities = m.caps[name]
		st.Tools = st.Capabilities.Tools
		out = append(out, st)
	}
	return out
}

// Logs returns the last n recorded interactions for a server.
func (m *Manager) Logs(server string, n int) []LogEntry {
	return m.capture.Last(server, n)
}

// StderrTail returns a snapshot of a subprocess server's captured stderr.
// Returns "" for transports without a stderr stream.
func (m *Manager) StderrTail(name string, n int) string {
	sess := m.session(name)
	if sess == nil {
		return ""
	}
	if src, ok := sess.Transport().(interface{ Stderr(int) string }); ok {
		return src.Stderr(n)
	}
	return ""
}

func (m *Manager) session(name string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[name]
}

func (m *Manager) readySession(name string) *Session {
	sess := m.session(name)
	if sess == nil || sess.State() != SessionReady {
		return nil
	}
	return sess
}

func (m *Manager) updateGauges() {
	m.mu.RLock()
	ready := 0
	for _, sess := range m.sessions {
		if sess.State() == SessionReady {
			ready++
		}
	}
	m.mu.RUnlock()
	readySessions.Set(float64(ready))
	catalogSize.Set(float64(m.catalog.Count()))
}
