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
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
)

// scriptedStdio builds a subprocess transport wired to an in-process fake
// server. The handler sees every request the transport writes (notifications
// included) and returns the response to send back, or nil for none.
func scriptedStdio(t *testing.T, cfg StdioConfig, handler func(req jsonrpc.Request) *jsonrpc.Response) (*Stdio, *requestLog) {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	if cfg.ServerName == "" {
		cfg.ServerName = "scripted"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	framing := cfg.Framing
	if framing == "" {
		framing = jsonrpc.FramingLSP
	}

	log := &requestLog{}
	go func() {
		br := bufio.NewReader(reqR)
		for {
			req, err := readClientRequest(br)
			if err != nil {
				return
			}
			log.add(*req)
			if resp := handler(*req); resp != nil {
				if err := jsonrpc.Encode(respW, resp, framing); err != nil {
					return
				}
			}
		}
	}()

	tr := newStdioOverPipes(cfg, reqW, respR)
	t.Cleanup(func() {
		_ = tr.Close()
		reqW.Close()
		respW.Close()
		reqR.Close()
		respR.Close()
	})
	return tr, log
}

// requestLog records every request the transport sent, in order.
type requestLog struct {
	mu   sync.Mutex
	reqs []jsonrpc.Request
}

func (l *requestLog) add(req jsonrpc.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
}

func (l *requestLog) all() []jsonrpc.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]jsonrpc.Request(nil), l.reqs...)
}

func (l *requestLog) methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.reqs))
	for i, req := range l.reqs {
		out[i] = req.Method
	}
	return out
}

// readClientRequest parses one request off the stream in either framing.
func readClientRequest(br *bufio.Reader) (*jsonrpc.Request, error) {
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue

		case strings.HasPrefix(trimmed, "{"):
			var req jsonrpc.Request
			if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
				return nil, err
			}
			return &req, nil

		case strings.HasPrefix(strings.ToLower(trimmed), "content-length:"):
			n, err := strconv.Atoi(strings.TrimSpace(trimmed[len("content-length:"):]))
			if err != nil {
				return nil, err
			}
			for {
				h, err := br.ReadString('\n')
				if err != nil {
					return nil, err
				}
				if strings.TrimSpace(h) == "" {
					break
				}
			}
			body := make([]byte, n)
			if _, err := io.ReadFull(br, body); err != nil {
				return nil, err
			}
			var req jsonrpc.Request
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
			return &req, nil
		}
	}
}

// resultResponse builds a success response for a request id.
func resultResponse(id string, result any) *jsonrpc.Response {
	raw, _ := json.Marshal(result)
	return &jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage(strconv.Quote(id)),
		Result:  raw,
	}
}

// errorResponse builds an error response for a request id.
func errorResponse(id string, code int, message string) *jsonrpc.Response {
	return &jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage(strconv.Quote(id)),
		Error:   &jsonrpc.Error{Code: code, Message: message},
	}
}

// paramsOf extracts a request's params as a map for assertions.
func paramsOf(req jsonrpc.Request) map[string]any {
	m, _ := req.Params.(map[string]any)
	return m
}
