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
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/jsonrpc"
)

// framedConn pairs a frame-encoded writer with a deadline-bounded decoder.
// It enforces the one-request-in-flight rule: a request and its response are
// exchanged under one lock, matched by order.
//
// Known limitation: a timed-out call leaves the read position undefined. A
// response arriving after the deadline is discarded when its id visibly
// mismatches the next request, but strict in-order pairing is otherwise
// assumed.
type framedConn struct {
	w       io.Writer
	dec     *jsonrpc.Decoder
	rpc     *jsonrpc.Client
	framing jsonrpc.Framing
	logger  *slog.Logger

	// mu serializes request/response exchanges (no pipelining)
	mu sync.Mutex
}

func newFramedConn(w io.Writer, r io.Reader, framing jsonrpc.Framing, logger *slog.Logger) *framedConn {
	return &framedConn{
		w:       w,
		dec:     jsonrpc.NewDecoder(r),
		rpc:     jsonrpc.NewClient(),
		framing: framing,
		logger:  logger,
	}
}

// call sends one request and waits for its response. A nil response with a
// nil error never happens; failures carry a transport *Error.
func (c *framedConn) call(method string, params any, timeout time.Duration) (*jsonrpc.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := c.rpc.NewRequest(method, params)
	if err := jsonrpc.Encode(c.w, req, c.framing); err != nil {
		return nil, newError(KindProcessExited, method, "write request failed").withCause(err)
	}
	return c.await(method, req.ID, timeout)
}

// await reads responses until one matches id or the deadline elapses.
func (c *framedConn) await(method, id string, timeout time.Duration) (*jsonrpc.Response, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, newError(KindTimeout, method, "no response within deadline")
		}

		resp, ok := c.dec.Next(remaining)
		if !ok {
			if c.dec.Closed() {
				return nil, newError(KindProcessExited, method, "stream ended before response")
			}
			return nil, newError(KindTimeout, method, "no response within deadline")
		}

		// Discard visibly stale responses from an earlier timed-out call.
		if got := resp.IDString(); got != "" && id != "" && got != id {
			c.logger.Warn("discarding response with stale id",
				"method", method,
				"want_id", id,
				"got_id", got,
			)
			continue
		}
		return resp, nil
	}
}

// notify sends a notification; no response is expected.
func (c *framedConn) notify(method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	note := c.rpc.NewNotification(method, params)
	if err := jsonrpc.Encode(c.w, note, c.framing); err != nil {
		return newError(KindProcessExited, method, "write notification failed").withCause(err)
	}
	return nil
}

// sendRaw writes a request without waiting; used by the compat handshake
// which fires several payload variants back-to-back.
func (c *framedConn) sendRaw(req *jsonrpc.Request) error {
	if err := jsonrpc.Encode(c.w, req, c.framing); err != nil {
		return newError(KindProcessExited, req.Method, "write request failed").withCause(err)
	}
	return nil
}

func (c *framedConn) close() {
	c.dec.Close()
}
