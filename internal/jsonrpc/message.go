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

// Package jsonrpc implements the JSON-RPC 2.0 message model and the byte-level
// framing used to talk to MCP servers over a stream.
//
// Two framing modes are supported: LSP-style Content-Length headers and
// newline-delimited raw JSON. The decoder tolerates servers that mix framed
// and unframed output and skips non-protocol noise on the channel.
package jsonrpc

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
)

// Version is the JSON-RPC protocol version sent on every message.
const Version = "2.0"

// Request is an outgoing JSON-RPC request or notification.
// A notification has no ID and expects no response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response. Exactly one of Result and Error
// is meaningful; servers that violate this are treated as returning Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "jsonrpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// IDString returns the response ID as a string, regardless of whether the
// server sent it as a JSON string or number. Returns "" when absent.
func (r *Response) IDString() string {
	if len(r.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(r.ID, &n); err == nil {
		return n.String()
	}
	return string(r.ID)
}

// Client mints sequential request IDs. IDs are strings because several
// discovered servers echo numeric IDs back as strings.
type Client struct {
	next atomic.Int64
}

// NewClient creates a request factory with IDs starting at "1".
func NewClient() *Client {
	return &Client{}
}

// NewRequest creates a request with the next sequential ID.
func (c *Client) NewRequest(method string, params any) *Request {
	id := c.next.Add(1)
	return &Request{
		JSONRPC: Version,
		ID:      strconv.FormatInt(id, 10),
		Method:  method,
		Params:  params,
	}
}

// NewNotification creates a notification (no ID, no expected response).
func (c *Client) NewNotification(method string, params any) *Request {
	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}
}
