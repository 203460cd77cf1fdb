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

package jsonrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Framing selects the byte-level convention delimiting messages on a stream.
type Framing string

const (
	// FramingLSP frames each message as "Content-Length: N\r\n\r\n<body>".
	FramingLSP Framing = "lsp"
	// FramingRaw writes each message as a single line of JSON.
	FramingRaw Framing = "raw"
)

// maxHeaderLine bounds a single header or raw-JSON line read from the stream.
const maxHeaderLine = 16 * 1024 * 1024

// Encode writes one message to w under the given framing mode.
func Encode(w io.Writer, msg any, framing Framing) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	switch framing {
	case FramingRaw:
		body = append(body, '\n')
		_, err = w.Write(body)
	default:
		if _, err = fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err == nil {
			_, err = w.Write(body)
		}
	}
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads JSON-RPC responses from a stream. The blocking reads run on a
// dedicated goroutine so Next never blocks past its timeout even when the
// underlying pipe stalls.
//
// The decoder accepts both framing modes on input: a line starting with '{'
// is parsed directly as an unframed message, anything else is treated as a
// header block followed by a Content-Length body. Banners, log lines, and
// server-initiated notifications are silently skipped.
type Decoder struct {
	msgs chan *Response
	quit chan struct{}
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// NewDecoder starts a decoder draining r. Callers must Close the decoder and
// close the underlying stream to release the reader goroutine.
func NewDecoder(r io.Reader) *Decoder {
	d := &Decoder{
		msgs: make(chan *Response),
		quit: make(chan struct{}),
	}
	go d.readLoop(r)
	return d
}

// Next returns the next decoded response, waiting at most timeout. The second
// return value is false when the deadline elapsed or the stream ended before
// a complete frame arrived.
func (d *Decoder) Next(timeout time.Duration) (*Response, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-d.msgs:
		if !ok {
			return nil, false
		}
		return resp, true
	case <-timer.C:
		return nil, false
	}
}

// Closed reports whether the underlying stream has ended. A false return from
// Next with Closed() == false means the deadline elapsed.
func (d *Decoder) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close releases the decoder. It does not close the underlying stream; the
// owner of the pipe does that to unblock the reader goroutine.
func (d *Decoder) Close() {
	d.once.Do(func() { close(d.quit) })
}

func (d *Decoder) readLoop(r io.Reader) {
	defer func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.msgs)
	}()

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		resp, err := readMessage(br)
		if err != nil {
			return
		}
		if resp == nil {
			// Malformed body or skippable noise; keep reading.
			continue
		}
		select {
		case d.msgs <- resp:
		case <-d.quit:
			return
		}
	}
}

// readMessage reads one frame from the stream. It returns (nil, nil) when the
// frame was present but undecodable, and an error only when the stream ends.
func readMessage(br *bufio.Reader) (*Response, error) {
	headers := map[string]string{}
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			if len(headers) > 0 {
				// End of header block; the body follows.
				return readBody(br, headers)
			}
			// Blank noise before any header.
			continue

		case strings.HasPrefix(trimmed, "{"):
			// Unframed JSON message on the channel.
			return parseResponse([]byte(trimmed)), nil

		case strings.Contains(trimmed, ":"):
			parts := strings.SplitN(trimmed, ":", 2)
			headers[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])

		default:
			// Banner or log noise; only tolerated before the header block.
			if len(headers) > 0 {
				headers = map[string]string{}
			}
		}
	}
}

func readBody(br *bufio.Reader, headers map[string]string) (*Response, error) {
	n, err := strconv.Atoi(headers["content-length"])
	if err != nil || n <= 0 || n > maxHeaderLine {
		return nil, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, err
	}
	return parseResponse(body), nil
}

// parseResponse decodes a message body, dropping anything that is not a
// response: server-initiated requests and notifications have a method but no
// result or error, and the protocol here never expects them.
func parseResponse(body []byte) *Response {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if probe.Method != "" {
		return nil
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	if resp.Result == nil && resp.Error == nil && len(resp.ID) == 0 {
		return nil
	}
	return &resp
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			// A final unterminated line still counts.
			return line, nil
		}
		return "", err
	}
	return line, nil
}
