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
	"hash/fnv"
	"sort"
	"sync"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/transport"
)

// maxToolIDLen caps sanitized tool identifiers.
const maxToolIDLen = 64

// ToolRecord is one catalog entry: a sanitized identifier bound to a tool on
// a connected server. The schema is passed through verbatim.
type ToolRecord struct {
	// ID is the sanitized, catalog-unique identifier
	ID string `json:"id"`

	// Server is the owning server's name
	Server string `json:"server"`

	// Name is the tool's original name on its server
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// Schema is the tool's JSON Schema, opaque to this layer
	Schema json.RawMessage `json:"schema"`
}

// Catalog is the in-memory index of discovered tools keyed by sanitized
// identifier. A server's records are replaced atomically on each successful
// connect and removed exactly on its disconnect.
type Catalog struct {
	mu       sync.RWMutex
	records  map[string]ToolRecord
	byServer map[string][]string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		records:  make(map[string]ToolRecord),
		byServer: make(map[string][]string),
	}
}

// SanitizeToolID derives the catalog identifier for a (server, tool) pair.
// The result contains only letters, numbers, underscores, and hyphens, never
// exceeds maxToolIDLen, and is a pure function of its inputs: whenever a
// character was replaced or the id truncated, a deterministic hash suffix of
// the raw pair keeps distinct pairs distinct.
func SanitizeToolID(server, tool string) string {
	raw := server + "_" + tool

	changed := false
	out := make([]rune, 0, len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
			changed = true
		}
	}

	s := string(out)
	if len(s) > maxToolIDLen {
		changed = true
	}
	if !changed {
		return s
	}

	suffix := "_" + pairHash(server, tool)
	if len(s) > maxToolIDLen-len(suffix) {
		s = s[:maxToolIDLen-len(suffix)]
	}
	return s + suffix
}

// pairHash returns an 8-hex-digit FNV-1a digest of the raw pair.
func pairHash(server, tool string) string {
	h := fnv.New32a()
	h.Write([]byte(server))
	h.Write([]byte{0})
	h.Write([]byte(tool))
	return fmt.Sprintf("%08x", h.Sum32())
}

// ReplaceServer atomically swaps a server's records for the given tool
// definitions, preserving server ordering, and returns the new records.
// Residual id collisions with other servers get the hash suffix as well.
func (c *Catalog) ReplaceServer(server string, tools []transport.ToolDefinition) []ToolRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(server)

	ids := make([]string, 0, len(tools))
	recs := make([]ToolRecord, 0, len(tools))
	for _, tool := range tools {
		id := SanitizeToolID(server, tool.Name)
		if owner, taken := c.records[id]; taken && owner.Server != server {
			suffix := "_" + pairHash(server, tool.Name)
			base := id
			if len(base) > maxToolIDLen-len(suffix) {
				base = base[:maxToolIDLen-len(suffix)]
			}
			id = base + suffix
		}
		rec := ToolRecord{
			ID:          id,
			Server:      server,
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      tool.InputSchema,
		}
		c.records[id] = rec
		ids = append(ids, id)
		recs = append(recs, rec)
	}
	c.byServer[server] = ids
	return recs
}

// RemoveServer removes exactly the given server's records.
func (c *Catalog) RemoveServer(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(server)
}

func (c *Catalog) removeLocked(server string) {
	for _, id := range c.byServer[server] {
		delete(c.records, id)
	}
	delete(c.byServer, server)
}

// Resolve looks up one record by sanitized id.
func (c *Catalog) Resolve(id string) (ToolRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// All returns every record, sorted by id for stable iteration.
func (c *Catalog) All() []ToolRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ToolRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServerTools returns one server's records in discovery order.
func (c *Catalog) ServerTools(server string) []ToolRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.byServer[server]
	out := make([]ToolRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.records[id])
	}
	return out
}

// Count returns the number of records in the catalog.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
