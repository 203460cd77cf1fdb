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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/host"
)

// newToolsCommand creates the 'tools' command.
func newToolsCommand() *cobra.Command {
	var (
		asJSON     bool
		withSchema bool
	)

	cmd := &cobra.Command{
		Use:   "tools [server]",
		Short: "List the tool catalog",
		Long: `Connect the configured servers and list the catalog of sanitized
tool ids. With a server argument, list only that server's tools.

Examples:
  mcphost tools
  mcphost tools filesystem
  mcphost tools --json --schemas`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := ""
			if len(args) == 1 {
				server = args[0]
			}
			return runTools(cmd, server, asJSON, withSchema)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&withSchema, "schemas", false, "include input schemas in JSON output")
	return cmd
}

func runTools(cmd *cobra.Command, server string, asJSON, withSchema bool) error {
	logger := newLogger()
	mgr, err := newManager(logger)
	if err != nil {
		return err
	}
	defer mgr.DisconnectAll()

	connectAll(cmd.Context(), mgr)

	var records []host.ToolRecord
	if server != "" {
		records = mgr.ServerTools(server)
	} else {
		catalog := mgr.ToolCatalog()
		records = make([]host.ToolRecord, 0, len(catalog))
		for _, rec := range catalog {
			records = append(records, rec)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	}

	if asJSON {
		type toolJSON struct {
			ID          string          `json:"id"`
			Server      string          `json:"server"`
			Name        string          `json:"name"`
			Description string          `json:"description,omitempty"`
			Schema      json.RawMessage `json:"input_schema,omitempty"`
		}
		out := make([]toolJSON, 0, len(records))
		for _, rec := range records {
			tj := toolJSON{ID: rec.ID, Server: rec.Server, Name: rec.Name, Description: rec.Description}
			if withSchema {
				tj.Schema = rec.Schema
			}
			out = append(out, tj)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVER\tDESCRIPTION")
	for _, rec := range records {
		desc := rec.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, rec.Server, desc)
	}
	return w.Flush()
}
