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

	"github.com/spf13/cobra"
)

// newLogsCommand creates the 'logs' command.
func newLogsCommand() *cobra.Command {
	var (
		asJSON bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "logs <server>",
		Short: "Show recent interactions with a server",
		Long: `Connect the named server and print its recorded interactions: connection
attempts, stderr output, and any errors. Useful for diagnosing servers
that fail the handshake or print noise on startup.

Examples:
  mcphost logs pokeapi
  mcphost logs pokeapi --limit 20 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, args[0], limit, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to show")
	return cmd
}

func runLogs(cmd *cobra.Command, server string, limit int, asJSON bool) error {
	logger := newLogger()
	mgr, err := newManager(logger)
	if err != nil {
		return err
	}
	defer mgr.DisconnectAll()

	connectAll(cmd.Context(), mgr)

	entries := mgr.Logs(server, limit)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("no recorded interactions for %q\n", server)
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %-14s %s", e.Timestamp.Format("15:04:05.000"), e.Type, e.Message)
		if e.Duration > 0 {
			line += fmt.Sprintf(" (%.1fms)", e.Duration)
		}
		fmt.Println(line)
	}
	return nil
}
