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

// newCallCommand creates the 'call' command.
func newCallCommand() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "call <tool-id>",
		Short: "Invoke one tool by its catalog id",
		Long: `Connect the configured servers, invoke the given tool, and print its
result as JSON. Failures are printed in the same structured form the
orchestration layer would see; the exit code is non-zero when the result
carries an error.

Examples:
  mcphost call filesystem_read_file --args '{"path": "/tmp/notes.txt"}'
  mcphost call weather_forecast --args '{"city": "Guatemala City"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], argsJSON)
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "{}", "tool arguments as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, toolID, argsJSON string) error {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Errorf("invalid --args: %w", err)
	}

	logger := newLogger()
	mgr, err := newManager(logger)
	if err != nil {
		return err
	}
	defer mgr.DisconnectAll()

	connectAll(cmd.Context(), mgr)

	result := mgr.CallTool(cmd.Context(), toolID, args)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if m, ok := result.(map[string]any); ok {
		if _, failed := m["error"]; failed {
			return fmt.Errorf("tool call failed")
		}
	}
	return nil
}
