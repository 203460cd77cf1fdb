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

// mcphost is a command-line front end for the MCP host: it connects the
// servers in a configuration file and exposes their tools for inspection
// and invocation.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
)

func main() {
	root := &cobra.Command{
		Use:   "mcphost",
		Short: "Connect MCP tool servers and expose their tools",
		Long: `mcphost connects the MCP servers listed in a configuration file and
presents their tools as one flat catalog of sanitized tool ids.

Commands:
  status    Show the connection state of every configured server
  tools     List the tool catalog
  call      Invoke one tool by its catalog id
  serve     Connect everything and stay up, watching the config file
  validate  Check the configuration file without connecting
  version   Print version information`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "mcphost.yaml", "configuration file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose diagnostics and wire traffic")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format (json, text)")

	root.AddCommand(newStatusCommand())
	root.AddCommand(newToolsCommand())
	root.AddCommand(newCallCommand())
	root.AddCommand(newLogsCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from environment and flags. Flags win.
func newLogger() *slog.Logger {
	cfg := log.FromEnv()
	if flagDebug {
		cfg.Level = "debug"
	}
	if flagLogLevel != "" {
		cfg.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Format = log.Format(flagLogFormat)
	}
	return log.New(cfg)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcphost %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
