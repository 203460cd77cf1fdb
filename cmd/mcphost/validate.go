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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/host"
)

// newValidateCommand creates the 'validate' command.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := host.LoadConfig(flagConfig)
			if err != nil {
				return err
			}
			descriptors, err := cfg.Descriptors()
			if err != nil {
				return err
			}

			enabled := 0
			for _, d := range descriptors {
				if d.Enabled {
					enabled++
				}
			}
			fmt.Printf("%s: %d servers (%d enabled)\n", flagConfig, len(descriptors), enabled)
			return nil
		},
	}
}
