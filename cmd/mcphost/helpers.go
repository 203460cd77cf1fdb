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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/host"
)

// newManager builds a manager from the configuration file and registers
// every server in it. No connections are made yet.
func newManager(logger *slog.Logger) (*host.Manager, error) {
	cfg, err := host.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	descriptors, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}

	mgr := host.NewManager(host.ManagerConfig{
		Logger:      logger,
		Debug:       flagDebug,
		DebugWriter: os.Stderr,
	})
	for _, d := range descriptors {
		if err := mgr.Register(d); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// connectAll connects every enabled server and reports failures on stderr
// without failing the command; a partially connected catalog is still
// useful.
func connectAll(ctx context.Context, mgr *host.Manager) {
	summary := mgr.ConnectAll(ctx)
	for name, err := range summary.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", name, err)
	}
}
