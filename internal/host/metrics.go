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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// connectAttempts tracks connection attempts by server and outcome
	connectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcphost_connect_attempts_total",
			Help: "Total server connection attempts by server name and outcome",
		},
		[]string{"server", "outcome"},
	)

	// toolCalls tracks tool dispatches by server and outcome
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcphost_tool_calls_total",
			Help: "Total tool calls by server name and outcome",
		},
		[]string{"server", "outcome"},
	)

	// toolCallDuration tracks tool call latency by server
	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcphost_tool_call_duration_seconds",
			Help:    "Tool call latency by server name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server"},
	)

	// callRetries tracks HTTP reinitialize-and-retry occurrences
	callRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcphost_call_retries_total",
			Help: "Total reinitialize-and-retry attempts by server name",
		},
		[]string{"server"},
	)

	// readySessions tracks the number of Ready sessions
	readySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcphost_ready_sessions",
			Help: "Number of sessions currently in the Ready state",
		},
	)

	// catalogSize tracks the number of catalog entries
	catalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcphost_catalog_tools",
			Help: "Number of tools currently in the catalog",
		},
	)
)

func recordConnect(server string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	connectAttempts.WithLabelValues(server, outcome).Inc()
}

func recordToolCall(server string, failed bool, seconds float64) {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	toolCalls.WithLabelValues(server, outcome).Inc()
	toolCallDuration.WithLabelValues(server).Observe(seconds)
}
