// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provisioner_queue_reconnects_total",
			Help: "Reconnect attempts scheduled after a broker connection failure.",
		},
	)

	connectedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioner_queue_connected",
			Help: "Whether the broker connection is established (1) or not (0).",
		},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioner_queue_deliveries_total",
			Help: "Deliveries handled per queue, by outcome (ack or nack).",
		},
		[]string{"queue", "outcome"},
	)
)
