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

package applier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cloud-agnost/provisioner/pkg/manifest"
)

var applyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provisioner_apply_total",
		Help: "Descriptors applied to the control plane by kind, operation and outcome",
	},
	[]string{"kind", "operation", "outcome"},
)

func recordApply(d *manifest.Descriptor, op Operation, o Outcome) {
	applyTotal.WithLabelValues(string(d.Kind), string(op), string(o)).Inc()
}
