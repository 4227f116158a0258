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

package controller

import (
	"context"
	"fmt"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

// Deployment restart modes.
const (
	RestartRollout = "rollout"
	RestartScale   = "scale"
)

// ServerRef names a PostgreSQL cluster.
type ServerRef struct {
	ServerName string `json:"serverName"`
}

// ClusterRef names a MySQL, MongoDB, Redis or RabbitMQ cluster. Username
// selects the broker user to remove; PurgeData also deletes MySQL or Redis
// data volumes.
type ClusterRef struct {
	ClusterName string `json:"clusterName"`
	Username    string `json:"username,omitempty"`
	PurgeData   bool   `json:"purgeData,omitempty"`
}

// DomainRef names a custom domain.
type DomainRef struct {
	DomainName string `json:"domainName"`
}

// DeploymentRef names a Deployment and how to restart it. An empty mode is
// a rollout restart.
type DeploymentRef struct {
	Name string `json:"name"`
	Mode string `json:"mode,omitempty"`
}

// RestartDeployment restarts ref.Name the way ref.Mode asks.
func (c *Controller) RestartDeployment(ctx context.Context, ref DeploymentRef) error {
	switch ref.Mode {
	case "", RestartRollout:
		return c.Workloads.RolloutRestart(ctx, ref.Name)
	case RestartScale:
		return c.Workloads.ScaleRestart(ctx, ref.Name)
	default:
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("unknown restart mode %q", ref.Mode),
			map[string]any{"field": "mode", "allowed": []string{RestartRollout, RestartScale}})
	}
}
