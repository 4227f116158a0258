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
	"fmt"

	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
	"github.com/cloud-agnost/provisioner/pkg/provision"
	"github.com/cloud-agnost/provisioner/pkg/provision/broker"
	"github.com/cloud-agnost/provisioner/pkg/provision/cache"
	"github.com/cloud-agnost/provisioner/pkg/provision/database"
	"github.com/cloud-agnost/provisioner/pkg/provision/domain"
	"github.com/cloud-agnost/provisioner/pkg/provision/storage"
	"github.com/cloud-agnost/provisioner/pkg/provision/workload"
)

// Controller holds one orchestrator per resource family over a shared
// runtime. The HTTP handlers, the queue worker and the CLI all drive it.
type Controller struct {
	Runtime   *provision.Runtime
	Postgres  *database.Postgres
	MySQL     *database.MySQL
	MariaDB   *database.MariaDB
	MongoDB   *database.MongoDB
	RabbitMQ  *broker.RabbitMQ
	Redis     *cache.Redis
	Storage   *storage.Storage
	Domains   *domain.Domains
	Workloads *workload.Manager
}

// New wires every orchestrator to rt.
func New(rt *provision.Runtime) *Controller {
	return &Controller{
		Runtime:   rt,
		Postgres:  database.NewPostgres(rt),
		MySQL:     database.NewMySQL(rt),
		MariaDB:   database.NewMariaDB(rt),
		MongoDB:   database.NewMongoDB(rt),
		RabbitMQ:  broker.NewRabbitMQ(rt),
		Redis:     cache.NewRedis(rt),
		Storage:   storage.New(rt),
		Domains:   domain.New(rt),
		Workloads: workload.NewManager(rt),
	}
}

// NewFromClients validates cfg and builds a Controller over clients.
func NewFromClients(clients *client.Clients, cfg provision.Config) (*Controller, error) {
	if clients == nil {
		return nil, fmt.Errorf("kubernetes clients are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provisioning config: %w", err)
	}
	return New(provision.NewRuntime(clients, cfg)), nil
}
