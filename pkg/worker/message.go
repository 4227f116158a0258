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

package worker

import (
	"encoding/json"
	"time"

	"github.com/cloud-agnost/provisioner/pkg/controller"
)

// Resource types carried by a Message.
const (
	TypeDatabase   = "database"
	TypeQueue      = "queue"
	TypeCache      = "cache"
	TypeStorage    = "storage"
	TypeDomain     = "domain"
	TypeDeployment = "deployment"
)

// Instances within a resource type.
const (
	InstancePostgres = "postgresql"
	InstanceMySQL    = "mysql"
	InstanceMariaDB  = "mariadb"
	InstanceMongoDB  = "mongodb"
	InstanceRedis    = "redis"
	InstanceRabbitMQ = "rabbitmq"
	InstanceMinio    = "minio"
)

// Actions carried by a Message.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionRestart = "restart"
	ActionResize  = "resize"
	ActionAttach  = "attach"
	ActionDetach  = "detach"
)

// Report statuses.
const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Message is one resource management request read from a queue.
type Message struct {
	Action   string          `json:"action"`
	Type     string          `json:"type"`
	Instance string          `json:"instance,omitempty"`
	Name     string          `json:"name,omitempty"`
	Managed  *bool           `json:"managed,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
	Callback string          `json:"callback,omitempty"`
}

// IsManaged reports whether the provisioner owns the resource. An absent
// flag means managed.
func (m Message) IsManaged() bool {
	return m.Managed == nil || *m.Managed
}

// route is the dispatch key. Domains and deployments have no instance.
func (m Message) route() string {
	switch m.Type {
	case TypeDomain, TypeDeployment:
		return m.Type + "/" + m.Action
	default:
		return m.Type + "/" + m.Instance + "/" + m.Action
	}
}

// LogEntry is one line of a callback report.
type LogEntry struct {
	StartedAt time.Time `json:"startedAt"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// Report is posted to the message callback once handling ends.
type Report struct {
	Status string     `json:"status"`
	Logs   []LogEntry `json:"logs"`
	Result any        `json:"result,omitempty"`
}

// Restart modes for deployments.
const (
	RestartRollout = controller.RestartRollout
	RestartScale   = controller.RestartScale
)
