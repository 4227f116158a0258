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
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cloud-agnost/provisioner/pkg/defaults"
	"github.com/cloud-agnost/provisioner/pkg/naming"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvQueueCount        = "GENERAL_QUEUE_COUNT"
	EnvDevelopmentSuffix = "QUEUE_DEVELOPMENT_SUFFIX"
	EnvMasterToken       = "MASTER_TOKEN"
)

// Config controls which queues the worker consumes and how it reports.
type Config struct {
	// QueueCount is the number of resource management queues.
	QueueCount int
	// DevelopmentSuffix is appended to every queue name.
	DevelopmentSuffix string
	// MasterToken is sent as the Authorization header of callbacks.
	MasterToken string
	// HandlerTimeout bounds one message.
	HandlerTimeout time.Duration
	// CallbackTimeout bounds one status report.
	CallbackTimeout time.Duration
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		QueueCount:      defaults.QueueCount,
		HandlerTimeout:  defaults.ProvisionHandlerTimeout,
		CallbackTimeout: defaults.CallbackTimeout,
	}
}

// ConfigFromEnv overlays the environment on DefaultConfig.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvQueueCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", EnvQueueCount, v, err)
		}
		cfg.QueueCount = n
	}
	cfg.DevelopmentSuffix = os.Getenv(EnvDevelopmentSuffix)
	cfg.MasterToken = os.Getenv(EnvMasterToken)
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.QueueCount < 1 {
		return fmt.Errorf("queue count must be at least 1, got %d", c.QueueCount)
	}
	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("handler timeout must be positive, got %s", c.HandlerTimeout)
	}
	if c.CallbackTimeout <= 0 {
		return fmt.Errorf("callback timeout must be positive, got %s", c.CallbackTimeout)
	}
	return nil
}

// Queues returns the names of every resource management queue.
func (c Config) Queues() []string {
	queues := make([]string, 0, c.QueueCount)
	for i := 1; i <= c.QueueCount; i++ {
		queues = append(queues, naming.QueueName(i, c.DevelopmentSuffix))
	}
	return queues
}
