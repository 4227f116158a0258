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

package provision

import (
	"fmt"
	"os"
	"time"

	"github.com/cloud-agnost/provisioner/pkg/defaults"
)

// EnvNamespace names the environment variable holding the target namespace.
const EnvNamespace = "NAMESPACE"

// Config carries the settings shared by every orchestrator.
type Config struct {
	// Namespace receives every namespaced resource the orchestrators create.
	Namespace string

	// PollInterval and PollTimeout bound credential readiness polling.
	PollInterval time.Duration
	PollTimeout  time.Duration

	// SettleInterval is the pause between dependent steps of a restart
	// or volume resize.
	SettleInterval time.Duration
}

// DefaultConfig returns a Config populated with defaults and NAMESPACE.
func DefaultConfig() Config {
	ns := os.Getenv(EnvNamespace)
	if ns == "" {
		ns = "default"
	}
	return Config{
		Namespace:      ns,
		PollInterval:   defaults.CredentialPollInterval,
		PollTimeout:    defaults.CredentialPollTimeout,
		SettleInterval: defaults.RestartSettleDelay,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := ValidateName("namespace", c.Namespace); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollTimeout < c.PollInterval {
		return fmt.Errorf("poll timeout %s is shorter than poll interval %s", c.PollTimeout, c.PollInterval)
	}
	if c.SettleInterval < 0 {
		return fmt.Errorf("settle interval must not be negative, got %s", c.SettleInterval)
	}
	return nil
}
