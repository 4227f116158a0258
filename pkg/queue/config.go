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
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cloud-agnost/provisioner/pkg/defaults"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvURL               = "QUEUE_URL"
	EnvUsername          = "QUEUE_USERNAME"
	EnvPassword          = "QUEUE_PASSWORD"
	EnvHost              = "QUEUE_HOST"
	EnvRetryCount        = "QUEUE_RETRY_COUNT"
	EnvReconnectInterval = "QUEUE_RECONNECT_INTERVAL"
)

// Config holds broker connection settings.
type Config struct {
	// URL is a complete amqp:// address. When set it wins over the parts.
	URL string

	Username string
	Password string
	Host     string

	// MaxRetries is the number of consecutive reconnect attempts made
	// before the connection is declared unrecoverable.
	MaxRetries int

	// ReconnectInterval is the pause before each reconnect attempt.
	ReconnectInterval time.Duration

	// Prefetch limits unacknowledged deliveries per consumer.
	Prefetch int
}

// DefaultConfig returns a Config with retry defaults and no address.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        defaults.QueueMaxRetries,
		ReconnectInterval: defaults.QueueReconnectInterval,
		Prefetch:          defaults.QueuePrefetch,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by the QUEUE_* variables.
// QUEUE_RECONNECT_INTERVAL accepts a duration ("3s") or milliseconds ("3000").
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.URL = os.Getenv(EnvURL)
	cfg.Username = os.Getenv(EnvUsername)
	cfg.Password = os.Getenv(EnvPassword)
	cfg.Host = os.Getenv(EnvHost)

	if v := os.Getenv(EnvRetryCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", EnvRetryCount, v, err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv(EnvReconnectInterval); v != "" {
		d, err := ParseInterval(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", EnvReconnectInterval, v, err)
		}
		cfg.ReconnectInterval = d
	}
	return cfg, nil
}

// ParseInterval parses a Go duration or a plain integer of milliseconds.
func ParseInterval(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// Address returns the broker URL, composing it from the parts when URL is empty.
func (c Config) Address() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{Scheme: "amqp", Host: c.Host}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

// Redacted returns Address with the password masked, for logging.
func (c Config) Redacted() string {
	u, err := url.Parse(c.Address())
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.URL == "" && c.Host == "" {
		return fmt.Errorf("either %s or %s must be set", EnvURL, EnvHost)
	}
	if _, err := amqp.ParseURI(c.Address()); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", c.Redacted(), err)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive, got %s", c.ReconnectInterval)
	}
	if c.Prefetch < 1 {
		return fmt.Errorf("prefetch must be at least 1, got %d", c.Prefetch)
	}
	return nil
}
