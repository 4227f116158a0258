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

package defaults

import "time"

// Readiness polling for asynchronously materialized artifacts.
const (
	// CredentialPollInterval is the delay between credential lookups.
	CredentialPollInterval = 2 * time.Second

	// CredentialPollTimeout bounds how long a credential may take to appear.
	CredentialPollTimeout = 10 * time.Minute

	// RestartSettleDelay is the pause between scale-down and scale-up.
	RestartSettleDelay = 5 * time.Second
)

// Queue connection resilience.
const (
	// QueueReconnectInterval is the delay before a reconnect attempt.
	QueueReconnectInterval = 3 * time.Second

	// QueueMaxRetries is the number of consecutive failures tolerated
	// before the connection manager gives up.
	QueueMaxRetries = 10

	// QueuePrefetch limits unacknowledged deliveries per consumer.
	QueuePrefetch = 1

	// QueueCount is the default number of general work queues.
	QueueCount = 1
)

// Handler timeouts for HTTP request processing.
const (
	// ProvisionHandlerTimeout bounds a synchronous provisioning request.
	// Covers one full credential poll plus apply overhead.
	ProvisionHandlerTimeout = CredentialPollTimeout + time.Minute

	// MutateHandlerTimeout bounds update, delete and restart requests.
	MutateHandlerTimeout = 2 * time.Minute
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Must outlive ProvisionHandlerTimeout.
	ServerWriteTimeout = ProvisionHandlerTimeout + 30*time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// Kubernetes timeouts for K8s API operations.
const (
	// K8sRequestTimeout is the timeout for a single control-plane call.
	K8sRequestTimeout = 30 * time.Second

	// K8sCleanupTimeout is the timeout for delete and detach operations.
	K8sCleanupTimeout = 60 * time.Second
)

// CLI timeouts for command-line operations.
const (
	// CLIOperationTimeout is the default timeout for one-shot CLI commands.
	CLIOperationTimeout = 15 * time.Minute
)

// HTTP client timeouts for outbound requests.
const (
	// HTTPClientTimeout is the total timeout for one outbound request.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the TCP connection timeout.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the TLS handshake timeout.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the time to wait for response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is how long idle connections stay pooled.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the TCP keep-alive interval.
	HTTPKeepAlive = 30 * time.Second

	// CallbackTimeout bounds one status report to a work item callback.
	CallbackTimeout = 10 * time.Second
)
