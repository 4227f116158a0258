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

// Package server hosts the provisioner HTTP API.
//
// A Server wraps net/http with the middleware chain every route shares:
//
//   - API version negotiation from the vendor Accept media type
//   - request IDs, taken from X-Request-Id or generated
//   - panic recovery
//   - token bucket rate limiting (golang.org/x/time/rate)
//   - request body size limits
//   - request logging and Prometheus metrics
//
// Routes are Go 1.22 mux patterns, method included:
//
//	s := server.New(
//	    server.WithName("provisionerd"),
//	    server.WithVersion(version),
//	    server.WithHandler(map[string]http.HandlerFunc{
//	        "POST /v1/databases/postgresql": h.CreatePostgres,
//	    }),
//	    server.WithReadinessCheck("queue", queueConnected),
//	)
//	if err := s.Run(ctx); err != nil {
//	    return err
//	}
//
// System endpoints bypass the chain:
//
//   - GET /health: liveness, always 200 while the process serves
//   - GET /ready: 200 once started and every readiness check passes
//   - GET /metrics: Prometheus exposition
//
// Errors are written as ErrorResponse with a stable code, the request ID
// and a retryable hint. WriteErrorFromErr maps a StructuredError code to
// the HTTP status.
//
// Environment:
//
//   - PORT: listen port (default 8080)
//   - SHUTDOWN_TIMEOUT_SECONDS: graceful drain window
package server
