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

// Package cli implements the provisioner command-line interface.
//
// # Commands
//
// serve - Run the HTTP API:
//
//	provisioner serve [--port 8080] [--no-worker]
//
// Starts the API server. When QUEUE_URL or QUEUE_HOST is set the resource
// management worker runs in the same process.
//
// worker - Consume resource management messages:
//
//	provisioner worker
//
// enqueue - Publish one message for the worker:
//
//	provisioner enqueue -f message.yaml
//
// templates - Inspect the embedded manifest templates:
//
//	provisioner templates list
//	provisioner templates show postgresql [--raw]
//
// Lifecycle verbs read a request document and print the result:
//
//	provisioner postgres create|update|delete|restart -f request.yaml
//	provisioner mysql create|update|delete -f request.yaml
//	provisioner mariadb create|update|delete -f request.yaml
//	provisioner mongodb create|update|delete -f request.yaml
//	provisioner redis create|delete -f request.yaml
//	provisioner rabbitmq create|update|delete|restart -f request.yaml
//	provisioner storage resize -f request.yaml
//	provisioner domain attach|detach -f request.yaml
//	provisioner deployment restart -f request.yaml
//
// Request documents are JSON or YAML, loaded from a file path, an
// HTTP/HTTPS URL or a ConfigMap URI (cm://namespace/name).
//
// # Global Flags
//
//	--log-level     debug, info, warn, error (env LOG_LEVEL)
//	--kubeconfig    kubeconfig path (env KUBECONFIG)
//	--namespace, -n target namespace (env NAMESPACE)
//
// Lifecycle commands also take:
//
//	--output, -o   Output file path (default: stdout)
//	--format, -t   Output format: yaml, json, table (default: yaml)
package cli
