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

// Package api binds the provisioning orchestrators to HTTP routes and runs
// the provisionerd server.
//
// Every route takes a JSON body, or YAML when Content-Type says so:
//
//	POST   /v1/databases/postgresql          create, 201 with connection details
//	PUT    /v1/databases/postgresql          update
//	DELETE /v1/databases/postgresql          delete
//	POST   /v1/databases/postgresql/restart  rolling restart
//	POST   /v1/databases/mysql               create
//	PUT    /v1/databases/mysql               update
//	DELETE /v1/databases/mysql               delete, purgeData drops volumes
//	POST   /v1/databases/mariadb             create
//	PUT    /v1/databases/mariadb             update image tag or resources
//	DELETE /v1/databases/mariadb             delete
//	POST   /v1/databases/mongodb             create
//	PUT    /v1/databases/mongodb             update
//	DELETE /v1/databases/mongodb             delete
//	POST   /v1/caches/redis                  create, optionally with read replicas
//	DELETE /v1/caches/redis                  delete, purgeData drops volumes
//	POST   /v1/brokers/rabbitmq              create
//	PUT    /v1/brokers/rabbitmq              update
//	DELETE /v1/brokers/rabbitmq              delete
//	POST   /v1/brokers/rabbitmq/restart      rolling restart
//	POST   /v1/storage/resize                expand volumes and recreate pods
//	POST   /v1/domains                       attach a custom TLS domain
//	DELETE /v1/domains                       detach it
//	POST   /v1/deployments/restart           scale to zero and back
//	POST   /v1/deployments/rolloutrestart    rollout restart
//
// When a message queue is configured, Serve also runs the resource
// management worker and adds POST /v1/resources, which enqueues a message
// for it and responds 202.
//
// Failures use the server package ErrorResponse. A StructuredError code
// selects the status: INVALID_REQUEST is 400, NOT_FOUND 404, CONFLICT 409,
// APPLY_FAILED 502 and POLL_TIMEOUT 504.
//
// Version information is set at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/cloud-agnost/provisioner/pkg/api.version=1.0.0'"
package api
