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

// Package database orchestrates managed database clusters.
//
// Postgres drives the Zalando postgres-operator: a single cluster resource is
// applied and the operator-generated superuser secret is polled until it
// appears. MySQL drives the MySQL operator's InnoDBCluster together with the
// service account and root secret it references; the caller supplies the root
// credential so nothing is polled. MariaDB and MongoDB follow the same
// shape: a caller-supplied password secret applied ahead of the operator's
// server or replica set resource.
//
// Updates are minimal merge patches carrying only the fields the caller set.
// Deletes remove resources in reverse creation order and tolerate objects
// that are already gone.
package database
