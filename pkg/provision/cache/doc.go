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

// Package cache orchestrates Redis deployments built from plain workload
// objects: a password secret, a service account, three config maps, the
// headless and client services, and one StatefulSet per role.
//
// A standalone deployment runs only the master. With read replicas enabled
// a second StatefulSet follows the first master pod and gets its own
// service. Delete always works from the replicated layout, so it clears
// both shapes.
package cache
