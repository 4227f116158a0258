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

// Package provision holds the types shared by the lifecycle orchestrators.
//
// Each resource family lives in its own sub-package (database, broker,
// storage, domain, workload) and composes the same collaborators through a
// Runtime: the template loader, the applier and the credential poller.
//
// Every operation runs through a Lifecycle:
//
//	Absent -> Creating -> Ready -> Updating -> Ready -> Deleting -> Absent
//
// with Failed reachable from Creating, Updating and Deleting. Restarts,
// resizes and domain attachment are updates; detachment is a delete.
package provision
