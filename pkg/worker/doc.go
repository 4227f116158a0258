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

// Package worker consumes resource management messages from the broker
// queues and dispatches them to the resource family orchestrators.
//
// A message names an action, a resource type and instance, and carries the
// request document under "config":
//
//	{"action":"create","type":"database","instance":"postgresql",
//	 "name":"orders","callback":"https://platform/v1/callback",
//	 "config":{"serverName":"orders","engineVersion":"14",...}}
//
// Messages flagged "managed": false and unsupported combinations are
// acknowledged without work. When a callback URL is present the outcome
// is posted to it as {status, logs, result}.
package worker
