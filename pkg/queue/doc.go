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

// Package queue manages the process-wide message broker connection.
//
// A Manager is built once at startup with its Config and owns the single
// AMQP connection. Failed or dropped connections are retried after
// Config.ReconnectInterval while fewer than Config.MaxRetries consecutive
// attempts have failed; after that the fatal handler runs, which by default
// terminates the process. A successful connect resets the count and
// re-attaches every registered Consumer, since consumers do not survive the
// connection they were created on.
//
// Consumers read durable queues with a prefetch of one and manual
// acknowledgement. Publish writes persistent JSON messages.
package queue
