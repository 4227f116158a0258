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

// Package broker orchestrates RabbitMQ clusters.
//
// A cluster is created together with one management user: a credential
// secret, the RabbitmqCluster itself, and the messaging-topology User and
// Permission objects that reference it. Every derived name comes from the
// naming package, so Delete rebuilds exactly what Create applied and removes
// it in reverse order.
//
// Updates read the live cluster, change the supplied fields and replace the
// whole object.
package broker
