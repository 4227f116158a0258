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

// Package domain attaches a custom TLS domain to the platform ingresses.
//
// Attach creates a cert-manager ACME issuer and rewrites each ingress with
// the domain host, a TLS block and redirect annotations. Detach undoes both.
// Neither is transactional: a failure midway leaves earlier ingresses
// changed and is returned to the caller.
package domain
