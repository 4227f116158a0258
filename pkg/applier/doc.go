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

// Package applier executes manifest descriptors against the control plane.
//
// Apply dispatches on the descriptor Kind: built-in kinds use the typed
// clientset, operator custom resources use the dynamic client. Unsupported
// kinds are skipped with a log line instead of failing, so a template may
// carry objects this version does not special-case.
//
// ApplyAll runs a batch strictly in order under one of three policies:
//
//   - FailFast: the first failure aborts the batch
//   - Degrade: only failures on critical kinds (database and broker
//     clusters) abort; others are logged and the batch continues
//   - Tolerate: every descriptor is attempted; failures are joined
//
// Deletes treat a missing object as success.
package applier
