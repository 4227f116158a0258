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

// Package errors provides structured error types for the provisioner.
//
// Every failure that crosses a package boundary carries an ErrorCode so the
// HTTP layer and the queue worker can map it to a response status or a
// delivery outcome without string matching.
//
// Control-plane failures are classified with FromAPIStatus, which keeps the
// provider-reported status message in Context["detail"]:
//
//	if _, err := client.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
//	    return errors.FromAPIStatus("create failed", err)
//	}
package errors
