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

// Package manifest loads parameterizable resource templates.
//
// A template is a multi-document YAML stream; document order is dependency
// order (a Secret precedes the resource that references it). Load returns one
// Descriptor per document. Orchestrators override names and sizes on the
// returned descriptors before handing them to the applier, which rejects any
// descriptor whose name still contains a {{placeholder}}.
//
// Every descriptor carries a Kind from a closed set. Objects outside that set
// parse as KindUnsupported and are skipped, not rejected, at apply time.
package manifest
