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

// Package serializer encodes and decodes provisioner payloads.
//
// # Formats
//
// JSON and YAML are supported for both directions. Table output flattens a
// value into sorted FIELD/VALUE rows for terminals and cannot be read back.
//
// # Writing
//
//	w := serializer.NewFileWriterOrStdout(serializer.FormatYAML, path)
//	defer w.Close()
//	err := w.Serialize(ctx, descriptor)
//
// An empty path writes to stdout. A path that cannot be created falls back
// to stdout with an error logged.
//
// # Reading
//
// FromFile loads a request document from a local path, an http(s) URL or a
// ConfigMap URI of the form cm://namespace/name:
//
//	req, err := serializer.FromFile[database.PostgresRequest](ctx, "db.yaml")
//
// The format of files and URLs follows the extension. ConfigMaps carry the
// document under a "request.yaml" or "request.json" key.
//
// # HTTP
//
// RespondJSON writes buffered JSON responses for handlers. Client performs
// outbound GET and JSON POST calls with pooled connections and bounded
// timeouts; the worker uses it for status callbacks.
package serializer
