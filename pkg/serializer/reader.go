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

package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
)

// Reader decodes JSON or YAML from an io.Reader. Table format is write-only.
type Reader struct {
	format Format
	input  io.Reader
	closer io.Closer
}

// NewReader creates a Reader over input. If input implements io.Closer it is
// closed by Reader.Close.
func NewReader(format Format, input io.Reader) (*Reader, error) {
	if format.IsUnknown() {
		return nil, fmt.Errorf("unknown format: %s", format)
	}
	if format == FormatTable {
		return nil, fmt.Errorf("table format does not support deserialization")
	}

	r := &Reader{
		format: format,
		input:  input,
	}
	if closer, ok := input.(io.Closer); ok {
		r.closer = closer
	}
	return r, nil
}

// Deserialize decodes the input into v, which must be a pointer. Unknown
// fields are rejected.
func (r *Reader) Deserialize(v any) error {
	if r == nil {
		return fmt.Errorf("reader is nil")
	}
	if r.input == nil {
		return fmt.Errorf("input source is nil")
	}

	switch r.format {
	case FormatJSON:
		decoder := json.NewDecoder(r.input)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
		return nil

	case FormatYAML:
		// Decoded through JSON so that json tags name the keys.
		var doc any
		if err := yaml.NewDecoder(r.input).Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported format for deserialization: %s", r.format)
	}
}

// Close releases the underlying source. Safe to call on a nil Reader and
// more than once.
func (r *Reader) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ReadOption configures FromFile.
type ReadOption func(*readOptions)

type readOptions struct {
	kube client.Interface
	http *Client
}

// WithKubeClient sets the clientset used for ConfigMap URIs. Without it the
// process-wide client bundle is used.
func WithKubeClient(c client.Interface) ReadOption {
	return func(o *readOptions) {
		o.kube = c
	}
}

// WithReadClient sets the HTTP client used for http(s) URLs.
func WithReadClient(c *Client) ReadOption {
	return func(o *readOptions) {
		o.http = c
	}
}

// FromFile reads and decodes a document into T from a local path, an
// http(s) URL or a ConfigMap URI (cm://namespace/name).
func FromFile[T any](ctx context.Context, path string, opts ...ReadOption) (*T, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		format Format
		data   []byte
		err    error
	)
	switch {
	case strings.HasPrefix(path, ConfigMapURIScheme):
		format, data, err = readConfigMap(ctx, path, o.kube)
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		if o.http == nil {
			o.http = NewClient()
		}
		format = FormatFromPath(path)
		data, err = o.http.Get(ctx, path)
	default:
		format = FormatFromPath(path)
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	slog.Debug("loaded document", "path", path, "format", string(format), "size", len(data))

	return Decode[T](format, data)
}

// Decode decodes data in format into a new T.
func Decode[T any](format Format, data []byte) (*T, error) {
	r, err := NewReader(format, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var v T
	if err := r.Deserialize(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
