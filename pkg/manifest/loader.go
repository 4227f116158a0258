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

package manifest

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

// Template identifiers shipped with the provisioner.
const (
	TemplatePostgres         = "postgresql"
	TemplateMySQL            = "mysql"
	TemplateMariaDB          = "mariadb"
	TemplateMongoDB          = "mongodb"
	TemplateRedisStandalone  = "redis-standalone"
	TemplateRedisReplication = "redis-replication"
	TemplateBroker           = "rabbitmq-cluster"
	TemplateIssuer           = "certificate-issuer"
)

const (
	templateDir = "templates"
	templateExt = ".yaml"
)

//go:embed templates/*.yaml
var embedded embed.FS

// Loader reads multi-document manifest templates from a file system.
type Loader struct {
	fsys fs.FS
	dir  string
}

// NewLoader returns a Loader over the embedded templates.
func NewLoader() *Loader {
	return &Loader{fsys: embedded, dir: templateDir}
}

// NewLoaderFS returns a Loader reading <id>.yaml files from the root of fsys.
func NewLoaderFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, dir: "."}
}

// IDs lists the available template identifiers in sorted order.
func (l *Loader) IDs() ([]string, error) {
	entries, err := fs.ReadDir(l.fsys, l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), templateExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), templateExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Source returns the raw bytes of template id.
func (l *Loader) Source(id string) ([]byte, error) {
	p := path.Join(l.dir, id+templateExt)
	if id == "" || strings.ContainsAny(id, `/\`) || !fs.ValidPath(p) {
		return nil, cerrors.NewWithContext(cerrors.ErrCodeTemplateNotFound,
			"invalid template identifier", map[string]any{"template": id})
	}

	b, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cerrors.WrapWithContext(cerrors.ErrCodeTemplateNotFound,
				"template not found", err, map[string]any{"template": id})
		}
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, "failed to read template "+id, err)
	}
	return b, nil
}

// Load parses template id into descriptors, preserving document order.
// Each call returns fresh objects that the caller may mutate.
func (l *Loader) Load(id string) ([]*Descriptor, error) {
	b, err := l.Source(id)
	if err != nil {
		return nil, err
	}
	descs, err := Decode(b)
	if err != nil {
		var se *cerrors.StructuredError
		if errors.As(err, &se) {
			if se.Context == nil {
				se.Context = map[string]any{}
			}
			se.Context["template"] = id
		}
		return nil, err
	}
	return descs, nil
}

// Decode splits a multi-document YAML stream into descriptors.
// Empty documents are skipped.
func Decode(b []byte) ([]*Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))

	var descs []*Descriptor
	for index := 0; ; index++ {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, cerrors.WrapWithContext(cerrors.ErrCodeTemplateMalformed,
				"failed to parse template document", err, map[string]any{"document": index})
		}
		if len(doc) == 0 {
			continue
		}

		obj, err := toUnstructured(doc)
		if err != nil {
			return nil, cerrors.WrapWithContext(cerrors.ErrCodeTemplateMalformed,
				"template document is not a resource", err, map[string]any{"document": index})
		}
		descs = append(descs, NewDescriptor(obj))
	}
	return descs, nil
}

// toUnstructured round-trips through JSON so numbers land as int64/float64
// and apiVersion/kind are validated by the unstructured decoder.
func toUnstructured(doc map[string]any) (*unstructured.Unstructured, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	if obj.GetAPIVersion() == "" {
		return nil, fmt.Errorf("document %q has no apiVersion", obj.GetKind())
	}
	return obj, nil
}
