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
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

// Descriptor is one control-plane object ready to be parameterized and applied.
type Descriptor struct {
	Kind   Kind
	Object *unstructured.Unstructured
}

// NewDescriptor wraps obj, deriving the Kind from its apiVersion and kind.
func NewDescriptor(obj *unstructured.Unstructured) *Descriptor {
	return &Descriptor{
		Kind:   ParseKind(obj.GroupVersionKind().GroupKind()),
		Object: obj,
	}
}

func (d *Descriptor) Name() string      { return d.Object.GetName() }
func (d *Descriptor) Namespace() string { return d.Object.GetNamespace() }
func (d *Descriptor) RawKind() string   { return d.Object.GetKind() }

func (d *Descriptor) SetName(name string)    { d.Object.SetName(name) }
func (d *Descriptor) SetNamespace(ns string) { d.Object.SetNamespace(ns) }

// GroupVersionKind returns the object's GVK as written in the template.
func (d *Descriptor) GroupVersionKind() schema.GroupVersionKind {
	return d.Object.GroupVersionKind()
}

// Resource returns the dynamic client resource for custom kinds.
// The boolean is false for built-in and unsupported kinds.
func (d *Descriptor) Resource() (schema.GroupVersionResource, bool) {
	gvk := d.GroupVersionKind()
	c, ok := customKinds[gvk.GroupKind()]
	if !ok {
		return schema.GroupVersionResource{}, false
	}
	return gvk.GroupVersion().WithResource(c.resource), true
}

// Set stores value at the nested field path, creating intermediate maps.
// Go integer types are widened to int64 so the object stays JSON-compatible.
func (d *Descriptor) Set(value any, fields ...string) error {
	if err := unstructured.SetNestedField(d.Object.Object, jsonValue(value), fields...); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeTemplateMalformed,
			fmt.Sprintf("cannot set %s on %s %q", strings.Join(fields, "."), d.RawKind(), d.Name()), err)
	}
	return nil
}

// String returns the string at the nested field path, or "" if absent.
func (d *Descriptor) String(fields ...string) string {
	s, _, _ := unstructured.NestedString(d.Object.Object, fields...)
	return s
}

// Int returns the integer at the nested field path and whether it was present.
func (d *Descriptor) Int(fields ...string) (int64, bool) {
	v, found, err := unstructured.NestedInt64(d.Object.Object, fields...)
	if err != nil {
		return 0, false
	}
	return v, found
}

// EachItem calls fn on every object in the list at the nested field path
// and writes the edited list back. A missing list is left alone.
func (d *Descriptor) EachItem(fn func(i int, item *Descriptor) error, fields ...string) error {
	path := strings.Join(fields, ".")
	items, found, err := unstructured.NestedSlice(d.Object.Object, fields...)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeTemplateMalformed,
			fmt.Sprintf("%s on %s %q is not a list", path, d.RawKind(), d.Name()), err)
	}
	if !found {
		return nil
	}
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return cerrors.NewWithContext(cerrors.ErrCodeTemplateMalformed,
				fmt.Sprintf("%s[%d] on %s %q is not an object", path, i, d.RawKind(), d.Name()),
				map[string]any{"field": path, "index": i})
		}
		holder := &Descriptor{Kind: KindUnsupported, Object: &unstructured.Unstructured{Object: m}}
		if err := fn(i, holder); err != nil {
			return err
		}
		items[i] = holder.Object.Object
	}
	return d.Set(items, fields...)
}

// Resolved verifies the descriptor carries a concrete name with no
// unresolved template placeholders.
func (d *Descriptor) Resolved() error {
	name := d.Name()
	if name == "" {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
			"descriptor has no name", map[string]any{"kind": d.RawKind()})
	}
	if strings.Contains(name, "{{") || strings.Contains(name, "}}") {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
			"descriptor name has unresolved placeholder",
			map[string]any{"kind": d.RawKind(), "name": name})
	}
	return nil
}

// DeepCopy returns an independent copy of d.
func (d *Descriptor) DeepCopy() *Descriptor {
	return &Descriptor{Kind: d.Kind, Object: d.Object.DeepCopy()}
}

// Ref returns a short "Kind namespace/name" reference for logs and reports.
func (d *Descriptor) Ref() string {
	if ns := d.Namespace(); ns != "" {
		return fmt.Sprintf("%s %s/%s", d.RawKind(), ns, d.Name())
	}
	return fmt.Sprintf("%s %s", d.RawKind(), d.Name())
}

// Find returns the first descriptor of kind k, or nil.
func Find(descs []*Descriptor, k Kind) *Descriptor {
	for _, d := range descs {
		if d.Kind == k {
			return d
		}
	}
	return nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
