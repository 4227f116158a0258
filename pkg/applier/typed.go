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

package applier

import (
	"context"
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/cloud-agnost/provisioner/pkg/manifest"
)

// typedClient is the subset of a generated client-go typed client used here.
type typedClient[T any] interface {
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Update(ctx context.Context, obj T, opts metav1.UpdateOptions) (T, error)
	Get(ctx context.Context, name string, opts metav1.GetOptions) (T, error)
	Patch(ctx context.Context, name string, pt types.PatchType, data []byte, opts metav1.PatchOptions, subresources ...string) (T, error)
	Delete(ctx context.Context, name string, opts metav1.DeleteOptions) error
}

type object[E any] interface {
	*E
	metav1.Object
	runtime.Object
}

func applyTyped[E any, T object[E]](ctx context.Context, c typedClient[T], d *manifest.Descriptor, op Operation) error {
	switch op {
	case OpDelete:
		return c.Delete(ctx, d.Name(), metav1.DeleteOptions{})

	case OpPatch:
		data, err := patchBody(d)
		if err != nil {
			return err
		}
		_, err = c.Patch(ctx, d.Name(), types.MergePatchType, data, metav1.PatchOptions{})
		return err
	}

	obj := T(new(E))
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(d.Object.Object, obj); err != nil {
		return fmt.Errorf("failed to convert %s: %w", d.Ref(), err)
	}

	switch op {
	case OpCreate:
		_, err := c.Create(ctx, obj, metav1.CreateOptions{})
		return err
	case OpReplace:
		current, err := c.Get(ctx, d.Name(), metav1.GetOptions{})
		if err != nil {
			return err
		}
		obj.SetResourceVersion(current.GetResourceVersion())
		_, err = c.Update(ctx, obj, metav1.UpdateOptions{})
		return err
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func applyDynamic(ctx context.Context, c dynamic.ResourceInterface, d *manifest.Descriptor, op Operation) error {
	switch op {
	case OpCreate:
		_, err := c.Create(ctx, d.Object, metav1.CreateOptions{})
		return err
	case OpPatch:
		data, err := patchBody(d)
		if err != nil {
			return err
		}
		_, err = c.Patch(ctx, d.Name(), types.MergePatchType, data, metav1.PatchOptions{})
		return err
	case OpReplace:
		current, err := c.Get(ctx, d.Name(), metav1.GetOptions{})
		if err != nil {
			return err
		}
		obj := d.Object.DeepCopy()
		obj.SetResourceVersion(current.GetResourceVersion())
		_, err = c.Update(ctx, obj, metav1.UpdateOptions{})
		return err
	case OpDelete:
		return c.Delete(ctx, d.Name(), metav1.DeleteOptions{})
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// patchBody renders the descriptor as a merge patch. Type and identity
// fields are dropped so the body carries only what the caller set.
func patchBody(d *manifest.Descriptor) ([]byte, error) {
	body := runtime.DeepCopyJSON(d.Object.Object)
	delete(body, "apiVersion")
	delete(body, "kind")

	if meta, ok := body["metadata"].(map[string]any); ok {
		delete(meta, "name")
		delete(meta, "namespace")
		if len(meta) == 0 {
			delete(body, "metadata")
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch for %s: %w", d.Ref(), err)
	}
	return data, nil
}

// Sparse returns a descriptor of the same type and identity as d with an
// empty body, for building minimal merge patches.
func Sparse(d *manifest.Descriptor) *manifest.Descriptor {
	obj := &unstructured.Unstructured{Object: map[string]any{}}
	obj.SetGroupVersionKind(d.GroupVersionKind())
	obj.SetName(d.Name())
	obj.SetNamespace(d.Namespace())
	return &manifest.Descriptor{Kind: d.Kind, Object: obj}
}
