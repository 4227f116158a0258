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

package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/k8s/client/clienttest"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

func mariadbRequest() MariaDBRequest {
	return MariaDBRequest{
		ServerName:   "blog",
		DatabaseName: "posts",
		Version:      "11.2.2",
		StorageSize:  "8Gi",
		Username:     "writer",
		Password:     "pw",
		RootPassword: "root-pw",
		Resources:    provision.Resources{CPURequest: "250m", MemoryLimit: "2Gi"},
	}
}

func TestMariaDBCreate(t *testing.T) {
	f := clienttest.New(nil)
	rec := f.Record()

	conn, err := NewMariaDB(newRuntime(f)).Create(context.Background(), mariadbRequest())
	require.NoError(t, err)
	assert.Equal(t, &provision.ConnectionDescriptor{Host: "blog.ns.svc.cluster.local", Username: "writer", Password: "pw"}, conn)
	assert.Equal(t, []string{"secrets", "mariadbs"}, rec.Resources("create"))

	secret, err := f.Typed.CoreV1().Secrets(ns).Get(context.Background(), "blog-credentials", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "pw", secret.StringData["password"])
	assert.Equal(t, "root-pw", secret.StringData["root-password"])

	server, err := f.Dynamic.Resource(clienttest.MariaDBGVR).Namespace(ns).Get(context.Background(), "blog", metav1.GetOptions{})
	require.NoError(t, err)
	obj := server.Object
	str := func(fields ...string) string {
		s, _, _ := unstructured.NestedString(obj, fields...)
		return s
	}
	assert.Equal(t, "posts", str("spec", "database"))
	assert.Equal(t, "writer", str("spec", "username"))
	assert.Equal(t, "11.2.2", str("spec", "image", "tag"))
	assert.Equal(t, "8Gi", str("spec", "volumeClaimTemplate", "resources", "requests", "storage"))
	assert.Equal(t, "blog-credentials", str("spec", "rootPasswordSecretKeyRef", "name"))
	assert.Equal(t, "blog-credentials", str("spec", "passwordSecretKeyRef", "name"))
	assert.Equal(t, "250m", str("spec", "resources", "requests", "cpu"))
	assert.Equal(t, "2Gi", str("spec", "resources", "limits", "memory"))
	assert.Equal(t, "256Mi", str("spec", "resources", "requests", "memory"), "unset fields keep template values")
}

func TestMariaDBCreateValidation(t *testing.T) {
	f := clienttest.New(nil)
	m := NewMariaDB(newRuntime(f))

	tests := []struct {
		name   string
		mutate func(*MariaDBRequest)
	}{
		{"bad name", func(r *MariaDBRequest) { r.ServerName = "Blog" }},
		{"no database", func(r *MariaDBRequest) { r.DatabaseName = "" }},
		{"bad version", func(r *MariaDBRequest) { r.Version = "latest" }},
		{"bad size", func(r *MariaDBRequest) { r.StorageSize = "lots" }},
		{"no root password", func(r *MariaDBRequest) { r.RootPassword = "" }},
		{"bad resources", func(r *MariaDBRequest) { r.Resources.CPULimit = "fast" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mariadbRequest()
			tt.mutate(&req)
			_, err := m.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidRequest))
		})
	}
	assert.Empty(t, f.Typed.Actions())
	assert.Empty(t, f.Dynamic.Actions())
}

func TestMariaDBCreateStopsWhenSecretFails(t *testing.T) {
	f := clienttest.New(nil)
	f.Typed.PrependReactor("create", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewInternalError(errors.New("boom"))
	})

	_, err := NewMariaDB(newRuntime(f)).Create(context.Background(), mariadbRequest())
	require.Error(t, err)
	assert.Empty(t, f.Dynamic.Actions())
}

func TestMariaDBUpdatePatch(t *testing.T) {
	live := clienttest.Object("mariadb.mmontes.io/v1alpha1", "MariaDB", ns, "blog", map[string]any{
		"image": map[string]any{"repository": "mariadb", "tag": "11.0.3"},
	})
	f := clienttest.New(nil, live)

	var body []byte
	f.Dynamic.PrependReactor("patch", "mariadbs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		body = action.(k8stesting.PatchAction).GetPatch()
		return false, nil, nil
	})

	conn, err := NewMariaDB(newRuntime(f)).Update(context.Background(), MariaDBUpdate{ServerName: "blog", Version: "11.2.2"})
	require.NoError(t, err)
	assert.Equal(t, "blog.ns.svc.cluster.local", conn.Host)

	var patch map[string]any
	require.NoError(t, json.Unmarshal(body, &patch))
	assert.Equal(t, map[string]any{
		"spec": map[string]any{"image": map[string]any{"tag": "11.2.2"}},
	}, patch)

	server, err := f.Dynamic.Resource(clienttest.MariaDBGVR).Namespace(ns).Get(context.Background(), "blog", metav1.GetOptions{})
	require.NoError(t, err)
	repo, _, _ := unstructured.NestedString(server.Object, "spec", "image", "repository")
	assert.Equal(t, "mariadb", repo)
}

func TestMariaDBUpdateRejectsEmpty(t *testing.T) {
	f := clienttest.New(nil)
	_, err := NewMariaDB(newRuntime(f)).Update(context.Background(), MariaDBUpdate{ServerName: "blog"})
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidRequest))
	assert.Empty(t, f.Dynamic.Actions())
}

func TestMariaDBDeleteReversesCreateOrder(t *testing.T) {
	f := clienttest.New(nil)
	rec := f.Record()
	m := NewMariaDB(newRuntime(f))

	_, err := m.Create(context.Background(), mariadbRequest())
	require.NoError(t, err)
	require.NoError(t, m.Delete(context.Background(), "blog"))
	assert.Equal(t, []string{"mariadbs", "secrets"}, rec.Resources("delete"))

	// Deleting again is a no-op.
	require.NoError(t, m.Delete(context.Background(), "blog"))
}
