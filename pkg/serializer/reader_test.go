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
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

type testRequest struct {
	ClusterName  string `json:"clusterName"`
	ReplicaCount int    `json:"replicaCount"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestFromFile_YAMLUsesJSONNames(t *testing.T) {
	path := writeFile(t, "req.yaml", "clusterName: orders\nreplicaCount: 3\n")

	req, err := FromFile[testRequest](context.Background(), path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if req.ClusterName != "orders" || req.ReplicaCount != 3 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestFromFile_JSON(t *testing.T) {
	path := writeFile(t, "req.json", `{"clusterName":"orders","replicaCount":1}`)

	req, err := FromFile[testRequest](context.Background(), path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if req.ClusterName != "orders" {
		t.Errorf("ClusterName = %q", req.ClusterName)
	}
}

func TestFromFile_UnknownFieldRejected(t *testing.T) {
	for name, content := range map[string]string{
		"req.json": `{"clusterName":"orders","bogus":1}`,
		"req.yaml": "clusterName: orders\nbogus: 1\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, content)
			if _, err := FromFile[testRequest](context.Background(), path); err == nil {
				t.Error("expected error for unknown field")
			}
		})
	}
}

// Key matching follows encoding/json, which folds case.
func TestFromFile_KeyCaseFolded(t *testing.T) {
	path := writeFile(t, "req.yaml", "clustername: orders\n")

	req, err := FromFile[testRequest](context.Background(), path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if req.ClusterName != "orders" {
		t.Errorf("ClusterName = %q", req.ClusterName)
	}
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile[testRequest](context.Background(), filepath.Join(t.TempDir(), "none.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromFile_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/req.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("clusterName: remote\nreplicaCount: 2\n"))
	}))
	defer srv.Close()

	client := NewClient(WithHTTPClient(srv.Client()))
	req, err := FromFile[testRequest](context.Background(), srv.URL+"/req.yaml", WithReadClient(client))
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if req.ClusterName != "remote" || req.ReplicaCount != 2 {
		t.Errorf("unexpected request: %+v", req)
	}

	if _, err := FromFile[testRequest](context.Background(), srv.URL+"/other.yaml", WithReadClient(client)); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFromFile_ConfigMap(t *testing.T) {
	cs := fake.NewClientset(
		&corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Namespace: "ops", Name: "yaml-req"},
			Data: map[string]string{
				"request.yaml": "clusterName: from-yaml\nreplicaCount: 1\n",
				"request.json": `{"clusterName":"from-json"}`,
			},
		},
		&corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Namespace: "ops", Name: "json-req"},
			Data:       map[string]string{"request.json": `{"clusterName":"from-json"}`},
		},
		&corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Namespace: "ops", Name: "empty"},
		},
	)
	ctx := context.Background()

	req, err := FromFile[testRequest](ctx, "cm://ops/yaml-req", WithKubeClient(cs))
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if req.ClusterName != "from-yaml" {
		t.Errorf("ClusterName = %q, want from-yaml", req.ClusterName)
	}

	req, err = FromFile[testRequest](ctx, "cm://ops/json-req", WithKubeClient(cs))
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if req.ClusterName != "from-json" {
		t.Errorf("ClusterName = %q, want from-json", req.ClusterName)
	}

	_, err = FromFile[testRequest](ctx, "cm://ops/empty", WithKubeClient(cs))
	if err == nil || !strings.Contains(err.Error(), "request.yaml") {
		t.Errorf("expected missing key error, got %v", err)
	}

	if _, err := FromFile[testRequest](ctx, "cm://ops/absent", WithKubeClient(cs)); err == nil {
		t.Error("expected error for missing ConfigMap")
	}
}

func TestParseConfigMapURI(t *testing.T) {
	tests := []struct {
		uri     string
		ns      string
		name    string
		wantErr bool
	}{
		{"cm://ops/req", "ops", "req", false},
		{"cm://ops", "", "", true},
		{"cm:///req", "", "", true},
		{"cm://ops/", "", "", true},
		{"cm://ops/a/b", "", "", true},
		{"ops/req", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			ns, name, err := parseConfigMapURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfigMapURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if ns != tt.ns || name != tt.name {
				t.Errorf("got %s/%s, want %s/%s", ns, name, tt.ns, tt.name)
			}
		})
	}
}

func TestNewReader_RejectsTable(t *testing.T) {
	if _, err := NewReader(FormatTable, strings.NewReader("")); err == nil {
		t.Error("expected error for table format")
	}
	if _, err := NewReader(Format("xml"), strings.NewReader("")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestReader_CloseNil(t *testing.T) {
	var r *Reader
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil reader: %v", err)
	}
}
