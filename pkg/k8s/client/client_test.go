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

package client

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildClients_PathResolution(t *testing.T) {
	tests := []struct {
		name          string
		kubeconfigArg string
		kubeconfigEnv string
		errorContains string
	}{
		{
			name:          "explicit invalid path",
			kubeconfigArg: "/nonexistent/path/to/kubeconfig",
			errorContains: "failed to build kube config",
		},
		{
			name:          "env var with invalid path",
			kubeconfigEnv: "/nonexistent/env/kubeconfig",
			errorContains: "failed to build kube config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KUBECONFIG", tt.kubeconfigEnv)

			_, err := BuildClients(tt.kubeconfigArg)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errorContains)
			}
		})
	}
}

func TestBuildClients_InvalidFile(t *testing.T) {
	invalidConfig := filepath.Join(t.TempDir(), "invalid-kubeconfig")
	if err := os.WriteFile(invalidConfig, []byte("invalid yaml content"), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, err := BuildClients(invalidConfig)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "failed to build kube config")
	}
}

func TestBuildClients_ValidFile(t *testing.T) {
	kubeconfig := filepath.Join(t.TempDir(), "config")
	content := `apiVersion: v1
kind: Config
clusters:
- name: local
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: local
  context:
    cluster: local
    user: local
current-context: local
users:
- name: local
  user:
    token: abc
`
	if err := os.WriteFile(kubeconfig, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	clients, err := BuildClients(kubeconfig)
	assert.NoError(t, err)
	if assert.NotNil(t, clients) {
		assert.NotNil(t, clients.Typed)
		assert.NotNil(t, clients.Dynamic)
		assert.Equal(t, "https://127.0.0.1:6443", clients.Config.Host)
	}
}

func TestGetClients_Singleton(t *testing.T) {
	reset := func() {
		clientsOnce = sync.Once{}
		cachedClients = nil
		clientsErr = nil
	}
	reset()
	defer reset()

	c1, err1 := GetClients()
	c2, err2 := GetClients()

	// nolint:errorlint // pointer equality is the point
	assert.True(t, err1 == err2, "expected the same error instance")
	assert.Same(t, c1, c2)
}
