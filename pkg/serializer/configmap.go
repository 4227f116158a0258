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
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
)

const (
	// ConfigMapURIScheme prefixes ConfigMap sources: cm://namespace/name.
	ConfigMapURIScheme = "cm://"

	// ConfigMapDataKey is the base data key holding a document.
	ConfigMapDataKey = "request"
)

// parseConfigMapURI splits cm://namespace/name.
func parseConfigMapURI(uri string) (namespace, name string, err error) {
	rest, ok := strings.CutPrefix(uri, ConfigMapURIScheme)
	if !ok {
		return "", "", fmt.Errorf("ConfigMap URI must start with %s", ConfigMapURIScheme)
	}
	namespace, name, ok = strings.Cut(rest, "/")
	if !ok || namespace == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("ConfigMap URI must be %snamespace/name, got %q", ConfigMapURIScheme, uri)
	}
	return namespace, name, nil
}

// readConfigMap returns the document stored in the ConfigMap at uri. The
// YAML key wins over the JSON key when both exist.
func readConfigMap(ctx context.Context, uri string, kube client.Interface) (Format, []byte, error) {
	namespace, name, err := parseConfigMapURI(uri)
	if err != nil {
		return "", nil, err
	}

	if kube == nil {
		clients, err := client.GetClients()
		if err != nil {
			return "", nil, fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		kube = clients.Typed
	}

	cm, err := kube.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to get ConfigMap %s/%s: %w", namespace, name, err)
	}

	for _, format := range []Format{FormatYAML, FormatJSON} {
		if data, ok := cm.Data[ConfigMapDataKey+"."+string(format)]; ok {
			return format, []byte(data), nil
		}
	}
	return "", nil, fmt.Errorf("ConfigMap %s/%s has no %s.yaml or %s.json key",
		namespace, name, ConfigMapDataKey, ConfigMapDataKey)
}
