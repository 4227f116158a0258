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

// Package client builds the Kubernetes clients used by the provisioner.
//
// A Clients bundle carries the typed clientset for built-in kinds
// (Secrets, Services, Ingresses, Deployments) and the dynamic client for
// operator custom resources (postgresql, InnoDBCluster, RabbitmqCluster,
// Issuer). GetClients caches a single bundle per process with sync.Once;
// BuildClients bypasses the cache for an explicit kubeconfig.
//
//	clients, err := client.GetClients()
//	if err != nil {
//	    return fmt.Errorf("failed to get kubernetes clients: %w", err)
//	}
//	secret, err := clients.Typed.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
//
// Tests substitute k8s.io/client-go/kubernetes/fake and
// k8s.io/client-go/dynamic/fake for the two halves of the bundle.
package client
