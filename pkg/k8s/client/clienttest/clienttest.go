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

// Package clienttest builds fake client bundles for tests.
package clienttest

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
)

// Custom resources served by the fake dynamic client.
var (
	PostgresGVR       = schema.GroupVersionResource{Group: "acid.zalan.do", Version: "v1", Resource: "postgresqls"}
	InnoDBClusterGVR  = schema.GroupVersionResource{Group: "mysql.oracle.com", Version: "v2", Resource: "innodbclusters"}
	MariaDBGVR        = schema.GroupVersionResource{Group: "mariadb.mmontes.io", Version: "v1alpha1", Resource: "mariadbs"}
	MongoDBGVR        = schema.GroupVersionResource{Group: "mongodbcommunity.mongodb.com", Version: "v1", Resource: "mongodbcommunity"}
	RabbitmqGVR       = schema.GroupVersionResource{Group: "rabbitmq.com", Version: "v1beta1", Resource: "rabbitmqclusters"}
	BrokerUserGVR     = schema.GroupVersionResource{Group: "rabbitmq.com", Version: "v1beta1", Resource: "users"}
	BrokerPermGVR     = schema.GroupVersionResource{Group: "rabbitmq.com", Version: "v1beta1", Resource: "permissions"}
	IssuerGVR         = schema.GroupVersionResource{Group: "cert-manager.io", Version: "v1", Resource: "issuers"}
	CustomResourceGVR = schema.GroupVersionResource{Group: "apiextensions.k8s.io", Version: "v1", Resource: "customresourcedefinitions"}
)

var listKinds = map[schema.GroupVersionResource]string{
	PostgresGVR:       "postgresqlList",
	InnoDBClusterGVR:  "InnoDBClusterList",
	MariaDBGVR:        "MariaDBList",
	MongoDBGVR:        "MongoDBCommunityList",
	RabbitmqGVR:       "RabbitmqClusterList",
	BrokerUserGVR:     "UserList",
	BrokerPermGVR:     "PermissionList",
	IssuerGVR:         "IssuerList",
	CustomResourceGVR: "CustomResourceDefinitionList",
}

// Fake is a client bundle backed by in-memory trackers.
type Fake struct {
	*client.Clients
	Typed   *fake.Clientset
	Dynamic *dynamicfake.FakeDynamicClient
}

// New returns a Fake seeded with typed objects and custom resources.
func New(typed []runtime.Object, custom ...*unstructured.Unstructured) *Fake {
	cs := fake.NewClientset(typed...)

	objs := make([]runtime.Object, len(custom))
	for i, u := range custom {
		objs[i] = u
	}
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objs...)

	return &Fake{
		Clients: &client.Clients{Typed: cs, Dynamic: dyn},
		Typed:   cs,
		Dynamic: dyn,
	}
}

// Object builds a namespaced custom resource for seeding.
func Object(apiVersion, kind, namespace, name string, spec map[string]any) *unstructured.Unstructured {
	u := &unstructured.Unstructured{Object: map[string]any{}}
	u.SetAPIVersion(apiVersion)
	u.SetKind(kind)
	u.SetNamespace(namespace)
	u.SetName(name)
	if spec != nil {
		u.Object["spec"] = runtime.DeepCopyJSON(spec)
	}
	return u
}
