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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

func TestDescriptorSetAndGet(t *testing.T) {
	descs, err := NewLoader().Load(TemplatePostgres)
	require.NoError(t, err)
	d := descs[0]

	require.NoError(t, d.Set(3, "spec", "numberOfInstances"))
	require.NoError(t, d.Set("20Gi", "spec", "volume", "size"))
	require.NoError(t, d.Set(map[string]string{"a": "b"}, "spec", "podAnnotations"))

	n, ok := d.Int("spec", "numberOfInstances")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "20Gi", d.String("spec", "volume", "size"))
	assert.Equal(t, "b", d.String("spec", "podAnnotations", "a"))
	assert.Equal(t, "", d.String("spec", "missing"))
}

func TestDescriptorSetThroughScalarFails(t *testing.T) {
	descs, err := NewLoader().Load(TemplatePostgres)
	require.NoError(t, err)

	err = descs[0].Set("x", "spec", "teamId", "nested")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeTemplateMalformed))
}

func TestDescriptorResolved(t *testing.T) {
	tests := []struct {
		name    string
		objName string
		wantErr bool
	}{
		{"concrete", "db1", false},
		{"empty", "", true},
		{"placeholder", "{{server}}", true},
		{"partial placeholder", "mq-{{user}}-credentials", true},
		{"closing only", "x}}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := &unstructured.Unstructured{}
			obj.SetAPIVersion("v1")
			obj.SetKind("Secret")
			obj.SetName(tt.objName)

			err := NewDescriptor(obj).Resolved()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDescriptorResource(t *testing.T) {
	descs, err := NewLoader().Load(TemplateBroker)
	require.NoError(t, err)

	_, ok := descs[0].Resource()
	assert.False(t, ok, "Secret is a built-in kind")

	gvr, ok := descs[1].Resource()
	assert.True(t, ok)
	assert.Equal(t, schema.GroupVersionResource{Group: "rabbitmq.com", Version: "v1beta1", Resource: "rabbitmqclusters"}, gvr)

	gvr, _ = descs[3].Resource()
	assert.Equal(t, "permissions", gvr.Resource)
}

func TestDescriptorResourceMongoPlural(t *testing.T) {
	descs, err := NewLoader().Load(TemplateMongoDB)
	require.NoError(t, err)

	gvr, ok := Find(descs, KindDatabaseCluster).Resource()
	assert.True(t, ok)
	assert.Equal(t, schema.GroupVersionResource{
		Group: "mongodbcommunity.mongodb.com", Version: "v1", Resource: "mongodbcommunity",
	}, gvr)
}

func TestDescriptorEachItem(t *testing.T) {
	descs, err := NewLoader().Load(TemplateRedisStandalone)
	require.NoError(t, err)
	sts := Find(descs, KindStatefulSet)
	require.NotNil(t, sts)

	var names []string
	err = sts.EachItem(func(i int, v *Descriptor) error {
		names = append(names, v.String("name"))
		return v.Set("cache-"+v.String("configMap", "name"), "configMap", "name")
	}, "spec", "template", "spec", "volumes")
	require.NoError(t, err)
	assert.Equal(t, []string{"start-scripts", "health", "config"}, names)

	volumes, _, _ := unstructured.NestedSlice(sts.Object.Object, "spec", "template", "spec", "volumes")
	require.Len(t, volumes, 3)
	cm, _, _ := unstructured.NestedString(volumes[2].(map[string]any), "configMap", "name")
	assert.Equal(t, "cache-redis-configuration", cm)
	mode, _, _ := unstructured.NestedInt64(volumes[0].(map[string]any), "configMap", "defaultMode")
	assert.Equal(t, int64(493), mode)
}

func TestDescriptorEachItemMissingAndMalformed(t *testing.T) {
	d := NewDescriptor(&unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata":   map[string]any{"name": "cm"},
		"data":       map[string]any{"key": "value"},
		"items":      []any{"scalar"},
	}})

	called := false
	require.NoError(t, d.EachItem(func(int, *Descriptor) error {
		called = true
		return nil
	}, "spec", "list"))
	assert.False(t, called)

	err := d.EachItem(func(int, *Descriptor) error { return nil }, "data")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeTemplateMalformed))

	err = d.EachItem(func(int, *Descriptor) error { return nil }, "items")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeTemplateMalformed))
}

func TestDescriptorDeepCopy(t *testing.T) {
	descs, err := NewLoader().Load(TemplateIssuer)
	require.NoError(t, err)

	cp := descs[0].DeepCopy()
	cp.SetNamespace("other")
	assert.Equal(t, "", descs[0].Namespace())
	assert.Equal(t, KindCertificateIssuer, cp.Kind)
	assert.Equal(t, "Issuer other/letsencrypt-issuer-prod", cp.Ref())
}

func TestKindClassification(t *testing.T) {
	assert.True(t, KindDatabaseCluster.IsCritical())
	assert.True(t, KindBrokerCluster.IsCritical())
	assert.False(t, KindBrokerUser.IsCritical())
	assert.False(t, KindSecret.IsCritical())

	assert.True(t, KindCertificateIssuer.IsCustom())
	assert.False(t, KindDeployment.IsCustom())
	assert.False(t, KindUnsupported.IsCustom())

	assert.False(t, KindStatefulSet.IsCustom())
	assert.False(t, KindStatefulSet.IsClusterScoped())

	assert.Equal(t, KindStatefulSet, ParseKind(schema.GroupKind{Group: "apps", Kind: "StatefulSet"}))
	assert.Equal(t, KindDatabaseCluster, ParseKind(schema.GroupKind{Group: "mariadb.mmontes.io", Kind: "MariaDB"}))
	assert.Equal(t, KindDatabaseCluster, ParseKind(schema.GroupKind{Group: "mongodbcommunity.mongodb.com", Kind: "MongoDBCommunity"}))
	assert.Equal(t, KindUnsupported, ParseKind(schema.GroupKind{Group: "other.io", Kind: "User"}))
	assert.Equal(t, KindBrokerUser, ParseKind(schema.GroupKind{Group: "rabbitmq.com", Kind: "User"}))
}

func TestFind(t *testing.T) {
	descs, err := NewLoader().Load(TemplateMySQL)
	require.NoError(t, err)

	assert.Equal(t, "InnoDBCluster", Find(descs, KindDatabaseCluster).RawKind())
	assert.Nil(t, Find(descs, KindBrokerUser))
}
