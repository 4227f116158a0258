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
	"errors"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/naming"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

const (
	mongodContainer  = "mongod"
	mongoDataVolume  = "data-volume"
	mongoStatefulSet = "statefulSet"
)

// MongoDBRequest describes a new MongoDB replica set.
type MongoDBRequest struct {
	ClusterName  string              `json:"clusterName"`
	Version      string              `json:"mongoVersion"`
	ReplicaCount int                 `json:"replicaCount"`
	StorageSize  string              `json:"diskSize"`
	Username     string              `json:"userName"`
	Password     string              `json:"passwd"`
	Resources    provision.Resources `json:"resources,omitempty"`
}

// Validate checks the request before any control-plane call.
func (r MongoDBRequest) Validate() error {
	if err := provision.ValidateName("clusterName", r.ClusterName); err != nil {
		return err
	}
	if err := provision.ValidateVersion("mongoVersion", r.Version); err != nil {
		return err
	}
	if err := provision.ValidateQuantity("diskSize", r.StorageSize); err != nil {
		return err
	}
	if err := provision.Require("userName", r.Username); err != nil {
		return err
	}
	if err := provision.Require("passwd", r.Password); err != nil {
		return err
	}
	if r.ReplicaCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "replicaCount must be at least 1")
	}
	return r.Resources.Validate()
}

// MongoDBUpdate changes mutable fields of an existing replica set. Empty or
// nil fields are left untouched.
type MongoDBUpdate struct {
	ClusterName  string              `json:"clusterName"`
	Version      string              `json:"mongoVersion,omitempty"`
	ReplicaCount *int                `json:"replicaCount,omitempty"`
	Resources    provision.Resources `json:"resources,omitempty"`
}

// Validate checks the update names a replica set and changes at least one field.
func (u MongoDBUpdate) Validate() error {
	if err := provision.ValidateName("clusterName", u.ClusterName); err != nil {
		return err
	}
	if u.Version == "" && u.ReplicaCount == nil && u.Resources.IsZero() {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "update changes no field")
	}
	if u.Version != "" {
		if err := provision.ValidateVersion("mongoVersion", u.Version); err != nil {
			return err
		}
	}
	if u.ReplicaCount != nil && *u.ReplicaCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "replicaCount must be at least 1")
	}
	return u.Resources.Validate()
}

// MongoDB orchestrates replica sets managed by the MongoDB community operator.
type MongoDB struct {
	rt *provision.Runtime
}

// NewMongoDB returns a MongoDB orchestrator.
func NewMongoDB(rt *provision.Runtime) *MongoDB {
	return &MongoDB{rt: rt}
}

// Create applies the user password secret and then the replica set. The
// operator derives the SCRAM credential secret from the password.
func (m *MongoDB) Create(ctx context.Context, req MongoDBRequest) (*provision.ConnectionDescriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpCreate, req.ClusterName)

	descs, err := m.descriptors(req.ClusterName)
	if err != nil {
		return nil, lc.Fail(err)
	}
	for _, d := range descs {
		switch d.Kind {
		case manifest.KindSecret:
			err = d.Set(req.Password, "stringData", "password")
		case manifest.KindDatabaseCluster:
			err = errors.Join(
				d.Set(req.ReplicaCount, "spec", "members"),
				d.Set(req.Version, "spec", "version"),
				d.EachItem(func(i int, user *manifest.Descriptor) error {
					if i > 0 {
						return nil
					}
					return user.Set(req.Username, "name")
				}, "spec", "users"),
				d.EachItem(func(_ int, claim *manifest.Descriptor) error {
					if claim.String("metadata", "name") != mongoDataVolume {
						return nil
					}
					return claim.Set(req.StorageSize, "spec", "resources", "requests", "storage")
				}, "spec", mongoStatefulSet, "spec", "volumeClaimTemplates"),
				setMongodResources(d, req.Resources),
			)
		}
		if err != nil {
			return nil, lc.Fail(err)
		}
	}

	if _, err := m.rt.Applier.ApplyAll(ctx, descs, applier.OpCreate, applier.FailFast); err != nil {
		return nil, lc.Fail(err)
	}

	conn := &provision.ConnectionDescriptor{
		Host:     naming.MongoDBHost(req.ClusterName, m.rt.Config.Namespace),
		Username: req.Username,
		Password: req.Password,
	}
	return conn, lc.Succeed()
}

// setMongodResources writes r onto the mongod container of the
// StatefulSet override, adding the container when the template lacks it.
func setMongodResources(d *manifest.Descriptor, r provision.Resources) error {
	if r.IsZero() {
		return nil
	}
	path := []string{"spec", mongoStatefulSet, "spec", "template", "spec", "containers"}
	found := false
	err := d.EachItem(func(_ int, c *manifest.Descriptor) error {
		if c.String("name") != mongodContainer {
			return nil
		}
		found = true
		return r.ApplyTo(c, "resources")
	}, path...)
	if err != nil || found {
		return err
	}

	c := manifest.NewDescriptor(&unstructured.Unstructured{Object: map[string]any{"name": mongodContainer}})
	if err := r.ApplyTo(c, "resources"); err != nil {
		return err
	}
	return d.Set([]any{c.Object.Object}, path...)
}

// Update merge-patches version, member count and mongod resources.
func (m *MongoDB) Update(ctx context.Context, u MongoDBUpdate) (*provision.ConnectionDescriptor, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpUpdate, u.ClusterName)

	descs, err := m.descriptors(u.ClusterName)
	if err != nil {
		return nil, lc.Fail(err)
	}
	patch := applier.Sparse(manifest.Find(descs, manifest.KindDatabaseCluster))
	if u.Version != "" {
		err = patch.Set(u.Version, "spec", "version")
	}
	if err == nil && u.ReplicaCount != nil {
		err = patch.Set(*u.ReplicaCount, "spec", "members")
	}
	if err == nil {
		err = setMongodResources(patch, u.Resources)
	}
	if err != nil {
		return nil, lc.Fail(err)
	}

	if _, err := m.rt.Applier.Apply(ctx, patch, applier.OpPatch); err != nil {
		return nil, lc.Fail(err)
	}
	conn := &provision.ConnectionDescriptor{Host: naming.MongoDBHost(u.ClusterName, m.rt.Config.Namespace)}
	return conn, lc.Succeed()
}

// Delete removes the replica set and then its password secret, attempting both.
func (m *MongoDB) Delete(ctx context.Context, clusterName string) error {
	if err := provision.ValidateName("clusterName", clusterName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpDelete, clusterName)

	descs, err := m.descriptors(clusterName)
	if err != nil {
		return lc.Fail(err)
	}
	if _, err := m.rt.Applier.ApplyAll(ctx, applier.Reverse(descs), applier.OpDelete, applier.Tolerate); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

func (m *MongoDB) descriptors(clusterName string) ([]*manifest.Descriptor, error) {
	descs, err := m.rt.Loader.Load(manifest.TemplateMongoDB)
	if err != nil {
		return nil, err
	}
	if manifest.Find(descs, manifest.KindDatabaseCluster) == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "mongodb template has no replica set")
	}

	secret := naming.MongoDBUserSecret(clusterName)
	selector := naming.MongoDBService(clusterName)
	for _, d := range descs {
		d.SetNamespace(m.rt.Config.Namespace)
		switch d.Kind {
		case manifest.KindSecret:
			d.SetName(secret)
		case manifest.KindDatabaseCluster:
			d.SetName(clusterName)
			if err := errors.Join(
				d.EachItem(func(_ int, user *manifest.Descriptor) error {
					return errors.Join(
						user.Set(secret, "passwordSecretRef", "name"),
						user.Set(secret, "scramCredentialsSecretName"),
					)
				}, "spec", "users"),
				d.Set(selector, "spec", mongoStatefulSet, "spec", "selector", "matchLabels", "app"),
				d.Set(selector, "spec", mongoStatefulSet, "spec", "template", "metadata", "labels", "app"),
			); err != nil {
				return nil, err
			}
		}
	}
	return descs, nil
}
