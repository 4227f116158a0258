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
	"fmt"
	"log/slog"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/naming"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

const mysqlContainer = "mysql"

// MySQLRequest describes a new MySQL InnoDB cluster.
type MySQLRequest struct {
	ClusterName   string              `json:"clusterName"`
	Version       string              `json:"dbVersion"`
	InstanceCount int                 `json:"replicaCount"`
	StorageSize   string              `json:"diskSize"`
	Username      string              `json:"userName"`
	Password      string              `json:"passwd"`
	Resources     provision.Resources `json:"resources,omitempty"`
}

// Validate checks the request before any control-plane call.
func (r MySQLRequest) Validate() error {
	if err := provision.ValidateName("clusterName", r.ClusterName); err != nil {
		return err
	}
	if err := provision.ValidateVersion("dbVersion", r.Version); err != nil {
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
	if r.InstanceCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "replicaCount must be at least 1")
	}
	return r.Resources.Validate()
}

// MySQLUpdate changes mutable fields of an existing cluster. Empty or nil
// fields are left untouched.
type MySQLUpdate struct {
	ClusterName   string              `json:"clusterName"`
	Version       string              `json:"dbVersion,omitempty"`
	InstanceCount *int                `json:"replicaCount,omitempty"`
	Resources     provision.Resources `json:"resources,omitempty"`
}

// Validate checks the update names a cluster and changes at least one field.
func (u MySQLUpdate) Validate() error {
	if err := provision.ValidateName("clusterName", u.ClusterName); err != nil {
		return err
	}
	if u.Version == "" && u.InstanceCount == nil && u.Resources.IsZero() {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "update changes no field")
	}
	if u.Version != "" {
		if err := provision.ValidateVersion("dbVersion", u.Version); err != nil {
			return err
		}
	}
	if u.InstanceCount != nil && *u.InstanceCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "replicaCount must be at least 1")
	}
	return u.Resources.Validate()
}

// MySQL orchestrates InnoDB clusters managed by the MySQL operator.
type MySQL struct {
	rt *provision.Runtime
}

// NewMySQL returns a MySQL orchestrator.
func NewMySQL(rt *provision.Runtime) *MySQL {
	return &MySQL{rt: rt}
}

// Create applies service account, root secret and cluster in order. The
// root credential is caller-supplied, so nothing is polled.
func (m *MySQL) Create(ctx context.Context, req MySQLRequest) (*provision.ConnectionDescriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpCreate, req.ClusterName)

	descs, err := m.descriptors(req.ClusterName)
	if err != nil {
		return nil, lc.Fail(err)
	}
	if err := overrideMySQL(descs, req); err != nil {
		return nil, lc.Fail(err)
	}

	if _, err := m.rt.Applier.ApplyAll(ctx, descs, applier.OpCreate, applier.FailFast); err != nil {
		return nil, lc.Fail(err)
	}

	conn := &provision.ConnectionDescriptor{
		Host:     naming.MySQLHost(req.ClusterName, m.rt.Config.Namespace),
		Username: req.Username,
		Password: req.Password,
	}
	return conn, lc.Succeed()
}

func overrideMySQL(descs []*manifest.Descriptor, req MySQLRequest) error {
	for _, d := range descs {
		var err error
		switch d.Kind {
		case manifest.KindSecret:
			err = errors.Join(
				d.Set(req.Username, "stringData", "rootUser"),
				d.Set(req.Password, "stringData", "rootPassword"),
			)
		case manifest.KindDatabaseCluster:
			err = errors.Join(
				d.Set(req.InstanceCount, "spec", "instances"),
				d.Set(req.Version, "spec", "version"),
				d.Set(req.Version, "spec", "router", "version"),
				d.Set(req.StorageSize, "spec", "datadirVolumeClaimTemplate", "resources", "requests", "storage"),
				setContainerResources(d, req.Resources),
			)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// setContainerResources writes r onto the mysql container of the pod spec.
func setContainerResources(d *manifest.Descriptor, r provision.Resources) error {
	if r.IsZero() {
		return nil
	}
	containers, _, err := unstructured.NestedSlice(d.Object.Object, "spec", "podSpec", "containers")
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeTemplateMalformed, "podSpec.containers is not a list", err)
	}

	idx := -1
	for i, c := range containers {
		if m, ok := c.(map[string]any); ok && m["name"] == mysqlContainer {
			idx = i
			break
		}
	}
	if idx < 0 {
		containers = append(containers, map[string]any{"name": mysqlContainer})
		idx = len(containers) - 1
	}

	holder := manifest.NewDescriptor(&unstructured.Unstructured{Object: containers[idx].(map[string]any)})
	if err := r.ApplyTo(holder, "resources"); err != nil {
		return err
	}
	containers[idx] = holder.Object.Object
	return unstructured.SetNestedSlice(d.Object.Object, containers, "spec", "podSpec", "containers")
}

// Update merge-patches version, instance count and container resources.
func (m *MySQL) Update(ctx context.Context, u MySQLUpdate) (*provision.ConnectionDescriptor, error) {
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
		err = errors.Join(
			patch.Set(u.Version, "spec", "version"),
			patch.Set(u.Version, "spec", "router", "version"),
		)
	}
	if err == nil && u.InstanceCount != nil {
		err = patch.Set(*u.InstanceCount, "spec", "instances")
	}
	if err == nil {
		err = setContainerResources(patch, u.Resources)
	}
	if err != nil {
		return nil, lc.Fail(err)
	}

	if _, err := m.rt.Applier.Apply(ctx, patch, applier.OpPatch); err != nil {
		return nil, lc.Fail(err)
	}
	conn := &provision.ConnectionDescriptor{Host: naming.MySQLHost(u.ClusterName, m.rt.Config.Namespace)}
	return conn, lc.Succeed()
}

// Delete removes cluster, secret and service account in reverse creation
// order, attempting each even if an earlier one fails. With purgeData the
// cluster's data volume claims are deleted too.
func (m *MySQL) Delete(ctx context.Context, clusterName string, purgeData bool) error {
	if err := provision.ValidateName("clusterName", clusterName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpDelete, clusterName)

	descs, err := m.descriptors(clusterName)
	if err != nil {
		return lc.Fail(err)
	}
	_, applyErr := m.rt.Applier.ApplyAll(ctx, applier.Reverse(descs), applier.OpDelete, applier.Tolerate)

	var purgeErr error
	if purgeData {
		purgeErr = m.purgeVolumes(ctx, clusterName)
	}
	if err := errors.Join(applyErr, purgeErr); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

func (m *MySQL) purgeVolumes(ctx context.Context, clusterName string) error {
	ns := m.rt.Config.Namespace
	pvcs, err := m.rt.Typed.CoreV1().PersistentVolumeClaims(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return cerrors.FromAPIStatus("failed to list volume claims", err)
	}

	marker := naming.MySQLDataVolumeMarker(clusterName)
	var errs []error
	for _, pvc := range pvcs.Items {
		if !strings.Contains(pvc.Name, marker) {
			continue
		}
		if err := m.rt.Typed.CoreV1().PersistentVolumeClaims(ns).Delete(ctx, pvc.Name, metav1.DeleteOptions{}); err != nil {
			slog.Warn("failed to delete volume claim", "pvc", pvc.Name, "namespace", ns, "error", err)
			errs = append(errs, cerrors.FromAPIStatus(fmt.Sprintf("delete PersistentVolumeClaim %s failed", pvc.Name), err))
			continue
		}
		slog.Info("volume claim deleted", "pvc", pvc.Name, "namespace", ns)
	}
	return errors.Join(errs...)
}

// descriptors loads the template with every name and cross-reference
// resolved for clusterName. Create and Delete both build on it.
func (m *MySQL) descriptors(clusterName string) ([]*manifest.Descriptor, error) {
	descs, err := m.rt.Loader.Load(manifest.TemplateMySQL)
	if err != nil {
		return nil, err
	}
	if manifest.Find(descs, manifest.KindDatabaseCluster) == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "mysql template has no cluster")
	}

	for _, d := range descs {
		d.SetNamespace(m.rt.Config.Namespace)
		switch d.Kind {
		case manifest.KindServiceAccount:
			d.SetName(naming.MySQLServiceAccount(clusterName))
		case manifest.KindSecret:
			d.SetName(naming.MySQLSecret(clusterName))
		case manifest.KindDatabaseCluster:
			d.SetName(clusterName)
			if err := errors.Join(
				d.Set(naming.MySQLSecret(clusterName), "spec", "secretName"),
				d.Set(naming.MySQLServiceAccount(clusterName), "spec", "serviceAccountName"),
			); err != nil {
				return nil, err
			}
		}
	}
	return descs, nil
}
