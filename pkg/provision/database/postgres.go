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
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/naming"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

const defaultPostgresUser = "postgres"

// PostgresRequest describes a new PostgreSQL cluster.
type PostgresRequest struct {
	ServerName    string              `json:"serverName"`
	EngineVersion string              `json:"engineVersion"`
	StorageSize   string              `json:"storageSize"`
	InstanceCount int                 `json:"instanceCount"`
	TeamID        string              `json:"teamId,omitempty"`
	Resources     provision.Resources `json:"resources,omitempty"`
}

// Validate checks the request before any control-plane call.
func (r PostgresRequest) Validate() error {
	if err := provision.ValidateName("serverName", r.ServerName); err != nil {
		return err
	}
	if err := provision.ValidateVersion("engineVersion", r.EngineVersion); err != nil {
		return err
	}
	if err := provision.ValidateQuantity("storageSize", r.StorageSize); err != nil {
		return err
	}
	if r.InstanceCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "instanceCount must be at least 1")
	}
	return r.Resources.Validate()
}

// PostgresUpdate changes mutable fields of an existing cluster. Empty or nil
// fields are left untouched.
type PostgresUpdate struct {
	ServerName    string `json:"serverName"`
	EngineVersion string `json:"engineVersion,omitempty"`
	StorageSize   string `json:"storageSize,omitempty"`
	InstanceCount *int   `json:"instanceCount,omitempty"`
}

// Validate checks the update names a cluster and changes at least one field.
func (u PostgresUpdate) Validate() error {
	if err := provision.ValidateName("serverName", u.ServerName); err != nil {
		return err
	}
	if u.EngineVersion == "" && u.StorageSize == "" && u.InstanceCount == nil {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "update changes no field")
	}
	if u.EngineVersion != "" {
		if err := provision.ValidateVersion("engineVersion", u.EngineVersion); err != nil {
			return err
		}
	}
	if u.StorageSize != "" {
		if err := provision.ValidateQuantity("storageSize", u.StorageSize); err != nil {
			return err
		}
	}
	if u.InstanceCount != nil && *u.InstanceCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "instanceCount must be at least 1")
	}
	return nil
}

// Postgres orchestrates PostgreSQL clusters managed by the Zalando operator.
type Postgres struct {
	rt  *provision.Runtime
	now func() time.Time
}

// NewPostgres returns a PostgreSQL orchestrator.
func NewPostgres(rt *provision.Runtime) *Postgres {
	return &Postgres{rt: rt, now: time.Now}
}

// Create applies the cluster, waits for the operator-generated superuser
// secret and returns the connection details. Any apply failure aborts.
func (p *Postgres) Create(ctx context.Context, req PostgresRequest) (*provision.ConnectionDescriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpCreate, req.ServerName)

	descs, err := p.rt.Loader.Load(manifest.TemplatePostgres)
	if err != nil {
		return nil, lc.Fail(err)
	}
	cluster := manifest.Find(descs, manifest.KindDatabaseCluster)
	if cluster == nil {
		return nil, lc.Fail(cerrors.New(cerrors.ErrCodeTemplateMalformed, "postgresql template has no cluster"))
	}
	if err := overridePostgres(cluster, req); err != nil {
		return nil, lc.Fail(err)
	}

	if _, err := p.rt.Applier.ApplyAll(ctx, descs, applier.OpCreate, applier.FailFast); err != nil {
		return nil, lc.Fail(err)
	}

	conn, err := p.connection(ctx, req.ServerName, int64(req.InstanceCount))
	if err != nil {
		return nil, lc.Fail(err)
	}
	return conn, lc.Succeed()
}

func overridePostgres(d *manifest.Descriptor, req PostgresRequest) error {
	d.SetName(req.ServerName)
	if err := d.Set(req.InstanceCount, "spec", "numberOfInstances"); err != nil {
		return err
	}
	if err := d.Set(req.StorageSize, "spec", "volume", "size"); err != nil {
		return err
	}
	if err := d.Set(req.EngineVersion, "spec", "postgresql", "version"); err != nil {
		return err
	}
	if req.TeamID != "" {
		if err := d.Set(req.TeamID, "spec", "teamId"); err != nil {
			return err
		}
	}
	return req.Resources.ApplyTo(d, "spec", "resources")
}

// Update merge-patches only the fields set in u, then re-reads the
// credential in case the operator rotated it.
func (p *Postgres) Update(ctx context.Context, u PostgresUpdate) (*provision.ConnectionDescriptor, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpUpdate, u.ServerName)

	patch, err := p.patch(u)
	if err != nil {
		return nil, lc.Fail(err)
	}
	if _, err := p.rt.Applier.Apply(ctx, patch, applier.OpPatch); err != nil {
		return nil, lc.Fail(err)
	}

	live, err := p.get(ctx, patch)
	if err != nil {
		return nil, lc.Fail(err)
	}
	instances, _, _ := unstructured.NestedInt64(live.Object, "spec", "numberOfInstances")

	conn, err := p.connection(ctx, u.ServerName, instances)
	if err != nil {
		return nil, lc.Fail(err)
	}
	return conn, lc.Succeed()
}

func (p *Postgres) patch(u PostgresUpdate) (*manifest.Descriptor, error) {
	base, err := p.clusterDescriptor(u.ServerName)
	if err != nil {
		return nil, err
	}
	patch := applier.Sparse(base)

	if u.EngineVersion != "" {
		if err := patch.Set(u.EngineVersion, "spec", "postgresql", "version"); err != nil {
			return nil, err
		}
	}
	if u.StorageSize != "" {
		if err := patch.Set(u.StorageSize, "spec", "volume", "size"); err != nil {
			return nil, err
		}
	}
	if u.InstanceCount != nil {
		if err := patch.Set(*u.InstanceCount, "spec", "numberOfInstances"); err != nil {
			return nil, err
		}
	}
	return patch, nil
}

// Delete removes the cluster resource. The operator garbage-collects the
// secrets and services it generated.
func (p *Postgres) Delete(ctx context.Context, serverName string) error {
	if err := provision.ValidateName("serverName", serverName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpDelete, serverName)

	cluster, err := p.clusterDescriptor(serverName)
	if err != nil {
		return lc.Fail(err)
	}
	if _, err := p.rt.Applier.Apply(ctx, cluster, applier.OpDelete); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

// Restart stamps the pod annotations with the current time and replaces the
// resource, which makes the operator roll every pod.
func (p *Postgres) Restart(ctx context.Context, serverName string) error {
	if err := provision.ValidateName("serverName", serverName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpRestart, serverName)

	cluster, err := p.clusterDescriptor(serverName)
	if err != nil {
		return lc.Fail(err)
	}
	live, err := p.get(ctx, cluster)
	if err != nil {
		return lc.Fail(err)
	}

	current := manifest.NewDescriptor(live)
	if err := current.Set(provision.Timestamp(p.now()), "spec", "podAnnotations", provision.RestartAnnotation); err != nil {
		return lc.Fail(err)
	}
	if _, err := p.rt.Applier.Apply(ctx, current, applier.OpReplace); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

// clusterDescriptor returns the template cluster descriptor addressed at serverName.
func (p *Postgres) clusterDescriptor(serverName string) (*manifest.Descriptor, error) {
	descs, err := p.rt.Loader.Load(manifest.TemplatePostgres)
	if err != nil {
		return nil, err
	}
	cluster := manifest.Find(descs, manifest.KindDatabaseCluster)
	if cluster == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "postgresql template has no cluster")
	}
	cluster.SetName(serverName)
	cluster.SetNamespace(p.rt.Config.Namespace)
	return cluster, nil
}

func (p *Postgres) get(ctx context.Context, d *manifest.Descriptor) (*unstructured.Unstructured, error) {
	gvr, _ := d.Resource()
	live, err := p.rt.Dynamic.Resource(gvr).Namespace(p.rt.Config.Namespace).Get(ctx, d.Name(), metav1.GetOptions{})
	if err != nil {
		return nil, cerrors.FromAPIStatus(fmt.Sprintf("failed to read %s", d.Ref()), err)
	}
	return live, nil
}

func (p *Postgres) connection(ctx context.Context, serverName string, instances int64) (*provision.ConnectionDescriptor, error) {
	ns := p.rt.Config.Namespace
	cred, err := p.rt.Poller.WaitForCredential(ctx, ns, naming.PostgresCredentialSecret(serverName))
	if err != nil {
		return nil, err
	}

	conn := &provision.ConnectionDescriptor{
		Host:     naming.PostgresHost(serverName, ns),
		Username: cred.Username,
		Password: cred.Password,
	}
	if conn.Username == "" {
		conn.Username = defaultPostgresUser
	}
	if instances > 1 {
		conn.ReplicaHost = naming.PostgresReplicaHost(serverName, ns)
	}
	return conn, nil
}
