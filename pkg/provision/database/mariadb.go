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

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/naming"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

// MariaDBRequest describes a new single-server MariaDB instance.
type MariaDBRequest struct {
	ServerName   string              `json:"serverName"`
	DatabaseName string              `json:"dbName"`
	Version      string              `json:"dbVersion"`
	StorageSize  string              `json:"diskSize"`
	Username     string              `json:"userName"`
	Password     string              `json:"passwd"`
	RootPassword string              `json:"rootPasswd"`
	Resources    provision.Resources `json:"resources,omitempty"`
}

// Validate checks the request before any control-plane call.
func (r MariaDBRequest) Validate() error {
	if err := provision.ValidateName("serverName", r.ServerName); err != nil {
		return err
	}
	if err := provision.Require("dbName", r.DatabaseName); err != nil {
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
	if err := provision.Require("rootPasswd", r.RootPassword); err != nil {
		return err
	}
	return r.Resources.Validate()
}

// MariaDBUpdate changes the image tag or compute resources of a server.
type MariaDBUpdate struct {
	ServerName string              `json:"serverName"`
	Version    string              `json:"dbVersion,omitempty"`
	Resources  provision.Resources `json:"resources,omitempty"`
}

// Validate checks the update names a server and changes at least one field.
func (u MariaDBUpdate) Validate() error {
	if err := provision.ValidateName("serverName", u.ServerName); err != nil {
		return err
	}
	if u.Version == "" && u.Resources.IsZero() {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "update changes no field")
	}
	if u.Version != "" {
		if err := provision.ValidateVersion("dbVersion", u.Version); err != nil {
			return err
		}
	}
	return u.Resources.Validate()
}

// MariaDB orchestrates servers managed by the mariadb-operator.
type MariaDB struct {
	rt *provision.Runtime
}

// NewMariaDB returns a MariaDB orchestrator.
func NewMariaDB(rt *provision.Runtime) *MariaDB {
	return &MariaDB{rt: rt}
}

// Create applies the credential secret and then the server resource. Both
// passwords are caller-supplied, so nothing is polled.
func (m *MariaDB) Create(ctx context.Context, req MariaDBRequest) (*provision.ConnectionDescriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpCreate, req.ServerName)

	descs, err := m.descriptors(req.ServerName)
	if err != nil {
		return nil, lc.Fail(err)
	}
	for _, d := range descs {
		switch d.Kind {
		case manifest.KindSecret:
			err = errors.Join(
				d.Set(req.Password, "stringData", "password"),
				d.Set(req.RootPassword, "stringData", "root-password"),
			)
		case manifest.KindDatabaseCluster:
			err = errors.Join(
				d.Set(req.DatabaseName, "spec", "database"),
				d.Set(req.Username, "spec", "username"),
				d.Set(req.Version, "spec", "image", "tag"),
				d.Set(req.StorageSize, "spec", "volumeClaimTemplate", "resources", "requests", "storage"),
				req.Resources.ApplyTo(d, "spec", "resources"),
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
		Host:     naming.MariaDBHost(req.ServerName, m.rt.Config.Namespace),
		Username: req.Username,
		Password: req.Password,
	}
	return conn, lc.Succeed()
}

// Update merge-patches the image tag and server resources.
func (m *MariaDB) Update(ctx context.Context, u MariaDBUpdate) (*provision.ConnectionDescriptor, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpUpdate, u.ServerName)

	descs, err := m.descriptors(u.ServerName)
	if err != nil {
		return nil, lc.Fail(err)
	}
	patch := applier.Sparse(manifest.Find(descs, manifest.KindDatabaseCluster))
	if u.Version != "" {
		err = patch.Set(u.Version, "spec", "image", "tag")
	}
	if err == nil {
		err = u.Resources.ApplyTo(patch, "spec", "resources")
	}
	if err != nil {
		return nil, lc.Fail(err)
	}

	if _, err := m.rt.Applier.Apply(ctx, patch, applier.OpPatch); err != nil {
		return nil, lc.Fail(err)
	}
	conn := &provision.ConnectionDescriptor{Host: naming.MariaDBHost(u.ServerName, m.rt.Config.Namespace)}
	return conn, lc.Succeed()
}

// Delete removes the server and then its secret, attempting both.
func (m *MariaDB) Delete(ctx context.Context, serverName string) error {
	if err := provision.ValidateName("serverName", serverName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyDatabase, provision.OpDelete, serverName)

	descs, err := m.descriptors(serverName)
	if err != nil {
		return lc.Fail(err)
	}
	if _, err := m.rt.Applier.ApplyAll(ctx, applier.Reverse(descs), applier.OpDelete, applier.Tolerate); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

func (m *MariaDB) descriptors(serverName string) ([]*manifest.Descriptor, error) {
	descs, err := m.rt.Loader.Load(manifest.TemplateMariaDB)
	if err != nil {
		return nil, err
	}
	if manifest.Find(descs, manifest.KindDatabaseCluster) == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "mariadb template has no server")
	}

	secret := naming.MariaDBSecret(serverName)
	for _, d := range descs {
		d.SetNamespace(m.rt.Config.Namespace)
		switch d.Kind {
		case manifest.KindSecret:
			d.SetName(secret)
		case manifest.KindDatabaseCluster:
			d.SetName(serverName)
			if err := errors.Join(
				d.Set(secret, "spec", "rootPasswordSecretKeyRef", "name"),
				d.Set(secret, "spec", "passwordSecretKeyRef", "name"),
			); err != nil {
				return nil, err
			}
		}
	}
	return descs, nil
}
