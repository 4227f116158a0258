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

package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/distribution/reference"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/naming"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

// overrideAnnotations is where pod template annotations live in a
// RabbitmqCluster; the operator copies them onto the StatefulSet.
var overrideAnnotations = []string{"spec", "override", "statefulSet", "spec", "template", "metadata", "annotations"}

// Request describes a new RabbitMQ cluster with one management user.
type Request struct {
	ClusterName  string              `json:"clusterName"`
	Version      string              `json:"brokerVersion"`
	StorageSize  string              `json:"storageSize"`
	Username     string              `json:"username"`
	Password     string              `json:"password"`
	ReplicaCount int                 `json:"replicaCount"`
	Resources    provision.Resources `json:"resources,omitempty"`
}

// Validate checks the request before any control-plane call.
func (r Request) Validate() error {
	if err := provision.ValidateName("clusterName", r.ClusterName); err != nil {
		return err
	}
	if err := provision.ValidateName("username", r.Username); err != nil {
		return err
	}
	if err := provision.Require("password", r.Password); err != nil {
		return err
	}
	if err := provision.ValidateQuantity("storageSize", r.StorageSize); err != nil {
		return err
	}
	if _, err := Image(r.Version); err != nil {
		return err
	}
	if r.ReplicaCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "replicaCount must be at least 1")
	}
	return r.Resources.Validate()
}

// Update changes mutable fields of an existing cluster. Empty or nil fields
// are left untouched.
type Update struct {
	ClusterName  string `json:"clusterName"`
	Version      string `json:"brokerVersion,omitempty"`
	StorageSize  string `json:"storageSize,omitempty"`
	ReplicaCount *int   `json:"replicaCount,omitempty"`
}

// Validate checks the update names a cluster and changes at least one field.
func (u Update) Validate() error {
	if err := provision.ValidateName("clusterName", u.ClusterName); err != nil {
		return err
	}
	if u.Version == "" && u.StorageSize == "" && u.ReplicaCount == nil {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "update changes no field")
	}
	if u.Version != "" {
		if _, err := Image(u.Version); err != nil {
			return err
		}
	}
	if u.StorageSize != "" {
		if err := provision.ValidateQuantity("storageSize", u.StorageSize); err != nil {
			return err
		}
	}
	if u.ReplicaCount != nil && *u.ReplicaCount < 1 {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "replicaCount must be at least 1")
	}
	return nil
}

// Image returns the normalized management image reference for version.
func Image(version string) (string, error) {
	if version == "" {
		return "", cerrors.New(cerrors.ErrCodeInvalidRequest, "brokerVersion is required")
	}
	named, err := reference.ParseNormalizedNamed(naming.BrokerImage(version))
	if err != nil {
		return "", cerrors.WrapWithContext(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid brokerVersion %q", version), err,
			map[string]any{"field": "brokerVersion"})
	}
	if _, ok := named.(reference.Tagged); !ok {
		return "", cerrors.New(cerrors.ErrCodeInvalidRequest, fmt.Sprintf("brokerVersion %q yields an untagged image", version))
	}
	return reference.FamiliarString(named), nil
}

// RabbitMQ orchestrates clusters managed by the RabbitMQ cluster and
// messaging-topology operators.
type RabbitMQ struct {
	rt  *provision.Runtime
	now func() time.Time
}

// NewRabbitMQ returns a broker orchestrator.
func NewRabbitMQ(rt *provision.Runtime) *RabbitMQ {
	return &RabbitMQ{rt: rt, now: time.Now}
}

// Create applies the credential secret, cluster, user and permission in
// order. A failure on the cluster aborts; failures on the topology objects
// are logged and the remaining objects are still applied.
func (b *RabbitMQ) Create(ctx context.Context, req Request) (*provision.ConnectionDescriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyBroker, provision.OpCreate, req.ClusterName)

	descs, err := b.descriptors(req.ClusterName, req.Username)
	if err != nil {
		return nil, lc.Fail(err)
	}
	host := naming.BrokerHost(req.ClusterName, b.rt.Config.Namespace)
	if err := overrideBroker(descs, req, host); err != nil {
		return nil, lc.Fail(err)
	}

	report, err := b.rt.Applier.ApplyAll(ctx, descs, applier.OpCreate, applier.Degrade)
	if err != nil {
		return nil, lc.Fail(err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		refs := make([]string, 0, len(failed))
		for _, e := range failed {
			refs = append(refs, e.Ref)
		}
		slog.Warn("broker created with failed descriptors", "cluster", req.ClusterName, "failed", refs)
	}

	conn := &provision.ConnectionDescriptor{
		Host:     host,
		Username: req.Username,
		Password: req.Password,
	}
	return conn, lc.Succeed()
}

func overrideBroker(descs []*manifest.Descriptor, req Request, host string) error {
	image, err := Image(req.Version)
	if err != nil {
		return err
	}
	for _, d := range descs {
		var err error
		switch d.Kind {
		case manifest.KindSecret:
			err = errors.Join(
				d.Set(req.Username, "stringData", "username"),
				d.Set(req.Password, "stringData", "password"),
				d.Set(host, "stringData", "host"),
			)
		case manifest.KindBrokerCluster:
			err = errors.Join(
				d.Set(req.ReplicaCount, "spec", "replicas"),
				d.Set(image, "spec", "image"),
				d.Set(req.StorageSize, "spec", "persistence", "storage"),
				req.Resources.ApplyTo(d, "spec", "resources"),
			)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Update reads the live cluster, changes only the supplied fields and
// replaces it. The operator's nested override block rules out a merge patch.
func (b *RabbitMQ) Update(ctx context.Context, u Update) (*provision.ConnectionDescriptor, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyBroker, provision.OpUpdate, u.ClusterName)

	current, err := b.live(ctx, u.ClusterName)
	if err != nil {
		return nil, lc.Fail(err)
	}

	if u.Version != "" {
		image, _ := Image(u.Version)
		err = current.Set(image, "spec", "image")
	}
	if err == nil && u.StorageSize != "" {
		err = current.Set(u.StorageSize, "spec", "persistence", "storage")
	}
	if err == nil && u.ReplicaCount != nil {
		err = current.Set(*u.ReplicaCount, "spec", "replicas")
	}
	if err != nil {
		return nil, lc.Fail(err)
	}

	if _, err := b.rt.Applier.Apply(ctx, current, applier.OpReplace); err != nil {
		return nil, lc.Fail(err)
	}
	conn := &provision.ConnectionDescriptor{Host: naming.BrokerHost(u.ClusterName, b.rt.Config.Namespace)}
	return conn, lc.Succeed()
}

// Delete rebuilds the descriptors for (clusterName, username) and removes
// them in reverse creation order, attempting each even if one fails.
func (b *RabbitMQ) Delete(ctx context.Context, clusterName, username string) error {
	if err := provision.ValidateName("clusterName", clusterName); err != nil {
		return err
	}
	if err := provision.ValidateName("username", username); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyBroker, provision.OpDelete, clusterName)

	descs, err := b.descriptors(clusterName, username)
	if err != nil {
		return lc.Fail(err)
	}
	if _, err := b.rt.Applier.ApplyAll(ctx, applier.Reverse(descs), applier.OpDelete, applier.Tolerate); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

// Restart stamps the StatefulSet override annotations and replaces the
// cluster, which makes the operator roll every broker pod.
func (b *RabbitMQ) Restart(ctx context.Context, clusterName string) error {
	if err := provision.ValidateName("clusterName", clusterName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyBroker, provision.OpRestart, clusterName)

	current, err := b.live(ctx, clusterName)
	if err != nil {
		return lc.Fail(err)
	}
	path := append(append([]string{}, overrideAnnotations...), provision.RestartAnnotation)
	if err := current.Set(provision.Timestamp(b.now()), path...); err != nil {
		return lc.Fail(err)
	}
	if _, err := b.rt.Applier.Apply(ctx, current, applier.OpReplace); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

// live returns the current cluster object as a descriptor.
func (b *RabbitMQ) live(ctx context.Context, clusterName string) (*manifest.Descriptor, error) {
	descs, err := b.rt.Loader.Load(manifest.TemplateBroker)
	if err != nil {
		return nil, err
	}
	cluster := manifest.Find(descs, manifest.KindBrokerCluster)
	if cluster == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "rabbitmq template has no cluster")
	}
	gvr, _ := cluster.Resource()

	obj, err := b.rt.Dynamic.Resource(gvr).Namespace(b.rt.Config.Namespace).Get(ctx, clusterName, metav1.GetOptions{})
	if err != nil {
		return nil, cerrors.FromAPIStatus(fmt.Sprintf("failed to read RabbitmqCluster %s", clusterName), err)
	}
	return manifest.NewDescriptor(obj), nil
}

// descriptors loads the template with names and references resolved for
// (clusterName, username). Create and Delete both build on it.
func (b *RabbitMQ) descriptors(clusterName, username string) ([]*manifest.Descriptor, error) {
	descs, err := b.rt.Loader.Load(manifest.TemplateBroker)
	if err != nil {
		return nil, err
	}
	if manifest.Find(descs, manifest.KindBrokerCluster) == nil {
		return nil, cerrors.New(cerrors.ErrCodeTemplateMalformed, "rabbitmq template has no cluster")
	}

	secret := naming.BrokerCredentialSecret(clusterName, username)
	user := naming.BrokerUser(clusterName, username)
	clusterRef := []string{"spec", "rabbitmqClusterReference", "name"}

	for _, d := range descs {
		d.SetNamespace(b.rt.Config.Namespace)
		var err error
		switch d.Kind {
		case manifest.KindSecret:
			d.SetName(secret)
		case manifest.KindBrokerCluster:
			d.SetName(clusterName)
		case manifest.KindBrokerUser:
			d.SetName(user)
			err = errors.Join(
				d.Set(clusterName, clusterRef...),
				d.Set(secret, "spec", "importCredentialsSecret", "name"),
			)
		case manifest.KindBrokerPermission:
			d.SetName(naming.BrokerPermission(clusterName, username))
			err = errors.Join(
				d.Set(clusterName, clusterRef...),
				d.Set(user, "spec", "userReference", "name"),
			)
		}
		if err != nil {
			return nil, err
		}
	}
	return descs, nil
}
