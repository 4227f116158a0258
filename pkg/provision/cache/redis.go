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

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/naming"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

// InstanceLabel ties every object and volume claim to its deployment.
const InstanceLabel = "app.kubernetes.io/instance"

const (
	redisContainer = "redis"
	envPassword    = "REDIS_PASSWORD"
	envMasterPass  = "REDIS_MASTER_PASSWORD"
	envMasterHost  = "REDIS_MASTER_HOST"
)

// RedisRequest describes a new Redis deployment.
type RedisRequest struct {
	ClusterName        string              `json:"clusterName"`
	StorageSize        string              `json:"diskSize"`
	Password           string              `json:"passwd"`
	ReadReplicaEnabled bool                `json:"readReplicaEnabled,omitempty"`
	Resources          provision.Resources `json:"resources,omitempty"`
}

// Validate checks the request before any control-plane call.
func (r RedisRequest) Validate() error {
	if err := provision.ValidateName("clusterName", r.ClusterName); err != nil {
		return err
	}
	if err := provision.ValidateQuantity("diskSize", r.StorageSize); err != nil {
		return err
	}
	if err := provision.Require("passwd", r.Password); err != nil {
		return err
	}
	return r.Resources.Validate()
}

// Redis orchestrates Redis deployments.
type Redis struct {
	rt *provision.Runtime
}

// NewRedis returns a Redis orchestrator.
func NewRedis(rt *provision.Runtime) *Redis {
	return &Redis{rt: rt}
}

// Create applies the standalone or replicated layout in template order and
// stops at the first failure.
func (r *Redis) Create(ctx context.Context, req RedisRequest) (*provision.ConnectionDescriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyCache, provision.OpCreate, req.ClusterName)

	id := manifest.TemplateRedisStandalone
	if req.ReadReplicaEnabled {
		id = manifest.TemplateRedisReplication
	}
	descs, err := r.descriptors(id, req.ClusterName)
	if err != nil {
		return nil, lc.Fail(err)
	}
	for _, d := range descs {
		switch d.Kind {
		case manifest.KindSecret:
			err = d.Set(req.Password, "stringData", "password")
		case manifest.KindStatefulSet:
			err = errors.Join(
				d.EachItem(func(_ int, claim *manifest.Descriptor) error {
					return claim.Set(req.StorageSize, "spec", "resources", "requests", "storage")
				}, "spec", "volumeClaimTemplates"),
				withRedisContainer(d, func(c *manifest.Descriptor) error {
					return req.Resources.ApplyTo(c, "resources")
				}),
			)
		}
		if err != nil {
			return nil, lc.Fail(err)
		}
	}

	if _, err := r.rt.Applier.ApplyAll(ctx, descs, applier.OpCreate, applier.FailFast); err != nil {
		return nil, lc.Fail(err)
	}

	ns := r.rt.Config.Namespace
	conn := &provision.ConnectionDescriptor{
		Host:     naming.RedisMasterHost(req.ClusterName, ns),
		Password: req.Password,
	}
	if req.ReadReplicaEnabled {
		conn.ReplicaHost = naming.RedisReplicaHost(req.ClusterName, ns)
	}
	return conn, lc.Succeed()
}

// Delete removes every object either layout creates, in reverse order,
// attempting each even if an earlier one fails. With purgeData the
// deployment's data volume claims are deleted too.
func (r *Redis) Delete(ctx context.Context, clusterName string, purgeData bool) error {
	if err := provision.ValidateName("clusterName", clusterName); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyCache, provision.OpDelete, clusterName)

	descs, err := r.descriptors(manifest.TemplateRedisReplication, clusterName)
	if err != nil {
		return lc.Fail(err)
	}
	_, applyErr := r.rt.Applier.ApplyAll(ctx, applier.Reverse(descs), applier.OpDelete, applier.Tolerate)

	var purgeErr error
	if purgeData {
		purgeErr = r.purgeVolumes(ctx, clusterName)
	}
	if err := errors.Join(applyErr, purgeErr); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

func (r *Redis) purgeVolumes(ctx context.Context, clusterName string) error {
	ns := r.rt.Config.Namespace
	selector := labels.SelectorFromSet(labels.Set{InstanceLabel: clusterName}).String()
	pvcs, err := r.rt.Typed.CoreV1().PersistentVolumeClaims(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return cerrors.FromAPIStatus("failed to list volume claims", err)
	}

	var errs []error
	for _, pvc := range pvcs.Items {
		if err := r.rt.Typed.CoreV1().PersistentVolumeClaims(ns).Delete(ctx, pvc.Name, metav1.DeleteOptions{}); err != nil {
			slog.Warn("failed to delete volume claim", "pvc", pvc.Name, "namespace", ns, "error", err)
			errs = append(errs, cerrors.FromAPIStatus(fmt.Sprintf("delete PersistentVolumeClaim %s failed", pvc.Name), err))
			continue
		}
		slog.Info("volume claim deleted", "pvc", pvc.Name, "namespace", ns)
	}
	return errors.Join(errs...)
}

// descriptors loads template id with every name, label and cross-reference
// resolved for clusterName.
func (r *Redis) descriptors(id, clusterName string) ([]*manifest.Descriptor, error) {
	descs, err := r.rt.Loader.Load(id)
	if err != nil {
		return nil, err
	}
	if manifest.Find(descs, manifest.KindStatefulSet) == nil {
		return nil, cerrors.NewWithContext(cerrors.ErrCodeTemplateMalformed,
			"redis template has no StatefulSet", map[string]any{"template": id})
	}

	ns := r.rt.Config.Namespace
	for _, d := range descs {
		role := d.Name()
		name, ok := objectName(role, clusterName)
		if !ok {
			return nil, cerrors.NewWithContext(cerrors.ErrCodeTemplateMalformed,
				"unknown object in redis template", map[string]any{"template": id, "name": role})
		}
		d.SetName(name)
		d.SetNamespace(ns)

		err := d.Set(clusterName, "metadata", "labels", InstanceLabel)
		switch d.Kind {
		case manifest.KindService:
			err = errors.Join(err, d.Set(clusterName, "spec", "selector", InstanceLabel))
		case manifest.KindStatefulSet:
			err = errors.Join(err, linkStatefulSet(d, clusterName, ns))
		}
		if err != nil {
			return nil, err
		}
	}
	return descs, nil
}

// objectName maps a template object name onto the deployment's name for it.
func objectName(role, cluster string) (string, bool) {
	switch role {
	case "redis-password":
		return naming.RedisPasswordSecret(cluster), true
	case "redis-svc-acc":
		return naming.RedisServiceAccount(cluster), true
	case "redis-configuration", "redis-health", "redis-scripts":
		return naming.RedisConfigMap(cluster, strings.TrimPrefix(role, "redis-")), true
	case "redis-headless":
		return naming.RedisHeadless(cluster), true
	case "redis-master":
		return naming.RedisMaster(cluster), true
	case "redis-replicas":
		return naming.RedisReplicas(cluster), true
	default:
		return "", false
	}
}

func linkStatefulSet(d *manifest.Descriptor, cluster, ns string) error {
	secret := naming.RedisPasswordSecret(cluster)
	return errors.Join(
		d.Set(naming.RedisHeadless(cluster), "spec", "serviceName"),
		d.Set(naming.RedisServiceAccount(cluster), "spec", "template", "spec", "serviceAccountName"),
		d.Set(cluster, "spec", "selector", "matchLabels", InstanceLabel),
		d.Set(cluster, "spec", "template", "metadata", "labels", InstanceLabel),
		d.EachItem(func(_ int, term *manifest.Descriptor) error {
			return term.Set(cluster, "podAffinityTerm", "labelSelector", "matchLabels", InstanceLabel)
		}, "spec", "template", "spec", "affinity", "podAntiAffinity", "preferredDuringSchedulingIgnoredDuringExecution"),
		d.EachItem(func(_ int, claim *manifest.Descriptor) error {
			return claim.Set(cluster, "metadata", "labels", InstanceLabel)
		}, "spec", "volumeClaimTemplates"),
		d.EachItem(func(_ int, v *manifest.Descriptor) error {
			cm := v.String("configMap", "name")
			if cm == "" {
				return nil
			}
			name, ok := objectName(cm, cluster)
			if !ok {
				return cerrors.NewWithContext(cerrors.ErrCodeTemplateMalformed,
					"volume references unknown config map", map[string]any{"configMap": cm})
			}
			return v.Set(name, "configMap", "name")
		}, "spec", "template", "spec", "volumes"),
		withRedisContainer(d, func(c *manifest.Descriptor) error {
			return c.EachItem(func(_ int, env *manifest.Descriptor) error {
				switch env.String("name") {
				case envPassword, envMasterPass:
					return env.Set(secret, "valueFrom", "secretKeyRef", "name")
				case envMasterHost:
					return env.Set(naming.RedisMasterPodHost(cluster, ns), "value")
				}
				return nil
			}, "env")
		}),
	)
}

// withRedisContainer calls fn on the redis container of a StatefulSet.
func withRedisContainer(d *manifest.Descriptor, fn func(*manifest.Descriptor) error) error {
	return d.EachItem(func(_ int, c *manifest.Descriptor) error {
		if c.String("name") != redisContainer {
			return nil
		}
		return fn(c)
	}, "spec", "template", "spec", "containers")
}
