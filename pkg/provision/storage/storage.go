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

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/provision"
	"github.com/cloud-agnost/provisioner/pkg/provision/workload"
)

// ResizeRequest names the storage engine and its new volume size.
type ResizeRequest struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

// Validate checks the request before any control-plane call.
func (r ResizeRequest) Validate() error {
	if err := provision.ValidateName("name", r.Name); err != nil {
		return err
	}
	return provision.ValidateQuantity("size", r.Size)
}

// VolumeFailure records a claim that could not be expanded.
type VolumeFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ResizeReport describes what a resize touched.
type ResizeReport struct {
	Size     string          `json:"size"`
	Patched  []string        `json:"patched"`
	Failed   []VolumeFailure `json:"failed,omitempty"`
	Workload workload.Target `json:"workload"`
	Replicas int32           `json:"replicas"`
}

// Storage expands the volumes of an object storage engine.
type Storage struct {
	rt        *provision.Runtime
	workloads *workload.Manager
}

// New returns a storage orchestrator.
func New(rt *provision.Runtime) *Storage {
	return &Storage{rt: rt, workloads: workload.NewManager(rt)}
}

// Resize patches every claim whose name contains req.Name to req.Size, waits
// the settle interval, then recreates the engine's pods by scaling its
// workload to zero and back. A failed claim patch is logged and the others
// are still attempted; when none succeeds the workload is left untouched.
func (s *Storage) Resize(ctx context.Context, req ResizeRequest) (*ResizeReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lc := provision.Begin(provision.FamilyStorage, provision.OpResize, req.Name)

	report, err := s.expandClaims(ctx, req)
	if err != nil {
		return report, lc.Fail(err)
	}

	if err := s.rt.Settle(ctx); err != nil {
		return report, lc.Fail(err)
	}

	target, err := s.workloads.Locate(ctx, req.Name)
	if err != nil {
		return report, lc.Fail(err)
	}
	report.Workload = target

	replicas, err := s.workloads.Cycle(ctx, target)
	report.Replicas = replicas
	if err != nil {
		return report, lc.Fail(err)
	}
	return report, lc.Succeed()
}

func (s *Storage) expandClaims(ctx context.Context, req ResizeRequest) (*ResizeReport, error) {
	ns := s.rt.Config.Namespace
	claims := s.rt.Typed.CoreV1().PersistentVolumeClaims(ns)
	report := &ResizeReport{Size: req.Size, Patched: []string{}}

	list, err := claims.List(ctx, metav1.ListOptions{})
	if err != nil {
		return report, cerrors.FromAPIStatus("failed to list volume claims", err)
	}

	body, err := json.Marshal(map[string]any{
		"spec": map[string]any{
			"resources": map[string]any{
				"requests": map[string]string{"storage": req.Size},
			},
		},
	})
	if err != nil {
		return report, fmt.Errorf("failed to encode resize patch: %w", err)
	}

	matched := 0
	for _, pvc := range list.Items {
		if !strings.Contains(pvc.Name, req.Name) {
			continue
		}
		matched++
		if _, err := claims.Patch(ctx, pvc.Name, types.MergePatchType, body, metav1.PatchOptions{}); err != nil {
			slog.Warn("failed to expand volume claim", "pvc", pvc.Name, "namespace", ns, "size", req.Size, "error", err)
			report.Failed = append(report.Failed, VolumeFailure{Name: pvc.Name, Error: err.Error()})
			continue
		}
		slog.Info("volume claim expanded", "pvc", pvc.Name, "namespace", ns, "size", req.Size)
		report.Patched = append(report.Patched, pvc.Name)
	}

	if matched == 0 {
		return report, cerrors.NewWithContext(cerrors.ErrCodeNotFound,
			fmt.Sprintf("no volume claims match %q", req.Name),
			map[string]any{"name": req.Name, "namespace": ns})
	}
	if len(report.Patched) == 0 {
		return report, cerrors.NewWithContext(cerrors.ErrCodeApplyFailed,
			fmt.Sprintf("no volume claim matching %q could be expanded", req.Name),
			map[string]any{"name": req.Name, "namespace": ns, "failed": len(report.Failed)})
	}
	return report, nil
}
