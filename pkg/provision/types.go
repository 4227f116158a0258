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

package provision

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/version"
)

// RestartAnnotation is stamped on pod templates to force a rolling restart.
const RestartAnnotation = "kubectl.kubernetes.io/restartedAt"

// ConnectionDescriptor is what a caller needs to reach a provisioned service.
type ConnectionDescriptor struct {
	Host        string `json:"host"`
	ReplicaHost string `json:"replicaHost,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Resources holds optional compute requests and limits. Empty fields are
// left as the template defines them.
type Resources struct {
	CPURequest    string `json:"cpuRequest,omitempty" yaml:"cpuRequest,omitempty"`
	CPULimit      string `json:"cpuLimit,omitempty" yaml:"cpuLimit,omitempty"`
	MemoryRequest string `json:"memoryRequest,omitempty" yaml:"memoryRequest,omitempty"`
	MemoryLimit   string `json:"memoryLimit,omitempty" yaml:"memoryLimit,omitempty"`
}

// IsZero reports whether no resource field is set.
func (r Resources) IsZero() bool {
	return r == Resources{}
}

// Validate checks every set field parses as a quantity.
func (r Resources) Validate() error {
	fields := []struct{ name, value string }{
		{"cpuRequest", r.CPURequest},
		{"cpuLimit", r.CPULimit},
		{"memoryRequest", r.MemoryRequest},
		{"memoryLimit", r.MemoryLimit},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := ValidateQuantity(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTo writes the set fields under the resources block at path.
func (r Resources) ApplyTo(d *manifest.Descriptor, path ...string) error {
	set := func(v string, leaf ...string) error {
		if v == "" {
			return nil
		}
		return d.Set(v, append(append([]string{}, path...), leaf...)...)
	}
	if err := set(r.CPURequest, "requests", "cpu"); err != nil {
		return err
	}
	if err := set(r.CPULimit, "limits", "cpu"); err != nil {
		return err
	}
	if err := set(r.MemoryRequest, "requests", "memory"); err != nil {
		return err
	}
	return set(r.MemoryLimit, "limits", "memory")
}

// ValidateName checks value is a DNS-1123 label, the tightest rule shared
// by every object name the orchestrators derive from it.
func ValidateName(field, value string) error {
	if msgs := validation.IsDNS1123Label(value); len(msgs) > 0 {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid %s %q", field, value),
			map[string]any{"field": field, "reasons": msgs})
	}
	return nil
}

// ValidateQuantity checks value parses as a resource quantity such as 10Gi or 500m.
func ValidateQuantity(field, value string) error {
	if _, err := resource.ParseQuantity(value); err != nil {
		return cerrors.WrapWithContext(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid %s %q", field, value), err, map[string]any{"field": field})
	}
	return nil
}

// Require returns an INVALID_REQUEST error when value is empty.
func Require(field, value string) error {
	if value == "" {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
			field+" is required", map[string]any{"field": field})
	}
	return nil
}

// ValidateVersion checks value is a numeric engine version such as 14 or
// 8.0.36.
func ValidateVersion(field, value string) error {
	if err := Require(field, value); err != nil {
		return err
	}
	if _, err := version.Parse(value); err != nil {
		return cerrors.WrapWithContext(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid %s %q", field, value), err, map[string]any{"field": field})
	}
	return nil
}

// Timestamp renders now the way restart annotations expect.
func Timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
