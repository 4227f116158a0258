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
	"context"
	"time"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/cloud-agnost/provisioner/pkg/applier"
	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/poller"
)

// Runtime bundles the collaborators an orchestrator composes.
// It holds no per-request state and is safe for concurrent use.
type Runtime struct {
	Typed   kubernetes.Interface
	Dynamic dynamic.Interface
	Applier *applier.Applier
	Loader  *manifest.Loader
	Poller  *poller.Poller
	Config  Config
}

// NewRuntime wires the applier, template loader and poller over clients.
func NewRuntime(clients *client.Clients, cfg Config) *Runtime {
	p := poller.New(clients.Typed)
	p.Interval = cfg.PollInterval
	p.Timeout = cfg.PollTimeout

	return &Runtime{
		Typed:   clients.Typed,
		Dynamic: clients.Dynamic,
		Applier: applier.New(clients.Typed, clients.Dynamic, cfg.Namespace),
		Loader:  manifest.NewLoader(),
		Poller:  p,
		Config:  cfg,
	}
}

// Settle pauses for the configured settle interval or until ctx is done.
func (r *Runtime) Settle(ctx context.Context) error {
	return Sleep(ctx, r.Config.SettleInterval)
}

// Sleep waits for d or until ctx is done. A non-positive d returns at once.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
