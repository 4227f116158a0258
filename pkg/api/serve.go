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

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/cloud-agnost/provisioner/pkg/controller"
	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
	"github.com/cloud-agnost/provisioner/pkg/provision"
	"github.com/cloud-agnost/provisioner/pkg/queue"
	"github.com/cloud-agnost/provisioner/pkg/server"
	"github.com/cloud-agnost/provisioner/pkg/worker"
)

const (
	name           = "provisionerd"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/cloud-agnost/provisioner/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Options configures Serve.
type Options struct {
	// Kubeconfig selects the cluster. Empty uses the default lookup.
	Kubeconfig string

	Provision provision.Config
	Server    *server.Config

	// Queue enables the resource management worker alongside the API.
	// Nil serves HTTP only.
	Queue  *queue.Config
	Worker worker.Config
}

// OptionsFromEnv reads every setting from the environment. The worker is
// enabled when a queue address is configured.
func OptionsFromEnv() (Options, error) {
	opts := Options{
		Provision: provision.DefaultConfig(),
		Server:    server.NewConfig(),
	}

	qc, err := queue.ConfigFromEnv()
	if err != nil {
		return opts, err
	}
	if qc.URL != "" || qc.Host != "" {
		opts.Queue = &qc
	}

	if opts.Worker, err = worker.ConfigFromEnv(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Serve starts the API server, and the worker when a queue is configured,
// and blocks until shutdown.
func Serve(ctx context.Context, opts Options) error {
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
	)

	clients, err := client.BuildClients(opts.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes clients: %w", err)
	}
	ctrl, err := controller.NewFromClients(clients, opts.Provision)
	if err != nil {
		return err
	}

	s, tasks, err := build(ctrl, opts)
	if err != nil {
		return err
	}

	notify(daemon.SdNotifyReady)
	defer notify(daemon.SdNotifyStopping)

	if err := s.Run(ctx, tasks...); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}
	return nil
}

// build assembles the server and the background tasks for ctrl.
func build(ctrl *controller.Controller, opts Options) (*server.Server, []func(context.Context) error, error) {
	cfg := opts.Server
	if cfg == nil {
		cfg = server.NewConfig()
	}
	cfg.Name = name
	cfg.Version = version

	serverOpts := []server.Option{
		server.WithConfig(cfg),
		server.WithHandler(NewHandlers(ctrl).Routes()),
	}

	var tasks []func(context.Context) error
	if opts.Queue != nil {
		if err := opts.Queue.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid queue config: %w", err)
		}
		if err := opts.Worker.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid worker config: %w", err)
		}
		mgr := queue.NewManager(*opts.Queue)
		w := worker.New(opts.Worker, ctrl)

		serverOpts = append(serverOpts,
			server.WithReadinessCheck("queue", queueReady(mgr)),
			server.WithHandler(map[string]http.HandlerFunc{
				"POST /v1/resources": enqueue(mgr, opts.Worker),
			}),
		)
		tasks = append(tasks, func(ctx context.Context) error {
			return w.Run(ctx, mgr)
		})
	}

	return server.New(serverOpts...), tasks, nil
}

// queueReady reports whether the broker connection is up.
func queueReady(mgr *queue.Manager) server.ReadinessCheck {
	return func(context.Context) error {
		if st := mgr.State(); st != queue.StateConnected {
			return errors.New("message queue " + st.String())
		}
		return nil
	}
}

func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		slog.Warn("failed to notify systemd", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("notified systemd", "state", state)
	}
}
