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

package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/cloud-agnost/provisioner/pkg/api"
	"github.com/cloud-agnost/provisioner/pkg/controller"
	"github.com/cloud-agnost/provisioner/pkg/queue"
	"github.com/cloud-agnost/provisioner/pkg/server"
	"github.com/cloud-agnost/provisioner/pkg/worker"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, with the queue worker when a broker is configured",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "Listen port",
				Sources: cli.EnvVars(server.EnvPort),
			},
			&cli.BoolFlag{
				Name:  "no-worker",
				Usage: "Serve HTTP only even when a broker is configured",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := api.OptionsFromEnv()
			if err != nil {
				return err
			}
			opts.Kubeconfig = cmd.String("kubeconfig")
			opts.Provision = provisionConfig(cmd)
			opts.Server.Port = int(cmd.Int("port"))
			if cmd.Bool("no-worker") {
				opts.Queue = nil
			}
			return api.Serve(ctx, opts)
		},
	}
}

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Consume resource management messages until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			qc, err := queue.ConfigFromEnv()
			if err != nil {
				return err
			}
			if err := qc.Validate(); err != nil {
				return fmt.Errorf("invalid queue config: %w", err)
			}
			wc, err := worker.ConfigFromEnv()
			if err != nil {
				return err
			}

			ctrl, _, err := newController(cmd)
			if err != nil {
				return err
			}
			return runWorker(ctx, ctrl, qc, wc)
		},
	}
}

func runWorker(ctx context.Context, ctrl *controller.Controller, qc queue.Config, wc worker.Config) error {
	return worker.New(wc, ctrl).Run(ctx, queue.NewManager(qc))
}
