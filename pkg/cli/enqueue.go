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
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/cloud-agnost/provisioner/pkg/queue"
	"github.com/cloud-agnost/provisioner/pkg/serializer"
	"github.com/cloud-agnost/provisioner/pkg/worker"
)

func enqueueCmd() *cli.Command {
	return &cli.Command{
		Name:  "enqueue",
		Usage: "Publish a resource management message for the worker",
		Description: `Reads a message document and publishes it to one of the resource
management queues. The broker address comes from QUEUE_URL or QUEUE_HOST.

Example message:

  action: restart
  type: deployment
  config:
    name: engine
    mode: rollout`,
		Flags: []cli.Flag{requestFlag(), outputFlag(), formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			path := cmd.String("request")
			m, err := serializer.FromFile[worker.Message](ctx, path)
			if err != nil {
				return fmt.Errorf("failed to load message from %q: %w", path, err)
			}

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

			q, err := publishOnce(ctx, qc, wc, *m)
			if err != nil {
				return err
			}
			return writeOutput(ctx, cmd, map[string]string{"queue": q})
		},
	}
}

// publishOnce connects without retrying, publishes m and disconnects.
func publishOnce(ctx context.Context, qc queue.Config, wc worker.Config, m worker.Message) (string, error) {
	qc.MaxRetries = 0
	mgr := queue.NewManager(qc, queue.WithFatalHandler(func(err error) {
		slog.Debug("message queue unreachable", "error", err)
	}))
	if err := mgr.Connect(ctx); err != nil {
		return "", err
	}
	defer func() {
		if err := mgr.Disconnect(); err != nil {
			slog.Warn("failed to disconnect from the message queue", "error", err)
		}
	}()
	return worker.Enqueue(ctx, mgr, wc, m)
}
