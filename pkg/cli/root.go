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
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
	"github.com/cloud-agnost/provisioner/pkg/logging"
	"github.com/cloud-agnost/provisioner/pkg/provision"
	"github.com/cloud-agnost/provisioner/pkg/serializer"
)

const (
	name           = "provisioner"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Flags shared by several commands. Each call returns a fresh flag so that
// parsed state never leaks between commands.
func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path (default: stdout)",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("Output format (supported values: %v)", serializer.SupportedFormats()),
	}
}

func requestFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "request",
		Aliases:  []string{"f"},
		Required: true,
		Usage: `Path/URI to the request document (JSON or YAML).
	Supports: file paths, HTTP/HTTPS URLs, or ConfigMap URIs (cm://namespace/name).`,
	}
}

// Execute runs the CLI with os.Args and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Version:               fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		EnableShellCompletion: true,
		Usage:                 "Provision managed databases, caches, brokers, storage and domains on Kubernetes",
		Description: `provisioner drives Kubernetes operators to create and maintain managed services:

  postgres   - PostgreSQL clusters (Zalando operator)
  mysql      - MySQL InnoDB clusters
  mariadb    - MariaDB servers
  mongodb    - MongoDB replica sets (community operator)
  redis      - Redis deployments, standalone or with read replicas
  rabbitmq   - RabbitMQ clusters with a management user
  storage    - object storage volume expansion
  domain     - custom TLS domains on the platform ingresses
  deployment - Deployment restarts

serve runs the HTTP API, worker consumes resource management messages.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars(logging.EnvLogLevel),
			},
			&cli.StringFlag{
				Name:    "kubeconfig",
				Usage:   "Path to the kubeconfig file (default: in-cluster or ~/.kube/config)",
				Sources: cli.EnvVars("KUBECONFIG"),
			},
			&cli.StringFlag{
				Name:    "namespace",
				Aliases: []string{"n"},
				Value:   "default",
				Usage:   "Namespace receiving provisioned resources",
				Sources: cli.EnvVars(provision.EnvNamespace),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))
			slog.Debug("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date,
			)
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			workerCmd(),
			enqueueCmd(),
			templatesCmd(),
			postgresCmd(),
			mysqlCmd(),
			mariadbCmd(),
			mongodbCmd(),
			redisCmd(),
			rabbitmqCmd(),
			storageCmd(),
			domainCmd(),
			deploymentCmd(),
		},
	}
}

// parseOutputFormat returns the --format value, rejecting unknown formats.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, supported values: %v", f, serializer.SupportedFormats())
	}
	return f, nil
}

// provisionConfig returns the orchestrator config with --namespace applied.
func provisionConfig(cmd *cli.Command) provision.Config {
	cfg := provision.DefaultConfig()
	if ns := cmd.String("namespace"); ns != "" {
		cfg.Namespace = ns
	}
	return cfg
}

// buildClients connects to the cluster named by --kubeconfig.
func buildClients(cmd *cli.Command) (*client.Clients, error) {
	clients, err := client.BuildClients(cmd.String("kubeconfig"))
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clients: %w", err)
	}
	return clients, nil
}

// writeOutput serializes v to --output in --format.
func writeOutput(ctx context.Context, cmd *cli.Command, v any) error {
	format, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}
	w := serializer.NewFileWriterOrStdout(format, cmd.String("output"))
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close serializer", "error", err)
		}
	}()
	return w.Serialize(ctx, v)
}
