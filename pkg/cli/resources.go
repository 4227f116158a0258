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
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cloud-agnost/provisioner/pkg/controller"
	"github.com/cloud-agnost/provisioner/pkg/defaults"
	"github.com/cloud-agnost/provisioner/pkg/k8s/client"
	"github.com/cloud-agnost/provisioner/pkg/provision"
	"github.com/cloud-agnost/provisioner/pkg/provision/broker"
	"github.com/cloud-agnost/provisioner/pkg/provision/cache"
	"github.com/cloud-agnost/provisioner/pkg/provision/database"
	"github.com/cloud-agnost/provisioner/pkg/provision/domain"
	"github.com/cloud-agnost/provisioner/pkg/provision/storage"
	"github.com/cloud-agnost/provisioner/pkg/serializer"
)

// outcome is printed by commands whose operation returns no data.
type outcome struct {
	Message string `json:"message"`
}

// newController builds the controller for a command. Tests replace it.
var newController = func(cmd *cli.Command) (*controller.Controller, client.Interface, error) {
	clients, err := buildClients(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := controller.NewFromClients(clients, provisionConfig(cmd))
	if err != nil {
		return nil, nil, err
	}
	return ctrl, clients.Typed, nil
}

var titler = cases.Title(language.English)

// familyTitle renders a family for humans, as in "Database".
func familyTitle(f provision.Family) string {
	return titler.String(string(f))
}

// requestCmd reads a T from --request, runs op and prints its result.
func requestCmd[T, R any](name, usage string, op func(*controller.Controller) func(context.Context, T) (R, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{requestFlag(), outputFlag(), formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			ctrl, kube, err := newController(cmd)
			if err != nil {
				return err
			}

			path := cmd.String("request")
			req, err := serializer.FromFile[T](ctx, path, serializer.WithKubeClient(kube))
			if err != nil {
				return fmt.Errorf("failed to load request from %q: %w", path, err)
			}

			opCtx, cancel := context.WithTimeout(ctx, defaults.CLIOperationTimeout)
			defer cancel()

			res, err := op(ctrl)(opCtx, *req)
			if err != nil {
				return fmt.Errorf("%s failed: %w", name, err)
			}
			return writeOutput(ctx, cmd, res)
		},
	}
}

// actionCmd is requestCmd for operations without a result. done renders
// the completion message from the request.
func actionCmd[T any](family provision.Family, name, usage string, op func(*controller.Controller) func(context.Context, T) error, done func(T) string) *cli.Command {
	return requestCmd(name, usage, func(c *controller.Controller) func(context.Context, T) (outcome, error) {
		return func(ctx context.Context, req T) (outcome, error) {
			if err := op(c)(ctx, req); err != nil {
				return outcome{}, err
			}
			return outcome{Message: fmt.Sprintf("%s %s", familyTitle(family), done(req))}, nil
		}
	})
}

func postgresCmd() *cli.Command {
	return &cli.Command{
		Name:  "postgres",
		Usage: "Manage PostgreSQL clusters",
		Commands: []*cli.Command{
			requestCmd("create", "Create a cluster and print its connection details",
				func(c *controller.Controller) func(context.Context, database.PostgresRequest) (*provision.ConnectionDescriptor, error) {
					return c.Postgres.Create
				}),
			requestCmd("update", "Change version, storage or instance count",
				func(c *controller.Controller) func(context.Context, database.PostgresUpdate) (*provision.ConnectionDescriptor, error) {
					return c.Postgres.Update
				}),
			actionCmd(provision.FamilyDatabase, "delete", "Delete a cluster",
				func(c *controller.Controller) func(context.Context, controller.ServerRef) error {
					return func(ctx context.Context, ref controller.ServerRef) error {
						return c.Postgres.Delete(ctx, ref.ServerName)
					}
				},
				func(ref controller.ServerRef) string { return ref.ServerName + " deleted" }),
			actionCmd(provision.FamilyDatabase, "restart", "Roll every cluster pod",
				func(c *controller.Controller) func(context.Context, controller.ServerRef) error {
					return func(ctx context.Context, ref controller.ServerRef) error {
						return c.Postgres.Restart(ctx, ref.ServerName)
					}
				},
				func(ref controller.ServerRef) string { return ref.ServerName + " restarted" }),
		},
	}
}

func mysqlCmd() *cli.Command {
	return &cli.Command{
		Name:  "mysql",
		Usage: "Manage MySQL InnoDB clusters",
		Commands: []*cli.Command{
			requestCmd("create", "Create a cluster and print its connection details",
				func(c *controller.Controller) func(context.Context, database.MySQLRequest) (*provision.ConnectionDescriptor, error) {
					return c.MySQL.Create
				}),
			requestCmd("update", "Change version, storage or instance count",
				func(c *controller.Controller) func(context.Context, database.MySQLUpdate) (*provision.ConnectionDescriptor, error) {
					return c.MySQL.Update
				}),
			actionCmd(provision.FamilyDatabase, "delete", "Delete a cluster, and its volumes with purgeData",
				func(c *controller.Controller) func(context.Context, controller.ClusterRef) error {
					return func(ctx context.Context, ref controller.ClusterRef) error {
						return c.MySQL.Delete(ctx, ref.ClusterName, ref.PurgeData)
					}
				},
				func(ref controller.ClusterRef) string { return ref.ClusterName + " deleted" }),
		},
	}
}

func mariadbCmd() *cli.Command {
	return &cli.Command{
		Name:  "mariadb",
		Usage: "Manage MariaDB servers",
		Commands: []*cli.Command{
			requestCmd("create", "Create a server and print its connection details",
				func(c *controller.Controller) func(context.Context, database.MariaDBRequest) (*provision.ConnectionDescriptor, error) {
					return c.MariaDB.Create
				}),
			requestCmd("update", "Change image tag or resources",
				func(c *controller.Controller) func(context.Context, database.MariaDBUpdate) (*provision.ConnectionDescriptor, error) {
					return c.MariaDB.Update
				}),
			actionCmd(provision.FamilyDatabase, "delete", "Delete a server and its credentials",
				func(c *controller.Controller) func(context.Context, controller.ServerRef) error {
					return func(ctx context.Context, ref controller.ServerRef) error {
						return c.MariaDB.Delete(ctx, ref.ServerName)
					}
				},
				func(ref controller.ServerRef) string { return ref.ServerName + " deleted" }),
		},
	}
}

func mongodbCmd() *cli.Command {
	return &cli.Command{
		Name:  "mongodb",
		Usage: "Manage MongoDB replica sets",
		Commands: []*cli.Command{
			requestCmd("create", "Create a replica set and print its connection details",
				func(c *controller.Controller) func(context.Context, database.MongoDBRequest) (*provision.ConnectionDescriptor, error) {
					return c.MongoDB.Create
				}),
			requestCmd("update", "Change version, member count or resources",
				func(c *controller.Controller) func(context.Context, database.MongoDBUpdate) (*provision.ConnectionDescriptor, error) {
					return c.MongoDB.Update
				}),
			actionCmd(provision.FamilyDatabase, "delete", "Delete a replica set and its user secret",
				func(c *controller.Controller) func(context.Context, controller.ClusterRef) error {
					return func(ctx context.Context, ref controller.ClusterRef) error {
						return c.MongoDB.Delete(ctx, ref.ClusterName)
					}
				},
				func(ref controller.ClusterRef) string { return ref.ClusterName + " deleted" }),
		},
	}
}

func redisCmd() *cli.Command {
	return &cli.Command{
		Name:  "redis",
		Usage: "Manage Redis deployments",
		Commands: []*cli.Command{
			requestCmd("create", "Create a deployment, with read replicas if requested",
				func(c *controller.Controller) func(context.Context, cache.RedisRequest) (*provision.ConnectionDescriptor, error) {
					return c.Redis.Create
				}),
			actionCmd(provision.FamilyCache, "delete", "Delete a deployment, and its volumes with purgeData",
				func(c *controller.Controller) func(context.Context, controller.ClusterRef) error {
					return func(ctx context.Context, ref controller.ClusterRef) error {
						return c.Redis.Delete(ctx, ref.ClusterName, ref.PurgeData)
					}
				},
				func(ref controller.ClusterRef) string { return ref.ClusterName + " deleted" }),
		},
	}
}

func rabbitmqCmd() *cli.Command {
	return &cli.Command{
		Name:  "rabbitmq",
		Usage: "Manage RabbitMQ clusters",
		Commands: []*cli.Command{
			requestCmd("create", "Create a cluster with a management user",
				func(c *controller.Controller) func(context.Context, broker.Request) (*provision.ConnectionDescriptor, error) {
					return c.RabbitMQ.Create
				}),
			requestCmd("update", "Change version, storage or replica count",
				func(c *controller.Controller) func(context.Context, broker.Update) (*provision.ConnectionDescriptor, error) {
					return c.RabbitMQ.Update
				}),
			actionCmd(provision.FamilyBroker, "delete", "Delete a cluster and its user",
				func(c *controller.Controller) func(context.Context, controller.ClusterRef) error {
					return func(ctx context.Context, ref controller.ClusterRef) error {
						return c.RabbitMQ.Delete(ctx, ref.ClusterName, ref.Username)
					}
				},
				func(ref controller.ClusterRef) string { return ref.ClusterName + " deleted" }),
			actionCmd(provision.FamilyBroker, "restart", "Roll every broker pod",
				func(c *controller.Controller) func(context.Context, controller.ClusterRef) error {
					return func(ctx context.Context, ref controller.ClusterRef) error {
						return c.RabbitMQ.Restart(ctx, ref.ClusterName)
					}
				},
				func(ref controller.ClusterRef) string { return ref.ClusterName + " restarted" }),
		},
	}
}

func storageCmd() *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Manage object storage volumes",
		Commands: []*cli.Command{
			requestCmd("resize", "Expand the engine volumes and recreate its pods",
				func(c *controller.Controller) func(context.Context, storage.ResizeRequest) (*storage.ResizeReport, error) {
					return c.Storage.Resize
				}),
		},
	}
}

func domainCmd() *cli.Command {
	return &cli.Command{
		Name:  "domain",
		Usage: "Manage custom TLS domains",
		Commands: []*cli.Command{
			requestCmd("attach", "Issue a certificate and route the platform ingresses to a domain",
				func(c *controller.Controller) func(context.Context, controller.DomainRef) (*domain.Result, error) {
					return func(ctx context.Context, ref controller.DomainRef) (*domain.Result, error) {
						return c.Domains.Attach(ctx, ref.DomainName)
					}
				}),
			requestCmd("detach", "Remove a domain from the platform ingresses",
				func(c *controller.Controller) func(context.Context, controller.DomainRef) (*domain.Result, error) {
					return func(ctx context.Context, ref controller.DomainRef) (*domain.Result, error) {
						return c.Domains.Detach(ctx, ref.DomainName)
					}
				}),
		},
	}
}

func deploymentCmd() *cli.Command {
	return &cli.Command{
		Name:  "deployment",
		Usage: "Restart Deployments",
		Commands: []*cli.Command{
			actionCmd(provision.FamilyWorkload, "restart", "Restart a Deployment, mode rollout (default) or scale",
				func(c *controller.Controller) func(context.Context, controller.DeploymentRef) error {
					return c.RestartDeployment
				},
				func(ref controller.DeploymentRef) string { return ref.Name + " restarted" }),
		},
	}
}
