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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/cloud-agnost/provisioner/pkg/controller"
	"github.com/cloud-agnost/provisioner/pkg/defaults"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/provision/domain"
	"github.com/cloud-agnost/provisioner/pkg/serializer"
	"github.com/cloud-agnost/provisioner/pkg/server"
	"github.com/cloud-agnost/provisioner/pkg/worker"
)

// MessageResponse acknowledges an operation that returns no data.
type MessageResponse struct {
	Message string `json:"message"`
}

// Handlers binds HTTP routes to the orchestrators of a Controller.
type Handlers struct {
	ctrl *controller.Controller

	provisionTimeout time.Duration
	mutateTimeout    time.Duration
}

// NewHandlers returns handlers over ctrl with the default operation timeouts.
func NewHandlers(ctrl *controller.Controller) *Handlers {
	return &Handlers{
		ctrl:             ctrl,
		provisionTimeout: defaults.ProvisionHandlerTimeout,
		mutateTimeout:    defaults.MutateHandlerTimeout,
	}
}

// Routes returns every lifecycle route keyed by mux pattern.
func (h *Handlers) Routes() map[string]http.HandlerFunc {
	c := h.ctrl
	return map[string]http.HandlerFunc{
		"POST /v1/databases/postgresql":         created(h.provisionTimeout, c.Postgres.Create),
		"PUT /v1/databases/postgresql":          result(h.mutateTimeout, c.Postgres.Update),
		"DELETE /v1/databases/postgresql":       action(h.mutateTimeout, h.deletePostgres),
		"POST /v1/databases/postgresql/restart": action(h.mutateTimeout, h.restartPostgres),

		"POST /v1/databases/mysql":   created(h.provisionTimeout, c.MySQL.Create),
		"PUT /v1/databases/mysql":    result(h.mutateTimeout, c.MySQL.Update),
		"DELETE /v1/databases/mysql": action(h.mutateTimeout, h.deleteMySQL),

		"POST /v1/databases/mariadb":   created(h.provisionTimeout, c.MariaDB.Create),
		"PUT /v1/databases/mariadb":    result(h.mutateTimeout, c.MariaDB.Update),
		"DELETE /v1/databases/mariadb": action(h.mutateTimeout, h.deleteMariaDB),

		"POST /v1/databases/mongodb":   created(h.provisionTimeout, c.MongoDB.Create),
		"PUT /v1/databases/mongodb":    result(h.mutateTimeout, c.MongoDB.Update),
		"DELETE /v1/databases/mongodb": action(h.mutateTimeout, h.deleteMongoDB),

		"POST /v1/caches/redis":   created(h.provisionTimeout, c.Redis.Create),
		"DELETE /v1/caches/redis": action(h.mutateTimeout, h.deleteRedis),

		"POST /v1/brokers/rabbitmq":         created(h.mutateTimeout, c.RabbitMQ.Create),
		"PUT /v1/brokers/rabbitmq":          result(h.mutateTimeout, c.RabbitMQ.Update),
		"DELETE /v1/brokers/rabbitmq":       action(h.mutateTimeout, h.deleteRabbitMQ),
		"POST /v1/brokers/rabbitmq/restart": action(h.mutateTimeout, h.restartRabbitMQ),

		"POST /v1/storage/resize": result(h.mutateTimeout, c.Storage.Resize),

		"POST /v1/domains":   result(h.mutateTimeout, h.attachDomain),
		"DELETE /v1/domains": result(h.mutateTimeout, h.detachDomain),

		"POST /v1/deployments/restart":        action(h.mutateTimeout, h.scaleRestart),
		"POST /v1/deployments/rolloutrestart": action(h.mutateTimeout, h.rolloutRestart),
	}
}

func (h *Handlers) deletePostgres(ctx context.Context, ref controller.ServerRef) (string, error) {
	if err := h.ctrl.Postgres.Delete(ctx, ref.ServerName); err != nil {
		return "", err
	}
	return fmt.Sprintf("PostgreSQL cluster %s deleted", ref.ServerName), nil
}

func (h *Handlers) restartPostgres(ctx context.Context, ref controller.ServerRef) (string, error) {
	if err := h.ctrl.Postgres.Restart(ctx, ref.ServerName); err != nil {
		return "", err
	}
	return fmt.Sprintf("PostgreSQL cluster %s restarted", ref.ServerName), nil
}

func (h *Handlers) deleteMySQL(ctx context.Context, ref controller.ClusterRef) (string, error) {
	if err := h.ctrl.MySQL.Delete(ctx, ref.ClusterName, ref.PurgeData); err != nil {
		return "", err
	}
	return fmt.Sprintf("MySQL cluster %s deleted", ref.ClusterName), nil
}

func (h *Handlers) deleteMariaDB(ctx context.Context, ref controller.ServerRef) (string, error) {
	if err := h.ctrl.MariaDB.Delete(ctx, ref.ServerName); err != nil {
		return "", err
	}
	return fmt.Sprintf("MariaDB server %s deleted", ref.ServerName), nil
}

func (h *Handlers) deleteMongoDB(ctx context.Context, ref controller.ClusterRef) (string, error) {
	if err := h.ctrl.MongoDB.Delete(ctx, ref.ClusterName); err != nil {
		return "", err
	}
	return fmt.Sprintf("MongoDB replica set %s deleted", ref.ClusterName), nil
}

func (h *Handlers) deleteRedis(ctx context.Context, ref controller.ClusterRef) (string, error) {
	if err := h.ctrl.Redis.Delete(ctx, ref.ClusterName, ref.PurgeData); err != nil {
		return "", err
	}
	return fmt.Sprintf("Redis deployment %s deleted", ref.ClusterName), nil
}

func (h *Handlers) deleteRabbitMQ(ctx context.Context, ref controller.ClusterRef) (string, error) {
	if err := h.ctrl.RabbitMQ.Delete(ctx, ref.ClusterName, ref.Username); err != nil {
		return "", err
	}
	return fmt.Sprintf("RabbitMQ cluster %s deleted", ref.ClusterName), nil
}

func (h *Handlers) restartRabbitMQ(ctx context.Context, ref controller.ClusterRef) (string, error) {
	if err := h.ctrl.RabbitMQ.Restart(ctx, ref.ClusterName); err != nil {
		return "", err
	}
	return fmt.Sprintf("RabbitMQ cluster %s restarted", ref.ClusterName), nil
}

func (h *Handlers) attachDomain(ctx context.Context, ref controller.DomainRef) (*domain.Result, error) {
	return h.ctrl.Domains.Attach(ctx, ref.DomainName)
}

func (h *Handlers) detachDomain(ctx context.Context, ref controller.DomainRef) (*domain.Result, error) {
	return h.ctrl.Domains.Detach(ctx, ref.DomainName)
}

func (h *Handlers) scaleRestart(ctx context.Context, ref controller.DeploymentRef) (string, error) {
	ref.Mode = controller.RestartScale
	if err := h.ctrl.RestartDeployment(ctx, ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deployment %s restarted", ref.Name), nil
}

func (h *Handlers) rolloutRestart(ctx context.Context, ref controller.DeploymentRef) (string, error) {
	ref.Mode = controller.RestartRollout
	if err := h.ctrl.RestartDeployment(ctx, ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deployment %s rollout restart triggered", ref.Name), nil
}

// created responds 201 with the result of op.
func created[T, R any](timeout time.Duration, op func(context.Context, T) (R, error)) http.HandlerFunc {
	return handle(timeout, http.StatusCreated, op)
}

// result responds 200 with the result of op.
func result[T, R any](timeout time.Duration, op func(context.Context, T) (R, error)) http.HandlerFunc {
	return handle(timeout, http.StatusOK, op)
}

// action responds 200 with the message op returns.
func action[T any](timeout time.Duration, op func(context.Context, T) (string, error)) http.HandlerFunc {
	return handle(timeout, http.StatusOK, func(ctx context.Context, req T) (MessageResponse, error) {
		msg, err := op(ctx, req)
		return MessageResponse{Message: msg}, err
	})
}

func handle[T, R any](timeout time.Duration, status int, op func(context.Context, T) (R, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeBody[T](r)
		if err != nil {
			server.WriteErrorFromErr(w, r, err, "Invalid request", nil)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, err := op(ctx, *req)
		if err != nil {
			slog.Warn("operation failed",
				"requestID", server.RequestID(r.Context()),
				"route", r.Pattern,
				"error", err,
			)
			server.WriteErrorFromErr(w, r, err, "Operation failed", nil)
			return
		}
		serializer.RespondJSON(w, status, res)
	}
}

// requestFormat selects the body codec from Content-Type. JSON is the default.
func requestFormat(r *http.Request) serializer.Format {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return serializer.FormatJSON
	}
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return serializer.FormatYAML
	default:
		return serializer.FormatJSON
	}
}

// decodeBody reads the request body into a new T. Unknown fields are
// rejected.
func decodeBody[T any](r *http.Request) (*T, error) {
	if r.Body == nil {
		return nil, cerrors.New(cerrors.ErrCodeInvalidRequest, "request body is required")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest, "request body too large",
				map[string]any{"limit": maxErr.Limit})
		}
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "failed to read request body", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, cerrors.New(cerrors.ErrCodeInvalidRequest, "request body is required")
	}

	v, err := serializer.Decode[T](requestFormat(r), data)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "malformed request body", err)
	}
	return v, nil
}

// EnqueueResponse names the queue a message was published to.
type EnqueueResponse struct {
	Queue string `json:"queue"`
}

// enqueue publishes a resource management message for the worker and
// responds 202 without waiting for the outcome.
func enqueue(p worker.Publisher, cfg worker.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := decodeBody[worker.Message](r)
		if err != nil {
			server.WriteErrorFromErr(w, r, err, "Invalid request", nil)
			return
		}
		if m.Action == "" || m.Type == "" {
			server.WriteError(w, r, http.StatusBadRequest, cerrors.ErrCodeInvalidRequest,
				"message needs an action and a type", false, nil)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), defaults.MutateHandlerTimeout)
		defer cancel()

		q, err := worker.Enqueue(ctx, p, cfg, *m)
		if err != nil {
			server.WriteErrorFromErr(w, r, err, "Failed to enqueue message", nil)
			return
		}
		serializer.RespondJSON(w, http.StatusAccepted, EnqueueResponse{Queue: q})
	}
}
