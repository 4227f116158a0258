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

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/cloud-agnost/provisioner/pkg/controller"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/queue"
	"github.com/cloud-agnost/provisioner/pkg/serializer"
)

var errUnsupported = errors.New("unsupported resource operation")

// Registrar attaches consumers to queues.
type Registrar interface {
	Register(ctx context.Context, c queue.Consumer) error
}

// Publisher sends a payload to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

// Broker is a Registrar holding one long-lived connection.
type Broker interface {
	Registrar
	Connect(ctx context.Context) error
	Disconnect() error
}

// Option configures a Worker.
type Option func(*Worker)

// WithCallbackClient replaces the HTTP client used for callbacks.
func WithCallbackClient(c *serializer.Client) Option {
	return func(w *Worker) {
		w.callbacks = c
	}
}

// Worker turns resource management messages into orchestrator calls.
type Worker struct {
	cfg       Config
	ctrl      *controller.Controller
	callbacks *serializer.Client
	now       func() time.Time
}

// New returns a Worker driving ctrl.
func New(cfg Config, ctrl *controller.Controller, opts ...Option) *Worker {
	w := &Worker{
		cfg:  cfg,
		ctrl: ctrl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.callbacks == nil {
		w.callbacks = serializer.NewClient(serializer.WithTimeout(cfg.CallbackTimeout))
	}
	return w
}

// Register attaches Handle to every resource management queue.
func (w *Worker) Register(ctx context.Context, r Registrar) error {
	var errs []error
	for _, q := range w.cfg.Queues() {
		if err := r.Register(ctx, queue.Consumer{Queue: q, Handler: w.Handle}); err != nil {
			errs = append(errs, fmt.Errorf("failed to register queue %s: %w", q, err))
		}
	}
	return errors.Join(errs...)
}

// Run registers the resource management consumers on b, connects and
// consumes until ctx is done. A failed first connect is logged; b keeps
// retrying in the background.
func (w *Worker) Run(ctx context.Context, b Broker) error {
	if err := w.Register(ctx, b); err != nil {
		return err
	}
	if err := b.Connect(ctx); err != nil {
		slog.Warn("initial message queue connection failed", "error", err)
	}
	slog.Info("worker started", "queues", w.cfg.Queues())

	<-ctx.Done()

	if err := b.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect worker: %w", err)
	}
	slog.Info("worker stopped")
	return nil
}

// Enqueue publishes m to a randomly chosen resource management queue and
// returns the queue name.
func Enqueue(ctx context.Context, p Publisher, cfg Config, m Message) (string, error) {
	if cfg.QueueCount < 1 {
		return "", cerrors.New(cerrors.ErrCodeInvalidRequest, "queue count must be at least 1")
	}
	q := cfg.Queues()[rand.IntN(cfg.QueueCount)]
	if err := p.Publish(ctx, q, m); err != nil {
		return "", err
	}
	return q, nil
}

// Handle processes one message body. Messages for unmanaged resources and
// unsupported operations are skipped. A malformed message or a failed
// operation returns an error.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "malformed resource message", err)
	}
	if !m.IsManaged() {
		slog.Debug("skipping unmanaged resource", "type", m.Type, "name", m.Name)
		return nil
	}
	if m.Action == "" || m.Type == "" {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "resource message needs an action and a type")
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.HandlerTimeout)
	defer cancel()

	started := w.now()
	result, err := w.dispatch(ctx, m)
	if errors.Is(err, errUnsupported) {
		slog.Info("skipping unsupported resource operation",
			"action", m.Action, "type", m.Type, "instance", m.Instance)
		return nil
	}

	w.report(ctx, m, started, result, err)
	if err != nil {
		slog.Error("resource operation failed",
			"action", m.Action, "type", m.Type, "instance", m.Instance, "name", m.Name, "error", err)
		return err
	}
	slog.Info("resource operation completed",
		"action", m.Action, "type", m.Type, "instance", m.Instance, "name", m.Name)
	return nil
}

func (w *Worker) dispatch(ctx context.Context, m Message) (any, error) {
	c := w.ctrl
	switch m.route() {
	case "database/postgresql/create":
		return run(ctx, m.Config, c.Postgres.Create)
	case "database/postgresql/update":
		return run(ctx, m.Config, c.Postgres.Update)
	case "database/postgresql/delete":
		ref, err := decode[controller.ServerRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.Postgres.Delete(ctx, ref.ServerName)
	case "database/postgresql/restart":
		ref, err := decode[controller.ServerRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.Postgres.Restart(ctx, ref.ServerName)

	case "database/mysql/create":
		return run(ctx, m.Config, c.MySQL.Create)
	case "database/mysql/update":
		return run(ctx, m.Config, c.MySQL.Update)
	case "database/mysql/delete":
		ref, err := decode[controller.ClusterRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.MySQL.Delete(ctx, ref.ClusterName, ref.PurgeData)

	case "database/mariadb/create":
		return run(ctx, m.Config, c.MariaDB.Create)
	case "database/mariadb/update":
		return run(ctx, m.Config, c.MariaDB.Update)
	case "database/mariadb/delete":
		ref, err := decode[controller.ServerRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.MariaDB.Delete(ctx, ref.ServerName)

	case "database/mongodb/create":
		return run(ctx, m.Config, c.MongoDB.Create)
	case "database/mongodb/update":
		return run(ctx, m.Config, c.MongoDB.Update)
	case "database/mongodb/delete":
		ref, err := decode[controller.ClusterRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.MongoDB.Delete(ctx, ref.ClusterName)

	case "cache/redis/create":
		return run(ctx, m.Config, c.Redis.Create)
	case "cache/redis/delete":
		ref, err := decode[controller.ClusterRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.Redis.Delete(ctx, ref.ClusterName, ref.PurgeData)

	case "queue/rabbitmq/create":
		return run(ctx, m.Config, c.RabbitMQ.Create)
	case "queue/rabbitmq/update":
		return run(ctx, m.Config, c.RabbitMQ.Update)
	case "queue/rabbitmq/delete":
		ref, err := decode[controller.ClusterRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.RabbitMQ.Delete(ctx, ref.ClusterName, ref.Username)
	case "queue/rabbitmq/restart":
		ref, err := decode[controller.ClusterRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.RabbitMQ.Restart(ctx, ref.ClusterName)

	case "storage/minio/resize":
		return run(ctx, m.Config, c.Storage.Resize)

	case "domain/attach":
		ref, err := decode[controller.DomainRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nonNil(c.Domains.Attach(ctx, ref.DomainName))
	case "domain/detach":
		ref, err := decode[controller.DomainRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nonNil(c.Domains.Detach(ctx, ref.DomainName))

	case "deployment/restart":
		ref, err := decode[controller.DeploymentRef](m.Config)
		if err != nil {
			return nil, err
		}
		return nil, c.RestartDeployment(ctx, ref)
	}
	return nil, errUnsupported
}

// run decodes the message config into T and calls op.
func run[T any, R any](ctx context.Context, raw json.RawMessage, op func(context.Context, T) (R, error)) (any, error) {
	req, err := decode[T](raw)
	if err != nil {
		return nil, err
	}
	return nonNil(op(ctx, req))
}

// nonNil drops the result when err is set so that a typed nil never
// reaches the report.
func nonNil[R any](r R, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, cerrors.New(cerrors.ErrCodeInvalidRequest, "resource message has no config")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "malformed resource config", err)
	}
	return v, nil
}

// report posts the outcome to the message callback, if any. Failures are
// logged and never change the outcome of the message.
func (w *Worker) report(ctx context.Context, m Message, started time.Time, result any, opErr error) {
	if m.Callback == "" {
		return
	}

	r := Report{Status: StatusOK, Result: result}
	entry := LogEntry{
		StartedAt: started.UTC(),
		Status:    StatusOK,
		Message:   fmt.Sprintf("Completed %s operation on '%s' (%s) resource '%s' successfully", m.Action, m.Type, m.Instance, m.Name),
	}
	if opErr != nil {
		r.Status = StatusError
		entry.Status = StatusError
		entry.Message = fmt.Sprintf("Cannot %s '%s' (%s) resource named '%s': %v", m.Action, m.Type, m.Instance, m.Name, opErr)
	}
	r.Logs = []LogEntry{entry}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.CallbackTimeout)
	defer cancel()

	headers := http.Header{}
	if w.cfg.MasterToken != "" {
		headers.Set("Authorization", w.cfg.MasterToken)
	}
	if err := w.callbacks.PostJSON(ctx, m.Callback, headers, r); err != nil {
		slog.Warn("failed to send operation report", "callback", m.Callback, "error", err)
	}
}
