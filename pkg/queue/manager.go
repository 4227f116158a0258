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

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

// State is the connection state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Handler processes one delivery body. A nil error acknowledges the
// delivery; an error rejects it without requeue.
type Handler func(ctx context.Context, body []byte) error

// Consumer binds a handler to a durable queue.
type Consumer struct {
	Queue   string
	Handler Handler
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the amqp091-go dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dial = d
	}
}

// WithFatalHandler replaces the handler invoked once reconnect attempts
// are exhausted. The default logs and exits the process.
func WithFatalHandler(fn func(error)) Option {
	return func(m *Manager) {
		m.fatal = fn
	}
}

// Manager owns the single broker connection of the process. It reconnects
// after failures up to Config.MaxRetries consecutive attempts and
// re-registers every consumer on each new connection.
type Manager struct {
	cfg   Config
	dial  Dialer
	fatal func(error)

	mu         sync.Mutex
	state      State
	conn       Connection
	retryCount int
	retry      *time.Timer
	closing    bool
	consumers  []Consumer
}

// NewManager returns a disconnected Manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:   cfg,
		dial:  DialAMQP,
		fatal: exitOnFatal,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func exitOnFatal(err error) {
	slog.Error("cannot connect to the message queue, retry attempts exhausted", "error", err)
	os.Exit(1)
}

// Connect dials the broker. Only one attempt runs at a time: a call made
// while connected, connecting or waiting to retry returns nil at once. On
// failure a retry is scheduled and the dial error returned. Background
// retries and consumers stop when ctx is done.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected || m.retry != nil {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.closing = false
	m.mu.Unlock()

	return m.attempt(ctx)
}

func (m *Manager) attempt(ctx context.Context) error {
	slog.Debug("connecting to the message queue", "address", m.cfg.Redacted())

	conn, err := m.dial(m.cfg.Address())
	if err != nil {
		m.failed(ctx, err)
		return cerrors.Wrap(cerrors.ErrCodeUnavailable, "failed to connect to the message queue", err)
	}
	notify := conn.NotifyClose(make(chan *amqp.Error, 1))

	m.mu.Lock()
	if m.closing {
		m.state = StateDisconnected
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.state = StateConnected
	m.retryCount = 0
	consumers := slices.Clone(m.consumers)
	m.mu.Unlock()

	connectedGauge.Set(1)
	slog.Info("connected to the message queue", "address", m.cfg.Redacted())
	go m.watch(ctx, conn, notify)

	var errs []error
	for _, c := range consumers {
		if err := m.attach(ctx, conn, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// failed records a lost or refused connection and schedules a retry, or
// invokes the fatal handler once retries are exhausted.
func (m *Manager) failed(ctx context.Context, cause error) {
	connectedGauge.Set(0)

	m.mu.Lock()
	m.state = StateDisconnected
	m.conn = nil
	if m.closing || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	if m.retryCount >= m.cfg.MaxRetries {
		retries := m.retryCount
		m.mu.Unlock()
		m.fatal(cerrors.WrapWithContext(cerrors.ErrCodeConnectionExhausted,
			"message queue unreachable, retry attempts exhausted", cause,
			map[string]any{"retries": retries, "address": m.cfg.Redacted()}))
		return
	}
	m.retryCount++
	attempt := m.retryCount
	m.retry = time.AfterFunc(m.cfg.ReconnectInterval, func() { m.reconnect(ctx) })
	m.mu.Unlock()

	reconnectsTotal.Inc()
	slog.Warn("message queue connection failed, retrying",
		"attempt", attempt, "max_retries", m.cfg.MaxRetries,
		"interval", m.cfg.ReconnectInterval.String(), "error", cause)
}

func (m *Manager) reconnect(ctx context.Context) {
	m.mu.Lock()
	m.retry = nil
	if m.closing || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.mu.Unlock()

	if err := m.attempt(ctx); err != nil {
		slog.Debug("reconnect attempt failed", "error", err)
	}
}

// watch waits for conn to close. A close carrying an error reconnects; a
// graceful close does not.
func (m *Manager) watch(ctx context.Context, conn Connection, notify <-chan *amqp.Error) {
	var cause *amqp.Error
	select {
	case cause = <-notify:
	case <-ctx.Done():
		if err := m.Disconnect(); err != nil {
			slog.Warn("failed to close message queue connection", "error", err)
		}
		return
	}

	m.mu.Lock()
	current := m.conn == conn
	m.mu.Unlock()
	if !current {
		return
	}

	if cause == nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.conn = nil
		m.mu.Unlock()
		connectedGauge.Set(0)
		slog.Info("message queue connection closed")
		return
	}
	slog.Error("message queue connection lost", "error", cause.Error(), "code", cause.Code)
	m.failed(ctx, cause)
}

// Disconnect closes the connection and cancels any pending retry. It does
// not trigger a reconnect.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.closing = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	connectedGauge.Set(0)
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("failed to close message queue connection: %w", err)
	}
	slog.Info("disconnected from the message queue")
	return nil
}

// Current returns the live connection, or nil when not connected.
func (m *Manager) Current() Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// State returns the connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RetryCount returns the number of consecutive failed attempts since the
// last successful connect.
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// Register adds a consumer. It is attached on every successful connect,
// and immediately when a connection is already up.
func (m *Manager) Register(ctx context.Context, c Consumer) error {
	if c.Queue == "" || c.Handler == nil {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "consumer needs a queue and a handler")
	}
	m.mu.Lock()
	m.consumers = append(m.consumers, c)
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return m.attach(ctx, conn, c)
}

func (m *Manager) attach(ctx context.Context, conn Connection, c Consumer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel for queue %s: %w", c.Queue, err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue %s: %w", c.Queue, err)
	}
	if err := ch.Qos(m.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to set prefetch on queue %s: %w", c.Queue, err)
	}
	deliveries, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to consume queue %s: %w", c.Queue, err)
	}

	slog.Info("listening for messages", "queue", c.Queue)
	go serve(ctx, c, deliveries)
	return nil
}

// serve handles deliveries until the channel closes with its connection.
func serve(ctx context.Context, c Consumer, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		if err := c.Handler(ctx, d.Body); err != nil {
			slog.Error("message handling failed", "queue", c.Queue, "delivery_tag", d.DeliveryTag, "error", err)
			if nackErr := d.Nack(false, false); nackErr != nil {
				slog.Warn("failed to nack delivery", "queue", c.Queue, "error", nackErr)
			}
			deliveriesTotal.WithLabelValues(c.Queue, "nack").Inc()
			continue
		}
		if err := d.Ack(false); err != nil {
			slog.Warn("failed to ack delivery", "queue", c.Queue, "error", err)
		}
		deliveriesTotal.WithLabelValues(c.Queue, "ack").Inc()
	}
	slog.Debug("delivery channel closed", "queue", c.Queue)
}

// Publish sends payload as persistent JSON to the durable queue.
func (m *Manager) Publish(ctx context.Context, queue string, payload any) error {
	conn := m.Current()
	if conn == nil {
		return cerrors.New(cerrors.ErrCodeUnavailable, "not connected to the message queue")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "failed to encode message", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeUnavailable, "cannot create channel to message queue", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeUnavailable, fmt.Sprintf("failed to declare queue %s", queue), err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeUnavailable, fmt.Sprintf("failed to publish to queue %s", queue), err)
	}
	return nil
}
