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
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

func testConfig(maxRetries int) Config {
	return Config{
		Host:              "rabbit:5672",
		MaxRetries:        maxRetries,
		ReconnectInterval: time.Millisecond,
		Prefetch:          1,
	}
}

type fatalRecorder struct {
	mu   sync.Mutex
	errs []error
	hit  chan struct{}
}

func newFatalRecorder() *fatalRecorder {
	return &fatalRecorder{hit: make(chan struct{}, 1)}
}

func (f *fatalRecorder) handle(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
	select {
	case f.hit <- struct{}{}:
	default:
	}
}

func (f *fatalRecorder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs)
}

func TestReconnectBound(t *testing.T) {
	const maxRetries = 3
	dialer := &fakeDialer{failures: -1}
	fatal := newFatalRecorder()
	m := NewManager(testConfig(maxRetries), WithDialer(dialer.dial), WithFatalHandler(fatal.handle))

	err := m.Connect(context.Background())
	require.Error(t, err)

	select {
	case <-fatal.hit:
	case <-time.After(waitFor):
		t.Fatal("fatal handler was not invoked")
	}

	assert.Equal(t, maxRetries+1, dialer.count(), "initial attempt plus one per retry")
	assert.Equal(t, maxRetries, m.RetryCount())
	assert.Equal(t, StateDisconnected, m.State())
	require.Equal(t, 1, fatal.calls())
	assert.True(t, cerrors.IsCode(fatal.errs[0], cerrors.ErrCodeConnectionExhausted))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, maxRetries+1, dialer.count(), "no attempt after the fatal path")
}

func TestReconnectZeroRetriesIsFatalAtOnce(t *testing.T) {
	dialer := &fakeDialer{failures: -1}
	fatal := newFatalRecorder()
	m := NewManager(testConfig(0), WithDialer(dialer.dial), WithFatalHandler(fatal.handle))

	require.Error(t, m.Connect(context.Background()))
	assert.Equal(t, 1, fatal.calls())
	assert.Equal(t, 1, dialer.count())
}

func TestConnectRecoversAndResetsRetryCount(t *testing.T) {
	dialer := &fakeDialer{failures: 2}
	fatal := newFatalRecorder()
	m := NewManager(testConfig(5), WithDialer(dialer.dial), WithFatalHandler(fatal.handle))

	require.Error(t, m.Connect(context.Background()))
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	assert.Equal(t, 3, dialer.count())
	assert.Equal(t, 0, m.RetryCount())
	assert.Zero(t, fatal.calls())
	assert.NotNil(t, m.Current())
}

func TestConnectIsReentrantGuarded(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(1), WithDialer(dialer.dial))

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1, dialer.count())
}

func TestConnectGuardsInFlightAttempt(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var dials int
	var mu sync.Mutex
	dial := func(string) (Connection, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		close(entered)
		<-release
		return &fakeConnection{}, nil
	}
	m := NewManager(testConfig(1), WithDialer(dial))

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()
	<-entered

	assert.Equal(t, StateConnecting, m.State())
	require.NoError(t, m.Connect(context.Background()))
	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, dials)
}

func TestUnexpectedCloseReconnectsAndReregisters(t *testing.T) {
	dialer := &fakeDialer{}
	fatal := newFatalRecorder()
	m := NewManager(testConfig(3), WithDialer(dialer.dial), WithFatalHandler(fatal.handle))

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, Consumer{Queue: "manage-resource-1", Handler: func(context.Context, []byte) error { return nil }}))
	require.NoError(t, m.Register(ctx, Consumer{Queue: "manage-resource-2", Handler: func(context.Context, []byte) error { return nil }}))
	require.NoError(t, m.Connect(ctx))

	first := dialer.conn(0)
	assert.Equal(t, []string{"manage-resource-1", "manage-resource-2"}, first.consumedQueues())

	first.drop(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED - broker shutdown"})

	require.Eventually(t, func() bool {
		second := dialer.conn(1)
		return second != nil && m.State() == StateConnected && len(second.consumedQueues()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"manage-resource-1", "manage-resource-2"}, dialer.conn(1).consumedQueues())
	assert.Zero(t, fatal.calls())
}

func TestDisconnectDoesNotReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(3), WithDialer(dialer.dial))

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Disconnect())

	assert.True(t, dialer.conn(0).closed)
	assert.Equal(t, StateDisconnected, m.State())
	assert.Nil(t, m.Current())
	assert.Never(t, func() bool { return dialer.count() > 1 }, 30*time.Millisecond, tick)
}

func TestDisconnectCancelsPendingRetry(t *testing.T) {
	dialer := &fakeDialer{failures: -1}
	cfg := testConfig(5)
	cfg.ReconnectInterval = 50 * time.Millisecond
	m := NewManager(cfg, WithDialer(dialer.dial), WithFatalHandler(func(error) {}))

	require.Error(t, m.Connect(context.Background()))
	require.NoError(t, m.Disconnect())
	assert.Never(t, func() bool { return dialer.count() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestConsumerAcksAndNacks(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(1), WithDialer(dialer.dial))
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Register(ctx, Consumer{
		Queue: "manage-resource-1",
		Handler: func(_ context.Context, body []byte) error {
			if string(body) == "bad" {
				return errors.New("unsupported payload")
			}
			return nil
		},
	}))

	conn := dialer.conn(0)
	require.Len(t, conn.channels, 1)
	ch := conn.channels[0]
	assert.Equal(t, []string{"manage-resource-1"}, ch.declared)
	assert.Equal(t, []bool{true}, ch.durable)
	assert.Equal(t, 1, ch.prefetch)

	ack := newAcknowledger()
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("good")}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("bad")}
	for range 2 {
		select {
		case <-ack.done:
		case <-time.After(waitFor):
			t.Fatal("delivery not settled")
		}
	}

	assert.Equal(t, []ackRecord{
		{tag: 1, acked: true},
		{tag: 2, acked: false, requeue: false},
	}, ack.records)
}

func TestRegisterValidation(t *testing.T) {
	m := NewManager(testConfig(1))
	assert.Error(t, m.Register(context.Background(), Consumer{Queue: "q"}))
	assert.Error(t, m.Register(context.Background(), Consumer{Handler: func(context.Context, []byte) error { return nil }}))
}

func TestPublish(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(1), WithDialer(dialer.dial))
	require.NoError(t, m.Connect(context.Background()))

	payload := map[string]string{"action": "create", "type": "database"}
	require.NoError(t, m.Publish(context.Background(), "manage-resource-1", payload))

	ch := dialer.conn(0).channels[0]
	assert.Equal(t, []string{"manage-resource-1"}, ch.declared)
	assert.Equal(t, "manage-resource-1", ch.routingKey)
	assert.True(t, ch.closed)
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.False(t, msg.Timestamp.IsZero())

	var got map[string]string
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, payload, got)
}

func TestPublishWhileDisconnected(t *testing.T) {
	m := NewManager(testConfig(1))
	err := m.Publish(context.Background(), "q", "x")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeUnavailable))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "unknown", State(42).String())
}
