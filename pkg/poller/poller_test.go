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

package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/cloud-agnost/provisioner/pkg/defaults"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

const secretName = "postgres.db1.credentials.postgresql.acid.zalan.do"

var secretsGR = schema.GroupResource{Resource: "secrets"}

func newSecret() *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: secretName, Namespace: "ns"},
		Data: map[string][]byte{
			KeyUsername: []byte("postgres"),
			KeyPassword: []byte("s3cret"),
		},
	}
}

func fastPoller(c *fake.Clientset) *Poller {
	p := New(c)
	p.Interval = time.Millisecond
	p.Timeout = 2 * time.Second
	return p
}

// notFoundFor fails the first n secret gets with NotFound.
func notFoundFor(n int32, calls *atomic.Int32) k8stesting.ReactionFunc {
	return func(k8stesting.Action) (bool, runtime.Object, error) {
		if calls.Add(1) <= n {
			return true, nil, apierrors.NewNotFound(secretsGR, secretName)
		}
		return false, nil, nil
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(fake.NewClientset())
	assert.Equal(t, defaults.CredentialPollInterval, p.Interval)
	assert.Equal(t, defaults.CredentialPollTimeout, p.Timeout)
}

func TestWaitForCredentialImmediate(t *testing.T) {
	p := fastPoller(fake.NewClientset(newSecret()))

	cred, err := p.WaitForCredential(context.Background(), "ns", secretName)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cred.Username)
	assert.Equal(t, "s3cret", cred.Password)
	assert.Empty(t, cred.Host)
}

func TestWaitForCredentialRetriesUntilPresent(t *testing.T) {
	c := fake.NewClientset(newSecret())
	var calls atomic.Int32
	c.PrependReactor("get", "secrets", notFoundFor(3, &calls))

	cred, err := fastPoller(c).WaitForCredential(context.Background(), "ns", secretName)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cred.Password)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWaitForCredentialRetriesTransient(t *testing.T) {
	c := fake.NewClientset(newSecret())
	var calls atomic.Int32
	c.PrependReactor("get", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		if calls.Add(1) == 1 {
			return true, nil, apierrors.NewServiceUnavailable("apiserver restarting")
		}
		return false, nil, nil
	})

	_, err := fastPoller(c).WaitForCredential(context.Background(), "ns", secretName)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWaitForCredentialAbortsOnForbidden(t *testing.T) {
	c := fake.NewClientset()
	var calls atomic.Int32
	c.PrependReactor("get", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		calls.Add(1)
		return true, nil, apierrors.NewForbidden(secretsGR, secretName, errors.New("rbac"))
	})

	_, err := fastPoller(c).WaitForCredential(context.Background(), "ns", secretName)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeUnauthorized))
	assert.Equal(t, int32(1), calls.Load())
}

func TestWaitForCredentialTimeout(t *testing.T) {
	p := fastPoller(fake.NewClientset())
	p.Timeout = 20 * time.Millisecond

	_, err := p.WaitForCredential(context.Background(), "ns", secretName)
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodePollTimeout, cerrors.CodeOf(err))
}

func TestWaitForCredentialCancelled(t *testing.T) {
	p := fastPoller(fake.NewClientset())
	p.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.WaitForCredential(ctx, "ns", secretName)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, cerrors.IsCode(err, cerrors.ErrCodePollTimeout))
}
