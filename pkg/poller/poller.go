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
	"log/slog"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/cloud-agnost/provisioner/pkg/defaults"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

// Credential keys inside a generated secret.
const (
	KeyUsername = "username"
	KeyPassword = "password"
	KeyHost     = "host"
)

// Credential is the decoded material of a generated credential secret.
type Credential struct {
	Username string
	Password string
	Host     string
}

// Poller waits for artifacts the control plane materializes asynchronously.
type Poller struct {
	client   kubernetes.Interface
	Interval time.Duration
	Timeout  time.Duration
}

// New returns a Poller with the default interval and timeout.
func New(client kubernetes.Interface) *Poller {
	return &Poller{
		client:   client,
		Interval: defaults.CredentialPollInterval,
		Timeout:  defaults.CredentialPollTimeout,
	}
}

// WaitForCredential blocks until secret namespace/name exists and returns its
// decoded contents. A missing secret or a transient API failure is retried
// every Interval; any other failure aborts. Exceeding Timeout yields a
// POLL_TIMEOUT error; cancelling ctx yields the context error.
func (p *Poller) WaitForCredential(ctx context.Context, namespace, name string) (*Credential, error) {
	var cred *Credential
	attempts := 0

	err := wait.PollUntilContextTimeout(ctx, p.Interval, p.Timeout, true, func(ctx context.Context) (bool, error) {
		attempts++
		secret, err := p.client.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
		switch {
		case err == nil:
			cred = &Credential{
				Username: string(secret.Data[KeyUsername]),
				Password: string(secret.Data[KeyPassword]),
				Host:     string(secret.Data[KeyHost]),
			}
			return true, nil
		case apierrors.IsNotFound(err):
			slog.Debug("credential not ready", "namespace", namespace, "secret", name, "attempt", attempts)
			return false, nil
		case isTransient(err):
			slog.Warn("transient error polling credential",
				"namespace", namespace, "secret", name, "attempt", attempts, "error", err)
			return false, nil
		default:
			return false, cerrors.FromAPIStatus("failed to read credential "+namespace+"/"+name, err)
		}
	})
	if err == nil {
		slog.Debug("credential ready", "namespace", namespace, "secret", name, "attempts", attempts)
		return cred, nil
	}

	var se *cerrors.StructuredError
	if errors.As(err, &se) {
		return nil, err
	}
	// Parent cancellation is reported as is; an expired poll deadline is a timeout.
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	if wait.Interrupted(err) {
		return nil, cerrors.WrapWithContext(cerrors.ErrCodePollTimeout, "credential never materialized", err,
			map[string]any{"namespace": namespace, "secret": name, "timeout": p.Timeout.String(), "attempts": attempts})
	}
	return nil, err
}

func isTransient(err error) bool {
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err)
}
